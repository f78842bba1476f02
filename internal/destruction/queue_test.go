package destruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueue_DestroysAfterCountdown covers property P4: an entry enqueued
// with countdown N survives exactly N-1 Tick() calls and is gone after the Nth.
func TestQueue_DestroysAfterCountdown(t *testing.T) {
	q := New(vkNullDevice(), 3)
	q.entries = append(q.entries, Entry{countdown: 3})

	q.Tick()
	require.Equal(t, 1, q.Pending())
	q.Tick()
	require.Equal(t, 1, q.Pending())
	q.Tick()
	assert.Equal(t, 0, q.Pending())
}

// TestQueue_MultipleEntriesIndependentCountdowns covers scenario S5.
func TestQueue_MultipleEntriesIndependentCountdowns(t *testing.T) {
	q := New(vkNullDevice(), 0)
	q.entries = append(q.entries, Entry{countdown: 1}, Entry{countdown: 2})

	q.Tick()
	require.Equal(t, 1, q.Pending(), "the countdown=1 entry should have been destroyed")
	q.Tick()
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_EnqueueSkipsNullHandle(t *testing.T) {
	q := New(vkNullDevice(), 3)
	q.Enqueue(0, 0)
	assert.Zero(t, q.Pending())
}
