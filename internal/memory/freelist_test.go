package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

// assertSortedNonOverlappingCoalesced checks property P1: the free-list
// state is sorted by offset, contains no overlapping blocks, and (after a
// free) contains no two adjacent blocks that should have coalesced.
func assertSortedNonOverlappingCoalesced(t *testing.T, f *freeList) {
	t.Helper()
	for i := 1; i < len(f.blocks); i++ {
		prev, cur := f.blocks[i-1], f.blocks[i]
		assert.Less(t, prev.offset, cur.offset, "blocks must be sorted by offset")
		assert.LessOrEqual(t, prev.offset+prev.size, cur.offset, "blocks must not overlap")
		assert.NotEqual(t, prev.offset+prev.size, cur.offset, "adjacent blocks must have been coalesced")
	}
}

func TestFreeList_AllocateShrinksLowestOffsetBlock(t *testing.T) {
	f := newFreeList(1024)
	off, err := f.allocate(100)
	require.NoError(t, err)
	require.EqualValues(t, 0, off)
	require.Len(t, f.blocks, 1)
	require.EqualValues(t, 100, f.blocks[0].offset)
	require.EqualValues(t, 924, f.blocks[0].size)
}

func TestFreeList_AllocateExactSizeRemovesBlock(t *testing.T) {
	f := newFreeList(100)
	_, err := f.allocate(100)
	require.NoError(t, err)
	require.Empty(t, f.blocks)

	_, err = f.allocate(1)
	require.Error(t, err)
}

// TestFreeList_BestFitAfterFree covers scenario S4: allocate A, B, C; free B;
// allocate exactly sizeof(B); the returned offset must equal B's original offset.
func TestFreeList_BestFitAfterFree(t *testing.T) {
	f := newFreeList(300)
	offA, err := f.allocate(100)
	require.NoError(t, err)
	offB, err := f.allocate(100)
	require.NoError(t, err)
	offC, err := f.allocate(100)
	require.NoError(t, err)

	require.EqualValues(t, 0, offA)
	require.EqualValues(t, 100, offB)
	require.EqualValues(t, 200, offC)

	f.free(offB, 100)
	assertSortedNonOverlappingCoalesced(t, f)

	offBAgain, err := f.allocate(100)
	require.NoError(t, err)
	assert.EqualValues(t, offB, offBAgain)
}

// TestFreeList_RoundTripAllocation covers property P3.
func TestFreeList_RoundTripAllocation(t *testing.T) {
	f := newFreeList(1000)
	var offsets []vk.DeviceSize
	sizes := []vk.DeviceSize{100, 200, 150, 250, 300}
	for _, s := range sizes {
		off, err := f.allocate(s)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}

	for i := len(offsets) - 1; i >= 0; i-- {
		f.free(offsets[i], sizes[i])
		assertSortedNonOverlappingCoalesced(t, f)
	}

	require.Len(t, f.blocks, 1)
	assert.EqualValues(t, 0, f.blocks[0].offset)
	assert.EqualValues(t, 1000, f.blocks[0].size)
	assert.EqualValues(t, 0, f.liveBytes())
}

// TestFreeList_CoalescesBothSides ensures a single free() call merges with
// both the left and right neighbour in one pass.
func TestFreeList_CoalescesBothSides(t *testing.T) {
	f := newFreeList(300)
	_, _ = f.allocate(100) // [0,100) in use
	_, _ = f.allocate(100) // [100,200) in use
	_, _ = f.allocate(100) // [200,300) in use

	f.free(0, 100)
	f.free(200, 100)
	// Free list now: [0,100) and [200,300) with [100,200) still allocated.
	require.Len(t, f.blocks, 2)

	f.free(100, 100)
	assertSortedNonOverlappingCoalesced(t, f)
	require.Len(t, f.blocks, 1)
	assert.EqualValues(t, 0, f.blocks[0].offset)
	assert.EqualValues(t, 300, f.blocks[0].size)
}

func TestBumpAllocator_ExhaustsFatally(t *testing.T) {
	b := newBumpAllocator(10)
	_, err := b.allocate(6)
	require.NoError(t, err)
	_, err = b.allocate(5)
	require.Error(t, err)
}

func TestRegion_AlignmentRounding(t *testing.T) {
	r := newRegion(HostCoherentUBO, vk.NullHandle, 1024, 64)
	o1 := r.Allocate(10)
	o2 := r.Allocate(10)
	assert.Zero(t, o1%64, "P2: offsets must be multiples of region alignment")
	assert.Zero(t, o2%64, "P2: offsets must be multiples of region alignment")
	assert.NotEqual(t, o1, o2)
}

func TestRegion_AllocateSlots(t *testing.T) {
	r := newRegion(HostCoherentUBO, vk.NullHandle, 4096, 256)
	offsets := r.AllocateSlots(3, 64)
	require.Len(t, offsets, 3)
	for i, off := range offsets {
		assert.Zerof(t, off%256, "slot %d must be alignment-rounded", i)
	}
	// P5: frame slots must own disjoint ranges.
	assert.NotEqual(t, offsets[0], offsets[1])
	assert.NotEqual(t, offsets[1], offsets[2])
}
