package resize

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/destruction"
	"github.com/ashforge/vkengine/internal/framebuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResize_SameExtentIsNoOp covers property P8: calling Resize again with
// the extent already in effect must not destroy or rebuild anything.
func TestResize_SameExtentIsNoOp(t *testing.T) {
	var recreateCalls, destroyCalls int

	sd := &SizeDependent{
		Device:                 vk.Device(vk.NullHandle),
		Framebuffers:           &framebuffer.Set{},
		DestroySwapchainImages: func() { destroyCalls++ },
		DestroyMSAATarget:      func() { destroyCalls++ },
		DestroyDepthTarget:     func() { destroyCalls++ },
		RecreateSwapchain:      func(w, h uint32) error { recreateCalls++; return nil },
		RecreateMSAATarget:     func() error { recreateCalls++; return nil },
		RecreateDepthTarget:    func() error { recreateCalls++; return nil },
		RecreateFramebuffers:   func() (*framebuffer.Set, error) { recreateCalls++; return &framebuffer.Set{}, nil },
	}

	q := destruction.New(vk.Device(vk.NullHandle), 3)

	// First call: a genuine extent change from the zero value, so the full
	// teardown/rebuild sequence runs once (3 destroys, 4 recreates).
	require.NoError(t, Resize(sd, q, 1280, 720))
	assert.Equal(t, 3, destroyCalls)
	assert.Equal(t, 4, recreateCalls)

	// Second call with the same extent: must be a no-op.
	require.NoError(t, Resize(sd, q, 1280, 720))
	assert.Equal(t, 3, destroyCalls)
	assert.Equal(t, 4, recreateCalls)

	// A genuinely different extent runs the sequence again.
	require.NoError(t, Resize(sd, q, 1920, 1080))
	assert.Equal(t, 6, destroyCalls)
	assert.Equal(t, 8, recreateCalls)
}
