// Package resize implements the ResizeCoordinator of spec §4.10: on surface
// extent change, wait device idle, tear down every size-dependent resource,
// and rebuild it against the new extent. Grounded on the teacher's
// swapchain.go recreate-on-resize flow.
package resize

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/destruction"
	"github.com/ashforge/vkengine/internal/framebuffer"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// SizeDependent is everything a resize tears down and rebuilds: the
// swapchain, its images/views, the MSAA color target, the depth target, and
// the framebuffer set. The engine supplies the construction closures since
// only it knows the present queue, surface, and chosen formats.
type SizeDependent struct {
	Device vk.Device

	// CurrentExtent is the extent every size-dependent resource is currently
	// built against; Resize compares the requested extent to this before
	// doing anything (spec §4.10 "resize with the current extent is a
	// no-op"). Updated to the new extent after a real rebuild completes.
	CurrentExtent vk.Extent2D

	DestroySwapchainImages func()
	DestroyMSAATarget      func()
	DestroyDepthTarget     func()
	Framebuffers           *framebuffer.Set

	RecreateSwapchain func(width, height uint32) error
	RecreateMSAATarget func() error
	RecreateDepthTarget func() error
	RecreateFramebuffers func() (*framebuffer.Set, error)

	// RebuildViewportPipelines enqueues every pipeline with hard-coded
	// viewport/scissor state for a countdown-based rebuild (spec §4.5/§4.10)
	// instead of destroying it on the spot.
	RebuildViewportPipelines func(pipelineQueue *destruction.Queue) error
}

// Resize implements the full §4.10 sequence for one extent change. Calling
// it with sd.CurrentExtent's width/height is a no-op: no device wait, no
// resource destruction, no rebuild.
func Resize(sd *SizeDependent, pipelineQueue *destruction.Queue, width, height uint32) error {
	if width == sd.CurrentExtent.Width && height == sd.CurrentExtent.Height {
		return nil
	}

	if ret := vk.DeviceWaitIdle(sd.Device); vkutil.IsError(ret) {
		return fmt.Errorf("waiting device idle before resize: %w", vkutil.NewError(ret))
	}

	sd.Framebuffers.Destroy()
	sd.DestroyMSAATarget()
	sd.DestroyDepthTarget()
	sd.DestroySwapchainImages()

	if err := sd.RecreateSwapchain(width, height); err != nil {
		return fmt.Errorf("recreating swapchain: %w", err)
	}
	if err := sd.RecreateMSAATarget(); err != nil {
		return fmt.Errorf("recreating MSAA target: %w", err)
	}
	if err := sd.RecreateDepthTarget(); err != nil {
		return fmt.Errorf("recreating depth target: %w", err)
	}

	fbs, err := sd.RecreateFramebuffers()
	if err != nil {
		return fmt.Errorf("recreating framebuffers: %w", err)
	}
	sd.Framebuffers = fbs

	if sd.RebuildViewportPipelines != nil {
		if err := sd.RebuildViewportPipelines(pipelineQueue); err != nil {
			return fmt.Errorf("rebuilding viewport-dependent pipelines: %w", err)
		}
	}

	sd.CurrentExtent = vk.Extent2D{Width: width, Height: height}
	return nil
}
