// Package frameloop implements the FrameLoop of spec §4.8: the nine-step
// per-frame sequence run on the main thread, from swapchain acquire through
// present. Grounded on the teacher's context.go frame-fence/semaphore
// submission pattern, generalized to the fixed four-pass render graph and
// the job system's secondary-command-buffer concatenation contract.
package frameloop

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/config"
	"github.com/ashforge/vkengine/internal/destruction"
	"github.com/ashforge/vkengine/internal/frame"
	"github.com/ashforge/vkengine/internal/framebuffer"
	"github.com/ashforge/vkengine/internal/jobsystem"
	"github.com/ashforge/vkengine/internal/renderpass"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// clearDepthOne/clearColor are the fixed clear values spec §4.8 step 7 names.
var (
	clearDepthOne = vk.NewClearDepthStencil(1.0, 0)
	clearColor    = vk.NewClearValue([]float32{0, 0, 0.2, 1})
)

// Loop owns the handles FrameLoop needs every frame but does not itself
// own: the swapchain, queues, frame slots, framebuffers, and job system.
type Loop struct {
	Device        vk.Device
	Swapchain     vk.Swapchain
	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	Frames  *frame.Pool
	FBs     *framebuffer.Set
	Graph   *renderpass.Graph
	Jobs    *jobsystem.System
	Retired *destruction.Queue

	CascadeCount    int
	ShadowImage     vk.Image
	SwapchainExtent vk.Extent2D

	// frameInFlight cycles independently of the acquired image index: the
	// image-available semaphore must be chosen before vkAcquireNextImage
	// reports which image it signals for, so it cannot be indexed by
	// imageIndex the way the fence and command buffer are.
	frameInFlight int
}

// UpdatePhase and RenderPhase are supplied by the owning application: the
// former enqueues game-logic/culling/matrix jobs (step 4), the latter
// enqueues one job per render-effect-per-pass (step 6).
type UpdatePhase func(jobs *jobsystem.System, frameSlot int)
type RenderPhase func(jobs *jobsystem.System, frameSlot int)

// HostUpload writes this frame's UBO data (step 5): cascade matrices,
// dynamic lights, skinning matrices, frustum planes.
type HostUpload func(frameSlot int, ranges frame.UBORanges)

// RunFrame executes one full iteration of spec §4.8's nine steps.
func (l *Loop) RunFrame(update UpdatePhase, upload HostUpload, render RenderPhase) error {
	count := len(l.Frames.Slots)
	acquireSemaphore := l.Frames.Slots[l.frameInFlight].ImageAvailable
	l.frameInFlight = (l.frameInFlight + 1) % count

	var imageIndex uint32
	// Step 1: acquire.
	ret := vk.AcquireNextImage(l.Device, l.Swapchain, vk.MaxUint64, acquireSemaphore, vk.NullHandle, &imageIndex)
	if vkutil.IsError(ret) {
		return fmt.Errorf("acquiring swapchain image: %w", vkutil.NewError(ret))
	}
	slot := l.Frames.Slots[imageIndex]
	slot.ImageAvailable = acquireSemaphore

	// Step 2: wait + reset the fence for this image's slot.
	if ret := vk.WaitForFences(l.Device, 1, []vk.Fence{slot.Fence}, vk.True, vk.MaxUint64); vkutil.IsError(ret) {
		return fmt.Errorf("waiting frame fence: %w", vkutil.NewError(ret))
	}
	if ret := vk.ResetFences(l.Device, 1, []vk.Fence{slot.Fence}); vkutil.IsError(ret) {
		return fmt.Errorf("resetting frame fence: %w", vkutil.NewError(ret))
	}

	// Step 3: reset worker command pools.
	if err := l.Jobs.ResetCommandBuffers(); err != nil {
		return err
	}

	// Step 4: update-phase jobs.
	l.Jobs.Start(slot.Index)
	if update != nil {
		update(l.Jobs, slot.Index)
	}
	l.Jobs.WaitForFinish()

	// Step 5: host-side frame data upload.
	if upload != nil {
		upload(slot.Index, slot.UBO)
	}

	// Step 6: render-phase jobs.
	l.Jobs.Start(slot.Index)
	if render != nil {
		render(l.Jobs, slot.Index)
	}
	results := l.Jobs.WaitForFinish()

	// Step 7: primary command buffer assembly.
	if err := l.assemblePrimary(slot, imageIndex, results); err != nil {
		return err
	}

	// Step 8: submit.
	waitStage := vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	ret = vk.QueueSubmit(l.GraphicsQueue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.PrimaryCB},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.RenderFinished},
	}}, slot.Fence)
	if vkutil.IsError(ret) {
		return fmt.Errorf("submitting primary command buffer: %w", vkutil.NewError(ret))
	}

	// Step 9: present.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{l.Swapchain},
		PImageIndices:      []uint32{imageIndex},
	}
	if ret := vk.QueuePresent(l.PresentQueue, &presentInfo); vkutil.IsError(ret) {
		return fmt.Errorf("presenting: %w", vkutil.NewError(ret))
	}

	// Frame epilogue (spec §4.5): decrement every retired pipeline's
	// countdown, destroying the ones that reach zero this frame.
	if l.Retired != nil {
		l.Retired.Tick()
	}

	return nil
}

// assemblePrimary implements step 7: begins each pass in order, executes the
// secondary command buffers tagged for it, and ends with the unconditional
// shadow-image barrier the next frame's shadow pass depends on.
func (l *Loop) assemblePrimary(slot frame.Slot, imageIndex uint32, results []jobsystem.Result) error {
	cb := slot.PrimaryCB
	if ret := vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}); vkutil.IsError(ret) {
		return fmt.Errorf("beginning primary command buffer: %w", vkutil.NewError(ret))
	}

	for cascade := 0; cascade < l.CascadeCount; cascade++ {
		fb := l.FBs.ShadowByCascade[cascade]
		beginPass(cb, l.Graph.Shadowmap, fb, extentSquare(config.ShadowmapImageDim), []vk.ClearValue{clearDepthOne})
		executeSecondaries(cb, results, jobsystem.PassShadow, cascade)
		vk.CmdEndRenderPass(cb)
	}

	skyboxFB := l.FBs.Skybox[imageIndex]
	beginPass(cb, l.Graph.Skybox, skyboxFB, l.SwapchainExtent, nil)
	executeSecondaries(cb, results, jobsystem.PassSkybox, 0)
	vk.CmdEndRenderPass(cb)

	colorDepthFB := l.FBs.ColorDepth[imageIndex]
	beginPass(cb, l.Graph.ColorDepth, colorDepthFB, l.SwapchainExtent, []vk.ClearValue{clearColor, clearDepthOne})
	executeSecondaries(cb, results, jobsystem.PassColorDepth, 0)
	vk.CmdEndRenderPass(cb)

	guiFB := l.FBs.GUI[imageIndex]
	beginPass(cb, l.Graph.GUI, guiFB, l.SwapchainExtent, nil)
	executeSecondaries(cb, results, jobsystem.PassGUI, 0)
	vk.CmdEndRenderPass(cb)

	// Shadow image must be back at DEPTH_STENCIL_ATTACHMENT_OPTIMAL before
	// the next frame's shadow pass begins (spec §4.8 step 7 invariant);
	// emitted unconditionally, every frame, regardless of whether the
	// Color+Depth pass actually sampled it this frame.
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			OldLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			NewLayout:           vk.ImageLayoutDepthStencilAttachmentOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               l.ShadowImage,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
				LevelCount: 1,
				LayerCount: uint32(l.CascadeCount),
			},
		}})

	if ret := vk.EndCommandBuffer(cb); vkutil.IsError(ret) {
		return fmt.Errorf("ending primary command buffer: %w", vkutil.NewError(ret))
	}
	return nil
}

func beginPass(cb vk.CommandBuffer, pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue) {
	vk.CmdBeginRenderPass(cb, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     fb,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsSecondaryCommandBuffers)
}

// executeSecondaries runs every result tagged for (pass, cascade) in the
// order WaitForFinish already sorted them into (spec §5 ordering guarantees).
func executeSecondaries(cb vk.CommandBuffer, results []jobsystem.Result, pass jobsystem.Pass, cascade int) {
	var batch []vk.CommandBuffer
	for _, r := range results {
		if r.Pass == pass && (pass != jobsystem.PassShadow || r.Cascade == cascade) {
			batch = append(batch, r.CB)
		}
	}
	if len(batch) > 0 {
		vk.CmdExecuteCommands(cb, uint32(len(batch)), batch)
	}
}

func extentSquare(dim uint32) vk.Extent2D {
	return vk.Extent2D{Width: dim, Height: dim}
}
