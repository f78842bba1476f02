// Package frame implements the per-frame-slot resources referenced
// throughout spec §4.8: a primary command buffer, a submission fence, and
// the disjoint UBO ranges each slot owns for its lifetime (invariant P5).
// Grounded on the teacher's context.go per-frame fence/semaphore pattern.
package frame

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/memory"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// UBORanges is the set of disjoint byte offsets one frame slot owns in the
// HostCoherentUBO region, one range per kind of per-frame data uploaded in
// FrameLoop step 5 (spec §4.8).
type UBORanges struct {
	CascadeMatrices vk.DeviceSize
	DynamicLights   vk.DeviceSize
	SkinningMatrices vk.DeviceSize
	FrustumPlanes   vk.DeviceSize
}

// Slot is one of SWAPCHAIN_COUNT frame-in-flight resource sets.
type Slot struct {
	Index         int
	PrimaryCB     vk.CommandBuffer
	Fence         vk.Fence
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	UBO           UBORanges
}

// Pool owns every frame slot and the command pool primary buffers are
// allocated from.
type Pool struct {
	device      vk.Device
	commandPool vk.CommandPool
	Slots       []Slot
}

// New allocates count frame slots (count == config.SwapchainImageCount),
// each with its own primary command buffer, fence (signaled so the first
// frame's wait doesn't block), and pair of semaphores, plus a disjoint slice
// of UBO ranges sized uboSlotSize apiece.
func New(device vk.Device, graphicsFamily uint32, count int, uboRegion *memory.Region, uboSlotSize vk.DeviceSize) (*Pool, error) {
	var cmdPool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: graphicsFamily,
	}, nil, &cmdPool)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating frame command pool: %w", vkutil.NewError(ret))
	}

	cbs := make([]vk.CommandBuffer, count)
	ret = vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, cbs)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("allocating primary command buffers: %w", vkutil.NewError(ret))
	}

	// Four UBO sub-ranges per slot: cascade matrices, dynamic lights,
	// skinning matrices, frustum planes (spec §4.8 step 5).
	offsets := uboRegion.AllocateSlots(count*4, uboSlotSize)

	p := &Pool{device: device, commandPool: cmdPool}
	for i := 0; i < count; i++ {
		var fence vk.Fence
		ret := vk.CreateFence(device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		if vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating frame fence %d: %w", i, vkutil.NewError(ret))
		}

		var imgAvail, renderFinished vk.Semaphore
		if ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &imgAvail); vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating image-available semaphore %d: %w", i, vkutil.NewError(ret))
		}
		if ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &renderFinished); vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating render-finished semaphore %d: %w", i, vkutil.NewError(ret))
		}

		p.Slots = append(p.Slots, Slot{
			Index:          i,
			PrimaryCB:      cbs[i],
			Fence:          fence,
			ImageAvailable: imgAvail,
			RenderFinished: renderFinished,
			UBO: UBORanges{
				CascadeMatrices:  offsets[i*4+0],
				DynamicLights:    offsets[i*4+1],
				SkinningMatrices: offsets[i*4+2],
				FrustumPlanes:    offsets[i*4+3],
			},
		})
	}
	p.commandPool = cmdPool
	return p, nil
}

// Destroy releases every slot's fence, semaphores, and the shared command pool.
func (p *Pool) Destroy() {
	for _, s := range p.Slots {
		vk.DestroyFence(p.device, s.Fence, nil)
		vk.DestroySemaphore(p.device, s.ImageAvailable, nil)
		vk.DestroySemaphore(p.device, s.RenderFinished, nil)
	}
	vk.DestroyCommandPool(p.device, p.commandPool, nil)
}
