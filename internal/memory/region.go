// Package memory implements the MemoryBlockPool of spec §3/§4.1: five fixed
// device-memory regions, each backed by a single vk.DeviceMemory allocation
// and a host-side sub-allocator. Grounded on the original engine's
// GpuMemoryAllocator (original_source/sources/engine/gpu_memory_allocator.cc)
// for the free-list shape, and on the teacher's buffers.go for how a region's
// backing vk.Buffer/vk.DeviceMemory pair is created.
package memory

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// Kind is one of the closed set of memory-region tags (spec §3).
type Kind int

const (
	DeviceLocal Kind = iota
	HostVisibleStaging
	DeviceImages
	HostCoherentMisc
	HostCoherentUBO
	kindCount
)

func (k Kind) String() string {
	switch k {
	case DeviceLocal:
		return "DeviceLocal"
	case HostVisibleStaging:
		return "HostVisibleStaging"
	case DeviceImages:
		return "DeviceImages"
	case HostCoherentMisc:
		return "HostCoherentMisc"
	case HostCoherentUBO:
		return "HostCoherentUBO"
	default:
		return "Unknown"
	}
}

// allocator is the sub-allocator strategy a region picks (spec §4.1): a
// linear bump allocator for append-only regions, or a free-list coalescing
// allocator for regions with mid-life frees.
type allocator interface {
	allocate(size vk.DeviceSize) (vk.DeviceSize, error)
	free(offset, size vk.DeviceSize)
	reset()
	liveBytes() vk.DeviceSize
}

// Region is one of the five fixed device-memory regions (spec §3).
type Region struct {
	Kind      Kind
	Handle    vk.DeviceMemory
	Capacity  vk.DeviceSize
	Alignment vk.DeviceSize

	alloc allocator
}

// roundUp rounds size up to a multiple of alignment, enforcing invariant I2.
func roundUp(size, alignment vk.DeviceSize) vk.DeviceSize {
	if alignment == 0 {
		return size
	}
	rem := size % alignment
	if rem == 0 {
		return size
	}
	return size + (alignment - rem)
}

// newRegion builds a Region of the given kind with an already-allocated
// device memory handle, selecting the free-list allocator for regions with
// mid-life frees (DeviceImages, HostCoherentMisc) and the bump allocator for
// append-only regions (spec §4.1).
func newRegion(kind Kind, handle vk.DeviceMemory, capacity, alignment vk.DeviceSize) *Region {
	r := &Region{Kind: kind, Handle: handle, Capacity: capacity, Alignment: alignment}
	switch kind {
	case DeviceImages, HostCoherentMisc:
		r.alloc = newFreeList(capacity)
	default:
		r.alloc = newBumpAllocator(capacity)
	}
	return r
}

// Allocate reserves size bytes (rounded up to the region's alignment) and
// returns the offset. Fails fatally on exhaustion per spec §7
// (AllocationExhausted).
func (r *Region) Allocate(size vk.DeviceSize) vk.DeviceSize {
	aligned := roundUp(size, r.Alignment)
	offset, err := r.alloc.allocate(aligned)
	if err != nil {
		vkutil.Fatal(fmt.Errorf("region %s: %w", r.Kind, err))
	}
	return offset
}

// Free releases a previously allocated [offset, offset+size) range. size is
// the size passed to the matching Allocate (or its aligned value); Free
// rounds it up to the region's alignment the same way Allocate did.
func (r *Region) Free(offset, size vk.DeviceSize) {
	aligned := roundUp(size, r.Alignment)
	r.alloc.free(offset, aligned)
}

// AllocateSlots allocates n equally sized, alignment-rounded slots in one
// call and returns their offsets — the helper spec §4.1 calls out for
// per-frame-slot UBO ranges.
func (r *Region) AllocateSlots(n int, sizeEach vk.DeviceSize) []vk.DeviceSize {
	offsets := make([]vk.DeviceSize, n)
	for i := 0; i < n; i++ {
		offsets[i] = r.Allocate(sizeEach)
	}
	return offsets
}

// LiveBytes reports the sum of currently-allocated bytes (invariant I1's
// left-hand side), used by tests and by accounting-based leak checks (S1).
func (r *Region) LiveBytes() vk.DeviceSize {
	return r.alloc.liveBytes()
}

// Reset discards all live allocations, used when a region is entirely
// repopulated (e.g. the staging region between uploads).
func (r *Region) Reset() {
	r.alloc.reset()
}
