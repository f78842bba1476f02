package memory

import (
	"fmt"
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

// maxFreeBlocksTracked bounds the free-list, matching the original engine's
// GpuMemoryAllocator::MAX_FREE_BLOCKS_TRACKED.
const maxFreeBlocksTracked = 128

// block is a free byte range [offset, offset+size).
type block struct {
	offset vk.DeviceSize
	size   vk.DeviceSize
}

// freeList is the coalescing free-list sub-allocator of spec §4.1, used for
// regions with mid-life frees (DeviceImages, HostCoherentMisc). Grounded on
// original_source/sources/engine/gpu_memory_allocator.cc's node-list
// allocate_bytes/free_bytes.
type freeList struct {
	capacity vk.DeviceSize
	blocks   []block // sorted by offset, non-overlapping, no two adjacent
	live     vk.DeviceSize
}

func newFreeList(capacity vk.DeviceSize) *freeList {
	return &freeList{
		capacity: capacity,
		blocks:   []block{{offset: 0, size: capacity}},
	}
}

// allocate returns the lowest-offset block whose size >= size, shrinking it
// in place (or removing it if the sizes match exactly), per spec §4.1.
func (f *freeList) allocate(size vk.DeviceSize) (vk.DeviceSize, error) {
	for i := range f.blocks {
		b := &f.blocks[i]
		if b.size < size {
			continue
		}
		offset := b.offset
		if b.size == size {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
		} else {
			b.offset += size
			b.size -= size
		}
		f.live += size
		return offset, nil
	}
	return 0, fmt.Errorf("allocation exhausted: requested %d, capacity %d, live %d", size, f.capacity, f.live)
}

// free inserts [offset, offset+size) back into the free list, sorted by
// offset, coalescing with both neighbours in one pass (spec §4.1).
func (f *freeList) free(offset, size vk.DeviceSize) {
	f.live -= size

	idx := sort.Search(len(f.blocks), func(i int) bool {
		return f.blocks[i].offset >= offset
	})

	inserted := block{offset: offset, size: size}
	f.blocks = append(f.blocks, block{})
	copy(f.blocks[idx+1:], f.blocks[idx:])
	f.blocks[idx] = inserted

	// Coalesce with the right neighbour first so the left-neighbour check
	// below sees the (possibly already-merged) up-to-date size.
	if idx+1 < len(f.blocks) {
		right := f.blocks[idx+1]
		if f.blocks[idx].offset+f.blocks[idx].size == right.offset {
			f.blocks[idx].size += right.size
			f.blocks = append(f.blocks[:idx+1], f.blocks[idx+2:]...)
		}
	}
	if idx > 0 {
		left := f.blocks[idx-1]
		if left.offset+left.size == f.blocks[idx].offset {
			f.blocks[idx-1].size += f.blocks[idx].size
			f.blocks = append(f.blocks[:idx], f.blocks[idx+1:]...)
		}
	}

	if len(f.blocks) > maxFreeBlocksTracked {
		// This is a design bug (too-fine-grained free/alloc churn); surfaced
		// as an allocation-exhausted style fatal rather than silently
		// growing past the tracked bound, matching the original's
		// SDL_assert(false) on its fixed nodes[] array.
		panic(fmt.Sprintf("free list exceeded %d tracked blocks", maxFreeBlocksTracked))
	}
}

func (f *freeList) reset() {
	f.blocks = []block{{offset: 0, size: f.capacity}}
	f.live = 0
}

func (f *freeList) liveBytes() vk.DeviceSize {
	return f.live
}
