package memory

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// bumpAllocator is the simplest sub-allocator of spec §4.1: a linear
// append-only cursor with no in-place frees, used for staging and
// device-local asset memory (DeviceLocal, HostVisibleStaging, HostCoherentUBO).
// Grounded on the teacher's approach of growing buffers monotonically and on
// the original engine's MemoryWithAlignment::allocate/pop (engine.hh).
type bumpAllocator struct {
	capacity vk.DeviceSize
	cursor   vk.DeviceSize
	lastSize vk.DeviceSize
}

func newBumpAllocator(capacity vk.DeviceSize) *bumpAllocator {
	return &bumpAllocator{capacity: capacity}
}

func (b *bumpAllocator) allocate(size vk.DeviceSize) (vk.DeviceSize, error) {
	if b.cursor+size > b.capacity {
		return 0, fmt.Errorf("allocation exhausted: requested %d, remaining %d of %d", size, b.capacity-b.cursor, b.capacity)
	}
	offset := b.cursor
	b.cursor += size
	b.lastSize = size
	return offset, nil
}

// free is a no-op except for popping the most recent allocation (mirrors
// the original's MemoryWithAlignment::pop, used when a one-shot staging
// upload is immediately retired). Freeing anything else is a logic error in
// an append-only region and is silently ignored rather than corrupting the
// cursor.
func (b *bumpAllocator) free(offset, size vk.DeviceSize) {
	if offset+size == b.cursor && size == b.lastSize {
		b.cursor = offset
		b.lastSize = 0
	}
}

func (b *bumpAllocator) reset() {
	b.cursor = 0
	b.lastSize = 0
}

func (b *bumpAllocator) liveBytes() vk.DeviceSize {
	return b.cursor
}
