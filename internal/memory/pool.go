package memory

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// Sizes, in bytes, for each of the five regions. Generous fixed capacities
// per spec §7 (AllocationExhausted is a design bug, not a recoverable
// condition — regions are sized generously at startup).
const (
	DeviceLocalCapacity         = 64 * 1024 * 1024
	HostVisibleStagingCapacity  = 32 * 1024 * 1024
	DeviceImagesCapacity        = 512 * 1024 * 1024
	HostCoherentMiscCapacity    = 4 * 1024 * 1024
	HostCoherentUBOCapacity     = 4 * 1024 * 1024
)

// Pool is the MemoryBlockPool of spec §4.1: five fixed device-memory
// regions, each with its own backing vk.DeviceMemory allocation and
// sub-allocator. Created once at startup, destroyed at teardown.
type Pool struct {
	device vk.Device
	props  vk.PhysicalDeviceMemoryProperties

	regions [kindCount]*Region
}

// findMemoryType mirrors the teacher's extensions.go FindRequiredMemoryType:
// scans the physical device's memory types for one matching both the
// type-bits mask from a resource's requirements and the desired property
// flags.
func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if vk.MemoryPropertyFlagBits(props.MemoryTypes[i].PropertyFlags)&want == want {
			return i, true
		}
	}
	return 0, false
}

func propertyFlagsFor(kind Kind) vk.MemoryPropertyFlagBits {
	switch kind {
	case DeviceLocal, DeviceImages:
		return vk.MemoryPropertyDeviceLocalBit
	default:
		return vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
}

func capacityFor(kind Kind) vk.DeviceSize {
	switch kind {
	case DeviceLocal:
		return DeviceLocalCapacity
	case HostVisibleStaging:
		return HostVisibleStagingCapacity
	case DeviceImages:
		return DeviceImagesCapacity
	case HostCoherentMisc:
		return HostCoherentMiscCapacity
	case HostCoherentUBO:
		return HostCoherentUBOCapacity
	default:
		return 0
	}
}

// NewPool allocates the five fixed device-memory regions. alignments maps
// each kind to the alignment the driver reports for the resource kind bound
// into it (spec §3 — "a required alignment, queried once from the driver
// per resource kind").
func NewPool(device vk.Device, props vk.PhysicalDeviceMemoryProperties, typeBitsHint uint32, alignments map[Kind]vk.DeviceSize) (*Pool, error) {
	p := &Pool{device: device, props: props}

	for k := Kind(0); k < kindCount; k++ {
		capacity := capacityFor(k)
		memType, ok := findMemoryType(props, typeBitsHint, propertyFlagsFor(k))
		if !ok {
			return nil, fmt.Errorf("no suitable memory type for region %s", k)
		}

		var handle vk.DeviceMemory
		ret := vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  capacity,
			MemoryTypeIndex: memType,
		}, nil, &handle)
		if vkutil.IsError(ret) {
			return nil, fmt.Errorf("allocating region %s: %w", k, vkutil.NewError(ret))
		}

		align := alignments[k]
		if align == 0 {
			align = 1
		}
		p.regions[k] = newRegion(k, handle, capacity, align)
	}

	return p, nil
}

// Region returns the region for the given kind.
func (p *Pool) Region(kind Kind) *Region {
	return p.regions[kind]
}

// Destroy frees all five backing device-memory allocations. Invariant I1 is
// expected to already hold (callers should have freed/destroyed every
// resource they suballocated before calling this).
func (p *Pool) Destroy() {
	for _, r := range p.regions {
		if r != nil && r.Handle != vk.DeviceMemory(vk.NullHandle) {
			vk.FreeMemory(p.device, r.Handle, nil)
			r.Handle = vk.DeviceMemory(vk.NullHandle)
		}
	}
}
