package destruction

import vk "github.com/vulkan-go/vulkan"

// vkNullDevice returns the zero-value vk.Device used by tests that only
// exercise countdown bookkeeping and never reach an actual driver call
// (entries built directly with zero-value Pipeline/Layout handles never
// reach the vk.Destroy* calls with a non-null pipeline).
func vkNullDevice() vk.Device {
	return vk.Device(vk.NullHandle)
}
