// Package swapchain adapts the teacher's CoreSwapchain (surface-capability
// negotiation, image/view acquisition, per-image depth buffer) into the
// resize-coordinator-driven resource the rest of this engine shares: the
// swapchain proper, plus the MSAA color target and depth target each
// swapchain image needs for the Skybox and Color+Depth passes (spec §4.6).
package swapchain

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/memory"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// Swapchain owns the presentable surface chain: the swapchain handle, the
// negotiated surface format, the current extent, and one image+view pair
// per swapchain image.
type Swapchain struct {
	device  vk.Device
	Handle  vk.Swapchain
	Format  vk.SurfaceFormat
	Extent  vk.Extent2D
	Images  []vk.Image
	Views   []vk.ImageView
}

// New negotiates surface capabilities against physicalDevice and creates a
// swapchain requesting desiredImageCount images (spec §3 frame-slot count),
// clamped to the surface's [MinImageCount, MaxImageCount] range.
// old is the previous swapchain handle to retire, or vk.NullHandle on first
// creation (spec §4.10 resize path reuses this to avoid a present hiccup).
func New(device vk.Device, physicalDevice vk.PhysicalDevice, surface vk.Surface, desiredImageCount uint32, old vk.Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &caps); vkutil.IsError(ret) {
		return nil, fmt.Errorf("querying surface capabilities: %w", vkutil.NewError(ret))
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	format, err := pickSurfaceFormat(physicalDevice, surface)
	if err != nil {
		return nil, err
	}

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		return nil, fmt.Errorf("surface reports no fixed extent")
	}

	imageCount := desiredImageCount
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}
	if imageCount < caps.MinImageCount {
		imageCount = caps.MinImageCount
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformFlagBits(vk.SurfaceTransformIdentityBit)
	}

	compositeAlpha := pickCompositeAlpha(caps.SupportedCompositeAlpha)

	var handle vk.Swapchain
	ret := vk.CreateSwapchain(device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &handle)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating swapchain: %w", vkutil.NewError(ret))
	}
	if old != vk.Swapchain(vk.NullHandle) {
		vk.DestroySwapchain(device, old, nil)
	}

	sc := &Swapchain{device: device, Handle: handle, Format: format, Extent: extent}

	var actualCount uint32
	vk.GetSwapchainImages(device, handle, &actualCount, nil)
	sc.Images = make([]vk.Image, actualCount)
	vk.GetSwapchainImages(device, handle, &actualCount, sc.Images)

	sc.Views = make([]vk.ImageView, actualCount)
	for i := range sc.Images {
		view, err := createColorView(device, sc.Images[i], format.Format)
		if err != nil {
			return nil, fmt.Errorf("creating swapchain image view %d: %w", i, err)
		}
		sc.Views[i] = view
	}

	return sc, nil
}

func pickSurfaceFormat(physicalDevice vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("surface exposes no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, formats)
	formats[0].Deref()
	if formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: formats[0].ColorSpace}, nil
	}
	return formats[0], nil
}

func pickCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, candidate := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if supported&vk.CompositeAlphaFlags(candidate) != 0 {
			return candidate
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func createColorView(device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity, G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity, A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if vkutil.IsError(ret) {
		return vk.ImageView(vk.NullHandle), vkutil.NewError(ret)
	}
	return view, nil
}

// Destroy releases every view and the swapchain handle itself. Does not
// destroy sc.Images — those are owned by the swapchain and freed implicitly
// by vkDestroySwapchainKHR.
func (sc *Swapchain) Destroy() {
	for _, v := range sc.Views {
		vk.DestroyImageView(sc.device, v, nil)
	}
	vk.DestroySwapchain(sc.device, sc.Handle, nil)
}

// Target is a device-local 2D image the Skybox/Color+Depth passes render
// into directly: the MSAA color resolve source, or the shared depth buffer.
// Grounded on the teacher's CreateFrameBuffer depth-image allocation,
// generalized to source its backing memory from the shared DeviceImages
// region instead of a dedicated vkAllocateMemory call per image.
type Target struct {
	device vk.Device
	Image  vk.Image
	View   vk.ImageView
	Offset vk.DeviceSize
}

// NewDepthTarget builds the single depth buffer shared by every swapchain
// image in the Color+Depth pass (spec §4.6 — one depth attachment, not one
// per image, since only one frame writes depth at a time).
func NewDepthTarget(device vk.Device, region *memory.Region, format vk.Format, extent vk.Extent2D, samples vk.SampleCountFlagBits) (*Target, error) {
	return newTarget(device, region, format, extent, samples,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

// NewMSAAColorTarget builds the multisampled color target the Skybox and
// Color+Depth passes render into before resolving to the swapchain image
// (spec §4.6, only constructed when MSAA is enabled).
func NewMSAAColorTarget(device vk.Device, region *memory.Region, format vk.Format, extent vk.Extent2D, samples vk.SampleCountFlagBits) (*Target, error) {
	return newTarget(device, region, format, extent, samples,
		vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectColorBit))
}

func newTarget(device vk.Device, region *memory.Region, format vk.Format, extent vk.Extent2D, samples vk.SampleCountFlagBits, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*Target, error) {
	var img vk.Image
	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating target image: %w", vkutil.NewError(ret))
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img, &req)
	req.Deref()

	offset := region.Allocate(req.Size)
	if ret := vk.BindImageMemory(device, img, region.Handle, offset); vkutil.IsError(ret) {
		return nil, fmt.Errorf("binding target image memory: %w", vkutil.NewError(ret))
	}

	var view vk.ImageView
	ret = vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating target view: %w", vkutil.NewError(ret))
	}

	return &Target{device: device, Image: img, View: view, Offset: offset}, nil
}

// Destroy releases the view and image. The caller's memory.Region.Free must
// be called separately with the Offset and the original requirement size,
// mirroring every other region-suballocated resource in this engine.
func (t *Target) Destroy() {
	vk.DestroyImageView(t.device, t.View, nil)
	vk.DestroyImage(t.device, t.Image, nil)
}

// ShadowDepthArray is the single depth image backing every shadow cascade
// (spec §4.6 pass 1, §4.11): one array layer per cascade, one 2D view per
// layer for the cascade's own framebuffer, plus the unconditional layout
// barrier FrameLoop issues every frame (spec §4.8 step 7) operates on Image
// as a whole.
type ShadowDepthArray struct {
	device     vk.Device
	Image      vk.Image
	Offset     vk.DeviceSize
	LayerViews []vk.ImageView
}

// NewShadowDepthArray builds the cascade-count-layer depth image and one 2D
// view per layer.
func NewShadowDepthArray(device vk.Device, region *memory.Region, dim uint32, cascadeCount int) (*ShadowDepthArray, error) {
	var img vk.Image
	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.FormatD32Sfloat,
		Extent:        vk.Extent3D{Width: dim, Height: dim, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   uint32(cascadeCount),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating shadow depth array image: %w", vkutil.NewError(ret))
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img, &req)
	req.Deref()

	offset := region.Allocate(req.Size)
	if ret := vk.BindImageMemory(device, img, region.Handle, offset); vkutil.IsError(ret) {
		return nil, fmt.Errorf("binding shadow depth array memory: %w", vkutil.NewError(ret))
	}

	views := make([]vk.ImageView, cascadeCount)
	for layer := 0; layer < cascadeCount; layer++ {
		ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   vk.FormatD32Sfloat,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
				BaseArrayLayer: uint32(layer),
				LayerCount:     1,
				LevelCount:     1,
			},
		}, nil, &views[layer])
		if vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating shadow cascade view %d: %w", layer, vkutil.NewError(ret))
		}
	}

	return &ShadowDepthArray{device: device, Image: img, Offset: offset, LayerViews: views}, nil
}

// Destroy releases every layer view and the backing image.
func (s *ShadowDepthArray) Destroy() {
	for _, v := range s.LayerViews {
		vk.DestroyImageView(s.device, v, nil)
	}
	vk.DestroyImage(s.device, s.Image, nil)
}
