// Package texture implements the TextureStore of spec §4.2: host-side image
// decode, staging upload through a one-shot command buffer, and the
// device-local image + view + memory-offset triple the rest of the engine
// binds into descriptor sets. Grounded on the teacher's image.go staging
// pattern and buffers.go one-shot command buffer helper, with format
// decoding pulled from golang.org/x/image and disintegration/imaging per the
// wider examples pack.
package texture

import (
	"bufio"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"unsafe"

	"github.com/disintegration/imaging"
	vk "github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/ashforge/vkengine/internal/memory"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// Texture is the image+view+offset triple returned by every load operation.
type Texture struct {
	Image  vk.Image
	View   vk.ImageView
	Offset vk.DeviceSize
	Format vk.Format
	Width  uint32
	Height uint32
	Layers uint32
}

// Store owns the one-shot upload command pool/queue and sub-allocates
// staging and device-local image memory from the shared memory.Pool.
type Store struct {
	device      vk.Device
	pool        *memory.Pool
	uploadPool  vk.CommandPool
	uploadQueue vk.Queue
}

// New creates the one-shot upload command pool bound to the graphics queue
// family, mirroring the teacher's buffers.go CreateCommandPool/one-shot idiom.
func New(device vk.Device, pool *memory.Pool, graphicsQueue vk.Queue, graphicsFamily uint32) (*Store, error) {
	var cmdPool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: graphicsFamily,
	}, nil, &cmdPool)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("creating texture upload command pool: %w", vkutil.NewError(ret))
	}
	return &Store{device: device, pool: pool, uploadPool: cmdPool, uploadQueue: graphicsQueue}, nil
}

// Destroy releases the upload command pool. Textures loaded through the
// store are never unloaded at runtime (spec §4.2 — "no runtime texture
// unloading"); callers free individual images themselves at process exit.
func (s *Store) Destroy() {
	vk.DestroyCommandPool(s.device, s.uploadPool, nil)
}

// pixelBuffer is the decoded host-side form handed to the staging upload.
type pixelBuffer struct {
	pixels []byte
	width  uint32
	height uint32
	format vk.Format
}

// rgbaFromImage implements the format-selection table of spec §4.2: 32-bit
// pixels -> RGBA8_UNORM, 8-bit -> R8_UNORM.
func rgbaFromImage(img image.Image) pixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if gray, ok := img.(*image.Gray); ok {
		return pixelBuffer{pixels: gray.Pix, width: uint32(w), height: uint32(h), format: vk.FormatR8Unorm}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	// RGB-only source is expanded to RGBA with alpha=0xFF. Known-ugly hot
	// loop (design note), kept because most decoded assets are plain RGB.
	for i := 3; i < len(rgba.Pix); i += 4 {
		if rgba.Pix[i] == 0 {
			rgba.Pix[i] = 0xFF
		}
	}
	return pixelBuffer{pixels: rgba.Pix, width: uint32(w), height: uint32(h), format: vk.FormatR8g8b8a8Unorm}
}

// LoadImage implements load_image(path): decodes a PNG/JPEG file, uploads it
// through staging, and returns the resulting device-local Texture. A missing
// file is fatal at startup (spec §4.2) — callers route the error through
// vkutil.Fatal themselves rather than this package calling os.Exit directly.
func (s *Store) LoadImage(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load_image: missing file %q: %w", path, err)
	}
	defer f.Close()

	img, err := decodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("load_image: decoding %q: %w", path, err)
	}

	return s.upload(rgbaFromImage(img))
}

func decodeImage(f *os.File) (image.Image, error) {
	br := bufio.NewReader(f)
	img, _, err := image.Decode(br)
	if err == nil {
		return img, nil
	}
	// image.Decode only knows formats registered via blank import; fall back
	// to imaging's broader decoder set (also covers BMP/TIFF/GIF).
	if _, seekErr := f.Seek(0, 0); seekErr != nil {
		return nil, err
	}
	return imaging.Decode(f)
}

// LoadFromSurface implements load_from_surface(pixels): wraps an
// already-decoded in-memory image (e.g. a debug-UI render target) without
// touching the filesystem.
func (s *Store) LoadFromSurface(img image.Image) (*Texture, error) {
	return s.upload(rgbaFromImage(img))
}

// upload stages pb.pixels through HostVisibleStaging, creates a device-local
// image in DeviceImages, copies via a one-shot command buffer, and
// transitions the result to SHADER_READ_ONLY_OPTIMAL (spec §4.2).
func (s *Store) upload(pb pixelBuffer) (*Texture, error) {
	return s.uploadLayers(pb.pixels, pb.width, pb.height, 1, pb.format, vk.ImageViewType2d)
}

func bytesPerPixelFor(format vk.Format) vk.DeviceSize {
	switch format {
	case vk.FormatR8Unorm:
		return 1
	case vk.FormatR32g32b32a32Sfloat:
		return 16
	default:
		return 4
	}
}

// uploadLayers is the shared staging/copy/transition path for both plain 2D
// textures (layers=1) and cubemaps (layers=6).
func (s *Store) uploadLayers(pixels []byte, width, height, layers uint32, format vk.Format, viewType vk.ImageViewType) (*Texture, error) {
	size := vk.DeviceSize(width) * vk.DeviceSize(height) * vk.DeviceSize(layers) * bytesPerPixelFor(format)

	stagingRegion := s.pool.Region(memory.HostVisibleStaging)
	stagingOffset := stagingRegion.Allocate(size)
	defer stagingRegion.Free(stagingOffset, size)

	var mapped unsafe.Pointer
	ret := vk.MapMemory(s.device, stagingRegion.Handle, stagingOffset, size, 0, &mapped)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("mapping staging memory: %w", vkutil.NewError(ret))
	}
	vk.Memcopy(mapped, pixels)
	vk.UnmapMemory(s.device, stagingRegion.Handle)

	stagingBuf, err := createStagingBuffer(s.device, stagingRegion.Handle, stagingOffset, size)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyBuffer(s.device, stagingBuf, nil)

	img, imgOffset, err := s.createDeviceImage(width, height, layers, format)
	if err != nil {
		return nil, err
	}

	if err := s.copyAndTransition(img, stagingBuf, width, height, layers); err != nil {
		return nil, err
	}

	view, err := createView(s.device, img, format, viewType, layers)
	if err != nil {
		return nil, err
	}

	return &Texture{Image: img, View: view, Offset: imgOffset, Format: format, Width: width, Height: height, Layers: layers}, nil
}

// createStagingBuffer wraps an already-allocated range of the
// HostVisibleStaging region in a vk.Buffer so it can be the source of a
// vkCmdCopyBufferToImage; bound at the same offset the memory was mapped at.
func createStagingBuffer(device vk.Device, mem vk.DeviceMemory, offset, size vk.DeviceSize) (vk.Buffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if vkutil.IsError(ret) {
		return vk.Buffer(vk.NullHandle), fmt.Errorf("creating staging buffer: %w", vkutil.NewError(ret))
	}
	if ret := vk.BindBufferMemory(device, buf, mem, offset); vkutil.IsError(ret) {
		return vk.Buffer(vk.NullHandle), fmt.Errorf("binding staging buffer memory: %w", vkutil.NewError(ret))
	}
	return buf, nil
}

// createDeviceImage allocates a device-local image in the DeviceImages
// region and binds it at the returned offset.
func (s *Store) createDeviceImage(width, height, layers uint32, format vk.Format) (vk.Image, vk.DeviceSize, error) {
	flags := vk.ImageCreateFlags(0)
	if layers == 6 {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var img vk.Image
	ret := vk.CreateImage(s.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent:    vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels: 1,
		ArrayLayers: layers,
		Samples:   vk.SampleCount1Bit,
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if vkutil.IsError(ret) {
		return vk.Image(vk.NullHandle), 0, fmt.Errorf("creating texture image: %w", vkutil.NewError(ret))
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(s.device, img, &req)
	req.Deref()

	region := s.pool.Region(memory.DeviceImages)
	offset := region.Allocate(req.Size)

	if ret := vk.BindImageMemory(s.device, img, region.Handle, offset); vkutil.IsError(ret) {
		return vk.Image(vk.NullHandle), 0, fmt.Errorf("binding texture image memory: %w", vkutil.NewError(ret))
	}
	return img, offset, nil
}

// copyAndTransition runs the one-shot command buffer: UNDEFINED ->
// TRANSFER_DST_OPTIMAL, buffer-to-image copy, TRANSFER_DST_OPTIMAL ->
// SHADER_READ_ONLY_OPTIMAL. The staging buffer is freed by the caller once
// the copy fence signals (spec §4.2).
func (s *Store) copyAndTransition(img vk.Image, stagingBuf vk.Buffer, width, height, layers uint32) error {
	cb, err := s.beginOneShot()
	if err != nil {
		return err
	}

	subresource := vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount:     1,
		LayerCount:     layers,
	}

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       0,
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutTransferDstOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange:    subresource,
		}})

	vk.CmdCopyBufferToImage(cb, stagingBuf, img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: layers,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}})

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange:    subresource,
		}})

	return s.endOneShot(cb)
}

func (s *Store) beginOneShot() (vk.CommandBuffer, error) {
	cbs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(s.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        s.uploadPool,
		Level:               vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cbs)
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("allocating one-shot command buffer: %w", vkutil.NewError(ret))
	}
	cb := cbs[0]

	ret = vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if vkutil.IsError(ret) {
		return nil, fmt.Errorf("beginning one-shot command buffer: %w", vkutil.NewError(ret))
	}
	return cb, nil
}

// endOneShot submits and blocks on a fence, then frees the command buffer.
// The staging buffer is only safe to free once this returns (spec §4.2:
// "freed immediately after the copy fence signals").
func (s *Store) endOneShot(cb vk.CommandBuffer) error {
	if ret := vk.EndCommandBuffer(cb); vkutil.IsError(ret) {
		return fmt.Errorf("ending one-shot command buffer: %w", vkutil.NewError(ret))
	}

	var fence vk.Fence
	if ret := vk.CreateFence(s.device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence); vkutil.IsError(ret) {
		return fmt.Errorf("creating one-shot fence: %w", vkutil.NewError(ret))
	}
	defer vk.DestroyFence(s.device, fence, nil)

	cb2 := cb
	ret := vk.QueueSubmit(s.uploadQueue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb2},
	}}, fence)
	if vkutil.IsError(ret) {
		return fmt.Errorf("submitting one-shot command buffer: %w", vkutil.NewError(ret))
	}

	if ret := vk.WaitForFences(s.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64); vkutil.IsError(ret) {
		return fmt.Errorf("waiting on one-shot fence: %w", vkutil.NewError(ret))
	}

	vk.FreeCommandBuffers(s.device, s.uploadPool, 1, []vk.CommandBuffer{cb})
	return nil
}

func createView(device vk.Device, img vk.Image, format vk.Format, viewType vk.ImageViewType, layers uint32) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: layers,
		},
	}, nil, &view)
	if vkutil.IsError(ret) {
		return vk.NullHandle, fmt.Errorf("creating image view: %w", vkutil.NewError(ret))
	}
	return view, nil
}
