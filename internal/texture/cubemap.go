package texture

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// CubemapFace is one of the 6 render targets a cubemap bake writes into.
type CubemapFace int

const (
	FacePosX CubemapFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	faceCount
)

// RenderToCubemapFunc draws one face of a cubemap bake pass; the caller
// supplies the actual pipeline/draw calls (equirectangular projection,
// irradiance convolution, or prefiltered-specular convolution), this package
// only owns the target image/view/memory lifecycle and hands every face the
// same one-shot primary command buffer to record into.
type RenderToCubemapFunc func(face CubemapFace, mipLevel uint32, cb vk.CommandBuffer, target vk.ImageView) error

// LoadCubemap implements load_cubemap(equirectangular): creates a 6-layer
// cubemap image of the given dimension, then for every face invokes render
// to convert the equirectangular source into that face via draw, mirroring
// the offline render-to-cubemap passes the original engine runs at startup
// for its environment map and IBL derivatives.
func (s *Store) LoadCubemap(dim uint32, format vk.Format, render RenderToCubemapFunc) (*Texture, error) {
	img, offset, err := s.createDeviceImage(dim, dim, faceCount, format)
	if err != nil {
		return nil, err
	}

	view, err := createView(s.device, img, format, vk.ImageViewTypeCube, faceCount)
	if err != nil {
		return nil, err
	}

	if err := s.renderCubemapFaces(img, format, dim, render); err != nil {
		return nil, err
	}

	return &Texture{Image: img, View: view, Offset: offset, Format: format, Width: dim, Height: dim, Layers: faceCount}, nil
}

// renderCubemapFaces creates a per-face 2D view into the cubemap image,
// records all six faces via render into a single one-shot command buffer,
// and leaves the whole image in SHADER_READ_ONLY_OPTIMAL when done.
func (s *Store) renderCubemapFaces(img vk.Image, format vk.Format, dim uint32, render RenderToCubemapFunc) error {
	cb, err := s.beginOneShot()
	if err != nil {
		return err
	}

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:         vk.StructureTypeImageMemoryBarrier,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			OldLayout:     vk.ImageLayoutUndefined,
			NewLayout:     vk.ImageLayoutColorAttachmentOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: faceCount,
			},
		}})

	for face := CubemapFace(0); face < faceCount; face++ {
		faceView, err := createFaceView(s.device, img, format, uint32(face))
		if err != nil {
			return err
		}
		if err := render(face, 0, cb, faceView); err != nil {
			return fmt.Errorf("rendering cubemap face %d: %w", face, err)
		}
	}

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:         vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
			OldLayout:     vk.ImageLayoutColorAttachmentOptimal,
			NewLayout:     vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: faceCount,
			},
		}})

	return s.endOneShot(cb)
}

func createFaceView(device vk.Device, img vk.Image, format vk.Format, layer uint32) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount:     1,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
	}, nil, &view)
	if vkutil.IsError(ret) {
		return vk.NullHandle, fmt.Errorf("creating cubemap face view: %w", vkutil.NewError(ret))
	}
	return view, nil
}

// IBLDerivatives holds the three baked environment maps the PBR material
// descriptor set (IblCubemapsAndBrdfLut tag) binds.
type IBLDerivatives struct {
	Irradiance  *Texture
	Prefiltered *Texture
	BRDFLUT     *Texture
}

// BakeIBL runs the irradiance-convolution, prefiltered-specular, and BRDF
// LUT passes against an already-loaded environment cubemap. Each render
// function is supplied by the caller (owns the actual convolution shaders);
// this package only sequences the three bakes and assembles the result.
func (s *Store) BakeIBL(env *Texture, irradianceDim, prefilteredDim, brdfLUTDim uint32,
	irradiance, prefiltered RenderToCubemapFunc, brdfLUT func(vk.CommandBuffer, vk.ImageView) error) (*IBLDerivatives, error) {

	irr, err := s.LoadCubemap(irradianceDim, vk.FormatR16g16b16a16Sfloat, irradiance)
	if err != nil {
		return nil, fmt.Errorf("baking irradiance map: %w", err)
	}
	pre, err := s.LoadCubemap(prefilteredDim, vk.FormatR16g16b16a16Sfloat, prefiltered)
	if err != nil {
		return nil, fmt.Errorf("baking prefiltered map: %w", err)
	}

	lut, lutOffset, err := s.createDeviceImage(brdfLUTDim, brdfLUTDim, 1, vk.FormatR16g16Sfloat)
	if err != nil {
		return nil, fmt.Errorf("creating BRDF LUT image: %w", err)
	}
	lutView, err := createView(s.device, lut, vk.FormatR16g16Sfloat, vk.ImageViewType2d, 1)
	if err != nil {
		return nil, err
	}
	cb, err := s.beginOneShot()
	if err != nil {
		return nil, err
	}
	if err := brdfLUT(cb, lutView); err != nil {
		return nil, fmt.Errorf("baking BRDF LUT: %w", err)
	}
	if err := s.endOneShot(cb); err != nil {
		return nil, err
	}

	return &IBLDerivatives{
		Irradiance:  irr,
		Prefiltered: pre,
		BRDFLUT:     &Texture{Image: lut, View: lutView, Offset: lutOffset, Format: vk.FormatR16g16Sfloat, Width: brdfLUTDim, Height: brdfLUTDim, Layers: 1},
	}, nil
}
