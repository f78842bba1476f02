// Package renderpass implements the RenderPassGraph of spec §4.6: the four
// fixed passes (Shadowmap, Skybox, Color+Depth, GUI), declared once at
// startup with their exact attachment/subpass/dependency structure.
// Grounded on the teacher's renderpass.go CreateRenderPass plumbing.
package renderpass

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// ShadowmapFormat is the fixed depth format of the shadow pass (spec §4.6).
const ShadowmapFormat = vk.FormatD32Sfloat

// Graph owns the four fixed render passes.
type Graph struct {
	device      vk.Device
	Shadowmap   vk.RenderPass
	Skybox      vk.RenderPass
	ColorDepth  vk.RenderPass
	GUI         vk.RenderPass
	msaaEnabled bool
}

// New creates all four passes. colorFormat/depthFormat come from the
// swapchain and the chosen depth format; msaaSamples > 1 enables the
// MSAA-resolve attachment wiring in the Skybox and Color+Depth passes.
func New(device vk.Device, colorFormat, depthFormat vk.Format, msaaSamples vk.SampleCountFlagBits) (*Graph, error) {
	g := &Graph{device: device, msaaEnabled: msaaSamples > vk.SampleCount1Bit}

	var err error
	if g.Shadowmap, err = g.createShadowmapPass(); err != nil {
		return nil, err
	}
	if g.Skybox, err = g.createSkyboxPass(colorFormat, msaaSamples); err != nil {
		return nil, err
	}
	if g.ColorDepth, err = g.createColorDepthPass(colorFormat, depthFormat, msaaSamples); err != nil {
		return nil, err
	}
	if g.GUI, err = g.createGUIPass(colorFormat); err != nil {
		return nil, err
	}
	return g, nil
}

// createShadowmapPass: one colorless subpass writing a single depth
// attachment (spec §4.6 pass 1).
func (g *Graph) createShadowmapPass() (vk.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         ShadowmapFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
	}}

	depthRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		PDepthStencilAttachment: &depthRef,
	}

	deps := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
		{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
		},
	}

	return g.create(attachments, []vk.SubpassDescription{subpass}, deps)
}

// createSkyboxPass: single subpass, one color attachment, resolved from MSAA
// when enabled (spec §4.6 pass 2).
func (g *Graph) createSkyboxPass(colorFormat vk.Format, samples vk.SampleCountFlagBits) (vk.RenderPass, error) {
	if !g.msaaEnabled {
		attachments := []vk.AttachmentDescription{{
			Format: colorFormat, Samples: vk.SampleCount1Bit,
			LoadOp: vk.AttachmentLoadOpDontCare, StoreOp: vk.AttachmentStoreOpStore,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutUndefined, FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
		}}
		colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
		subpass := vk.SubpassDescription{PipelineBindPoint: vk.PipelineBindPointGraphics, ColorAttachmentCount: 1, PColorAttachments: []vk.AttachmentReference{colorRef}}
		return g.create(attachments, []vk.SubpassDescription{subpass}, nil)
	}

	attachments := []vk.AttachmentDescription{
		{ // 0: resolved swapchain target
			Format: colorFormat, Samples: vk.SampleCount1Bit,
			LoadOp: vk.AttachmentLoadOpDontCare, StoreOp: vk.AttachmentStoreOpStore,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutUndefined, FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
		},
		{ // 1: MSAA color target
			Format: colorFormat, Samples: samples,
			LoadOp: vk.AttachmentLoadOpDontCare, StoreOp: vk.AttachmentStoreOpStore,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutUndefined, FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	colorRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutColorAttachmentOptimal}
	resolveRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PResolveAttachments:     []vk.AttachmentReference{resolveRef},
	}
	return g.create(attachments, []vk.SubpassDescription{subpass}, nil)
}

// createColorDepthPass: one color attachment (MSAA-resolved as above) and
// one depth attachment, framed by two external dependencies synchronizing
// prior shadow-pass reads against this pass's depth writes (spec §4.6 pass 3).
func (g *Graph) createColorDepthPass(colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits) (vk.RenderPass, error) {
	colorSamples := vk.SampleCount1Bit
	if g.msaaEnabled {
		colorSamples = samples
	}

	attachments := []vk.AttachmentDescription{
		{ // 0: color, continues from skybox's COLOR_ATTACHMENT_OPTIMAL
			Format: colorFormat, Samples: colorSamples,
			LoadOp: vk.AttachmentLoadOpLoad, StoreOp: vk.AttachmentStoreOpStore,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutColorAttachmentOptimal, FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
		},
		{ // 1: depth
			Format: depthFormat, Samples: colorSamples,
			LoadOp: vk.AttachmentLoadOpClear, StoreOp: vk.AttachmentStoreOpDontCare,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutDepthStencilAttachmentOptimal, FinalLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
	depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	deps := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
			DstAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
		{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
		},
	}

	if g.msaaEnabled {
		attachments = append(attachments, vk.AttachmentDescription{
			Format: colorFormat, Samples: vk.SampleCount1Bit,
			LoadOp: vk.AttachmentLoadOpDontCare, StoreOp: vk.AttachmentStoreOpStore,
			StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutColorAttachmentOptimal, FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
		})
		resolveRef := vk.AttachmentReference{Attachment: 2, Layout: vk.ImageLayoutColorAttachmentOptimal}
		subpass.PResolveAttachments = []vk.AttachmentReference{resolveRef}
	}

	return g.create(attachments, []vk.SubpassDescription{subpass}, deps)
}

// createGUIPass: single color attachment, transitioning to PRESENT_SRC_KHR
// (spec §4.6 pass 4).
func (g *Graph) createGUIPass(colorFormat vk.Format) (vk.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format: colorFormat, Samples: vk.SampleCount1Bit,
		LoadOp: vk.AttachmentLoadOpLoad, StoreOp: vk.AttachmentStoreOpStore,
		StencilLoadOp: vk.AttachmentLoadOpDontCare, StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout: vk.ImageLayoutColorAttachmentOptimal, FinalLayout: vk.ImageLayoutPresentSrc,
	}}
	colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
	subpass := vk.SubpassDescription{PipelineBindPoint: vk.PipelineBindPointGraphics, ColorAttachmentCount: 1, PColorAttachments: []vk.AttachmentReference{colorRef}}
	return g.create(attachments, []vk.SubpassDescription{subpass}, nil)
}

func (g *Graph) create(attachments []vk.AttachmentDescription, subpasses []vk.SubpassDescription, deps []vk.SubpassDependency) (vk.RenderPass, error) {
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(g.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}, nil, &pass)
	if vkutil.IsError(ret) {
		return vk.NullHandle, fmt.Errorf("vkCreateRenderPass: %w", vkutil.NewError(ret))
	}
	return pass, nil
}

// Destroy releases all four passes, e.g. during resize teardown (spec §4.10).
func (g *Graph) Destroy() {
	vk.DestroyRenderPass(g.device, g.Shadowmap, nil)
	vk.DestroyRenderPass(g.device, g.Skybox, nil)
	vk.DestroyRenderPass(g.device, g.ColorDepth, nil)
	vk.DestroyRenderPass(g.device, g.GUI, nil)
}
