// Package framebuffer builds one framebuffer per (render-pass, swapchain
// image) pair and rebuilds the whole set on resize (spec §4.6/§4.10).
// Grounded on the teacher's swapchain.go framebuffer-per-image pattern.
package framebuffer

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/config"
	"github.com/ashforge/vkengine/internal/renderpass"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// Set owns every framebuffer the frame loop touches: one shadow framebuffer
// per cascade (fixed SHADOWMAP_IMAGE_DIM), and one skybox/color-depth/GUI
// framebuffer per swapchain image.
type Set struct {
	device vk.Device

	ShadowByCascade []vk.Framebuffer
	Skybox          []vk.Framebuffer
	ColorDepth      []vk.Framebuffer
	GUI             []vk.Framebuffer
}

// Views bundles the image views a swapchain image contributes to the
// Skybox/Color+Depth/GUI chain.
type Views struct {
	SwapchainView vk.ImageView
	MSAAColorView vk.ImageView // only used when MSAA is enabled
	DepthView     vk.ImageView
}

// Build constructs the full framebuffer set. shadowCascadeViews has one
// entry per cascade (config.ShadowCascadeCount); perImage has one entry per
// swapchain image.
func Build(device vk.Device, graph *renderpass.Graph, shadowCascadeViews []vk.ImageView, perImage []Views, extent vk.Extent2D, msaaEnabled bool) (*Set, error) {
	s := &Set{device: device}

	for _, view := range shadowCascadeViews {
		fb, err := create(device, graph.Shadowmap, []vk.ImageView{view}, config.ShadowmapImageDim, config.ShadowmapImageDim)
		if err != nil {
			return nil, fmt.Errorf("building shadow framebuffer: %w", err)
		}
		s.ShadowByCascade = append(s.ShadowByCascade, fb)
	}

	for _, v := range perImage {
		var skyboxViews []vk.ImageView
		if msaaEnabled {
			skyboxViews = []vk.ImageView{v.SwapchainView, v.MSAAColorView}
		} else {
			skyboxViews = []vk.ImageView{v.SwapchainView}
		}
		fb, err := create(device, graph.Skybox, skyboxViews, extent.Width, extent.Height)
		if err != nil {
			return nil, fmt.Errorf("building skybox framebuffer: %w", err)
		}
		s.Skybox = append(s.Skybox, fb)

		var colorDepthViews []vk.ImageView
		if msaaEnabled {
			colorDepthViews = []vk.ImageView{v.MSAAColorView, v.DepthView, v.SwapchainView}
		} else {
			colorDepthViews = []vk.ImageView{v.SwapchainView, v.DepthView}
		}
		fb, err = create(device, graph.ColorDepth, colorDepthViews, extent.Width, extent.Height)
		if err != nil {
			return nil, fmt.Errorf("building color+depth framebuffer: %w", err)
		}
		s.ColorDepth = append(s.ColorDepth, fb)

		fb, err = create(device, graph.GUI, []vk.ImageView{v.SwapchainView}, extent.Width, extent.Height)
		if err != nil {
			return nil, fmt.Errorf("building gui framebuffer: %w", err)
		}
		s.GUI = append(s.GUI, fb)
	}

	return s, nil
}

func create(device vk.Device, pass vk.RenderPass, views []vk.ImageView, width, height uint32) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}, nil, &fb)
	if vkutil.IsError(ret) {
		return vk.NullHandle, vkutil.NewError(ret)
	}
	return fb, nil
}

// Destroy releases every framebuffer in the set (spec §4.10 resize teardown).
func (s *Set) Destroy() {
	destroyAll(s.device, s.ShadowByCascade)
	destroyAll(s.device, s.Skybox)
	destroyAll(s.device, s.ColorDepth)
	destroyAll(s.device, s.GUI)
	s.ShadowByCascade, s.Skybox, s.ColorDepth, s.GUI = nil, nil, nil, nil
}

func destroyAll(device vk.Device, fbs []vk.Framebuffer) {
	for _, fb := range fbs {
		vk.DestroyFramebuffer(device, fb, nil)
	}
}
