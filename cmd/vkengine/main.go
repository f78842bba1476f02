// Command vkengine is the single executable entry point (spec §6): no
// required arguments, one boolean flag enabling GPU validation layers.
// Grounded on the teacher's application.go bring-up sequence, generalized
// from its BaseVulkanApp/BasePlatform interface pair into the single
// platform.Engine value the rest of this module shares.
package main

import (
	"fmt"
	"os"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/pflag"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/config"
	"github.com/ashforge/vkengine/internal/descriptor"
	"github.com/ashforge/vkengine/internal/destruction"
	"github.com/ashforge/vkengine/internal/frame"
	"github.com/ashforge/vkengine/internal/framebuffer"
	"github.com/ashforge/vkengine/internal/frameloop"
	"github.com/ashforge/vkengine/internal/jobsystem"
	"github.com/ashforge/vkengine/internal/memory"
	"github.com/ashforge/vkengine/internal/pipeline"
	"github.com/ashforge/vkengine/internal/platform"
	"github.com/ashforge/vkengine/internal/renderpass"
	"github.com/ashforge/vkengine/internal/swapchain"
	"github.com/ashforge/vkengine/internal/texture"
)

func main() {
	validate := pflag.Bool("validate", false, "enable Vulkan validation layers")
	pflag.Parse()

	if err := run(*validate); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run(validate bool) error {
	cfg := config.Default()
	cfg.ValidationLayers = validate

	engine, err := platform.New(cfg)
	if err != nil {
		return fmt.Errorf("engine bring-up: %w", err)
	}
	defer engine.Destroy()

	pool, err := memory.NewPool(engine.Device, engine.MemoryProps, 0xFFFFFFFF, map[memory.Kind]vk.DeviceSize{
		memory.DeviceLocal:        256,
		memory.HostVisibleStaging: 256,
		memory.DeviceImages:       256,
		memory.HostCoherentMisc:   256,
		memory.HostCoherentUBO:    256,
	})
	if err != nil {
		return fmt.Errorf("memory pool bring-up: %w", err)
	}
	defer pool.Destroy()

	textures, err := texture.New(engine.Device, pool, engine.GraphicsQueue, engine.GraphicsFamily)
	if err != nil {
		return fmt.Errorf("texture store bring-up: %w", err)
	}
	defer textures.Destroy()

	descriptors, err := descriptor.New(engine.Device)
	if err != nil {
		return fmt.Errorf("descriptor layout registry bring-up: %w", err)
	}
	defer descriptors.Destroy()
	if err := descriptors.BuildPool(effectUsages()); err != nil {
		return fmt.Errorf("descriptor pool bring-up: %w", err)
	}

	sc, err := swapchain.New(engine.Device, engine.PhysicalDevice, engine.Surface, config.SwapchainImageCount, vk.Swapchain(vk.NullHandle))
	if err != nil {
		return fmt.Errorf("swapchain bring-up: %w", err)
	}
	defer sc.Destroy()

	msaaSamples := pickMSAASamples(cfg)

	depth, err := swapchain.NewDepthTarget(engine.Device, pool.Region(memory.DeviceImages), vk.FormatD32Sfloat, sc.Extent, msaaSamples)
	if err != nil {
		return fmt.Errorf("depth target bring-up: %w", err)
	}
	defer depth.Destroy()

	var msaaColor *swapchain.Target
	if cfg.MSAAEnabled {
		msaaColor, err = swapchain.NewMSAAColorTarget(engine.Device, pool.Region(memory.DeviceImages), sc.Format.Format, sc.Extent, msaaSamples)
		if err != nil {
			return fmt.Errorf("msaa color target bring-up: %w", err)
		}
		defer msaaColor.Destroy()
	}

	shadowDepth, err := swapchain.NewShadowDepthArray(engine.Device, pool.Region(memory.DeviceImages), config.ShadowmapImageDim, config.ShadowCascadeCount)
	if err != nil {
		return fmt.Errorf("shadow depth array bring-up: %w", err)
	}
	defer shadowDepth.Destroy()

	graph, err := renderpass.New(engine.Device, sc.Format.Format, vk.FormatD32Sfloat, msaaSamples)
	if err != nil {
		return fmt.Errorf("render pass graph bring-up: %w", err)
	}
	defer graph.Destroy()

	perImage := make([]framebuffer.Views, len(sc.Views))
	for i, v := range sc.Views {
		views := framebuffer.Views{SwapchainView: v, DepthView: depth.View}
		if msaaColor != nil {
			views.MSAAColorView = msaaColor.View
		}
		perImage[i] = views
	}
	fbs, err := framebuffer.Build(engine.Device, graph, shadowDepth.LayerViews, perImage, sc.Extent, cfg.MSAAEnabled)
	if err != nil {
		return fmt.Errorf("framebuffer set bring-up: %w", err)
	}
	defer fbs.Destroy()

	shaderDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving shader directory: %w", err)
	}
	builder := pipeline.New(engine.Device, descriptors, shaderDir)
	if err := builder.BuildAll(pipelineTargets(graph, sc.Extent, msaaSamples)); err != nil {
		return fmt.Errorf("pipeline bring-up: %w", err)
	}

	jobs, err := jobsystem.New(engine.Device, engine.GraphicsFamily, engine.WorkerCount())
	if err != nil {
		return fmt.Errorf("job system bring-up: %w", err)
	}
	defer jobs.Destroy()

	frames, err := frame.New(engine.Device, engine.GraphicsFamily, config.SwapchainImageCount, pool.Region(memory.HostCoherentUBO), uboSlotSize)
	if err != nil {
		return fmt.Errorf("frame resource pool bring-up: %w", err)
	}
	defer frames.Destroy()

	pipelineGraveyard := destruction.New(engine.Device, config.SwapchainImageCount)

	loop := &frameloop.Loop{
		Device:          engine.Device,
		Swapchain:       sc.Handle,
		GraphicsQueue:   engine.GraphicsQueue,
		PresentQueue:    engine.PresentQueue,
		Frames:          frames,
		FBs:             fbs,
		Graph:           graph,
		Jobs:            jobs,
		Retired:         pipelineGraveyard,
		CascadeCount:    config.ShadowCascadeCount,
		ShadowImage:     shadowDepth.Image,
		SwapchainExtent: sc.Extent,
	}

	engine.Log.Info.Printf("%s bring-up complete at %s, validation=%v", cfg.AppName, cfg.Resolution, validate)

	for !engine.Window.ShouldClose() {
		glfw.PollEvents()
		// update/upload/render are nil until an owning application supplies a
		// concrete asset.SceneGraph; the frame loop still exercises acquire,
		// fence wait, worker pool reset, and present every iteration.
		if err := loop.RunFrame(nil, nil, nil); err != nil {
			engine.Log.Error.Printf("frame: %v", err)
		}
	}

	vk.DeviceWaitIdle(engine.Device)
	pipelineGraveyard.DrainImmediately()

	return nil
}

// uboSlotSize is the fixed per-range byte budget for each of a frame slot's
// four UBO sub-ranges (cascade matrices, dynamic lights, skinning matrices,
// frustum planes); generous relative to any single range's actual content.
const uboSlotSize = 64 * 1024

func pickMSAASamples(cfg config.Engine) vk.SampleCountFlagBits {
	if !cfg.MSAAEnabled {
		return vk.SampleCount1Bit
	}
	return vk.SampleCount4Bit
}

// effectUsages declares how many descriptor sets each layout tag needs: the
// number of effects in pipeline's effect table that bind the tag, scaled by
// swapchain image count so every frame in flight gets its own set (spec
// §4.3's pool-sizing open question, resolved from the pipeline inventory
// rather than a hand-picked guess).
func effectUsages() []descriptor.EffectUsage {
	n := uint32(config.SwapchainImageCount)
	return []descriptor.EffectUsage{
		{Tag: descriptor.ShadowPass, Count: n * 1},            // Shadowmap
		{Tag: descriptor.PbrMaterial, Count: n * 2},           // Scene3D, PbrWater
		{Tag: descriptor.IblCubemapsAndBrdfLut, Count: n * 3}, // Skybox, Scene3D, PbrWater
		{Tag: descriptor.DynamicLights, Count: n * 2},         // Scene3D, PbrWater
		{Tag: descriptor.SingleTextureFrag, Count: n * 11},    // every textured 2D/3D effect shares this tag
		{Tag: descriptor.TwoTexturesFrag, Count: n * 0},       // no effect binds this layout
		{Tag: descriptor.SkinningMatrices, Count: n * 2},      // Shadowmap, ColoredGeometrySkinned
		{Tag: descriptor.CascadeMatricesFrag, Count: n * 1},   // Scene3D
		{Tag: descriptor.FrustumPlanes, Count: n * 1},         // TesselatedGround
	}
}

// pipelineTargets maps every fixed render effect to the (render-pass,
// subpass) it is built against (spec §4.4/§4.6).
func pipelineTargets(graph *renderpass.Graph, extent vk.Extent2D, msaa vk.SampleCountFlagBits) map[pipeline.Effect]pipeline.Target {
	shadow := pipeline.Target{RenderPass: graph.Shadowmap, Extent: vk.Extent2D{Width: config.ShadowmapImageDim, Height: config.ShadowmapImageDim}}
	skybox := pipeline.Target{RenderPass: graph.Skybox, Extent: extent, MSAA: msaa}
	colorDepth := pipeline.Target{RenderPass: graph.ColorDepth, Extent: extent, MSAA: msaa}
	gui := pipeline.Target{RenderPass: graph.GUI, Extent: extent}

	return map[pipeline.Effect]pipeline.Target{
		pipeline.Shadowmap:                  shadow,
		pipeline.Skybox:                      skybox,
		pipeline.Scene3D:                     colorDepth,
		pipeline.PbrWater:                    colorDepth,
		pipeline.ColoredGeometry:             colorDepth,
		pipeline.ColoredGeometryTriStrip:     colorDepth,
		pipeline.ColoredGeometrySkinned:      colorDepth,
		pipeline.ColoredModelWireframe:       colorDepth,
		pipeline.TesselatedGround:            colorDepth,
		pipeline.DebugBillboard:              colorDepth,
		pipeline.GreenGui:                    gui,
		pipeline.GreenGuiWeaponSelectorLeft:  gui,
		pipeline.GreenGuiWeaponSelectorRight: gui,
		pipeline.GreenGuiLines:               gui,
		pipeline.GreenGuiSdfFont:             gui,
		pipeline.GreenGuiTriangle:            gui,
		pipeline.GreenGuiRadarDots:           gui,
		pipeline.ImGui:                       gui,
	}
}
