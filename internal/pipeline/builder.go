package pipeline

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/descriptor"
	"github.com/ashforge/vkengine/internal/shader"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// Pipeline is a built graphics pipeline plus the layout it was built with,
// kept together so deferred destruction (spec §4.5) can enqueue both.
type Pipeline struct {
	Effect Effect
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// Builder owns every live Pipeline, keyed by effect, and the shader
// directory shaders are resolved from.
type Builder struct {
	device    vk.Device
	registry  *descriptor.Registry
	shaderDir string
	built     map[Effect]*Pipeline
}

func New(device vk.Device, registry *descriptor.Registry, shaderDir string) *Builder {
	return &Builder{device: device, registry: registry, shaderDir: shaderDir, built: make(map[Effect]*Pipeline, effectCount)}
}

// BuildAll constructs every effect pipeline against its declared
// (render-pass, subpass) target. targets maps an effect to the pass/subpass
// it renders in, supplied by the render-pass graph once it has created its
// four passes.
func (b *Builder) BuildAll(targets map[Effect]Target) error {
	for effect := Effect(0); effect < effectCount; effect++ {
		target, ok := targets[effect]
		if !ok {
			return fmt.Errorf("no render target registered for effect %s", effect)
		}
		p, err := b.build(effect, target)
		if err != nil {
			return fmt.Errorf("building pipeline %s: %w", effect, err)
		}
		b.built[effect] = p
	}
	return nil
}

// Target is the (render-pass, subpass-index) pair a pipeline is built for.
type Target struct {
	RenderPass vk.RenderPass
	Subpass    uint32
	Extent     vk.Extent2D
	MSAA       vk.SampleCountFlagBits
}

func (b *Builder) build(effect Effect, target Target) (*Pipeline, error) {
	s := effectSpecs[effect]

	stages, err := b.loadStages(s)
	if err != nil {
		return nil, err
	}
	defer shader.DestroyAll(b.device, stages)

	layout, err := b.buildLayout(s)
	if err != nil {
		return nil, err
	}

	// specializeData/specInfo back the fragment-stage specialization constant
	// the weapon-selector variants use to distinguish Left/Right (spec §4.4):
	// declared here so they stay alive through vkCreateGraphicsPipelines.
	var specializeData [4]byte
	var specInfo vk.SpecializationInfo
	if s.specializeBool {
		binary.LittleEndian.PutUint32(specializeData[:], s.specializeValue)
		specInfo = vk.SpecializationInfo{
			MapEntryCount: 1,
			PMapEntries:   []vk.SpecializationMapEntry{{ConstantID: 0, Offset: 0, Size: uint(len(specializeData))}},
			DataSize:      uint(len(specializeData)),
			PData:         unsafe.Pointer(&specializeData[0]),
		}
	}

	shaderStages := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i, st := range stages {
		shaderStages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  st.Stage,
			Module: st.Module,
			PName:  st.Entry,
		}
		if s.specializeBool && st.Stage == vk.ShaderStageFragmentBit {
			shaderStages[i].PSpecializationInfo = &specInfo
		}
	}

	vertexInput := &vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}

	inputAssembly := &vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: s.topology,
	}

	viewportState := &vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	polygonMode := vk.PolygonModeFill
	if s.wireframe {
		polygonMode = vk.PolygonModeLine
	}
	rasterization := &vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode,
		CullMode:    vk.CullModeFlags(s.cullMode),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	samples := vk.SampleCount1Bit
	if target.MSAA != 0 {
		samples = target.MSAA
	}
	multisample := &vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: samples,
	}

	depthStencil := &vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToUint(s.depthTest)),
		DepthWriteEnable: vk.Bool32(boolToUint(s.depthWrite)),
		DepthCompareOp:   vk.CompareOpLessOrEqual,
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:    vk.Bool32(boolToUint(s.blendEnable)),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	colorBlend := &vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	var dynamicState *vk.PipelineDynamicStateCreateInfo
	if s.dynamicViewport {
		dynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		}
	}

	var tessellation *vk.PipelineTessellationStateCreateInfo
	if s.hasTessellation {
		tessellation = &vk.PipelineTessellationStateCreateInfo{
			SType:              vk.StructureTypePipelineTessellationStateCreateInfo,
			PatchControlPoints: 4,
		}
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:           uint32(len(shaderStages)),
		PStages:              shaderStages,
		PVertexInputState:    vertexInput,
		PInputAssemblyState:  inputAssembly,
		PTessellationState:   tessellation,
		PViewportState:       viewportState,
		PRasterizationState:  rasterization,
		PMultisampleState:    multisample,
		PDepthStencilState:   depthStencil,
		PColorBlendState:     colorBlend,
		PDynamicState:        dynamicState,
		Layout:               layout,
		RenderPass:           target.RenderPass,
		Subpass:              target.Subpass,
		BasePipelineIndex:    -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(b.device, vk.NullHandle, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if vkutil.IsError(ret) {
		vk.DestroyPipelineLayout(b.device, layout, nil)
		return nil, fmt.Errorf("vkCreateGraphicsPipelines: %w", vkutil.NewError(ret))
	}

	return &Pipeline{Effect: effect, Handle: pipelines[0], Layout: layout}, nil
}

func (b *Builder) loadStages(s spec) ([]shader.Stage, error) {
	if s.hasTessellation {
		return shader.LoadTessellation(b.device, b.shaderDir, s.shaderBaseName)
	}
	return shader.LoadPair(b.device, b.shaderDir, s.shaderBaseName)
}

// buildLayout assembles a pipeline layout from the effect's descriptor-set
// tags and push-constant ranges. Effects that share descriptor tags and
// push-constant byte layouts (the two weapon-selector variants) end up with
// structurally identical layouts; build's fragment-stage specialization
// constant is what actually distinguishes them (spec §4.4), not the layout.
func (b *Builder) buildLayout(s spec) (vk.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(s.descriptorTags))
	for i, tag := range s.descriptorTags {
		setLayouts[i] = b.registry.Layout(tag)
	}

	ranges := make([]vk.PushConstantRange, len(s.pushConstants))
	for i, pc := range s.pushConstants {
		ranges[i] = vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(pc.stage), Offset: pc.offset, Size: pc.size}
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(b.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if vkutil.IsError(ret) {
		return vk.NullHandle, fmt.Errorf("vkCreatePipelineLayout: %w", vkutil.NewError(ret))
	}
	return layout, nil
}

// Get returns the built pipeline for effect, or nil if BuildAll has not run.
func (b *Builder) Get(effect Effect) *Pipeline {
	return b.built[effect]
}

// Rebuild replaces the pipeline for effect (shader reload or resize),
// returning the old one so the caller can enqueue it into deferred
// destruction (spec §4.5) instead of destroying it immediately.
func (b *Builder) Rebuild(effect Effect, target Target) (old *Pipeline, err error) {
	old = b.built[effect]
	fresh, err := b.build(effect, target)
	if err != nil {
		return old, err
	}
	b.built[effect] = fresh
	return old, nil
}

func boolToUint(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
