// Package pipeline implements the PipelineBuilder of spec §4.4: one graphics
// pipeline per fixed render-effect tag, built from shader modules, a
// fixed-function state table, a pipeline layout assembled from descriptor
// tags and push-constant ranges, and a (render-pass, subpass) target.
// Grounded on the teacher's pipeline.go CreateGraphicsPipelines plumbing.
package pipeline

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/descriptor"
)

// Effect is one of the fixed, enumerated render-effect tags (spec §4.4).
type Effect int

const (
	Shadowmap Effect = iota
	Skybox
	Scene3D
	PbrWater
	ColoredGeometry
	ColoredGeometryTriStrip
	ColoredGeometrySkinned
	GreenGui
	GreenGuiWeaponSelectorLeft
	GreenGuiWeaponSelectorRight
	GreenGuiLines
	GreenGuiSdfFont
	GreenGuiTriangle
	GreenGuiRadarDots
	ImGui
	DebugBillboard
	ColoredModelWireframe
	TesselatedGround
	effectCount
)

var effectNames = [...]string{
	"Shadowmap", "Skybox", "Scene3D", "PbrWater", "ColoredGeometry",
	"ColoredGeometryTriStrip", "ColoredGeometrySkinned", "GreenGui",
	"GreenGuiWeaponSelectorLeft", "GreenGuiWeaponSelectorRight", "GreenGuiLines",
	"GreenGuiSdfFont", "GreenGuiTriangle", "GreenGuiRadarDots", "ImGui",
	"DebugBillboard", "ColoredModelWireframe", "TesselatedGround",
}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return "Unknown"
}

// pushConstantRange describes one stage's slice of push-constant bytes.
type pushConstantRange struct {
	stage  vk.ShaderStageFlagBits
	offset uint32
	size   uint32
}

// spec is the fixed-function + layout description for one effect. Shader
// base name resolves to "<name>.vert.spv"/"<name>.frag.spv" etc per spec §6.
type spec struct {
	shaderBaseName   string
	hasTessellation  bool
	descriptorTags   []descriptor.Tag
	pushConstants    []pushConstantRange
	topology         vk.PrimitiveTopology
	cullMode         vk.CullModeFlagBits
	depthTest        bool
	depthWrite       bool
	blendEnable      bool
	wireframe        bool
	dynamicViewport  bool
	specializeBool   bool   // weapon-selector variants: fragment spec constant present
	specializeValue  uint32 // the constant's value: 0 = left, 1 = right
}

// effectSpecs is the closed table of all 18 effects (spec §4.4). Push
// constant byte sizes mirror the original engine's per-pass uniform blocks
// (model matrix + material indices), generalized rather than copied 1:1.
var effectSpecs = map[Effect]spec{
	Shadowmap: {
		shaderBaseName: "shadowmap",
		descriptorTags: []descriptor.Tag{descriptor.ShadowPass, descriptor.SkinningMatrices},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 4 + 64}}, // cascade index + model matrix
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeFrontBit,
		depthTest:      true,
		depthWrite:     true,
		dynamicViewport: true,
	},
	Skybox: {
		shaderBaseName: "skybox",
		descriptorTags: []descriptor.Tag{descriptor.IblCubemapsAndBrdfLut},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}}, // view-proj
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeFrontBit,
		depthTest:      false,
		depthWrite:     false,
	},
	Scene3D: {
		shaderBaseName: "scene3d",
		descriptorTags: []descriptor.Tag{descriptor.PbrMaterial, descriptor.IblCubemapsAndBrdfLut, descriptor.DynamicLights, descriptor.CascadeMatricesFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}, {vk.ShaderStageFragmentBit, 64, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeBackBit,
		depthTest:      true,
		depthWrite:     true,
	},
	PbrWater: {
		shaderBaseName: "pbr_water",
		descriptorTags: []descriptor.Tag{descriptor.PbrMaterial, descriptor.IblCubemapsAndBrdfLut, descriptor.DynamicLights},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}, {vk.ShaderStageFragmentBit, 64, 4}}, // + time
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		depthTest:      true,
		depthWrite:     true,
		blendEnable:    true,
	},
	ColoredGeometry: {
		shaderBaseName: "colored_geometry",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeBackBit,
		depthTest:      true,
		depthWrite:     true,
	},
	ColoredGeometryTriStrip: {
		shaderBaseName: "colored_geometry",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:       vk.PrimitiveTopologyTriangleStrip,
		cullMode:       vk.CullModeBackBit,
		depthTest:      true,
		depthWrite:     true,
	},
	ColoredGeometrySkinned: {
		shaderBaseName: "colored_geometry_skinned",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag, descriptor.SkinningMatrices},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeBackBit,
		depthTest:      true,
		depthWrite:     true,
	},
	GreenGui: {
		shaderBaseName: "green_gui",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
	},
	GreenGuiWeaponSelectorLeft: {
		shaderBaseName: "green_gui_weapon_selector",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
		specializeBool: true,
		specializeValue: 0,
	},
	GreenGuiWeaponSelectorRight: {
		shaderBaseName: "green_gui_weapon_selector",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
		specializeBool: true,
		specializeValue: 1,
	},
	GreenGuiLines: {
		shaderBaseName: "green_gui_lines",
		descriptorTags: []descriptor.Tag{},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyLineList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
	},
	GreenGuiSdfFont: {
		shaderBaseName: "green_gui_sdf_font",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}, {vk.ShaderStageFragmentBit, 16, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
	},
	GreenGuiTriangle: {
		shaderBaseName: "green_gui_triangle",
		descriptorTags: []descriptor.Tag{},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
	},
	GreenGuiRadarDots: {
		shaderBaseName: "green_gui_radar_dots",
		descriptorTags: []descriptor.Tag{},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyPointList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
	},
	ImGui: {
		shaderBaseName: "imgui",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 16}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		blendEnable:    true,
		dynamicViewport: true,
	},
	DebugBillboard: {
		shaderBaseName: "debug_billboard",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:       vk.PrimitiveTopologyTriangleStrip,
		cullMode:       vk.CullModeNone,
		depthTest:      true,
		blendEnable:    true,
	},
	ColoredModelWireframe: {
		shaderBaseName: "colored_geometry",
		descriptorTags: []descriptor.Tag{descriptor.SingleTextureFrag},
		pushConstants:  []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:       vk.PrimitiveTopologyTriangleList,
		cullMode:       vk.CullModeNone,
		depthTest:      true,
		depthWrite:     true,
		wireframe:      true,
	},
	TesselatedGround: {
		shaderBaseName:  "tesselated_ground",
		hasTessellation: true,
		descriptorTags:  []descriptor.Tag{descriptor.FrustumPlanes, descriptor.SingleTextureFrag},
		pushConstants:   []pushConstantRange{{vk.ShaderStageVertexBit, 0, 64}},
		topology:        vk.PrimitiveTopologyPatchList,
		cullMode:        vk.CullModeBackBit,
		depthTest:       true,
		depthWrite:      true,
	},
}
