// Package descriptor implements the DescriptorLayoutRegistry of spec §4.3:
// a closed enumeration of descriptor-set layouts created once at startup and
// held for the process lifetime, plus the pool sized off the pipeline
// inventory (spec §9 open question: derive pool sizes instead of guessing).
package descriptor

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// Tag is one of the closed set of descriptor-set-layout tags (spec §4.3 table).
type Tag int

const (
	ShadowPass Tag = iota
	PbrMaterial
	IblCubemapsAndBrdfLut
	DynamicLights
	SingleTextureFrag
	TwoTexturesFrag
	SkinningMatrices
	CascadeMatricesFrag
	FrustumPlanes
	tagCount
)

func (t Tag) String() string {
	switch t {
	case ShadowPass:
		return "ShadowPass"
	case PbrMaterial:
		return "PbrMaterial"
	case IblCubemapsAndBrdfLut:
		return "IblCubemapsAndBrdfLut"
	case DynamicLights:
		return "DynamicLights"
	case SingleTextureFrag:
		return "SingleTextureFrag"
	case TwoTexturesFrag:
		return "TwoTexturesFrag"
	case SkinningMatrices:
		return "SkinningMatrices"
	case CascadeMatricesFrag:
		return "CascadeMatricesFrag"
	case FrustumPlanes:
		return "FrustumPlanes"
	default:
		return "Unknown"
	}
}

type bindingSpec struct {
	binding         uint32
	descriptorType  vk.DescriptorType
	count           uint32
	stage           vk.ShaderStageFlagBits
}

// layoutSpecs is the fixed binding table from spec §4.3.
var layoutSpecs = map[Tag][]bindingSpec{
	ShadowPass: {
		{0, vk.DescriptorTypeUniformBuffer, 1, vk.ShaderStageVertexBit},
	},
	PbrMaterial: {
		{0, vk.DescriptorTypeCombinedImageSampler, 5, vk.ShaderStageFragmentBit},
	},
	IblCubemapsAndBrdfLut: {
		{0, vk.DescriptorTypeCombinedImageSampler, 2, vk.ShaderStageFragmentBit},
		{1, vk.DescriptorTypeCombinedImageSampler, 1, vk.ShaderStageFragmentBit},
	},
	DynamicLights: {
		{0, vk.DescriptorTypeUniformBufferDynamic, 1, vk.ShaderStageFragmentBit},
	},
	SingleTextureFrag: {
		{0, vk.DescriptorTypeCombinedImageSampler, 1, vk.ShaderStageFragmentBit},
	},
	TwoTexturesFrag: {
		{0, vk.DescriptorTypeCombinedImageSampler, 1, vk.ShaderStageFragmentBit},
		{1, vk.DescriptorTypeCombinedImageSampler, 1, vk.ShaderStageFragmentBit},
	},
	SkinningMatrices: {
		{0, vk.DescriptorTypeUniformBufferDynamic, 1, vk.ShaderStageVertexBit},
	},
	CascadeMatricesFrag: {
		{0, vk.DescriptorTypeUniformBuffer, 1, vk.ShaderStageFragmentBit},
	},
	FrustumPlanes: {
		{0, vk.DescriptorTypeUniformBuffer, 1, vk.ShaderStageTessellationControlBit},
	},
}

// Registry owns the closed set of descriptor-set layouts for the process lifetime.
type Registry struct {
	device  vk.Device
	layouts map[Tag]vk.DescriptorSetLayout
	pool    vk.DescriptorPool
}

// New creates every layout in layoutSpecs, once, at startup.
func New(device vk.Device) (*Registry, error) {
	r := &Registry{device: device, layouts: make(map[Tag]vk.DescriptorSetLayout, tagCount)}

	for tag := Tag(0); tag < tagCount; tag++ {
		specs := layoutSpecs[tag]
		bindings := make([]vk.DescriptorSetLayoutBinding, len(specs))
		for i, s := range specs {
			bindings[i] = vk.DescriptorSetLayoutBinding{
				Binding:         s.binding,
				DescriptorType:  s.descriptorType,
				DescriptorCount: s.count,
				StageFlags:      vk.ShaderStageFlags(s.stage),
			}
		}

		var layout vk.DescriptorSetLayout
		ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}, nil, &layout)
		if vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating descriptor layout %s: %w", tag, vkutil.NewError(ret))
		}
		r.layouts[tag] = layout
	}

	return r, nil
}

// Layout looks up a descriptor-set layout by tag.
func (r *Registry) Layout(tag Tag) vk.DescriptorSetLayout {
	return r.layouts[tag]
}

// EffectUsage is how many times (frames in flight × sets-per-effect) a
// layout tag is referenced, fed into BuildPool to derive the descriptor
// pool size from the pipeline inventory (spec §9 open question).
type EffectUsage struct {
	Tag   Tag
	Count uint32
}

// BuildPool sums the descriptor counts each layout contributes, scaled by
// usage, and allocates a descriptor pool sized exactly for that, instead of
// a hand-picked guess.
func (r *Registry) BuildPool(usages []EffectUsage) error {
	totals := make(map[vk.DescriptorType]uint32)
	var maxSets uint32

	for _, u := range usages {
		for _, s := range layoutSpecs[u.Tag] {
			totals[s.descriptorType] += s.count * u.Count
		}
		maxSets += u.Count
	}

	sizes := make([]vk.DescriptorPoolSize, 0, len(totals))
	for t, count := range totals {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: count})
	}

	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(r.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if vkutil.IsError(ret) {
		return fmt.Errorf("creating descriptor pool: %w", vkutil.NewError(ret))
	}
	r.pool = pool
	return nil
}

// Pool returns the descriptor pool built by BuildPool.
func (r *Registry) Pool() vk.DescriptorPool {
	return r.pool
}

// Destroy releases every layout and the pool, at process teardown only —
// layouts live for the process lifetime (spec §4.3).
func (r *Registry) Destroy() {
	for _, l := range r.layouts {
		vk.DestroyDescriptorSetLayout(r.device, l, nil)
	}
	if r.pool != vk.DescriptorPool(vk.NullHandle) {
		vk.DestroyDescriptorPool(r.device, r.pool, nil)
	}
}
