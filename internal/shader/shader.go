// Package shader implements the shader-loading step of spec §4.9: read an
// entire SPIR-V file into a host buffer, create a module, and free the host
// buffer immediately. Grounded on the teacher's shader.go LoadShaderModule.
package shader

import (
	"fmt"
	"os"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// Load reads path, creates a vk.ShaderModule from its SPIR-V bytes, and
// returns the module. The host-side byte buffer is not retained past this
// call; the caller destroys the module right after pipeline creation (spec
// §4.9 — modules live only as long as CreateGraphicsPipelines needs them).
func Load(device vk.Device, path string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vk.NullHandle, fmt.Errorf("loading shader %q: %w", path, err)
	}

	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    vkutil.SliceUint32(data),
	}, nil, &module)
	if vkutil.IsError(ret) {
		return vk.NullHandle, fmt.Errorf("creating shader module %q: %w", path, vkutil.NewError(ret))
	}
	return module, nil
}

// Stage is a loaded module paired with the pipeline stage it fills.
type Stage struct {
	Module vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
	Entry  string
}

// LoadPair loads the vertex+fragment pair that every effect needs at
// minimum, resolving "<baseName>.vert.spv"/"<baseName>.frag.spv" per the
// naming convention of spec §6.
func LoadPair(device vk.Device, dir, baseName string) ([]Stage, error) {
	vert, err := Load(device, dir+"/"+baseName+".vert.spv")
	if err != nil {
		return nil, err
	}
	frag, err := Load(device, dir+"/"+baseName+".frag.spv")
	if err != nil {
		vk.DestroyShaderModule(device, vert, nil)
		return nil, err
	}
	return []Stage{
		{Module: vert, Stage: vk.ShaderStageVertexBit, Entry: "main\x00"},
		{Module: frag, Stage: vk.ShaderStageFragmentBit, Entry: "main\x00"},
	}, nil
}

// LoadTessellation additionally loads "<baseName>.tesc.spv"/"<baseName>.tese.spv".
func LoadTessellation(device vk.Device, dir, baseName string) ([]Stage, error) {
	base, err := LoadPair(device, dir, baseName)
	if err != nil {
		return nil, err
	}
	tesc, err := Load(device, dir+"/"+baseName+".tesc.spv")
	if err != nil {
		DestroyAll(device, base)
		return nil, err
	}
	tese, err := Load(device, dir+"/"+baseName+".tese.spv")
	if err != nil {
		DestroyAll(device, base)
		vk.DestroyShaderModule(device, tesc, nil)
		return nil, err
	}
	return append(base,
		Stage{Module: tesc, Stage: vk.ShaderStageTessellationControlBit, Entry: "main\x00"},
		Stage{Module: tese, Stage: vk.ShaderStageTessellationEvaluationBit, Entry: "main\x00"},
	), nil
}

// DestroyAll destroys every module in stages, called right after the owning
// pipeline has been created.
func DestroyAll(device vk.Device, stages []Stage) {
	for _, s := range stages {
		vk.DestroyShaderModule(device, s.Module, nil)
	}
}
