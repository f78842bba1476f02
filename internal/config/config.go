// Package config generalizes the teacher's usage.go property bag into the
// engine's concrete startup configuration: window resolution, validation
// toggle, and worker count. usage.go's free-form String/Int/Bool/Float maps
// worked for a single generic "Usage" tree; this engine has a closed set of
// startup knobs (spec §6) so they are named fields instead.
package config

import "fmt"

// Resolution is one of the closed list of supported window sizes (spec §6).
type Resolution struct {
	Width, Height uint32
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var SupportedResolutions = []Resolution{
	{1200, 900},
	{1280, 720},
	{1366, 768},
	{1600, 900},
	{1920, 1080},
}

// IsSupported reports whether r is one of SupportedResolutions.
func IsSupported(r Resolution) bool {
	for _, s := range SupportedResolutions {
		if s == r {
			return true
		}
	}
	return false
}

const (
	// SwapchainImageCount is the number of in-flight frame slots (spec §3 frame slot, §4.8).
	SwapchainImageCount = 3
	// ShadowCascadeCount is N in spec §3/§4.11's cascade descriptor.
	ShadowCascadeCount = 4
	// ShadowmapImageDim is the fixed per-cascade shadow framebuffer extent (spec §4.6).
	ShadowmapImageDim = 2048
	// CascadeSplitLambda is λ in spec §4.11's logarithmic/uniform split blend.
	CascadeSplitLambda = 0.95
)

// Engine is the startup configuration handed to the engine constructor.
type Engine struct {
	AppName          string
	Resolution       Resolution
	ValidationLayers bool
	WorkerCount      int
	MSAAEnabled      bool
}

// Default returns the engine's default startup configuration.
func Default() Engine {
	return Engine{
		AppName:          "vkengine",
		Resolution:       Resolution{1280, 720},
		ValidationLayers: false,
		WorkerCount:      0, // 0 means "hardware_concurrency - 1", resolved at startup.
		MSAAEnabled:      true,
	}
}
