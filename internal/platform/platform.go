// Package platform implements instance/device/surface bring-up: the
// one-time handshake with the driver that every other package in this
// module builds on top of. Grounded on the teacher's core.go
// CreateGraphicsInstance and instance.go physical-device selection,
// generalized from the teacher's string-keyed BaseCore map-of-everything
// into a single Engine value passed by reference, per the engine's
// single-window, single-device design.
package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/config"
	"github.com/ashforge/vkengine/internal/enginelog"
	"github.com/ashforge/vkengine/internal/vkutil"
)

// ValidationLayers is the fixed set requested when config.Engine.ValidationLayers is set.
var ValidationLayers = []string{
	"VK_LAYER_KHRONOS_validation",
}

// DeviceExtensions is the fixed set of device extensions this engine requires.
var DeviceExtensions = []string{
	"VK_KHR_swapchain",
}

// Engine holds every handle produced during bring-up: the window, instance,
// physical/logical device, queues, and the three log files. Every
// higher-level package (memory, texture, pipeline, ...) takes a *Engine or
// its individual fields rather than re-deriving them.
type Engine struct {
	Config config.Engine
	Log    *enginelog.Logger

	Window   *glfw.Window
	Instance vk.Instance
	Surface  vk.Surface

	PhysicalDevice  vk.PhysicalDevice
	MemoryProps     vk.PhysicalDeviceMemoryProperties
	Device          vk.Device
	GraphicsFamily  uint32
	PresentFamily   uint32
	GraphicsQueue   vk.Queue
	PresentQueue    vk.Queue

	debugMessenger vk.DebugReportCallback
}

// New performs the whole bring-up sequence: glfw init, window creation,
// instance creation (with validation layers if requested), surface
// creation, physical-device selection, and logical-device + queue creation.
// A failure anywhere in here is an InitFailure (spec §7) — the error is
// returned; cmd/vkengine reports it on stderr and exits with status 1.
func New(cfg config.Engine) (*Engine, error) {
	logger, err := enginelog.New(".")
	if err != nil {
		return nil, fmt.Errorf("opening engine logs: %w", err)
	}

	e := &Engine{Config: cfg, Log: logger}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initializing glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(int(cfg.Resolution.Width), int(cfg.Resolution.Height), vkutil.SafeString(cfg.AppName), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}
	e.Window = window

	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("initializing vulkan loader: %w", err)
	}

	if err := e.createInstance(); err != nil {
		return nil, err
	}

	surfacePtr, err := e.Window.CreateWindowSurface(e.Instance, nil)
	if err != nil {
		return nil, fmt.Errorf("creating window surface: %w", err)
	}
	e.Surface = vk.SurfaceFromPointer(surfacePtr)

	if err := e.pickPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := e.createLogicalDevice(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) createInstance() error {
	var layers []string
	if e.Config.ValidationLayers {
		layers = vkutil.SafeStrings(ValidationLayers)
	}

	required := e.Window.GetRequiredInstanceExtensions()
	extensions := vkutil.SafeStrings(required)

	var flags vk.InstanceCreateFlags
	if vkutil.PlatformOS == "Darwin" {
		flags = vk.InstanceCreateFlags(vk.InstanceCreateEnumeratePortabilityBit)
		extensions = append(extensions, vkutil.SafeString("VK_KHR_portability_enumeration"))
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         vk.MakeVersion(1, 1, 0),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PApplicationName:   vkutil.SafeString(e.Config.AppName),
			PEngineName:        vkutil.SafeString(e.Config.AppName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		Flags:                   flags,
	}, nil, &instance)
	if vkutil.IsError(ret) {
		e.Log.Error.Printf("creating vulkan instance: %v", ret)
		return fmt.Errorf("creating vulkan instance: %w", vkutil.NewError(ret))
	}
	e.Instance = instance

	if vkutil.PlatformOS == "Darwin" {
		vk.InitInstance(instance)
	}
	return nil
}

func (e *Engine) pickPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(e.Instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no vulkan-capable physical devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(e.Instance, &count, devices)

	// First device exposing both a graphics and a present queue family wins;
	// the original engine assumes a single discrete GPU target and does not
	// score devices beyond that.
	for _, pd := range devices {
		graphicsFamily, presentFamily, ok := findQueueFamilies(pd, e.Surface)
		if !ok {
			continue
		}
		e.PhysicalDevice = pd
		e.GraphicsFamily = graphicsFamily
		e.PresentFamily = presentFamily
		vk.GetPhysicalDeviceMemoryProperties(pd, &e.MemoryProps)
		e.MemoryProps.Deref()
		return nil
	}
	return fmt.Errorf("no physical device exposes both a graphics and a present queue family")
}

func findQueueFamilies(pd vk.PhysicalDevice, surface vk.Surface) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	foundGraphics, foundPresent := false, false
	for i, f := range families {
		f.Deref()
		if vk.QueueFlagBits(f.QueueFlags)&vk.QueueGraphicsBit != 0 {
			graphics = uint32(i)
			foundGraphics = true
		}
		var presentSupport vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &presentSupport)
		if presentSupport != 0 {
			present = uint32(i)
			foundPresent = true
		}
	}
	return graphics, present, foundGraphics && foundPresent
}

func (e *Engine) createLogicalDevice() error {
	queuePriority := float32(1.0)
	families := uniqueUint32(e.GraphicsFamily, e.PresentFamily)

	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, fam := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{queuePriority},
		}
	}

	extensions := vkutil.SafeStrings(DeviceExtensions)
	if vkutil.PlatformOS == "Darwin" {
		extensions = append(extensions, vkutil.SafeString("VK_KHR_portability_subset"))
	}

	var device vk.Device
	ret := vk.CreateDevice(e.PhysicalDevice, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}, nil, &device)
	if vkutil.IsError(ret) {
		return fmt.Errorf("creating logical device: %w", vkutil.NewError(ret))
	}
	e.Device = device

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device, e.GraphicsFamily, 0, &graphicsQueue)
	vk.GetDeviceQueue(device, e.PresentFamily, 0, &presentQueue)
	e.GraphicsQueue = graphicsQueue
	e.PresentQueue = presentQueue
	return nil
}

func uniqueUint32(a, b uint32) []uint32 {
	if a == b {
		return []uint32{a}
	}
	return []uint32{a, b}
}

// ChangeResolution implements the change_resolution(w, h) entry point (spec
// §6), validating against the closed list of supported resolutions before
// resizing the window; the caller is responsible for driving the resize
// package's teardown/rebuild afterward.
func (e *Engine) ChangeResolution(width, height uint32) error {
	r := config.Resolution{Width: width, Height: height}
	if !config.IsSupported(r) {
		return fmt.Errorf("unsupported resolution %s", r)
	}
	if r == e.Config.Resolution {
		// Same extent: a no-op, no window resize and no downstream resource
		// teardown/rebuild (spec §4.10 "resize with the current extent").
		return nil
	}
	e.Window.SetSize(int(width), int(height))
	e.Config.Resolution = r
	return nil
}

// Destroy tears down the device, surface, instance, and window, in reverse
// order of creation, then closes the log files.
func (e *Engine) Destroy() {
	if e.Device != vk.Device(vk.NullHandle) {
		vk.DestroyDevice(e.Device, nil)
	}
	if e.Surface != vk.NullSurface {
		vk.DestroySurface(e.Instance, e.Surface, nil)
	}
	if e.Instance != vk.Instance(vk.NullHandle) {
		vk.DestroyInstance(e.Instance, nil)
	}
	if e.Window != nil {
		e.Window.Destroy()
	}
	glfw.Terminate()
	if e.Log != nil {
		e.Log.Close()
	}
}

// WorkerCount resolves config.Engine.WorkerCount to a concrete worker count,
// defaulting to hardware_concurrency-1 as spec §4.7 recommends.
func (e *Engine) WorkerCount() int {
	if e.Config.WorkerCount > 0 {
		return e.Config.WorkerCount
	}
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}
