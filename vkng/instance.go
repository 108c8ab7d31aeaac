// Package vkng implements the gpu interfaces on top of vkngwrapper.
package vkng

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"github.com/vkpresent/presenter/gpu"
)

// ErrMissingLayer is returned when validation is requested but the layer is not installed.
var ErrMissingLayer = errors.New("validation layer not available")

type Options struct {
	AppName          string
	EnableValidation bool
}

// Instance is a Vulkan instance bound to one SDL2 window surface.
type Instance struct {
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
}

// Open creates the instance with every extension the window needs, the debug
// messenger when validation is on, and the window's surface.
func Open(window *sdl.Window, opts Options, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}
	inst := &Instance{logger: logger}

	var err error
	inst.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan")
	}

	if err := inst.createInstance(window, opts); err != nil {
		return nil, err
	}

	if opts.EnableValidation {
		inst.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(inst.instanceDriver)
		inst.debugMessenger, _, err = inst.debugDriver.CreateDebugUtilsMessenger(nil, inst.debugMessengerOptions())
		if err != nil {
			inst.Destroy()
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	inst.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(inst.instanceDriver)
	inst.surface, err = vkng_sdl2.CreateSurface(inst.instanceDriver.Instance(), inst.surfaceExtension, window)
	if err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "create window surface")
	}

	return inst, nil
}

func (inst *Instance) createInstance(window *sdl.Window, opts Options) error {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "presenter",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	available, _, err := inst.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	for _, ext := range window.VulkanGetInstanceExtensions() {
		if _, ok := available[ext]; !ok {
			return errors.Newf("window requires missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}

	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.EnableValidation {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		layers, _, err := inst.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}
		if _, ok := layers[gpu.ValidationLayer]; !ok {
			return errors.WithHint(errors.Wrap(ErrMissingLayer, gpu.ValidationLayer), "install the LunarG Vulkan SDK or run without -debug")
		}
		info.EnabledLayerNames = append(info.EnabledLayerNames, gpu.ValidationLayer)
		info.Next = inst.debugMessengerOptions()
	}

	inst.instanceDriver, _, err = inst.globalDriver.CreateInstance(nil, info)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}

	inst.logger.Debug("instance created", "extensions", info.EnabledExtensionNames, "layers", info.EnabledLayerNames)
	return nil
}

func (inst *Instance) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    inst.logDebug,
	}
}

func (inst *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelInfo
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		level = slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		level = slog.LevelWarn
	}
	inst.logger.Log(context.Background(), level, data.Message, "type", msgType)
	return false
}

func (inst *Instance) Adapters() ([]gpu.Adapter, error) {
	physicalDevices, _, err := inst.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	adapters := make([]gpu.Adapter, len(physicalDevices))
	for i, pd := range physicalDevices {
		adapters[i] = &adapter{inst: inst, index: i, physicalDevice: pd}
	}
	return adapters, nil
}

// Destroy releases the debug messenger, the surface and the instance. Every
// device created from the instance must already be destroyed.
func (inst *Instance) Destroy() {
	if inst.debugMessenger.Initialized() {
		inst.debugDriver.DestroyDebugUtilsMessenger(inst.debugMessenger, nil)
		inst.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if inst.surface.Initialized() {
		inst.surfaceExtension.DestroySurface(inst.surface, nil)
		inst.surface = khr_surface.Surface{}
	}

	if inst.instanceDriver != nil {
		inst.instanceDriver.DestroyInstance(nil)
		inst.instanceDriver = nil
	}
}
