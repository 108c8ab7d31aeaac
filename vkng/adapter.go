package vkng

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

type adapter struct {
	inst           *Instance
	index          int
	physicalDevice core1_0.PhysicalDevice
}

func (a *adapter) Name() string {
	return fmt.Sprintf("adapter %d", a.index)
}

func (a *adapter) QueueFamilies() ([]gpu.QueueFamily, error) {
	props := a.inst.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(a.physicalDevice)

	families := make([]gpu.QueueFamily, len(props))
	for i, family := range props {
		supported, _, err := a.inst.surfaceExtension.GetPhysicalDeviceSurfaceSupport(a.inst.surface, a.physicalDevice, i)
		if err != nil {
			return nil, errors.Wrapf(err, "query present support of queue family %d", i)
		}
		families[i] = gpu.QueueFamily{
			Graphics: family.QueueFlags&core1_0.QueueGraphics != 0,
			Present:  supported,
		}
	}
	return families, nil
}

func (a *adapter) Extensions() (map[string]struct{}, error) {
	props, _, err := a.inst.instanceDriver.EnumerateDeviceExtensionProperties(a.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}

	exts := make(map[string]struct{}, len(props))
	for name := range props {
		exts[name] = struct{}{}
	}
	return exts, nil
}

func (a *adapter) SurfaceSupport() (gpu.SurfaceSupport, error) {
	var support gpu.SurfaceSupport
	ext := a.inst.surfaceExtension

	caps, _, err := ext.GetPhysicalDeviceSurfaceCapabilities(a.inst.surface, a.physicalDevice)
	if err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}
	support.Capabilities = gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  toExtent(caps.CurrentExtent),
		MinImageExtent: toExtent(caps.MinImageExtent),
		MaxImageExtent: toExtent(caps.MaxImageExtent),
	}

	formats, _, err := ext.GetPhysicalDeviceSurfaceFormats(a.inst.surface, a.physicalDevice)
	if err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}
	for _, f := range formats {
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}

	modes, _, err := ext.GetPhysicalDeviceSurfacePresentModes(a.inst.surface, a.physicalDevice)
	if err != nil {
		return support, errors.Wrap(err, "query present modes")
	}
	for _, m := range modes {
		support.PresentModes = append(support.PresentModes, gpu.PresentMode(m))
	}

	return support, nil
}

// CreateDevice also enables the portability subset when the adapter exposes it,
// which drivers layered over Metal require.
func (a *adapter) CreateDevice(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	var queues []core1_0.DeviceQueueCreateInfo
	for _, family := range info.QueueFamilies {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensions := append([]string(nil), info.Extensions...)
	available, err := a.Extensions()
	if err != nil {
		return nil, err
	}
	if _, ok := available[khr_portability_subset.ExtensionName]; ok && !contains(extensions, khr_portability_subset.ExtensionName) {
		extensions = append(extensions, khr_portability_subset.ExtensionName)
	}

	driver, _, err := a.inst.instanceDriver.CreateDevice(a.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queues,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensions,
		EnabledLayerNames:     info.Layers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	return &device{
		adapter:   a,
		driver:    driver,
		swapchain: khr_swapchain.CreateExtensionDriverFromCoreDriver(driver),
		queues:    make(map[int]*queue),
	}, nil
}
