package vkng

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

// ErrAcquireTimeout is returned when no swapchain image became available in time.
var ErrAcquireTimeout = errors.New("timed out acquiring swapchain image")

type swapchain struct {
	device *device
	handle khr_swapchain.Swapchain
}

func (d *device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	inst := d.adapter.inst

	caps, _, err := inst.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(inst.surface, d.adapter.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}

	sc, _, err := d.swapchain.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: inst.surface,

		MinImageCount:    info.ImageCount,
		ImageFormat:      core1_0.Format(info.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      fromExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   fromSharing(info.Sharing),
		QueueFamilyIndices: info.QueueFamilies,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	return &swapchain{device: d, handle: sc}, nil
}

func (s *swapchain) Images() ([]gpu.Image, error) {
	images, _, err := s.device.swapchain.GetSwapchainImages(s.handle)
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}

	out := make([]gpu.Image, len(images))
	for i, image := range images {
		out[i] = image
	}
	return out, nil
}

// AcquireNextImage reports out-of-date and suboptimal swapchains as a status
// rather than an error.
func (s *swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	sem := signal.(*semaphore).handle
	idx, res, err := s.device.swapchain.AcquireNextImage(s.handle, fromTimeout(timeout), &sem, nil)
	if status, ok := toStatus(res); ok {
		return idx, status, nil
	}
	if err != nil {
		return 0, gpu.StatusSuccess, errors.Wrap(err, "acquire next image")
	}
	if res == core1_0.VKTimeout || res == core1_0.VKNotReady {
		return 0, gpu.StatusSuccess, errors.Wrapf(ErrAcquireTimeout, "after %s", timeout)
	}
	return idx, gpu.StatusSuccess, nil
}

func (s *swapchain) Destroy() {
	s.device.swapchain.DestroySwapchain(s.handle, nil)
}
