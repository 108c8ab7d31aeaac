package vkng

import (
	"time"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func toExtent(e core1_0.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent(e gpu.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}

func fromTimeout(timeout time.Duration) time.Duration {
	if timeout == gpu.NoTimeout {
		return common.NoTimeout
	}
	return timeout
}

func fromSharing(mode gpu.SharingMode) core1_0.SharingMode {
	if mode == gpu.SharingConcurrent {
		return core1_0.SharingModeConcurrent
	}
	return core1_0.SharingModeExclusive
}

// toStatus folds the swapchain results that are not failures into a gpu.Status.
func toStatus(res common.VkResult) (gpu.Status, bool) {
	switch res {
	case khr_swapchain.VKSuboptimal:
		return gpu.StatusSuboptimal, true
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.StatusOutOfDate, true
	}
	return gpu.StatusSuccess, false
}

func semaphores(list []gpu.Semaphore) []core1_0.Semaphore {
	out := make([]core1_0.Semaphore, len(list))
	for i, s := range list {
		out[i] = s.(*semaphore).handle
	}
	return out
}
