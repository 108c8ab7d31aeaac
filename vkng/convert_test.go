package vkng

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkpresent/presenter/gpu"
)

func TestToStatus(t *testing.T) {
	status, ok := toStatus(khr_swapchain.VKSuboptimal)
	assert.True(t, ok)
	assert.Equal(t, gpu.StatusSuboptimal, status)

	status, ok = toStatus(khr_swapchain.VKErrorOutOfDate)
	assert.True(t, ok)
	assert.Equal(t, gpu.StatusOutOfDate, status)

	_, ok = toStatus(core1_0.VKSuccess)
	assert.False(t, ok)
}

func TestFromTimeout(t *testing.T) {
	assert.Equal(t, common.NoTimeout, fromTimeout(gpu.NoTimeout))
	assert.Equal(t, 250*time.Millisecond, fromTimeout(250*time.Millisecond))
}

func TestExtentRoundTrip(t *testing.T) {
	e := gpu.Extent2D{Width: 800, Height: 600}
	assert.Equal(t, e, toExtent(fromExtent(e)))
}

func TestFromSharing(t *testing.T) {
	assert.Equal(t, core1_0.SharingModeExclusive, fromSharing(gpu.SharingExclusive))
	assert.Equal(t, core1_0.SharingModeConcurrent, fromSharing(gpu.SharingConcurrent))
}

func TestContains(t *testing.T) {
	list := []string{"VK_KHR_swapchain", "VK_KHR_portability_subset"}
	assert.True(t, contains(list, "VK_KHR_swapchain"))
	assert.False(t, contains(list, "VK_KHR_swap"))
	assert.False(t, contains(nil, "VK_KHR_swapchain"))
}
