package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/gpu/gputest"
)

func adapters(as ...*gputest.Adapter) []gpu.Adapter {
	out := make([]gpu.Adapter, len(as))
	for i, a := range as {
		out[i] = a
	}
	return out
}

func TestSelectDeviceNoCandidates(t *testing.T) {
	_, err := SelectDevice(nil, []string{gpu.SwapchainExtension})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
	assert.True(t, errors.Is(err, ErrDeviceSelection))
}

func TestSelectDeviceNeedsBothQueueFamilies(t *testing.T) {
	computeOnly := gputest.NewAdapter("compute")
	computeOnly.Families = []gpu.QueueFamily{{}}
	headless := gputest.NewAdapter("headless")
	headless.Families = []gpu.QueueFamily{{Graphics: true}}

	_, err := SelectDevice(adapters(computeOnly, headless), []string{gpu.SwapchainExtension})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
	assert.True(t, errors.Is(err, ErrDeviceSelection))
}

func TestSelectDeviceFirstQualifyingWins(t *testing.T) {
	noSwapchain := gputest.NewAdapter("no swapchain")
	noSwapchain.Exts = nil
	good := gputest.NewAdapter("good")
	alsoGood := gputest.NewAdapter("also good")

	sel, err := SelectDevice(adapters(noSwapchain, good, alsoGood), []string{gpu.SwapchainExtension})
	require.NoError(t, err)
	assert.Equal(t, "good", sel.Adapter.Name())
	assert.Equal(t, 0, sel.GraphicsFamily)
	assert.Equal(t, 0, sel.PresentFamily)
	assert.Equal(t, good.Support, sel.Support)
}

func TestSelectDeviceFirstFamilyOfEachKind(t *testing.T) {
	a := gputest.NewAdapter("split")
	a.Families = []gpu.QueueFamily{{}, {Present: true}, {Graphics: true}, {Graphics: true, Present: true}}

	sel, err := SelectDevice(adapters(a), []string{gpu.SwapchainExtension})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.GraphicsFamily)
	assert.Equal(t, 1, sel.PresentFamily)
}

func TestSelectDeviceMissingCapability(t *testing.T) {
	a := gputest.NewAdapter("old")
	a.Exts = []string{"VK_KHR_maintenance1"}
	b := gputest.NewAdapter("older")
	b.Exts = nil

	_, err := SelectDevice(adapters(a, b), []string{gpu.SwapchainExtension, "VK_KHR_maintenance1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceSelection))

	var missing *MissingCapabilityError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "old", missing.Adapter)
	assert.Equal(t, []string{gpu.SwapchainExtension}, missing.Missing)
}

func TestSelectDeviceSkipsAdaptersWithoutSurfaceSupport(t *testing.T) {
	noFormats := gputest.NewAdapter("no formats")
	noFormats.Support.Formats = nil
	noModes := gputest.NewAdapter("no modes")
	noModes.Support.PresentModes = nil
	broken := gputest.NewAdapter("broken")
	broken.FamiliesErr = errors.New("lost")
	good := gputest.NewAdapter("good")

	sel, err := SelectDevice(adapters(broken, noFormats, noModes, good), []string{gpu.SwapchainExtension})
	require.NoError(t, err)
	assert.Equal(t, "good", sel.Adapter.Name())

	_, err = SelectDevice(adapters(broken, noFormats, noModes), []string{gpu.SwapchainExtension})
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
}

func TestNewDeviceContext(t *testing.T) {
	a := gputest.NewAdapter("fake")
	a.Exts = append(a.Exts, "VK_KHR_portability_subset")

	dc, err := NewDeviceContext(gputest.NewInstance(a), DeviceOptions{Extensions: []string{"VK_KHR_portability_subset"}}, nil)
	require.NoError(t, err)

	assert.True(t, a.Created)
	assert.Equal(t, []int{0}, a.Device.Info.QueueFamilies)
	assert.Equal(t, []string{gpu.SwapchainExtension, "VK_KHR_portability_subset"}, a.Device.Info.Extensions)
	assert.Empty(t, a.Device.Info.Layers)
	assert.Same(t, dc.GraphicsQueue(), dc.PresentQueue())
	assert.Equal(t, "fake", dc.AdapterName())

	require.NoError(t, dc.Close())
	require.NoError(t, dc.Close())
	assert.True(t, a.Device.Destroyed())
	assert.Empty(t, a.Device.Violations)
}

func TestNewDeviceContextSeparateQueues(t *testing.T) {
	a := gputest.NewAdapter("split")
	a.Families = []gpu.QueueFamily{{Present: true}, {Graphics: true}}

	dc, err := NewDeviceContext(gputest.NewInstance(a), DeviceOptions{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, a.Device.Info.QueueFamilies)
	assert.Equal(t, 1, dc.GraphicsFamily())
	assert.Equal(t, 0, dc.PresentFamily())
	assert.NotSame(t, dc.GraphicsQueue(), dc.PresentQueue())
}

func TestNewDeviceContextValidationToggle(t *testing.T) {
	a := gputest.NewAdapter("fake")
	_, err := NewDeviceContext(gputest.NewInstance(a), DeviceOptions{EnableValidation: true}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{gpu.ValidationLayer}, a.Device.Info.Layers)
}

func TestNewDeviceContextFailures(t *testing.T) {
	boom := errors.New("boom")

	inst := gputest.NewInstance()
	inst.AdaptersErr = boom
	_, err := NewDeviceContext(inst, DeviceOptions{}, discardLogger())
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, ErrDeviceSelection))

	a := gputest.NewAdapter("fake")
	a.CreateErr = boom
	_, err = NewDeviceContext(gputest.NewInstance(a), DeviceOptions{}, discardLogger())
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, ErrDeviceSelection))

	_, err = NewDeviceContext(gputest.NewInstance(), DeviceOptions{}, discardLogger())
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
}

func TestDeviceContextCloseWhileBorrowed(t *testing.T) {
	r := newRig(t, 2, 3, nil)

	err := r.dc.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTeardownOrder))
	assert.False(t, r.dev.Destroyed())
}
