package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/lifecycle"
)

// DeviceSelection is the adapter SelectDevice picked and what it learned about it.
type DeviceSelection struct {
	Adapter        gpu.Adapter
	GraphicsFamily int
	PresentFamily  int
	Support        gpu.SurfaceSupport
}

func findQueueFamilies(families []gpu.QueueFamily) (graphics, present int, ok bool) {
	graphics, present = -1, -1
	for i, family := range families {
		if graphics < 0 && family.Graphics {
			graphics = i
		}
		if present < 0 && family.Present {
			present = i
		}
	}
	return graphics, present, graphics >= 0 && present >= 0
}

func missingExtensions(available map[string]struct{}, required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// SelectDevice returns the first adapter that has a graphics queue family, a family
// that can present to the surface, every required extension, and at least one
// surface format and present mode.
func SelectDevice(candidates []gpu.Adapter, required []string) (DeviceSelection, error) {
	return selectDevice(candidates, required, slog.Default())
}

func selectDevice(candidates []gpu.Adapter, required []string, logger *slog.Logger) (DeviceSelection, error) {
	var missingErr *MissingCapabilityError

	for _, adapter := range candidates {
		name := adapter.Name()

		families, err := adapter.QueueFamilies()
		if err != nil {
			logger.Debug("skipping adapter", "adapter", name, "reason", err)
			continue
		}
		graphics, present, ok := findQueueFamilies(families)
		if !ok {
			logger.Debug("skipping adapter", "adapter", name, "reason", "missing graphics or present queue family")
			continue
		}

		available, err := adapter.Extensions()
		if err != nil {
			logger.Debug("skipping adapter", "adapter", name, "reason", err)
			continue
		}
		if missing := missingExtensions(available, required); len(missing) > 0 {
			logger.Debug("skipping adapter", "adapter", name, "missing", missing)
			if missingErr == nil {
				missingErr = &MissingCapabilityError{Adapter: name, Missing: missing}
			}
			continue
		}

		support, err := adapter.SurfaceSupport()
		if err != nil {
			logger.Debug("skipping adapter", "adapter", name, "reason", err)
			continue
		}
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			logger.Debug("skipping adapter", "adapter", name, "reason", "no surface formats or present modes")
			continue
		}

		logger.Debug("selected adapter", "adapter", name, "graphics_family", graphics, "present_family", present)
		return DeviceSelection{
			Adapter:        adapter,
			GraphicsFamily: graphics,
			PresentFamily:  present,
			Support:        support,
		}, nil
	}

	if missingErr != nil {
		return DeviceSelection{}, errors.Mark(missingErr, ErrDeviceSelection)
	}
	return DeviceSelection{}, errors.Mark(errors.Wrapf(ErrNoSuitableDevice, "%d adapters considered", len(candidates)), ErrDeviceSelection)
}

type DeviceOptions struct {
	EnableValidation bool
	// Extensions are required in addition to the swapchain extension.
	Extensions []string
}

// DeviceContext owns the logical device and the queues the engine draws and
// presents with.
type DeviceContext struct {
	*lifecycle.Owner

	logger    *slog.Logger
	selection DeviceSelection
	device    gpu.Device
	graphics  gpu.Queue
	present   gpu.Queue
	closed    bool
}

func NewDeviceContext(instance gpu.Instance, opts DeviceOptions, logger *slog.Logger) (*DeviceContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapters, err := instance.Adapters()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "enumerate adapters"), ErrDeviceSelection)
	}

	required := append([]string{gpu.SwapchainExtension}, opts.Extensions...)
	selection, err := selectDevice(adapters, required, logger)
	if err != nil {
		return nil, err
	}

	families := []int{selection.GraphicsFamily}
	if selection.PresentFamily != selection.GraphicsFamily {
		families = append(families, selection.PresentFamily)
	}

	info := gpu.DeviceCreateInfo{
		QueueFamilies: families,
		Extensions:    required,
	}
	if opts.EnableValidation {
		info.Layers = []string{gpu.ValidationLayer}
	}

	device, err := selection.Adapter.CreateDevice(info)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create device on %s", selection.Adapter.Name()), ErrDeviceSelection)
	}

	logger.Debug("device created", "adapter", selection.Adapter.Name(), "extensions", required, "validation", opts.EnableValidation)

	return &DeviceContext{
		Owner:     lifecycle.NewOwner("device context"),
		logger:    logger,
		selection: selection,
		device:    device,
		graphics:  device.Queue(selection.GraphicsFamily),
		present:   device.Queue(selection.PresentFamily),
	}, nil
}

func (dc *DeviceContext) Device() gpu.Device {
	return dc.device
}

func (dc *DeviceContext) AdapterName() string {
	return dc.selection.Adapter.Name()
}

func (dc *DeviceContext) GraphicsFamily() int {
	return dc.selection.GraphicsFamily
}

func (dc *DeviceContext) PresentFamily() int {
	return dc.selection.PresentFamily
}

func (dc *DeviceContext) GraphicsQueue() gpu.Queue {
	return dc.graphics
}

func (dc *DeviceContext) PresentQueue() gpu.Queue {
	return dc.present
}

// SurfaceSupport is what the selected adapter reported about the surface.
func (dc *DeviceContext) SurfaceSupport() gpu.SurfaceSupport {
	return dc.selection.Support
}

func (dc *DeviceContext) WaitIdle() error {
	if dc.closed {
		return nil
	}
	return errors.Wrap(dc.device.WaitIdle(), "wait for device idle")
}

// Close destroys the logical device. It fails with ErrTeardownOrder, leaving the
// device alive, while any component built on it is still open.
func (dc *DeviceContext) Close() error {
	if dc.closed {
		return nil
	}
	if err := dc.CheckReleasable(); err != nil {
		return errors.Mark(err, ErrTeardownOrder)
	}

	dc.device.Destroy()
	dc.closed = true
	dc.logger.Debug("device destroyed")
	return nil
}
