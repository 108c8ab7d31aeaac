package gputest

import "github.com/vkpresent/presenter/gpu"

// Instance implements gpu.Instance over a fixed list of adapters.
type Instance struct {
	AdaptersErr error

	adapters  []*Adapter
	destroyed bool
}

func NewInstance(adapters ...*Adapter) *Instance {
	return &Instance{adapters: adapters}
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	if i.AdaptersErr != nil {
		return nil, i.AdaptersErr
	}
	adapters := make([]gpu.Adapter, len(i.adapters))
	for n, a := range i.adapters {
		adapters[n] = a
	}
	return adapters, nil
}

func (i *Instance) Destroy() {
	i.destroyed = true
}

func (i *Instance) Destroyed() bool {
	return i.destroyed
}

// DefaultSupport is a surface that offers the preferred format, both the mailbox
// and FIFO modes, 2 to 8 images, and a fixed 800x600 extent.
func DefaultSupport() gpu.SurfaceSupport {
	return gpu.SurfaceSupport{
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8UNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
	}
}

// Adapter implements gpu.Adapter. CreateDevice always hands out Device, so tests
// can configure it before the engine starts.
type Adapter struct {
	AdapterName string
	Families    []gpu.QueueFamily
	Exts        []string
	Support     gpu.SurfaceSupport

	FamiliesErr   error
	ExtensionsErr error
	SupportErr    error
	CreateErr     error

	Device  *Device
	Created bool
}

// NewAdapter returns an adapter with one family that can draw and present, the
// swapchain extension, and DefaultSupport.
func NewAdapter(name string) *Adapter {
	return &Adapter{
		AdapterName: name,
		Families:    []gpu.QueueFamily{{Graphics: true, Present: true}},
		Exts:        []string{gpu.SwapchainExtension},
		Support:     DefaultSupport(),
		Device:      NewDevice(),
	}
}

func (a *Adapter) Name() string {
	return a.AdapterName
}

func (a *Adapter) QueueFamilies() ([]gpu.QueueFamily, error) {
	if a.FamiliesErr != nil {
		return nil, a.FamiliesErr
	}
	return a.Families, nil
}

func (a *Adapter) Extensions() (map[string]struct{}, error) {
	if a.ExtensionsErr != nil {
		return nil, a.ExtensionsErr
	}
	exts := make(map[string]struct{}, len(a.Exts))
	for _, e := range a.Exts {
		exts[e] = struct{}{}
	}
	return exts, nil
}

func (a *Adapter) SurfaceSupport() (gpu.SurfaceSupport, error) {
	if a.SupportErr != nil {
		return gpu.SurfaceSupport{}, a.SupportErr
	}
	return a.Support, nil
}

func (a *Adapter) CreateDevice(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	if a.CreateErr != nil {
		return nil, a.CreateErr
	}
	a.Created = true
	a.Device.Info = info
	return a.Device, nil
}
