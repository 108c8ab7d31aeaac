package engine

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/lifecycle"
)

var preferredFormat = gpu.SurfaceFormat{
	Format:     gpu.FormatB8G8R8A8SRGB,
	ColorSpace: gpu.ColorSpaceSRGBNonlinear,
}

func ChooseSurfaceFormat(formats []gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, errors.Mark(errors.Wrap(ErrChainCreation, "surface reports no formats"), ErrSurfaceNegotiation)
	}
	for _, f := range formats {
		if f == preferredFormat {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// surface is required to support.
func ChoosePresentMode(modes []gpu.PresentMode) gpu.PresentMode {
	for _, m := range modes {
		if m == gpu.PresentModeMailbox {
			return m
		}
	}
	return gpu.PresentModeFIFO
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChooseExtent uses the surface's current extent when it has one, and otherwise
// clamps the preferred extent into the supported range.
func ChooseExtent(caps gpu.SurfaceCapabilities, preferred gpu.Extent2D) gpu.Extent2D {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(preferred.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(preferred.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum unless more were
// requested, capped by the maximum when the surface has one. Zero means no request.
func ChooseImageCount(caps gpu.SurfaceCapabilities, requested int) int {
	n := caps.MinImageCount + 1
	if requested > n {
		n = requested
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func ChooseSharing(graphicsFamily, presentFamily int) (gpu.SharingMode, []int) {
	if graphicsFamily == presentFamily {
		return gpu.SharingExclusive, nil
	}
	return gpu.SharingConcurrent, []int{graphicsFamily, presentFamily}
}

// Target is what a render pipeline needs to know about the images it draws into.
type Target struct {
	Format gpu.Format
	Extent gpu.Extent2D
}

// PresentationSurface is the negotiated swapchain and one view per image.
type PresentationSurface struct {
	*lifecycle.Owner

	logger      *slog.Logger
	dc          *DeviceContext
	release     func()
	swapchain   gpu.Swapchain
	images      []gpu.Image
	views       []gpu.ImageView
	format      gpu.SurfaceFormat
	extent      gpu.Extent2D
	presentMode gpu.PresentMode
	sharing     gpu.SharingMode
	closed      bool
}

func Negotiate(dc *DeviceContext, support gpu.SurfaceSupport, preferred gpu.Extent2D, requestedImages int, logger *slog.Logger) (*PresentationSurface, error) {
	if logger == nil {
		logger = slog.Default()
	}

	format, err := ChooseSurfaceFormat(support.Formats)
	if err != nil {
		return nil, err
	}
	presentMode := ChoosePresentMode(support.PresentModes)
	extent := ChooseExtent(support.Capabilities, preferred)
	imageCount := ChooseImageCount(support.Capabilities, requestedImages)
	sharing, families := ChooseSharing(dc.GraphicsFamily(), dc.PresentFamily())

	device := dc.Device()
	swapchain, err := device.CreateSwapchain(gpu.SwapchainCreateInfo{
		ImageCount:    imageCount,
		Format:        format,
		Extent:        extent,
		PresentMode:   presentMode,
		Sharing:       sharing,
		QueueFamilies: families,
	})
	if err != nil {
		return nil, classify(err, ErrChainCreation, ErrSurfaceNegotiation, "create swapchain")
	}

	images, err := swapchain.Images()
	if err != nil {
		swapchain.Destroy()
		return nil, classify(err, ErrChainCreation, ErrSurfaceNegotiation, "get swapchain images")
	}

	views := make([]gpu.ImageView, 0, len(images))
	for i, image := range images {
		view, err := device.CreateImageView(image, format.Format)
		if err != nil {
			for j := len(views) - 1; j >= 0; j-- {
				views[j].Destroy()
			}
			swapchain.Destroy()
			return nil, classify(err, ErrSurfaceCreation, ErrSurfaceNegotiation, fmt.Sprintf("create view for image %d", i))
		}
		views = append(views, view)
	}

	logger.Debug("swapchain negotiated",
		"format", format.Format,
		"color_space", format.ColorSpace,
		"present_mode", presentMode,
		"extent", extent,
		"images", len(images),
		"sharing", sharing)

	return &PresentationSurface{
		Owner:       lifecycle.NewOwner("presentation surface"),
		logger:      logger,
		dc:          dc,
		release:     dc.Borrow("presentation surface"),
		swapchain:   swapchain,
		images:      images,
		views:       views,
		format:      format,
		extent:      extent,
		presentMode: presentMode,
		sharing:     sharing,
	}, nil
}

func (s *PresentationSurface) Format() gpu.SurfaceFormat {
	return s.format
}

func (s *PresentationSurface) Extent() gpu.Extent2D {
	return s.extent
}

func (s *PresentationSurface) PresentMode() gpu.PresentMode {
	return s.presentMode
}

func (s *PresentationSurface) Sharing() gpu.SharingMode {
	return s.sharing
}

func (s *PresentationSurface) ImageCount() int {
	return len(s.images)
}

func (s *PresentationSurface) View(i int) gpu.ImageView {
	return s.views[i]
}

func (s *PresentationSurface) Swapchain() gpu.Swapchain {
	return s.swapchain
}

// Target describes the images without handing them out.
func (s *PresentationSurface) Target() Target {
	return Target{Format: s.format.Format, Extent: s.extent}
}

func (s *PresentationSurface) Close() error {
	if s.closed {
		return nil
	}
	if err := s.CheckReleasable(); err != nil {
		return errors.Mark(err, ErrTeardownOrder)
	}

	for i := len(s.views) - 1; i >= 0; i-- {
		s.views[i].Destroy()
	}
	s.swapchain.Destroy()
	s.release()
	s.closed = true
	s.logger.Debug("swapchain destroyed")
	return nil
}
