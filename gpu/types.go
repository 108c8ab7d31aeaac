package gpu

import (
	"fmt"
	"time"
)

// UndefinedExtent is the value a surface reports in CurrentExtent.Width when the
// window system lets the swapchain decide its own size.
const UndefinedExtent = -1

// NoTimeout makes a wait block until the awaited object is signaled.
const NoTimeout time.Duration = -1

// SwapchainExtension is the device extension every presenting device must expose.
const SwapchainExtension = "VK_KHR_swapchain"

// ValidationLayer is the layer enabled when validation is requested.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

type Extent2D struct {
	Width  int
	Height int
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Format values are the numeric VkFormat values.
type Format int

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8UNorm Format = 37
	FormatR8G8B8A8SRGB  Format = 43
	FormatB8G8R8A8UNorm Format = 44
	FormatB8G8R8A8SRGB  Format = 50
)

var formatNames = map[Format]string{
	FormatUndefined:     "Undefined",
	FormatR8G8B8A8UNorm: "R8G8B8A8UNorm",
	FormatR8G8B8A8SRGB:  "R8G8B8A8SRGB",
	FormatB8G8R8A8UNorm: "B8G8R8A8UNorm",
	FormatB8G8R8A8SRGB:  "B8G8R8A8SRGB",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ColorSpace values are the numeric VkColorSpaceKHR values.
type ColorSpace int

const ColorSpaceSRGBNonlinear ColorSpace = 0

func (c ColorSpace) String() string {
	if c == ColorSpaceSRGBNonlinear {
		return "SRGBNonlinear"
	}
	return fmt.Sprintf("ColorSpace(%d)", int(c))
}

// PresentMode values are the numeric VkPresentModeKHR values.
type PresentMode int

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

type SharingMode int

const (
	SharingExclusive SharingMode = iota
	SharingConcurrent
)

func (m SharingMode) String() string {
	if m == SharingConcurrent {
		return "Concurrent"
	}
	return "Exclusive"
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount int
	// MaxImageCount of zero means there is no upper bound.
	MaxImageCount int

	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// SurfaceSupport is everything an adapter reports about presenting to the target surface.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// QueueFamily describes one queue family of an adapter. Present reports whether
// queues of the family can present to the target surface.
type QueueFamily struct {
	Graphics bool
	Present  bool
}

// Status is the non-error outcome of acquiring or presenting a swapchain image.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusSuboptimal:
		return "Suboptimal"
	case StatusOutOfDate:
		return "OutOfDate"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}
