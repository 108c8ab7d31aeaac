package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/lifecycle"
)

// FrameTargets holds one framebuffer per swapchain image, in image order.
type FrameTargets struct {
	*lifecycle.Owner

	logger       *slog.Logger
	releases     []func()
	framebuffers []gpu.Framebuffer
	closed       bool
}

func NewFrameTargets(surface *PresentationSurface, pipeline *RenderPipeline, logger *slog.Logger) (*FrameTargets, error) {
	if logger == nil {
		logger = slog.Default()
	}
	device := surface.dc.Device()

	framebuffers := make([]gpu.Framebuffer, 0, surface.ImageCount())
	for i := 0; i < surface.ImageCount(); i++ {
		fb, err := device.CreateFramebuffer(gpu.FramebufferCreateInfo{
			RenderPass: pipeline.RenderPass(),
			View:       surface.View(i),
			Extent:     surface.Extent(),
		})
		if err != nil {
			for j := len(framebuffers) - 1; j >= 0; j-- {
				framebuffers[j].Destroy()
			}
			return nil, errors.Mark(errors.Wrapf(err, "create framebuffer %d", i), ErrSurfaceNegotiation)
		}
		framebuffers = append(framebuffers, fb)
	}

	logger.Debug("framebuffers created", "count", len(framebuffers))

	return &FrameTargets{
		Owner:  lifecycle.NewOwner("frame targets"),
		logger: logger,
		releases: []func(){
			surface.Borrow("frame targets"),
			pipeline.Borrow("frame targets"),
		},
		framebuffers: framebuffers,
	}, nil
}

func (t *FrameTargets) Len() int {
	return len(t.framebuffers)
}

// Framebuffer returns the framebuffer wrapping swapchain image i.
func (t *FrameTargets) Framebuffer(i int) gpu.Framebuffer {
	return t.framebuffers[i]
}

func (t *FrameTargets) Close() error {
	if t.closed {
		return nil
	}
	if err := t.CheckReleasable(); err != nil {
		return errors.Mark(err, ErrTeardownOrder)
	}

	for i := len(t.framebuffers) - 1; i >= 0; i-- {
		t.framebuffers[i].Destroy()
	}
	for _, release := range t.releases {
		release()
	}
	t.closed = true
	t.logger.Debug("framebuffers destroyed")
	return nil
}
