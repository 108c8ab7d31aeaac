package engine

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/vkpresent/presenter/gpu"
)

type SchedulerOptions struct {
	// FramesInFlight is how many frames the CPU may record ahead of the GPU.
	FramesInFlight int
	ClearColor     mgl32.Vec4
	// FenceTimeout bounds every fence wait and image acquire. Zero waits forever.
	FenceTimeout time.Duration
}

// frameSlot is the per-frame set of objects reused every FramesInFlight ticks.
type frameSlot struct {
	imageAcquired  gpu.Semaphore
	renderComplete gpu.Semaphore
	inFlight       gpu.Fence
	commands       gpu.CommandBuffer
}

// imageBusyTable maps each swapchain image to the fence of the last submission
// that rendered to it. A nil entry means the image has never been rendered.
type imageBusyTable []gpu.Fence

// owner returns the fence a submission fenced by f must wait on before it may
// render to image idx, or nil. The table is not changed.
func (t imageBusyTable) owner(idx int, f gpu.Fence) gpu.Fence {
	prev := t[idx]
	if prev == nil || prev == f {
		return nil
	}
	return prev
}

// FrameScheduler drives the acquire, record, submit and present cycle.
type FrameScheduler struct {
	logger   *slog.Logger
	releases []func()

	device     gpu.Device
	graphics   gpu.Queue
	present    gpu.Queue
	swapchain  gpu.Swapchain
	extent     gpu.Extent2D
	renderPass gpu.RenderPass
	pipeline   gpu.Pipeline
	targets    *FrameTargets

	clearColor mgl32.Vec4
	timeout    time.Duration

	pool    gpu.CommandPool
	slots   []frameSlot
	busy    imageBusyTable
	current int

	stats            FrameStats
	warnedSuboptimal bool
	closed           bool
}

func NewFrameScheduler(dc *DeviceContext, surface *PresentationSurface, pipeline *RenderPipeline, targets *FrameTargets, opts SchedulerOptions, logger *slog.Logger) (*FrameScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FramesInFlight < 1 {
		return nil, errors.Mark(errors.Newf("frames in flight must be at least 1, got %d", opts.FramesInFlight), ErrSyncObject)
	}
	timeout := opts.FenceTimeout
	if timeout <= 0 {
		timeout = gpu.NoTimeout
	}

	s := &FrameScheduler{
		logger:     logger,
		device:     dc.Device(),
		graphics:   dc.GraphicsQueue(),
		present:    dc.PresentQueue(),
		swapchain:  surface.Swapchain(),
		extent:     surface.Extent(),
		renderPass: pipeline.RenderPass(),
		pipeline:   pipeline.Pipeline(),
		targets:    targets,
		clearColor: opts.ClearColor,
		timeout:    timeout,
		busy:       make(imageBusyTable, surface.ImageCount()),
	}

	if err := s.createSyncObjects(dc.GraphicsFamily(), opts.FramesInFlight); err != nil {
		s.destroySyncObjects()
		return nil, errors.Mark(err, ErrSyncObject)
	}

	s.releases = []func(){
		dc.Borrow("frame scheduler"),
		surface.Borrow("frame scheduler"),
		pipeline.Borrow("frame scheduler"),
		targets.Borrow("frame scheduler"),
	}

	logger.Debug("frame scheduler created", "frames_in_flight", opts.FramesInFlight, "images", surface.ImageCount())
	return s, nil
}

func (s *FrameScheduler) createSyncObjects(family, frames int) error {
	var err error
	s.pool, err = s.device.CreateCommandPool(family)
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}

	buffers, err := s.pool.Allocate(frames)
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}

	for i := 0; i < frames; i++ {
		slot := frameSlot{commands: buffers[i]}

		slot.imageAcquired, err = s.device.CreateSemaphore()
		if err != nil {
			return errors.Wrapf(err, "create image-acquired semaphore %d", i)
		}
		slot.renderComplete, err = s.device.CreateSemaphore()
		if err != nil {
			slot.imageAcquired.Destroy()
			return errors.Wrapf(err, "create render-complete semaphore %d", i)
		}
		slot.inFlight, err = s.device.CreateFence(true)
		if err != nil {
			slot.renderComplete.Destroy()
			slot.imageAcquired.Destroy()
			return errors.Wrapf(err, "create in-flight fence %d", i)
		}

		s.slots = append(s.slots, slot)
	}
	return nil
}

func (s *FrameScheduler) destroySyncObjects() {
	for i := len(s.slots) - 1; i >= 0; i-- {
		s.slots[i].inFlight.Destroy()
		s.slots[i].renderComplete.Destroy()
		s.slots[i].imageAcquired.Destroy()
	}
	s.slots = nil
	if s.pool != nil {
		s.pool.Destroy()
		s.pool = nil
	}
}

// Tick renders and presents one frame. Any error is fatal to the scheduler.
func (s *FrameScheduler) Tick() error {
	start := hrtime.Now()
	slot := s.slots[s.current]

	if err := s.device.WaitForFences(s.timeout, slot.inFlight); err != nil {
		return errors.Mark(errors.Wrapf(err, "wait for frame slot %d", s.current), ErrSubmission)
	}

	idx, status, err := s.swapchain.AcquireNextImage(s.timeout, slot.imageAcquired)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "acquire next image"), ErrPresentation)
	}
	switch status {
	case gpu.StatusOutOfDate:
		return errors.Mark(errors.Wrap(ErrSurfaceOutOfDate, "acquire next image"), ErrPresentation)
	case gpu.StatusSuboptimal:
		s.stats.AcquireSuboptimal++
		if !s.warnedSuboptimal {
			s.warnedSuboptimal = true
			s.logger.Warn("swapchain is suboptimal for the surface, continuing")
		}
	}

	if prev := s.busy.owner(idx, slot.inFlight); prev != nil {
		if err := s.device.WaitForFences(s.timeout, prev); err != nil {
			return errors.Mark(errors.Wrapf(err, "wait for image %d", idx), ErrSubmission)
		}
	}
	s.busy[idx] = slot.inFlight

	if err := s.device.ResetFences(slot.inFlight); err != nil {
		return errors.Mark(errors.Wrapf(err, "reset fence of frame slot %d", s.current), ErrSubmission)
	}
	if err := s.record(slot.commands, idx); err != nil {
		return errors.Mark(errors.Wrapf(err, "record frame slot %d", s.current), ErrSubmission)
	}

	err = s.graphics.Submit(gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.imageAcquired},
		CommandBuffers:   []gpu.CommandBuffer{slot.commands},
		SignalSemaphores: []gpu.Semaphore{slot.renderComplete},
	}, slot.inFlight)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "submit frame slot %d", s.current), ErrSubmission)
	}

	status, err = s.present.Present(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.renderComplete},
		Swapchain:      s.swapchain,
		ImageIndex:     idx,
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "present image %d", idx), ErrPresentation)
	}
	switch status {
	case gpu.StatusSuboptimal:
		s.stats.PresentSuboptimal++
	case gpu.StatusOutOfDate:
		s.stats.PresentOutOfDate++
		s.logger.Warn("swapchain went out of date on present", "image", idx)
	}

	s.current = (s.current + 1) % len(s.slots)
	s.stats.record(hrtime.Since(start))
	return nil
}

func (s *FrameScheduler) record(cmd gpu.CommandBuffer, idx int) error {
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	err := cmd.BeginRenderPass(gpu.RenderPassBeginInfo{
		RenderPass:  s.renderPass,
		Framebuffer: s.targets.Framebuffer(idx),
		Extent:      s.extent,
		ClearColor:  s.clearColor,
	})
	if err != nil {
		return err
	}
	cmd.BindPipeline(s.pipeline)
	cmd.Draw(3, 1, 0, 0)
	cmd.EndRenderPass()
	return cmd.End()
}

// CurrentSlot is the slot the next Tick will use.
func (s *FrameScheduler) CurrentSlot() int {
	return s.current
}

func (s *FrameScheduler) FramesInFlight() int {
	return len(s.slots)
}

func (s *FrameScheduler) Stats() FrameStats {
	return s.stats
}

// Close destroys the sync objects and command buffers. The device must be idle.
func (s *FrameScheduler) Close() error {
	if s.closed {
		return nil
	}
	s.destroySyncObjects()
	for _, release := range s.releases {
		release()
	}
	s.closed = true
	s.logger.Debug("frame scheduler destroyed")
	return nil
}
