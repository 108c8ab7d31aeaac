// Package engine presents frames to a window surface through a gpu backend.
//
// The engine is built from five components, each depending on the ones before it:
// DeviceContext, PresentationSurface, RenderPipeline, FrameTargets and
// FrameScheduler. Engine builds them in that order and tears them down in reverse.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/lifecycle"
)

// Platform is the window the engine presents to.
type Platform interface {
	PollEvents()
	CloseRequested() bool
	DrawableSize() gpu.Extent2D
}

type Config struct {
	Validation bool
	// Extensions are device extensions required beyond the swapchain.
	Extensions []string

	// Extent is the preferred swapchain size. Zero uses the platform's drawable size.
	Extent gpu.Extent2D
	// SwapchainImages is the requested image count. Zero lets the surface decide.
	SwapchainImages int
	FramesInFlight  int
	ClearColor      mgl32.Vec4
	Shaders         ShaderPaths
	FenceTimeout    time.Duration
	StatsInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		ClearColor:     mgl32.Vec4{0, 0, 0, 1},
		Shaders: ShaderPaths{
			Vertex:   "shaders/vert.spv",
			Fragment: "shaders/frag.spv",
		},
		StatsInterval: 5 * time.Second,
	}
}

type Engine struct {
	logger   *slog.Logger
	platform Platform
	stack    lifecycle.Stack
	reporter *statsReporter
	closed   bool

	dc        *DeviceContext
	surface   *PresentationSurface
	pipeline  *RenderPipeline
	targets   *FrameTargets
	scheduler *FrameScheduler
}

// New builds every component on the instance. If any step fails, what was already
// built is torn down before the error is returned.
func New(instance gpu.Instance, platform Platform, shaders ShaderLoader, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", uuid.New().String())

	e := &Engine{
		logger:   logger,
		platform: platform,
		reporter: newStatsReporter(logger, cfg.StatsInterval),
	}
	if err := e.build(instance, shaders, cfg); err != nil {
		if closeErr := e.stack.Close(); closeErr != nil {
			err = errors.CombineErrors(err, closeErr)
		}
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(instance gpu.Instance, shaders ShaderLoader, cfg Config) error {
	var err error

	e.dc, err = NewDeviceContext(instance, DeviceOptions{
		EnableValidation: cfg.Validation,
		Extensions:       cfg.Extensions,
	}, e.logger)
	if err != nil {
		return err
	}
	e.stack.Push("device context", e.dc.Close)

	preferred := cfg.Extent
	if preferred.Width == 0 || preferred.Height == 0 {
		preferred = e.platform.DrawableSize()
	}
	e.surface, err = Negotiate(e.dc, e.dc.SurfaceSupport(), preferred, cfg.SwapchainImages, e.logger)
	if err != nil {
		return err
	}
	e.stack.Push("presentation surface", e.surface.Close)

	e.pipeline, err = NewRenderPipeline(e.dc, e.surface.Target(), shaders, cfg.Shaders, e.logger)
	if err != nil {
		return err
	}
	e.stack.Push("render pipeline", e.pipeline.Close)

	e.targets, err = NewFrameTargets(e.surface, e.pipeline, e.logger)
	if err != nil {
		return err
	}
	e.stack.Push("frame targets", e.targets.Close)

	e.scheduler, err = NewFrameScheduler(e.dc, e.surface, e.pipeline, e.targets, SchedulerOptions{
		FramesInFlight: cfg.FramesInFlight,
		ClearColor:     cfg.ClearColor,
		FenceTimeout:   cfg.FenceTimeout,
	}, e.logger)
	if err != nil {
		return err
	}
	e.stack.Push("frame scheduler", e.scheduler.Close)

	e.logger.Info("engine ready",
		"adapter", e.dc.AdapterName(),
		"extent", e.surface.Extent(),
		"images", e.surface.ImageCount(),
		"present_mode", e.surface.PresentMode(),
		"frames_in_flight", e.scheduler.FramesInFlight())
	return nil
}

// Run draws frames until the platform asks to close or ctx is done. Close requests
// are only observed between frames.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil || e.platform.CloseRequested() {
			return nil
		}
		e.platform.PollEvents()
		if e.platform.CloseRequested() {
			return nil
		}

		if err := e.scheduler.Tick(); err != nil {
			return err
		}
		e.reporter.report(e.scheduler.Stats())
	}
}

func (e *Engine) DeviceContext() *DeviceContext {
	return e.dc
}

func (e *Engine) Surface() *PresentationSurface {
	return e.surface
}

func (e *Engine) Scheduler() *FrameScheduler {
	return e.scheduler
}

// Close waits for the device to finish outstanding work and releases every
// component in reverse construction order.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.dc.WaitIdle()
	if closeErr := e.stack.Close(); closeErr != nil {
		err = errors.CombineErrors(err, closeErr)
	}
	e.logger.Debug("engine closed", "frames", e.scheduler.Stats().Ticks)
	return err
}
