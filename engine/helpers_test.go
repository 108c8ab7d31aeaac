package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/gpu/gputest"
)

var spirvMagic = []uint32{0x07230203}

type fakePlatform struct {
	size       gpu.Extent2D
	closeAfter int
	polls      int
}

func (p *fakePlatform) PollEvents() {
	p.polls++
}

func (p *fakePlatform) CloseRequested() bool {
	return p.closeAfter > 0 && p.polls >= p.closeAfter
}

func (p *fakePlatform) DrawableSize() gpu.Extent2D {
	return p.size
}

type fakeShaders struct {
	paths  []string
	failOn string
	err    error
}

func (s *fakeShaders) LoadShader(device gpu.Device, path string) (gpu.ShaderModule, error) {
	s.paths = append(s.paths, path)
	if s.err != nil && (s.failOn == "" || s.failOn == path) {
		return nil, s.err
	}
	return device.CreateShaderModule(spirvMagic)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withImages makes the adapter's surface settle on exactly n images when no
// count is requested.
func withImages(a *gputest.Adapter, n int) {
	a.Support.Capabilities.MinImageCount = n - 1
	a.Support.Capabilities.MaxImageCount = n
}

type rig struct {
	adapter   *gputest.Adapter
	dev       *gputest.Device
	dc        *DeviceContext
	surface   *PresentationSurface
	pipeline  *RenderPipeline
	targets   *FrameTargets
	scheduler *FrameScheduler
}

// newRig builds every component by hand against a fresh fake adapter.
// configure, if set, runs before anything is created.
func newRig(t *testing.T, frames, images int, configure func(*gputest.Adapter)) *rig {
	t.Helper()
	return newRigWithOptions(t, SchedulerOptions{FramesInFlight: frames}, images, configure)
}

func newRigWithOptions(t *testing.T, opts SchedulerOptions, images int, configure func(*gputest.Adapter)) *rig {
	t.Helper()
	logger := discardLogger()

	adapter := gputest.NewAdapter("fake")
	withImages(adapter, images)
	if configure != nil {
		configure(adapter)
	}
	r := &rig{adapter: adapter, dev: adapter.Device}

	var err error
	r.dc, err = NewDeviceContext(gputest.NewInstance(adapter), DeviceOptions{}, logger)
	require.NoError(t, err)

	r.surface, err = Negotiate(r.dc, r.dc.SurfaceSupport(), gpu.Extent2D{Width: 800, Height: 600}, 0, logger)
	require.NoError(t, err)
	require.Equal(t, images, r.surface.ImageCount())

	r.pipeline, err = NewRenderPipeline(r.dc, r.surface.Target(), &fakeShaders{}, ShaderPaths{Vertex: "vert.spv", Fragment: "frag.spv"}, logger)
	require.NoError(t, err)

	r.targets, err = NewFrameTargets(r.surface, r.pipeline, logger)
	require.NoError(t, err)

	r.scheduler, err = NewFrameScheduler(r.dc, r.surface, r.pipeline, r.targets, opts, logger)
	require.NoError(t, err)

	t.Cleanup(r.close)
	return r
}

func (r *rig) close() {
	r.dc.WaitIdle()
	if r.scheduler != nil {
		r.scheduler.Close()
	}
	r.targets.Close()
	r.pipeline.Close()
	r.surface.Close()
	r.dc.Close()
}
