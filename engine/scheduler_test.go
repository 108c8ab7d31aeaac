package engine

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkpresent/presenter/gpu"
	"github.com/vkpresent/presenter/gpu/gputest"
)

func TestTwoFramesThreeImages(t *testing.T) {
	r := newRig(t, 2, 3, nil)

	var slots []int
	for i := 0; i < 10; i++ {
		slots = append(slots, r.scheduler.CurrentSlot())
		require.NoError(t, r.scheduler.Tick())
	}

	assert.Equal(t, []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}, slots)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, r.dev.Presented)
	assert.Empty(t, r.dev.Violations)
	assert.LessOrEqual(t, r.dev.MaxPending, 2)
	assert.Equal(t, 2, r.dev.MaxPending)
	assert.Equal(t, 10, r.scheduler.Stats().Ticks)

	require.Len(t, r.dev.Submissions, 10)
	for i, s := range r.dev.Submissions {
		assert.Equal(t, r.dev.Acquired[i], s.Image, "submission %d", i)
		assert.Equal(t, r.dc.GraphicsFamily(), s.Family)
	}
}

func TestThreeFramesTwoImagesWaitsForImageOwner(t *testing.T) {
	r := newRig(t, 3, 2, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.scheduler.Tick())
	}

	// The third tick lands on image 0 again from slot 2, so it must wait for the
	// fence of slot 0 before touching the image.
	require.Len(t, r.dev.FenceWaits, 4)
	assert.Same(t, r.scheduler.slots[2].inFlight, r.dev.FenceWaits[2])
	assert.Same(t, r.scheduler.slots[0].inFlight, r.dev.FenceWaits[3])
	assert.True(t, r.dev.Submissions[0].Done())
	assert.Empty(t, r.dev.Violations)
	assert.LessOrEqual(t, r.dev.MaxPending, 3)

	for i := 0; i < 9; i++ {
		require.NoError(t, r.scheduler.Tick())
	}
	assert.Empty(t, r.dev.Violations)
	assert.LessOrEqual(t, r.dev.MaxPending, 2)
}

func TestOutOfOrderAcquire(t *testing.T) {
	r := newRig(t, 2, 3, func(a *gputest.Adapter) {
		a.Device.AcquireOrder = []int{2, 2, 0, 1, 1, 0, 2}
	})

	for i := 0; i < 21; i++ {
		require.NoError(t, r.scheduler.Tick())
	}
	assert.Empty(t, r.dev.Violations)
	assert.LessOrEqual(t, r.dev.MaxPending, 2)
}

func TestSingleFrameInFlight(t *testing.T) {
	r := newRig(t, 1, 3, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, r.scheduler.CurrentSlot())
		require.NoError(t, r.scheduler.Tick())
	}
	assert.Empty(t, r.dev.Violations)
	assert.Equal(t, 1, r.dev.MaxPending)
}

func TestImageBusyTableOwner(t *testing.T) {
	dev := gputest.NewDevice()
	f0, err := dev.CreateFence(true)
	require.NoError(t, err)
	f1, err := dev.CreateFence(true)
	require.NoError(t, err)

	busy := make(imageBusyTable, 2)
	assert.Nil(t, busy.owner(0, f0))

	busy[0] = f0
	assert.Nil(t, busy.owner(0, f0))
	assert.Equal(t, f0, busy.owner(0, f1))
	assert.Equal(t, f0, busy[0])
	assert.Nil(t, busy[1])
}

func TestFailedImageWaitKeepsOwner(t *testing.T) {
	r := newRig(t, 3, 2, nil)
	boom := errors.New("boom")

	require.NoError(t, r.scheduler.Tick())
	require.NoError(t, r.scheduler.Tick())
	owner := r.scheduler.slots[0].inFlight
	require.Same(t, owner, r.scheduler.busy[0])

	// Slot 2 acquires image 0; its second wait is the one on slot 0's fence.
	r.dev.FailOn(gputest.KindWait, 1, boom)
	err := r.scheduler.Tick()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, ErrSubmission))
	assert.Contains(t, err.Error(), "wait for image 0")

	assert.Same(t, owner, r.scheduler.busy[0])
	assert.Equal(t, 2, r.scheduler.CurrentSlot())
	assert.Len(t, r.dev.Submissions, 2)
}

func TestRecordedCommands(t *testing.T) {
	r := newRig(t, 2, 3, nil)
	r.scheduler.clearColor = mgl32.Vec4{0.1, 0.2, 0.3, 1}

	require.NoError(t, r.scheduler.Tick())

	pool := r.scheduler.pool.(*gputest.CommandPool)
	ops := pool.Buffers[0].Ops
	require.Len(t, ops, 6)
	assert.Equal(t, "begin", ops[0])
	assert.Contains(t, ops[1], "beginRenderPass image=0 extent=800x600")
	assert.Contains(t, ops[1], "0.1")
	assert.Equal(t, "bindPipeline", ops[2])
	assert.Equal(t, "draw 3 1 0 0", ops[3])
	assert.Equal(t, "endRenderPass", ops[4])
	assert.Equal(t, "end", ops[5])
}

func TestAcquireSuboptimalProceeds(t *testing.T) {
	r := newRig(t, 2, 3, func(a *gputest.Adapter) {
		a.Device.AcquireStatuses = []gpu.Status{gpu.StatusSuboptimal, gpu.StatusSuboptimal, gpu.StatusSuccess}
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, r.scheduler.Tick())
	}
	assert.Equal(t, 2, r.scheduler.Stats().AcquireSuboptimal)
	assert.Len(t, r.dev.Presented, 3)
	assert.Empty(t, r.dev.Violations)
}

func TestAcquireOutOfDateIsFatal(t *testing.T) {
	r := newRig(t, 2, 3, func(a *gputest.Adapter) {
		a.Device.AcquireStatuses = []gpu.Status{gpu.StatusSuccess, gpu.StatusOutOfDate}
	})

	require.NoError(t, r.scheduler.Tick())
	err := r.scheduler.Tick()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSurfaceOutOfDate))
	assert.True(t, errors.Is(err, ErrPresentation))

	assert.Len(t, r.dev.Submissions, 1)
	assert.Len(t, r.dev.Presented, 1)
	assert.Equal(t, 1, r.scheduler.CurrentSlot())
}

func TestPresentSuboptimalAndOutOfDateProceed(t *testing.T) {
	r := newRig(t, 2, 3, func(a *gputest.Adapter) {
		a.Device.PresentStatuses = []gpu.Status{gpu.StatusSuboptimal, gpu.StatusOutOfDate, gpu.StatusSuccess}
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, r.scheduler.Tick())
	}
	stats := r.scheduler.Stats()
	assert.Equal(t, 1, stats.PresentSuboptimal)
	assert.Equal(t, 1, stats.PresentOutOfDate)
	assert.Equal(t, 4, stats.Ticks)
	assert.Empty(t, r.dev.Violations)
}

func TestTickFailures(t *testing.T) {
	boom := errors.New("boom")

	for _, tc := range []struct {
		name     string
		inject   func(d *gputest.Device)
		category error
	}{
		{"fence wait", func(d *gputest.Device) { d.WaitErr = boom }, ErrSubmission},
		{"acquire", func(d *gputest.Device) { d.AcquireErr = boom }, ErrPresentation},
		{"record", func(d *gputest.Device) { d.EndErr = boom }, ErrSubmission},
		{"submit", func(d *gputest.Device) { d.SubmitErr = boom }, ErrSubmission},
		{"present", func(d *gputest.Device) { d.PresentErr = boom }, ErrPresentation},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, 2, 3, nil)
			require.NoError(t, r.scheduler.Tick())

			tc.inject(r.dev)
			err := r.scheduler.Tick()
			require.Error(t, err)
			assert.True(t, errors.Is(err, boom))
			assert.True(t, errors.Is(err, tc.category))
			assert.Equal(t, 1, r.scheduler.CurrentSlot())
		})
	}
}

func TestFenceTimeoutDefaultsToNoTimeout(t *testing.T) {
	r := newRig(t, 2, 3, nil)
	require.NoError(t, r.scheduler.Tick())

	assert.Equal(t, []time.Duration{gpu.NoTimeout}, r.dev.WaitTimeouts)
	assert.Equal(t, []time.Duration{gpu.NoTimeout}, r.dev.AcquireTimeouts)
}

func TestFenceTimeoutIsPassedThrough(t *testing.T) {
	r := newRigWithOptions(t, SchedulerOptions{FramesInFlight: 3, FenceTimeout: 50 * time.Millisecond}, 2, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.scheduler.Tick())
	}

	// Three slot waits plus the cross-image wait of the third tick.
	require.Len(t, r.dev.WaitTimeouts, 4)
	for _, timeout := range r.dev.WaitTimeouts {
		assert.Equal(t, 50*time.Millisecond, timeout)
	}
	require.Len(t, r.dev.AcquireTimeouts, 3)
	for _, timeout := range r.dev.AcquireTimeouts {
		assert.Equal(t, 50*time.Millisecond, timeout)
	}
}

func TestSchedulerRejectsZeroFrames(t *testing.T) {
	r := newRig(t, 2, 3, nil)

	_, err := NewFrameScheduler(r.dc, r.surface, r.pipeline, r.targets, SchedulerOptions{}, discardLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyncObject))
}

func TestSchedulerCleansUpPartialSyncObjects(t *testing.T) {
	boom := errors.New("no more fences")

	for _, tc := range []struct {
		kind string
		n    int
	}{
		{gputest.KindCommandPool, 0},
		{gputest.KindCommandBuffer, 1},
		{gputest.KindSemaphore, 3},
		{gputest.KindFence, 1},
	} {
		t.Run(tc.kind, func(t *testing.T) {
			r := newRig(t, 2, 3, nil)
			require.NoError(t, r.scheduler.Close())
			r.scheduler = nil
			live := r.dev.Live()

			r.dev.FailOn(tc.kind, tc.n, boom)

			_, err := NewFrameScheduler(r.dc, r.surface, r.pipeline, r.targets, SchedulerOptions{FramesInFlight: 3}, discardLogger())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyncObject))
			assert.True(t, errors.Is(err, boom))
			assert.Equal(t, live, r.dev.Live())
			assert.Empty(t, r.dev.Violations)
			assert.False(t, r.targets.Borrowed())
		})
	}
}

func TestSchedulerClose(t *testing.T) {
	r := newRig(t, 2, 3, nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.scheduler.Tick())
	}

	assert.True(t, r.dc.Borrowed())
	require.NoError(t, r.dc.WaitIdle())
	require.NoError(t, r.scheduler.Close())
	require.NoError(t, r.scheduler.Close())
	assert.False(t, r.targets.Borrowed())
	assert.Empty(t, r.dev.Violations)
}
