package engine

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"
)

// FrameStats counts what the scheduler has done since it was created.
type FrameStats struct {
	Ticks             int
	AcquireSuboptimal int
	PresentSuboptimal int
	PresentOutOfDate  int
	Busy              time.Duration
	Longest           time.Duration
}

// Mean is the average wall time of a tick.
func (s FrameStats) Mean() time.Duration {
	if s.Ticks == 0 {
		return 0
	}
	return s.Busy / time.Duration(s.Ticks)
}

func (s *FrameStats) record(elapsed time.Duration) {
	s.Ticks++
	s.Busy += elapsed
	if elapsed > s.Longest {
		s.Longest = elapsed
	}
}

// statsReporter logs the change in FrameStats at most once per interval.
type statsReporter struct {
	logger   *slog.Logger
	interval time.Duration
	last     time.Duration
	prev     FrameStats
}

func newStatsReporter(logger *slog.Logger, interval time.Duration) *statsReporter {
	return &statsReporter{logger: logger, interval: interval, last: hrtime.Now()}
}

func (r *statsReporter) report(stats FrameStats) bool {
	if r.interval <= 0 {
		return false
	}
	now := hrtime.Now()
	elapsed := now - r.last
	if elapsed < r.interval {
		return false
	}

	ticks := stats.Ticks - r.prev.Ticks
	var mean time.Duration
	if ticks > 0 {
		mean = (stats.Busy - r.prev.Busy) / time.Duration(ticks)
	}
	r.logger.Debug("frame stats",
		"frames", ticks,
		"fps", float64(ticks)/elapsed.Seconds(),
		"mean_tick", mean,
		"longest_tick", stats.Longest,
		"suboptimal", stats.AcquireSuboptimal+stats.PresentSuboptimal,
		"out_of_date", stats.PresentOutOfDate)

	r.last = now
	r.prev = stats
	return true
}
