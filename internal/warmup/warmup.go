// Package warmup measures capture cadence before a consumer commits to a
// processing rate.
package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sample is what warm-up needs from one buffered entry.
type Sample struct {
	Seq        uint64
	CapturedAt time.Time
}

// PollFunc returns the next buffered sample without blocking.
type PollFunc func() (Sample, bool)

// DefaultPollInterval is how often an empty buffer is re-checked.
const DefaultPollInterval = 2 * time.Millisecond

// Run drains samples through poll for duration and returns the cadence
// statistics.
//
// Returns an error if:
//   - fewer than 2 samples were observed
//   - the cadence is unstable
//   - ctx is cancelled before duration elapses
func Run(ctx context.Context, poll PollFunc, duration, pollInterval time.Duration) (*Stats, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	slog.Info("sensor-capture: starting warm-up",
		"duration", duration,
		"reason", "measure real FPS before consuming",
	)

	start := time.Now()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	frameTimes := make([]time.Time, 0, 128)
	var (
		lastSeq uint64
		skipped uint64
	)

	drain := func() {
		for {
			s, ok := poll()
			if !ok {
				return
			}
			if lastSeq != 0 && s.Seq > lastSeq+1 {
				skipped += s.Seq - lastSeq - 1
			}
			lastSeq = s.Seq
			frameTimes = append(frameTimes, s.CapturedAt)
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("warmup: %w", ctx.Err())
		case <-deadline.C:
			drain()
			break loop
		case <-ticker.C:
			drain()
		}
	}

	elapsed := time.Since(start)
	if len(frameTimes) < 2 {
		return nil, fmt.Errorf("warmup: not enough frames received (got %d, need at least 2)", len(frameTimes))
	}

	// Capture timestamps span first to last frame, not the poll window
	span := frameTimes[len(frameTimes)-1].Sub(frameTimes[0])
	stats := CalculateFPSStats(frameTimes, spanOr(span, elapsed, len(frameTimes)))
	stats.FramesSkipped = skipped
	stats.Duration = elapsed

	slog.Info("sensor-capture: warm-up complete",
		"frames", stats.FramesReceived,
		"skipped", stats.FramesSkipped,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return stats, fmt.Errorf(
			"warmup: capture FPS unstable (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs, threshold: FPS<15%%, jitter<20%%)",
			stats.FPSMean, stats.FPSStdDev, stats.JitterMean,
		)
	}
	return stats, nil
}

// spanOr converts the first-to-last capture span into the window that
// makes n/window the mean rate over n-1 intervals. Falls back to the wall
// clock when the timestamps carry no spread.
func spanOr(span, elapsed time.Duration, n int) time.Duration {
	if span <= 0 || n < 2 {
		return elapsed
	}
	return time.Duration(float64(span) * float64(n) / float64(n-1))
}
