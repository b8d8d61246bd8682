package sensorcapture

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/warmup"
)

// WarmupStats contains capture cadence measured during warm-up
type WarmupStats struct {
	// FramesReceived is the number of entries consumed during warm-up
	FramesReceived int
	// FramesSkipped counts entries evicted before warm-up could read them
	FramesSkipped uint64
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// IsStable is true if stddev < 15% of mean AND jitter < 20% of interval
	IsStable bool
	// JitterMean is the average deviation from the expected interval (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the maximum jitter observed (seconds)
	JitterMax float64
}

func fromInternal(s *warmup.Stats) *WarmupStats {
	if s == nil {
		return nil
	}
	return &WarmupStats{
		FramesReceived: s.FramesReceived,
		FramesSkipped:  s.FramesSkipped,
		Duration:       s.Duration,
		FPSMean:        s.FPSMean,
		FPSStdDev:      s.FPSStdDev,
		FPSMin:         s.FPSMin,
		FPSMax:         s.FPSMax,
		IsStable:       s.IsStable,
		JitterMean:     s.JitterMean,
		JitterStdDev:   s.JitterStdDev,
		JitterMax:      s.JitterMax,
	}
}

// CalculateFPSStats calculates FPS statistics from capture timestamps.
// See internal/warmup for the stability thresholds.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return fromInternal(warmup.CalculateFPSStats(frameTimes, totalDuration))
}

// OptimalConsumerRate returns maxRate, or 90% of the measured FPS when the
// sensor delivers less than maxRate.
func OptimalConsumerRate(stats *WarmupStats, maxRate float64) float64 {
	if stats == nil {
		return maxRate
	}
	return warmup.OptimalConsumerRate(&warmup.Stats{FPSMean: stats.FPSMean}, maxRate)
}

// Warmup consumes entries for duration and measures capture cadence.
//
// The entries it reads are gone from the buffer afterwards. Returns an
// error if the session is not running, fewer than 2 frames arrived, the
// cadence is unstable (stats are still returned) or ctx is cancelled.
//
// Example:
//
//	h, _ := session.Spawn(ctx)
//	stats, err := session.Warmup(ctx, 3*time.Second)
//	if err != nil {
//	    log.Fatal("warmup failed:", err)
//	}
//	rate := sensorcapture.OptimalConsumerRate(stats, 5.0)
func (s *CaptureSession) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	if s.State() != StateRunning {
		return nil, fmt.Errorf("%w (state %s)", ErrNotRunning, s.State())
	}

	poll := func() (warmup.Sample, bool) {
		e, ok := s.GetData()
		if !ok {
			return warmup.Sample{}, false
		}
		return warmup.Sample{Seq: e.Seq, CapturedAt: e.CapturedAt}, true
	}

	stats, err := warmup.Run(ctx, poll, duration, 0)
	return fromInternal(stats), err
}
