package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of the mean. 30 FPS is stable if stddev < 4.5 FPS.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval. 30 FPS (33ms) is stable if
	// jitter < 6.6ms.
	jitterStabilityThreshold = 0.20
)

// Stats describes capture cadence over a warm-up window.
type Stats struct {
	FramesReceived int           // Entries observed by the consumer
	FramesSkipped  uint64        // Sequence gaps (entries evicted before being read)
	Duration       time.Duration // Actual warm-up duration
	FPSMean        float64       // Mean FPS across the window
	FPSStdDev      float64       // Standard deviation of instantaneous FPS
	FPSMin         float64       // Minimum instantaneous FPS
	FPSMax         float64       // Maximum instantaneous FPS
	IsStable       bool          // stddev < 15% of mean AND jitter < 20% of interval
	JitterMean     float64       // Mean deviation from the expected interval (seconds)
	JitterStdDev   float64       // Standard deviation of jitter (seconds)
	JitterMax      float64       // Maximum jitter observed (seconds)
}

// CalculateFPSStats derives cadence statistics from capture timestamps.
//
// Steps:
//  1. Mean FPS over the whole window
//  2. Instantaneous FPS per interval, with min/max and stddev
//  3. Jitter against the expected interval 1/mean
//  4. Stability (stddev < 15% of mean AND jitter < 20% of interval)
//
// Non-positive intervals (duplicate timestamps) are left out of the FPS
// distribution but still count for jitter.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *Stats {
	n := len(frameTimes)
	stats := &Stats{FramesReceived: n, Duration: totalDuration}
	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds(); interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
		diff := fps - stats.FPSMean
		sumSquares += diff * diff
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(instantaneous)))

	expectedInterval := 1.0 / stats.FPSMean
	jitters := make([]float64, 0, n-1)
	var jitterSum float64
	for i := 1; i < n; i++ {
		j := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
		jitters = append(jitters, j)
		jitterSum += j
		stats.JitterMax = math.Max(stats.JitterMax, j)
	}
	stats.JitterMean = jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - stats.JitterMean
		jitterSumSquares += diff * diff
	}
	stats.JitterStdDev = math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold
	jitterStable := stats.JitterMean < expectedInterval*jitterStabilityThreshold
	stats.IsStable = fpsStable && jitterStable

	return stats
}

// OptimalConsumerRate caps a consumer's processing rate to what the
// sensor actually delivers: maxRate, or 90% of the measured mean FPS
// when the sensor is slower.
func OptimalConsumerRate(stats *Stats, maxRate float64) float64 {
	if stats == nil {
		return maxRate
	}
	if stats.FPSMean < maxRate {
		return stats.FPSMean * 0.9
	}
	return maxRate
}
