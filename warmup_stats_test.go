package sensorcapture

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateFrameTimes produces n timestamps at fps with uniform jitter of
// ±jitter fraction of the interval.
func generateFrameTimes(n int, fps, jitter float64, rng *rand.Rand) []time.Time {
	interval := 1.0 / fps
	out := make([]time.Time, n)
	at := time.Unix(1700000000, 0)
	for i := range out {
		out[i] = at
		dev := (rng.Float64()*2 - 1) * jitter * interval
		at = at.Add(time.Duration((interval + dev) * float64(time.Second)))
	}
	return out
}

// TestWarmupStability_Property1_StabilityThresholds tests the stability criteria
//
// Property: FPS stddev < 15% of mean AND jitter < 20% of expected interval → IsStable = true
func TestWarmupStability_Property1_StabilityThresholds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("stable sensor", func(t *testing.T) {
		frameTimes := generateFrameTimes(60, 30, 0.02, rng)
		stats := CalculateFPSStats(frameTimes, 2*time.Second)
		assert.True(t, stats.IsStable, "stddev %.2f%%, jitter %.4fs", stats.FPSStdDev/stats.FPSMean*100, stats.JitterMean)
	})

	t.Run("bursty sensor", func(t *testing.T) {
		frameTimes := generateFrameTimes(60, 30, 0.9, rng)
		stats := CalculateFPSStats(frameTimes, 2*time.Second)
		assert.False(t, stats.IsStable)
	})
}

// TestWarmupStability_Property2_EdgeCases tests degenerate inputs
//
// Property: Edge cases should not panic and should report unstable
func TestWarmupStability_Property2_EdgeCases(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
	}{
		{"zero frames", nil, time.Second},
		{"one frame", []time.Time{now}, time.Second},
		{"two frames", []time.Time{now, now.Add(time.Second)}, time.Second},
		{"zero duration", []time.Time{now, now.Add(time.Second)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CalculateFPSStats(tt.frameTimes, tt.duration)
			require.NotNil(t, stats)
			assert.GreaterOrEqual(t, stats.FPSStdDev, 0.0)
			assert.GreaterOrEqual(t, stats.JitterMean, 0.0)
			assert.False(t, stats.IsStable)
		})
	}
}

// TestWarmupStability_Property3_Bounds tests FPS and jitter consistency
//
// Property: jitter metrics >= 0, JitterMax >= JitterMean, FPSMin <= FPSMax
func TestWarmupStability_Property3_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 120.0 || numFrames < 2 || numFrames > 200 {
			return true
		}
		frameTimes := generateFrameTimes(int(numFrames), fps, 0.1, rng)
		duration := time.Duration(float64(numFrames) / fps * float64(time.Second))
		stats := CalculateFPSStats(frameTimes, duration)

		if stats.JitterMean < 0 || stats.JitterStdDev < 0 || stats.JitterMax < stats.JitterMean {
			t.Logf("FAIL: jitter mean=%.6f stddev=%.6f max=%.6f", stats.JitterMean, stats.JitterStdDev, stats.JitterMax)
			return false
		}
		if stats.FPSMin > stats.FPSMax {
			t.Logf("FAIL: FPSMin (%.2f) > FPSMax (%.2f)", stats.FPSMin, stats.FPSMax)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

func TestOptimalConsumerRate(t *testing.T) {
	assert.Equal(t, 2.0, OptimalConsumerRate(nil, 2))
	assert.Equal(t, 2.0, OptimalConsumerRate(&WarmupStats{FPSMean: 30}, 2))
	assert.InDelta(t, 0.9, OptimalConsumerRate(&WarmupStats{FPSMean: 1}, 2), 1e-9)
}

func TestSession_Warmup(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		s := newSession(t, Options{}, &fakeDriver{})
		_, err := s.Warmup(context.Background(), time.Millisecond)
		assert.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("simulated sensor", func(t *testing.T) {
		drv, err := NewDriver(DriverConfig{Kind: DriverSim, Sim: SimConfig{Width: 32, Height: 16, FPS: 100}})
		require.NoError(t, err)
		s := newSession(t, Options{Capacity: 64}, drv)

		h, err := s.Spawn(context.Background())
		require.NoError(t, err)
		defer func() {
			s.Shutdown()
			require.NoError(t, waitHandle(t, h))
		}()

		stats, err := s.Warmup(context.Background(), 300*time.Millisecond)
		// A loaded CI machine may report the cadence as unstable; the
		// measurement itself must still be there.
		if err != nil {
			require.NotNil(t, stats, "unexpected warmup error: %v", err)
		}
		assert.GreaterOrEqual(t, stats.FramesReceived, 2)
		assert.InDelta(t, 100, stats.FPSMean, 50)
		t.Logf("✅ warm-up: %d frames, %.1f fps, stable=%v", stats.FramesReceived, stats.FPSMean, stats.IsStable)
	})

	t.Run("failed session", func(t *testing.T) {
		drv, err := NewDriver(DriverConfig{Kind: DriverSim, Sim: SimConfig{Width: 8, Height: 8, FPS: -1, FailAfter: 3}})
		require.NoError(t, err)
		s := newSession(t, Options{}, drv)

		h, err := s.Spawn(context.Background())
		require.NoError(t, err)
		err = waitHandle(t, h)
		assert.True(t, errors.Is(err, ErrInjected))

		_, err = s.Warmup(context.Background(), time.Millisecond)
		assert.ErrorIs(t, err, ErrNotRunning)
	})
}
