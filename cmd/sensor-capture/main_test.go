package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/config"
)

func TestSessionOptions(t *testing.T) {
	cfg, err := config.Parse([]byte(`
instance_id: bench-1
session:
  capacity: 2
  width: 320
  height: 240
  frame_timeout_ms: 500
  fps_divisor: filled
  open_retry: {max_retries: 2, retry_delay_ms: 10}
driver:
  kind: sim
  sim: {width: 64, height: 48, format: YUY2, fps: 60}
device:
  pixel_format: RGB
`))
	require.NoError(t, err)

	opts, drv, err := sessionOptions(cfg)
	require.NoError(t, err)

	assert.Equal(t, "bench-1", opts.SessionID)
	assert.Equal(t, 2, opts.Capacity)
	assert.Equal(t, 320, opts.Width)
	assert.Equal(t, 500*time.Millisecond, opts.FrameTimeout)
	assert.Equal(t, sensorcapture.DivisorFilled, opts.Divisor)
	assert.Equal(t, sensorcapture.FormatRGB24, opts.Params.PixelFormat)
	require.NotNil(t, opts.OpenRetry)
	assert.Equal(t, 2, opts.OpenRetry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, opts.OpenRetry.RetryDelay)

	assert.Equal(t, "sim", drv.Kind)
	assert.Equal(t, sensorcapture.FormatYUYV, drv.Sim.Format)
	assert.Equal(t, 60.0, drv.Sim.FPS)

	// No retries configured means a single attempt
	opts, _, err = sessionOptions(config.Default())
	require.NoError(t, err)
	assert.Nil(t, opts.OpenRetry)
}

func TestRunOptions_Apply(t *testing.T) {
	cfg := config.Default()
	cfg.Session.WarmupDurationS = 3

	ro := &RunOptions{Driver: "zmq", Device: "tcp://127.0.0.1:5555", SkipWarmup: true, HealthAddr: ":9090"}
	require.NoError(t, ro.apply(cfg))
	assert.Equal(t, "zmq", cfg.Driver.Kind)
	assert.Equal(t, "tcp://127.0.0.1:5555", cfg.Driver.DeviceID)
	assert.Zero(t, cfg.Session.WarmupDuration())
	assert.Equal(t, ":9090", cfg.Health.Addr)

	assert.Error(t, (&RunOptions{Driver: "firewire"}).apply(config.Default()))
	assert.Error(t, (&RunOptions{MaxFrames: -1}).apply(config.Default()))
}

func TestHealthHandlers(t *testing.T) {
	stats := sensorcapture.SessionStats{State: sensorcapture.StateRunning, FPS: 30}
	h := &healthHandlers{
		instanceID: "bench-1",
		stats:      func() sensorcapture.SessionStats { return stats },
		started:    time.Now(),
	}
	srv := httptest.NewServer(h.mux())
	defer srv.Close()

	get := func(path string) (int, map[string]any) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body["status"])

	code, body = get("/readiness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "running", body["state"])

	code, body = get("/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bench-1", body["instance_id"])
	assert.Equal(t, 30.0, body["fps"])

	stats.DropRate = 75
	_, body = get("/readiness")
	assert.Equal(t, "degraded", body["status"])

	stats = sensorcapture.SessionStats{State: sensorcapture.StateFailed, LastFault: "disconnected"}
	code, body = get("/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "disconnected", body["last_fault"])
}

func TestHealthHandlers_StatsStream(t *testing.T) {
	done := make(chan struct{})
	var frames atomic.Uint64
	h := &healthHandlers{
		instanceID: "bench-1",
		stats: func() sensorcapture.SessionStats {
			return sensorcapture.SessionStats{State: sensorcapture.StateRunning, FramesCaptured: frames.Add(10)}
		},
		started: time.Now(),
		push:    10 * time.Millisecond,
		done:    done,
	}
	srv := httptest.NewServer(h.mux())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var prev float64
	for i := 0; i < 3; i++ {
		var report map[string]any
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&report))
		assert.Equal(t, "bench-1", report["instance_id"])
		captured := report["frames_captured"].(float64)
		assert.Greater(t, captured, prev)
		prev = captured
	}

	// Server shutdown closes the stream with a close frame
	close(done)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			break
		}
	}
}

func TestRunCapture_Simulated(t *testing.T) {
	cfg := config.Default()
	cfg.Driver.Sim.FPS = 120
	require.NoError(t, config.Validate(cfg))

	var out bytes.Buffer
	ro := &RunOptions{MaxFrames: 3, ConsumerRate: 50}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, runCapture(ctx, &out, cfg, ro))

	assert.Contains(t, out.String(), "Reached maximum frames (3)")
	assert.Contains(t, out.String(), "Final Statistics")
	assert.Contains(t, out.String(), "Final State:        stopped")
	assert.Contains(t, out.String(), "Frames Consumed:    3 frames")
}

func TestRunCapture_DriverFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Driver.Sim.FPS = -1
	cfg.Driver.Sim.FailAfter = 2
	require.NoError(t, config.Validate(cfg))

	var out bytes.Buffer
	err := runCapture(context.Background(), &out, cfg, &RunOptions{})
	require.Error(t, err)

	var frameErr *sensorcapture.FrameReadError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, uint64(3), frameErr.Frame)
	assert.Contains(t, out.String(), "Final State:        failed")
}

func TestStopSession(t *testing.T) {
	spawn := func(t *testing.T, fps float64) (*sensorcapture.CaptureSession, *sensorcapture.TaskHandle) {
		t.Helper()
		driver, err := sensorcapture.NewDriver(sensorcapture.DriverConfig{
			Kind: sensorcapture.DriverSim,
			Sim:  sensorcapture.SimConfig{Width: 8, Height: 8, FPS: fps},
		})
		require.NoError(t, err)
		s, err := sensorcapture.New(sensorcapture.Options{Capacity: 2}, driver)
		require.NoError(t, err)
		h, err := s.Spawn(context.Background())
		require.NoError(t, err)
		return s, h
	}

	t.Run("loop stops within the timeout", func(t *testing.T) {
		s, h := spawn(t, 200)
		assert.True(t, stopSession(s, h, 2*time.Second))
		assert.Equal(t, sensorcapture.StateStopped, s.State())
	})

	t.Run("blocked read does not hang the caller", func(t *testing.T) {
		// One frame per 100s with no frame timeout: NextFrame stays blocked
		s, h := spawn(t, 0.01)
		require.Eventually(t, func() bool { return s.Stats().FramesCaptured >= 1 }, 2*time.Second, 5*time.Millisecond)
		start := time.Now()
		assert.False(t, stopSession(s, h, 50*time.Millisecond))
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestPrintStats_DropsAndSkipsApart(t *testing.T) {
	s := sensorcapture.SessionStats{
		State:          sensorcapture.StateStopped,
		FramesCaptured: 100,
		FramesDropped:  10,
		FramesSkipped:  30,
		FramesConsumed: 60,
		DropRate:       10,
		Capacity:       4,
	}

	var live bytes.Buffer
	printLiveStats(&live, s)
	assert.Contains(t, live.String(), "Buffer Drops:           10 frames (10.0%)")
	assert.Contains(t, live.String(), "Consumer Skips:         30 frames")

	var final bytes.Buffer
	printFinalStats(&final, s)
	assert.Contains(t, final.String(), "Buffer Drops:       10 frames (10.0%)")
	assert.Contains(t, final.String(), "Consumer Skips:     30 frames")
}

func TestCommands(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		root := newRootCommand()
		root.SetOut(&out)
		root.SetArgs([]string{"version"})
		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), "sensor-capture "+version)
	})

	t.Run("check-config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sensor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("driver: {kind: gstreamer}\n"), 0o600))

		var out bytes.Buffer
		root := newRootCommand()
		root.SetOut(&out)
		root.SetArgs([]string{"check-config", "--config", path})
		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), "configuration OK")
		assert.Contains(t, out.String(), "device_id: /dev/video0")
	})

	t.Run("check-config rejects invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sensor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log: {level: loud}\n"), 0o600))

		root := newRootCommand()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"check-config", "-c", path})
		assert.Error(t, root.Execute())
	})
}
