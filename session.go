package sensorcapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/fps"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/retry"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/shutdown"
)

// CaptureSession owns one sensor's acquisition loop and the buffer it
// fills.
//
// Lifecycle:
//
//	New → Spawn (open, configure, start, loop) → Shutdown → handle resolves
//
// GetData, GetLatest, Shutdown and Stats are safe to call from any
// goroutine at any time, including before Spawn and after the loop exits.
type CaptureSession struct {
	opts   Options
	driver Driver

	ring      *framebuf.Ring[Entry]
	signal    *shutdown.Signal
	estimator *fps.Estimator

	spawned atomic.Bool
	state   atomic.Int32

	// Statistics (atomic for thread-safety)
	captured     atomic.Uint64
	consumed     atomic.Uint64
	openAttempts atomic.Int32

	mu        sync.RWMutex
	startedAt time.Time
	lastErr   error
	handle    *TaskHandle
}

// New creates a session with fail-fast validation:
//   - driver must not be nil
//   - Capacity >= 1
//   - Width/Height both zero or both positive
//   - FrameTimeout >= 0
//   - Params must pass range checks
//
// Validation failures wrap ErrInvalidOptions.
func New(opts Options, driver Driver) (*CaptureSession, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: driver is required", ErrInvalidOptions)
	}
	if opts.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity %d (must be >= 1)", ErrInvalidOptions, opts.Capacity)
	}
	if opts.Width < 0 || opts.Height < 0 || (opts.Width == 0) != (opts.Height == 0) ||
		opts.Width > device.MaxDimension || opts.Height > device.MaxDimension {
		return nil, fmt.Errorf("%w: image size %dx%d (both zero or both positive)", ErrInvalidOptions, opts.Width, opts.Height)
	}
	if opts.FrameTimeout < 0 {
		return nil, fmt.Errorf("%w: negative frame timeout %v", ErrInvalidOptions, opts.FrameTimeout)
	}
	if opts.Divisor != DivisorWindow && opts.Divisor != DivisorFilled {
		return nil, fmt.Errorf("%w: unknown fps divisor %d", ErrInvalidOptions, opts.Divisor)
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	s := &CaptureSession{
		opts:      opts,
		driver:    driver,
		ring:      framebuf.New[Entry](opts.Capacity),
		signal:    &shutdown.Signal{},
		estimator: fps.New(opts.Divisor),
	}

	slog.Info("sensor-capture: session created",
		"session_id", opts.SessionID,
		"driver", driver.Name(),
		"device_id", opts.DeviceID,
		"capacity", opts.Capacity,
		"image_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"frame_timeout", opts.FrameTimeout,
		"fps_divisor", opts.Divisor.String(),
	)

	return s, nil
}

// ID returns the session identifier.
func (s *CaptureSession) ID() string { return s.opts.SessionID }

// State returns the current lifecycle state.
func (s *CaptureSession) State() State { return State(s.state.Load()) }

// Spawn opens, configures and starts the device, then runs the
// acquisition loop in its own goroutine.
//
// Setup failures are returned synchronously as *DeviceOpenError,
// *DeviceConfigureError or *AcquisitionStartError, and no loop iteration
// runs. Spawn may be called once per session; later calls return
// ErrAlreadySpawned.
//
// ctx bounds the setup calls. Cancelling it afterwards requests shutdown,
// the same as calling Shutdown.
func (s *CaptureSession) Spawn(ctx context.Context) (*TaskHandle, error) {
	if !s.spawned.CompareAndSwap(false, true) {
		return nil, ErrAlreadySpawned
	}

	dev, err := s.open(ctx)
	if err != nil {
		return nil, s.setupFailed(err)
	}

	if err := dev.Configure(ctx, s.opts.Params); err != nil {
		dev.Close()
		param := "unknown"
		var perr *device.ParamError
		if errors.As(err, &perr) {
			param = perr.Param
		}
		return nil, s.setupFailed(&DeviceConfigureError{Param: param, Err: err})
	}

	stream, err := dev.StartAcquisition(ctx)
	if err != nil {
		dev.Close()
		return nil, s.setupFailed(&AcquisitionStartError{Err: err})
	}

	h := newTaskHandle()

	s.mu.Lock()
	s.startedAt = time.Now()
	s.handle = h
	s.mu.Unlock()
	s.state.Store(int32(StateRunning))

	stop := context.AfterFunc(ctx, s.Shutdown)

	slog.Info("sensor-capture: acquisition started",
		"session_id", s.opts.SessionID,
		"driver", s.driver.Name(),
		"device_id", s.opts.DeviceID,
	)

	go func() {
		defer stop()
		err := s.acquire(stream)

		if cerr := stream.Close(); cerr != nil {
			slog.Warn("sensor-capture: stream close failed", "session_id", s.opts.SessionID, "error", cerr)
		}
		if cerr := dev.Close(); cerr != nil {
			slog.Warn("sensor-capture: device close failed", "session_id", s.opts.SessionID, "error", cerr)
		}

		s.finish(err)
		h.finish(err)
	}()

	return h, nil
}

// open calls Driver.Open, with backoff when OpenRetry is set.
func (s *CaptureSession) open(ctx context.Context) (Device, error) {
	cfg := retry.Config{}
	if s.opts.OpenRetry != nil {
		cfg = *s.opts.OpenRetry
	}

	var dev Device
	attempts, err := retry.Do(ctx, "open", cfg, func(ctx context.Context) error {
		s.openAttempts.Add(1)
		d, err := s.driver.Open(ctx, s.opts.DeviceID)
		if err != nil {
			return err
		}
		dev = d
		return nil
	})
	if err != nil {
		return nil, &DeviceOpenError{Driver: s.driver.Name(), DeviceID: s.opts.DeviceID, Attempts: attempts, Err: err}
	}
	return dev, nil
}

func (s *CaptureSession) setupFailed(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))

	slog.Error("sensor-capture: setup failed",
		"session_id", s.opts.SessionID,
		"driver", s.driver.Name(),
		"device_id", s.opts.DeviceID,
		"error", err,
	)
	return err
}

// finish records the loop outcome.
func (s *CaptureSession) finish(err error) {
	s.mu.Lock()
	s.lastErr = err
	uptime := time.Since(s.startedAt)
	s.mu.Unlock()

	if err != nil {
		s.state.Store(int32(StateFailed))
		slog.Error("sensor-capture: acquisition failed",
			"session_id", s.opts.SessionID,
			"frames_captured", s.captured.Load(),
			"buffered", s.ring.Len(),
			"error", err,
		)
		return
	}

	s.state.Store(int32(StateStopped))
	slog.Info("sensor-capture: acquisition stopped",
		"session_id", s.opts.SessionID,
		"frames_captured", s.captured.Load(),
		"frames_dropped", s.ring.Dropped(),
		"frames_skipped", s.ring.Skipped(),
		"uptime", uptime,
	)
}

// GetData removes and returns the oldest buffered entry. ok is false when
// nothing is buffered, which is normal right after Spawn or when the
// consumer is faster than the sensor. It never blocks on the device.
//
// Entries captured before a failure stay available until drained; check
// the TaskHandle to tell "no data yet" from "stream died".
func (s *CaptureSession) GetData() (Entry, bool) {
	e, ok := s.ring.Pop()
	if ok {
		s.consumed.Add(1)
	}
	return e, ok
}

// GetLatest returns the newest entry and discards older ones. Useful for
// render loops that only care about the freshest frame.
func (s *CaptureSession) GetLatest() (Entry, bool) {
	e, skipped, ok := s.ring.PopLatest()
	if ok {
		s.consumed.Add(1)
		if skipped > 0 {
			slog.Debug("sensor-capture: skipped stale entries", "session_id", s.opts.SessionID, "skipped", skipped)
		}
	}
	return e, ok
}

// Shutdown requests a cooperative stop. The loop finishes its current
// capture cycle and exits; observe completion through the TaskHandle.
// Idempotent and non-blocking; calling it before Spawn makes the loop exit
// on its first iteration.
func (s *CaptureSession) Shutdown() {
	if s.signal.Request() {
		slog.Info("sensor-capture: shutdown requested", "session_id", s.opts.SessionID)
	}
}

// Handle returns the TaskHandle of a spawned session, nil before Spawn
// succeeds.
func (s *CaptureSession) Handle() *TaskHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Stats returns current session statistics. Thread-safe.
func (s *CaptureSession) Stats() SessionStats {
	s.mu.RLock()
	startedAt := s.startedAt
	lastErr := s.lastErr
	s.mu.RUnlock()

	captured := s.captured.Load()
	counters := s.ring.Counters()

	stats := SessionStats{
		SessionID:      s.opts.SessionID,
		DeviceID:       s.opts.DeviceID,
		Driver:         s.driver.Name(),
		State:          s.State(),
		FramesCaptured: captured,
		FramesDropped:  counters.Dropped,
		FramesSkipped:  counters.Skipped,
		FramesConsumed: s.consumed.Load(),
		Buffered:       s.ring.Len(),
		Capacity:       s.ring.Cap(),
		FPS:            s.estimator.Last(),
		Latency:        s.estimator.Latency(),
		OpenAttempts:   int(s.openAttempts.Load()),
	}
	if captured > 0 {
		stats.DropRate = float64(counters.Dropped) / float64(captured) * 100.0
	}
	if !startedAt.IsZero() {
		stats.Uptime = time.Since(startedAt)
	}
	if lastErr != nil {
		stats.LastError = lastErr.Error()
		stats.LastFault = faultOf(lastErr)
	}
	return stats
}

// faultOf names the category of a session error for telemetry.
func faultOf(err error) string {
	var ferr *FrameReadError
	switch {
	case errors.As(err, &ferr):
		return ferr.Category.String()
	case errors.As(err, new(*DeviceOpenError)):
		return "open"
	case errors.As(err, new(*DeviceConfigureError)):
		return "configure"
	case errors.As(err, new(*AcquisitionStartError)):
		return "start"
	default:
		return device.Classify(err).String()
	}
}
