// Package simdevice is a synthetic sensor for demos and tests. It renders
// a moving gradient at a fixed rate and can inject failures at every
// setup step and after a number of frames.
package simdevice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// ErrInjected is the cause of every failure the simulator injects.
var ErrInjected = errors.New("simdevice: injected failure")

// Config describes the simulated sensor.
type Config struct {
	Width  int                // default 640
	Height int                // default 480
	Format device.PixelFormat // default RGB
	FPS    float64            // native rate, default 30; <= 0 after defaults means unpaced

	// FailAfter makes NextFrame fail once this many frames were delivered
	// (0 = never).
	FailAfter int
	// FailOpen, FailConfigure and FailStart inject setup failures.
	FailOpen      bool
	FailConfigure string // parameter name to reject
	FailStart     bool
}

func (c Config) withDefaults() Config {
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.Format == "" {
		c.Format = device.FormatRGB24
	}
	if c.FPS == 0 {
		c.FPS = 30
	}
	return c
}

// Driver opens simulated devices.
type Driver struct {
	cfg Config
}

// New returns a simulator driver.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg.withDefaults()}
}

// Name implements device.Driver
func (d *Driver) Name() string { return "sim" }

// Open implements device.Driver. Any id is accepted.
func (d *Driver) Open(ctx context.Context, id string) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.cfg.FailOpen {
		return nil, fmt.Errorf("open %q: %w", id, ErrInjected)
	}
	return &Device{id: id, cfg: d.cfg, gainR: 1, gainB: 1, brightness: 1}, nil
}

// Device is an opened simulator.
type Device struct {
	id  string
	cfg Config

	mu         sync.Mutex
	gainR      float64
	gainB      float64
	brightness float64
	closed     bool
}

// Configure applies Params in order. Exposure scales brightness relative
// to a 10ms reference, white balance scales the red and blue channels and
// a bandwidth cap lowers the frame rate.
func (d *Device) Configure(ctx context.Context, p device.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	steps := []struct {
		param string
		apply func()
	}{
		{device.ParamExposure, func() {
			if p.ExposureMicros > 0 {
				d.brightness = math.Min(4, p.ExposureMicros/10000)
			}
		}},
		{device.ParamPixelFormat, func() {
			if p.PixelFormat != "" {
				d.cfg.Format = p.PixelFormat
			}
		}},
		{device.ParamGeometry, func() {
			if w, h := p.AlignedGeometry(); w > 0 && h > 0 {
				d.cfg.Width, d.cfg.Height = w, h
			}
		}},
		{device.ParamWhiteBalance, func() {
			if wb := p.WhiteBalance; wb != nil {
				d.gainR, d.gainB = wb.Red, wb.Blue
			}
		}},
		{device.ParamBandwidth, func() {
			frameBytes := d.cfg.Width * d.cfg.Height * d.cfg.Format.BytesPerPixel()
			if limit := device.MaxFrameRate(p.BandwidthMBps, frameBytes); limit > 0 && (d.cfg.FPS <= 0 || limit < d.cfg.FPS) {
				d.cfg.FPS = limit
			}
		}},
	}

	for _, step := range steps {
		if step.param == d.cfg.FailConfigure {
			return &device.ParamError{Param: step.param, Err: ErrInjected}
		}
		step.apply()
	}

	if d.cfg.Format == device.FormatYUYV && d.cfg.Width%2 != 0 {
		return &device.ParamError{Param: device.ParamGeometry, Err: fmt.Errorf("YUY2 needs an even width, got %d", d.cfg.Width)}
	}
	return nil
}

// StartAcquisition implements device.Device.
func (d *Device) StartAcquisition(ctx context.Context) (device.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, device.ErrClosed
	}
	if d.cfg.FailStart {
		return nil, fmt.Errorf("start: %w", ErrInjected)
	}

	var interval time.Duration
	if d.cfg.FPS > 0 {
		interval = time.Duration(float64(time.Second) / d.cfg.FPS)
	}

	slog.Info("sensor-capture: simulated sensor streaming",
		"id", d.id,
		"width", d.cfg.Width,
		"height", d.cfg.Height,
		"format", d.cfg.Format,
		"fps", d.cfg.FPS,
	)

	return &Stream{
		cfg:        d.cfg,
		interval:   interval,
		gainR:      d.gainR,
		gainB:      d.gainB,
		brightness: d.brightness,
		closeCh:    make(chan struct{}),
	}, nil
}

// Close implements device.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Stream paces synthetic frames at the configured rate.
type Stream struct {
	cfg        Config
	interval   time.Duration
	gainR      float64
	gainB      float64
	brightness float64

	next      time.Time
	delivered int

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NextFrame waits for the next frame slot, then renders it. A timeout
// shorter than the wait returns device.ErrTimeout after the timeout.
func (s *Stream) NextFrame(timeout time.Duration) (device.RawFrame, error) {
	select {
	case <-s.closeCh:
		return device.RawFrame{}, device.ErrClosed
	default:
	}

	if s.cfg.FailAfter > 0 && s.delivered >= s.cfg.FailAfter {
		return device.RawFrame{}, fmt.Errorf("read frame %d: %w", s.delivered+1, ErrInjected)
	}

	now := time.Now()
	if s.next.IsZero() {
		s.next = now
	}
	if wait := s.next.Sub(now); wait > 0 {
		if timeout > 0 && wait > timeout {
			if !s.sleep(timeout) {
				return device.RawFrame{}, device.ErrClosed
			}
			return device.RawFrame{}, device.ErrTimeout
		}
		if !s.sleep(wait) {
			return device.RawFrame{}, device.ErrClosed
		}
	}
	// Slots missed while nobody was reading are skipped, not replayed
	s.next = maxTime(s.next.Add(s.interval), time.Now())

	s.delivered++
	return device.RawFrame{
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Format:    s.cfg.Format,
		Data:      s.render(s.delivered),
		Timestamp: time.Now(),
	}, nil
}

// sleep waits for d or until Close; false means closed.
func (s *Stream) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.closeCh:
		return false
	}
}

// Close implements device.Stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.closeCh) })
	return nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
