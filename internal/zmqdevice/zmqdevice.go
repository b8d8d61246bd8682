// Package zmqdevice receives frames from networked detectors that push
// CBOR-encoded images over a ZeroMQ PUSH socket.
package zmqdevice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// Config tunes the receiving socket.
type Config struct {
	// RecvHWM bounds queued messages inside ZeroMQ (default 16).
	RecvHWM int
}

// Driver connects PULL sockets to detector endpoints.
type Driver struct {
	cfg Config
}

// New returns a driver with defaults applied.
func New(cfg Config) *Driver {
	if cfg.RecvHWM <= 0 {
		cfg.RecvHWM = 16
	}
	return &Driver{cfg: cfg}
}

// Name implements device.Driver
func (d *Driver) Name() string { return "zmq" }

// Open connects to endpoint (tcp://host:port, ipc://..., inproc://...).
func (d *Driver) Open(ctx context.Context, endpoint string) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endpoint == "" {
		return nil, errors.New("zmqdevice: empty endpoint")
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("zmqdevice: create socket: %w", err)
	}
	if err := socket.SetRcvhwm(d.cfg.RecvHWM); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("zmqdevice: set rcvhwm: %w", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("zmqdevice: connect %s: %w", endpoint, err)
	}

	slog.Debug("sensor-capture: zmq socket connected", "endpoint", endpoint)
	return &Device{endpoint: endpoint, socket: socket}, nil
}

// Device is a connected PULL socket awaiting configuration.
type Device struct {
	endpoint string

	mu      sync.Mutex
	socket  *zmq4.Socket
	header  header
	bwMBps  float64
	started bool
}

// Configure implements device.Device.
//
// Geometry and pixel format become defaults for messages that omit them.
// Exposure and white balance live on the detector and are rejected. A
// bandwidth cap drops messages that arrive faster than it allows.
func (d *Device) Configure(ctx context.Context, p device.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ExposureMicros > 0 {
		return &device.ParamError{Param: device.ParamExposure, Err: errors.New("set exposure on the detector, not the receiver")}
	}
	if p.WhiteBalance != nil {
		return &device.ParamError{Param: device.ParamWhiteBalance, Err: errors.New("detector frames carry no white balance")}
	}

	w, h := p.AlignedGeometry()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.header = header{Width: w, Height: h, Format: p.PixelFormat}
	d.bwMBps = p.BandwidthMBps
	return nil
}

// StartAcquisition hands the socket to a Stream. The device keeps no
// reference afterwards; closing the stream closes the socket.
func (d *Device) StartAcquisition(ctx context.Context) (device.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil, errors.New("zmqdevice: acquisition already started")
	}
	if d.socket == nil {
		return nil, device.ErrClosed
	}
	d.started = true

	s := &Stream{
		socket:     d.socket,
		header:     d.header,
		bwMBps:     d.bwMBps,
		rcvTimeout: -2, // forces the first SetRcvtimeo
	}
	d.socket = nil

	slog.Info("sensor-capture: zmq acquisition started", "endpoint", d.endpoint, "bandwidth_mbps", s.bwMBps)
	return s, nil
}

// Close releases the socket if acquisition never started.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.socket == nil {
		return nil
	}
	err := d.socket.Close()
	d.socket = nil
	return err
}

// Stream reads image messages. It is not safe for concurrent NextFrame
// calls; ZeroMQ sockets belong to one goroutine.
type Stream struct {
	socket     *zmq4.Socket
	header     header
	bwMBps     float64
	rcvTimeout time.Duration

	lastDelivered time.Time
	skipped       uint64
	throttled     uint64

	mu     sync.Mutex
	closed bool
}

// NextFrame implements device.Stream. Non-image messages and messages over
// the bandwidth cap are skipped without resetting the timeout.
func (s *Stream) NextFrame(timeout time.Duration) (device.RawFrame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if s.isClosed() {
			return device.RawFrame{}, device.ErrClosed
		}

		wait := time.Duration(-1)
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return device.RawFrame{}, device.ErrTimeout
			}
			// Sub-millisecond values would make the receive non-blocking
			if wait < time.Millisecond {
				wait = time.Millisecond
			}
		}
		if err := s.setTimeout(wait); err != nil {
			return device.RawFrame{}, err
		}

		payload, err := s.socket.RecvBytes(0)
		if err != nil {
			switch zmq4.AsErrno(err) {
			case zmq4.Errno(syscall.EAGAIN):
				return device.RawFrame{}, device.ErrTimeout
			case zmq4.ETERM:
				return device.RawFrame{}, fmt.Errorf("zmqdevice: context terminated: %w", device.ErrClosed)
			}
			return device.RawFrame{}, fmt.Errorf("zmqdevice: recv: %w", err)
		}

		frame, imageID, err := decodeMessage(payload, s.header)
		if errors.Is(err, errNotImage) {
			s.skipped++
			continue
		}
		if err != nil {
			return device.RawFrame{}, err
		}

		now := time.Now()
		if s.overBudget(now, len(frame.Data)) {
			s.throttled++
			slog.Debug("sensor-capture: zmq frame over bandwidth cap", "image_id", imageID, "throttled", s.throttled)
			continue
		}
		s.lastDelivered = now

		if frame.Timestamp.IsZero() {
			frame.Timestamp = now
		}
		return frame, nil
	}
}

// overBudget reports whether delivering n bytes now would exceed the
// bandwidth cap given the previous delivery time.
func (s *Stream) overBudget(now time.Time, n int) bool {
	if s.bwMBps <= 0 || s.lastDelivered.IsZero() {
		return false
	}
	minInterval := time.Duration(float64(n) / (s.bwMBps * 1e6) * float64(time.Second))
	return now.Sub(s.lastDelivered) < minInterval
}

func (s *Stream) setTimeout(d time.Duration) error {
	if d == s.rcvTimeout {
		return nil
	}
	if err := s.socket.SetRcvtimeo(d); err != nil {
		return fmt.Errorf("zmqdevice: set rcvtimeo: %w", err)
	}
	s.rcvTimeout = d
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the socket. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.skipped > 0 || s.throttled > 0 {
		slog.Debug("sensor-capture: zmq stream closed", "skipped", s.skipped, "throttled", s.throttled)
	}
	return s.socket.Close()
}
