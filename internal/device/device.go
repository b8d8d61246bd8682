// Package device defines the contracts between the acquisition core and
// the hardware drivers that feed it.
//
// A driver is used in three one-time setup steps (Open, Configure,
// StartAcquisition) and then polled through Stream.NextFrame for every
// frame. Everything vendor specific (exposure registers, GStreamer
// elements, detector sockets) stays behind these interfaces.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Stream.NextFrame when no frame arrived
// within the requested timeout.
var ErrTimeout = errors.New("device: frame timeout")

// ErrClosed is returned by Stream.NextFrame after the stream was closed.
var ErrClosed = errors.New("device: stream closed")

// Driver opens devices by identifier (device node, endpoint, serial...).
type Driver interface {
	// Name identifies the driver in logs and stats ("gstreamer", "zmq", "sim").
	Name() string
	Open(ctx context.Context, id string) (Device, error)
}

// Device is an opened sensor that has not started streaming yet.
type Device interface {
	// Configure applies Params once, before acquisition starts.
	// Failures are reported as *ParamError naming the parameter.
	Configure(ctx context.Context, p Params) error
	StartAcquisition(ctx context.Context) (Stream, error)
	Close() error
}

// Stream delivers raw frames in capture order.
type Stream interface {
	// NextFrame blocks until the next frame is available. A timeout <= 0
	// waits indefinitely; otherwise ErrTimeout is returned when it expires.
	NextFrame(timeout time.Duration) (RawFrame, error)
	Close() error
}

// RawFrame is the unprocessed payload of one exposure.
type RawFrame struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte
	// Timestamp is the driver's capture time, zero if unknown.
	Timestamp time.Time
}

// ParamError reports which configuration parameter a device rejected.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %s: %v", e.Param, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }
