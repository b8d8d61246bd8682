package sensorcapture

import (
	"image"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/fps"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/retry"
)

// Device driver contracts. Implementations live in internal packages and
// are obtained through NewDriver; custom drivers implement these directly.
type (
	Driver        = device.Driver
	Device        = device.Device
	Stream        = device.Stream
	RawFrame      = device.RawFrame
	Params        = device.Params
	PixelFormat   = device.PixelFormat
	WhiteBalance  = device.WhiteBalance
	ParamError    = device.ParamError
	FaultCategory = device.FaultCategory
)

// Pixel formats accepted in RawFrame.Format and Params.PixelFormat
const (
	FormatRGBA     = device.FormatRGBA
	FormatRGB24    = device.FormatRGB24
	FormatBGR24    = device.FormatBGR24
	FormatBGRA     = device.FormatBGRA
	FormatGray8    = device.FormatGray8
	FormatGray16LE = device.FormatGray16LE
	FormatYUYV     = device.FormatYUYV
)

// ErrTimeout is returned by Stream.NextFrame when no frame arrived in time.
var ErrTimeout = device.ErrTimeout

// ErrClosed is returned by Stream.NextFrame after the stream was closed.
var ErrClosed = device.ErrClosed

// FPSDivisor selects how the rolling FPS average is normalized.
type FPSDivisor = fps.Divisor

const (
	// DivisorWindow divides by the full window of 100 samples, so the
	// estimate is inflated until the window fills. Default.
	DivisorWindow = fps.DivisorWindow
	// DivisorFilled divides by the number of samples recorded so far.
	DivisorFilled = fps.DivisorFilled
)

// RetryConfig controls exponential backoff around device open.
type RetryConfig = retry.Config

// LatencyStats summarizes the acquisition latency window.
type LatencyStats = fps.LatencyStats

// DecodedFrame is a 4-channel NRGBA image (non-premultiplied alpha).
// It is immutable: the pixel slice returned by Pix and Image must not be
// modified.
type DecodedFrame struct {
	img *image.NRGBA
}

// Width in pixels
func (f DecodedFrame) Width() int {
	if f.img == nil {
		return 0
	}
	return f.img.Rect.Dx()
}

// Height in pixels
func (f DecodedFrame) Height() int {
	if f.img == nil {
		return 0
	}
	return f.img.Rect.Dy()
}

// Pix returns the contiguous RGBA bytes, row-major, 4 bytes per pixel.
func (f DecodedFrame) Pix() []byte {
	if f.img == nil {
		return nil
	}
	return f.img.Pix
}

// Image returns the frame as an image.Image-compatible value.
func (f DecodedFrame) Image() *image.NRGBA { return f.img }

// Entry is one buffered capture result.
type Entry struct {
	Frame DecodedFrame
	// FPS is the smoothed producer throughput when the frame was captured.
	FPS float64
	// Seq is the 1-based capture order within the session.
	Seq uint64
	// CapturedAt is the driver timestamp, or the iteration start when the
	// driver reports none.
	CapturedAt time.Time
	// Latency is the time spent reading and decoding this frame.
	Latency time.Duration
	// TraceID is a unique identifier for following a frame through logs
	TraceID string
}

// State is the lifecycle stage of a CaptureSession.
type State int32

const (
	// StateIdle means Spawn has not been called (or is still setting up)
	StateIdle State = iota
	// StateRunning means the acquisition loop is active
	StateRunning
	// StateStopped means the loop exited after Shutdown
	StateStopped
	// StateFailed means setup or acquisition failed
	StateFailed
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a CaptureSession.
type Options struct {
	// SessionID names the session in logs and telemetry (default: a UUID)
	SessionID string
	// DeviceID is passed to Driver.Open (device path, endpoint, serial)
	DeviceID string
	// Capacity is the number of entries buffered for the consumer (>= 1)
	Capacity int
	// Width and Height are the target image geometry. Zero keeps the
	// sensor's native size; otherwise frames are rescaled.
	Width  int
	Height int
	// FrameTimeout bounds each NextFrame call. Zero blocks indefinitely;
	// with a positive value a stalled sensor fails the session.
	FrameTimeout time.Duration
	// Divisor selects the FPS averaging mode (default DivisorWindow)
	Divisor FPSDivisor
	// Params are applied once through Device.Configure before streaming
	Params Params
	// OpenRetry retries Driver.Open with backoff; nil tries once
	OpenRetry *RetryConfig
}

// SessionStats contains current session statistics
type SessionStats struct {
	// SessionID and DeviceID identify the session
	SessionID string
	DeviceID  string
	// Driver is the driver name ("sim", "gstreamer", "zmq")
	Driver string
	// State is the current lifecycle state
	State State
	// FramesCaptured is the number of entries pushed into the buffer
	FramesCaptured uint64
	// FramesDropped counts entries evicted from a full buffer before the
	// consumer read them
	FramesDropped uint64
	// FramesSkipped counts older entries GetLatest discarded in favor of
	// the newest one
	FramesSkipped uint64
	// FramesConsumed counts entries returned by GetData/GetLatest
	FramesConsumed uint64
	// DropRate is the percentage of captured frames evicted by the buffer
	// (0-100). Consumer skips are not included.
	DropRate float64
	// Buffered and Capacity describe the buffer fill level
	Buffered int
	Capacity int
	// FPS is the latest smoothed estimate
	FPS float64
	// Latency summarizes recent per-frame acquisition latency
	Latency LatencyStats
	// OpenAttempts is how many times Driver.Open was called
	OpenAttempts int
	// Uptime is time since acquisition started (0 before Spawn)
	Uptime time.Duration
	// LastFault categorizes the error that ended the loop, empty if none
	LastFault string
	// LastError is the message of that error, empty if none
	LastError string
}
