package sensorcapture

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

var (
	// ErrAlreadySpawned is returned by a second Spawn on the same session.
	ErrAlreadySpawned = errors.New("sensor-capture: session already spawned")
	// ErrInvalidOptions wraps every validation failure from New.
	ErrInvalidOptions = errors.New("sensor-capture: invalid options")
	// ErrNotRunning is returned by Warmup when the loop is not active.
	ErrNotRunning = errors.New("sensor-capture: session not running")
)

// Fault categories reported by FrameReadError.Category
const (
	FaultTimeout      = device.FaultTimeout
	FaultDisconnected = device.FaultDisconnected
	FaultFormat       = device.FaultFormat
	FaultUnknown      = device.FaultUnknown
)

// DeviceOpenError reports that the driver could not open the device.
type DeviceOpenError struct {
	Driver   string
	DeviceID string
	Attempts int
	Err      error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("sensor-capture: open %s device %q (%d attempts): %v", e.Driver, e.DeviceID, e.Attempts, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

// DeviceConfigureError reports the configuration parameter the device
// rejected.
type DeviceConfigureError struct {
	Param string
	Err   error
}

func (e *DeviceConfigureError) Error() string {
	return fmt.Sprintf("sensor-capture: configure %s: %v", e.Param, e.Err)
}

func (e *DeviceConfigureError) Unwrap() error { return e.Err }

// AcquisitionStartError reports that the device refused to start streaming.
type AcquisitionStartError struct {
	Err error
}

func (e *AcquisitionStartError) Error() string {
	return fmt.Sprintf("sensor-capture: start acquisition: %v", e.Err)
}

func (e *AcquisitionStartError) Unwrap() error { return e.Err }

// Stages at which a per-frame failure can occur
const (
	StageRead   = "read"
	StageDecode = "decode"
)

// FrameReadError ends the acquisition loop when a frame cannot be read or
// decoded.
type FrameReadError struct {
	// Frame is the 1-based index of the frame being acquired
	Frame    uint64
	Stage    string
	Category FaultCategory
	Err      error
}

func (e *FrameReadError) Error() string {
	return fmt.Sprintf("sensor-capture: acquisition failed at frame %d (%s, %s): %v", e.Frame, e.Stage, e.Category, e.Err)
}

func (e *FrameReadError) Unwrap() error { return e.Err }

// Timeout reports whether the device failed to deliver within FrameTimeout.
func (e *FrameReadError) Timeout() bool { return e.Category == FaultTimeout }
