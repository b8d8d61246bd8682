package sensorcapture

import (
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/gstdevice"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/simdevice"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/zmqdevice"
)

// Driver kinds understood by NewDriver
const (
	DriverSim       = "sim"
	DriverGStreamer = "gstreamer"
	DriverZMQ       = "zmq"
)

// SimConfig describes the simulated sensor.
type SimConfig = simdevice.Config

// ErrInjected is the cause of failures injected by the simulated driver.
var ErrInjected = simdevice.ErrInjected

// GStreamer pipeline sources
const (
	SourceV4L2    = gstdevice.SourceV4L2
	SourceTestSrc = gstdevice.SourceTestSrc
)

// DriverConfig selects and tunes a built-in driver.
type DriverConfig struct {
	// Kind is DriverSim, DriverGStreamer or DriverZMQ
	Kind string
	// Source is the GStreamer source element (SourceV4L2 by default)
	Source string
	// RecvHWM is the ZeroMQ receive high-water mark (default 16)
	RecvHWM int
	// Sim configures the simulated sensor
	Sim SimConfig
}

// NewDriver returns the built-in driver named by cfg.Kind.
func NewDriver(cfg DriverConfig) (Driver, error) {
	switch cfg.Kind {
	case DriverSim, "":
		return simdevice.New(cfg.Sim), nil
	case DriverGStreamer:
		if cfg.Source != "" && cfg.Source != SourceV4L2 && cfg.Source != SourceTestSrc {
			return nil, fmt.Errorf("sensor-capture: unknown gstreamer source %q", cfg.Source)
		}
		return gstdevice.New(gstdevice.Config{Source: cfg.Source}), nil
	case DriverZMQ:
		return zmqdevice.New(zmqdevice.Config{RecvHWM: cfg.RecvHWM}), nil
	default:
		return nil, fmt.Errorf("sensor-capture: unknown driver %q", cfg.Kind)
	}
}
