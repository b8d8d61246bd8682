package config

import (
	"fmt"
	"regexp"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/fps"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "sensor-1"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Session
	s := &cfg.Session
	if s.Capacity == 0 {
		s.Capacity = 4
	}
	if s.Capacity < 0 {
		return fmt.Errorf("session.capacity must be >= 1")
	}
	if s.Width < 0 || s.Height < 0 || (s.Width == 0) != (s.Height == 0) {
		return fmt.Errorf("session.width and session.height must both be 0 or both > 0")
	}
	if s.FrameTimeoutMS < 0 {
		return fmt.Errorf("session.frame_timeout_ms must be >= 0")
	}
	if _, ok := fps.ParseDivisor(s.FPSDivisor); !ok {
		return fmt.Errorf("session.fps_divisor must be window or filled, got %q", s.FPSDivisor)
	}
	if s.WarmupDurationS < 0 {
		return fmt.Errorf("session.warmup_duration_s must be >= 0")
	}
	if s.OpenRetry.MaxRetries < 0 {
		return fmt.Errorf("session.open_retry.max_retries must be >= 0")
	}
	if s.OpenRetry.RetryDelayMS <= 0 {
		s.OpenRetry.RetryDelayMS = 1000
	}
	if s.OpenRetry.MaxRetryDelayS <= 0 {
		s.OpenRetry.MaxRetryDelayS = 30
	}

	// Driver
	d := &cfg.Driver
	if d.Kind == "" {
		d.Kind = "sim"
	}
	switch d.Kind {
	case "sim":
	case "gstreamer":
		if d.Source == "" {
			d.Source = "v4l2src"
		}
		if d.Source == "v4l2src" && d.DeviceID == "" {
			d.DeviceID = "/dev/video0"
		}
	case "zmq":
		if d.DeviceID == "" {
			return fmt.Errorf("driver.device_id (zmq endpoint) is required")
		}
	default:
		return fmt.Errorf("driver.kind must be sim, gstreamer or zmq, got %q", d.Kind)
	}
	if d.Sim.Format != "" {
		if _, err := device.ParsePixelFormat(d.Sim.Format); err != nil {
			return fmt.Errorf("driver.sim.format: %w", err)
		}
	}

	// Device
	if _, err := cfg.Device.Params(); err != nil {
		return fmt.Errorf("device: %w", err)
	}

	// Telemetry
	t := &cfg.Telemetry
	if t.Enabled {
		if t.Broker == "" {
			return fmt.Errorf("telemetry.broker is required when telemetry is enabled")
		}
		if t.ClientID == "" {
			t.ClientID = fmt.Sprintf("sensor-capture-%s", cfg.InstanceID)
		}
		if t.Topic == "" {
			t.Topic = fmt.Sprintf("care/sensors/%s/stats", cfg.InstanceID)
		}
		if t.QoS > 2 {
			return fmt.Errorf("telemetry.qos must be 0, 1 or 2")
		}
		if t.IntervalS <= 0 {
			t.IntervalS = 5
		}
	}
	if t.Encoding == "" {
		t.Encoding = "json"
	}
	if t.Encoding != "json" && t.Encoding != "msgpack" {
		return fmt.Errorf("telemetry.encoding must be json or msgpack, got %q", t.Encoding)
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}
