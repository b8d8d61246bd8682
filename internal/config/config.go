// Package config loads the sensor-capture YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// Config represents the complete sensor-capture configuration
type Config struct {
	InstanceID string          `yaml:"instance_id"`
	Session    SessionConfig   `yaml:"session"`
	Driver     DriverConfig    `yaml:"driver"`
	Device     DeviceConfig    `yaml:"device"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Health     HealthConfig    `yaml:"health"`
	Log        LogConfig       `yaml:"log"`
}

// SessionConfig contains buffering and loop settings
type SessionConfig struct {
	Capacity        int         `yaml:"capacity"`          // buffered entries (default: 4)
	Width           int         `yaml:"width"`             // target width, 0 = native
	Height          int         `yaml:"height"`            // target height, 0 = native
	FrameTimeoutMS  int         `yaml:"frame_timeout_ms"`  // 0 = block indefinitely
	FPSDivisor      string      `yaml:"fps_divisor"`       // window (default) or filled
	WarmupDurationS int         `yaml:"warmup_duration_s"` // 0 = skip warm-up
	OpenRetry       RetryConfig `yaml:"open_retry"`
}

// RetryConfig contains device open backoff settings
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries"`      // 0 = single attempt
	RetryDelayMS   int `yaml:"retry_delay_ms"`   // default: 1000
	MaxRetryDelayS int `yaml:"max_retry_delay_s"` // default: 30
}

// DriverConfig selects the device driver
type DriverConfig struct {
	Kind     string    `yaml:"kind"`      // sim, gstreamer, zmq
	DeviceID string    `yaml:"device_id"` // /dev/video0, tcp://host:port, pattern
	Source   string    `yaml:"source"`    // gstreamer source: v4l2src, videotestsrc
	RecvHWM  int       `yaml:"recv_hwm"`  // zmq receive high-water mark
	Sim      SimConfig `yaml:"sim"`
}

// SimConfig contains simulated sensor settings
type SimConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Format    string  `yaml:"format"`
	FPS       float64 `yaml:"fps"`
	FailAfter int     `yaml:"fail_after"`
}

// DeviceConfig contains the one-time sensor parameters
type DeviceConfig struct {
	ExposureUS    float64              `yaml:"exposure_us"`
	PixelFormat   string               `yaml:"pixel_format"`
	Width         int                  `yaml:"width"`
	Height        int                  `yaml:"height"`
	Alignment     int                  `yaml:"alignment"`
	WhiteBalance  *device.WhiteBalance `yaml:"white_balance,omitempty"`
	BandwidthMBps float64              `yaml:"bandwidth_mbps"`
}

// TelemetryConfig contains MQTT stats publishing settings
type TelemetryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	QoS       byte   `yaml:"qos"`
	Encoding  string `yaml:"encoding"` // json (default) or msgpack
	IntervalS int    `yaml:"interval_s"`
}

// HealthConfig contains the HTTP health endpoint settings
type HealthConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads, parses and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a validated configuration for the simulated sensor.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(err) // defaults must always validate
	}
	return cfg
}

// Params converts the device section into driver parameters.
func (c DeviceConfig) Params() (device.Params, error) {
	p := device.Params{
		ExposureMicros: c.ExposureUS,
		Width:          c.Width,
		Height:         c.Height,
		Alignment:      c.Alignment,
		WhiteBalance:   c.WhiteBalance,
		BandwidthMBps:  c.BandwidthMBps,
	}
	if c.PixelFormat != "" {
		f, err := device.ParsePixelFormat(c.PixelFormat)
		if err != nil {
			return p, err
		}
		p.PixelFormat = f
	}
	return p, p.Validate()
}

// FrameTimeout returns frame_timeout_ms as a duration
func (s SessionConfig) FrameTimeout() time.Duration {
	return time.Duration(s.FrameTimeoutMS) * time.Millisecond
}

// WarmupDuration returns warmup_duration_s as a duration
func (s SessionConfig) WarmupDuration() time.Duration {
	return time.Duration(s.WarmupDurationS) * time.Second
}

// RetryDelay returns retry_delay_ms as a duration
func (r RetryConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMS) * time.Millisecond
}

// MaxRetryDelay returns max_retry_delay_s as a duration
func (r RetryConfig) MaxRetryDelay() time.Duration {
	return time.Duration(r.MaxRetryDelayS) * time.Second
}

// Interval returns interval_s as a duration
func (t TelemetryConfig) Interval() time.Duration {
	return time.Duration(t.IntervalS) * time.Second
}
