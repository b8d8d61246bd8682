package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

const sample = `
instance_id: lab-cam-2
session:
  capacity: 8
  width: 640
  height: 480
  frame_timeout_ms: 2000
  fps_divisor: filled
  warmup_duration_s: 3
  open_retry:
    max_retries: 3
driver:
  kind: gstreamer
  device_id: /dev/video2
device:
  exposure_us: 8000
  pixel_format: yuyv
  width: 1280
  height: 720
  alignment: 16
  white_balance:
    red: 1.2
    blue: 1.4
  bandwidth_mbps: 80
telemetry:
  enabled: true
  broker: tcp://localhost:1883
  encoding: msgpack
health:
  addr: ":8081"
log:
  level: debug
  format: json
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lab-cam-2", cfg.InstanceID)
	assert.Equal(t, 8, cfg.Session.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Session.FrameTimeout())
	assert.Equal(t, 3*time.Second, cfg.Session.WarmupDuration())
	assert.Equal(t, 3, cfg.Session.OpenRetry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Session.OpenRetry.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.Session.OpenRetry.MaxRetryDelay())

	assert.Equal(t, "gstreamer", cfg.Driver.Kind)
	assert.Equal(t, "v4l2src", cfg.Driver.Source)
	assert.Equal(t, "/dev/video2", cfg.Driver.DeviceID)

	p, err := cfg.Device.Params()
	require.NoError(t, err)
	assert.Equal(t, device.FormatYUYV, p.PixelFormat)
	assert.Equal(t, 8000.0, p.ExposureMicros)
	require.NotNil(t, p.WhiteBalance)
	assert.Equal(t, 1.4, p.WhiteBalance.Blue)

	assert.Equal(t, "care/sensors/lab-cam-2/stats", cfg.Telemetry.Topic)
	assert.Equal(t, "sensor-capture-lab-cam-2", cfg.Telemetry.ClientID)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.Interval())
	assert.Equal(t, "msgpack", cfg.Telemetry.Encoding)
	assert.Equal(t, ":8081", cfg.Health.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sensor-1", cfg.InstanceID)
	assert.Equal(t, "sim", cfg.Driver.Kind)
	assert.Equal(t, 4, cfg.Session.Capacity)
	assert.Zero(t, cfg.Session.FrameTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Telemetry.Encoding)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"bad yaml", "session: [", "failed to parse config"},
		{"bad instance id", "instance_id: Lab Cam", "instance_id"},
		{"negative capacity", "session: {capacity: -1}", "session.capacity"},
		{"half geometry", "session: {width: 640}", "session.width"},
		{"bad divisor", "session: {fps_divisor: count}", "fps_divisor"},
		{"unknown driver", "driver: {kind: firewire}", "driver.kind"},
		{"zmq without endpoint", "driver: {kind: zmq}", "zmq endpoint"},
		{"bad sim format", "driver: {sim: {format: NV12}}", "driver.sim.format"},
		{"bad pixel format", "device: {pixel_format: NV12}", "device:"},
		{"negative exposure", "device: {exposure_us: -1}", "exposure"},
		{"telemetry without broker", "telemetry: {enabled: true}", "telemetry.broker"},
		{"bad qos", "telemetry: {enabled: true, broker: tcp://x:1883, qos: 3}", "telemetry.qos"},
		{"bad encoding", "telemetry: {encoding: xml}", "telemetry.encoding"},
		{"bad log level", "log: {level: loud}", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
