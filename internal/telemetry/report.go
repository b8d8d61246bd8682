// Package telemetry publishes capture session statistics over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
)

// Report is the wire form of a SessionStats snapshot
type Report struct {
	InstanceID     string  `json:"instance_id" msgpack:"instance_id"`
	SessionID      string  `json:"session_id" msgpack:"session_id"`
	DeviceID       string  `json:"device_id" msgpack:"device_id"`
	Driver         string  `json:"driver" msgpack:"driver"`
	State          string  `json:"state" msgpack:"state"`
	Timestamp      int64   `json:"timestamp_ms" msgpack:"timestamp_ms"`
	UptimeS        float64 `json:"uptime_s" msgpack:"uptime_s"`
	FramesCaptured uint64  `json:"frames_captured" msgpack:"frames_captured"`
	FramesDropped  uint64  `json:"frames_dropped" msgpack:"frames_dropped"`
	FramesSkipped  uint64  `json:"frames_skipped" msgpack:"frames_skipped"`
	FramesConsumed uint64  `json:"frames_consumed" msgpack:"frames_consumed"`
	DropRate       float64 `json:"drop_rate" msgpack:"drop_rate"`
	Buffered       int     `json:"buffered" msgpack:"buffered"`
	Capacity       int     `json:"capacity" msgpack:"capacity"`
	FPS            float64 `json:"fps" msgpack:"fps"`
	LatencyMeanMS  float64 `json:"latency_mean_ms" msgpack:"latency_mean_ms"`
	LatencyP95MS   float64 `json:"latency_p95_ms" msgpack:"latency_p95_ms"`
	LatencyMaxMS   float64 `json:"latency_max_ms" msgpack:"latency_max_ms"`
	OpenAttempts   int     `json:"open_attempts" msgpack:"open_attempts"`
	LastFault      string  `json:"last_fault,omitempty" msgpack:"last_fault,omitempty"`
	LastError      string  `json:"last_error,omitempty" msgpack:"last_error,omitempty"`
}

// NewReport flattens a stats snapshot taken at the given time.
func NewReport(instanceID string, s sensorcapture.SessionStats, at time.Time) Report {
	return Report{
		InstanceID:     instanceID,
		SessionID:      s.SessionID,
		DeviceID:       s.DeviceID,
		Driver:         s.Driver,
		State:          s.State.String(),
		Timestamp:      at.UnixMilli(),
		UptimeS:        s.Uptime.Seconds(),
		FramesCaptured: s.FramesCaptured,
		FramesDropped:  s.FramesDropped,
		FramesSkipped:  s.FramesSkipped,
		FramesConsumed: s.FramesConsumed,
		DropRate:       s.DropRate,
		Buffered:       s.Buffered,
		Capacity:       s.Capacity,
		FPS:            s.FPS,
		LatencyMeanMS:  s.Latency.MeanMS,
		LatencyP95MS:   s.Latency.P95MS,
		LatencyMaxMS:   s.Latency.MaxMS,
		OpenAttempts:   s.OpenAttempts,
		LastFault:      s.LastFault,
		LastError:      s.LastError,
	}
}

// Encoder serializes a Report into a payload
type Encoder func(Report) ([]byte, error)

// EncoderFor returns the encoder for "json" or "msgpack".
func EncoderFor(encoding string) (Encoder, error) {
	switch encoding {
	case "", "json":
		return func(r Report) ([]byte, error) { return json.Marshal(r) }, nil
	case "msgpack":
		return func(r Report) ([]byte, error) { return msgpack.Marshal(r) }, nil
	default:
		return nil, fmt.Errorf("unknown telemetry encoding: %s", encoding)
	}
}
