package telemetry

import (
	"context"
	"log/slog"
	"time"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
)

// Publisher delivers an encoded payload to a topic
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Reporter periodically publishes session statistics
type Reporter struct {
	InstanceID string
	Topic      string
	Interval   time.Duration
	Encode     Encoder
	Publisher  Publisher
	Stats      func() sensorcapture.SessionStats
}

// Run publishes a report every Interval until ctx is cancelled, then sends
// one final report so the terminal state reaches the broker.
//
// Publish errors are logged and do not stop the loop.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.publishOnce()
			return
		case <-ticker.C:
			r.publishOnce()
		}
	}
}

func (r *Reporter) publishOnce() {
	report := NewReport(r.InstanceID, r.Stats(), time.Now())
	payload, err := r.Encode(report)
	if err != nil {
		slog.Error("sensor-capture: failed to encode telemetry", "error", err)
		return
	}
	if err := r.Publisher.Publish(r.Topic, payload); err != nil {
		slog.Warn("sensor-capture: failed to publish telemetry",
			"topic", r.Topic,
			"error", err)
		return
	}
	slog.Debug("sensor-capture: telemetry published",
		"topic", r.Topic,
		"size", len(payload),
		"state", report.State)
}
