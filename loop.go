package sensorcapture

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/convert"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// acquire is the producer loop. Each iteration:
//
//  1. exits if shutdown was requested
//  2. reads the next raw frame (the only blocking call)
//  3. decodes it to NRGBA at the target geometry
//  4. feeds the read+decode latency into the FPS estimator
//  5. pushes the entry, evicting the oldest one when the buffer is full
//
// No lock is held across NextFrame. Any read or decode error is fatal and
// returned as *FrameReadError; nil means a requested shutdown.
func (s *CaptureSession) acquire(stream Stream) error {
	for {
		if s.signal.IsSet() {
			return nil
		}

		frame := s.captured.Load() + 1
		start := time.Now()

		raw, err := stream.NextFrame(s.opts.FrameTimeout)
		if err != nil {
			return &FrameReadError{Frame: frame, Stage: StageRead, Category: device.Classify(err), Err: err}
		}

		img, err := convert.Decode(raw, s.opts.Width, s.opts.Height)
		if err != nil {
			return &FrameReadError{Frame: frame, Stage: StageDecode, Category: device.FaultFormat, Err: err}
		}

		latency := time.Since(start)
		estimate := s.estimator.Record(latency)

		capturedAt := raw.Timestamp
		if capturedAt.IsZero() {
			capturedAt = start
		}

		entry := Entry{
			Frame:      DecodedFrame{img: img},
			FPS:        estimate,
			Seq:        s.captured.Add(1),
			CapturedAt: capturedAt,
			Latency:    latency,
			TraceID:    uuid.NewString(),
		}

		if dropped := s.ring.Push(entry); dropped {
			slog.Debug("sensor-capture: buffer full, dropped oldest entry",
				"session_id", s.opts.SessionID,
				"seq", entry.Seq,
			)
		}

		slog.Debug("sensor-capture: frame captured",
			"session_id", s.opts.SessionID,
			"seq", entry.Seq,
			"latency", latency,
			"fps", estimate,
			"trace_id", entry.TraceID,
		)
	}
}
