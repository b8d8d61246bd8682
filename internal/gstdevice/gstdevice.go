// Package gstdevice drives V4L2 cameras (or a test source) through a
// GStreamer pipeline that ends in an appsink.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → [videorate] → capsfilter → appsink
//
// Frames are pulled synchronously from the appsink, so the acquisition
// loop controls pacing. The appsink keeps a single buffer and drops older
// ones, which keeps latency bounded when the consumer falls behind.
package gstdevice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// Config selects the pipeline source.
type Config struct {
	// Source is SourceV4L2 (default) or SourceTestSrc.
	Source string
}

// Driver opens GStreamer-backed devices.
type Driver struct {
	cfg Config
}

// New returns a driver. It does not touch GStreamer until Open.
func New(cfg Config) *Driver {
	if cfg.Source == "" {
		cfg.Source = SourceV4L2
	}
	return &Driver{cfg: cfg}
}

// Name implements device.Driver
func (d *Driver) Name() string { return "gstreamer" }

var initOnce sync.Once

// Open verifies GStreamer is usable and, for V4L2, that the device node
// exists. id is the device path (/dev/video0) or the videotestsrc pattern.
func (d *Driver) Open(ctx context.Context, id string) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkGStreamerAvailable(d.cfg.Source); err != nil {
		return nil, err
	}
	if d.cfg.Source == SourceV4L2 {
		if id == "" {
			return nil, errors.New("gstdevice: empty device path")
		}
		if _, err := os.Stat(id); err != nil {
			return nil, fmt.Errorf("gstdevice: %w", err)
		}
	}

	slog.Debug("sensor-capture: gstreamer device opened", "source", d.cfg.Source, "device", id)
	return &Device{source: d.cfg.Source, id: id}, nil
}

// checkGStreamerAvailable fails fast when the plugins the pipeline needs
// are missing.
func checkGStreamerAvailable(source string) error {
	initOnce.Do(func() { gst.Init(nil) })

	for _, name := range []string{source, "videoconvert", "videoscale", "appsink"} {
		elem, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("gstdevice: element %s not available: %w", name, err)
		}
		elem.SetState(gst.StateNull)
	}
	return nil
}

// Device is an opened GStreamer source.
type Device struct {
	source string
	id     string

	mu     sync.Mutex
	plan   *pipelinePlan
	stream *Stream
}

// Configure implements device.Device. Parameters are resolved into the
// launch line; nothing is applied until StartAcquisition.
func (d *Device) Configure(ctx context.Context, p device.Params) error {
	plan, err := resolve(d.source, d.id, p)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.plan = &plan
	d.mu.Unlock()

	slog.Debug("sensor-capture: gstreamer device configured",
		"width", plan.Width,
		"height", plan.Height,
		"format", plan.Format,
		"max_rate", plan.MaxRate,
	)
	return nil
}

// StartAcquisition builds the pipeline and sets it to PLAYING.
func (d *Device) StartAcquisition(ctx context.Context) (device.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		return nil, errors.New("gstdevice: acquisition already started")
	}
	plan := d.plan
	if plan == nil {
		defaults, err := resolve(d.source, d.id, device.Params{})
		if err != nil {
			return nil, err
		}
		plan = &defaults
	}

	launch, err := plan.launchLine()
	if err != nil {
		return nil, fmt.Errorf("gstdevice: %w", err)
	}

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("gstdevice: failed to create pipeline: %w", err)
	}

	elem, err := pipeline.GetElementByName(sinkName)
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gstdevice: appsink not found: %w", err)
	}
	sink := app.SinkFromElement(elem)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gstdevice: failed to start pipeline: %w", err)
	}

	slog.Info("sensor-capture: gstreamer pipeline started", "pipeline", launch)

	d.stream = &Stream{
		pipeline: pipeline,
		sink:     sink,
		width:    plan.Width,
		height:   plan.Height,
		format:   plan.Format,
	}
	return d.stream, nil
}

// Close stops the pipeline if it is still running.
func (d *Device) Close() error {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()

	if s != nil {
		return s.Close()
	}
	return nil
}

// Stream pulls samples from the appsink.
type Stream struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	width    int
	height   int
	format   device.PixelFormat

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// NextFrame implements device.Stream.
func (s *Stream) NextFrame(timeout time.Duration) (device.RawFrame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return device.RawFrame{}, device.ErrClosed
	}

	var sample *gst.Sample
	if timeout <= 0 {
		sample = s.sink.PullSample()
	} else {
		sample = s.sink.TryPullSample(timeout)
	}
	if sample == nil {
		if s.sink.IsEOS() {
			return device.RawFrame{}, fmt.Errorf("gstdevice: end of stream: %w", device.ErrClosed)
		}
		if timeout <= 0 {
			return device.RawFrame{}, errors.New("gstdevice: pipeline stopped delivering samples")
		}
		return device.RawFrame{}, device.ErrTimeout
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return device.RawFrame{}, errors.New("gstdevice: sample without buffer")
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return device.RawFrame{}, errors.New("gstdevice: empty buffer received")
	}

	// GStreamer reuses the buffer after Unmap
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	return device.RawFrame{
		Width:     s.width,
		Height:    s.height,
		Format:    s.format,
		Data:      frameData,
		Timestamp: time.Now(),
	}, nil
}

// Close sets the pipeline to NULL. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if e := s.pipeline.SetState(gst.StateNull); e != nil {
			err = fmt.Errorf("gstdevice: failed to set pipeline to NULL: %w", e)
		}
	})
	return err
}
