package gstdevice

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// Sources understood by the driver.
const (
	SourceV4L2     = "v4l2src"
	SourceTestSrc  = "videotestsrc"
	sinkName       = "sink"
	defaultWidth   = 640
	defaultHeight  = 480
	defaultFormat  = device.FormatRGB24
	exposureUnitUs = 100 // V4L2 exposure_time_absolute is in 100us steps
	balanceScale   = 1024
)

// pipelinePlan is the resolved configuration a launch line is built from.
type pipelinePlan struct {
	Source  string
	Device  string
	Width   int
	Height  int
	Format  device.PixelFormat
	MaxRate int // frames per second, 0 = unlimited
	Params  device.Params
}

// resolve applies Params in order (exposure, pixel format, geometry, white
// balance, bandwidth) and fills defaults. Errors are *device.ParamError.
func resolve(source, dev string, p device.Params) (pipelinePlan, error) {
	if err := p.Validate(); err != nil {
		return pipelinePlan{}, err
	}

	plan := pipelinePlan{Source: source, Device: dev, Params: p}

	if p.ExposureMicros > 0 && source != SourceV4L2 {
		return plan, &device.ParamError{Param: device.ParamExposure, Err: fmt.Errorf("%s has no exposure control", source)}
	}

	plan.Format = p.PixelFormat
	if plan.Format == "" {
		plan.Format = defaultFormat
	}

	plan.Width, plan.Height = p.AlignedGeometry()
	if plan.Width == 0 {
		plan.Width = defaultWidth
	}
	if plan.Height == 0 {
		plan.Height = defaultHeight
	}
	if plan.Format == device.FormatYUYV && plan.Width%2 != 0 {
		return plan, &device.ParamError{Param: device.ParamGeometry, Err: fmt.Errorf("YUY2 needs an even width, got %d", plan.Width)}
	}

	// GStreamer pads RGB/BGR/GRAY8 rows to 4 bytes; the converter expects packed rows
	if rowBytes := plan.Width * plan.Format.BytesPerPixel(); rowBytes%4 != 0 {
		return plan, &device.ParamError{Param: device.ParamGeometry, Err: fmt.Errorf("row of %d bytes is not 4-byte aligned for %s", rowBytes, plan.Format)}
	}

	if p.WhiteBalance != nil && source != SourceV4L2 {
		return plan, &device.ParamError{Param: device.ParamWhiteBalance, Err: fmt.Errorf("%s has no white balance control", source)}
	}

	if p.BandwidthMBps > 0 {
		frameBytes := plan.Width * plan.Height * plan.Format.BytesPerPixel()
		rate := int(math.Floor(device.MaxFrameRate(p.BandwidthMBps, frameBytes)))
		if rate < 1 {
			return plan, &device.ParamError{
				Param: device.ParamBandwidth,
				Err:   fmt.Errorf("%.1fMB/s cannot carry one %dx%d %s frame per second", p.BandwidthMBps, plan.Width, plan.Height, plan.Format),
			}
		}
		plan.MaxRate = rate
	}

	return plan, nil
}

// launchLine renders the plan as a gst-launch description:
//
//	v4l2src device=... extra-controls=... ! videoconvert ! videoscale !
//	[videorate max-rate=N !] capsfilter ! appsink name=sink
func (s pipelinePlan) launchLine() (string, error) {
	var src string
	switch s.Source {
	case SourceV4L2:
		if s.Device == "" {
			return "", errors.New("v4l2src needs a device path")
		}
		src = fmt.Sprintf("v4l2src device=%s", s.Device)
		if ctrls := s.extraControls(); ctrls != "" {
			src += fmt.Sprintf(` extra-controls="%s"`, ctrls)
		}
	case SourceTestSrc:
		src = "videotestsrc is-live=true"
		if s.Device != "" {
			src += " pattern=" + s.Device
		}
	default:
		return "", fmt.Errorf("unknown source %q", s.Source)
	}

	parts := []string{src, "videoconvert", "videoscale"}
	if s.MaxRate > 0 {
		parts = append(parts, fmt.Sprintf("videorate drop-only=true max-rate=%d", s.MaxRate))
	}
	parts = append(parts,
		fmt.Sprintf("capsfilter caps=video/x-raw,format=%s,width=%d,height=%d", s.Format, s.Width, s.Height),
		fmt.Sprintf("appsink name=%s sync=false max-buffers=1 drop=true", sinkName),
	)
	return strings.Join(parts, " ! "), nil
}

// extraControls maps exposure and white balance onto V4L2 controls.
func (s pipelinePlan) extraControls() string {
	var ctrls []string
	if s.Params.ExposureMicros > 0 {
		units := int(math.Max(1, math.Round(s.Params.ExposureMicros/exposureUnitUs)))
		// auto_exposure=1 is V4L2_EXPOSURE_MANUAL
		ctrls = append(ctrls, "auto_exposure=1", fmt.Sprintf("exposure_time_absolute=%d", units))
	}
	if wb := s.Params.WhiteBalance; wb != nil {
		ctrls = append(ctrls,
			"white_balance_automatic=0",
			fmt.Sprintf("red_balance=%d", int(math.Round(wb.Red*balanceScale))),
			fmt.Sprintf("blue_balance=%d", int(math.Round(wb.Blue*balanceScale))),
		)
	}
	if len(ctrls) == 0 {
		return ""
	}
	return "c," + strings.Join(ctrls, ",")
}
