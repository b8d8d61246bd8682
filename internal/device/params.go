package device

import (
	"errors"
	"fmt"
)

// PixelFormat names the layout of RawFrame.Data.
type PixelFormat string

const (
	FormatRGBA     PixelFormat = "RGBA"
	FormatRGB24    PixelFormat = "RGB"
	FormatBGR24    PixelFormat = "BGR"
	FormatBGRA     PixelFormat = "BGRA"
	FormatGray8    PixelFormat = "GRAY8"
	FormatGray16LE PixelFormat = "GRAY16_LE"
	FormatYUYV     PixelFormat = "YUY2"
)

// BytesPerPixel returns the packed size of one pixel, 0 for unknown formats.
// YUYV reports 2 (one macropixel of 4 bytes covers two pixels).
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatRGB24, FormatBGR24:
		return 3
	case FormatGray16LE, FormatYUYV:
		return 2
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// Valid reports whether f is one of the supported formats.
func (f PixelFormat) Valid() bool { return f.BytesPerPixel() > 0 }

// ParsePixelFormat accepts the canonical names plus a few common aliases.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "RGBA", "rgba":
		return FormatRGBA, nil
	case "RGB", "rgb", "rgb24", "RGB24":
		return FormatRGB24, nil
	case "BGR", "bgr", "bgr24", "BGR24":
		return FormatBGR24, nil
	case "BGRA", "bgra":
		return FormatBGRA, nil
	case "GRAY8", "gray8", "mono8", "Mono8":
		return FormatGray8, nil
	case "GRAY16_LE", "gray16", "gray16le", "mono16", "Mono16":
		return FormatGray16LE, nil
	case "YUY2", "yuyv", "YUYV", "yuyv422":
		return FormatYUYV, nil
	default:
		return "", fmt.Errorf("unsupported pixel format %q", s)
	}
}

// WhiteBalance holds per-channel gains. A nil *WhiteBalance in Params
// leaves the device on automatic white balance.
type WhiteBalance struct {
	Red  float64 `yaml:"red"`
	Blue float64 `yaml:"blue"`
}

// Params is the one-time device configuration applied before streaming.
type Params struct {
	// ExposureMicros is the exposure time; 0 keeps auto exposure.
	ExposureMicros float64
	PixelFormat    PixelFormat
	Width          int
	Height         int
	// Alignment is the multiple the sensor requires for width and height
	// (0 or 1 disables alignment).
	Alignment    int
	WhiteBalance *WhiteBalance
	// BandwidthMBps caps the link throughput; 0 means unlimited.
	BandwidthMBps float64
}

// MaxDimension bounds frame width and height. Larger headers are treated
// as corrupt so that size arithmetic cannot overflow.
const MaxDimension = 1 << 14

// Parameter names, in the order drivers apply them.
const (
	ParamExposure     = "exposure"
	ParamPixelFormat  = "pixel_format"
	ParamGeometry     = "geometry"
	ParamWhiteBalance = "white_balance"
	ParamBandwidth    = "bandwidth"
)

// Validate checks every parameter in application order and returns a
// *ParamError for the first one that is out of range.
func (p Params) Validate() error {
	if p.ExposureMicros < 0 {
		return &ParamError{Param: ParamExposure, Err: fmt.Errorf("negative exposure %.1fus", p.ExposureMicros)}
	}
	if p.PixelFormat != "" && !p.PixelFormat.Valid() {
		return &ParamError{Param: ParamPixelFormat, Err: fmt.Errorf("unsupported format %q", p.PixelFormat)}
	}
	if p.Width < 0 || p.Height < 0 || p.Alignment < 0 || p.Width > MaxDimension || p.Height > MaxDimension {
		return &ParamError{Param: ParamGeometry, Err: fmt.Errorf("invalid geometry %dx%d (align %d)", p.Width, p.Height, p.Alignment)}
	}
	if w, h := AlignGeometry(p.Width, p.Height, p.Alignment); (p.Width > 0 && w == 0) || (p.Height > 0 && h == 0) {
		return &ParamError{Param: ParamGeometry, Err: fmt.Errorf("geometry %dx%d smaller than alignment %d", p.Width, p.Height, p.Alignment)}
	}
	if wb := p.WhiteBalance; wb != nil && (wb.Red <= 0 || wb.Blue <= 0) {
		return &ParamError{Param: ParamWhiteBalance, Err: errors.New("gains must be positive")}
	}
	if p.BandwidthMBps < 0 {
		return &ParamError{Param: ParamBandwidth, Err: fmt.Errorf("negative bandwidth %.1fMB/s", p.BandwidthMBps)}
	}
	return nil
}

// AlignedGeometry returns Width and Height rounded down to Alignment.
func (p Params) AlignedGeometry() (int, int) {
	return AlignGeometry(p.Width, p.Height, p.Alignment)
}

// AlignGeometry rounds width and height down to a multiple of align.
func AlignGeometry(width, height, align int) (int, int) {
	if align <= 1 {
		return width, height
	}
	return width - width%align, height - height%align
}

// MaxFrameRate converts a bandwidth cap into the frame rate it allows for
// frames of the given size. Returns 0 when there is no limit.
func MaxFrameRate(bandwidthMBps float64, frameBytes int) float64 {
	if bandwidthMBps <= 0 || frameBytes <= 0 {
		return 0
	}
	return bandwidthMBps * 1e6 / float64(frameBytes)
}
