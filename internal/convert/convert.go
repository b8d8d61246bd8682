// Package convert turns raw sensor payloads into 4-channel color images.
package convert

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// Decode converts raw into an NRGBA image. When targetW and targetH are
// both positive and differ from the raw geometry, the result is rescaled
// with bilinear interpolation.
//
// Rows are assumed tightly packed (stride = width * bytes per pixel).
// Trailing bytes beyond the last row are ignored.
func Decode(raw device.RawFrame, targetW, targetH int) (*image.NRGBA, error) {
	if targetW > device.MaxDimension || targetH > device.MaxDimension {
		return nil, fmt.Errorf("convert: invalid target geometry %dx%d", targetW, targetH)
	}
	img, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if targetW <= 0 || targetH <= 0 || (targetW == raw.Width && targetH == raw.Height) {
		return img, nil
	}
	return Scale(img, targetW, targetH), nil
}

// Scale returns src resampled to w x h.
func Scale(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func decode(raw device.RawFrame) (*image.NRGBA, error) {
	w, h := raw.Width, raw.Height
	if w <= 0 || h <= 0 || w > device.MaxDimension || h > device.MaxDimension {
		return nil, fmt.Errorf("convert: invalid geometry %dx%d", w, h)
	}
	bpp := raw.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("convert: unsupported format %q", raw.Format)
	}
	if raw.Format == device.FormatYUYV && w%2 != 0 {
		return nil, fmt.Errorf("convert: YUY2 needs an even width, got %d", w)
	}
	if need := w * h * bpp; len(raw.Data) < need {
		return nil, fmt.Errorf("convert: short buffer for %dx%d %s: have %d bytes, need %d",
			w, h, raw.Format, len(raw.Data), need)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	src, dst := raw.Data, img.Pix
	n := w * h

	switch raw.Format {
	case device.FormatRGBA:
		copy(dst, src[:n*4])

	case device.FormatBGRA:
		for i := 0; i < n; i++ {
			s, d := src[i*4:i*4+4], dst[i*4:i*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
		}

	case device.FormatRGB24:
		for i := 0; i < n; i++ {
			s, d := src[i*3:i*3+3], dst[i*4:i*4+4]
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		}

	case device.FormatBGR24:
		for i := 0; i < n; i++ {
			s, d := src[i*3:i*3+3], dst[i*4:i*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
		}

	case device.FormatGray8:
		for i := 0; i < n; i++ {
			g := src[i]
			d := dst[i*4 : i*4+4]
			d[0], d[1], d[2], d[3] = g, g, g, 0xff
		}

	case device.FormatGray16LE:
		// Keep the most significant byte
		for i := 0; i < n; i++ {
			g := src[i*2+1]
			d := dst[i*4 : i*4+4]
			d[0], d[1], d[2], d[3] = g, g, g, 0xff
		}

	case device.FormatYUYV:
		// Y0 U Y1 V covers two horizontal pixels
		for m := 0; m < n/2; m++ {
			s := src[m*4 : m*4+4]
			cb, cr := s[1], s[3]
			for k, y := range [2]uint8{s[0], s[2]} {
				r, g, b := color.YCbCrToRGB(y, cb, cr)
				d := dst[(m*2+k)*4 : (m*2+k)*4+4]
				d[0], d[1], d[2], d[3] = r, g, b, 0xff
			}
		}
	}

	return img, nil
}
