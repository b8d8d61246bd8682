package simdevice

import (
	"image/color"
	"math"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// render draws a diagonal gradient that shifts one pixel per frame and
// packs it in the configured format.
func (s *Stream) render(frame int) []byte {
	w, h, f := s.cfg.Width, s.cfg.Height, s.cfg.Format
	out := make([]byte, w*h*f.BytesPerPixel())

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := s.pixel(x, y, frame, w, h)
			i := y*w + x

			switch f {
			case device.FormatRGBA:
				out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = r, g, b, 0xff
			case device.FormatBGRA:
				out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = b, g, r, 0xff
			case device.FormatRGB24:
				out[i*3], out[i*3+1], out[i*3+2] = r, g, b
			case device.FormatBGR24:
				out[i*3], out[i*3+1], out[i*3+2] = b, g, r
			case device.FormatGray8:
				out[i] = luma(r, g, b)
			case device.FormatGray16LE:
				l := uint16(luma(r, g, b)) * 257
				out[i*2], out[i*2+1] = byte(l), byte(l>>8)
			case device.FormatYUYV:
				yy, cb, cr := color.RGBToYCbCr(r, g, b)
				out[i*2] = yy
				// Even pixels carry U, odd pixels carry V
				if x%2 == 0 {
					out[i*2+1] = cb
				} else {
					out[i*2+1] = cr
				}
			}
		}
	}
	return out
}

func (s *Stream) pixel(x, y, frame, w, h int) (r, g, b uint8) {
	fx := float64((x+frame)%w) / float64(w)
	fy := float64(y) / float64(h)
	r = clamp(255 * fx * s.brightness * s.gainR)
	g = clamp(255 * fy * s.brightness)
	b = clamp(255 * (1 - fx) * s.brightness * s.gainB)
	return r, g, b
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
