package zmqdevice

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

// message is the CBOR envelope detectors push:
//
//	{ "type": "image", "image_id": 7, "start_time": 1.25,
//	  "width": 640, "height": 480, "format": "GRAY8", "data": h'...' }
//
// Other message types (series start/end, status) are skipped.
type message struct {
	Type      string  `cbor:"type"`
	ImageID   int64   `cbor:"image_id"`
	StartTime float64 `cbor:"start_time"`
	Width     int     `cbor:"width"`
	Height    int     `cbor:"height"`
	Format    string  `cbor:"format"`
	Data      []byte  `cbor:"data"`
}

var errNotImage = errors.New("not an image message")

// header carries the geometry used when a message omits it.
type header struct {
	Width  int
	Height int
	Format device.PixelFormat
}

// decodeMessage turns one CBOR payload into a raw frame. Non-image
// messages return errNotImage.
func decodeMessage(payload []byte, defaults header) (device.RawFrame, int64, error) {
	var msg message
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return device.RawFrame{}, 0, fmt.Errorf("zmqdevice: cbor decode: %w", err)
	}
	if msg.Type != "image" {
		return device.RawFrame{}, 0, errNotImage
	}

	frame := device.RawFrame{
		Width:  msg.Width,
		Height: msg.Height,
		Data:   msg.Data,
	}
	if frame.Width == 0 {
		frame.Width = defaults.Width
	}
	if frame.Height == 0 {
		frame.Height = defaults.Height
	}

	if msg.Format == "" {
		frame.Format = defaults.Format
	} else {
		f, err := device.ParsePixelFormat(msg.Format)
		if err != nil {
			return device.RawFrame{}, msg.ImageID, fmt.Errorf("zmqdevice: image %d: %w", msg.ImageID, err)
		}
		frame.Format = f
	}
	if frame.Width <= 0 || frame.Height <= 0 || frame.Format == "" {
		return device.RawFrame{}, msg.ImageID, fmt.Errorf("zmqdevice: image %d: incomplete header %dx%d %q", msg.ImageID, frame.Width, frame.Height, frame.Format)
	}
	if frame.Width > device.MaxDimension || frame.Height > device.MaxDimension {
		return device.RawFrame{}, msg.ImageID, fmt.Errorf("zmqdevice: image %d: malformed format header, %dx%d exceeds %d", msg.ImageID, frame.Width, frame.Height, device.MaxDimension)
	}

	if msg.StartTime > 0 {
		sec := int64(msg.StartTime)
		frame.Timestamp = time.Unix(sec, int64((msg.StartTime-float64(sec))*1e9))
	}
	return frame, msg.ImageID, nil
}
