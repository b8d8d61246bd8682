package simdevice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/convert"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

func start(t *testing.T, cfg Config, p device.Params) device.Stream {
	t.Helper()
	dev, err := New(cfg).Open(context.Background(), "sim0")
	require.NoError(t, err)
	require.NoError(t, dev.Configure(context.Background(), p))
	stream, err := dev.StartAcquisition(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close(); dev.Close() })
	return stream
}

func TestStream_FramesDecode(t *testing.T) {
	formats := []device.PixelFormat{
		device.FormatRGBA, device.FormatBGRA, device.FormatRGB24, device.FormatBGR24,
		device.FormatGray8, device.FormatGray16LE, device.FormatYUYV,
	}
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			stream := start(t, Config{Width: 16, Height: 8, FPS: -1}, device.Params{PixelFormat: f})
			raw, err := stream.NextFrame(time.Second)
			require.NoError(t, err)
			assert.Equal(t, f, raw.Format)
			assert.Len(t, raw.Data, 16*8*f.BytesPerPixel())

			img, err := convert.Decode(raw, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, 16, img.Bounds().Dx())
		})
	}
}

func TestStream_FailAfter(t *testing.T) {
	stream := start(t, Config{Width: 4, Height: 4, FPS: -1, FailAfter: 4}, device.Params{})
	for i := 0; i < 4; i++ {
		_, err := stream.NextFrame(0)
		require.NoError(t, err, "frame %d", i+1)
	}
	_, err := stream.NextFrame(0)
	assert.ErrorIs(t, err, ErrInjected)
}

func TestStream_Pacing(t *testing.T) {
	stream := start(t, Config{Width: 4, Height: 4, FPS: 50}, device.Params{})

	begin := time.Now()
	for i := 0; i < 6; i++ {
		_, err := stream.NextFrame(0)
		require.NoError(t, err)
	}
	// First frame is immediate, five 20ms intervals follow
	assert.GreaterOrEqual(t, time.Since(begin), 90*time.Millisecond)
}

func TestStream_Timeout(t *testing.T) {
	stream := start(t, Config{Width: 4, Height: 4, FPS: 1}, device.Params{})
	_, err := stream.NextFrame(0)
	require.NoError(t, err)

	_, err = stream.NextFrame(10 * time.Millisecond)
	assert.ErrorIs(t, err, device.ErrTimeout)
}

func TestStream_CloseUnblocks(t *testing.T) {
	stream := start(t, Config{Width: 4, Height: 4, FPS: 0.1}, device.Params{})
	_, err := stream.NextFrame(0)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		stream.Close()
	}()
	_, err = stream.NextFrame(0)
	assert.ErrorIs(t, err, device.ErrClosed)
}

func TestDevice_Configure(t *testing.T) {
	t.Run("bandwidth lowers rate", func(t *testing.T) {
		dev, err := New(Config{Width: 100, Height: 100, Format: device.FormatGray8, FPS: 100}).Open(context.Background(), "")
		require.NoError(t, err)
		// 10000 bytes per frame at 0.2 MB/s = 20 fps
		require.NoError(t, dev.Configure(context.Background(), device.Params{BandwidthMBps: 0.2}))
		assert.InDelta(t, 20.0, dev.(*Device).cfg.FPS, 1e-9)
	})

	t.Run("injected rejection names the parameter", func(t *testing.T) {
		dev, err := New(Config{FailConfigure: device.ParamWhiteBalance}).Open(context.Background(), "")
		require.NoError(t, err)
		err = dev.Configure(context.Background(), device.Params{})
		var perr *device.ParamError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, device.ParamWhiteBalance, perr.Param)
		assert.ErrorIs(t, err, ErrInjected)
	})

	t.Run("setup failures", func(t *testing.T) {
		_, err := New(Config{FailOpen: true}).Open(context.Background(), "x")
		assert.ErrorIs(t, err, ErrInjected)

		dev, err := New(Config{FailStart: true}).Open(context.Background(), "x")
		require.NoError(t, err)
		_, err = dev.StartAcquisition(context.Background())
		assert.ErrorIs(t, err, ErrInjected)
	})
}
