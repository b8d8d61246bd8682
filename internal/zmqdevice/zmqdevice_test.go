package zmqdevice

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeMessage(t *testing.T) {
	t.Run("full header", func(t *testing.T) {
		payload := mustMarshal(t, map[string]any{
			"type":       "image",
			"image_id":   7,
			"start_time": 1.5,
			"width":      2,
			"height":     1,
			"format":     "mono8",
			"data":       []byte{10, 20},
		})
		frame, id, err := decodeMessage(payload, header{})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		assert.Equal(t, 2, frame.Width)
		assert.Equal(t, 1, frame.Height)
		assert.Equal(t, device.FormatGray8, frame.Format)
		assert.Equal(t, []byte{10, 20}, frame.Data)
		assert.Equal(t, time.Unix(1, 5e8), frame.Timestamp)
	})

	t.Run("defaults fill missing header", func(t *testing.T) {
		payload := mustMarshal(t, map[string]any{"type": "image", "image_id": 1, "data": []byte{1, 2, 3, 4}})
		frame, _, err := decodeMessage(payload, header{Width: 2, Height: 2, Format: device.FormatGray8})
		require.NoError(t, err)
		assert.Equal(t, 2, frame.Width)
		assert.Equal(t, device.FormatGray8, frame.Format)
		assert.True(t, frame.Timestamp.IsZero())
	})

	t.Run("non image skipped", func(t *testing.T) {
		_, _, err := decodeMessage(mustMarshal(t, map[string]any{"type": "start"}), header{})
		assert.ErrorIs(t, err, errNotImage)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := decodeMessage([]byte{0xff, 0x00, 0x13}, header{})
		require.Error(t, err)
		assert.Equal(t, device.FaultFormat, device.Classify(err))
	})

	t.Run("incomplete header", func(t *testing.T) {
		_, _, err := decodeMessage(mustMarshal(t, map[string]any{"type": "image", "data": []byte{1}}), header{})
		assert.ErrorContains(t, err, "incomplete header")
	})

	t.Run("oversized header", func(t *testing.T) {
		payload := mustMarshal(t, map[string]any{
			"type": "image", "image_id": 3, "width": int64(1) << 32, "height": int64(1) << 32,
			"format": "RGBA", "data": []byte{1, 2, 3, 4},
		})
		_, id, err := decodeMessage(payload, header{})
		require.Error(t, err)
		assert.Equal(t, int64(3), id)
		assert.Equal(t, device.FaultFormat, device.Classify(err))
	})

	t.Run("unknown format", func(t *testing.T) {
		payload := mustMarshal(t, map[string]any{"type": "image", "width": 1, "height": 1, "format": "NV12"})
		_, _, err := decodeMessage(payload, header{})
		assert.ErrorContains(t, err, "unsupported pixel format")
	})
}

var endpointSeq atomic.Int32

func pushSocket(t *testing.T) (*zmq4.Socket, string) {
	t.Helper()
	push, err := zmq4.NewSocket(zmq4.PUSH)
	require.NoError(t, err)
	endpoint := fmt.Sprintf("inproc://zmqdevice-test-%d", endpointSeq.Add(1))
	require.NoError(t, push.Bind(endpoint))
	t.Cleanup(func() { push.Close() })
	return push, endpoint
}

func TestStream_RoundTrip(t *testing.T) {
	push, endpoint := pushSocket(t)

	dev, err := New(Config{}).Open(context.Background(), endpoint)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.Configure(context.Background(), device.Params{Width: 2, Height: 2, PixelFormat: device.FormatGray8}))
	stream, err := dev.StartAcquisition(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	_, err = push.SendBytes(mustMarshal(t, map[string]any{"type": "series_start"}), 0)
	require.NoError(t, err)
	_, err = push.SendBytes(mustMarshal(t, map[string]any{"type": "image", "image_id": 1, "data": []byte{1, 2, 3, 4}}), 0)
	require.NoError(t, err)

	frame, err := stream.NextFrame(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, frame.Data)
	assert.False(t, frame.Timestamp.IsZero())

	// Nothing else queued
	_, err = stream.NextFrame(20 * time.Millisecond)
	assert.ErrorIs(t, err, device.ErrTimeout)

	require.NoError(t, stream.Close())
	_, err = stream.NextFrame(time.Millisecond)
	assert.ErrorIs(t, err, device.ErrClosed)
}

func TestDevice_ConfigureRejectsSensorControls(t *testing.T) {
	_, endpoint := pushSocket(t)
	dev, err := New(Config{}).Open(context.Background(), endpoint)
	require.NoError(t, err)
	defer dev.Close()

	var perr *device.ParamError
	err = dev.Configure(context.Background(), device.Params{ExposureMicros: 100})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, device.ParamExposure, perr.Param)

	err = dev.Configure(context.Background(), device.Params{WhiteBalance: &device.WhiteBalance{Red: 1, Blue: 1}})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, device.ParamWhiteBalance, perr.Param)
}

func TestStream_OverBudget(t *testing.T) {
	s := &Stream{bwMBps: 1} // 1 MB/s
	now := time.Now()
	assert.False(t, s.overBudget(now, 100000), "first frame always passes")

	s.lastDelivered = now
	// 100 KB at 1 MB/s needs 100ms
	assert.True(t, s.overBudget(now.Add(50*time.Millisecond), 100000))
	assert.False(t, s.overBudget(now.Add(150*time.Millisecond), 100000))
}
