// Package sensorcapture pulls frames from an imaging sensor at its native
// rate and keeps the most recent ones available to a slower consumer.
//
// A background goroutine reads raw frames from a device driver, converts
// them to 4-channel NRGBA images, tracks a smoothed FPS estimate and
// deposits the results into a fixed-capacity buffer. The consumer polls
// that buffer at its own pace; neither side ever blocks the other.
//
// # Quick Start
//
//	drv, _ := sensorcapture.NewDriver(sensorcapture.DriverConfig{Kind: sensorcapture.DriverGStreamer})
//
//	session, err := sensorcapture.New(sensorcapture.Options{
//	    DeviceID: "/dev/video0",
//	    Capacity: 4,
//	    Width:    640,
//	    Height:   480,
//	    Params:   sensorcapture.Params{ExposureMicros: 8000, PixelFormat: sensorcapture.FormatYUYV},
//	}, drv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handle, err := session.Spawn(ctx) // open, configure, start: errors are synchronous
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Shutdown()
//
//	for {
//	    select {
//	    case <-handle.Done():
//	        log.Println("capture ended:", handle.Err())
//	        return
//	    case <-ticker.C:
//	        if e, ok := session.GetData(); ok {
//	            render(e.Frame.Image(), e.FPS)
//	        }
//	    }
//	}
//
// # Buffer Policy
//
// The buffer holds at most Options.Capacity entries. When it is full the
// oldest entry is dropped to make room (freshness over completeness).
// GetData returns the oldest entry, GetLatest returns the newest one and
// discards the rest. Evictions are reported as FramesDropped and GetLatest
// discards as FramesSkipped. An empty buffer is a normal state, reported as
// ok=false.
//
// # Shutdown
//
// Shutdown sets a flag the loop checks at the top of every iteration, so
// the loop completes at most one more read-decode-push cycle. A read that
// blocks on the device delays exit until the device returns; set
// Options.FrameTimeout to bound it. Cancelling the context passed to
// Spawn also requests shutdown.
//
// # Errors
//
// Spawn reports setup failures synchronously:
//
//   - *DeviceOpenError: Driver.Open failed (after retries, if configured)
//   - *DeviceConfigureError: the device rejected a parameter (Param names it)
//   - *AcquisitionStartError: the device refused to start streaming
//
// Any failure reading or decoding a frame ends the loop with a
// *FrameReadError, delivered through TaskHandle.Wait/Err. Entries already
// buffered stay available to GetData. There is no automatic reconnection;
// create a new session to reopen the device.
//
// # FPS Estimate
//
// Entry.FPS is 1000 / mean latency over a window of the last 100
// read+decode latencies (milliseconds). With DivisorWindow (default) the
// sum is always divided by 100, so for the first 100 frames the unwritten
// slots count as zero and the estimate is inflated. DivisorFilled divides
// by the number of samples recorded instead.
//
// # Drivers
//
//   - gstreamer: V4L2 cameras through v4l2src → videoconvert → appsink
//   - zmq: networked detectors pushing CBOR image messages (PULL socket)
//   - sim: synthetic gradient frames with fault injection
package sensorcapture
