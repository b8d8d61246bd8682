package main

import (
	"fmt"
	"io"
	"time"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
)

// printBanner prints the startup configuration summary
func printBanner(w io.Writer, opts sensorcapture.Options, drv sensorcapture.DriverConfig, maxFrames int) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║              Sensor Capture Session                      ║\n")
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Session:       %s\n", opts.SessionID)
	fmt.Fprintf(w, "  Driver:        %s\n", drv.Kind)
	fmt.Fprintf(w, "  Device:        %s\n", opts.DeviceID)
	fmt.Fprintf(w, "  Capacity:      %d entries\n", opts.Capacity)
	if opts.Width > 0 {
		fmt.Fprintf(w, "  Target Size:   %dx%d\n", opts.Width, opts.Height)
	} else {
		fmt.Fprintf(w, "  Target Size:   native\n")
	}
	if opts.FrameTimeout > 0 {
		fmt.Fprintf(w, "  Frame Timeout: %s\n", opts.FrameTimeout)
	} else {
		fmt.Fprintf(w, "  Frame Timeout: none (blocking)\n")
	}
	if maxFrames > 0 {
		fmt.Fprintf(w, "  Max Frames:    %d\n", maxFrames)
	} else {
		fmt.Fprintf(w, "  Max Frames:    unlimited\n")
	}
	fmt.Fprintf(w, "\n")
}

// printWarmupStats prints the warm-up measurement box
func printWarmupStats(w io.Writer, ws *sensorcapture.WarmupStats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╭─────────────────────────────────────────────────────────╮\n")
	fmt.Fprintf(w, "│ Warmup Complete\n")
	fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│ Frames Received:    %6d frames\n", ws.FramesReceived)
	fmt.Fprintf(w, "│ Frames Skipped:     %6d frames\n", ws.FramesSkipped)
	fmt.Fprintf(w, "│ Duration:           %6.1f seconds\n", ws.Duration.Seconds())
	fmt.Fprintf(w, "│ FPS Mean:           %6.2f fps\n", ws.FPSMean)
	fmt.Fprintf(w, "│ FPS StdDev:         %6.2f fps\n", ws.FPSStdDev)
	fmt.Fprintf(w, "│ FPS Range:          %6.1f - %.1f fps\n", ws.FPSMin, ws.FPSMax)
	fmt.Fprintf(w, "│ Jitter Mean:        %6.3f s\n", ws.JitterMean)
	fmt.Fprintf(w, "│ Jitter Max:         %6.3f s\n", ws.JitterMax)
	fmt.Fprintf(w, "│ Stable:             %6v\n", ws.IsStable)
	fmt.Fprintf(w, "╰─────────────────────────────────────────────────────────╯\n")
	if !ws.IsStable {
		fmt.Fprintf(w, "\n⚠️  WARNING: Sensor is unstable (high FPS variance or jitter)\n")
	}
	fmt.Fprintf(w, "\n")
}

// printLiveStats prints the periodic statistics box
func printLiveStats(w io.Writer, s sensorcapture.SessionStats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╭─────────────────────────────────────────────────────────╮\n")
	fmt.Fprintf(w, "│ Session Statistics (Uptime: %s)\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│ State:              %6s\n", s.State)
	fmt.Fprintf(w, "│ Frames Captured:    %6d frames\n", s.FramesCaptured)
	fmt.Fprintf(w, "│ Frames Consumed:    %6d frames\n", s.FramesConsumed)
	if s.FramesDropped > 0 {
		fmt.Fprintf(w, "│ Buffer Drops:       %6d frames (%.1f%%)\n", s.FramesDropped, s.DropRate)
	}
	if s.FramesSkipped > 0 {
		fmt.Fprintf(w, "│ Consumer Skips:     %6d frames\n", s.FramesSkipped)
	}
	fmt.Fprintf(w, "│ Buffered:           %6d / %d\n", s.Buffered, s.Capacity)
	fmt.Fprintf(w, "│ FPS:                %6.2f fps\n", s.FPS)
	if s.Latency.Samples > 0 {
		fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
		fmt.Fprintf(w, "│ Acquisition Latency (last %d frames)\n", s.Latency.Samples)
		fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
		fmt.Fprintf(w, "│ Mean Latency:       %6.2f ms\n", s.Latency.MeanMS)
		fmt.Fprintf(w, "│ P95 Latency:        %6.2f ms\n", s.Latency.P95MS)
		fmt.Fprintf(w, "│ Max Latency:        %6.2f ms\n", s.Latency.MaxMS)
	}
	fmt.Fprintf(w, "╰─────────────────────────────────────────────────────────╯\n")
	fmt.Fprintf(w, "\n")
}

// printFinalStats prints the shutdown summary
func printFinalStats(w io.Writer, s sensorcapture.SessionStats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "                     Final Statistics                      \n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Final State:        %s\n", s.State)
	fmt.Fprintf(w, "  Total Uptime:       %s\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(w, "  Frames Captured:    %d frames\n", s.FramesCaptured)
	fmt.Fprintf(w, "  Frames Consumed:    %d frames\n", s.FramesConsumed)
	fmt.Fprintf(w, "  Buffer Drops:       %d frames (%.1f%%)\n", s.FramesDropped, s.DropRate)
	fmt.Fprintf(w, "  Consumer Skips:     %d frames\n", s.FramesSkipped)
	fmt.Fprintf(w, "  Last FPS:           %.2f fps\n", s.FPS)
	fmt.Fprintf(w, "  Open Attempts:      %d\n", s.OpenAttempts)
	if s.LastError != "" {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "  Fault:              %s\n", s.LastFault)
		fmt.Fprintf(w, "  Error:              %s\n", s.LastError)
	}
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
}
