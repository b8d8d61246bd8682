package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/telemetry"
)

const (
	shutdownTimeout = 5 * time.Second
	maxConsumerRate = 100.0 // Hz
)

// RunOptions holds run command flags
type RunOptions struct {
	Driver        string
	Device        string
	MaxFrames     int
	StatsInterval int
	ConsumerRate  float64
	SkipWarmup    bool
	HealthAddr    string
}

// NewRunCommand creates the run command
func NewRunCommand(global *GlobalOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a capture session until interrupted",
		Long: `Run opens the configured sensor, applies its parameters and consumes frames until
SIGINT/SIGTERM, --max-frames, or an acquisition failure. Statistics are printed periodically
and optionally published over MQTT and served on an HTTP health endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global.ConfigPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}
			format := cfg.Log.Format
			if global.LogFormat != "" {
				format = global.LogFormat
			}
			setupLogger(cfg.Log.Level, format, global.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCapture(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Driver: sim, gstreamer, zmq (overrides config)")
	cmd.Flags().StringVar(&opts.Device, "device", "", "Device path or endpoint (overrides config)")
	cmd.Flags().IntVar(&opts.MaxFrames, "max-frames", 0, "Maximum frames to consume (0 = unlimited)")
	cmd.Flags().IntVar(&opts.StatsInterval, "stats-interval", 10, "Seconds between stats reports (0 = off)")
	cmd.Flags().Float64Var(&opts.ConsumerRate, "consumer-rate", 0, "Consumer polling rate in Hz (0 = derive from warm-up)")
	cmd.Flags().BoolVar(&opts.SkipWarmup, "skip-warmup", false, "Skip FPS stability warm-up")
	cmd.Flags().StringVar(&opts.HealthAddr, "health-addr", "", "Health endpoint address, e.g. :8080 (overrides config)")

	return cmd
}

// apply merges flag overrides into cfg and revalidates it
func (o *RunOptions) apply(cfg *config.Config) error {
	if o.Driver != "" {
		cfg.Driver.Kind = o.Driver
	}
	if o.Device != "" {
		cfg.Driver.DeviceID = o.Device
	}
	if o.HealthAddr != "" {
		cfg.Health.Addr = o.HealthAddr
	}
	if o.SkipWarmup {
		cfg.Session.WarmupDurationS = 0
	}
	if o.MaxFrames < 0 {
		return fmt.Errorf("--max-frames must be >= 0")
	}
	if o.ConsumerRate < 0 {
		return fmt.Errorf("--consumer-rate must be >= 0")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// runCapture drives one session from spawn to final statistics
func runCapture(ctx context.Context, out io.Writer, cfg *config.Config, ro *RunOptions) error {
	opts, drvCfg, err := sessionOptions(cfg)
	if err != nil {
		return err
	}
	driver, err := sensorcapture.NewDriver(drvCfg)
	if err != nil {
		return err
	}
	session, err := sensorcapture.New(opts, driver)
	if err != nil {
		return err
	}

	printBanner(out, opts, drvCfg, ro.MaxFrames)

	if cfg.Health.Addr != "" {
		startHealthServer(ctx, cfg.Health.Addr, cfg.InstanceID, session.Stats)
	}

	handle, err := session.Spawn(ctx)
	if err != nil {
		printFinalStats(out, session.Stats())
		return err
	}

	if cfg.Telemetry.Enabled {
		stopTelemetry, err := startTelemetry(ctx, cfg, session.Stats)
		if err != nil {
			stopSession(session, handle, shutdownTimeout)
			return err
		}
		defer stopTelemetry()
	}

	rate := ro.ConsumerRate
	if d := cfg.Session.WarmupDuration(); d > 0 {
		fmt.Fprintf(out, "Running warmup (%s) to measure sensor stability...\n", d)
		ws, err := session.Warmup(ctx, d)
		switch {
		case ws != nil:
			printWarmupStats(out, ws)
			if rate == 0 {
				rate = sensorcapture.OptimalConsumerRate(ws, maxConsumerRate)
			}
		case err != nil && handle.Err() == nil && ctx.Err() == nil:
			slog.Warn("sensor-capture: warmup failed, continuing", "error", err)
		}
	}
	if rate <= 0 {
		rate = maxConsumerRate
	}

	fmt.Fprintf(out, "Starting frame consumption at %.1f Hz...\n", rate)
	fmt.Fprintf(out, "Press Ctrl+C to stop gracefully\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n\n")

	consume(ctx, out, session, handle, ro, rate)

	stopSession(session, handle, shutdownTimeout)
	printFinalStats(out, session.Stats())

	if err := handle.Err(); err != nil {
		return err
	}
	slog.Info("sensor-capture: capture completed successfully")
	return nil
}

// stopSession requests shutdown and waits at most timeout for the loop to
// exit. It reports whether the loop stopped; a driver blocked in NextFrame
// without a frame timeout may not.
func stopSession(session *sensorcapture.CaptureSession, handle *sensorcapture.TaskHandle, timeout time.Duration) bool {
	session.Shutdown()
	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := handle.Wait(waitCtx); errors.Is(err, context.DeadlineExceeded) {
		slog.Error("sensor-capture: acquisition loop did not stop in time", "timeout", timeout)
		return false
	}
	return true
}

// consume polls the session until ctx is done, the loop exits, or
// maxFrames entries were read.
func consume(ctx context.Context, out io.Writer, session *sensorcapture.CaptureSession, handle *sensorcapture.TaskHandle, ro *RunOptions, rate float64) {
	poll := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer poll.Stop()

	var statsC <-chan time.Time
	if ro.StatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(ro.StatsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	consumed := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "\n\nReceived interrupt signal, shutting down...\n")
			return
		case <-handle.Done():
			slog.Warn("sensor-capture: acquisition loop exited", "error", handle.Err())
			return
		case <-statsC:
			printLiveStats(out, session.Stats())
		case <-poll.C:
			entry, ok := session.GetLatest()
			if !ok {
				continue
			}
			consumed++

			slog.Debug("sensor-capture: frame consumed",
				"seq", entry.Seq,
				"trace_id", entry.TraceID,
				"width", entry.Frame.Width(),
				"height", entry.Frame.Height(),
				"fps", entry.FPS,
				"latency_ms", entry.Latency.Milliseconds())

			if ro.MaxFrames > 0 && consumed >= ro.MaxFrames {
				fmt.Fprintf(out, "\nReached maximum frames (%d), stopping...\n", ro.MaxFrames)
				return
			}
		}
	}
}

// startTelemetry connects to the broker and starts the stats reporter.
// The returned func stops reporting and disconnects.
func startTelemetry(ctx context.Context, cfg *config.Config, stats func() sensorcapture.SessionStats) (func(), error) {
	enc, err := telemetry.EncoderFor(cfg.Telemetry.Encoding)
	if err != nil {
		return nil, err
	}
	emitter := telemetry.NewMQTTEmitter(telemetry.MQTTConfig{
		Broker:   cfg.Telemetry.Broker,
		ClientID: cfg.Telemetry.ClientID,
		QoS:      cfg.Telemetry.QoS,
	})
	if err := emitter.Connect(ctx); err != nil {
		return nil, err
	}

	reporter := &telemetry.Reporter{
		InstanceID: cfg.InstanceID,
		Topic:      cfg.Telemetry.Topic,
		Interval:   cfg.Telemetry.Interval(),
		Encode:     enc,
		Publisher:  emitter,
		Stats:      stats,
	}

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		reporter.Run(rctx)
		close(done)
	}()

	return func() {
		cancel()
		<-done
		emitter.Disconnect()
	}, nil
}
