// Command sensor-capture runs a capture session against a camera sensor
// and reports its throughput.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// GlobalOptions holds flags shared by every subcommand
type GlobalOptions struct {
	ConfigPath string
	Debug      bool
	LogFormat  string
}

func newRootCommand() *cobra.Command {
	global := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sensor-capture",
		Short: "Camera sensor capture session",
		Long: `sensor-capture opens a camera sensor through a driver (simulated, GStreamer/V4L2 or ZeroMQ),
applies one-time sensor parameters and runs a background acquisition loop that keeps the
freshest frames in a bounded buffer.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "Path to YAML configuration file (default: built-in simulated sensor)")
	rootCmd.PersistentFlags().BoolVar(&global.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&global.LogFormat, "log-format", "", "Log format: text, json (overrides config)")

	rootCmd.AddCommand(NewRunCommand(global))
	rootCmd.AddCommand(NewCheckConfigCommand(global))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// setupLogger installs the default slog logger
func setupLogger(level, format string, debug bool) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
