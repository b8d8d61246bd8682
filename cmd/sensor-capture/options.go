package main

import (
	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/device"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/fps"
)

// loadConfig reads path, or returns the defaults when path is empty
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// sessionOptions maps a validated configuration onto session and driver
// settings.
func sessionOptions(cfg *config.Config) (sensorcapture.Options, sensorcapture.DriverConfig, error) {
	params, err := cfg.Device.Params()
	if err != nil {
		return sensorcapture.Options{}, sensorcapture.DriverConfig{}, err
	}
	divisor, _ := fps.ParseDivisor(cfg.Session.FPSDivisor)

	opts := sensorcapture.Options{
		SessionID:    cfg.InstanceID,
		DeviceID:     cfg.Driver.DeviceID,
		Capacity:     cfg.Session.Capacity,
		Width:        cfg.Session.Width,
		Height:       cfg.Session.Height,
		FrameTimeout: cfg.Session.FrameTimeout(),
		Divisor:      divisor,
		Params:       params,
	}
	if r := cfg.Session.OpenRetry; r.MaxRetries > 0 {
		opts.OpenRetry = &sensorcapture.RetryConfig{
			MaxRetries:    r.MaxRetries,
			RetryDelay:    r.RetryDelay(),
			MaxRetryDelay: r.MaxRetryDelay(),
		}
	}

	drv := sensorcapture.DriverConfig{
		Kind:    cfg.Driver.Kind,
		Source:  cfg.Driver.Source,
		RecvHWM: cfg.Driver.RecvHWM,
		Sim: sensorcapture.SimConfig{
			Width:     cfg.Driver.Sim.Width,
			Height:    cfg.Driver.Sim.Height,
			FPS:       cfg.Driver.Sim.FPS,
			FailAfter: cfg.Driver.Sim.FailAfter,
		},
	}
	if cfg.Driver.Sim.Format != "" {
		f, err := device.ParsePixelFormat(cfg.Driver.Sim.Format)
		if err != nil {
			return opts, drv, err
		}
		drv.Sim.Format = f
	}
	return opts, drv, nil
}
