package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/startup"
	"metadata-tracker/internal/store"
	"metadata-tracker/internal/tracker"
)

// app wires the tracker for one command run. The caller must defer Close.
type app struct {
	config  *startup.Config
	tracker *tracker.Tracker
	vipsErr error
}

// newApp reads the configuration quietly and builds the tracker. Commands
// other than serve skip the startup banner.
func newApp(cmd *cobra.Command) (*app, error) {
	config, err := startup.ReadConfig(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	logging.SetLevel(config.LogLevel)
	if err := logging.Configure(config.LogFormat); err != nil {
		return nil, err
	}
	return buildApp(config), nil
}

func buildApp(config *startup.Config) *app {
	a := &app{config: config}
	if err := codec.InitVips(); err != nil {
		a.vipsErr = err
		logging.Warn("libvips unavailable: %v", err)
	}

	reg := store.NewRegistry(store.Options{
		Kind:      config.StoreBackend,
		PerFolder: config.PerFolder,
		DataDir:   config.DataDir,
	})
	a.tracker = tracker.New(reg, codec.New(), tracker.Options{
		OutputDir:             config.OutputDir,
		DataDir:               config.DataDir,
		ValidationChance:      config.ValidationChance,
		AllowAnimatedPreviews: config.AllowAnimatedPreviews,
	})
	return a
}

// Close closes every store. libvips stays up until the process exits.
func (a *app) Close() {
	a.tracker.Shutdown()
}
