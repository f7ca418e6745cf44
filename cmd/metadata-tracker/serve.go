package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/handlers"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/memory"
	"metadata-tracker/internal/metrics"
	"metadata-tracker/internal/middleware"
	"metadata-tracker/internal/startup"
	"metadata-tracker/internal/tracker"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata and preview API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	}
}

func serve(cmd *cobra.Command) error {
	startTime := time.Now()

	config, err := startup.LoadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	compress, err := middleware.Compression(middleware.DefaultCompressionConfig())
	if err != nil {
		return fmt.Errorf("compression middleware: %w", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	a := buildApp(config)
	startup.LogStoreInit(config)
	startup.LogCodecInit(a.vipsErr, config.AllowAnimatedPreviews)

	collector := metrics.NewCollector(a.tracker.Registry(), collectorInterval)
	collector.Start()

	var watcher *tracker.Watcher
	if config.WatchOutput {
		watcher, err = tracker.NewWatcher(a.tracker, config.OutputDir)
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			watcher = nil
		}
		dirs := 0
		if watcher != nil {
			dirs = watcher.Watching()
		}
		startup.LogWatcherInit(dirs, err)
	}

	h := handlers.New(a.tracker, config)
	router := h.NewRouter()
	if config.MetricsEnabled {
		router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := compress(middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           handlers.MetricsRouter(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
	}

	serverErr := make(chan error, 2)
	listen := func(s *http.Server, name string) {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go listen(srv, "HTTP")
	if metricsSrv != nil {
		go listen(metricsSrv, "metrics")
	}

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case <-cmd.Context().Done():
		startup.LogShutdownInitiated("context cancelled")
	case runErr = <-serverErr:
		logging.Error("%v", runErr)
		startup.LogShutdownInitiated("server error")
	}

	h.SetReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if watcher != nil {
		startup.LogShutdownStep("Stopping output watcher")
		if err := watcher.Stop(); err != nil {
			logging.Warn("Watcher stop error: %v", err)
		}
		startup.LogShutdownStepComplete("Output watcher stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Closing stores")
	a.Close()
	startup.LogShutdownStepComplete("Stores closed")

	startup.LogShutdownComplete()
	return runErr
}
