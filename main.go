package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/convert"
	"media-optimizer/internal/dispatch"
	"media-optimizer/internal/engine"
	"media-optimizer/internal/filesystem"
	"media-optimizer/internal/handlers"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/memory"
	"media-optimizer/internal/middleware"
	"media-optimizer/internal/selector"
	"media-optimizer/internal/sizes"
	"media-optimizer/internal/startup"
	"media-optimizer/internal/store"
	"media-optimizer/internal/tracker"
	"media-optimizer/internal/workers"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before any significant allocations
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Label filesystem metrics by mount
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	ctx := context.Background()

	// Initialize the variant store
	storeStart := time.Now()
	resolver := store.NewURLResolver(config.VariantDir, config.BaseURL)
	st, err := store.New(ctx, config.DatabasePath, resolver)
	if err != nil {
		startup.LogFatal("Failed to initialize variant store: %v", err)
	}
	defer st.Close()
	startup.LogStoreInit(time.Since(storeStart))

	// Refresh connection metrics periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			st.UpdateDBMetrics()
		}
	}()

	tr := tracker.New(st)

	// Initialize encoders
	if err := convert.InitVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
	}
	defer convert.ShutdownVips()

	ffmpeg := convert.NewFFmpegEncoder(config.FFmpegPath)
	defer ffmpeg.Cleanup()

	detector := capability.NewDetector()
	startup.LogEncoderInit(capabilitySummary(detector.Probe(ctx)))

	// Conversion pipeline
	registry := sizes.StaticRegistry(config.Sizes)
	sources := convert.DirSources{Root: config.MediaDir, RenderMissing: config.RenderMissing}
	orch := convert.New(st, tr, detector, registry, sources, config.VariantDir,
		config.Options, convert.NewVipsEncoder(), ffmpeg)
	sel := selector.New(st, registry)
	eng := engine.New(st, orch, sel, tr, sources)

	// Memory backpressure for the conversion workers
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	runner := dispatch.RunnerFunc(func(ctx context.Context, assetID string) error {
		if !monitor.WaitIfPaused() {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("conversion aborted during shutdown")
		}
		return eng.Convert(ctx, assetID)
	})

	workerCount := workers.ForCPU(config.Workers)
	queue := dispatch.NewQueue(ctx, st, runner, workerCount, config.QueueBuffer)
	startup.LogQueueInit(workerCount, config.QueueBuffer)

	// HTTP surface
	h := handlers.New(eng, st, queue, detector)
	router := mux.NewRouter()
	h.Register(router)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(
			middleware.Metrics(middleware.DefaultMetricsConfig())(router)))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		mr := http.NewServeMux()
		mr.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + config.MetricsPort, Handler: mr}
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, queue, monitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

// capabilitySummary flattens a probe result for the startup log.
func capabilitySummary(m capability.Map) map[string][]string {
	summary := make(map[string][]string, len(m))
	for name, caps := range m {
		var supported []string
		for f, ok := range caps.Supports {
			if ok {
				supported = append(supported, string(f))
			}
		}
		sort.Strings(supported)
		summary[name] = supported
	}
	return summary
}

func handleShutdown(srv, metricsSrv *http.Server, queue *dispatch.Queue, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The API server stops first so no request can enqueue against a
	// queue that is already draining.
	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Draining conversion queue")
	queue.Close()
	startup.LogShutdownStepComplete("Conversion queue drained")

	monitor.Stop()

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
