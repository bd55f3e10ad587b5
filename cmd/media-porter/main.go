package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-porter/internal/database"
	"media-porter/internal/downloader"
	"media-porter/internal/extractor"
	"media-porter/internal/filesystem"
	"media-porter/internal/handlers"
	"media-porter/internal/logging"
	"media-porter/internal/memory"
	"media-porter/internal/metrics"
	"media-porter/internal/middleware"
	"media-porter/internal/startup"
	"media-porter/internal/workers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func main() {
	startTime := time.Now()

	if _, err := loadEnvironment(); err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	startup.LogExtractorInit(config)
	ext := extractor.New(extractor.Options{
		Executable: config.YtDlpPath,
		FFmpegPath: config.FFmpegPath,
		Retries:    config.ExtractorRetries,
	})

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	slots := workers.NewLimiter(workers.ForDownloads(workers.DefaultMaxDownloads))
	metrics.DownloadSlots.Set(float64(slots.Size()))
	logging.Info("Download slots: %d", slots.Size())

	dl := downloader.New(ext, db, downloader.Options{
		ScratchRoot:   config.ScratchDir,
		MaxAudioBytes: config.MaxAudioBytes,
		MaxVideoBytes: config.MaxVideoBytes,
		Slots:         slots,
		Memory:        monitor,
	})

	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&dbStatsAdapter{db: db}, db.Path(), collectorInterval)
		collector.Start()

		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	h := handlers.New(dl, db)

	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.RequestsPerSecond = config.RateLimitRPS
	rateLimit.Burst = config.RateLimitBurst
	rateLimit.TrustedProxies = config.TrustedProxies

	router := setupRouter(h, rateLimit)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Downloads run for minutes; slow clients are bounded per write by
		// the streaming package instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go handleShutdown(done, &lifecycle{
		srv:        srv,
		metricsSrv: metricsSrv,
		extractor:  ext,
		monitor:    monitor,
		collector:  collector,
		db:         db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// loadEnvironment seeds the environment from the dotenv file, then sizes the
// heap from it. It runs before the first log line so LOG_LEVEL, DEBUG and
// MEMORY_LIMIT from the file take effect.
func loadEnvironment() (memory.ConfigResult, error) {
	if _, err := startup.LoadEnv(); err != nil {
		return memory.ConfigResult{}, err
	}
	return memory.ConfigureFromEnv(), nil
}

func setupRouter(h *handlers.Handlers, rateLimit middleware.RateLimitConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Downloads
	r.Handle("/{platform}/{format}/download",
		middleware.RateLimit(rateLimit)(http.HandlerFunc(h.Download)),
	).Methods(http.MethodGet).Name("download")

	r.NotFoundHandler = jsonStatus(http.StatusNotFound, "Not found")
	r.MethodNotAllowedHandler = jsonStatus(http.StatusMethodNotAllowed, "Method not allowed")

	return r
}

func jsonStatus(code int, message string) http.Handler {
	body := []byte(`{"error":"` + message + `"}` + "\n")
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write(body)
	})
}

func newMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	m.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// ledgerStats is the part of *database.Database the metrics collector reads.
type ledgerStats interface {
	GetStats(ctx context.Context) (database.Stats, error)
	UpdateDBMetrics()
}

// dbStatsAdapter adapts the ledger to metrics.StatsProvider.
type dbStatsAdapter struct {
	db ledgerStats
}

func (a *dbStatsAdapter) GetStats(ctx context.Context) (metrics.Stats, error) {
	a.db.UpdateDBMetrics()

	s, err := a.db.GetStats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}

	counts := make([]metrics.DownloadCount, 0, len(s.Counts))
	for _, c := range s.Counts {
		counts = append(counts, metrics.DownloadCount{
			Platform:  c.Platform,
			Format:    c.Format,
			Downloads: c.Downloads,
		})
	}

	return metrics.Stats{
		TotalDownloads: s.TotalDownloads,
		TotalBytes:     s.TotalBytes,
		Counts:         counts,
		LastDownload:   s.LastDownload,
	}, nil
}

// lifecycle holds everything stopped on shutdown. Optional parts are nil
// when metrics are disabled.
type lifecycle struct {
	srv        *http.Server
	metricsSrv *http.Server
	extractor  *extractor.Extractor
	monitor    *memory.Monitor
	collector  *metrics.Collector
	db         *database.Database
}

func handleShutdown(done chan<- struct{}, l *lifecycle) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	l.shutdown()
	startup.LogShutdownComplete()
}

func (l *lifecycle) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Cancelling yt-dlp first lets in-flight handlers fail fast so the
	// HTTP server can drain.
	startup.LogShutdownStep("Cancelling in-flight downloads")
	l.extractor.Cleanup()
	if l.monitor != nil {
		l.monitor.Stop()
	}
	startup.LogShutdownStepComplete("Extractor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := l.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if l.collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		l.collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	if l.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := l.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := l.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}
}
