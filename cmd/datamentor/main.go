// Command datamentor serves the dataset and project synchronization API.
// Configuration is environment-driven; with no remote variables set the
// server runs fully local against the SQLite cache.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"datamentor/internal/blob"
	"datamentor/internal/cache"
	"datamentor/internal/httpapi"
	"datamentor/internal/metatable"
	"datamentor/internal/sync"
)

func main() {
	logger, err := newLogger()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if err := run(log); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DATAMENTOR_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userID := envOr("DATAMENTOR_USER_ID", "default")

	local, err := cache.Open(os.Getenv("DATAMENTOR_CACHE_PATH"))
	if err != nil {
		return err
	}
	defer func() { _ = local.Close() }()
	log.Infow("local cache ready", "path", local.Path())

	remote, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	log.Infow("blob store ready", "driver", remote.Driver())

	index, err := metatable.Open(ctx)
	if err != nil {
		return err
	}
	if index == nil {
		log.Infow("metadata table disabled, running local-only project index")
	}

	mux := http.NewServeMux()

	// DATAMENTOR_METRICS selects the exporter: prometheus (default, served on
	// /metrics) or expvar (served on /debug/vars).
	var recorder sync.MetricsRecorder
	switch mode := envOr("DATAMENTOR_METRICS", "prometheus"); mode {
	case "prometheus":
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		rec, err := sync.NewPrometheusMetricsRecorder(registry)
		if err != nil {
			return err
		}
		recorder = rec
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	case "expvar":
		rec := sync.NewExpvarMetricsRecorder("sync_engine_metrics")
		recorder = rec
		mux.Handle("/debug/vars", expvar.Handler())
		log.Infow("expvar metrics enabled", "name", rec.Name())
	default:
		return fmt.Errorf("unknown metrics exporter %s", mode)
	}

	engine := sync.New(userID, local, remote, index, log, sync.WithMetricsRecorder(recorder))
	mux.Handle("/api/v1/", httpapi.NewHandler(engine, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              envOr("DATAMENTOR_HTTP_ADDR", ":8323"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", srv.Addr, "user", userID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Infow("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
