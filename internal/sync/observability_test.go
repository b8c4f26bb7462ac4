package sync

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	rec.Observe(context.Background(), "save_dataset", true, 25*time.Millisecond)
	rec.Observe(context.Background(), "save_dataset", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond) // ignored

	if got := testutil.ToFloat64(rec.results.WithLabelValues("save_dataset", "success")); got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("save_dataset", "error")); got != 1 {
		t.Fatalf("error counter = %v, want 1", got)
	}
}

func TestExpvarMetricsRecorderSnapshot(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "resolve_dataset", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "resolve_dataset", false, 30*time.Millisecond)

	snap := rec.Snapshot()
	if snap.DurationsMS["resolve_dataset"] != 40 {
		t.Fatalf("durations = %v, want 40ms total", snap.DurationsMS)
	}
	if snap.Results["resolve_dataset"]["success"] != 1 || snap.Results["resolve_dataset"]["error"] != 1 {
		t.Fatalf("results = %v", snap.Results)
	}
	if rec.Name() == "" {
		t.Fatalf("expected generated export name")
	}
}

func TestEngineEmitsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	eng, _, _, _ := newTestEngine(t)
	WithMetricsRecorder(rec)(eng)

	if _, err := eng.SaveDataset(context.Background(), []byte("a"), "a.csv"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("save_dataset", "success")); got != 1 {
		t.Fatalf("expected one successful save observation, got %v", got)
	}
}
