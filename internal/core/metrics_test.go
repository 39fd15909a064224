package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusMetricsRecorder: %v", err)
	}

	ctx := context.Background()
	rec.Observe(ctx, "create", true, 3*time.Millisecond)
	rec.Observe(ctx, "create", false, time.Millisecond)
	rec.Observe(ctx, "get", true, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]bool, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = true
	}
	if !byName["plancore_store_operations_total"] || !byName["plancore_store_operation_seconds"] {
		t.Fatalf("metric families missing: %v", byName)
	}

	// double registration must fail loudly
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestExpvarRecorderAccumulates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("plancore_test_store")
	ctx := context.Background()
	rec.Observe(ctx, "update", true, 2*time.Millisecond)
	rec.Observe(ctx, "update", true, 2*time.Millisecond)
	rec.Observe(ctx, "update", false, time.Millisecond)

	if got := rec.root.Get("update_success_total").String(); got != "2" {
		t.Fatalf("update_success_total = %s, want 2", got)
	}
	if got := rec.root.Get("update_failure_total").String(); got != "1" {
		t.Fatalf("update_failure_total = %s, want 1", got)
	}
	if rec.root.Get("update_duration_ns") == nil {
		t.Fatal("duration counter missing")
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	var observed []string
	rec := metricsFunc(func(op string, success bool) { observed = append(observed, op) })
	svc := newTestService(t, WithMetrics(rec))

	if _, err := svc.Get(context.Background(), CollectionUsers, "user-admin"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(observed) == 0 || observed[len(observed)-1] != "get" {
		t.Fatalf("observed = %v, want trailing get", observed)
	}
}

type metricsFunc func(op string, success bool)

func (f metricsFunc) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	f(op, success)
}
