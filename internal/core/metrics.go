package core

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes store operations. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// ExpvarMetricsRecorder publishes per-operation counters and cumulative
// latency under an expvar map.
type ExpvarMetricsRecorder struct {
	mu   sync.Mutex
	root *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name. Publishing the
// same name twice panics, per expvar semantics, so use distinct names in
// tests.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	root := expvar.NewMap(name)
	return &ExpvarMetricsRecorder{root: root}
}

func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root.Add(fmt.Sprintf("%s_%s_total", operation, status), 1)
	r.root.Add(fmt.Sprintf("%s_duration_ns", operation), duration.Nanoseconds())
}

// PrometheusMetricsRecorder exports operation counts and latency histograms
// through a prometheus registry.
type PrometheusMetricsRecorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the store metrics on reg. A nil
// registerer uses the default registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancore_store_operations_total",
			Help: "Store operations by name and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plancore_store_operation_seconds",
			Help:    "Store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if err := reg.Register(r.ops); err != nil {
		return nil, err
	}
	if err := reg.Register(r.duration); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.ops.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}
