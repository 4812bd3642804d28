package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "redis_cleanup"

// Recorder holds the counters for a single run. Each run gets its own
// registry so the pushed series only describe that run.
type Recorder struct {
	registry *prometheus.Registry

	keysScanned *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	keysDeleted prometheus.Counter
	keysSeeded  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		keysScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keys_scanned_total",
				Help:      "Total number of keys enumerated by cleanup",
			},
			[]string{"pattern"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Cleanup decisions by outcome",
			},
			[]string{"decision"},
		),
		keysDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keys_deleted_total",
				Help:      "Total number of keys deleted by cleanup",
			},
		),
		keysSeeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keys_seeded_total",
				Help:      "Total number of keys written by seed",
			},
			[]string{"expiry"},
		),
	}

	r.registry.MustRegister(r.keysScanned, r.decisions, r.keysDeleted, r.keysSeeded)
	return r
}

// RecordScanned records the number of keys a pattern matched
func (r *Recorder) RecordScanned(pattern string, n int) {
	r.keysScanned.WithLabelValues(pattern).Add(float64(n))
}

// RecordDecision records one classification outcome
func (r *Recorder) RecordDecision(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

// RecordDeleted records a committed deletion
func (r *Recorder) RecordDeleted() {
	r.keysDeleted.Inc()
}

// RecordSeeded records a key written by seed
func (r *Recorder) RecordSeeded(withExpiry bool) {
	r.keysSeeded.WithLabelValues(strconv.FormatBool(withExpiry)).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Push sends the collected series to a Prometheus Pushgateway, replacing
// any previous push for the same job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
