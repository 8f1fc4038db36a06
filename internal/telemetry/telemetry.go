// Package telemetry is a Prometheus collector bundle with named core
// metrics. cmd/executiond builds one with New; the other service binaries
// register their own metrics on the default Prometheus registry.
package telemetry

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metrics registered against its own
// *prometheus.Registry (never the global default, so tests can spin up
// independent instances).
type Registry struct {
	Reg *prometheus.Registry

	ReplayAddLatencyUs    prometheus.Histogram
	ReplaySampleLatencyUs prometheus.Histogram
	ReplayTotalAdds       prometheus.Counter
	ReplayTotalSamples    prometheus.Counter
	ReplayDropped         prometheus.Counter

	VenueSelections *prometheus.CounterVec
	VenueLatencyUs  *prometheus.HistogramVec

	SchedulerDispatches prometheus.Counter
	SchedulerDegraded   prometheus.Counter
	PacketLoss          prometheus.Counter

	ParentsSubmitted prometheus.Counter
	ParentsRejected  prometheus.Counter
	ParentsFilled    prometheus.Counter
	ParentsCancelled prometheus.Counter
}

// New registers every metric against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		Reg: reg,
		ReplayAddLatencyUs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hftcore_replay_add_latency_us",
			Help:    "Replay buffer Add() call latency in microseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		ReplaySampleLatencyUs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hftcore_replay_sample_latency_us",
			Help:    "Replay buffer Sample() call latency in microseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		ReplayTotalAdds:    prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_replay_adds_total", Help: "Total experiences inserted."}),
		ReplayTotalSamples: prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_replay_samples_total", Help: "Total Sample() calls."}),
		ReplayDropped:      prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_replay_dropped_total", Help: "Experiences dropped by back-pressure."}),

		VenueSelections: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "hftcore_venue_selections_total", Help: "Slice dispatches per venue."}, []string{"venue"}),
		VenueLatencyUs:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "hftcore_venue_latency_us", Help: "Observed per-venue dispatch latency.", Buckets: prometheus.ExponentialBuckets(50, 2, 12)}, []string{"venue"}),

		SchedulerDispatches: prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_scheduler_dispatches_total", Help: "Total slices dispatched."}),
		SchedulerDegraded:   prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_scheduler_degraded_total", Help: "Slices dispatched past the latency ceiling."}),
		PacketLoss:          prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_packet_loss_total", Help: "Dispatches lost to simulated packet loss."}),

		ParentsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_parents_submitted_total", Help: "Parent orders submitted."}),
		ParentsRejected:  prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_parents_rejected_total", Help: "Parent orders rejected at submit."}),
		ParentsFilled:    prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_parents_filled_total", Help: "Parent orders reaching FILLED."}),
		ParentsCancelled: prometheus.NewCounter(prometheus.CounterOpts{Name: "hftcore_parents_cancelled_total", Help: "Parent orders cancelled."}),
	}

	reg.MustRegister(
		r.ReplayAddLatencyUs, r.ReplaySampleLatencyUs, r.ReplayTotalAdds, r.ReplayTotalSamples, r.ReplayDropped,
		r.VenueSelections, r.VenueLatencyUs,
		r.SchedulerDispatches, r.SchedulerDegraded, r.PacketLoss,
		r.ParentsSubmitted, r.ParentsRejected, r.ParentsFilled, r.ParentsCancelled,
	)
	return r
}

// RollingLatency is a small fixed-window latency tracker giving exact
// p50/p95/p99 values over a bounded recent window (the Prometheus
// histograms only approximate quantiles via buckets). No service in this
// module constructs one.
type RollingLatency struct {
	mu     sync.Mutex
	window []float64
	cap    int
	pos    int
	filled bool
}

// NewRollingLatency keeps the most recent windowSize observations.
func NewRollingLatency(windowSize int) *RollingLatency {
	return &RollingLatency{window: make([]float64, windowSize), cap: windowSize}
}

// Observe records one latency sample (microseconds).
func (r *RollingLatency) Observe(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window[r.pos] = v
	r.pos = (r.pos + 1) % r.cap
	if r.pos == 0 {
		r.filled = true
	}
}

// Quantiles returns p50, p95, p99 over the current window.
func (r *RollingLatency) Quantiles() (p50, p95, p99 float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.pos
	if r.filled {
		n = r.cap
	}
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, r.window[:n])
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
