// Command reporterd aggregates per-slice execution outcomes into a
// periodic performance report, published over NATS, in the teacher's
// ticker-driven reporter idiom but computed from the live risk-signal
// stream instead of a hardcoded stub.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type riskSignal struct {
	Venue           string  `json:"venue"`
	FillSuccess     bool    `json:"fill_success"`
	Degraded        bool    `json:"degraded"`
	MarketImpactBps float64 `json:"market_impact_bps"`
	TimestampNs     uint64  `json:"timestamp_ns"`
}

// PerformanceReport summarizes recently observed slice outcomes.
type PerformanceReport struct {
	TotalSlices     int       `json:"total_slices"`
	WinRate         float64   `json:"win_rate"`
	AvgImpactBps    float64   `json:"avg_impact_bps"`
	MaxImpactBps    float64   `json:"max_impact_bps"`
	DegradedRate    float64   `json:"degraded_rate"`
	VenueBreakdown  map[string]int `json:"venue_breakdown"`
	Timestamp       time.Time `json:"timestamp"`
}

var reportsPublished = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "hftcore_reporterd_reports_published_total",
	Help: "Total number of performance reports published.",
})

func init() {
	prometheus.MustRegister(reportsPublished)
}

type tally struct {
	mu             sync.Mutex
	slices         int
	wins           int
	degraded       int
	impactSum      float64
	maxImpact      float64
	venueBreakdown map[string]int
}

func newTally() *tally {
	return &tally{venueBreakdown: make(map[string]int)}
}

func (t *tally) observe(sig riskSignal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slices++
	if sig.FillSuccess {
		t.wins++
	}
	if sig.Degraded {
		t.degraded++
	}
	t.impactSum += sig.MarketImpactBps
	if sig.MarketImpactBps > t.maxImpact {
		t.maxImpact = sig.MarketImpactBps
	}
	t.venueBreakdown[sig.Venue]++
}

// snapshotAndReset builds a report from accumulated state and clears the
// window, so each report covers only the interval since the last one.
func (t *tally) snapshotAndReset() PerformanceReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := PerformanceReport{
		TotalSlices:    t.slices,
		VenueBreakdown: t.venueBreakdown,
		Timestamp:      time.Now(),
	}
	if t.slices > 0 {
		report.WinRate = float64(t.wins) / float64(t.slices)
		report.AvgImpactBps = t.impactSum / float64(t.slices)
		report.DegradedRate = float64(t.degraded) / float64(t.slices)
		report.MaxImpactBps = t.maxImpact
	}

	t.slices, t.wins, t.degraded = 0, 0, 0
	t.impactSum, t.maxImpact = 0, 0
	t.venueBreakdown = make(map[string]int)
	return report
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	natsURL := envOr("HFTCORE_NATS_URL", "nats://localhost:4222")
	signalSubject := envOr("HFTCORE_RISK_SIGNAL_SUBJECT", "hftcore.risk.signal")
	reportSubject := envOr("HFTCORE_REPORT_SUBJECT", "hftcore.reports.performance")
	metricsAddr := envOr("HFTCORE_REPORTERD_METRICS_ADDR", ":8083")
	interval := 1 * time.Minute

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		log.Fatal(http.ListenAndServe(metricsAddr, nil))
	}()

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatalf("reporterd: failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Println("reporterd connected to NATS")

	t := newTally()
	sub, err := nc.Subscribe(signalSubject, func(msg *nats.Msg) {
		var sig riskSignal
		if err := json.Unmarshal(msg.Data, &sig); err != nil {
			log.Printf("reporterd: invalid risk signal: %v", err)
			return
		}
		t.observe(sig)
	})
	if err != nil {
		log.Fatalf("reporterd: subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()
	log.Printf("reporterd subscribed to %s", signalSubject)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("reporterd: received shutdown signal")
		cancel()
	}()

	if err := startReportGenerator(ctx, nc, t, reportSubject, interval); err != nil {
		log.Fatalf("reporterd error: %v", err)
	}
	log.Println("reporterd stopped")
}

func startReportGenerator(ctx context.Context, nc *nats.Conn, t *tally, subject string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report := t.snapshotAndReset()
			if err := publishPerformanceReport(nc, subject, report); err != nil {
				log.Printf("reporterd: error publishing performance report: %v", err)
			}
		}
	}
}

func publishPerformanceReport(nc *nats.Conn, subject string, report PerformanceReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := nc.Publish(subject, payload); err != nil {
		return err
	}
	reportsPublished.Inc()
	log.Printf("reporterd: published report: slices=%d win_rate=%.2f avg_impact_bps=%.2f",
		report.TotalSlices, report.WinRate, report.AvgImpactBps)
	return nil
}
