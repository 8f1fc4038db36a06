// Command riskd aggregates the risk signals executiond publishes per
// dispatch (fill success, degraded-latency flag, market impact) into a
// rolling risk state and trips a circuit breaker when packet loss or
// degraded dispatches cross a threshold, in the teacher's random-walk-
// plus-breaker-counter style adapted to real signals instead of a
// synthetic walk.
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

// RiskState is the periodic snapshot published for downstream consumers.
type RiskState struct {
	CrisisMode         bool      `json:"crisis_mode"`
	ConsecutiveLosses  int       `json:"consecutive_losses"`
	FailureRate        float64   `json:"failure_rate"`
	DegradedRate       float64   `json:"degraded_rate"`
	AvgMarketImpactBps float64   `json:"avg_market_impact_bps"`
	PositionSizeFactor float64   `json:"position_size_factor"`
	Timestamp          time.Time `json:"timestamp"`
}

var circuitBreakers = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "hftcore_risk_circuit_breakers_total",
	Help: "Total number of circuit breaker trips.",
})

func init() {
	prometheus.MustRegister(circuitBreakers)
}

const (
	rollingWindow       = 200
	failureRateTrip     = 0.15
	degradedRateTrip    = 0.25
	recoveryHoldSignals = 50 // signals below threshold before the breaker resets
)

// aggregator is the single-writer rolling tracker driven by the NATS
// subscription callback.
type aggregator struct {
	mu sync.Mutex

	window      []riskSignal
	crisisMode  bool
	consecutive int
	belowTrip   int
}

func (a *aggregator) observe(sig riskSignal) RiskState {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = append(a.window, sig)
	if len(a.window) > rollingWindow {
		a.window = a.window[len(a.window)-rollingWindow:]
	}

	failures, degraded, impactSum := 0, 0, 0.0
	for _, s := range a.window {
		if !s.FillSuccess {
			failures++
		}
		if s.Degraded {
			degraded++
		}
		impactSum += s.MarketImpactBps
	}
	n := float64(len(a.window))
	failureRate := float64(failures) / n
	degradedRate := float64(degraded) / n
	avgImpact := impactSum / n

	tripped := failureRate >= failureRateTrip || degradedRate >= degradedRateTrip
	if tripped {
		a.belowTrip = 0
		if !a.crisisMode {
			a.crisisMode = true
			a.consecutive++
			circuitBreakers.Inc()
		}
	} else if a.crisisMode {
		a.belowTrip++
		if a.belowTrip >= recoveryHoldSignals {
			a.crisisMode = false
			a.belowTrip = 0
		}
	}

	positionFactor := 1.0
	if a.crisisMode {
		positionFactor = 0.3
	} else if failureRate > 0 || degradedRate > 0 {
		positionFactor = 1 - 0.5*(failureRate+degradedRate)
	}

	return RiskState{
		CrisisMode:         a.crisisMode,
		ConsecutiveLosses:  a.consecutive,
		FailureRate:        failureRate,
		DegradedRate:       degradedRate,
		AvgMarketImpactBps: avgImpact,
		PositionSizeFactor: positionFactor,
		Timestamp:          time.Now(),
	}
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
	statePublishSubject := envOr("HFTCORE_RISK_STATE_SUBJECT", "hftcore.risk.state")
	metricsAddr := envOr("HFTCORE_RISKD_METRICS_ADDR", ":8084")

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Fatal(http.ListenAndServe(metricsAddr, nil))
	}()

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatalf("riskd: failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Println("riskd connected to NATS")

	agg := &aggregator{}
	var latest RiskState
	var latestMu sync.Mutex

	sub, err := nc.Subscribe(signalSubject, func(msg *nats.Msg) {
		var sig riskSignal
		if err := json.Unmarshal(msg.Data, &sig); err != nil {
			log.Printf("riskd: invalid risk signal: %v", err)
			return
		}
		state := agg.observe(sig)
		latestMu.Lock()
		latest = state
		latestMu.Unlock()
	})
	if err != nil {
		log.Fatalf("riskd: subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("riskd: received shutdown signal")
		cancel()
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("riskd stopped")
			return
		case <-ticker.C:
			latestMu.Lock()
			state := latest
			latestMu.Unlock()
			payload, err := json.Marshal(state)
			if err != nil {
				continue
			}
			if err := nc.Publish(statePublishSubject, payload); err != nil {
				log.Printf("riskd: publish error: %v", err)
			}
		}
	}
}
