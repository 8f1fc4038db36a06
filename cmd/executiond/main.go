// Command executiond is the order-routing and execution core's own
// process: it exposes the submit_twap/submit_vwap/submit_iceberg/
// submit_smart/cancel/status API over HTTP, consumes the tick stream from
// NATS to keep its order books live, and drives the scheduler loop that
// dispatches slices, prices fills, and feeds the prioritized replay buffer.
// All of this runs on the hftcore.Engine library surface; this binary is
// just the NATS/HTTP wire adapter in front of it.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hftcore"
	"hftcore/internal/config"
	"hftcore/internal/core"
	"hftcore/internal/replay"
	"hftcore/internal/telemetry"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := config.FromEnv(config.Default())

	natsURL := envOr("HFTCORE_NATS_URL", "nats://localhost:4222")
	tickSubject := envOr("HFTCORE_TICK_SUBJECT", "hftcore.ticks")
	httpAddr := envOr("HFTCORE_EXECUTIOND_ADDR", ":8090")

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatalf("executiond: failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	telem := telemetry.New()
	engine := hftcore.New(cfg, core.SystemClock{}, time.Now().UnixNano())
	limiter := replay.NewRateLimitedWriter(engine.Replay, 2000, 200)

	riskSubject := envOr("HFTCORE_RISK_SIGNAL_SUBJECT", "hftcore.risk.signal")
	engine.Scheduler.OnExperience = func(exp core.Experience) {
		telem.VenueSelections.WithLabelValues(exp.Venue).Inc()
		telem.VenueLatencyUs.WithLabelValues(exp.Venue).Observe(exp.ActualLatencyUs)
		telem.SchedulerDispatches.Inc()
		if exp.Degraded {
			telem.SchedulerDegraded.Inc()
		}
		if !exp.FillSuccess {
			telem.PacketLoss.Inc()
		}
		if !limiter.Add(exp) {
			telem.ReplayDropped.Inc()
		}
		publishRiskSignal(nc, riskSubject, exp)
	}

	svc := &service{engine: engine, telem: telem}

	// Keep books warm for every symbol we see on the tick stream.
	sub, err := nc.Subscribe(tickSubject+".*", func(msg *nats.Msg) {
		var tick core.Tick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			log.Printf("executiond: invalid tick payload: %v", err)
			return
		}
		engine.OnTick(tick)
	})
	if err != nil {
		log.Fatalf("executiond: subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("executiond: received shutdown signal")
		cancel()
	}()

	stop := make(chan struct{})
	go engine.RunDispatchLoop(stop)
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/submit/twap", svc.handleSubmitTWAP)
	mux.HandleFunc("/submit/vwap", svc.handleSubmitVWAP)
	mux.HandleFunc("/submit/iceberg", svc.handleSubmitIceberg)
	mux.HandleFunc("/submit/smart", svc.handleSubmitSmart)
	mux.HandleFunc("/cancel", svc.handleCancel)
	mux.HandleFunc("/status", svc.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.HandlerFor(telem.Reg, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("executiond listening on %s", httpAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("executiond: http server error: %v", err)
	}
	log.Println("executiond stopped")
}

type service struct {
	engine *hftcore.Engine
	telem  *telemetry.Registry
}
