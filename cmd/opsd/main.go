// Command opsd is the operator-facing control surface: it exposes the
// trading mode switch and the core's tunable runtime parameters over
// HTTP, the way the teacher's ops API exposes paper-trading config,
// and republishes accepted changes onto NATS so other services can
// pick them up.
package main

import (
	"context"
	"encoding/json"
	"fmt"
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

// RuntimeConfig is the subset of internal/config.Config an operator may
// adjust through opsd; accepted values are republished on NATS.
// cmd/executiond does not subscribe to that subject, so it keeps the
// values it read at startup.
type RuntimeConfig struct {
	LatencyCeilingUs float64 `json:"latency_ceiling_us"`
	ReplayAlpha      float64 `json:"replay_alpha"`
	ReplayBeta       float64 `json:"replay_beta"`
	FeeRatePerShare  float64 `json:"fee_rate_per_share"`
	RebateRatePerShare float64 `json:"rebate_rate_per_share"`
}

func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		LatencyCeilingUs:   10_000,
		ReplayAlpha:        0.6,
		ReplayBeta:         0.4,
		FeeRatePerShare:    0.0035,
		RebateRatePerShare: 0.0020,
	}
}

func validateRuntimeConfig(cfg RuntimeConfig) error {
	if cfg.LatencyCeilingUs <= 0 {
		return fmt.Errorf("latency_ceiling_us must be positive")
	}
	if cfg.ReplayAlpha < 0 || cfg.ReplayAlpha > 1 {
		return fmt.Errorf("replay_alpha must be between 0 and 1")
	}
	if cfg.ReplayBeta < 0 || cfg.ReplayBeta > 1 {
		return fmt.Errorf("replay_beta must be between 0 and 1")
	}
	if cfg.FeeRatePerShare < 0 || cfg.RebateRatePerShare < 0 {
		return fmt.Errorf("fee and rebate rates must be non-negative")
	}
	return nil
}

// ModeResponse mirrors the mode the core should be operating under.
type ModeResponse struct {
	Mode string `json:"mode"`
}

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

var tradingMode = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "hftcore_trading_mode",
		Help: "Current trading mode (1 for the active mode label, 0 otherwise).",
	},
	[]string{"mode"},
)

func init() {
	prometheus.MustRegister(tradingMode)
}

type apiServer struct {
	server *http.Server
	nc     *nats.Conn

	mu     sync.RWMutex
	mode   string
	config RuntimeConfig

	configSubject string
	modeSubject   string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	natsURL := envOr("HFTCORE_NATS_URL", "nats://localhost:4222")
	httpAddr := envOr("HFTCORE_OPSD_ADDR", ":8082")
	mode := envOr("HFTCORE_APP_MODE", "paper")

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatalf("opsd: failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Println("opsd connected to NATS")

	tradingMode.WithLabelValues(mode).Set(1)

	api := &apiServer{
		nc:            nc,
		mode:          mode,
		config:        defaultRuntimeConfig(),
		configSubject: envOr("HFTCORE_CONFIG_UPDATED_SUBJECT", "hftcore.config.updated"),
		modeSubject:   envOr("HFTCORE_MODE_UPDATED_SUBJECT", "hftcore.mode.updated"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("opsd: received shutdown signal")
		cancel()
		if api.server != nil {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			api.server.Shutdown(shutdownCtx)
		}
	}()

	if err := api.startServer(ctx, httpAddr); err != nil {
		log.Fatalf("opsd: http server error: %v", err)
	}
	log.Println("opsd stopped")
}

func (api *apiServer) startServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/mode", api.modeHandler)
	mux.HandleFunc("/api/config", api.configHandler)

	api.server = &http.Server{Addr: addr, Handler: mux}
	log.Printf("opsd listening on %s", addr)

	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("opsd: http server error: %v", err)
		}
	}()

	<-ctx.Done()
	return api.server.Shutdown(context.Background())
}

func (api *apiServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (api *apiServer) modeHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, ModeResponse{Mode: api.mode})
	case http.MethodPost:
		var req ModeResponse
		if !decodeJSON(w, r, &req) {
			return
		}
		switch req.Mode {
		case "live", "paper", "replay":
		default:
			http.Error(w, "invalid mode", http.StatusBadRequest)
			return
		}
		if api.mode == "live" && req.Mode != "live" {
			http.Error(w, "mode change blocked while live trading is active", http.StatusConflict)
			return
		}
		if req.Mode != api.mode {
			tradingMode.Reset()
			api.mode = req.Mode
			tradingMode.WithLabelValues(api.mode).Set(1)
			api.publish(api.modeSubject, ModeResponse{Mode: api.mode})
		}
		writeJSON(w, ModeResponse{Mode: api.mode})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *apiServer) configHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, api.config)
	case http.MethodPost:
		var req RuntimeConfig
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := validateRuntimeConfig(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		api.config = req
		api.publish(api.configSubject, api.config)
		writeJSON(w, api.config)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *apiServer) publish(subject string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("opsd: failed to marshal %s: %v", subject, err)
		return
	}
	if err := api.nc.Publish(subject, payload); err != nil {
		log.Printf("opsd: failed to publish %s: %v", subject, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
