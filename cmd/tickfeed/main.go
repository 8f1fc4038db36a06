// Command tickfeed is the market-data-provider collaborator named (but not
// specified) by the core: it publishes a stream of core.Tick messages over
// NATS, either synthetically generated or replayed from CSV/Parquet history
// with pause/resume/seek control, matching the tick schema the core
// consumes (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hftcore/internal/core"
)

var spreadAtrGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "hftcore_tickfeed_spread_atr_percent",
		Help: "Simulated spread-to-ATR ratio per symbol.",
	},
	[]string{"symbol"},
)

func init() {
	prometheus.MustRegister(spreadAtrGauge)
}

type feedConfig struct {
	NATSURL      string
	Subject      string
	MetricsAddr  string
	Mode         string // "live" or "replay"
	ReplaySource string
	ReplaySpeed  int
	Symbols      []string
}

func configFromEnv() feedConfig {
	cfg := feedConfig{
		NATSURL:     envOr("HFTCORE_NATS_URL", "nats://localhost:4222"),
		Subject:     envOr("HFTCORE_TICK_SUBJECT", "hftcore.ticks"),
		MetricsAddr: envOr("HFTCORE_TICKFEED_METRICS_ADDR", ":8081"),
		Mode:        envOr("HFTCORE_TICKFEED_MODE", "live"),
		ReplaySource: envOr("HFTCORE_REPLAY_SOURCE", ""),
		ReplaySpeed:  1,
		Symbols:      []string{"AAPL", "GOOGL", "TSLA"},
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := configFromEnv()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Fatal(http.ListenAndServe(cfg.MetricsAddr, nil))
	}()

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("tickfeed: failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Println("tickfeed connected to NATS")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("tickfeed: received shutdown signal")
		cancel()
	}()

	var runErr error
	if cfg.Mode == "replay" && cfg.ReplaySource != "" {
		runErr = runReplay(ctx, nc, cfg)
	} else {
		runErr = runLive(ctx, nc, cfg)
	}
	if runErr != nil {
		log.Fatalf("tickfeed error: %v", runErr)
	}
	log.Println("tickfeed stopped")
}

// runLive generates a synthetic random-walk tick stream, one per symbol
// per second.
func runLive(ctx context.Context, nc *nats.Conn, cfg feedConfig) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	lastPrice := map[string]float64{}
	atr := map[string]float64{}
	for i, s := range cfg.Symbols {
		lastPrice[s] = 100.0 + float64(i)*50
		atr[s] = 1.0
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var symbolID uint32

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, symbol := range cfg.Symbols {
				price := lastPrice[symbol]
				drift := rng.NormFloat64() * price * 0.0005
				price = math.Max(1, price+drift)
				spread := math.Max(price*0.0005, 0.01)
				atr[symbol] = atr[symbol]*0.85 + spread*0.15

				tick := buildTick(symbolID, symbol, "NYSE", price, spread, rng)
				if err := publishTick(nc, cfg.Subject, tick); err != nil {
					log.Printf("tickfeed: publish error: %v", err)
				}
				spreadAtrGauge.WithLabelValues(symbol).Set(spread / math.Max(atr[symbol], 0.01) * 100)
				lastPrice[symbol] = price
			}
			symbolID++
		}
	}
}

func buildTick(symbolID uint32, symbol, venueName string, price, spread float64, rng *rand.Rand) core.Tick {
	bid := price - spread/2
	ask := price + spread/2
	bidSize := uint32(50 + rng.Intn(200))
	askSize := uint32(50 + rng.Intn(200))
	step := spread / 2
	levels := func(base float64, outward int) []core.PriceLevel {
		out := make([]core.PriceLevel, 5)
		for i := 0; i < 5; i++ {
			out[i] = core.PriceLevel{
				Price: base + float64(outward*i)*step,
				Size:  uint32(100 + rng.Intn(400)),
			}
		}
		return out
	}
	return core.Tick{
		TimestampNs: uint64(time.Now().UnixNano()),
		SymbolID:    symbolID,
		Symbol:      symbol,
		Venue:       venueName,
		Bid:         float32(bid),
		Ask:         float32(ask),
		BidSize:     bidSize,
		AskSize:     askSize,
		Last:        float32(price),
		Volume:      uint32(1000 + rng.Intn(5000)),
		SpreadBps:   float32(spread / price * 10_000),
		BidLevels:   levels(bid, -1),
		AskLevels:   levels(ask, 1),
	}
}

func publishTick(nc *nats.Conn, subject string, tick core.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}
	if err := nc.Publish(subject+"."+tick.Symbol, payload); err != nil {
		return fmt.Errorf("publish tick: %w", err)
	}
	return nil
}
