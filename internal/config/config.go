// Package config is the typed configuration surface for the core,
// populated from environment variables the way the teacher's services
// read their process config — no file loader, per the core's declared
// scope (external collaborators own config-file parsing).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LatencyRange is a per-venue (low, high) microsecond latency band.
type LatencyRange struct {
	LowUs, HighUs float64
}

// LatencyPenalties are per-strategy µs latency thresholds, retained for
// external collaborators per spec §6. The core does not read them; its
// degraded flag uses LatencyCeiling.
type LatencyPenalties struct {
	GeneralThresholdUs   float64
	ArbitrageThresholdUs float64
	MomentumThresholdUs  float64
}

// ReplayConfig mirrors replay.Config's wire names for env parsing.
type ReplayConfig struct {
	Capacity      int
	Alpha         float64
	Beta          float64
	BetaIncrement float64
}

// Config is the full set of options the core recognizes, per spec.md §6.
type Config struct {
	DefaultQuantity int
	FeeRatePerShare float64
	RebateRatePerShare float64

	VenueLatency map[string]LatencyRange
	// VenueWeights[strategy][venue] = weight; consumed by external routing
	// collaborators, not by the core's slicers directly.
	VenueWeights map[string]map[string]float64
	// WinRates is retained purely as external-collaborator config; the
	// core never reads it (spec.md §9's open-question resolution).
	WinRates map[string]float64

	LatencyPenalties LatencyPenalties
	Replay           ReplayConfig

	LatencyCeiling time.Duration
}

// Default returns the core's baseline configuration before env overrides.
func Default() Config {
	return Config{
		DefaultQuantity:    100,
		FeeRatePerShare:    0.0035,
		RebateRatePerShare: 0.0020,
		VenueLatency:       map[string]LatencyRange{},
		VenueWeights:       map[string]map[string]float64{},
		WinRates:           map[string]float64{},
		LatencyPenalties: LatencyPenalties{
			GeneralThresholdUs:   10_000,
			ArbitrageThresholdUs: 2_000,
			MomentumThresholdUs:  5_000,
		},
		Replay:         ReplayConfig{Capacity: 100_000, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.0001},
		LatencyCeiling: 10 * time.Millisecond,
	}
}

// FromEnv overlays recognized HFTCORE_* environment variables onto base.
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := lookupInt("HFTCORE_DEFAULT_QUANTITY"); ok {
		cfg.DefaultQuantity = v
	}
	if v, ok := lookupFloat("HFTCORE_FEE_RATE"); ok {
		cfg.FeeRatePerShare = v
	}
	if v, ok := lookupFloat("HFTCORE_REBATE_RATE"); ok {
		cfg.RebateRatePerShare = v
	}
	if v, ok := lookupFloat("HFTCORE_LATENCY_CEILING_US"); ok {
		cfg.LatencyCeiling = time.Duration(v) * time.Microsecond
	}
	if v, ok := lookupInt("HFTCORE_REPLAY_CAPACITY"); ok {
		cfg.Replay.Capacity = v
	}
	if v, ok := lookupFloat("HFTCORE_REPLAY_ALPHA"); ok {
		cfg.Replay.Alpha = v
	}
	if v, ok := lookupFloat("HFTCORE_REPLAY_BETA"); ok {
		cfg.Replay.Beta = v
	}
	if v, ok := lookupFloat("HFTCORE_REPLAY_BETA_INCREMENT"); ok {
		cfg.Replay.BetaIncrement = v
	}
	if raw, ok := os.LookupEnv("HFTCORE_VENUE_LATENCY"); ok {
		cfg.VenueLatency = parseVenueLatency(raw)
	}
	return cfg
}

func lookupInt(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lookupFloat(key string) (float64, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseVenueLatency parses "NYSE:100-300,NASDAQ:150-400" into a range map.
func parseVenueLatency(raw string) map[string]LatencyRange {
	out := map[string]LatencyRange{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		bounds := strings.SplitN(parts[1], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		low, errLow := strconv.ParseFloat(bounds[0], 64)
		high, errHigh := strconv.ParseFloat(bounds[1], 64)
		if errLow != nil || errHigh != nil {
			continue
		}
		out[parts[0]] = LatencyRange{LowUs: low, HighUs: high}
	}
	return out
}
