// Package latency simulates network/venue latency: per-route base latency,
// time-of-day/volatility/congestion multipliers, jitter, packet loss, and a
// bounded congestion-event FIFO mutated through Tick. No code in this
// module calls Tick on a timer; a caller that wants stochastic congestion
// runs that loop itself.
package latency

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MarketConditions are the externally supplied volatility/volume inputs
// that scale the latency model's M_market term. Zero value defaults to 1.0.
type MarketConditions struct {
	Volatility float64
	Volume     float64
}

func (m MarketConditions) marketMultiplier() float64 {
	if m.Volume <= 0 {
		return 1.0
	}
	return (1 + 2*m.Volatility) * (1 + 0.1*math.Log(m.Volume))
}

// Route is a directed src->dst network path with a base latency.
type Route struct {
	Src, Dst    string
	BaseLatencyUs float64
	Capacity    float64
	Utilization float64
}

func (r Route) key() string { return r.Src + "->" + r.Dst }

// CongestionEvent affects one or more routes for a bounded wall-clock window.
type CongestionEvent struct {
	ID        uint64
	Routes    map[string]bool
	Severity  float64
	Start     time.Time
	Duration  time.Duration
	Cause     string
}

func (e CongestionEvent) active(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.Start.Add(e.Duration))
}

// Prediction is the measurement the latency simulator hands back for one
// dispatch: predicted latency, its confidence interval, and the factors
// that contributed to it.
type Prediction struct {
	PredictedUs         float64
	ConfidenceIntervalUs float64
	ContributingFactors map[string]float64
	RouteQuality        float64
	PacketLoss          bool
}

const congestionFIFOCapacity = 100

// Simulator is single-writer-owned by the scheduler for prediction/sampling,
// and single-writer-owned by whichever caller drives Tick for event
// mutation; the two sides synchronize through a short mutex held only
// around the FIFO, per spec.md §5.
type Simulator struct {
	rng    *rand.Rand
	routes map[string]*Route

	mu          sync.Mutex
	events      []CongestionEvent
	nextEventID uint64

	// rolling per-route accuracy in [0.5, 0.95], starting at 0.75
	accuracy map[string]float64
	// rolling window of recent congestion observations per route, for the
	// accuracy decay rule
	recentCongestion map[string][]float64

	baseLossRate float64
}

// NewSimulator builds a latency simulator seeded for deterministic tests.
func NewSimulator(seed int64, baseLossRate float64) *Simulator {
	return &Simulator{
		rng:              rand.New(rand.NewSource(seed)),
		routes:           make(map[string]*Route),
		accuracy:         make(map[string]float64),
		recentCongestion: make(map[string][]float64),
		baseLossRate:     baseLossRate,
	}
}

// AddRoute registers (or replaces) a route's static base latency/capacity.
func (s *Simulator) AddRoute(r Route) {
	s.routes[r.key()] = &r
}

// TimeOfDayMultiplier returns (latencyMult, spreadMult) per spec.md §4.3.
func TimeOfDayMultiplier(now time.Time) (latencyMult, spreadMult float64) {
	h := now.Hour()
	m := now.Minute()
	minutesSinceMidnight := h*60 + m
	switch {
	case minutesSinceMidnight >= 9*60+30 && minutesSinceMidnight < 11*60+30: // open burst, first 2h
		return 1.2, 1.5
	case minutesSinceMidnight >= 12*60 && minutesSinceMidnight < 13*60: // midday lull
		return 0.8, 0.8
	case minutesSinceMidnight >= 15*60+30 && minutesSinceMidnight < 16*60: // last 30 min
		return 2.0, 2.0
	default:
		return 1.0, 1.0
	}
}

// burstProbability returns the elevated congestion-spawn probability at
// open/close, used by Tick.
func burstProbability(now time.Time) float64 {
	latMult, _ := TimeOfDayMultiplier(now)
	if latMult >= 1.5 {
		return 0.12
	}
	if latMult > 1.0 {
		return 0.08
	}
	return 0.05
}

// congestionMultiplier is the product of severities of every active event
// covering this route right now.
func (s *Simulator) congestionMultiplier(routeKey string, now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	mult := 1.0
	active := 0.0
	for _, ev := range s.events {
		if ev.Routes[routeKey] && ev.active(now) {
			mult *= ev.Severity
			active++
		}
	}
	hist := s.recentCongestion[routeKey]
	hist = append(hist, active)
	if len(hist) > 10 {
		hist = hist[len(hist)-10:]
	}
	s.recentCongestion[routeKey] = hist
	return mult
}

func (s *Simulator) activeCongestionCount(routeKey string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Routes[routeKey] && ev.active(now) {
			n++
		}
	}
	return n
}

func (s *Simulator) routeAccuracy(routeKey string) float64 {
	if a, ok := s.accuracy[routeKey]; ok {
		return a
	}
	return 0.75
}

func (s *Simulator) updateAccuracy(routeKey string) {
	hist := s.recentCongestion[routeKey]
	if len(hist) == 0 {
		return
	}
	sum := 0.0
	for _, v := range hist {
		sum += v
	}
	meanCongestion := sum / float64(len(hist))
	acc := 0.75 - 0.05*meanCongestion
	if acc < 0.5 {
		acc = 0.5
	}
	if acc > 0.95 {
		acc = 0.95
	}
	s.accuracy[routeKey] = acc
}

// Predict computes a latency prediction for a message over src->dst at now,
// under the supplied market conditions. It never returns an error: an
// unknown route falls back to a 1ms base latency.
func (s *Simulator) Predict(src, dst string, now time.Time, mc MarketConditions) Prediction {
	key := src + "->" + dst
	route, ok := s.routes[key]
	base := 1000.0
	if ok {
		base = route.BaseLatencyUs
	}

	tod, _ := TimeOfDayMultiplier(now)
	congestion := s.congestionMultiplier(key, now)
	market := mc.marketMultiplier()
	jitter := math.Exp(s.rng.NormFloat64() * 0.1) // lognormal(0, 0.1)

	predicted := base * tod * congestion * market * jitter

	s.updateAccuracy(key)
	confidence := s.routeAccuracy(key)
	ci := predicted * 0.15 / confidence

	activeCount := s.activeCongestionCount(key, now)
	routeQuality := 0.8 / math.Max(1.0, float64(activeCount)+congestion-1) * confidence

	lossRate := s.packetLossRate(src, dst, now, mc, activeCount)
	lost := s.rng.Float64() < lossRate

	return Prediction{
		PredictedUs:          predicted,
		ConfidenceIntervalUs: ci,
		RouteQuality:         routeQuality,
		PacketLoss:           lost,
		ContributingFactors: map[string]float64{
			"time_of_day_effect":  tod - 1.0,
			"congestion_effect":   congestion - 1.0,
			"market_effect":       market - 1.0,
			"jitter_effect":       jitter - 1.0,
		},
	}
}

func (s *Simulator) packetLossRate(src, dst string, now time.Time, mc MarketConditions, activeCongestion int) float64 {
	tod, _ := TimeOfDayMultiplier(now)
	conditionMult := 1.0 + mc.Volatility
	rate := s.baseLossRate * tod * conditionMult * (1 + 5*float64(activeCongestion))
	if rate > 1 {
		rate = 1
	}
	return rate
}

// Tick is the congestion FIFO's periodic entry point: on each call it
// expires stale events and, with ~5% base probability (time-of-day
// adjusted), spawns a new one. The Simulator does not schedule Tick
// itself.
func (s *Simulator) Tick(now time.Time) {
	s.mu.Lock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if now.Before(ev.Start.Add(ev.Duration)) {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	s.mu.Unlock()

	if s.rng.Float64() >= burstProbability(now) {
		return
	}
	s.spawnCongestionEvent(now)
}

func (s *Simulator) spawnCongestionEvent(now time.Time) {
	if len(s.routes) == 0 {
		return
	}
	keys := make([]string, 0, len(s.routes))
	for k := range s.routes {
		keys = append(keys, k)
	}
	n := 1 + s.rng.Intn(3)
	if n > len(keys) {
		n = len(keys)
	}
	s.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	affected := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		affected[keys[i]] = true
	}

	ev := CongestionEvent{
		Severity: 1.2 + s.rng.Float64()*1.3, // [1.2, 2.5]
		Start:    now,
		Duration: time.Duration(30+s.rng.Intn(270)) * time.Second, // [30,300]s
		Routes:   affected,
		Cause:    "stochastic_burst",
	}

	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	if len(s.events) > congestionFIFOCapacity {
		s.events = s.events[len(s.events)-congestionFIFOCapacity:]
	}
	s.mu.Unlock()
}

// InjectCongestion is a deterministic test hook that bypasses the stochastic
// spawn path.
func (s *Simulator) InjectCongestion(ev CongestionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
}

// ActiveEvents returns a snapshot of currently active congestion events.
func (s *Simulator) ActiveEvents(now time.Time) []CongestionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CongestionEvent
	for _, ev := range s.events {
		if ev.active(now) {
			out = append(out, ev)
		}
	}
	return out
}
