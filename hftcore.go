// Package hftcore is the order-routing and execution core's library
// surface: it wires the venue, book, latency, and scheduler simulators
// together behind the parent-order submission API (submit_twap,
// submit_vwap, submit_iceberg, submit_smart, cancel, status) so the core
// is usable directly by a test binary or an embedding process, with
// cmd/executiond as a thin HTTP adapter in front of the same Engine.
package hftcore

import (
	"math/rand"
	"sync"
	"time"

	"hftcore/internal/book"
	"hftcore/internal/config"
	"hftcore/internal/core"
	"hftcore/internal/latency"
	"hftcore/internal/replay"
	"hftcore/internal/scheduler"
	"hftcore/internal/slicer"
	"hftcore/internal/venue"
)

// Engine owns one instance of every simulator the scheduler is the
// exclusive writer of, plus the venue table and replay buffer. It is the
// single entry point SPEC_FULL.md promises: everything the HTTP wire
// adapter in cmd/executiond does, a test binary can do directly against
// an Engine.
type Engine struct {
	Scheduler *scheduler.Scheduler
	Venues    *venue.Table
	Books     *book.Simulator
	Replay    *replay.Buffer
	cfg       config.Config
	clock     core.Clock

	mu          sync.Mutex
	lastArrival map[string]float64
}

// New builds an Engine from cfg, seeding every simulator from seed so a
// test binary gets reproducible fills and latencies. clock lets tests
// inject a ManualClock; pass core.SystemClock{} for real time.
func New(cfg config.Config, clock core.Clock, seed int64) *Engine {
	venues := venue.NewDefaultTable()
	books := book.NewSimulator(seed, 400)
	lat := latency.NewSimulator(seed, 0.0005)
	for _, id := range venues.IDs() {
		low, high := 100.0, 500.0
		if r, ok := cfg.VenueLatency[id]; ok {
			low, high = r.LowUs, r.HighUs
		}
		lat.AddRoute(latency.Route{Src: "TRADING", Dst: id, BaseLatencyUs: (low + high) / 2})
	}
	books.SetClock(clock.Now)

	sched := scheduler.New(books, lat, venues, clock, core.NewIDGenerator())
	sched.LatencyCeiling = cfg.LatencyCeiling

	replayBuf := replay.New(replay.Config{
		Capacity:      cfg.Replay.Capacity,
		Alpha:         cfg.Replay.Alpha,
		Beta:          cfg.Replay.Beta,
		BetaIncrement: cfg.Replay.BetaIncrement,
	}, seed)

	sched.OnExperience = func(exp core.Experience) { replayBuf.Add(exp) }

	return &Engine{
		Scheduler:   sched,
		Venues:      venues,
		Books:       books,
		Replay:      replayBuf,
		cfg:         cfg,
		clock:       clock,
		lastArrival: make(map[string]float64),
	}
}

// OnTick keeps every venue's book for tick.Symbol warm at the new mid and
// records the last-seen price as the next parent order's arrival price.
func (e *Engine) OnTick(tick core.Tick) {
	for _, id := range e.Venues.IDs() {
		e.Books.EnsureBook(tick.Symbol, id, tick.Mid())
	}
	e.mu.Lock()
	e.lastArrival[tick.Symbol] = tick.Mid()
	e.mu.Unlock()
}

// DispatchNext pops and executes the single next-scheduled slice; see
// scheduler.Scheduler.DispatchNext.
func (e *Engine) DispatchNext(sleepUntil func(time.Time)) bool {
	return e.Scheduler.DispatchNext(sleepUntil)
}

// RunDispatchLoop drains the heap until stop is closed, sleeping between
// dispatches when nothing is pending. Callers embedding the Engine in a
// long-running process run this in its own goroutine, same as
// cmd/executiond's dispatch loop.
func (e *Engine) RunDispatchLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if e.Scheduler.Pending() == 0 {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		e.Scheduler.DispatchNext(func(at time.Time) {
			if d := time.Until(at); d > 0 {
				time.Sleep(d)
			}
		})
	}
}

func (e *Engine) newParent(symbol string, side core.Side, qty float64, strategy core.Strategy, now time.Time) *core.ParentOrder {
	e.mu.Lock()
	arrival := e.lastArrival[symbol]
	e.mu.Unlock()
	return &core.ParentOrder{
		Symbol:        symbol,
		Side:          side,
		TotalQuantity: qty,
		Strategy:      strategy,
		ArrivalPrice:  arrival,
		CreatedAt:     now,
	}
}

func rngFor(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// SubmitTWAP cuts and submits a TWAP parent order (spec.md §6's
// submit_twap). rngSeed makes slice timing/size randomization
// reproducible; callers without a reproducibility need can pass
// time.Now().UnixNano().
func (e *Engine) SubmitTWAP(symbol string, side core.Side, qty, durationMin, intervalSec float64, randomizeTiming, randomizeSize bool, rngSeed int64) (*core.ParentOrder, error) {
	now := e.clock.Now()
	parent := e.newParent(symbol, side, qty, core.StrategyTWAP, now)
	slices := slicer.TWAP(parent, slicer.TWAPParams{
		Duration:        time.Duration(durationMin * float64(time.Minute)),
		Interval:        time.Duration(intervalSec * float64(time.Second)),
		RandomizeTiming: randomizeTiming,
		RandomizeSize:   randomizeSize,
	}, e.Venues, now, rngFor(rngSeed))
	return parent, e.Scheduler.Submit(parent, slices)
}

// SubmitVWAP cuts and submits a VWAP parent order (submit_vwap).
func (e *Engine) SubmitVWAP(symbol string, side core.Side, qty, durationMin, participationRate float64, rngSeed int64) (*core.ParentOrder, error) {
	now := e.clock.Now()
	parent := e.newParent(symbol, side, qty, core.StrategyVWAP, now)
	slices := slicer.VWAP(parent, slicer.VWAPParams{
		Duration:          time.Duration(durationMin * float64(time.Minute)),
		ParticipationRate: participationRate,
	}, e.Venues, now, rngFor(rngSeed))
	return parent, e.Scheduler.Submit(parent, slices)
}

// SubmitIceberg cuts and submits an iceberg parent order (submit_iceberg).
func (e *Engine) SubmitIceberg(symbol string, side core.Side, qty, displaySize, refreshThreshold float64, rngSeed int64) (*core.ParentOrder, error) {
	now := e.clock.Now()
	parent := e.newParent(symbol, side, qty, core.StrategyIceberg, now)
	slices := slicer.Iceberg(parent, slicer.IcebergParams{
		DisplaySize:      displaySize,
		RefreshThreshold: refreshThreshold,
	}, e.Venues, now, rngFor(rngSeed))
	return parent, e.Scheduler.Submit(parent, slices)
}

// SubmitSmart cuts and submits a smart-routed parent order (submit_smart).
func (e *Engine) SubmitSmart(symbol string, side core.Side, qty float64, maxVenues int, costSensitivity float64, rngSeed int64) (*core.ParentOrder, error) {
	now := e.clock.Now()
	parent := e.newParent(symbol, side, qty, core.StrategySmart, now)
	slices := slicer.SmartRouting(parent, slicer.SmartParams{
		MaxVenues:          maxVenues,
		CostSensitivity:    costSensitivity,
		MinVenueAllocation: 0.10,
	}, e.Venues, now, rngFor(rngSeed))
	return parent, e.Scheduler.Submit(parent, slices)
}

// Cancel drops parentID's not-yet-dispatched slices (cancel).
func (e *Engine) Cancel(parentID uint64) error {
	return e.Scheduler.Cancel(parentID)
}

// Status is the status(parent_id) return shape from spec.md §6.
type Status struct {
	ParentID                uint64
	Status                  core.ParentStatus
	Filled                  float64
	Remaining               float64
	AvgPrice                float64
	ImplementationShortfall float64
}

// Status reports a parent's observable metrics (status).
func (e *Engine) Status(parentID uint64) (Status, bool) {
	parent, ok := e.Scheduler.Status(parentID)
	if !ok {
		return Status{}, false
	}
	return Status{
		ParentID:                parent.ID,
		Status:                  parent.Status,
		Filled:                  parent.FilledQuantity(),
		Remaining:               parent.RemainingQuantity(),
		AvgPrice:                parent.AvgExecPrice(),
		ImplementationShortfall: parent.ImplementationShortfallBps(),
	}, true
}
