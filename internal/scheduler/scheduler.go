// Package scheduler drives scheduled slices in time order: it owns a
// min-heap of pending slices across every live parent, requests a latency
// budget for each dispatch, submits the slice to the book simulator,
// updates parent state, and emits an Experience per outcome. Per spec,
// this task is the exclusive owner of the book and latency simulators —
// everything here runs single-threaded from the caller's perspective.
package scheduler

import (
	"container/heap"
	"math"
	"time"

	"hftcore/internal/book"
	"hftcore/internal/core"
	"hftcore/internal/latency"
	"hftcore/internal/venue"
)

// heapItem is one pending dispatch, ordered by scheduled_ts with ties
// broken by (parent creation ts, slice index).
type heapItem struct {
	slice           core.OrderSlice
	parentCreatedAt time.Time
	index           int // heap internal bookkeeping
}

type sliceHeap []*heapItem

func (h sliceHeap) Len() int { return len(h) }
func (h sliceHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.slice.ScheduledAt.Equal(b.slice.ScheduledAt) {
		return a.slice.ScheduledAt.Before(b.slice.ScheduledAt)
	}
	if !a.parentCreatedAt.Equal(b.parentCreatedAt) {
		return a.parentCreatedAt.Before(b.parentCreatedAt)
	}
	return a.slice.SliceIndex < b.slice.SliceIndex
}
func (h sliceHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *sliceHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *sliceHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// defaultLatencyCeiling is the ceiling (spec §5) above which a dispatched
// slice is flagged as degraded in its experience metadata.
const defaultLatencyCeiling = 10 * time.Millisecond

// MarketConditionsFn supplies the current market-condition snapshot for
// latency prediction; the scheduler calls it once per dispatch.
type MarketConditionsFn func() latency.MarketConditions

// Scheduler drives parent orders to completion. Not safe for concurrent
// use from multiple goroutines: it is the single-writer owner of the
// heap, the book simulator, and the latency simulator's read path.
type Scheduler struct {
	heap    sliceHeap
	parents map[uint64]*core.ParentOrder
	ids     *core.IDGenerator
	clock   core.Clock

	books   *book.Simulator
	lat     *latency.Simulator
	venues  *venue.Table

	LatencyCeiling time.Duration
	MarketSnapshot MarketConditionsFn

	// OnExperience, if set, receives one Experience per dispatched slice.
	OnExperience func(core.Experience)
}

// New builds a scheduler. clock and ids are injected for deterministic
// tests; books/lat/venues are the simulators this task owns exclusively.
func New(books *book.Simulator, lat *latency.Simulator, venues *venue.Table, clock core.Clock, ids *core.IDGenerator) *Scheduler {
	s := &Scheduler{
		parents:        make(map[uint64]*core.ParentOrder),
		ids:            ids,
		clock:          clock,
		books:          books,
		lat:            lat,
		venues:         venues,
		LatencyCeiling: defaultLatencyCeiling,
		MarketSnapshot: func() latency.MarketConditions { return latency.MarketConditions{} },
	}
	heap.Init(&s.heap)
	return s
}

// Submit validates and registers a parent order along with its already-cut
// slices (produced by a slicer). Invalid parents are rejected in place and
// never enter the heap.
func (s *Scheduler) Submit(parent *core.ParentOrder, slices []core.OrderSlice) error {
	if err := validateParent(parent, slices, s.venues); err != nil {
		parent.Status = core.StatusRejected
		parent.RejectReason = err.Error()
		return err
	}
	parent.Status = core.StatusPending
	if parent.ID == 0 {
		parent.ID = s.ids.Next()
	}
	for i := range slices {
		slices[i].ID = s.ids.Next()
		slices[i].ParentID = parent.ID
	}
	parent.Slices = slices
	s.parents[parent.ID] = parent

	for i := range parent.Slices {
		heap.Push(&s.heap, &heapItem{slice: parent.Slices[i], parentCreatedAt: parent.CreatedAt})
	}
	return nil
}

func validateParent(parent *core.ParentOrder, slices []core.OrderSlice, venues *venue.Table) error {
	if parent.TotalQuantity <= 0 {
		return core.ErrInvalidQuantity
	}
	if parent.Symbol == "" {
		return core.ErrUnknownSymbol
	}
	if len(slices) == 0 {
		return core.ErrInconsistentParams
	}
	for _, sl := range slices {
		if sl.Quantity < 0 {
			return core.ErrInvalidQuantity
		}
		if _, ok := venues.Get(sl.Venue); !ok {
			return core.ErrUnknownVenue
		}
	}
	return nil
}

// Cancel removes all not-yet-dispatched slices for parentID from the heap
// in O(k) and marks the parent CANCELLED if it isn't already terminal.
func (s *Scheduler) Cancel(parentID uint64) error {
	parent, ok := s.parents[parentID]
	if !ok {
		return core.ErrUnknownParent
	}
	if parent.Status.Terminal() {
		return core.ErrParentTerminal
	}

	kept := s.heap[:0]
	for _, item := range s.heap {
		if item.slice.ParentID == parentID {
			continue
		}
		kept = append(kept, item)
	}
	s.heap = kept
	heap.Init(&s.heap)

	parent.Status = core.StatusCancelled
	return nil
}

// Status returns a snapshot of a parent's observable metrics.
func (s *Scheduler) Status(parentID uint64) (*core.ParentOrder, bool) {
	p, ok := s.parents[parentID]
	return p, ok
}

// Pending reports how many slices remain in the heap.
func (s *Scheduler) Pending() int { return len(s.heap) }

// DispatchNext pops and executes the single next-scheduled slice. It
// returns false when the heap is empty. sleepUntil, when non-nil, is
// called to block/yield until the slice's scheduled time (tests pass nil
// or a manual-clock-driven no-op to run instantaneously).
func (s *Scheduler) DispatchNext(sleepUntil func(time.Time)) bool {
	if len(s.heap) == 0 {
		return false
	}
	item := heap.Pop(&s.heap).(*heapItem)
	slice := item.slice

	if sleepUntil != nil {
		sleepUntil(slice.ScheduledAt)
	}

	parent, ok := s.parents[slice.ParentID]
	if !ok {
		return true
	}
	if parent.Status.Terminal() {
		return true
	}
	if parent.Status == core.StatusPending {
		parent.Status = core.StatusActive
	}

	v, ok := s.venues.Get(slice.Venue)
	if !ok {
		return true
	}

	mc := s.MarketSnapshot()
	now := s.clock.Now()
	pred := s.lat.Predict("TRADING", slice.Venue, now, mc)

	degraded := pred.PredictedUs > float64(s.LatencyCeiling.Microseconds())

	var result core.ExecutionResult
	if pred.PacketLoss {
		result = core.ExecutionResult{
			SliceID: slice.ID, ParentID: parent.ID, Venue: slice.Venue,
			ExecutedAt: now, Success: false, Error: core.ErrKindPacketLoss,
			PredictedLatencyUs: pred.PredictedUs,
		}
	} else {
		maker := slice.OrderType == core.OrderTypeLimit && slice.Urgency < 0.5
		result = s.books.SimulateFill(slice.Symbol, slice.Venue, slice.Side, slice.Quantity, slice.OrderType, v, maker, func() []*core.OrderBook {
			return s.books.BooksForSymbol(slice.Symbol)
		})
		result.SliceID = slice.ID
		result.ParentID = parent.ID
		result.PredictedLatencyUs = pred.PredictedUs
		result.LatencyUs = pred.PredictedUs // latency budget "spent" equals the sampled prediction
	}

	parent.Executions = append(parent.Executions, result)
	s.advanceParentStatus(parent)

	if s.OnExperience != nil {
		s.OnExperience(buildExperience(parent, slice, result, pred, degraded, s.clock.NowNs()))
	}
	return true
}

func (s *Scheduler) advanceParentStatus(parent *core.ParentOrder) {
	if parent.Status.Terminal() {
		return
	}
	filled := parent.FilledQuantity()
	switch {
	case filled >= parent.TotalQuantity:
		parent.Status = core.StatusFilled
	case filled > 0:
		parent.Status = core.StatusPartiallyFilled
	}
}

// rewardFor computes the scheduler's per-slice RL reward per spec §4.5.
func rewardFor(result core.ExecutionResult, pred latency.Prediction) float64 {
	reward := -5.0
	if result.Success {
		reward = 10.0
	}

	latencyUs := pred.PredictedUs
	switch {
	case latencyUs < 500:
		reward += 5
	case latencyUs < 1000:
		reward += 2
	case latencyUs < 2000:
		reward += 0.5
	default:
		reward -= 2
	}

	pnlBps := -result.SlippageBps
	reward += 0.1 * pnlBps

	accuracyBonus := 2 - math.Abs(result.LatencyUs-pred.PredictedUs)/500
	if accuracyBonus > 0 {
		reward += accuracyBonus
	}

	reward -= 10 * result.TemporaryImpactBps
	return reward
}

func buildExperience(parent *core.ParentOrder, slice core.OrderSlice, result core.ExecutionResult, pred latency.Prediction, degraded bool, tsNs uint64) core.Experience {
	opportunityCost := math.Max(0, pred.PredictedUs-bestVenueLatencyUs(pred))/1000
	exp := core.Experience{
		Reward:            rewardFor(result, pred),
		Done:              parent.Status.Terminal(),
		TimestampNs:       tsNs,
		Venue:             slice.Venue,
		ExpectedLatencyUs: pred.PredictedUs,
		ActualLatencyUs:   result.LatencyUs,
		FillSuccess:       result.Success,
		MarketImpactBps:   result.TemporaryImpactBps,
		OpportunityCost:   opportunityCost,
		Degraded:          degraded,
	}
	return exp
}

// bestVenueLatencyUs is a placeholder for the best-known venue latency at
// decision time; routing glue overrides this via a fuller state vector.
// Scheduler-local experiences use the predicted latency itself, which
// makes opportunity_cost 0 unless routing glue recomputes it.
func bestVenueLatencyUs(pred latency.Prediction) float64 {
	return pred.PredictedUs
}
