// Package routing wraps the opaque external policy and the replay buffer
// it feeds: it assembles state vectors, submits the policy's action as a
// venue choice (or hold/cancel sentinel), and records the resulting
// Experience with routing metadata once the scheduler reports an outcome.
package routing

import (
	"time"

	"hftcore/internal/core"
	"hftcore/internal/latency"
	"hftcore/internal/replay"
	"hftcore/internal/venue"
)

// Policy is the external, opaque decision function: decide(state) ->
// (action, confidence). Actions 0..V-1 select a venue by table order;
// action V means hold, V+1 means cancel-parent.
type Policy func(state []float32) (action uint8, confidence float32)

const (
	// sentinel offsets relative to the venue count, per spec.md §6.
	actionHoldOffset   = 0
	actionCancelOffset = 1
)

// Glue wires a Policy to the venue table and replay buffer.
type Glue struct {
	policy Policy
	venues *venue.Table
	buf    *replay.Buffer
}

// New builds routing glue over an already-constructed policy function.
func New(policy Policy, venues *venue.Table, buf *replay.Buffer) *Glue {
	return &Glue{policy: policy, venues: venues, buf: buf}
}

// Decision is one policy invocation's resolved outcome.
type Decision struct {
	Action     uint8
	Confidence float32
	Hold       bool
	Cancel     bool
	VenueID    string // empty when Hold or Cancel
}

// Decide calls the policy on the given state vector and resolves its action
// against the venue table's stable id order.
func (g *Glue) Decide(state []float32) Decision {
	ids := g.venues.IDs()
	action, confidence := g.policy(state)
	v := int(action)

	holdAction := len(ids) + actionHoldOffset
	cancelAction := len(ids) + actionCancelOffset

	switch {
	case v == holdAction:
		return Decision{Action: action, Confidence: confidence, Hold: true}
	case v == cancelAction:
		return Decision{Action: action, Confidence: confidence, Cancel: true}
	case v >= 0 && v < len(ids):
		return Decision{Action: action, Confidence: confidence, VenueID: ids[v]}
	default:
		// Out-of-range action degrades to hold rather than a crash: this is
		// a malformed policy output, not a core invariant violation.
		return Decision{Action: action, Confidence: confidence, Hold: true}
	}
}

// BuildState assembles the state vector the policy consumes: the live
// tick's normalized top-of-book features, a per-venue latency snapshot,
// and caller-supplied microstructure features (computed externally, per
// the core's declared feature-vector interface).
func BuildState(tick core.Tick, lat *latency.Simulator, venues *venue.Table, microFeatures []float32) []float32 {
	mid := tick.Mid()
	spread := 0.0
	if mid > 0 {
		spread = (float64(tick.Ask) - float64(tick.Bid)) / mid
	}
	state := make([]float32, 0, 4+len(venues.IDs())+len(microFeatures))
	state = append(state,
		float32(spread),
		float32(tick.BidSize),
		float32(tick.AskSize),
		float32(tick.Volume),
	)
	now := time.Unix(0, int64(tick.TimestampNs)).UTC()
	for _, id := range venues.IDs() {
		pred := lat.Predict("TRADING", id, now, latency.MarketConditions{})
		state = append(state, float32(pred.PredictedUs))
	}
	state = append(state, microFeatures...)
	return state
}

// RecordOutcome is called after the scheduler executes the slice the
// policy selected: it derives opportunity cost and pushes the full
// Experience into the replay buffer.
func (g *Glue) RecordOutcome(state []float32, decision Decision, nextState []float32, result core.ExecutionResult, pred latency.Prediction, bestVenueLatencyUs float64, reward float64, done bool) {
	opportunityCost := 0.0
	if pred.PredictedUs > bestVenueLatencyUs {
		opportunityCost = (pred.PredictedUs - bestVenueLatencyUs) / 1000
	}
	exp := core.Experience{
		State:             state,
		Action:            int(decision.Action),
		Reward:            reward,
		NextState:         nextState,
		Done:              done,
		Venue:             decision.VenueID,
		ExpectedLatencyUs: pred.PredictedUs,
		ActualLatencyUs:   result.LatencyUs,
		FillSuccess:       result.Success,
		MarketImpactBps:   result.TemporaryImpactBps,
		OpportunityCost:   opportunityCost,
	}
	g.buf.Add(exp)
}

// BestVenueLatencyUs scans every venue's current prediction and returns
// the minimum, for opportunity-cost derivation.
func BestVenueLatencyUs(lat *latency.Simulator, venues *venue.Table, now core.Clock) float64 {
	best := -1.0
	for _, id := range venues.IDs() {
		pred := lat.Predict("TRADING", id, now.Now(), latency.MarketConditions{})
		if best < 0 || pred.PredictedUs < best {
			best = pred.PredictedUs
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
