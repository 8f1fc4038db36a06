// Package slicer turns a parent order into a scheduled sequence of child
// slices. Every strategy is a pure function of its inputs plus an injected
// RNG: ParentOrder (+ strategy params) -> []OrderSlice. None of them mutate
// the parent or touch the book/latency simulators.
package slicer

import (
	"math"
	"math/rand"
	"time"

	"hftcore/internal/core"
	"hftcore/internal/venue"
)

// clampRemaining keeps a slice size from overrunning what's left to fill.
func clampRemaining(size, remaining float64) float64 {
	if size > remaining {
		return remaining
	}
	return size
}

// newSlice fills in the fields every slicer shares.
func newSlice(parent *core.ParentOrder, idx int, qty float64, venueID string, ot core.OrderType, scheduledAt time.Time, urgency, hiddenQty float64) core.OrderSlice {
	return core.OrderSlice{
		ParentID:    parent.ID,
		SliceIndex:  idx,
		Symbol:      parent.Symbol,
		Side:        parent.Side,
		Quantity:    qty,
		Venue:       venueID,
		OrderType:   ot,
		ScheduledAt: scheduledAt,
		Urgency:     urgency,
		HiddenQty:   hiddenQty,
	}
}

// TWAPParams are submit_twap's strategy parameters.
type TWAPParams struct {
	Duration        time.Duration
	Interval        time.Duration
	RandomizeTiming bool
	RandomizeSize   bool
}

const (
	twapMaxSlices  = 50
	twapMinSize    = 25.0
	icebergMaxSlices = 20
	smartMaxVenueCount = 10
)

// TWAP decomposes the parent into equal-ish slices spread evenly over
// duration, rotating round-robin among the top-3 venues by liquidity.
func TWAP(parent *core.ParentOrder, p TWAPParams, venues *venue.Table, now time.Time, rng *rand.Rand) []core.OrderSlice {
	if p.Interval <= 0 || p.Duration <= 0 {
		return nil
	}
	n := int(p.Duration / p.Interval)
	if n > twapMaxSlices {
		n = twapMaxSlices
	}
	if n < 1 {
		n = 1
	}
	base := parent.TotalQuantity / float64(n)
	for base < twapMinSize && n > 1 {
		n--
		base = parent.TotalQuantity / float64(n)
	}

	top3 := topNByLiquidity(venues, 3)
	if len(top3) == 0 {
		return nil
	}

	slices := make([]core.OrderSlice, 0, n)
	remaining := parent.TotalQuantity
	for i := 0; i < n; i++ {
		size := base
		if p.RandomizeSize {
			size *= 0.8 + rng.Float64()*0.4 // Uniform(0.8, 1.2)
		}
		if i == n-1 {
			size = remaining
		} else {
			size = clampRemaining(size, remaining)
		}
		if size < 0 {
			size = 0
		}

		scheduled := now.Add(time.Duration(i) * p.Interval)
		if p.RandomizeTiming && i > 0 {
			jitter := (rng.Float64()*0.5 - 0.25) * float64(p.Interval) // Uniform(-0.25,0.25)*interval
			scheduled = scheduled.Add(time.Duration(jitter))
		}

		venueID := top3[i%len(top3)]
		slices = append(slices, newSlice(parent, i, size, venueID, core.OrderTypeMarket, scheduled, 0.3, 0))
		remaining -= size
	}
	return slices
}

func topNByLiquidity(venues *venue.Table, n int) []string {
	ranked := venues.ByLiquidityDesc()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// VWAPParams are submit_vwap's strategy parameters.
type VWAPParams struct {
	Duration          time.Duration
	ParticipationRate float64
	MaxParticipation  float64
}

// intradayWeight is the static U-shaped intraday volume curve sampled at
// the start of a 5-minute bucket within the trading day (9:30-16:00).
func intradayWeight(bucketStartMinutesFromOpen, totalMinutes int) float64 {
	if totalMinutes <= 0 {
		return 0
	}
	frac := float64(bucketStartMinutesFromOpen) / float64(totalMinutes)
	// U-shape: high at frac=0 and frac=1, low at frac=0.5.
	return 0.6 + 0.8*math.Pow(2*frac-1, 2)
}

func symbolClassMultiplier(class venue.SymbolClass) float64 {
	switch class {
	case venue.ClassETF:
		return 1.1
	case venue.ClassTech:
		return 1.3
	default:
		return 0.7
	}
}

// VWAP partitions the trading day into 5-minute buckets between now and
// now+duration, weights each by the static intraday curve times a
// symbol-class multiplier, and allocates proportionally. Falls back to
// TWAP if no buckets fall within trading hours.
func VWAP(parent *core.ParentOrder, p VWAPParams, venues *venue.Table, now time.Time, rng *rand.Rand) []core.OrderSlice {
	const bucket = 5 * time.Minute
	n := int(p.Duration / bucket)
	if n < 1 {
		n = 1
	}

	type bucketInfo struct {
		start  time.Time
		weight float64
	}
	class := venue.ClassifySymbol(parent.Symbol)
	mult := symbolClassMultiplier(class)

	buckets := make([]bucketInfo, 0, n)
	for i := 0; i < n; i++ {
		t := now.Add(time.Duration(i) * bucket)
		if !withinTradingHours(t) {
			continue
		}
		minutesFromOpen := minutesSinceOpen(t)
		w := intradayWeight(minutesFromOpen, 390) * mult // 390 = 6.5h trading day
		buckets = append(buckets, bucketInfo{start: t, weight: w})
	}

	if len(buckets) == 0 {
		// Out of hours: fall back to TWAP with the same duration, 1-min interval.
		return TWAP(parent, TWAPParams{Duration: p.Duration, Interval: time.Minute}, venues, now, rng)
	}

	totalWeight := 0.0
	for _, b := range buckets {
		totalWeight += b.weight
	}

	slices := make([]core.OrderSlice, 0, len(buckets))
	remaining := parent.TotalQuantity
	for i, b := range buckets {
		weight := b.weight / totalWeight
		qty := parent.TotalQuantity * weight
		if i == len(buckets)-1 {
			qty = remaining
		} else {
			qty = clampRemaining(qty, remaining)
		}
		if qty < 0 {
			qty = 0
		}
		venueID := vwapVenueFor(weight, venues, rng)
		slices = append(slices, newSlice(parent, i, qty, venueID, core.OrderTypeLimit, b.start, 0.4, 0))
		remaining -= qty
	}
	return slices
}

func vwapVenueFor(weight float64, venues *venue.Table, rng *rand.Rand) string {
	switch {
	case weight > 0.15:
		if _, ok := venues.Get("NYSE"); ok {
			return "NYSE"
		}
	case weight > 0.10:
		if _, ok := venues.Get("NASDAQ"); ok {
			return "NASDAQ"
		}
	}
	ids := venues.IDs()
	remaining := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "NYSE" && id != "NASDAQ" {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return ids[0]
	}
	return remaining[rng.Intn(len(remaining))]
}

func withinTradingHours(t time.Time) bool {
	h, m := t.Hour(), t.Minute()
	minutes := h*60 + m
	return minutes >= 9*60+30 && minutes < 16*60
}

func minutesSinceOpen(t time.Time) int {
	h, m := t.Hour(), t.Minute()
	minutes := h*60 + m
	return minutes - (9*60 + 30)
}

// IcebergParams are submit_iceberg's strategy parameters.
type IcebergParams struct {
	DisplaySize      float64
	RefreshThreshold float64
}

// Iceberg produces display_size-capped visible slices with the remainder
// (up to 3x display size) carried as hidden quantity, 2s apart, capped at
// 20 slices, routed to the iceberg-friendly venue set.
func Iceberg(parent *core.ParentOrder, p IcebergParams, venues *venue.Table, now time.Time, rng *rand.Rand) []core.OrderSlice {
	friendly := venues.IcebergFriendly()
	if len(friendly) == 0 || p.DisplaySize <= 0 {
		return nil
	}

	slices := make([]core.OrderSlice, 0, icebergMaxSlices)
	remaining := parent.TotalQuantity
	for i := 0; i < icebergMaxSlices && remaining > 0; i++ {
		visible := math.Min(p.DisplaySize, remaining)
		hidden := math.Min(remaining-visible, 3*p.DisplaySize)

		venueID := friendly[rng.Intn(len(friendly))]
		scheduled := now.Add(time.Duration(i) * 2 * time.Second)
		slices = append(slices, newSlice(parent, i, visible, venueID, core.OrderTypeLimit, scheduled, 0.6, hidden))
		remaining -= visible
	}
	return slices
}

// SmartParams are submit_smart's strategy parameters.
type SmartParams struct {
	MaxVenues          int
	CostSensitivity    float64
	MinVenueAllocation float64 // fraction, e.g. 0.10
}

type venueScore struct {
	id    string
	score float64
}

func compositeScore(v venueFields, sensitivity, symbolFit float64) float64 {
	latencyScore := 1.0 - float64(v.latencyRank-1)/5.0
	if latencyScore < 0 {
		latencyScore = 0
	}
	costScore := 1.0 - (v.takerFee - v.makerRebate)
	if costScore < 0 {
		costScore = 0
	}
	if costScore > 1 {
		costScore = 1
	}
	score := 0.4*v.liquidity + 0.3*costScore*sensitivity + 0.2*latencyScore + 0.1*symbolFit
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

type venueFields struct {
	liquidity   float64
	latencyRank int
	takerFee    float64
	makerRebate float64
}

// SmartRouting scores every venue, selects the top max_venues, and allocates
// qty proportionally to score with a per-venue floor enforced and rounding
// residue swept to the top-scoring venue.
func SmartRouting(parent *core.ParentOrder, p SmartParams, venues *venue.Table, now time.Time, rng *rand.Rand) []core.OrderSlice {
	ids := venues.IDs()
	scores := make([]venueScore, 0, len(ids))
	for _, id := range ids {
		liquidity, _, makerRebate, takerFee, latencyRank, _, ok := venues.Capabilities(id)
		if !ok {
			continue
		}
		fit := venues.SymbolFit(parent.Symbol, id)
		s := compositeScore(venueFields{liquidity: liquidity, latencyRank: latencyRank, takerFee: takerFee, makerRebate: makerRebate}, p.CostSensitivity, fit)
		scores = append(scores, venueScore{id: id, score: s})
	}

	// stable sort descending by score, ties broken by venue id table order
	for i := 1; i < len(scores); i++ {
		j := i
		for j > 0 && scores[j-1].score < scores[j].score {
			scores[j-1], scores[j] = scores[j], scores[j-1]
			j--
		}
	}

	maxVenues := p.MaxVenues
	if maxVenues <= 0 {
		maxVenues = 1
	}
	if maxVenues > smartMaxVenueCount {
		maxVenues = smartMaxVenueCount
	}
	if maxVenues > len(scores) {
		maxVenues = len(scores)
	}
	selected := scores[:maxVenues]

	totalScore := 0.0
	for _, s := range selected {
		totalScore += s.score
	}
	if totalScore <= 0 {
		return nil
	}

	floor := p.MinVenueAllocation * parent.TotalQuantity
	allocations := make([]float64, len(selected))
	for i, s := range selected {
		alloc := parent.TotalQuantity * s.score / totalScore
		if alloc < floor {
			alloc = floor
		}
		allocations[i] = alloc
	}

	sum := 0.0
	for _, a := range allocations {
		sum += a
	}
	residue := parent.TotalQuantity - sum
	if len(allocations) > 0 {
		allocations[0] += residue // top-scoring venue absorbs rounding/floor residue
	}

	slices := make([]core.OrderSlice, 0, len(selected))
	for i, s := range selected {
		scheduled := now.Add(time.Duration(i) * 500 * time.Millisecond)
		qty := allocations[i]
		if qty < 0 {
			qty = 0
		}
		slices = append(slices, newSlice(parent, i, qty, s.id, core.OrderTypeLimit, scheduled, 0.7, 0))
	}
	return slices
}
