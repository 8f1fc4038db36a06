// Package book simulates a 5-level synthetic order book per (symbol, venue)
// pair and prices market-impact-aware fills against it. Books are owned
// exclusively by whichever goroutine drives the Simulator (the scheduler,
// per spec.md §3's ownership rule) — the type does no internal locking.
package book

import (
	"math"
	"math/rand"
	"time"

	"hftcore/internal/core"
	"hftcore/internal/venue"
)

const (
	minLevelSize     = 100.0
	maxWalkLevels    = 3
	singleLevelCap   = 0.5
	crossVenueEchoPct = 0.10
	defaultMeanSize  = 400.0
)

type bookKey struct {
	symbol string
	venueID string
}

// Simulator owns every (symbol, venue) book and the RNG used to seed and
// evolve them. Seedable for deterministic tests.
type Simulator struct {
	rng      *rand.Rand
	meanSize float64
	books    map[bookKey]*core.OrderBook
	now      func() time.Time
}

// NewSimulator builds a book simulator with a seeded RNG for deterministic
// tests. meanSize is the mean of the exponential size distribution used to
// seed and refresh levels; zero selects a sensible default.
func NewSimulator(seed int64, meanSize float64) *Simulator {
	if meanSize <= 0 {
		meanSize = defaultMeanSize
	}
	return &Simulator{
		rng:      rand.New(rand.NewSource(seed)),
		meanSize: meanSize,
		books:    make(map[bookKey]*core.OrderBook),
		now:      time.Now,
	}
}

// SetClock overrides the time source (tests only).
func (s *Simulator) SetClock(now func() time.Time) { s.now = now }

func (s *Simulator) drawSize() float64 {
	size := s.rng.ExpFloat64() * s.meanSize
	if size < minLevelSize {
		size = minLevelSize
	}
	return size
}

// EnsureBook returns the book for (symbol, venueID), seeding it at midPrice
// with a uniform-in-[2,8]bps target spread if it does not yet exist.
func (s *Simulator) EnsureBook(symbol, venueID string, midPrice float64) *core.OrderBook {
	key := bookKey{symbol, venueID}
	if b, ok := s.books[key]; ok {
		return b
	}
	b := s.seedBook(symbol, venueID, midPrice)
	s.books[key] = b
	return b
}

func (s *Simulator) seedBook(symbol, venueID string, midPrice float64) *core.OrderBook {
	targetSpreadBps := 2 + s.rng.Float64()*6 // uniform [2,8]
	dollarSpread := midPrice * targetSpreadBps / 10_000
	step := dollarSpread / 2
	now := s.now()

	b := &core.OrderBook{Symbol: symbol, Venue: venueID, TargetSpreadBps: targetSpreadBps}
	topBid := midPrice - dollarSpread/2
	topAsk := midPrice + dollarSpread/2
	for i := 0; i < 5; i++ {
		b.Bids[i] = core.OrderBookLevel{
			Price:     topBid - float64(i)*step,
			Size:      s.drawSize(),
			NumOrders: 1 + s.rng.Intn(5),
			UpdatedAt: now,
		}
		b.Asks[i] = core.OrderBookLevel{
			Price:     topAsk + float64(i)*step,
			Size:      s.drawSize(),
			NumOrders: 1 + s.rng.Intn(5),
			UpdatedAt: now,
		}
	}
	return b
}

// Quote returns best bid/ask price and size for (symbol, venueID).
func (s *Simulator) Quote(symbol, venueID string) (bestBid, bestAsk, bidSize, askSize float64, ok bool) {
	b, found := s.books[bookKey{symbol, venueID}]
	if !found {
		return 0, 0, 0, 0, false
	}
	bid, ask, bs, as := b.TopOfBook()
	return bid, ask, bs, as, true
}

// levelFillResult captures what the walk consumed from one side of a book.
type levelFillResult struct {
	filledQty         float64
	totalCost         float64
	liquidityConsumed float64
	touchedLevels     []int
	consumedAt        []float64 // parallel to touchedLevels: qty taken from that level
}

func walkLevels(levels *[5]core.OrderBookLevel, remaining float64) levelFillResult {
	var res levelFillResult
	for i := 0; i < maxWalkLevels && remaining > 0; i++ {
		level := &levels[i]
		if level.Size <= 0 {
			continue
		}
		take := math.Min(remaining, level.Size)
		if take <= 0 {
			continue
		}
		res.totalCost += take * level.Price
		res.filledQty += take
		consumedFrac := take / level.Size
		res.liquidityConsumed += consumedFrac
		res.touchedLevels = append(res.touchedLevels, i)
		res.consumedAt = append(res.consumedAt, take)
		remaining -= take

		if consumedFrac > singleLevelCap {
			break
		}
	}
	return res
}

// SimulateFill walks up to 3 levels on the side opposite the aggressor,
// prices temporary/permanent impact, applies fees/rebates, mutates the
// consumed levels, echoes a fraction of the impact into other venues'
// books for the same symbol, and refreshes any level that drained below
// the minimum size. Never returns an error; book-empty / no-liquidity
// outcomes are reported via ExecutionResult.Success=false.
func (s *Simulator) SimulateFill(symbol, venueID string, side core.Side, qty float64, orderType core.OrderType, v venue.Venue, maker bool, allBooksForSymbol func() []*core.OrderBook) core.ExecutionResult {
	b, ok := s.books[bookKey{symbol, venueID}]
	if !ok {
		return core.ExecutionResult{Venue: venueID, Success: false, Error: core.ErrKindEmptyBook}
	}

	mid := b.Mid()
	var levels *[5]core.OrderBookLevel
	if side == core.SideBuy {
		levels = &b.Asks
	} else {
		levels = &b.Bids
	}

	// Both sides empty (or the consuming side) -> unsuccessful, zero filled.
	if levels[0].Size <= 0 {
		return core.ExecutionResult{Venue: venueID, Success: false, Error: core.ErrKindEmptyBook}
	}

	res := walkLevels(levels, qty)
	if res.filledQty <= 0 {
		return core.ExecutionResult{Venue: venueID, Success: false, Error: core.ErrKindEmptyBook}
	}

	avg := res.totalCost / res.filledQty
	temporaryBps := 10*res.liquidityConsumed + s.rng.ExpFloat64()*2 // Exp(mean=2)
	permanentBps := 0.3 * temporaryBps
	slippageBps := 0.0
	if mid > 0 {
		slippageBps = math.Abs(avg-mid) / mid * 10_000
	}

	fees := res.filledQty * avg * v.TakerFeeBps / 10_000
	rebate := 0.0
	if maker && v.RebatePaying && orderType == core.OrderTypeLimit {
		rebate = res.filledQty * avg * (-v.MakerRebateBps) / 10_000
		fees = 0
	}

	now := s.now()
	for idx, i := range res.touchedLevels {
		levels[i].Size -= res.consumedAt[idx]
		levels[i].UpdatedAt = now
	}
	s.refreshDrainedLevels(levels, now)
	s.echoAcrossVenues(symbol, venueID, side, temporaryBps, allBooksForSymbol)

	return core.ExecutionResult{
		Venue:              venueID,
		ExecutedQty:        res.filledQty,
		AvgPrice:           avg,
		ExecutedAt:         now,
		Fees:               fees,
		Rebate:             rebate,
		SlippageBps:        slippageBps,
		TemporaryImpactBps: temporaryBps,
		PermanentImpactBps: permanentBps,
		Success:            true,
	}
}

func (s *Simulator) refreshDrainedLevels(levels *[5]core.OrderBookLevel, now time.Time) {
	for i := range levels {
		if levels[i].Size < minLevelSize {
			levels[i].Size = s.drawSize()
			levels[i].UpdatedAt = now
		}
	}
}

// echoAcrossVenues reduces the top 1-2 levels of the consumed side on every
// other venue's book for the same symbol, proportional to 10% of the
// temporary impact (spec.md §9's canonical resolution of the open question).
func (s *Simulator) echoAcrossVenues(symbol, originVenue string, side core.Side, temporaryBps float64, allBooksForSymbol func() []*core.OrderBook) {
	if allBooksForSymbol == nil {
		return
	}
	reduction := crossVenueEchoPct * temporaryBps / 10_000
	if reduction <= 0 {
		return
	}
	for _, other := range allBooksForSymbol() {
		if other.Venue == originVenue {
			continue
		}
		var levels *[5]core.OrderBookLevel
		if side == core.SideBuy {
			levels = &other.Asks
		} else {
			levels = &other.Bids
		}
		for i := 0; i < 2; i++ {
			levels[i].Size *= (1 - reduction)
			if levels[i].Size < 0 {
				levels[i].Size = 0
			}
		}
	}
}

// BooksForSymbol returns every book currently tracked for symbol, used to
// build the allBooksForSymbol callback SimulateFill needs for cross-venue
// echo.
func (s *Simulator) BooksForSymbol(symbol string) []*core.OrderBook {
	var out []*core.OrderBook
	for k, b := range s.books {
		if k.symbol == symbol {
			out = append(out, b)
		}
	}
	return out
}
