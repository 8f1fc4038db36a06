package book

import (
	"testing"
	"time"

	"hftcore/internal/core"
	"hftcore/internal/venue"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEnsureBookSeedsWithinSpreadBounds(t *testing.T) {
	sim := NewSimulator(1, 400)
	sim.SetClock(fixedClock(time.Unix(0, 0)))
	b := sim.EnsureBook("AAPL", "NYSE", 100.0)

	if b.Bids[0].Price >= b.Asks[0].Price {
		t.Fatalf("expected top bid < top ask, got bid=%v ask=%v", b.Bids[0].Price, b.Asks[0].Price)
	}
	spreadBps := (b.Asks[0].Price - b.Bids[0].Price) / 100.0 * 10_000
	if spreadBps < 2 || spreadBps > 8 {
		t.Fatalf("seeded spread %v bps out of [2,8] range", spreadBps)
	}
	for i := 0; i < 5; i++ {
		if b.Bids[i].Size < minLevelSize {
			t.Errorf("bid level %d size %v below minimum", i, b.Bids[i].Size)
		}
		if b.Asks[i].Size < minLevelSize {
			t.Errorf("ask level %d size %v below minimum", i, b.Asks[i].Size)
		}
	}
}

func TestEnsureBookIsIdempotent(t *testing.T) {
	sim := NewSimulator(1, 400)
	b1 := sim.EnsureBook("AAPL", "NYSE", 100.0)
	b2 := sim.EnsureBook("AAPL", "NYSE", 999.0) // mid ignored on second call
	if b1 != b2 {
		t.Fatal("expected EnsureBook to return the same book on repeated calls")
	}
}

func TestSimulateFillImpactScenario(t *testing.T) {
	sim := NewSimulator(7, 400)
	sim.SetClock(fixedClock(time.Unix(0, 0)))
	b := sim.EnsureBook("XYZ", "NYSE", 99.995)

	b.Asks[0] = core.OrderBookLevel{Price: 100.00, Size: 200}
	b.Asks[1] = core.OrderBookLevel{Price: 100.01, Size: 300}
	b.Asks[2] = core.OrderBookLevel{Price: 100.02, Size: 500}
	b.Bids[0] = core.OrderBookLevel{Price: 99.99, Size: 200}

	v := venue.Venue{ID: "NYSE", TakerFeeBps: 0.30}
	res := sim.SimulateFill("XYZ", "NYSE", core.SideBuy, 400, core.OrderTypeMarket, v, false, func() []*core.OrderBook { return nil })

	if !res.Success {
		t.Fatal("expected successful fill")
	}
	// Level 0 alone consumes 200/200 = 100% of its size, breaching the
	// single-level cap (>50%) before the walk ever reaches level 1: the
	// walk stops there, same as TestSingleLevelCapStopsWalk.
	if res.ExecutedQty != 200 {
		t.Errorf("expected filled 200, got %v", res.ExecutedQty)
	}
	wantAvg := 100.00
	if diff := res.AvgPrice - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected avg price %v, got %v", wantAvg, res.AvgPrice)
	}
	// liquidity_consumed = 200/200 = 1.0, temporary >= 10*1.0
	if res.TemporaryImpactBps < 10.0 {
		t.Errorf("expected temporary impact >= ~10bps floor, got %v", res.TemporaryImpactBps)
	}
	if b.Asks[0].Size > 0 {
		// level 0 (200 size) fully consumed and should have been refreshed
		if b.Asks[0].Size < minLevelSize {
			t.Errorf("expected drained level to refresh above minimum, got %v", b.Asks[0].Size)
		}
	}
}

func TestSimulateFillEmptyBookFails(t *testing.T) {
	sim := NewSimulator(1, 400)
	b := sim.EnsureBook("AAPL", "NYSE", 100.0)
	for i := range b.Asks {
		b.Asks[i].Size = 0
	}
	v := venue.Venue{ID: "NYSE"}
	res := sim.SimulateFill("AAPL", "NYSE", core.SideBuy, 100, core.OrderTypeMarket, v, false, nil)
	if res.Success {
		t.Fatal("expected fill against an empty book to fail")
	}
	if res.ExecutedQty != 0 {
		t.Errorf("expected zero filled qty, got %v", res.ExecutedQty)
	}
}

func TestSimulateFillUnknownBook(t *testing.T) {
	sim := NewSimulator(1, 400)
	v := venue.Venue{ID: "NYSE"}
	res := sim.SimulateFill("NOPE", "NYSE", core.SideBuy, 100, core.OrderTypeMarket, v, false, nil)
	if res.Success {
		t.Fatal("expected unknown book to fail")
	}
	if res.Error != core.ErrKindEmptyBook {
		t.Errorf("expected ErrKindEmptyBook, got %q", res.Error)
	}
}

func TestSingleLevelCapStopsWalk(t *testing.T) {
	sim := NewSimulator(1, 400)
	b := sim.EnsureBook("AAPL", "NYSE", 100.0)
	b.Asks[0] = core.OrderBookLevel{Price: 100.00, Size: 100}
	b.Asks[1] = core.OrderBookLevel{Price: 100.01, Size: 1000}
	b.Asks[2] = core.OrderBookLevel{Price: 100.02, Size: 1000}

	v := venue.Venue{ID: "NYSE"}
	res := sim.SimulateFill("AAPL", "NYSE", core.SideBuy, 2000, core.OrderTypeMarket, v, false, nil)
	// consuming >50% of level 0 (100/100 = 100%) must stop the walk there.
	if res.ExecutedQty != 100 {
		t.Errorf("expected walk to stop after single-level cap breach, filled=%v", res.ExecutedQty)
	}
}

func TestCrossVenueEcho(t *testing.T) {
	sim := NewSimulator(3, 400)
	sim.SetClock(fixedClock(time.Unix(0, 0)))
	primary := sim.EnsureBook("AAPL", "NYSE", 100.0)
	other := sim.EnsureBook("AAPL", "NASDAQ", 100.0)
	beforeSize := other.Asks[0].Size

	primary.Asks[0] = core.OrderBookLevel{Price: 100.00, Size: 500}
	v := venue.Venue{ID: "NYSE"}
	res := sim.SimulateFill("AAPL", "NYSE", core.SideBuy, 100, core.OrderTypeMarket, v, false, func() []*core.OrderBook {
		return sim.BooksForSymbol("AAPL")
	})

	if !res.Success {
		t.Fatal("expected successful fill")
	}
	if other.Asks[0].Size >= beforeSize {
		t.Errorf("expected cross-venue echo to reduce other venue's top ask, before=%v after=%v", beforeSize, other.Asks[0].Size)
	}
}
