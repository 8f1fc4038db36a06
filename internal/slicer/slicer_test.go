package slicer

import (
	"math/rand"
	"testing"
	"time"

	"hftcore/internal/core"
	"hftcore/internal/venue"
)

func newParent(symbol string, side core.Side, qty float64, now time.Time) *core.ParentOrder {
	return &core.ParentOrder{Symbol: symbol, Side: side, TotalQuantity: qty, CreatedAt: now}
}

func TestTWAPDeterminismScenario(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	parent := newParent("AAPL", core.SideBuy, 1000, now)
	rng := rand.New(rand.NewSource(42))

	slices := TWAP(parent, TWAPParams{
		Duration: 10 * time.Minute,
		Interval: 30 * time.Second,
	}, venues, now, rng)

	if len(slices) != 20 {
		t.Fatalf("expected 20 slices, got %d", len(slices))
	}
	wantVenues := []string{"NYSE", "NASDAQ", "ARCA"}
	for i, s := range slices {
		if s.Quantity != 50 {
			t.Errorf("slice %d: expected qty 50, got %v", i, s.Quantity)
		}
		wantVenue := wantVenues[i%3]
		if s.Venue != wantVenue {
			t.Errorf("slice %d: expected venue %s, got %s", i, wantVenue, s.Venue)
		}
		wantSched := now.Add(time.Duration(i) * 30 * time.Second)
		if !s.ScheduledAt.Equal(wantSched) {
			t.Errorf("slice %d: expected scheduled %v, got %v", i, wantSched, s.ScheduledAt)
		}
	}
}

func TestSmartRoutingAllocationScenario(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	parent := newParent("GOOGL", core.SideBuy, 800, now)
	rng := rand.New(rand.NewSource(42))

	slices := SmartRouting(parent, SmartParams{
		MaxVenues:          3,
		CostSensitivity:    0.5,
		MinVenueAllocation: 0.10,
	}, venues, now, rng)

	if len(slices) != 3 {
		t.Fatalf("expected 3 slices, got %d", len(slices))
	}
	wantVenues := map[string]bool{"NYSE": true, "NASDAQ": true, "IEX": true}
	total := 0.0
	for _, s := range slices {
		if !wantVenues[s.Venue] {
			t.Errorf("unexpected venue in top-3: %s", s.Venue)
		}
		if s.Quantity < 80 {
			t.Errorf("venue %s allocation %v below 10%% floor (80)", s.Venue, s.Quantity)
		}
		total += s.Quantity
	}
	if diff := total - 800; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected allocations to sum to 800, got %v", total)
	}
}

func TestIcebergCapScenario(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	parent := newParent("TSLA", core.SideBuy, 10_000, now)
	rng := rand.New(rand.NewSource(42))

	slices := Iceberg(parent, IcebergParams{DisplaySize: 150}, venues, now, rng)

	if len(slices) != 20 {
		t.Fatalf("expected hard cap of 20 slices, got %d", len(slices))
	}
	var displayed, hidden float64
	for i, s := range slices {
		displayed += s.Quantity
		hidden += s.HiddenQty
		wantSched := now.Add(time.Duration(i) * 2 * time.Second)
		if !s.ScheduledAt.Equal(wantSched) {
			t.Errorf("slice %d: expected scheduled %v, got %v", i, wantSched, s.ScheduledAt)
		}
	}
	if displayed != 3000 {
		t.Errorf("expected total displayed 3000, got %v", displayed)
	}
	if hidden != 7000 {
		t.Errorf("expected total hidden 7000, got %v", hidden)
	}
}

func TestTWAPReducesSliceCountBelowMinSize(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Now()
	parent := newParent("AAPL", core.SideBuy, 100, now)
	rng := rand.New(rand.NewSource(1))

	slices := TWAP(parent, TWAPParams{Duration: 50 * time.Minute, Interval: time.Minute}, venues, now, rng)
	for _, s := range slices {
		if s.Quantity < 25 && s.SliceIndex != len(slices)-1 {
			t.Errorf("slice %d size %v below TWAP minimum of 25", s.SliceIndex, s.Quantity)
		}
	}
}

func TestVWAPFallsBackToTWAPOutOfHours(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC) // well outside 9:30-16:00
	parent := newParent("AAPL", core.SideBuy, 500, now)
	rng := rand.New(rand.NewSource(1))

	slices := VWAP(parent, VWAPParams{Duration: 10 * time.Minute, ParticipationRate: 0.1}, venues, now, rng)
	if len(slices) == 0 {
		t.Fatal("expected fallback TWAP slices out of hours")
	}
	for _, s := range slices {
		if s.OrderType != core.OrderTypeMarket {
			t.Errorf("expected fallback TWAP order type MARKET, got %s", s.OrderType)
		}
	}
}

func TestQtyOneYieldsOneSlice(t *testing.T) {
	venues := venue.NewDefaultTable()
	now := time.Now()
	parent := newParent("AAPL", core.SideBuy, 1, now)
	rng := rand.New(rand.NewSource(1))

	slices := Iceberg(parent, IcebergParams{DisplaySize: 150}, venues, now, rng)
	if len(slices) != 1 {
		t.Fatalf("expected exactly one slice for qty=1, got %d", len(slices))
	}
	if slices[0].Quantity != 1 {
		t.Errorf("expected the single slice to carry qty 1, got %v", slices[0].Quantity)
	}
}
