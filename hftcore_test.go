package hftcore

import (
	"testing"
	"time"

	"hftcore/internal/config"
	"hftcore/internal/core"
)

func newTestEngine(t *testing.T) (*Engine, *core.ManualClock) {
	t.Helper()
	clock := core.NewManualClock(uint64(time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC).UnixNano()))
	e := New(config.Default(), clock, 7)
	return e, clock
}

func (e *Engine) seedBooksFor(symbol string) {
	for _, id := range e.Venues.IDs() {
		e.Books.EnsureBook(symbol, id, 100.0)
	}
}

func TestSubmitTWAPThroughLibrarySurface(t *testing.T) {
	e, _ := newTestEngine(t)
	e.seedBooksFor("AAPL")

	parent, err := e.SubmitTWAP("AAPL", core.SideBuy, 300, 5, 60, false, false, 1)
	if err != nil {
		t.Fatalf("submit_twap: %v", err)
	}
	if parent.Status != core.StatusPending {
		t.Fatalf("expected PENDING after submit, got %s", parent.Status)
	}

	for e.Scheduler.Pending() > 0 {
		e.DispatchNext(nil)
	}

	st, ok := e.Status(parent.ID)
	if !ok {
		t.Fatal("expected status lookup to find the parent")
	}
	if st.Status != core.StatusFilled && st.Status != core.StatusPartiallyFilled {
		t.Errorf("expected parent to have progressed, got %s", st.Status)
	}
	if st.Filled <= 0 {
		t.Errorf("expected nonzero fill after dispatch, got %v", st.Filled)
	}
	if st.Filled+st.Remaining != parent.TotalQuantity {
		t.Errorf("filled+remaining = %v, want %v", st.Filled+st.Remaining, parent.TotalQuantity)
	}
}

func TestSubmitRejectsUnknownSymbolThroughLibrarySurface(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SubmitVWAP("", core.SideBuy, 100, 5, 0.1, 1)
	if err != core.ErrUnknownSymbol {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestSubmitIcebergThenCancel(t *testing.T) {
	e, clock := newTestEngine(t)
	e.seedBooksFor("MSFT")

	parent, err := e.SubmitIceberg("MSFT", core.SideSell, 500, 50, 0.2, 2)
	if err != nil {
		t.Fatalf("submit_iceberg: %v", err)
	}

	if err := e.Cancel(parent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	st, ok := e.Status(parent.ID)
	if !ok {
		t.Fatal("expected status lookup to find the parent")
	}
	if st.Status != core.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", st.Status)
	}
	if e.Scheduler.Pending() != 0 {
		t.Errorf("expected no pending slices after cancel, got %d", e.Scheduler.Pending())
	}
	_ = clock
}

func TestSubmitSmartRoutesAcrossVenues(t *testing.T) {
	e, _ := newTestEngine(t)
	e.seedBooksFor("GOOG")

	parent, err := e.SubmitSmart("GOOG", core.SideBuy, 1000, 3, 0.5, 3)
	if err != nil {
		t.Fatalf("submit_smart: %v", err)
	}
	if len(parent.Slices) == 0 {
		t.Fatal("expected smart routing to produce at least one slice")
	}
	venues := make(map[string]bool)
	for _, sl := range parent.Slices {
		venues[sl.Venue] = true
	}
	if len(venues) < 2 {
		t.Errorf("expected smart routing to spread across multiple venues, got %v", venues)
	}
}

func TestOnTickWarmsBooksAndArrivalPrice(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnTick(core.Tick{Symbol: "AAPL", Bid: 99.5, Ask: 100.5})

	parent, err := e.SubmitTWAP("AAPL", core.SideBuy, 100, 1, 30, false, false, 4)
	if err != nil {
		t.Fatalf("submit_twap: %v", err)
	}
	if parent.ArrivalPrice != 100.0 {
		t.Errorf("expected arrival price to pick up the last tick's mid (100.0), got %v", parent.ArrivalPrice)
	}
}
