package main

import "testing"

func TestObserveTripsCircuitBreakerOnHighFailureRate(t *testing.T) {
	a := &aggregator{}
	var state RiskState
	for i := 0; i < 30; i++ {
		state = a.observe(riskSignal{Venue: "NYSE", FillSuccess: i >= 10, MarketImpactBps: 1})
	}
	if !state.CrisisMode {
		t.Fatalf("expected crisis mode after 10/30 failures, got failure_rate=%.2f", state.FailureRate)
	}
	if state.ConsecutiveLosses != 1 {
		t.Fatalf("expected one crisis episode recorded, got %d", state.ConsecutiveLosses)
	}
	if state.PositionSizeFactor != 0.3 {
		t.Fatalf("expected throttled position size factor during crisis, got %.2f", state.PositionSizeFactor)
	}
}

func TestObserveStaysCalmUnderThreshold(t *testing.T) {
	a := &aggregator{}
	var state RiskState
	for i := 0; i < 50; i++ {
		state = a.observe(riskSignal{Venue: "NYSE", FillSuccess: true, MarketImpactBps: 0.5})
	}
	if state.CrisisMode {
		t.Fatalf("did not expect crisis mode with all-success window")
	}
	if state.PositionSizeFactor != 1.0 {
		t.Fatalf("expected full position size factor, got %.2f", state.PositionSizeFactor)
	}
}

func TestObserveRecoversAfterHoldPeriod(t *testing.T) {
	a := &aggregator{}
	for i := 0; i < 30; i++ {
		a.observe(riskSignal{Venue: "NYSE", FillSuccess: i >= 10})
	}
	// The 10 early failures keep the rolling failure rate at or above
	// failureRateTrip until the window holds 67 signals (37 successes), so
	// the recoveryHoldSignals count only starts after that.
	var state RiskState
	for i := 0; i < 37+recoveryHoldSignals+5; i++ {
		state = a.observe(riskSignal{Venue: "NYSE", FillSuccess: true})
	}
	if state.CrisisMode {
		t.Fatalf("expected crisis mode to clear after sustained recovery")
	}
}

func TestObserveWindowCapsAtRollingWindow(t *testing.T) {
	a := &aggregator{}
	for i := 0; i < rollingWindow+50; i++ {
		a.observe(riskSignal{Venue: "NYSE", FillSuccess: true})
	}
	if len(a.window) != rollingWindow {
		t.Fatalf("expected window capped at %d, got %d", rollingWindow, len(a.window))
	}
}
