package main

import "testing"

func TestTallySnapshotComputesRates(t *testing.T) {
	tl := newTally()
	tl.observe(riskSignal{Venue: "NYSE", FillSuccess: true, MarketImpactBps: 2})
	tl.observe(riskSignal{Venue: "NYSE", FillSuccess: false, Degraded: true, MarketImpactBps: 6})
	tl.observe(riskSignal{Venue: "ARCA", FillSuccess: true, MarketImpactBps: 1})

	report := tl.snapshotAndReset()
	if report.TotalSlices != 3 {
		t.Fatalf("expected 3 slices, got %d", report.TotalSlices)
	}
	if report.WinRate < 0.66 || report.WinRate > 0.67 {
		t.Fatalf("expected win rate ~0.667, got %.3f", report.WinRate)
	}
	if report.MaxImpactBps != 6 {
		t.Fatalf("expected max impact 6, got %.2f", report.MaxImpactBps)
	}
	if report.VenueBreakdown["NYSE"] != 2 || report.VenueBreakdown["ARCA"] != 1 {
		t.Fatalf("unexpected venue breakdown: %+v", report.VenueBreakdown)
	}
}

func TestTallySnapshotResetsWindow(t *testing.T) {
	tl := newTally()
	tl.observe(riskSignal{Venue: "NYSE", FillSuccess: true})
	tl.snapshotAndReset()
	second := tl.snapshotAndReset()
	if second.TotalSlices != 0 {
		t.Fatalf("expected empty window after reset, got %d slices", second.TotalSlices)
	}
}

func TestTallyEmptyWindowYieldsZeroRates(t *testing.T) {
	tl := newTally()
	report := tl.snapshotAndReset()
	if report.WinRate != 0 || report.AvgImpactBps != 0 {
		t.Fatalf("expected zero rates for empty window, got %+v", report)
	}
}
