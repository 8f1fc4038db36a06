package latency

import (
	"testing"
	"time"
)

func TestTimeOfDayMultiplier(t *testing.T) {
	open := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	if lat, spread := TimeOfDayMultiplier(open); lat != 1.2 || spread != 1.5 {
		t.Errorf("open burst: got lat=%v spread=%v, want 1.2/1.5", lat, spread)
	}
	midday := time.Date(2024, 1, 2, 12, 30, 0, 0, time.UTC)
	if lat, spread := TimeOfDayMultiplier(midday); lat != 0.8 || spread != 0.8 {
		t.Errorf("midday: got lat=%v spread=%v, want 0.8/0.8", lat, spread)
	}
	closeWindow := time.Date(2024, 1, 2, 15, 45, 0, 0, time.UTC)
	if lat, spread := TimeOfDayMultiplier(closeWindow); lat != 2.0 || spread != 2.0 {
		t.Errorf("close: got lat=%v spread=%v, want 2.0/2.0", lat, spread)
	}
	afterHours := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	if lat, spread := TimeOfDayMultiplier(afterHours); lat != 1.0 || spread != 1.0 {
		t.Errorf("after hours: got lat=%v spread=%v, want 1.0/1.0", lat, spread)
	}
}

func TestCongestionDoublesLatencyAndHalvesRouteQuality(t *testing.T) {
	sim := NewSimulator(1, 0.001)
	sim.AddRoute(Route{Src: "TRADING", Dst: "NYSE", BaseLatencyUs: 500})

	flat := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)

	baseline := sim.Predict("TRADING", "NYSE", flat, MarketConditions{})

	sim.InjectCongestion(CongestionEvent{
		Routes:   map[string]bool{"TRADING->NYSE": true},
		Severity: 2.0,
		Start:    flat.Add(-time.Second),
		Duration: 60 * time.Second,
	})

	congested := sim.Predict("TRADING", "NYSE", flat, MarketConditions{})
	if congested.ContributingFactors["congestion_effect"] < 0.9 {
		t.Errorf("expected ~+100%% congestion effect, got %v", congested.ContributingFactors["congestion_effect"])
	}
	if congested.RouteQuality >= baseline.RouteQuality {
		t.Errorf("expected route quality to drop under congestion: baseline=%v congested=%v", baseline.RouteQuality, congested.RouteQuality)
	}
}

func TestUnknownRouteFallsBackToDefaultBase(t *testing.T) {
	sim := NewSimulator(1, 0.0)
	pred := sim.Predict("TRADING", "GHOST", time.Now(), MarketConditions{})
	if pred.PredictedUs <= 0 {
		t.Fatal("expected a positive fallback prediction for an unknown route")
	}
}

func TestTickExpiresStaleCongestion(t *testing.T) {
	sim := NewSimulator(1, 0.0)
	sim.AddRoute(Route{Src: "A", Dst: "B", BaseLatencyUs: 100})
	now := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	sim.InjectCongestion(CongestionEvent{
		Routes:   map[string]bool{"A->B": true},
		Severity: 1.5,
		Start:    now,
		Duration: 10 * time.Second,
	})
	later := now.Add(time.Minute)
	sim.Tick(later)
	if len(sim.ActiveEvents(later)) != 0 {
		t.Error("expected expired congestion event to be pruned by Tick")
	}
}
