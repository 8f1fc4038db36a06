package replay

import (
	"testing"

	"hftcore/internal/core"
)

func TestSizeNeverExceedsCapacity(t *testing.T) {
	buf := New(Config{Capacity: 10, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.001}, 1)
	for i := 0; i < 100; i++ {
		buf.Add(core.Experience{Reward: float64(i)})
	}
	if buf.Len() != 10 {
		t.Fatalf("expected size capped at capacity 10, got %d", buf.Len())
	}
}

func TestSampleIndicesInRangeAndWeightsBounded(t *testing.T) {
	buf := New(Config{Capacity: 50, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.001}, 1)
	for i := 0; i < 20; i++ {
		buf.Add(core.Experience{Reward: float64(i % 5)})
	}
	batch := buf.Sample(16)
	if len(batch.Indices) != 16 {
		t.Fatalf("expected 16 samples, got %d", len(batch.Indices))
	}
	for _, idx := range batch.Indices {
		if idx < 0 || idx >= buf.Len() {
			t.Errorf("sampled index %d out of range [0,%d)", idx, buf.Len())
		}
	}
	for _, w := range batch.Weights {
		if w <= 0 || w > 1 {
			t.Errorf("IS weight %v out of (0,1]", w)
		}
	}
}

func TestUpdatePrioritiesFloorsAtEpsilon(t *testing.T) {
	buf := New(Config{Capacity: 10, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.001}, 1)
	buf.Add(core.Experience{Reward: 1.0})
	buf.UpdatePriorities([]int{0}, []float64{-5.0})
	if got := buf.Priority(0); got != 1e-6 {
		t.Errorf("expected priority floored to 1e-6, got %v", got)
	}
	buf.UpdatePriorities([]int{0}, []float64{3.0})
	if got := buf.Priority(0); got != 3.0 {
		t.Errorf("expected priority max(p,1e-6)=3.0, got %v", got)
	}
}

func TestHigherRewardSampledMoreOften(t *testing.T) {
	buf := New(Config{Capacity: 10, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.0}, 7)
	buf.Add(core.Experience{Reward: 0.0, ActualLatencyUs: 0, MarketImpactBps: 0})
	buf.Add(core.Experience{Reward: 1.0, ActualLatencyUs: 0, MarketImpactBps: 0})
	buf.Add(core.Experience{Reward: 10.0, ActualLatencyUs: 0, MarketImpactBps: 0})

	counts := map[float64]int{}
	for i := 0; i < 1000; i++ {
		batch := buf.Sample(1)
		counts[batch.Experiences[0].Reward]++
	}
	if counts[10.0] <= counts[0.0] {
		t.Errorf("expected reward=10 to be sampled more often than reward=0: counts=%v", counts)
	}
}

func TestDerivePriorityNeverZero(t *testing.T) {
	p := derivePriority(core.Experience{Reward: 0, ActualLatencyUs: 5000, MarketImpactBps: 0})
	if p <= 0 {
		t.Errorf("expected strictly positive priority, got %v", p)
	}
}
