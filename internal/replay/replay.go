// Package replay implements the prioritized experience replay buffer: a
// fixed-capacity ring over struct-of-arrays columns, single-writer (the
// scheduler) / multi-reader (the learner), with priority-proportional
// sampling and beta-annealed importance-sampling weights.
package replay

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"hftcore/internal/core"
)

// Config holds the buffer's tunables, matching spec.md §6's replay options.
type Config struct {
	Capacity      int
	Alpha         float64
	Beta          float64
	BetaIncrement float64
}

// DefaultConfig mirrors common RL defaults seen across the pack.
func DefaultConfig() Config {
	return Config{Capacity: 100_000, Alpha: 0.6, Beta: 0.4, BetaIncrement: 0.0001}
}

// Batch is a sample draw: experiences, their ring indices (for later
// update_priorities calls), and their importance-sampling weights.
type Batch struct {
	Experiences []core.Experience
	Indices     []int
	Weights     []float64
}

// Buffer is the prioritized ring. Each slot is published with a single
// atomic.Pointer store, so a reader either sees the previous experience or
// the new one in full — never a torn read — and the writer never waits on
// a reader. Per-slot priorities live in their own atomic words for the
// same reason. The only thing guarded by an actual mutex is the shared
// sampling RNG, which neither Add nor the data path ever touches, so a
// reader contending on it can never block the writer.
type Buffer struct {
	cfg Config

	meta       []atomic.Pointer[core.Experience]
	priorities []atomic.Uint64 // float64 bits

	writePos atomic.Int64
	size     atomic.Int64
	maxPrio  atomic.Uint64 // float64 bits

	beta atomic.Uint64 // float64 bits

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an empty buffer with the given seed for deterministic sampling.
func New(cfg Config, seed int64) *Buffer {
	b := &Buffer{
		cfg:        cfg,
		meta:       make([]atomic.Pointer[core.Experience], cfg.Capacity),
		priorities: make([]atomic.Uint64, cfg.Capacity),
		rng:        rand.New(rand.NewSource(seed)),
	}
	b.beta.Store(math.Float64bits(cfg.Beta))
	return b
}

// Len returns the current logical size (<= capacity).
func (b *Buffer) Len() int { return int(b.size.Load()) }

func latencyFactor(actualLatencyUs float64) float64 {
	f := 2 - math.Min(2, actualLatencyUs/1000)
	if f < 0 {
		f = 0
	}
	return f
}

func derivePriority(exp core.Experience) float64 {
	p := math.Abs(exp.Reward) + 0.1
	p *= latencyFactor(exp.ActualLatencyUs)
	p *= 1 + exp.MarketImpactBps
	if p <= 0 {
		p = 1e-6
	}
	return p
}

// bumpMaxPrio atomically raises maxPrio to p if p is larger, lock-free via
// CAS retry, and returns the resulting max. A stored value of 0 means
// "unset" — derivePriority and UpdatePriorities both floor at 1e-6, so 0
// never collides with a legitimate priority.
func (b *Buffer) bumpMaxPrio(p float64) float64 {
	for {
		old := b.maxPrio.Load()
		oldF := math.Float64frombits(old)
		if old != 0 && oldF >= p {
			return oldF
		}
		if b.maxPrio.CompareAndSwap(old, math.Float64bits(p)) {
			return p
		}
	}
}

// Add inserts one experience at the current write position, advancing it
// modulo capacity. O(1) and lock-free: the slot's experience and priority
// are each published with a single atomic store, visible to readers as
// soon as writePos/size advance.
func (b *Buffer) Add(exp core.Experience) {
	p := derivePriority(exp)
	maxPrio := b.bumpMaxPrio(p)
	exp.Priority = maxPrio

	pos := int(b.writePos.Load() % int64(b.cfg.Capacity))
	stored := exp
	b.meta[pos].Store(&stored)
	b.priorities[pos].Store(math.Float64bits(maxPrio))

	b.writePos.Add(1)
	if cur := b.size.Load(); int(cur) < b.cfg.Capacity {
		b.size.Add(1)
	}
}

// Sample draws batchSize indices with probability proportional to
// priority^alpha, returning the experiences plus per-sample IS weights
// normalized by the batch's own max weight (so weights land in (0,1]).
// Beta anneals toward 1.0 by BetaIncrement on every call.
func (b *Buffer) Sample(batchSize int) Batch {
	n := int(b.size.Load())
	if n == 0 {
		return Batch{}
	}

	weights := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		pr := math.Float64frombits(b.priorities[i].Load())
		w := math.Pow(pr, b.cfg.Alpha)
		weights[i] = w
		total += w
	}

	beta := math.Float64frombits(b.beta.Load())

	b.rngMu.Lock()
	indices := make([]int, batchSize)
	for i := 0; i < batchSize; i++ {
		indices[i] = weightedSample(b.rng, weights, total)
	}
	b.rngMu.Unlock()

	exps := make([]core.Experience, batchSize)
	isWeights := make([]float64, batchSize)
	maxW := 0.0
	for i, idx := range indices {
		if ptr := b.meta[idx].Load(); ptr != nil {
			exps[i] = *ptr
		}
		prob := weights[idx] / total
		w := math.Pow(float64(n)*prob, -beta)
		isWeights[i] = w
		if w > maxW {
			maxW = w
		}
	}

	if maxW > 0 {
		for i := range isWeights {
			isWeights[i] /= maxW
		}
	}

	b.annealBeta()

	return Batch{Experiences: exps, Indices: indices, Weights: isWeights}
}

func (b *Buffer) annealBeta() {
	for {
		old := b.beta.Load()
		oldF := math.Float64frombits(old)
		newF := math.Min(1.0, oldF+b.cfg.BetaIncrement)
		if b.beta.CompareAndSwap(old, math.Float64bits(newF)) {
			return
		}
	}
}

func weightedSample(rng *rand.Rand, weights []float64, total float64) int {
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r <= cum {
			return i
		}
	}
	return len(weights) - 1
}

// UpdatePriorities rewrites the priority of each given index, flooring at
// 1e-6 (spec's round-trip guarantee). Lock-free: each index is an
// independent atomic store.
func (b *Buffer) UpdatePriorities(indices []int, priorities []float64) {
	for i, idx := range indices {
		if idx < 0 || idx >= b.cfg.Capacity {
			continue
		}
		p := priorities[i]
		if p < 1e-6 {
			p = 1e-6
		}
		b.priorities[idx].Store(math.Float64bits(p))
		b.bumpMaxPrio(p)
	}
}

// Priority returns the current stored priority at idx (test/debug hook).
func (b *Buffer) Priority(idx int) float64 {
	if idx < 0 || idx >= b.cfg.Capacity {
		return 0
	}
	return math.Float64frombits(b.priorities[idx].Load())
}
