// Package core defines the shared data model for the execution and
// simulation engine: ticks, venues, routes, order books, parent orders,
// slices, execution results, and replay experiences.
package core

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Strategy is the closed set of slicing strategies.
type Strategy string

const (
	StrategyTWAP   Strategy = "TWAP"
	StrategyVWAP   Strategy = "VWAP"
	StrategyIceberg Strategy = "ICEBERG"
	StrategySmart  Strategy = "SMART"
)

// OrderType is the slice order type sent to the book simulator.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ParentStatus is the parent order FSM state.
type ParentStatus string

const (
	StatusPending          ParentStatus = "PENDING"
	StatusActive           ParentStatus = "ACTIVE"
	StatusPartiallyFilled  ParentStatus = "PARTIALLY_FILLED"
	StatusFilled           ParentStatus = "FILLED"
	StatusCancelled        ParentStatus = "CANCELLED"
	StatusRejected         ParentStatus = "REJECTED"
)

// Terminal reports whether a ParentStatus cannot transition further.
func (s ParentStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// PriceLevel is a single level of book depth.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  uint32  `json:"size"`
}

// Tick is the external market-data schema consumed by the core. Layout
// mirrors spec.md §6's bit-compatible tick schema.
type Tick struct {
	TimestampNs uint64       `json:"timestamp_ns"`
	SymbolID    uint32       `json:"symbol_id"`
	Symbol      string       `json:"symbol"`
	VenueID     uint8        `json:"venue_id"`
	Venue       string       `json:"venue"`
	Bid         float32      `json:"bid"`
	Ask         float32      `json:"ask"`
	BidSize     uint32       `json:"bid_size"`
	AskSize     uint32       `json:"ask_size"`
	Last        float32      `json:"last"`
	Volume      uint32       `json:"volume"`
	SpreadBps   float32      `json:"spread_bps"`
	BidLevels   []PriceLevel `json:"bid_levels"`
	AskLevels   []PriceLevel `json:"ask_levels"`
}

// Mid returns the mid price of the tick's top of book.
func (t Tick) Mid() float64 {
	return (float64(t.Bid) + float64(t.Ask)) / 2
}

// OrderBookLevel is a resting level inside a simulated order book.
type OrderBookLevel struct {
	Price      float64
	Size       float64
	NumOrders  int
	UpdatedAt  time.Time
}

// OrderBook is a 5-level synthetic book for one (symbol, venue) pair.
type OrderBook struct {
	Symbol      string
	Venue       string
	TargetSpreadBps float64
	Bids        [5]OrderBookLevel
	Asks        [5]OrderBookLevel
}

// TopOfBook returns best bid/ask price and size.
func (b *OrderBook) TopOfBook() (bestBid, bestAsk, bidSize, askSize float64) {
	return b.Bids[0].Price, b.Asks[0].Price, b.Bids[0].Size, b.Asks[0].Size
}

// Mid returns the book's mid price.
func (b *OrderBook) Mid() float64 {
	return (b.Bids[0].Price + b.Asks[0].Price) / 2
}

// OrderSlice is one scheduled child order cut from a parent by a slicer.
type OrderSlice struct {
	ID           uint64
	ParentID     uint64
	SliceIndex   int
	Symbol       string
	Side         Side
	Quantity     float64
	Venue        string
	OrderType    OrderType
	LimitPrice   float64
	ScheduledAt  time.Time
	Urgency      float64
	HiddenQty    float64
}

// ExecutionResult is the append-only outcome of dispatching one slice.
type ExecutionResult struct {
	SliceID          uint64
	ParentID         uint64
	ExecutedQty      float64
	AvgPrice         float64
	ExecutedAt       time.Time
	Venue            string
	Fees             float64
	Rebate           float64
	SlippageBps      float64
	TemporaryImpactBps float64
	PermanentImpactBps float64
	Success          bool
	Error            string
	LatencyUs        float64
	PredictedLatencyUs float64
}

// ParentOrder is the top-level order submitted by a caller.
type ParentOrder struct {
	ID             uint64
	Symbol         string
	Side           Side
	TotalQuantity  float64
	Strategy       Strategy
	Status         ParentStatus
	ArrivalPrice   float64
	BenchmarkPrice float64
	StrategyParams any
	Slices         []OrderSlice
	Executions     []ExecutionResult
	CreatedAt      time.Time
	RejectReason   string
}

// FilledQuantity sums executed quantity across all executions.
func (p *ParentOrder) FilledQuantity() float64 {
	total := 0.0
	for _, e := range p.Executions {
		if e.Success {
			total += e.ExecutedQty
		}
	}
	return total
}

// RemainingQuantity is total minus filled, floored at zero.
func (p *ParentOrder) RemainingQuantity() float64 {
	r := p.TotalQuantity - p.FilledQuantity()
	if r < 0 {
		return 0
	}
	return r
}

// AvgExecPrice is the quantity-weighted average fill price.
func (p *ParentOrder) AvgExecPrice() float64 {
	var qty, notional float64
	for _, e := range p.Executions {
		if !e.Success {
			continue
		}
		qty += e.ExecutedQty
		notional += e.ExecutedQty * e.AvgPrice
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

// ImplementationShortfallBps is signed bps vs. arrival price, negated for SELL.
func (p *ParentOrder) ImplementationShortfallBps() float64 {
	if p.ArrivalPrice <= 0 {
		return 0
	}
	filled := p.FilledQuantity()
	if filled == 0 {
		return 0
	}
	execValue := 0.0
	for _, e := range p.Executions {
		if e.Success {
			execValue += e.ExecutedQty * e.AvgPrice
		}
	}
	arrivalValue := filled * p.ArrivalPrice
	shortfall := (execValue - arrivalValue) / arrivalValue * 10_000
	if p.Side == SideSell {
		shortfall = -shortfall
	}
	return shortfall
}

// Experience is a single (s, a, r, s', done) record with routing metadata,
// backing the prioritized replay buffer.
type Experience struct {
	State            []float32
	Action           int
	Reward           float64
	NextState        []float32
	Done             bool
	TimestampNs      uint64
	Venue            string
	ExpectedLatencyUs float64
	ActualLatencyUs  float64
	FillSuccess      bool
	MarketImpactBps  float64
	OpportunityCost  float64
	Priority         float64
	Degraded         bool
}
