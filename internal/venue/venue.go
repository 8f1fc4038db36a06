// Package venue is the immutable static-capability table for simulated
// venues: fees, rebates, liquidity, hidden-order support, latency rank,
// and symbol-class fit. It is a pure function of its init-time table —
// no mutable state, safe for concurrent reads from any goroutine.
package venue

import "strings"

// SymbolClass buckets a symbol for the static symbol-fit map.
type SymbolClass string

const (
	ClassETF       SymbolClass = "etf"
	ClassTech      SymbolClass = "tech"
	ClassLargeCap  SymbolClass = "large_cap"
	ClassOther     SymbolClass = "other"
)

// Venue is the immutable description of one simulated trading venue.
type Venue struct {
	ID              string
	Name            string
	MakerRebateBps  float64
	TakerFeeBps     float64
	LiquidityScore  float64 // [0,1]
	HiddenSupport   float64 // [0,1]
	LatencyRank     int     // 1 = fastest
	BestFor         map[SymbolClass]bool
	RebatePaying    bool
	IcebergFriendly bool
}

// Table is the immutable, process-lifetime venue registry.
type Table struct {
	byID map[string]Venue
	ids  []string // stable iteration order: table insertion order
}

// NewDefaultTable builds the canonical venue set used across the core
// and its tests: NYSE, NASDAQ, ARCA, IEX, CBOE.
func NewDefaultTable() *Table {
	venues := []Venue{
		{
			ID: "NYSE", Name: "New York Stock Exchange",
			MakerRebateBps: -0.20, TakerFeeBps: 0.30,
			LiquidityScore: 0.95, HiddenSupport: 0.30, LatencyRank: 1,
			BestFor: map[SymbolClass]bool{ClassLargeCap: true, ClassETF: true},
			RebatePaying: true,
		},
		{
			ID: "NASDAQ", Name: "Nasdaq",
			MakerRebateBps: -0.25, TakerFeeBps: 0.30,
			LiquidityScore: 0.90, HiddenSupport: 0.25, LatencyRank: 2,
			BestFor: map[SymbolClass]bool{ClassTech: true},
			RebatePaying: true,
		},
		{
			ID: "ARCA", Name: "NYSE Arca",
			MakerRebateBps: -0.18, TakerFeeBps: 0.32,
			LiquidityScore: 0.60, HiddenSupport: 0.35, LatencyRank: 4,
			BestFor: map[SymbolClass]bool{ClassETF: true},
			RebatePaying: true, IcebergFriendly: true,
		},
		{
			ID: "IEX", Name: "Investors Exchange",
			MakerRebateBps: 0.00, TakerFeeBps: 0.02,
			LiquidityScore: 0.58, HiddenSupport: 0.80, LatencyRank: 3,
			BestFor: map[SymbolClass]bool{},
			RebatePaying: false, IcebergFriendly: true,
		},
		{
			ID: "CBOE", Name: "Cboe EDGX",
			MakerRebateBps: -0.15, TakerFeeBps: 0.25,
			LiquidityScore: 0.52, HiddenSupport: 0.60, LatencyRank: 5,
			BestFor: map[SymbolClass]bool{ClassOther: true},
			RebatePaying: true, IcebergFriendly: true,
		},
	}
	t := &Table{byID: make(map[string]Venue, len(venues))}
	for _, v := range venues {
		t.byID[v.ID] = v
		t.ids = append(t.ids, v.ID)
	}
	return t
}

// Get returns the venue by id and whether it exists.
func (t *Table) Get(id string) (Venue, bool) {
	v, ok := t.byID[id]
	return v, ok
}

// IDs returns venue ids in stable table insertion order (not sorted by
// latency rank).
func (t *Table) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// Capabilities exposes the spec's capabilities(venue) accessor as a tuple.
func (t *Table) Capabilities(id string) (liquidity, hidden, makerRebate, takerFee float64, latencyRank int, bestFor map[SymbolClass]bool, ok bool) {
	v, found := t.byID[id]
	if !found {
		return 0, 0, 0, 0, 0, nil, false
	}
	return v.LiquidityScore, v.HiddenSupport, v.MakerRebateBps, v.TakerFeeBps, v.LatencyRank, v.BestFor, true
}

// ByLiquidityDesc returns venue ids sorted by liquidity score, highest first.
// Ties are broken by insertion order (ids slice) for determinism.
func (t *Table) ByLiquidityDesc() []string {
	ids := t.IDs()
	// simple insertion sort: table size is tiny (a handful of venues).
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && t.byID[ids[j-1]].LiquidityScore < t.byID[ids[j]].LiquidityScore {
			ids[j-1], ids[j] = ids[j], ids[j-1]
			j--
		}
	}
	return ids
}

// IcebergFriendly returns the subset of venue ids flagged iceberg-friendly.
func (t *Table) IcebergFriendly() []string {
	var out []string
	for _, id := range t.ids {
		if t.byID[id].IcebergFriendly {
			out = append(out, id)
		}
	}
	return out
}

// ClassifySymbol maps a ticker to a static symbol class using simple
// heuristics, matching the spec's "static symbol-class map".
func ClassifySymbol(symbol string) SymbolClass {
	symbol = strings.ToUpper(symbol)
	switch symbol {
	case "SPY", "QQQ", "IWM", "DIA", "VTI":
		return ClassETF
	case "AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "NVDA", "META", "TSLA", "AMD", "NFLX":
		return ClassTech
	case "JPM", "BAC", "XOM", "CVX", "KO", "PG", "JNJ", "WMT":
		return ClassLargeCap
	default:
		return ClassOther
	}
}

// SymbolFit scores how well a venue suits a symbol, in [0,1]. Best-for
// tagged venue/class pairs score 1; everything else uses a liquidity-scaled
// baseline so the value is never zero for a functioning venue.
func (t *Table) SymbolFit(symbol, venueID string) float64 {
	v, ok := t.byID[venueID]
	if !ok {
		return 0
	}
	class := ClassifySymbol(symbol)
	if v.BestFor[class] {
		return 1.0
	}
	return 0.4 + 0.3*v.LiquidityScore
}
