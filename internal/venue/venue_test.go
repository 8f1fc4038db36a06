package venue

import "testing"

func TestByLiquidityDescTop3(t *testing.T) {
	tbl := NewDefaultTable()
	ranked := tbl.ByLiquidityDesc()
	want := []string{"NYSE", "NASDAQ", "ARCA", "IEX", "CBOE"}
	if len(ranked) != len(want) {
		t.Fatalf("got %d venues, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i] != id {
			t.Fatalf("rank %d: got %s, want %s (full order %v)", i, ranked[i], id, ranked)
		}
	}
}

func TestIcebergFriendlySet(t *testing.T) {
	tbl := NewDefaultTable()
	got := map[string]bool{}
	for _, id := range tbl.IcebergFriendly() {
		got[id] = true
	}
	for _, want := range []string{"IEX", "CBOE", "ARCA"} {
		if !got[want] {
			t.Errorf("expected %s to be iceberg-friendly, set=%v", want, got)
		}
	}
}

func TestCapabilitiesUnknownVenue(t *testing.T) {
	tbl := NewDefaultTable()
	if _, _, _, _, _, _, ok := tbl.Capabilities("FAKE"); ok {
		t.Fatal("expected unknown venue to report not-ok")
	}
}

func TestClassifySymbol(t *testing.T) {
	cases := map[string]SymbolClass{
		"SPY":   ClassETF,
		"GOOGL": ClassTech,
		"JPM":   ClassLargeCap,
		"ZZZZ":  ClassOther,
	}
	for symbol, want := range cases {
		if got := ClassifySymbol(symbol); got != want {
			t.Errorf("ClassifySymbol(%s) = %s, want %s", symbol, got, want)
		}
	}
}

func TestSymbolFitBestForIsOne(t *testing.T) {
	tbl := NewDefaultTable()
	if fit := tbl.SymbolFit("GOOGL", "NASDAQ"); fit != 1.0 {
		t.Errorf("expected best-for match to score 1.0, got %v", fit)
	}
}
