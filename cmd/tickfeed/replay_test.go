package main

import (
	"testing"
	"time"
)

func testBar(ts string, closePx float64) bar {
	parsed, _ := time.Parse(time.RFC3339, ts)
	return bar{symbol: "AAPL", ts: parsed, open: closePx, high: closePx + 1, low: closePx - 1, closePx: closePx, volume: 1000}
}

func TestSeekIndexFindsFirstAtOrAfterTarget(t *testing.T) {
	bars := []bar{
		testBar("2024-01-02T09:30:00Z", 100),
		testBar("2024-01-02T09:31:00Z", 101),
		testBar("2024-01-02T09:32:00Z", 102),
	}
	target, _ := time.Parse(time.RFC3339, "2024-01-02T09:31:30Z")
	idx := seekIndex(bars, target)
	if idx != 2 {
		t.Fatalf("expected index 2, got %d", idx)
	}
}

func TestSeekIndexPastEndReturnsLast(t *testing.T) {
	bars := []bar{testBar("2024-01-02T09:30:00Z", 100), testBar("2024-01-02T09:31:00Z", 101)}
	target, _ := time.Parse(time.RFC3339, "2024-01-02T10:00:00Z")
	idx := seekIndex(bars, target)
	if idx != len(bars)-1 {
		t.Fatalf("expected last index %d, got %d", len(bars)-1, idx)
	}
}

func TestBarToTickDerivesSpreadAndSizes(t *testing.T) {
	b := testBar("2024-01-02T09:30:00Z", 100)
	tick := barToTick(7, b)
	if tick.SymbolID != 7 {
		t.Fatalf("expected symbol id 7, got %d", tick.SymbolID)
	}
	if tick.Bid >= tick.Ask {
		t.Fatalf("expected bid < ask, got bid=%v ask=%v", tick.Bid, tick.Ask)
	}
	if tick.Last != float32(b.closePx) {
		t.Fatalf("expected last to equal close price, got %v", tick.Last)
	}
}

func TestParseSourceSplitsScheme(t *testing.T) {
	scheme, path := parseSource("parquet:///data/bars.parquet")
	if scheme != "parquet" || path != "/data/bars.parquet" {
		t.Fatalf("unexpected parse: scheme=%q path=%q", scheme, path)
	}
	scheme, path = parseSource("/data/bars.csv")
	if scheme != "" || path != "/data/bars.csv" {
		t.Fatalf("unexpected parse for bare path: scheme=%q path=%q", scheme, path)
	}
}
