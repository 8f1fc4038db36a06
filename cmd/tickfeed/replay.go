package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"hftcore/internal/core"
)

type bar struct {
	symbol    string
	ts        time.Time
	open      float64
	high      float64
	low       float64
	closePx   float64
	volume    float64
}

type replayCommand struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

// runReplay reads historical bars from CSV or Parquet and republishes them
// as core.Tick messages at cfg.ReplaySpeed, honoring pause/resume/seek
// control messages on a companion NATS subject.
func runReplay(ctx context.Context, nc *nats.Conn, cfg feedConfig) error {
	bars, err := readBars(cfg.ReplaySource)
	if err != nil {
		return err
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].ts.Before(bars[j].ts) })
	if len(bars) == 0 {
		return fmt.Errorf("no replay bars available for %s", cfg.ReplaySource)
	}

	speed := cfg.ReplaySpeed
	if speed <= 0 {
		speed = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(speed))
	defer ticker.Stop()

	controlCh := make(chan replayCommand, 16)
	controlSubject := cfg.Subject + ".control"
	sub, err := nc.Subscribe(controlSubject, func(msg *nats.Msg) {
		var cmd replayCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Printf("tickfeed: invalid replay control message: %v", err)
			return
		}
		select {
		case controlCh <- cmd:
		default:
			log.Printf("tickfeed: control channel saturated, dropping %s", cmd.Command)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	paused := false
	index := 0
	var symbolID uint32

	for index < len(bars) {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-controlCh:
			switch strings.ToLower(cmd.Command) {
			case "pause":
				paused = true
			case "resume":
				paused = false
			case "seek":
				if ts, err := time.Parse(time.RFC3339, cmd.Timestamp); err == nil {
					if idx := seekIndex(bars, ts); idx >= 0 {
						index = idx
					}
				} else {
					log.Printf("tickfeed: invalid seek timestamp: %v", err)
				}
			default:
				log.Printf("tickfeed: unknown replay command: %s", cmd.Command)
			}
		case <-ticker.C:
			if paused {
				continue
			}
			tick := barToTick(symbolID, bars[index])
			if err := publishTick(nc, cfg.Subject, tick); err != nil {
				log.Printf("tickfeed: replay publish error: %v", err)
			}
			index++
			symbolID++
		}
	}
	return nil
}

func seekIndex(bars []bar, target time.Time) int {
	for i, b := range bars {
		if !b.ts.Before(target) {
			return i
		}
	}
	if len(bars) == 0 {
		return 0
	}
	return len(bars) - 1
}

func barToTick(symbolID uint32, b bar) core.Tick {
	spread := math.Max((b.high-b.low)*0.2, math.Max(b.closePx*0.0004, 0.01))
	bid := b.closePx - spread/2
	ask := b.closePx + spread/2
	volume := math.Max(b.volume, 1)
	return core.Tick{
		TimestampNs: uint64(b.ts.UnixNano()),
		SymbolID:    symbolID,
		Symbol:      b.symbol,
		Venue:       "NYSE",
		Bid:         float32(bid),
		Ask:         float32(ask),
		BidSize:     uint32(math.Max(volume*0.25, 1)),
		AskSize:     uint32(math.Max(volume*0.25, 1)),
		Last:        float32(b.closePx),
		Volume:      uint32(volume),
		SpreadBps:   float32(spread / b.closePx * 10_000),
	}
}

func readBars(source string) ([]bar, error) {
	source = strings.TrimSpace(source)
	scheme, path := parseSource(source)

	switch scheme {
	case "csv":
		return readCSVBars(path)
	case "parquet":
		return readParquetBars(path)
	case "":
		lower := strings.ToLower(path)
		if strings.HasSuffix(lower, ".csv") {
			return readCSVBars(path)
		}
		if strings.HasSuffix(lower, ".parquet") {
			return readParquetBars(path)
		}
	}
	return nil, fmt.Errorf("unsupported replay source: %s", source)
}

func parseSource(source string) (scheme, path string) {
	if idx := strings.Index(source, "://"); idx != -1 {
		return strings.ToLower(source[:idx]), source[idx+3:]
	}
	return "", source
}

func readCSVBars(path string) ([]bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rd := csv.NewReader(file)
	records, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv file %s has no data rows", path)
	}

	header := make(map[string]int)
	for idx, col := range records[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = idx
	}
	required := []string{"timestamp", "open", "high", "low", "close"}
	for _, key := range required {
		if _, ok := header[key]; !ok {
			return nil, fmt.Errorf("csv file %s missing required column %q", path, key)
		}
	}
	symbolIdx, hasSymbol := header["symbol"]
	volumeIdx, hasVolume := header["volume"]

	var bars []bar
	for _, record := range records[1:] {
		ts, err := time.Parse(time.RFC3339, record[header["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", record[header["timestamp"]], err)
		}
		open, err := strconv.ParseFloat(record[header["open"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid open %q: %w", record[header["open"]], err)
		}
		high, err := strconv.ParseFloat(record[header["high"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid high %q: %w", record[header["high"]], err)
		}
		low, err := strconv.ParseFloat(record[header["low"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid low %q: %w", record[header["low"]], err)
		}
		closePx, err := strconv.ParseFloat(record[header["close"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid close %q: %w", record[header["close"]], err)
		}
		volume := 0.0
		if hasVolume && volumeIdx < len(record) && record[volumeIdx] != "" {
			if volume, err = strconv.ParseFloat(record[volumeIdx], 64); err != nil {
				volume = 0
			}
		}
		symbol := "AAPL"
		if hasSymbol && symbolIdx < len(record) && record[symbolIdx] != "" {
			symbol = record[symbolIdx]
		}
		bars = append(bars, bar{symbol: symbol, ts: ts, open: open, high: high, low: low, closePx: closePx, volume: volume})
	}
	return bars, nil
}

type parquetBarRow struct {
	Timestamp int64   `parquet:"name=timestamp"`
	Symbol    string  `parquet:"name=symbol"`
	Open      float64 `parquet:"name=open"`
	High      float64 `parquet:"name=high"`
	Low       float64 `parquet:"name=low"`
	Close     float64 `parquet:"name=close"`
	Volume    float64 `parquet:"name=volume"`
}

func readParquetBars(path string) ([]bar, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetBarRow), 4)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	rows := make([]parquetBarRow, numRows)
	if err := pr.Read(&rows); err != nil {
		return nil, err
	}

	bars := make([]bar, 0, len(rows))
	for _, row := range rows {
		var ts time.Time
		switch {
		case row.Timestamp > 1e16:
			ts = time.Unix(0, row.Timestamp).UTC()
		case row.Timestamp > 1e12:
			ts = time.Unix(0, row.Timestamp*int64(time.Millisecond)).UTC()
		default:
			ts = time.Unix(row.Timestamp, 0).UTC()
		}
		symbol := row.Symbol
		if symbol == "" {
			symbol = "AAPL"
		}
		bars = append(bars, bar{symbol: symbol, ts: ts, open: row.Open, high: row.High, low: row.Low, closePx: row.Close, volume: row.Volume})
	}
	return bars, nil
}
