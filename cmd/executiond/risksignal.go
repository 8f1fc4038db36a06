package main

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"hftcore/internal/core"
)

// riskSignal is one slice outcome's risk-relevant facts, published for
// cmd/riskd to aggregate into a rolling circuit-breaker state.
type riskSignal struct {
	Venue           string  `json:"venue"`
	FillSuccess     bool    `json:"fill_success"`
	Degraded        bool    `json:"degraded"`
	MarketImpactBps float64 `json:"market_impact_bps"`
	TimestampNs     uint64  `json:"timestamp_ns"`
}

func publishRiskSignal(nc *nats.Conn, subject string, exp core.Experience) {
	payload, err := json.Marshal(riskSignal{
		Venue:           exp.Venue,
		FillSuccess:     exp.FillSuccess,
		Degraded:        exp.Degraded,
		MarketImpactBps: exp.MarketImpactBps,
		TimestampNs:     exp.TimestampNs,
	})
	if err != nil {
		log.Printf("executiond: failed to marshal risk signal: %v", err)
		return
	}
	if err := nc.Publish(subject, payload); err != nil {
		log.Printf("executiond: failed to publish risk signal: %v", err)
	}
}
