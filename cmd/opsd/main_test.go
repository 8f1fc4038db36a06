package main

import "testing"

func TestValidateRuntimeConfigRejectsNonPositiveCeiling(t *testing.T) {
	cfg := defaultRuntimeConfig()
	cfg.LatencyCeilingUs = 0
	if err := validateRuntimeConfig(cfg); err == nil {
		t.Fatalf("expected error for zero latency ceiling")
	}
}

func TestValidateRuntimeConfigRejectsOutOfRangeAlpha(t *testing.T) {
	cfg := defaultRuntimeConfig()
	cfg.ReplayAlpha = 1.5
	if err := validateRuntimeConfig(cfg); err == nil {
		t.Fatalf("expected error for out-of-range replay alpha")
	}
}

func TestValidateRuntimeConfigRejectsNegativeRates(t *testing.T) {
	cfg := defaultRuntimeConfig()
	cfg.FeeRatePerShare = -1
	if err := validateRuntimeConfig(cfg); err == nil {
		t.Fatalf("expected error for negative fee rate")
	}
}

func TestValidateRuntimeConfigAcceptsDefaults(t *testing.T) {
	if err := validateRuntimeConfig(defaultRuntimeConfig()); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
}
