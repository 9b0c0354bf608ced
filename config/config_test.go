package config

import (
	"os"
	"strings"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalConfig = `costlens:
  name: "TestApp"
  version: "1.0"
feed:
  url: "ws://localhost:5000/stream"
parameters:
  exchange: "OKX"
  symbol: "BTC-USDT-SWAP"
  order_type: "market"
  quantity: 100
  volatility: 0.3
  fee_tier: "VIP0"
form:
  exchanges: ["OKX"]
  symbols: ["BTC-USDT-SWAP"]
  order_types: ["market", "limit"]
  fee_tiers: ["VIP0", "VIP1"]
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Costlens.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Costlens.Name)
	}
	if cfg.Feed.URL != "ws://localhost:5000/stream" {
		t.Errorf("unexpected feed url: %s", cfg.Feed.URL)
	}
	if cfg.Channels.EventBuffer != 256 {
		t.Errorf("expected default event buffer, got %d", cfg.Channels.EventBuffer)
	}
	if cfg.Feed.Reconnect.Delay <= 0 {
		t.Errorf("expected default reconnect delay, got %v", cfg.Feed.Reconnect.Delay)
	}
	if cfg.Parameters.Quantity != 100 {
		t.Errorf("unexpected quantity: %v", cfg.Parameters.Quantity)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	t.Setenv("ANALYTICS_WS_URL", "wss://analytics.example.com/stream")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.URL != "wss://analytics.example.com/stream" {
		t.Errorf("env override not applied: %s", cfg.Feed.URL)
	}
}

func TestLoadConfigRejectsBadVolatility(t *testing.T) {
	content := strings.Replace(minimalConfig, "volatility: 0.3", "volatility: 2.5", 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for volatility out of range")
	}
}

func TestLoadConfigRejectsUnknownOrderType(t *testing.T) {
	content := strings.Replace(minimalConfig, `order_type: "market"`, `order_type: "stop"`, 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for order type outside form enumeration")
	}
}

func TestIsValidFeedURL(t *testing.T) {
	cases := []struct {
		url   string
		valid bool
	}{
		{"ws://localhost:5000/stream", true},
		{"wss://analytics.example.com/stream", true},
		{"http://localhost:5000", false},
		{"ws://", false},
		{"not a url", false},
	}
	for _, c := range cases {
		if got := isValidFeedURL(c.url); got != c.valid {
			t.Errorf("isValidFeedURL(%q) = %v, want %v", c.url, got, c.valid)
		}
	}
}
