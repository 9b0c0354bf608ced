package models

import "encoding/json"

// Event names used on the wire. The analytics service addresses every
// message by one of these names; compatibility requires exact matches.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectError     = "connect_error"
	EventOrderbookUpdate  = "orderbook_update"
	EventAnalyticsUpdate  = "analytics_update"
	EventConnectionStatus = "connection_status"
	EventError            = "error"
	EventParameterUpdate  = "parameter_update"
)

// Envelope is the wire frame for every message exchanged with the
// analytics service: a named event plus an opaque payload. The payload is
// decoded per event at the reconciler boundary.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Parameters holds the simulation inputs. Quantity and volatility are
// numeric; everything else travels as strings. Field names match the
// server contract.
type Parameters struct {
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	OrderType  string  `json:"order_type"`
	Quantity   float64 `json:"quantity"`
	Volatility float64 `json:"volatility"`
	FeeTier    string  `json:"fee_tier"`
}

// NumericParameter reports whether the named parameter field carries a
// number rather than a string.
func NumericParameter(name string) bool {
	switch name {
	case "quantity", "volatility":
		return true
	default:
		return false
	}
}

// KnownParameter reports whether name is a parameter field the server
// understands.
func KnownParameter(name string) bool {
	switch name {
	case "exchange", "symbol", "order_type", "quantity", "volatility", "fee_tier":
		return true
	default:
		return false
	}
}

// OrderbookSnapshot is the full book pushed by the service. Levels are
// opaque [price, size] string pairs; only their count and the symbol are
// inspected locally. Absent bids/asks decode to empty slices.
type OrderbookSnapshot struct {
	Exchange  string     `json:"exchange,omitempty"`
	Symbol    string     `json:"symbol"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
	Timestamp float64    `json:"timestamp,omitempty"`
}

// SlippageResult is the slippage block of an analytics update.
type SlippageResult struct {
	Bps  float64 `json:"bps"`
	Cost float64 `json:"cost"`
}

// ImpactResult is the market impact block of an analytics update.
type ImpactResult struct {
	TemporaryBps float64 `json:"temporary_bps"`
	PermanentBps float64 `json:"permanent_bps"`
	TotalBps     float64 `json:"total_bps"`
	Cost         float64 `json:"cost"`
}

// FeeResult is the fee block of an analytics update.
type FeeResult struct {
	MakerRate    float64 `json:"maker_rate"`
	TakerRate    float64 `json:"taker_rate"`
	WeightedRate float64 `json:"weighted_rate"`
	Amount       float64 `json:"amount"`
}

// MakerTakerResult is the predicted maker/taker split.
type MakerTakerResult struct {
	MakerRatio float64 `json:"maker_ratio"`
	TakerRatio float64 `json:"taker_ratio"`
}

// NetCostResult is the aggregate cost block.
type NetCostResult struct {
	Amount float64 `json:"amount"`
	Bps    float64 `json:"bps"`
}

// LatencyResult reports server-side processing time.
type LatencyResult struct {
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// AnalyticsResult is the computed cost bundle pushed by the service. When
// the server fails to compute, Error carries the reason and the numeric
// blocks are zero. The client never recomputes or validates the numbers.
type AnalyticsResult struct {
	Error      string           `json:"error,omitempty"`
	Exchange   string           `json:"exchange,omitempty"`
	Symbol     string           `json:"symbol,omitempty"`
	OrderType  string           `json:"order_type,omitempty"`
	Quantity   float64          `json:"quantity,omitempty"`
	Slippage   SlippageResult   `json:"slippage"`
	Impact     ImpactResult     `json:"market_impact"`
	Fees       FeeResult        `json:"fees"`
	MakerTaker MakerTakerResult `json:"maker_taker"`
	NetCost    NetCostResult    `json:"net_cost"`
	Latency    LatencyResult    `json:"latency"`
	Timestamp  float64          `json:"timestamp,omitempty"`
}

// ConnStatusPayload is the server-asserted connection state. It overrides
// whatever the transport last observed.
type ConnStatusPayload struct {
	Connected bool `json:"connected"`
}

// ErrorPayload is a server-reported application error.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
