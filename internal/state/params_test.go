package state

import (
	"context"
	"encoding/json"
	"testing"

	"costlens/models"
)

type recordedEmit struct {
	event   string
	payload interface{}
}

type fakeEmitter struct {
	connected bool
	emits     []recordedEmit
}

func (f *fakeEmitter) Connected() bool {
	return f.connected
}

func (f *fakeEmitter) Emit(_ context.Context, event string, payload interface{}) bool {
	f.emits = append(f.emits, recordedEmit{event: event, payload: payload})
	return true
}

func defaultParams() models.Parameters {
	return models.Parameters{
		Exchange:   "OKX",
		Symbol:     "BTC-USDT-SWAP",
		OrderType:  "market",
		Quantity:   100,
		Volatility: 0.3,
		FeeTier:    "VIP0",
	}
}

func TestEditFieldCoercesButEmitsRaw(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	store := NewParamStore(defaultParams(), emitter)

	if err := store.EditField("quantity", "250"); err != nil {
		t.Fatalf("EditField failed: %v", err)
	}

	params := store.Snapshot()
	if params.Quantity != 250 {
		t.Errorf("expected coerced quantity 250, got %v", params.Quantity)
	}

	if len(emitter.emits) != 1 {
		t.Fatalf("expected 1 emit, got %d", len(emitter.emits))
	}
	if emitter.emits[0].event != models.EventParameterUpdate {
		t.Errorf("unexpected event name: %s", emitter.emits[0].event)
	}

	// The outbound delta is a single-key payload carrying the raw string.
	payload, ok := emitter.emits[0].payload.(map[string]string)
	if !ok {
		t.Fatalf("unexpected payload type: %T", emitter.emits[0].payload)
	}
	if len(payload) != 1 || payload["quantity"] != "250" {
		t.Errorf("expected single-key raw payload, got %v", payload)
	}
}

func TestEditFieldUpdatesOnlyNamedField(t *testing.T) {
	store := NewParamStore(defaultParams(), &fakeEmitter{connected: true})

	if err := store.EditField("fee_tier", "VIP3"); err != nil {
		t.Fatalf("EditField failed: %v", err)
	}

	params := store.Snapshot()
	if params.FeeTier != "VIP3" {
		t.Errorf("fee_tier not updated: %s", params.FeeTier)
	}
	if params.Exchange != "OKX" || params.Symbol != "BTC-USDT-SWAP" || params.Quantity != 100 {
		t.Errorf("other fields must be retained: %+v", params)
	}
}

func TestEditFieldWhileDisconnectedEmitsNothing(t *testing.T) {
	emitter := &fakeEmitter{connected: false}
	store := NewParamStore(defaultParams(), emitter)

	if err := store.EditField("volatility", "0.5"); err != nil {
		t.Fatalf("EditField failed: %v", err)
	}

	if store.Snapshot().Volatility != 0.5 {
		t.Errorf("local state must still update while disconnected")
	}
	if len(emitter.emits) != 0 {
		t.Fatalf("expected zero emits while disconnected, got %d", len(emitter.emits))
	}
}

func TestEditFieldRejectsNonNumericValue(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	store := NewParamStore(defaultParams(), emitter)

	if err := store.EditField("quantity", "lots"); err == nil {
		t.Fatal("expected error for non-numeric quantity")
	}
	if store.Snapshot().Quantity != 100 {
		t.Errorf("state must be unchanged after rejected edit: %v", store.Snapshot().Quantity)
	}
	if len(emitter.emits) != 0 {
		t.Fatalf("rejected edit must not emit, got %d emits", len(emitter.emits))
	}
}

func TestEditFieldRejectsUnknownField(t *testing.T) {
	store := NewParamStore(defaultParams(), &fakeEmitter{connected: true})
	if err := store.EditField("leverage", "10"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestReplaceInstallsWholeSet(t *testing.T) {
	store := NewParamStore(defaultParams(), &fakeEmitter{connected: true})
	if err := store.EditField("quantity", "250"); err != nil {
		t.Fatalf("EditField failed: %v", err)
	}

	var correction models.Parameters
	raw := `{"exchange":"OKX","symbol":"BTC-USDT-SWAP","order_type":"limit","quantity":500,"volatility":0.8,"fee_tier":"VIP2"}`
	if err := json.Unmarshal([]byte(raw), &correction); err != nil {
		t.Fatalf("unmarshal correction: %v", err)
	}
	store.Replace(correction)

	params := store.Snapshot()
	if params.Quantity != 500 || params.OrderType != "limit" || params.FeeTier != "VIP2" {
		t.Errorf("server correction must replace every field: %+v", params)
	}
}
