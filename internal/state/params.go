package state

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"costlens/logger"
	"costlens/models"
)

// Emitter is the slice of the connection handle the parameter store needs:
// a connectivity check and a fire-and-forget emit.
type Emitter interface {
	Connected() bool
	Emit(ctx context.Context, event string, payload interface{}) bool
}

// ParamStore owns the simulation parameters. Local edits change exactly one
// field and forward the delta to the server; server-pushed corrections
// replace the whole set. Whichever arrived last wins; no merging beyond
// that.
type ParamStore struct {
	mu      sync.RWMutex
	params  models.Parameters
	emitter Emitter
	log     *logger.Log
}

func NewParamStore(initial models.Parameters, emitter Emitter) *ParamStore {
	return &ParamStore{
		params:  initial,
		emitter: emitter,
		log:     logger.GetLogger(),
	}
}

// EditField applies a single-field edit from the edit surface. The raw
// value is coerced for local storage (quantity and volatility are numbers,
// the rest are strings), but the outbound delta carries the raw value
// untouched: the server coerces on its side, and the wire contract expects
// the single-key form {name: raw}.
//
// Edits made while disconnected update local state and are not transmitted;
// they are not queued for later delivery.
func (p *ParamStore) EditField(name, raw string) error {
	if !models.KnownParameter(name) {
		return fmt.Errorf("unknown parameter field '%s'", name)
	}

	log := p.log.WithComponent("param_store").WithFields(logger.Fields{"field": name})

	p.mu.Lock()
	if models.NumericParameter(name) {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			p.mu.Unlock()
			log.WithError(err).Warn("rejecting non-numeric value for numeric field")
			return fmt.Errorf("invalid numeric value for %s: %q", name, raw)
		}
		switch name {
		case "quantity":
			p.params.Quantity = value
		case "volatility":
			p.params.Volatility = value
		}
	} else {
		switch name {
		case "exchange":
			p.params.Exchange = raw
		case "symbol":
			p.params.Symbol = raw
		case "order_type":
			p.params.OrderType = raw
		case "fee_tier":
			p.params.FeeTier = raw
		}
	}
	p.mu.Unlock()

	if p.emitter != nil && p.emitter.Connected() {
		if p.emitter.Emit(context.Background(), models.EventParameterUpdate, map[string]string{name: raw}) {
			log.Debug("parameter delta sent")
		}
	} else {
		log.Debug("disconnected, parameter edit kept local")
	}

	return nil
}

// Replace installs a server-pushed correction wholesale, including fields
// never edited locally.
func (p *ParamStore) Replace(params models.Parameters) {
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()
}

// Snapshot returns a copy of the current parameters.
func (p *ParamStore) Snapshot() models.Parameters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}
