package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"costlens/internal/channel"
	"costlens/logger"
	"costlens/models"
)

// Reconciler is the single place server data enters the client. One
// dispatcher goroutine consumes the inbound event channel and folds each
// envelope into the store or the parameter store. Because the channel is
// owned for the process lifetime and reconnections reuse it, every event is
// folded exactly once regardless of how many times the transport redials.
type Reconciler struct {
	channels *channel.Channels
	store    *Store
	params   *ParamStore
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewReconciler(channels *channel.Channels, store *Store, params *ParamStore) *Reconciler {
	return &Reconciler{
		channels: channels,
		store:    store,
		params:   params,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the dispatcher loop.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.mu.Unlock()

	log := r.log.WithComponent("reconciler")
	log.Info("starting event reconciler")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatch(ctx)
	}()

	return nil
}

// Stop waits for the dispatcher to drain. The transport closing the event
// channel is what actually ends the loop.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("reconciler").Info("stopping event reconciler")
	r.wg.Wait()
	r.log.WithComponent("reconciler").Info("event reconciler stopped")
}

func (r *Reconciler) dispatch(ctx context.Context) {
	log := r.log.WithComponent("reconciler").WithFields(logger.Fields{"worker": "dispatcher"})

	for {
		select {
		case <-ctx.Done():
			log.Info("dispatcher stopped due to context cancellation")
			return
		case env, ok := <-r.channels.Events:
			if !ok {
				log.Info("event channel closed, dispatcher exiting")
				return
			}
			r.Apply(env)
		}
	}
}

// Apply folds a single envelope into state. Every handler replaces its
// slice of state wholesale, returns immediately, and is idempotent under
// repeated identical payloads. Malformed payloads are logged and skipped at
// this boundary rather than propagated into state.
func (r *Reconciler) Apply(env models.Envelope) {
	log := r.log.WithComponent("reconciler").WithFields(logger.Fields{"event": env.Event})

	switch env.Event {
	case models.EventConnect:
		r.store.SetStatus(StatusConnected)
		r.store.ClearError()

	case models.EventDisconnect:
		// Stale orderbook/analytics stay visible; only the status flips.
		r.store.SetStatus(StatusDisconnected)

	case models.EventConnectError:
		var payload models.ErrorPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.WithError(err).Warn("malformed connect_error payload")
			}
		}
		if payload.Message == "" {
			payload.Message = "connection error"
		}
		r.store.SetStatus(StatusErrored)
		r.store.SetError(payload.Code, payload.Message)

	case models.EventOrderbookUpdate:
		var book models.OrderbookSnapshot
		if err := json.Unmarshal(env.Data, &book); err != nil {
			log.WithError(err).Warn("malformed orderbook payload, dropping")
			return
		}
		r.store.SetOrderbook(book)

	case models.EventAnalyticsUpdate:
		var result models.AnalyticsResult
		if err := json.Unmarshal(env.Data, &result); err != nil {
			log.WithError(err).Warn("malformed analytics payload, dropping")
			return
		}
		r.store.SetAnalytics(result)

	case models.EventConnectionStatus:
		// Server-asserted override of the transport-level state.
		var payload models.ConnStatusPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.WithError(err).Warn("malformed connection_status payload, dropping")
			return
		}
		if payload.Connected {
			r.store.SetStatus(StatusConnected)
		} else {
			r.store.SetStatus(StatusDisconnected)
		}

	case models.EventError:
		var payload models.ErrorPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.WithError(err).Warn("malformed error payload, dropping")
			return
		}
		// Application errors never touch the connection status.
		r.store.SetError(payload.Code, payload.Message)

	case models.EventParameterUpdate:
		var params models.Parameters
		if err := json.Unmarshal(env.Data, &params); err != nil {
			log.WithError(err).Warn("malformed parameter payload, dropping")
			return
		}
		r.params.Replace(params)

	default:
		log.Debug("unknown event category, ignoring")
	}
}
