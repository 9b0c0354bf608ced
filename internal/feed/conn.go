package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	appconfig "costlens/config"
	"costlens/internal/channel"
	"costlens/logger"
	"costlens/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Conn is the persistent connection to the analytics service. It owns the
// reconnect loop: dial failures and dropped connections are retried with a
// configured delay and surfaced to the dispatcher as synthesized
// connect_error/disconnect events, never as hard faults. Inbound frames are
// pushed onto the shared event channel; outbound emits are drained from the
// shared emit channel by a per-connection write pump.
type Conn struct {
	cfg       appconfig.FeedConfig
	channels  *channel.Channels
	sessionID string
	log       *logger.Log
	limiter   *rate.Limiter

	mu        sync.RWMutex
	ws        *websocket.Conn
	connected bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn creates the connection handle. The handle is inert until Run is
// called; it is never re-created for the lifetime of the process.
func NewConn(cfg appconfig.FeedConfig, channels *channel.Channels) *Conn {
	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return &Conn{
		cfg:       cfg,
		channels:  channels,
		sessionID: uuid.NewString(),
		log:       logger.GetLogger(),
		limiter:   limiter,
		closed:    make(chan struct{}),
	}
}

// SessionID reports the per-process session identifier sent on the
// websocket handshake.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Connected reports whether the transport currently holds an open
// connection.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit queues a named event for delivery to the server. It never blocks;
// the envelope is dropped when the transport is not connected or the emit
// buffer is full. Callers treat delivery as fire-and-forget.
func (c *Conn) Emit(ctx context.Context, event string, payload interface{}) bool {
	if !c.Connected() {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.WithComponent("feed").WithError(err).Warn("failed to marshal outbound payload")
		return false
	}

	env := models.Envelope{Event: event, Data: data}
	if !c.channels.SendEmit(ctx, env) {
		logger.IncrementEmitDropped()
		c.log.WithComponent("feed").WithFields(logger.Fields{"event": event}).Warn("emit buffer full, dropping event")
		return false
	}

	logger.IncrementEmitSent(len(data))
	return true
}

// Close tears the connection down. It is safe to call from any goroutine
// and closes the underlying websocket exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		ws := c.ws
		c.ws = nil
		c.connected = false
		c.mu.Unlock()

		if ws != nil {
			if err := ws.Close(); err != nil {
				c.log.WithComponent("feed").WithError(err).Debug("error closing websocket")
			}
		}
		c.log.WithComponent("feed").Info("connection closed")
	})
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Run drives the dial/read/redial loop until the context is cancelled or
// Close is called. When it returns, the event channel is closed so the
// dispatcher sees no further events.
func (c *Conn) Run(ctx context.Context) {
	defer c.channels.CloseEvents()

	log := c.log.WithComponent("feed").WithFields(logger.Fields{"session": c.sessionID})
	first := true

	for {
		if ctx.Err() != nil || c.isClosed() {
			return
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		ws, err := c.dial(ctx)
		if err != nil {
			log.WithError(err).Warn("failed to connect to analytics feed")
			c.pushLocal(ctx, models.EventConnectError, models.ErrorPayload{Message: err.Error()})
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.ws = ws
		c.connected = true
		c.mu.Unlock()

		if !first {
			logger.IncrementReconnect()
		}
		first = false

		log.WithFields(logger.Fields{"url": c.cfg.URL}).Info("connected to analytics feed")
		c.pushLocal(ctx, models.EventConnect, nil)

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.writePump(ctx, ws, done)
		}()

		c.readLoop(ctx, ws)

		close(done)
		wg.Wait()

		c.mu.Lock()
		c.ws = nil
		c.connected = false
		c.mu.Unlock()

		if ctx.Err() != nil || c.isClosed() {
			return
		}

		log.Warn("analytics feed disconnected, reconnecting")
		c.pushLocal(ctx, models.EventDisconnect, nil)

		if !c.waitRetry(ctx) {
			return
		}
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	query := endpoint.Query()
	query.Set("session", c.sessionID)
	endpoint.RawQuery = query.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("User-Agent", "CostLens/1.0")

	ws, resp, err := dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return ws, nil
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	log := c.log.WithComponent("feed").WithFields(logger.Fields{"worker": "read_pump"})

	resetDeadline := func() {
		if c.cfg.ReadTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
	}
	resetDeadline()
	ws.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !c.isClosed() && ctx.Err() == nil {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}
		resetDeadline()

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.WithError(err).Warn("malformed frame, dropping")
			continue
		}
		if env.Event == "" {
			log.Warn("frame without event name, dropping")
			continue
		}

		if c.channels.SendEvent(ctx, env) {
			logger.IncrementEventRead(env.Event, len(data))
		} else {
			log.WithFields(logger.Fields{"event": env.Event}).Warn("event channel full, dropping event")
		}
	}
}

func (c *Conn) writePump(ctx context.Context, ws *websocket.Conn, done chan struct{}) {
	log := c.log.WithComponent("feed").WithFields(logger.Fields{"worker": "write_pump"})

	pingInterval := c.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case env := <-c.channels.Emits:
			if c.cfg.WriteTimeout > 0 {
				ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if err := ws.WriteJSON(env); err != nil {
				log.WithError(err).WithFields(logger.Fields{"event": env.Event}).Warn("failed to write outbound event")
				return
			}
			logger.LogDataFlowEntry(log, "emit_channel", "analytics_ws", 1, env.Event)
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.WithError(err).Warn("websocket ping failed")
				return
			}
		}
	}
}

// pushLocal forwards a transport-synthesized lifecycle event into the same
// channel the server events arrive on, so the dispatcher folds them in
// arrival order.
func (c *Conn) pushLocal(ctx context.Context, event string, payload interface{}) {
	env := models.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.log.WithComponent("feed").WithError(err).Warn("failed to marshal lifecycle payload")
			return
		}
		env.Data = data
	}

	if !c.channels.SendEvent(ctx, env) {
		c.log.WithComponent("feed").WithFields(logger.Fields{"event": event}).Warn("event channel full, dropping lifecycle event")
	}
}

func (c *Conn) waitRetry(ctx context.Context) bool {
	delay := c.cfg.Reconnect.Delay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	case <-timer.C:
		return true
	}
}
