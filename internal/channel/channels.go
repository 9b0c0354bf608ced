package channel

import (
	"context"
	"sync"
	"time"

	"costlens/logger"
	"costlens/models"
)

type ChannelStats struct {
	EventsSent    int64
	EmitsSent     int64
	EventsDropped int64
	EmitsDropped  int64
}

// Channels carries every message between the transport and the rest of the
// client. Events holds inbound envelopes consumed by the single dispatcher
// loop; Emits holds outbound envelopes consumed by the transport's write
// pump. The Events channel is owned and closed by the transport.
type Channels struct {
	Events chan models.Envelope
	Emits  chan models.Envelope

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(eventBufferSize, emitBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Events: make(chan models.Envelope, eventBufferSize),
		Emits:  make(chan models.Envelope, emitBufferSize),
		log:    log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"event_buffer_size": eventBufferSize,
		"emit_buffer_size":  emitBufferSize,
	}).Info("event channels initialized")

	return c
}

// CloseEvents closes the inbound side, ending the dispatcher loop. Only the
// transport may call it, after its read pump has fully stopped.
func (c *Channels) CloseEvents() {
	close(c.Events)
	c.log.WithComponent("channels").Info("event channel closed")
}

func (c *Channels) IncrementEventsSent() {
	c.statsMutex.Lock()
	c.stats.EventsSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementEmitsSent() {
	c.statsMutex.Lock()
	c.stats.EmitsSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementEventsDropped() {
	c.statsMutex.Lock()
	c.stats.EventsDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementEmitsDropped() {
	c.statsMutex.Lock()
	c.stats.EmitsDropped++
	c.statsMutex.Unlock()
}

// SendEvent forwards an inbound envelope to the dispatcher without
// blocking. A full buffer drops the envelope; the caller decides whether
// that warrants a warning.
func (c *Channels) SendEvent(ctx context.Context, env models.Envelope) bool {
	select {
	case c.Events <- env:
		c.IncrementEventsSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementEventsDropped()
		return false
	}
}

// SendEmit queues an outbound envelope for the write pump without blocking.
func (c *Channels) SendEmit(ctx context.Context, env models.Envelope) bool {
	select {
	case c.Emits <- env:
		c.IncrementEmitsSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementEmitsDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting emits occupancy metrics for both buffers every
// interval until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	log := c.log.WithComponent("channel_buffers")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := c.GetStats()
				log.WithFields(logger.Fields{
					"event_buffer_length":   len(c.Events),
					"event_buffer_capacity": cap(c.Events),
					"emit_buffer_length":    len(c.Emits),
					"emit_buffer_capacity":  cap(c.Emits),
					"events_sent":           stats.EventsSent,
					"events_dropped":        stats.EventsDropped,
					"emits_sent":            stats.EmitsSent,
					"emits_dropped":         stats.EmitsDropped,
				}).Debug("channel occupancy")
			}
		}
	}()
}
