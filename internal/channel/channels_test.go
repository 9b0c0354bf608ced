package channel

import (
	"context"
	"testing"

	"costlens/models"
)

func TestSendEventDropsWhenFull(t *testing.T) {
	c := NewChannels(1, 1)
	ctx := context.Background()

	if !c.SendEvent(ctx, models.Envelope{Event: models.EventConnect}) {
		t.Fatal("first send should succeed")
	}
	if c.SendEvent(ctx, models.Envelope{Event: models.EventConnect}) {
		t.Fatal("second send should drop on full buffer")
	}

	stats := c.GetStats()
	if stats.EventsSent != 1 || stats.EventsDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendEmitRespectsContext(t *testing.T) {
	c := NewChannels(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the buffer so the send cannot complete immediately.
	c.Emits <- models.Envelope{Event: models.EventParameterUpdate}

	if c.SendEmit(ctx, models.Envelope{Event: models.EventParameterUpdate}) {
		t.Fatal("send should fail once context is cancelled and buffer is full")
	}
}

func TestCloseEventsEndsRange(t *testing.T) {
	c := NewChannels(2, 2)
	c.SendEvent(context.Background(), models.Envelope{Event: models.EventDisconnect})
	c.CloseEvents()

	count := 0
	for range c.Events {
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 buffered envelope before close, got %d", count)
	}
}
