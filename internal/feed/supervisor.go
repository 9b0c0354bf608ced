package feed

import (
	"context"
	"fmt"
	"sync"

	appconfig "costlens/config"
	"costlens/internal/channel"
	"costlens/logger"
)

// Supervisor owns the lifecycle of the single analytics connection. It
// establishes the connection once at startup and closes it unconditionally
// on shutdown. Reconnection belongs to the transport underneath; the
// supervisor only observes it.
type Supervisor struct {
	config   *appconfig.Config
	channels *channel.Channels
	conn     *Conn
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

// NewSupervisor creates the supervisor and the connection handle it owns.
// The handle is shared by reference with the reconciler and the parameter
// store; nobody else closes or re-creates it.
func NewSupervisor(cfg *appconfig.Config, channels *channel.Channels) *Supervisor {
	return &Supervisor{
		config:   cfg,
		channels: channels,
		conn:     NewConn(cfg.Feed, channels),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Conn exposes the live connection handle.
func (s *Supervisor) Conn() *Conn {
	return s.conn
}

// Start launches the transport loop. It may be called once per process.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("feed supervisor already running")
	}
	s.running = true
	s.mu.Unlock()

	log := s.log.WithComponent("feed_supervisor")
	log.WithFields(logger.Fields{
		"url":     s.config.Feed.URL,
		"session": s.conn.SessionID(),
	}).Info("starting analytics feed")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.conn.Run(ctx)
	}()

	log.Info("analytics feed started successfully")
	return nil
}

// Stop closes the connection and waits for the transport loop to drain.
// It runs on every exit path, including error exits.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.WithComponent("feed_supervisor").Info("stopping analytics feed")
	s.conn.Close()
	s.wg.Wait()
	s.log.WithComponent("feed_supervisor").Info("analytics feed stopped")
}
