// Package supervisor drives the protocol client's reconnection loop
// (§5): sleep min(5·2^attempts, 60)s, attempt reconnect, reset the
// counter on a clean registration.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/config"
	"screencontrol-agent/internal/protocol"
)

const maxBackoff = 60 * time.Second

// Supervisor owns one protocol.Client's connect/reconnect lifecycle. The
// client itself is constructed once by the caller (with its dispatcher and
// registration payload already wired) and reused across attempts —
// protocol.Client.Run can be called again on the same instance once it
// returns.
type Supervisor struct {
	log    zerolog.Logger
	client *protocol.Client

	mu         sync.Mutex
	cfg        config.ConnectionConfig
	enabled    bool
	attemptCtx context.Context
	cancel     context.CancelFunc
	wake       chan struct{}
}

// New builds a Supervisor around client, initially configured with cfg.
// Run must be started in its own goroutine.
func New(log zerolog.Logger, client *protocol.Client, cfg config.ConnectionConfig) *Supervisor {
	return &Supervisor{
		log:     log,
		client:  client,
		cfg:     cfg,
		enabled: cfg.ConnectOnStartup,
		wake:    make(chan struct{}, 1),
	}
}

func (s *Supervisor) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks, driving connect attempts with exponential backoff, until ctx
// is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		enabled, url := s.enabled, s.cfg.ServerURL
		s.mu.Unlock()

		if !enabled || url == "" {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		attemptCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.attemptCtx, s.cancel = attemptCtx, cancel
		s.mu.Unlock()

		err := s.client.Run(attemptCtx, url)
		cancel()
		disconnectedByOperator := attemptCtx.Err() != nil && ctx.Err() == nil

		if ctx.Err() != nil {
			return
		}
		if err == nil && !disconnectedByOperator {
			attempts = 0
		}
		if disconnectedByOperator {
			attempts = 0
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		backoff := time.Duration(5<<uint(attempts)) * time.Second
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		attempts++

		s.log.Warn().Err(err).Dur("backoff", backoff).Msg("reconnect attempt failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		case <-s.wake:
		}
	}
}

// Status implements httpapi.Supervisor.
func (s *Supervisor) Status() map[string]any {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return map[string]any{
		"connected": s.client.State() == protocol.StateRegistered,
		"state":     s.client.State().String(),
		"agentId":   s.client.AgentID(),
		"serverUrl": cfg.ServerURL,
	}
}

// Connect implements httpapi.Supervisor: it swaps in a new connection
// config and, if a connection is already open, tears it down so Run picks
// up the new target immediately.
func (s *Supervisor) Connect(cfg config.ConnectionConfig) error {
	s.mu.Lock()
	s.cfg = cfg
	s.enabled = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.poke()
	return nil
}

// Disconnect implements httpapi.Supervisor: cancels the in-flight
// connection (if any) and stops the loop from immediately reconnecting.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	s.enabled = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Reconnect implements httpapi.Supervisor: re-enables the loop and wakes
// it immediately rather than waiting out any pending backoff.
func (s *Supervisor) Reconnect() {
	s.mu.Lock()
	s.enabled = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.poke()
}
