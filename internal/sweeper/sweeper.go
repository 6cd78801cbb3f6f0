// Package sweeper retires protected messages past their expiry.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"blackout.chat/internal/store"
)

// Sweeper periodically marks expired records deleted. It works on handles
// only and never loads message content. A record can stay visible up to one
// interval past its nominal expiry; that slack is accepted.
type Sweeper struct {
	store    store.Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(st store.Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("sweeper started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight sweep to finish. Safe to
// call twice, and safe when Start was never called.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass. A failure on one record is logged and skipped
// so it cannot stall the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	handles, err := s.store.ListExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("listing expired messages", "err", err)
		return
	}
	if len(handles) == 0 {
		return
	}

	s.logger.Info("retiring expired messages", "count", len(handles))
	for _, handle := range handles {
		if err := s.store.MarkDeleted(ctx, handle); err != nil {
			s.logger.Error("retiring message", "handle", handle, "err", err)
			continue
		}
	}
}
