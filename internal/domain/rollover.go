package domain

import (
	"context"
	"errors"
	"log"
	"time"
)

// RolloverScheduler runs the day-boundary sealing pass on an interval. The
// pass itself is idempotent, so overlapping or repeated runs for the same
// boundary are harmless; that keeps sealing out of the request path and
// avoids partial-seal races across time zones.
type RolloverScheduler struct {
	engine           *Engine
	interval         time.Duration
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewRolloverScheduler constructs a scheduler around the engine.
func NewRolloverScheduler(engine *Engine, interval time.Duration) *RolloverScheduler {
	return &RolloverScheduler{
		engine:           engine,
		interval:         interval,
		logger:           log.New(log.Writer(), "[rollover] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the sealing loop. It should be called in a goroutine.
func (s *RolloverScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.shutdownComplete)
	}()

	for {
		if err := s.engine.RunRollover(ctx, s.engine.now()); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Printf("rollover pass error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the scheduler has stopped.
func (s *RolloverScheduler) Wait() {
	<-s.shutdownComplete
}
