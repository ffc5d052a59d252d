package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CombatTicker drives the combat round cadence: once per interval it runs
// the handler's full round pass. It implements the server.Service contract
// (blocking Start, idempotent Stop).
type CombatTicker struct {
	interval time.Duration
	handler  *CombatHandler
	logger   *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewCombatTicker creates a stopped CombatTicker.
//
// Precondition: interval must be > 0; handler and logger must be non-nil.
func NewCombatTicker(interval time.Duration, handler *CombatHandler, logger *zap.Logger) *CombatTicker {
	if interval <= 0 {
		panic("gameserver.NewCombatTicker: interval must be > 0")
	}
	return &CombatTicker{
		interval: interval,
		handler:  handler,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called. A tick that overruns the
// interval delays the next one rather than running concurrently.
func (t *CombatTicker) Start() error {
	t.logger.Info("combat ticker started",
		zap.Duration("interval", t.interval),
	)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return nil
		case <-ticker.C:
			started := time.Now()
			t.handler.Tick()
			elapsed := time.Since(started)
			if elapsed > t.interval {
				t.logger.Warn("combat tick overran its interval",
					zap.Duration("elapsed", elapsed),
					zap.Duration("interval", t.interval),
				)
			}
		}
	}
}

// Stop terminates the tick loop. Safe to call more than once.
func (t *CombatTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.logger.Info("combat ticker stopped")
	})
}
