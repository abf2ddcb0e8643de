package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/bulwark/internal/protection"
)

// SweepManager periodically sweeps expired protection state: lapsed bans,
// stale rate windows, expired account locks, and rolled-off abuse counters.
type SweepManager struct {
	guard    *protection.Guard
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(guard *protection.Guard, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		guard:    guard,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	sm.runSweep()

	for {
		select {
		case <-ticker.C:
			sm.runSweep()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep() {
	start := time.Now()
	sm.guard.Sweep()
	sm.logger.Debug("protection sweep completed", slog.String("duration", time.Since(start).String()))
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
