package web

// reload.go serializes directory reloads and runs them on a schedule.
//
// Only one reload reads the directory at a time. A reload that cannot get the
// slot within reloadWait fails with errReloadBusy so HTTP callers get a quick
// 409 instead of queueing behind a slow disk. Shutdown waits for a running
// reload to finish.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// errReloadBusy is mapped to RLD001 by asset.MapError.
var errReloadBusy = errors.New("reload already in progress")

// reloadWait is how long a reload waits for the running one to finish.
const reloadWait = 5 * time.Second

// reloadGate is a single-slot semaphore.
type reloadGate struct {
	slot    chan struct{}
	maxWait time.Duration
}

func newReloadGate(maxWait time.Duration) *reloadGate {
	return &reloadGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// acquire takes the slot, waiting up to maxWait. The caller must release it.
func (g *reloadGate) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errReloadBusy
	}
}

func (g *reloadGate) release() {
	<-g.slot
}

// busy reports whether a reload holds the slot.
func (g *reloadGate) busy() bool {
	return len(g.slot) > 0
}

// waitForDrain blocks until no reload is running or ctx is done.
func (g *reloadGate) waitForDrain(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		<-g.slot
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartReloadScheduler rereads the directory every interval until ctx is
// cancelled. A failed reload is logged and the previous snapshot stays.
func (s *Server) StartReloadScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("reload scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reload scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduledReload(ctx)
		}
	}
}

func (s *Server) runScheduledReload(ctx context.Context) {
	start := time.Now()

	result, err := s.Reload(ctx)
	switch {
	case errors.Is(err, errReloadBusy):
		slog.Debug("scheduled reload skipped, another reload is running")
	case err != nil:
		if ctx.Err() == nil {
			slog.Error("scheduled reload failed", "error", err)
		}
	default:
		slog.Debug("scheduled reload completed",
			"records", len(result.Records),
			"errors", len(result.Errors),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
