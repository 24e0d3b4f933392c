package synchronizer

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
)

// RunWindows starts the windowing loop: every interval, it drives Authority
// and Worker through advance/begin, waits for the Worker's parallel refresh
// to drain, then drives them through promote/commit. No window runs at
// start, since there is nothing to refresh before any permission has been
// absorbed; the first window runs one interval after the call.
//
// RunWindows blocks until ctx is cancelled or a window step fails. A step
// cut short by ctx's cancellation ends the loop with a nil error; any other
// HTTP-level failure is fatal and aborts the loop, matching the no-retry
// failure semantics of the rest of the system.
func (s *Synchronizer) RunWindows(ctx context.Context, interval time.Duration) error {
	s.windowMu.Lock()
	defer s.windowMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.runOneWindow(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// runOneWindow executes a single advance → refresh → promote cycle.
func (s *Synchronizer) runOneWindow(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WindowDuration)

	s.accMu.Lock()
	if _, err := s.authority.Get(ctx, "/update", nil); err != nil {
		s.accMu.Unlock()
		return fmt.Errorf("synchronizer: advance_staging: %w", err)
	}
	workerUpdateErr := make(chan error, 1)
	go func() {
		_, err := s.worker.Get(ctx, "/update", nil)
		workerUpdateErr <- err
	}()
	s.accMu.Unlock()

	// Release-during-await: writers may proceed against the newly advanced
	// staging while the Worker's parallel refresh runs.
	if err := <-workerUpdateErr; err != nil {
		return fmt.Errorf("synchronizer: worker update: %w", err)
	}

	s.accMu.Lock()
	defer s.accMu.Unlock()

	if _, err := s.authority.Get(ctx, "/sync", nil); err != nil {
		return fmt.Errorf("synchronizer: promote_updating: %w", err)
	}
	if _, err := s.worker.Get(ctx, "/sync", nil); err != nil {
		return fmt.Errorf("synchronizer: worker sync: %w", err)
	}

	componentLogger := log.WithComponent("synchronizer")
	componentLogger.Debug().Dur("elapsed", timer.Duration()).Msg("window completed")
	return nil
}
