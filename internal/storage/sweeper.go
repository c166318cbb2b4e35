package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// SweepRecorder receives sweep outcomes. *infrastructure.Metrics implements it.
type SweepRecorder interface {
	RecordSweep(ctx context.Context, removed int)
	RecordStorageFailure(ctx context.Context, op string)
}

// Sweeper deletes objects older than a retention period.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	workers   int
	recorder  SweepRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper creates a sweeper. recorder may be nil.
func NewSweeper(store Store, retention, interval time.Duration, recorder SweepRecorder, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		workers:   4,
		recorder:  recorder,
		logger:    logger.With(slog.String("component", "sweeper")),
		now:       time.Now,
	}
}

// Run sweeps once per interval until ctx is cancelled. It returns nil on
// cancellation; individual sweep failures are logged and retried on the
// next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.retention <= 0 || s.interval <= 0 {
		s.logger.InfoContext(ctx, "retention disabled, sweeper not started")
		return nil
	}

	s.logger.InfoContext(ctx, "sweeper started",
		slog.Duration("retention", s.retention),
		slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		}
	}
}

// Sweep deletes every expired object and returns how many were removed.
// A failed delete does not stop the others; the first failure is returned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		s.recordFailure(ctx, "list")
		return 0, err
	}

	cutoff := s.now().Add(-s.retention)
	var removed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	var firstErr atomic.Pointer[error]
	for _, obj := range objects {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		key := obj.Key
		g.Go(func() error {
			if err := s.store.Delete(gctx, key); err != nil {
				s.recordFailure(gctx, "delete")
				s.logger.WarnContext(gctx, "failed to delete expired object",
					slog.String("key", key),
					slog.String("error", err.Error()))
				firstErr.CompareAndSwap(nil, &err)
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(removed.Load())
	if s.recorder != nil {
		s.recorder.RecordSweep(ctx, n)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired objects removed", slog.Int("count", n))
	}
	if p := firstErr.Load(); p != nil {
		return n, *p
	}
	return n, nil
}

func (s *Sweeper) recordFailure(ctx context.Context, op string) {
	if s.recorder != nil {
		s.recorder.RecordStorageFailure(ctx, op)
	}
}
