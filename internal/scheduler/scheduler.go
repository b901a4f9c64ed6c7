// Package scheduler records a portfolio value snapshot on a fixed cadence
// while the market is open.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/trogers1052/paper-trader/internal/models"
)

// DefaultInterval is the snapshot cadence
const DefaultInterval = 5 * time.Minute

// Recorder valuates the current portfolio and appends a snapshot
type Recorder interface {
	RecordSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error)
}

// Clock answers whether the market is open at a given instant
type Clock interface {
	IsOpen(t time.Time) bool
}

// Scheduler fires every interval independent of request traffic
type Scheduler struct {
	recorder Recorder
	clock    Clock
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Scheduler. A non-positive interval uses DefaultInterval.
func New(recorder Recorder, clock Clock, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		recorder: recorder,
		clock:    clock,
		interval: interval,
		now:      time.Now,
		log:      log.With("component", "scheduler"),
	}
}

// Run ticks until ctx is cancelled. Tick errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("snapshot scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error("snapshot tick failed", "error", err)
			}
		case <-ctx.Done():
			s.log.Info("snapshot scheduler stopped")
			return
		}
	}
}

// Tick records one snapshot if the market is open and a portfolio exists.
// It reports whether a snapshot was recorded. Market closed and no portfolio
// are skips, not errors.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if !s.clock.IsOpen(s.now()) {
		s.log.Debug("skipping snapshot", "reason", "market closed")
		return false, nil
	}

	snap, err := s.recorder.RecordSnapshot(ctx)
	if errors.Is(err, models.ErrPortfolioNotFound) {
		s.log.Debug("skipping snapshot", "reason", "no portfolio")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Info("snapshot recorded", "value", snap.Value.String(), "at", snap.Timestamp)
	return true, nil
}
