package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/paper-trader/internal/market"
	"github.com/trogers1052/paper-trader/internal/models"
)

type fakeRecorder struct {
	mu        sync.Mutex
	err       error
	snapshots []*models.PortfolioSnapshot
}

func (r *fakeRecorder) RecordSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &models.PortfolioSnapshot{ID: int64(len(r.snapshots) + 1), Value: decimal.NewFromInt(1000), Timestamp: time.Now()}
	r.snapshots = append(r.snapshots, s)
	return s, nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

type alwaysOpen struct{}

func (alwaysOpen) IsOpen(time.Time) bool { return true }

func newTestScheduler(t *testing.T, rec Recorder, at time.Time) *Scheduler {
	t.Helper()
	session, err := market.DefaultSession()
	require.NoError(t, err)
	s := New(rec, session, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return at }
	return s
}

func nyTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestTick(t *testing.T) {
	tests := []struct {
		name     string
		at       string
		recorded bool
	}{
		{"saturday midday", "2026-10-17 12:00", false},
		{"sunday midday", "2026-10-18 12:00", false},
		{"weekday after close", "2026-10-19 17:00", false},
		{"weekday before open", "2026-10-19 09:29", false},
		{"at the open", "2026-10-19 09:30", true},
		{"midday", "2026-10-19 12:00", true},
		{"at the close", "2026-10-19 16:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			s := newTestScheduler(t, rec, nyTime(t, tt.at))

			recorded, err := s.Tick(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.recorded, recorded)
			if tt.recorded {
				assert.Equal(t, 1, rec.count())
			} else {
				assert.Zero(t, rec.count())
			}
		})
	}
}

func TestTickWithoutPortfolio(t *testing.T) {
	rec := &fakeRecorder{err: models.ErrPortfolioNotFound}
	s := newTestScheduler(t, rec, nyTime(t, "2026-10-19 11:00"))

	recorded, err := s.Tick(context.Background())

	assert.NoError(t, err)
	assert.False(t, recorded)
	assert.Zero(t, rec.count())
}

func TestTickSurfacesStoreErrors(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("connection refused")}
	s := newTestScheduler(t, rec, nyTime(t, "2026-10-19 11:00"))

	recorded, err := s.Tick(context.Background())

	assert.EqualError(t, err, "connection refused")
	assert.False(t, recorded)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(rec, alwaysOpen{}, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(&fakeRecorder{}, alwaysOpen{}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, DefaultInterval, s.interval)
}
