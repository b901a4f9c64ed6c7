package valuation

import (
	"context"
	"errors"
	"fmt"
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

type fakeQuoter struct {
	mu      sync.Mutex
	prices  map[string]string
	windows []market.Window
}

func (q *fakeQuoter) LastClose(ctx context.Context, ticker string, w market.Window) (decimal.Decimal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.windows = append(q.windows, w)
	p, ok := q.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no data for %s", market.ErrUnavailable, ticker)
	}
	return decimal.RequireFromString(p), nil
}

type fakeStore struct {
	portfolio   *models.Portfolio
	holdings    []*models.Holding
	snapshots   []*models.PortfolioSnapshot
	snapshotErr error
}

func (s *fakeStore) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	if s.portfolio == nil {
		return nil, models.ErrPortfolioNotFound
	}
	return s.portfolio, nil
}

func (s *fakeStore) ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error) {
	return s.holdings, nil
}

func (s *fakeStore) CreateSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error {
	if s.snapshotErr != nil {
		return s.snapshotErr
	}
	snap.ID = int64(len(s.snapshots) + 1)
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(q market.Quoter, s Store) *Engine {
	e := New(q, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }
	return e
}

func TestValuate(t *testing.T) {
	portfolio := &models.Portfolio{ID: 1, Cash: d("250.50")}

	t.Run("cash only", func(t *testing.T) {
		e := newTestEngine(&fakeQuoter{}, &fakeStore{})

		v := e.Valuate(context.Background(), portfolio, nil)

		assert.True(t, d("250.50").Equal(v.Total))
		assert.True(t, v.HoldingsValue.IsZero())
		assert.Empty(t, v.Positions)
	})

	t.Run("sums live prices", func(t *testing.T) {
		q := &fakeQuoter{prices: map[string]string{"AAPL": "193.42", "MSFT": "410"}}
		e := newTestEngine(q, &fakeStore{})
		holdings := []*models.Holding{
			{Ticker: "AAPL", Quantity: 10, AverageCost: d("180")},
			{Ticker: "MSFT", Quantity: 2, AverageCost: d("400")},
		}

		v := e.Valuate(context.Background(), portfolio, holdings)

		assert.True(t, d("2754.20").Equal(v.HoldingsValue), "got %s", v.HoldingsValue)
		assert.True(t, d("3004.70").Equal(v.Total), "got %s", v.Total)
		require.Len(t, v.Positions, 2)
		assert.Equal(t, "AAPL", v.Positions[0].Ticker)
		assert.True(t, d("134.20").Equal(v.Positions[0].OpenPnL))
		assert.False(t, v.Positions[0].PriceStale)
		assert.Equal(t, "MSFT", v.Positions[1].Ticker)
		for _, w := range q.windows {
			assert.Equal(t, market.FreshWindow, w)
		}
	})

	t.Run("falls back to average cost when a quote is missing", func(t *testing.T) {
		q := &fakeQuoter{prices: map[string]string{"AAPL": "200"}}
		e := newTestEngine(q, &fakeStore{})
		holdings := []*models.Holding{
			{Ticker: "AAPL", Quantity: 1, AverageCost: d("150")},
			{Ticker: "DELISTED", Quantity: 3, AverageCost: d("12.5")},
		}

		v := e.Valuate(context.Background(), portfolio, holdings)

		assert.True(t, d("488").Equal(v.Total), "got %s", v.Total)
		stale := v.Positions[1]
		assert.True(t, stale.PriceStale)
		assert.True(t, d("12.5").Equal(stale.CurrentPrice))
		assert.True(t, stale.OpenPnL.IsZero())
	})

	t.Run("every quote missing still values the portfolio", func(t *testing.T) {
		e := newTestEngine(&fakeQuoter{}, &fakeStore{})
		holdings := make([]*models.Holding, 0, 20)
		for i := 0; i < 20; i++ {
			holdings = append(holdings, &models.Holding{Ticker: fmt.Sprintf("T%d", i), Quantity: 1, AverageCost: d("10")})
		}

		v := e.Valuate(context.Background(), portfolio, holdings)

		assert.True(t, d("450.50").Equal(v.Total))
		for i, pos := range v.Positions {
			assert.Equal(t, fmt.Sprintf("T%d", i), pos.Ticker)
		}
	})
}

func TestRecordCurrent(t *testing.T) {
	t.Run("records the valuation as a snapshot", func(t *testing.T) {
		store := &fakeStore{
			portfolio: &models.Portfolio{ID: 1, Cash: d("100")},
			holdings:  []*models.Holding{{Ticker: "AAPL", Quantity: 2, AverageCost: d("50")}},
		}
		e := newTestEngine(&fakeQuoter{prices: map[string]string{"AAPL": "60"}}, store)

		snap, err := e.RecordCurrent(context.Background())

		require.NoError(t, err)
		assert.True(t, d("220").Equal(snap.Value))
		assert.Equal(t, e.now(), snap.Timestamp)
		assert.Len(t, store.snapshots, 1)
	})

	t.Run("no portfolio", func(t *testing.T) {
		store := &fakeStore{}
		e := newTestEngine(&fakeQuoter{}, store)

		_, err := e.RecordCurrent(context.Background())

		assert.True(t, errors.Is(err, models.ErrPortfolioNotFound))
		assert.Empty(t, store.snapshots)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &fakeStore{
			portfolio:   &models.Portfolio{ID: 1, Cash: d("100")},
			snapshotErr: errors.New("disk full"),
		}
		e := newTestEngine(&fakeQuoter{}, store)

		_, err := e.RecordCurrent(context.Background())

		assert.EqualError(t, err, "disk full")
	})
}
