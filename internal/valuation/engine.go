// Package valuation prices the portfolio against live quotes and records
// the result as a snapshot.
package valuation

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/market"
	"github.com/trogers1052/paper-trader/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel quote requests within one valuation
const DefaultConcurrency = 4

// Store defines the record store operations valuation needs
type Store interface {
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error)
	CreateSnapshot(ctx context.Context, s *models.PortfolioSnapshot) error
}

// Position is a holding priced at valuation time
type Position struct {
	Ticker       string          `json:"ticker"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	OpenPnL      decimal.Decimal `json:"open_pnl"`
	// PriceStale is set when no quote was available and average cost was used
	PriceStale bool `json:"price_stale"`
}

// Valuation is the total value of a portfolio at a point in time
type Valuation struct {
	Cash          decimal.Decimal `json:"cash"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	Total         decimal.Decimal `json:"total"`
	Positions     []Position      `json:"positions"`
	At            time.Time       `json:"at"`
}

// Engine computes portfolio value. It never takes the ledger lock, so quote
// requests do not block trading.
type Engine struct {
	quoter      market.Quoter
	store       Store
	window      market.Window
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

// New creates an Engine pricing holdings over market.FreshWindow
func New(quoter market.Quoter, store Store, log *slog.Logger) *Engine {
	return &Engine{
		quoter:      quoter,
		store:       store,
		window:      market.FreshWindow,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		log:         log.With("component", "valuation"),
	}
}

// Valuate prices every holding and sums cash plus market value.
// A holding with no quote is valued at its average cost; Valuate never fails.
func (e *Engine) Valuate(ctx context.Context, p *models.Portfolio, holdings []*models.Holding) *Valuation {
	positions := make([]Position, len(holdings))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, h := range holdings {
		g.Go(func() error {
			positions[i] = e.price(ctx, h)
			return nil
		})
	}
	_ = g.Wait()

	holdingsValue := decimal.Zero
	for _, pos := range positions {
		holdingsValue = holdingsValue.Add(pos.MarketValue)
	}

	return &Valuation{
		Cash:          p.Cash,
		HoldingsValue: holdingsValue,
		Total:         p.Cash.Add(holdingsValue),
		Positions:     positions,
		At:            e.now(),
	}
}

func (e *Engine) price(ctx context.Context, h *models.Holding) Position {
	pos := Position{
		Ticker:      h.Ticker,
		Quantity:    h.Quantity,
		AverageCost: h.AverageCost,
	}

	price, err := e.quoter.LastClose(ctx, h.Ticker, e.window)
	if err != nil {
		e.log.Warn("no quote, valuing at average cost",
			"ticker", h.Ticker, "average_cost", h.AverageCost.String(), "error", err)
		price = h.AverageCost
		pos.PriceStale = true
	}

	qty := decimal.NewFromInt(h.Quantity)
	pos.CurrentPrice = price
	pos.MarketValue = price.Mul(qty)
	pos.OpenPnL = price.Sub(h.AverageCost).Mul(qty)
	return pos
}

// Current loads the portfolio and its holdings and valuates them
func (e *Engine) Current(ctx context.Context) (*models.Portfolio, *Valuation, error) {
	p, err := e.store.GetPortfolio(ctx)
	if err != nil {
		return nil, nil, err
	}
	holdings, err := e.store.ListHoldings(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, e.Valuate(ctx, p, holdings), nil
}

// Record appends a snapshot of v to the snapshot series
func (e *Engine) Record(ctx context.Context, v *Valuation) (*models.PortfolioSnapshot, error) {
	s := &models.PortfolioSnapshot{
		Value:     v.Total,
		Timestamp: v.At,
	}
	if err := e.store.CreateSnapshot(ctx, s); err != nil {
		return nil, err
	}
	e.log.Debug("snapshot recorded", "value", s.Value.String(), "positions", len(v.Positions))
	return s, nil
}

// RecordCurrent valuates the current portfolio and records the snapshot.
// Returns models.ErrPortfolioNotFound when there is nothing to value.
func (e *Engine) RecordCurrent(ctx context.Context) (*models.PortfolioSnapshot, error) {
	_, v, err := e.Current(ctx)
	if err != nil {
		return nil, err
	}
	return e.Record(ctx, v)
}
