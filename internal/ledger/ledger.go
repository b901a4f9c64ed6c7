// Package ledger applies buy and sell orders to the portfolio with
// average-cost accounting and keeps cash non-negative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// Store defines the record store operations the ledger needs
type Store interface {
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)
	GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error)
	ApplyTrade(ctx context.Context, u *models.TradeUpdate) error
	ResetPortfolio(ctx context.Context, cash decimal.Decimal) (*models.Portfolio, error)
}

// Ledger is the single writer of portfolio cash and holdings.
// Every mutation runs read-validate-write under one lock, and the store
// commits the resulting TradeUpdate atomically.
type Ledger struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
	last  time.Time
	log   *slog.Logger
}

// New creates a Ledger over the given store
func New(store Store, log *slog.Logger) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		log:   log.With("component", "ledger"),
	}
}

// Order is a market order filled at a quoted price
type Order struct {
	OrderID  string
	Ticker   string
	Quantity int64
	Price    decimal.Decimal
}

// Buy fills a buy order. The holding is created or its average cost is
// recomputed as the quantity-weighted mean of the old position and this fill.
func (l *Ledger) Buy(ctx context.Context, o Order) (*models.Transaction, error) {
	ticker, err := validate(o)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(o.Quantity)
	totalCost := o.Price.Mul(qty)
	if p.Cash.LessThan(totalCost) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, totalCost.StringFixed(2), p.Cash.StringFixed(2))
	}

	holding, err := l.store.GetHolding(ctx, p.ID, ticker)
	switch {
	case errors.Is(err, models.ErrHoldingNotFound):
		holding = &models.Holding{
			PortfolioID: p.ID,
			Ticker:      ticker,
			Quantity:    o.Quantity,
			AverageCost: o.Price,
		}
	case err != nil:
		return nil, err
	default:
		updated := *holding
		holding = &updated
		newQty := holding.Quantity + o.Quantity
		holding.AverageCost = holding.CostBasis().Add(totalCost).Div(decimal.NewFromInt(newQty))
		holding.Quantity = newQty
	}

	txn := &models.Transaction{
		OrderID:   o.OrderID,
		Side:      models.SideBuy,
		Ticker:    ticker,
		Price:     o.Price,
		Quantity:  o.Quantity,
		Timestamp: l.stamp(),
	}
	update := &models.TradeUpdate{
		PortfolioID: p.ID,
		Cash:        p.Cash.Sub(totalCost),
		Holding:     holding,
		Transaction: txn,
	}
	if err := l.store.ApplyTrade(ctx, update); err != nil {
		return nil, err
	}

	l.log.Info("buy filled",
		"ticker", ticker, "quantity", o.Quantity, "price", o.Price.String(),
		"average_cost", holding.AverageCost.String(), "cash", update.Cash.String())
	return txn, nil
}

// Sell fills a sell order against an existing holding and realizes
// (price - average cost) * quantity. Selling down to zero deletes the holding.
func (l *Ledger) Sell(ctx context.Context, o Order) (*models.Transaction, error) {
	ticker, err := validate(o)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	holding, err := l.store.GetHolding(ctx, p.ID, ticker)
	if errors.Is(err, models.ErrHoldingNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	if err != nil {
		return nil, err
	}
	if o.Quantity > holding.Quantity {
		return nil, fmt.Errorf("%w: selling %d %s, own %d", ErrInsufficientShares, o.Quantity, ticker, holding.Quantity)
	}

	qty := decimal.NewFromInt(o.Quantity)
	pnl := o.Price.Sub(holding.AverageCost).Mul(qty)
	proceeds := o.Price.Mul(qty)

	updated := *holding
	holding = &updated
	holding.Quantity -= o.Quantity
	txn := &models.Transaction{
		OrderID:   o.OrderID,
		Side:      models.SideSell,
		Ticker:    ticker,
		Price:     o.Price,
		Quantity:  o.Quantity,
		PnL:       decimal.NewNullDecimal(pnl),
		Timestamp: l.stamp(),
	}
	update := &models.TradeUpdate{
		PortfolioID:   p.ID,
		Cash:          p.Cash.Add(proceeds),
		Holding:       holding,
		RemoveHolding: holding.Quantity == 0,
		Transaction:   txn,
	}
	if err := l.store.ApplyTrade(ctx, update); err != nil {
		return nil, err
	}

	l.log.Info("sell filled",
		"ticker", ticker, "quantity", o.Quantity, "price", o.Price.String(),
		"pnl", pnl.String(), "remaining", holding.Quantity, "cash", update.Cash.String())
	return txn, nil
}

// Reset replaces the portfolio with a fresh one holding only startingCash
func (l *Ledger) Reset(ctx context.Context, startingCash decimal.Decimal) (*models.Portfolio, error) {
	if startingCash.IsNegative() {
		return nil, fmt.Errorf("%w: starting cash %s is negative", ErrInvalidAmount, startingCash.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.ResetPortfolio(ctx, startingCash)
	if err != nil {
		return nil, err
	}
	l.log.Info("portfolio reset", "cash", startingCash.String())
	return p, nil
}

// stamp returns the current time, never earlier than the previous stamp.
// Callers hold l.mu.
func (l *Ledger) stamp() time.Time {
	now := l.now()
	if now.Before(l.last) {
		now = l.last
	}
	l.last = now
	return now
}

func validate(o Order) (string, error) {
	ticker := models.NormalizeTicker(o.Ticker)
	if ticker == "" {
		return "", fmt.Errorf("%w: ticker is required", ErrInvalidTicker)
	}
	if o.Quantity <= 0 {
		return "", fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidAmount, o.Quantity)
	}
	if !o.Price.IsPositive() {
		return "", fmt.Errorf("%w: no price for %s", ErrInvalidTicker, ticker)
	}
	return ticker, nil
}
