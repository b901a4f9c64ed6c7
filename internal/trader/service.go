// Package trader exposes the user-facing paper trading operations: viewing
// the portfolio, placing orders, listing transactions, resetting and quoting.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/market"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/valuation"
)

// DefaultStartingCash funds a newly created portfolio
var DefaultStartingCash = decimal.NewFromInt(1000)

// Store defines the record store reads the service needs. Writes go through
// the ledger and the valuation engine.
type Store interface {
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)
	CreatePortfolio(ctx context.Context, cash decimal.Decimal) (*models.Portfolio, error)
	GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error)
	ListTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)
	TransactionExistsByOrderID(ctx context.Context, orderID string) (bool, error)
	ListSnapshots(ctx context.Context, from, to time.Time) ([]*models.PortfolioSnapshot, error)
}

// Publisher receives domain events after they are committed
type Publisher interface {
	Publish(ctx context.Context, event *models.PortfolioEvent) error
}

// Dependencies wires a Service. Publisher is optional.
type Dependencies struct {
	Store        Store
	Ledger       *ledger.Ledger
	Engine       *valuation.Engine
	Quoter       market.Quoter
	Bars         market.BarSource
	Session      *market.Session
	Publisher    Publisher
	StartingCash decimal.Decimal
	QuoteTimeout time.Duration
}

// Service implements the user-facing operations
type Service struct {
	store        Store
	ledger       *ledger.Ledger
	engine       *valuation.Engine
	quoter       market.Quoter
	bars         market.BarSource
	session      *market.Session
	publisher    Publisher
	startingCash decimal.Decimal
	quoteTimeout time.Duration
	now          func() time.Time
	log          *slog.Logger

	createMu sync.Mutex
}

// New creates a Service
func New(deps Dependencies, log *slog.Logger) *Service {
	startingCash := deps.StartingCash
	if startingCash.IsZero() {
		startingCash = DefaultStartingCash
	}
	timeout := deps.QuoteTimeout
	if timeout <= 0 {
		timeout = market.DefaultTimeout
	}
	return &Service{
		store:        deps.Store,
		ledger:       deps.Ledger,
		engine:       deps.Engine,
		quoter:       deps.Quoter,
		bars:         deps.Bars,
		session:      deps.Session,
		publisher:    deps.Publisher,
		startingCash: startingCash,
		quoteTimeout: timeout,
		now:          time.Now,
		log:          log.With("component", "trader"),
	}
}

// OrderRequest is a market order placed by a user or received from Kafka.
// An empty OrderID gets a generated one; a repeated OrderID is rejected.
type OrderRequest struct {
	OrderID  string `json:"client_order_id,omitempty"`
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
	Interval string `json:"interval,omitempty"`
}

// TradeResult is an executed order with a human-readable summary
type TradeResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Message     string              `json:"message"`
}

// PortfolioView is everything shown on the portfolio page
type PortfolioView struct {
	Cash          decimal.Decimal           `json:"cash"`
	Holdings      []valuation.Position      `json:"holdings"`
	HoldingsValue decimal.Decimal           `json:"holdings_value"`
	TotalValue    decimal.Decimal           `json:"total_value"`
	Chart         []models.ChartPoint       `json:"chart"`
	MarketClosed  bool                      `json:"market_closed"`
	Snapshot      *models.PortfolioSnapshot `json:"snapshot"`
}

// TransactionHistory is the transaction log, newest first, with totals
type TransactionHistory struct {
	Transactions []*models.Transaction `json:"transactions"`
	Count        int                   `json:"count"`
	RealizedPnL  decimal.Decimal       `json:"realized_pnl"`
}

// ResetResult is the fresh portfolio after a reset
type ResetResult struct {
	Portfolio *models.Portfolio `json:"portfolio"`
	Message   string            `json:"message"`
}

// QuoteView is a ticker's recent price history
type QuoteView struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Interval  string          `json:"interval"`
	Intervals []string        `json:"intervals"`
	Bars      []models.Bar    `json:"bars"`
}

// EnsurePortfolio returns the portfolio, creating it with the starting cash
// when none exists
func (s *Service) EnsurePortfolio(ctx context.Context) (*models.Portfolio, error) {
	p, err := s.store.GetPortfolio(ctx)
	if !errors.Is(err, models.ErrPortfolioNotFound) {
		return p, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	p, err = s.store.GetPortfolio(ctx)
	if !errors.Is(err, models.ErrPortfolioNotFound) {
		return p, err
	}
	p, err = s.store.CreatePortfolio(ctx, s.startingCash)
	if err != nil {
		return nil, err
	}
	s.log.Info("created portfolio", "cash", p.Cash.String())
	return p, nil
}

// ViewPortfolio valuates the portfolio and records that valuation as a
// snapshot. Viewing is an observation, so every call appends to the series.
func (s *Service) ViewPortfolio(ctx context.Context) (*PortfolioView, error) {
	if _, err := s.EnsurePortfolio(ctx); err != nil {
		return nil, err
	}

	p, v, err := s.engine.Current(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.Record(ctx, v)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &models.PortfolioEvent{EventType: models.EventSnapshotRecorded, Snapshot: snap})

	chart, err := s.todayChart(ctx, p.Cash)
	if err != nil {
		return nil, err
	}

	return &PortfolioView{
		Cash:          v.Cash,
		Holdings:      v.Positions,
		HoldingsValue: v.HoldingsValue,
		TotalValue:    v.Total,
		Chart:         chart,
		MarketClosed:  !s.session.IsOpen(s.now()),
		Snapshot:      snap,
	}, nil
}

// todayChart returns today's snapshots in exchange-local time. With no
// snapshots yet, it returns a single noon point at the cash balance.
func (s *Service) todayChart(ctx context.Context, cash decimal.Decimal) ([]models.ChartPoint, error) {
	loc := s.session.Location()
	start, end := s.session.Day(s.now())

	snapshots, err := s.store.ListSnapshots(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return []models.ChartPoint{{X: s.session.Noon(s.now()).Format(time.RFC3339), Y: cash}}, nil
	}

	points := make([]models.ChartPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		points = append(points, models.ChartPoint{X: snap.Timestamp.In(loc).Format(time.RFC3339), Y: snap.Value})
	}
	return points, nil
}

// Buy prices the ticker over a 7-day window at the requested interval and
// fills the order
func (s *Service) Buy(ctx context.Context, req OrderRequest) (*TradeResult, error) {
	order, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	if _, err := s.EnsurePortfolio(ctx); err != nil {
		return nil, err
	}

	order.Price, err = s.resolvePrice(ctx, order.Ticker, market.BuyWindow(req.Interval))
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.Buy(ctx, order)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &models.PortfolioEvent{EventType: models.EventTradeExecuted, Transaction: txn})

	return &TradeResult{
		Transaction: txn,
		Message:     fmt.Sprintf("Bought %d shares of %s at %s", txn.Quantity, txn.Ticker, formatUSD(txn.Price)),
	}, nil
}

// Sell prices the ticker against the latest daily bar and fills the order
func (s *Service) Sell(ctx context.Context, req OrderRequest) (*TradeResult, error) {
	order, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}

	p, err := s.EnsurePortfolio(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetHolding(ctx, p.ID, order.Ticker); err != nil {
		if errors.Is(err, models.ErrHoldingNotFound) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownTicker, order.Ticker)
		}
		return nil, err
	}

	order.Price, err = s.resolvePrice(ctx, order.Ticker, market.SellWindow)
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.Sell(ctx, order)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &models.PortfolioEvent{EventType: models.EventTradeExecuted, Transaction: txn})

	return &TradeResult{
		Transaction: txn,
		Message: fmt.Sprintf("Sold %d shares of %s at %s (P&L: %s)",
			txn.Quantity, txn.Ticker, formatUSD(txn.Price), formatUSD(txn.PnL.Decimal)),
	}, nil
}

// Execute dispatches an order by side
func (s *Service) Execute(ctx context.Context, side string, req OrderRequest) (*TradeResult, error) {
	switch side {
	case models.SideBuy:
		return s.Buy(ctx, req)
	case models.SideSell:
		return s.Sell(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
}

// prepare validates the request and assigns an order id. It runs before
// any quote is fetched.
func (s *Service) prepare(ctx context.Context, req *OrderRequest) (ledger.Order, error) {
	ticker := models.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return ledger.Order{}, fmt.Errorf("%w: ticker is required", ledger.ErrInvalidTicker)
	}
	if req.Quantity <= 0 {
		return ledger.Order{}, fmt.Errorf("%w: quantity must be positive, got %d", ledger.ErrInvalidAmount, req.Quantity)
	}
	if req.Interval != "" && !market.ValidInterval(req.Interval) {
		return ledger.Order{}, fmt.Errorf("%w: %q", ErrInvalidInterval, req.Interval)
	}

	if req.OrderID == "" {
		req.OrderID = uuid.NewString()
	} else {
		exists, err := s.store.TransactionExistsByOrderID(ctx, req.OrderID)
		if err != nil {
			return ledger.Order{}, err
		}
		if exists {
			return ledger.Order{}, fmt.Errorf("%w: %s", models.ErrDuplicateOrder, req.OrderID)
		}
	}

	return ledger.Order{OrderID: req.OrderID, Ticker: ticker, Quantity: req.Quantity}, nil
}

// resolvePrice quotes a ticker for a trade. An unavailable quote means the
// trade cannot execute.
func (s *Service) resolvePrice(ctx context.Context, ticker string, w market.Window) (decimal.Decimal, error) {
	price, err := s.quoter.LastClose(ctx, ticker, w)
	if errors.Is(err, market.ErrUnavailable) {
		s.log.Info("trade rejected, no quote", "ticker", ticker, "window", w.String(), "error", err)
		return decimal.Zero, fmt.Errorf("%w: %s", ledger.ErrInvalidTicker, ticker)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// ListTransactions returns up to limit transactions newest first with the
// realized P&L summed over the sells among them. A non-positive limit
// returns the whole log.
func (s *Service) ListTransactions(ctx context.Context, limit int) (*TransactionHistory, error) {
	txns, err := s.store.ListTransactions(ctx, limit)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}

	realized := decimal.Zero
	for _, t := range txns {
		if t.PnL.Valid {
			realized = realized.Add(t.PnL.Decimal)
		}
	}
	return &TransactionHistory{Transactions: txns, Count: len(txns), RealizedPnL: realized}, nil
}

// Reset wipes the portfolio and starts over with startingCash
func (s *Service) Reset(ctx context.Context, startingCash decimal.Decimal) (*ResetResult, error) {
	p, err := s.ledger.Reset(ctx, startingCash)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &models.PortfolioEvent{EventType: models.EventPortfolioReset, Portfolio: p})

	return &ResetResult{
		Portfolio: p,
		Message:   fmt.Sprintf("Portfolio reset to %s", formatUSD(p.Cash)),
	}, nil
}

// Quote returns the last close and the 60-day bar history of a ticker at
// the given interval. An empty interval uses the daily default.
func (s *Service) Quote(ctx context.Context, ticker, interval string) (*QuoteView, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ledger.ErrInvalidTicker)
	}
	if interval == "" {
		interval = market.DefaultInterval
	}
	if !market.ValidInterval(interval) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	ctx, cancel := context.WithTimeout(ctx, s.quoteTimeout)
	defer cancel()

	bars, err := s.bars.Bars(ctx, ticker, market.ChartWindow(interval))
	if err != nil {
		s.log.Info("quote failed", "ticker", ticker, "interval", interval, "error", err)
		return nil, fmt.Errorf("%w: %s", ledger.ErrInvalidTicker, ticker)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no data for %s", ledger.ErrInvalidTicker, ticker)
	}

	return &QuoteView{
		Ticker:    ticker,
		Price:     bars[len(bars)-1].Close,
		Interval:  interval,
		Intervals: market.Intervals,
		Bars:      bars,
	}, nil
}

// Snapshots returns the snapshots recorded in [from, to), oldest first
func (s *Service) Snapshots(ctx context.Context, from, to time.Time) ([]*models.PortfolioSnapshot, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalidRange, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	snapshots, err := s.store.ListSnapshots(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []*models.PortfolioSnapshot{}
	}
	return snapshots, nil
}

// RecordSnapshot valuates the current portfolio and records it. It does not
// create a portfolio; with none it returns models.ErrPortfolioNotFound.
func (s *Service) RecordSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	snap, err := s.engine.RecordCurrent(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &models.PortfolioEvent{EventType: models.EventSnapshotRecorded, Snapshot: snap})
	return snap, nil
}

// MarketOpen reports whether the reference exchange is trading now
func (s *Service) MarketOpen() bool {
	return s.session.IsOpen(s.now())
}

func (s *Service) publish(ctx context.Context, event *models.PortfolioEvent) {
	if s.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event", "event_type", event.EventType, "error", err)
	}
}
