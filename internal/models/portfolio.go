package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the cash side of the paper trading account
type Portfolio struct {
	ID        int             `json:"id"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Holding represents a current stock position. A holding with zero quantity is never stored.
type Holding struct {
	ID          int             `json:"id"`
	PortfolioID int             `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CostBasis returns quantity times average cost
func (h *Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(decimal.NewFromInt(h.Quantity))
}

// NormalizeTicker trims and upper-cases a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// TradeUpdate is the complete set of writes produced by one executed trade.
// The record store applies it in a single database transaction.
type TradeUpdate struct {
	PortfolioID   int
	Cash          decimal.Decimal
	Holding       *Holding
	RemoveHolding bool
	Transaction   *Transaction
}
