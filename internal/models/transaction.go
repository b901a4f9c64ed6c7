package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade side constants
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction is an immutable record of an executed buy or sell.
// PnL is only valid for sells.
type Transaction struct {
	ID        int64               `json:"id"`
	OrderID   string              `json:"order_id,omitempty"`
	Side      string              `json:"side"`
	Ticker    string              `json:"ticker"`
	Price     decimal.Decimal     `json:"price"`
	Quantity  int64               `json:"quantity"`
	PnL       decimal.NullDecimal `json:"pnl"`
	Timestamp time.Time           `json:"timestamp"`
}

// Total returns price times quantity
func (t *Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
