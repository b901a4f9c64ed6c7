package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is a point-in-time observation of total portfolio value
type PortfolioSnapshot struct {
	ID        int64           `json:"id"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// ChartPoint is one point of the portfolio value chart
type ChartPoint struct {
	X string          `json:"x"`
	Y decimal.Decimal `json:"y"`
}
