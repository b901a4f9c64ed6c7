package models

import "time"

// Event type constants
const (
	EventTradeExecuted    = "TRADE_EXECUTED"
	EventPortfolioReset   = "PORTFOLIO_RESET"
	EventSnapshotRecorded = "SNAPSHOT_RECORDED"
	EventOrderRequested   = "ORDER_REQUESTED"
)

// PortfolioEvent represents a Kafka event for ledger changes
type PortfolioEvent struct {
	EventType   string             `json:"event_type"`
	Transaction *Transaction       `json:"transaction,omitempty"`
	Portfolio   *Portfolio         `json:"portfolio,omitempty"`
	Snapshot    *PortfolioSnapshot `json:"snapshot,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// OrderEvent is an order request received from Kafka
type OrderEvent struct {
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Data      OrderData `json:"data"`
}

// OrderData holds the order fields of an OrderEvent
type OrderData struct {
	OrderID  string `json:"order_id"`
	Side     string `json:"side"`
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
	Interval string `json:"interval,omitempty"`
}
