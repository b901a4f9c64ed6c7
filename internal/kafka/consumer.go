package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/trader"
)

// OrderExecutor executes an order by side
type OrderExecutor interface {
	Execute(ctx context.Context, side string, req trader.OrderRequest) (*trader.TradeResult, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer executes ORDER_REQUESTED events from Kafka.
// Orders are idempotent by order_id, so redelivered messages are skipped.
type Consumer struct {
	reader   messageReader
	executor OrderExecutor
	log      *slog.Logger
}

// NewConsumer creates a new Kafka consumer for order events
func NewConsumer(brokers []string, topic, groupID string, executor OrderExecutor, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		executor: executor,
		log:      log.With("component", "order-consumer"),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("starting kafka consumer", "topic", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.log.Error("error reading message", "error", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error("error processing message",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

// processMessage handles a single Kafka message. Orders the ledger rejects
// are logged and dropped; only infrastructure failures are returned.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.log.Debug("received message",
		"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	if event.EventType != models.EventOrderRequested {
		c.log.Debug("ignoring event", "event_type", event.EventType)
		return nil
	}

	data := event.Data
	if data.OrderID == "" {
		return fmt.Errorf("order event from %s has no order_id", event.Source)
	}
	side := strings.ToUpper(strings.TrimSpace(data.Side))

	res, err := c.executor.Execute(ctx, side, trader.OrderRequest{
		OrderID:  data.OrderID,
		Ticker:   data.Ticker,
		Quantity: data.Quantity,
		Interval: data.Interval,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateOrder):
		c.log.Info("order already executed, skipping", "order_id", data.OrderID, "source", event.Source)
		return nil
	case rejected(err):
		c.log.Warn("order rejected", "order_id", data.OrderID, "source", event.Source, "reason", err.Error())
		return nil
	case err != nil:
		return fmt.Errorf("failed to execute order %s: %w", data.OrderID, err)
	}

	c.log.Info("order executed", "order_id", data.OrderID, "source", event.Source, "result", res.Message)
	return nil
}

// rejected reports whether err is a user-facing order rejection
func rejected(err error) bool {
	for _, target := range []error{
		ledger.ErrInvalidTicker,
		ledger.ErrInvalidAmount,
		ledger.ErrInsufficientFunds,
		ledger.ErrInsufficientShares,
		ledger.ErrUnknownTicker,
		trader.ErrInvalidInterval,
		trader.ErrInvalidSide,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
