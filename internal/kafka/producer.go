package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/paper-trader/internal/models"
)

// portfolioKey keys events that are not about a single ticker
const portfolioKey = "portfolio"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// Publish publishes a portfolio event. Trade events are keyed by ticker so
// each ticker's trades stay ordered within one partition.
func (p *Producer) Publish(ctx context.Context, event *models.PortfolioEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.publish(ctx, eventKey(event), event)
}

// PublishOrderRequested publishes an order for the consumer side to execute
func (p *Producer) PublishOrderRequested(ctx context.Context, source string, order models.OrderData) error {
	event := models.OrderEvent{
		EventType: models.EventOrderRequested,
		Source:    source,
		Data:      order,
	}
	return p.publish(ctx, models.NormalizeTicker(order.Ticker), event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

func eventKey(event *models.PortfolioEvent) string {
	if event.Transaction != nil {
		return event.Transaction.Ticker
	}
	return portfolioKey
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
