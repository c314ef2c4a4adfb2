// Package events carries the Kafka messages exchanged with the worker and
// with downstream ERP consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"erpsync/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OutboundCreated announces a new outbound message for the ERP to pull.
type OutboundCreated struct {
	ID         uint              `json:"id"`
	Shop       string            `json:"shop"`
	EntityCode models.EntityCode `json:"entityCode"`
	PlatformID string            `json:"shopifyId"`
	UpdateType string            `json:"updateType,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func NewOutboundCreated(msg *models.OutboundMessage) OutboundCreated {
	e := OutboundCreated{
		ID:         msg.ID,
		Shop:       msg.Shop,
		EntityCode: msg.EntityCode,
		PlatformID: msg.PlatformID,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.UpdateType != nil {
		e.UpdateType = *msg.UpdateType
	}
	return e
}

// SyncRequest asks the worker to dispatch one inbound message.
type SyncRequest struct {
	MessageID uint `json:"message_id"`
}

// Publisher writes events to a topic. Key orders events per shop or message.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher returns a Kafka publisher, or a no-op one when brokers is empty.
func NewPublisher(brokers []string, logger *zap.Logger) Publisher {
	if len(brokers) == 0 {
		logger.Info("kafka disabled; events are not published")
		return Nop{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       zap.NewStdLog(logger.With(zap.String("kafka_component", "producer"))),
	}
	logger.Info("kafka producer initialized", zap.Strings("brokers", brokers))
	return &kafkaPublisher{writer: writer, logger: logger}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.Debug("event published", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *kafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, interface{}) error { return nil }
func (Nop) Close() error { return nil }

// MessageKey is the partition key for events about one message.
func MessageKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
