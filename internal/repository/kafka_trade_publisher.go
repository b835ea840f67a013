package repository

import (
	"context"
	"strings"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	pkgkafka "SentiTrade/pkg/kafka"
)

var _ domrepo.TradePublisher = (*KafkaTradePublisher)(nil)

// MessageSender is the part of the Kafka producer the publisher needs.
type MessageSender interface {
	Send(ctx context.Context, topic string, msgs ...pkgkafka.Message) error
	Close() error
}

// KafkaTradePublisher emits every trade record change keyed by symbol, so a
// symbol's events stay ordered within one partition.
type KafkaTradePublisher struct {
	producer MessageSender
	topic    string
}

func NewKafkaTradePublisher(producer MessageSender, topic string) *KafkaTradePublisher {
	return &KafkaTradePublisher{producer: producer, topic: topic}
}

type tradeEvent struct {
	*models.TradeRecord
	PersistedStatus models.PersistedStatus `json:"persisted_status"`
}

func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, r *models.TradeRecord) error {
	return p.producer.Send(ctx, p.topic, pkgkafka.Message{
		Key: []byte(r.Symbol),
		Value: tradeEvent{
			TradeRecord:     r,
			PersistedStatus: r.Status.Persisted(),
		},
		Headers: map[string]string{
			"event":    "trade." + strings.ToLower(string(r.Status)),
			"trade_id": r.ID.String(),
			"origin":   string(r.Origin),
		},
	})
}

func (p *KafkaTradePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopTradePublisher drops events when Kafka is not configured.
type NoopTradePublisher struct{}

func (NoopTradePublisher) PublishTrade(context.Context, *models.TradeRecord) error { return nil }
func (NoopTradePublisher) Close() error { return nil }
