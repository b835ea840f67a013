package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	pkgkafka "SentiTrade/pkg/kafka"
	xutil "SentiTrade/pkg/util"
)

// ObservationsHandler consumes scored observations from Kafka.
type ObservationsHandler struct {
	topic   string
	svc     *SentimentService
	metrics drepo.Metrics
}

func NewObservationsHandler(topic string, svc *SentimentService, metrics drepo.Metrics) *ObservationsHandler {
	return &ObservationsHandler{topic: topic, svc: svc, metrics: metrics}
}

func (h *ObservationsHandler) Topic() string { return h.topic }

// message schema: {symbol, source, sentiment, confidence, t}; t in seconds or ms
type observationMessage struct {
	Symbol     string  `json:"symbol"`
	Source     string  `json:"source"`
	Sentiment  float64 `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	T          int64   `json:"t"`
}

// Handle decodes and ingests one message. Malformed payloads are marked
// non-retryable so the consumer sends them straight to the DLQ.
func (h *ObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m observationMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.NonRetryable(fmt.Errorf("decode observation: %w", err))
	}
	src, err := models.ParseSource(m.Source)
	if err != nil {
		h.metrics.RecordError("consumer_source")
		return pkgkafka.NonRetryable(fmt.Errorf("%w: %v", models.ErrInvalidObservation, err))
	}
	ts := time.Now()
	if m.T > 0 {
		ts = xutil.UnixAuto(m.T)
	} else if meta, ok := pkgkafka.MetaFromContext(ctx); ok && !meta.Time.IsZero() {
		ts = meta.Time
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	start := time.Now()
	obs := models.SentimentObservation{
		Symbol:     m.Symbol,
		Source:     src,
		Sentiment:  m.Sentiment,
		Confidence: m.Confidence,
		Timestamp:  ts,
	}
	if meta, ok := pkgkafka.MetaFromContext(ctx); ok {
		obs.ID = fmt.Sprintf("k-%s-%d-%d", meta.Topic, meta.Partition, meta.Offset)
	}
	err = h.svc.Ingest(ctx, obs)
	h.metrics.RecordLatency("observation_ingest_seconds", time.Since(start).Seconds())
	if errors.Is(err, models.ErrInvalidObservation) {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.NonRetryable(err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*ObservationsHandler)(nil)
