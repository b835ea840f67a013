package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	pkgkafka "SentiTrade/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedSend struct {
	topic string
	msgs  []pkgkafka.Message
}

type fakeSender struct{ sent []capturedSend }

func (f *fakeSender) Send(_ context.Context, topic string, msgs ...pkgkafka.Message) error {
	f.sent = append(f.sent, capturedSend{topic: topic, msgs: msgs})
	return nil
}

func (f *fakeSender) Close() error { return nil }

func TestKafkaTradePublisher(t *testing.T) {
	s := &fakeSender{}
	pub := NewKafkaTradePublisher(s, "trading.trades")

	rec := models.NewTradeRecord(models.TradeIntent{
		Symbol: "AAPL", Side: models.SideBuy, Quantity: 5, Price: 100, Origin: models.OriginBot,
	}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	rec.Status = models.StatusFilled

	require.NoError(t, pub.PublishTrade(context.Background(), rec))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "trading.trades", s.sent[0].topic)

	m := s.sent[0].msgs[0]
	assert.Equal(t, []byte("AAPL"), m.Key)
	assert.Equal(t, map[string]string{
		"event":    "trade.filled",
		"trade_id": rec.ID.String(),
		"origin":   "bot",
	}, m.Headers)

	b, err := json.Marshal(m.Value)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, "FILLED", body["status"])
	assert.Equal(t, "FILLED", body["persisted_status"])
	assert.Equal(t, "AAPL", body["symbol"])
}
