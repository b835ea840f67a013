package repository

import (
	"context"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisSentimentStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSentimentStore(client, time.Hour), mr
}

func TestRedisSentimentStoreAppendAndFetch(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, models.SentimentObservation{
		Symbol: "AAPL", Source: models.SourceTwitter, Sentiment: 0.5, Confidence: 0.9, Timestamp: now.Add(-30 * time.Minute),
	}))
	require.NoError(t, s.Append(ctx, models.SentimentObservation{
		ID: "n-1", Symbol: "AAPL", Source: models.SourceNews, Sentiment: -0.2, Confidence: 1, Timestamp: now.Add(-time.Minute),
	}))
	// identical payloads under another ID stay distinct members
	require.NoError(t, s.Append(ctx, models.SentimentObservation{
		ID: "n-2", Symbol: "AAPL", Source: models.SourceNews, Sentiment: -0.2, Confidence: 1, Timestamp: now.Add(-time.Minute),
	}))

	all, err := s.FetchObservations(ctx, "AAPL", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	recent, err := s.FetchObservations(ctx, "AAPL", now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.SourceNews, recent[0].Source)
	assert.Equal(t, now.Add(-time.Minute).UnixNano(), recent[0].Timestamp.UnixNano())

	assert.True(t, mr.Exists("sentiment:AAPL:news"))
	assert.Greater(t, mr.TTL("sentiment:AAPL:news"), time.Duration(0))

	none, err := s.FetchObservations(ctx, "MSFT", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRedisSentimentStoreAppendSameIDOnce(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	o := models.SentimentObservation{
		ID: "k-obs-0-42", Symbol: "AAPL", Source: models.SourceTwitter, Sentiment: 0.9, Confidence: 1, Timestamp: time.Now(),
	}

	require.NoError(t, s.Append(ctx, o))
	require.NoError(t, s.Append(ctx, o))

	members, err := mr.ZMembers("sentiment:AAPL:twitter")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	got, err := s.FetchObservations(ctx, "AAPL", o.Timestamp.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "k-obs-0-42", got[0].ID)
}

func TestRedisSentimentStoreTrimsRetention(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, models.SentimentObservation{
		Symbol: "AAPL", Source: models.SourceReddit, Sentiment: 0.1, Confidence: 1, Timestamp: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, s.Append(ctx, models.SentimentObservation{
		Symbol: "AAPL", Source: models.SourceReddit, Sentiment: 0.3, Confidence: 1, Timestamp: now,
	}))

	members, err := mr.ZMembers("sentiment:AAPL:reddit")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
