package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ domrepo.SentimentStore = (*RedisSentimentStore)(nil)

// RedisSentimentStore keeps one sorted set per symbol and source, scored by
// observation time in unix nanoseconds. Sets are trimmed to the retention on
// every write and expire when a symbol goes quiet.
type RedisSentimentStore struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewRedisSentimentStore(client redis.UniversalClient, retention time.Duration) *RedisSentimentStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisSentimentStore{client: client, retention: retention, now: time.Now}
}

type storedObservation struct {
	ID         string  `json:"id"`
	Sentiment  float64 `json:"s"`
	Confidence float64 `json:"c"`
	T          int64   `json:"t"`
}

func sentimentKey(symbol string, src models.Source) string {
	return fmt.Sprintf("sentiment:%s:%s", symbol, src)
}

// Append adds o to its window. The member is derived from o.ID, so appending
// the same ID again leaves a single member; without an ID every call is new.
func (s *RedisSentimentStore) Append(ctx context.Context, o models.SentimentObservation) error {
	id := o.ID
	if id == "" {
		id = uuid.NewString()
	}
	member, err := json.Marshal(storedObservation{
		ID:         id,
		Sentiment:  o.Sentiment,
		Confidence: o.Confidence,
		T:          o.Timestamp.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	key := sentimentKey(o.Symbol, o.Source)
	cutoff := s.now().Add(-s.retention).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(o.Timestamp.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append observation %s: %w", key, err)
	}
	return nil
}

func (s *RedisSentimentStore) FetchObservations(ctx context.Context, symbol string, since time.Time) ([]models.SentimentObservation, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)
	sources := models.AllSources()
	cmds := make([]*redis.StringSliceCmd, len(sources))

	pipe := s.client.Pipeline()
	for i, src := range sources {
		cmds[i] = pipe.ZRangeByScore(ctx, sentimentKey(symbol, src), &redis.ZRangeBy{Min: min, Max: "+inf"})
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("fetch observations %s: %w", symbol, err)
	}

	var out []models.SentimentObservation
	for i, src := range sources {
		members, err := cmds[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("fetch observations %s: %w", sentimentKey(symbol, src), err)
		}
		for _, m := range members {
			var so storedObservation
			if err := json.Unmarshal([]byte(m), &so); err != nil {
				// a foreign member in our key space; skip it
				continue
			}
			out = append(out, models.SentimentObservation{
				ID:         so.ID,
				Symbol:     symbol,
				Source:     src,
				Sentiment:  so.Sentiment,
				Confidence: so.Confidence,
				Timestamp:  time.Unix(0, so.T),
			})
		}
	}
	return out, nil
}
