package cache

import (
	"context"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceBookExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	b := NewPriceBook(time.Minute)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Process(context.Background(), &models.Tick{Symbol: "aapl", Price: 151.5, Timestamp: now}))
	p, ok := b.LastPrice("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 151.5, p)
	assert.Equal(t, map[string]float64{"AAPL": 151.5}, b.Snapshot())

	now = now.Add(2 * time.Minute)
	_, ok = b.LastPrice("AAPL")
	assert.False(t, ok)
	assert.Empty(t, b.Snapshot())
}

func TestPriceBookNoTTL(t *testing.T) {
	b := NewPriceBook(0)
	b.Set("TSLA", 200, time.Now())
	b.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	p, ok := b.LastPrice("tsla")
	assert.True(t, ok)
	assert.Equal(t, 200.0, p)

	_, ok = b.LastPrice("MSFT")
	assert.False(t, ok)
}
