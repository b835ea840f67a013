package usecase

import (
	"context"
	"testing"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/repository"
	xlogger "SentiTrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreReload(t *testing.T) {
	src := repository.NewStaticConfigSource(symbolConfig("aapl"), symbolConfig("TSLA"))
	store := NewConfigStore(src, xlogger.Nop())

	assert.Zero(t, store.Current().Len())

	snap, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version())
	assert.Equal(t, 2, snap.Len())
	_, ok := store.Current().Get("AAPL")
	assert.True(t, ok)
}

func TestConfigStoreKeepsSnapshotOnFailure(t *testing.T) {
	src := repository.NewStaticConfigSource(symbolConfig("AAPL"))
	store := NewConfigStore(src, xlogger.Nop())
	first, err := store.Reload(context.Background())
	require.NoError(t, err)

	src.Set(nil, assert.AnError)
	snap, err := store.Reload(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Same(t, first, snap)
	assert.Same(t, first, store.Current())
}

func TestConfigStoreRecordsInvalidActive(t *testing.T) {
	bad := symbolConfig("NVDA")
	bad.SentimentThreshold = 1.5
	badInactive := symbolConfig("AMD")
	badInactive.IsActive = false
	badInactive.MaxPositionSize = -1

	src := repository.NewStaticConfigSource(symbolConfig("AAPL"), bad, badInactive)
	store := NewConfigStore(src, xlogger.Nop())
	snap, err := store.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Len())
	require.Contains(t, snap.Invalid(), "NVDA")
	assert.ErrorIs(t, snap.Invalid()["NVDA"], models.ErrConfiguration)
	assert.NotContains(t, snap.Invalid(), "AMD")
}

func TestConfigSnapshotIsStableAcrossReload(t *testing.T) {
	src := repository.NewStaticConfigSource(symbolConfig("AAPL"))
	store := NewConfigStore(src, xlogger.Nop())
	_, err := store.Reload(context.Background())
	require.NoError(t, err)
	held := store.Current()

	changed := symbolConfig("AAPL")
	changed.SentimentThreshold = 0.9
	src.Set([]models.SymbolConfig{changed}, nil)
	_, err = store.Reload(context.Background())
	require.NoError(t, err)

	cfg, _ := held.Get("AAPL")
	assert.Equal(t, 0.6, cfg.SentimentThreshold)
	cfg, _ = store.Current().Get("AAPL")
	assert.Equal(t, 0.9, cfg.SentimentThreshold)
}
