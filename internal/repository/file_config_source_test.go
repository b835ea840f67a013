package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSymbols(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

var processDefaults = models.SymbolConfig{
	Weights:            models.Weights{0.4, 0.3, 0.3},
	SentimentThreshold: 0.5,
	MaxPositionSize:    1000,
}

func TestFileConfigSourceLayersDefaults(t *testing.T) {
	path := writeSymbols(t, `
defaults:
  sentiment_threshold: 0.6
  weights:
    news: 0.5
symbols:
  - symbol: aapl
  - symbol: TSLA
    weights:
      twitter: 0.1
    max_position_size: 5000
  - symbol: MSFT
    is_active: false
`)
	cfgs, err := NewFileConfigSource(path, processDefaults).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	aapl := cfgs[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.Equal(t, 0.6, aapl.SentimentThreshold)
	assert.Equal(t, 1000.0, aapl.MaxPositionSize)
	assert.Equal(t, models.Weights{0.4, 0.3, 0.5}, aapl.Weights)
	assert.True(t, aapl.IsActive)

	tsla := cfgs[1]
	assert.Equal(t, models.Weights{0.1, 0.3, 0.5}, tsla.Weights)
	assert.Equal(t, 5000.0, tsla.MaxPositionSize)

	assert.False(t, cfgs[2].IsActive)
}

func TestFileConfigSourceErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewFileConfigSource(filepath.Join(t.TempDir(), "missing.yaml"), processDefaults).Load(ctx)
	assert.Error(t, err)

	_, err = NewFileConfigSource(writeSymbols(t, "symbols: [\n"), processDefaults).Load(ctx)
	assert.Error(t, err)

	_, err = NewFileConfigSource(writeSymbols(t, "symbols:\n  - symbol: A\n  - symbol: a\n"), processDefaults).Load(ctx)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewFileConfigSource(writeSymbols(t, "symbols:\n  - symbol: A\n    weights:\n      tiktok: 1\n"), processDefaults).Load(ctx)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

// Range checks are left to the config store so one bad symbol does not sink the file.
func TestFileConfigSourceKeepsOutOfRangeValues(t *testing.T) {
	path := writeSymbols(t, "symbols:\n  - symbol: A\n    sentiment_threshold: 2\n")
	cfgs, err := NewFileConfigSource(path, processDefaults).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.ErrorIs(t, cfgs[0].Validate(), models.ErrConfiguration)
}
