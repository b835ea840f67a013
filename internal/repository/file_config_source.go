package repository

import (
	"context"
	"fmt"
	"os"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"

	"gopkg.in/yaml.v3"
)

var _ domrepo.ConfigSource = (*FileConfigSource)(nil)

// FileConfigSource reads per-symbol overrides from a YAML file. Fields a
// symbol leaves out fall back to the file defaults, then to the process
// defaults. The file is re-read on every Load.
type FileConfigSource struct {
	path     string
	defaults models.SymbolConfig
}

func NewFileConfigSource(path string, defaults models.SymbolConfig) *FileConfigSource {
	return &FileConfigSource{path: path, defaults: defaults}
}

type fileSymbol struct {
	Symbol             string             `yaml:"symbol"`
	Weights            map[string]float64 `yaml:"weights"`
	SentimentThreshold *float64           `yaml:"sentiment_threshold"`
	MaxPositionSize    *float64           `yaml:"max_position_size"`
	IsActive           *bool              `yaml:"is_active"`
}

type symbolsFile struct {
	Defaults fileSymbol   `yaml:"defaults"`
	Symbols  []fileSymbol `yaml:"symbols"`
}

func (s *FileConfigSource) Load(_ context.Context) ([]models.SymbolConfig, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	var f symbolsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse symbols file %s: %w", s.path, err)
	}

	base := s.defaults
	base.IsActive = true
	if base, err = f.Defaults.apply(base); err != nil {
		return nil, fmt.Errorf("symbols file defaults: %w", err)
	}

	out := make([]models.SymbolConfig, 0, len(f.Symbols))
	seen := make(map[string]bool, len(f.Symbols))
	for _, fs := range f.Symbols {
		cfg, err := fs.apply(base)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", fs.Symbol, err)
		}
		cfg.Symbol = models.NormalizeSymbol(fs.Symbol)
		if seen[cfg.Symbol] {
			return nil, fmt.Errorf("%w: duplicate symbol %s", models.ErrConfiguration, cfg.Symbol)
		}
		seen[cfg.Symbol] = true
		out = append(out, cfg)
	}
	return out, nil
}

func (fs fileSymbol) apply(cfg models.SymbolConfig) (models.SymbolConfig, error) {
	for name, w := range fs.Weights {
		src, err := models.ParseSource(name)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
		}
		cfg.Weights[src] = w
	}
	if fs.SentimentThreshold != nil {
		cfg.SentimentThreshold = *fs.SentimentThreshold
	}
	if fs.MaxPositionSize != nil {
		cfg.MaxPositionSize = *fs.MaxPositionSize
	}
	if fs.IsActive != nil {
		cfg.IsActive = *fs.IsActive
	}
	return cfg, nil
}
