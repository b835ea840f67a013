package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Weights holds one weight per Source.
type Weights [NumSources]float64

// Of returns the weight for s.
func (w Weights) Of(s Source) float64 { return w[s] }

// Validate requires every weight to be in [0,1].
func (w Weights) Validate() error {
	for _, s := range AllSources() {
		v := w[s]
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("weight %s=%v outside [0,1]", s, v)
		}
	}
	return nil
}

// MarshalJSON renders weights keyed by source name.
func (w Weights) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumSources)
	for _, s := range AllSources() {
		m[s.String()] = w[s]
	}
	return json.Marshal(m)
}

func (w *Weights) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Weights
	for k, v := range m {
		s, err := ParseSource(k)
		if err != nil {
			return err
		}
		out[s] = v
	}
	*w = out
	return nil
}

// SymbolConfig is the per-symbol trading configuration.
type SymbolConfig struct {
	Symbol             string  `json:"symbol"`
	Weights            Weights `json:"weights"`
	SentimentThreshold float64 `json:"sentiment_threshold"`
	MaxPositionSize    float64 `json:"max_position_size"`
	IsActive           bool    `json:"is_active"`
}

// Validate checks the ranges a symbol needs before it can be traded.
func (c SymbolConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrConfiguration)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfiguration, c.Symbol, err)
	}
	if math.IsNaN(c.SentimentThreshold) || c.SentimentThreshold <= 0 || c.SentimentThreshold > 1 {
		return fmt.Errorf("%w: %s: threshold %v outside (0,1]", ErrConfiguration, c.Symbol, c.SentimentThreshold)
	}
	if math.IsNaN(c.MaxPositionSize) || c.MaxPositionSize < 0 {
		return fmt.Errorf("%w: %s: negative max_position_size", ErrConfiguration, c.Symbol)
	}
	return nil
}

// ConfigSnapshot is an immutable set of symbol configs loaded at one instant.
// It is replaced wholesale on reload and never mutated.
type ConfigSnapshot struct {
	version  int64
	loadedAt time.Time
	symbols  map[string]SymbolConfig
	order    []string
	invalid  map[string]error
}

// NewConfigSnapshot copies cfgs into a snapshot keyed by normalized symbol.
// Later duplicates win.
func NewConfigSnapshot(version int64, loadedAt time.Time, cfgs []SymbolConfig) *ConfigSnapshot {
	s := &ConfigSnapshot{
		version:  version,
		loadedAt: loadedAt,
		symbols:  make(map[string]SymbolConfig, len(cfgs)),
	}
	for _, c := range cfgs {
		c.Symbol = NormalizeSymbol(c.Symbol)
		if _, seen := s.symbols[c.Symbol]; !seen {
			s.order = append(s.order, c.Symbol)
		}
		s.symbols[c.Symbol] = c
	}
	sort.Strings(s.order)
	return s
}

// WithInvalid records active symbols whose config failed validation.
func (s *ConfigSnapshot) WithInvalid(invalid map[string]error) *ConfigSnapshot {
	s.invalid = invalid
	return s
}

// Invalid returns the active symbols that were rejected at load time.
func (s *ConfigSnapshot) Invalid() map[string]error { return s.invalid }

func (s *ConfigSnapshot) Version() int64      { return s.version }
func (s *ConfigSnapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *ConfigSnapshot) Len() int            { return len(s.order) }

// Get returns the config for symbol.
func (s *ConfigSnapshot) Get(symbol string) (SymbolConfig, bool) {
	c, ok := s.symbols[NormalizeSymbol(symbol)]
	return c, ok
}

// All returns every config sorted by symbol.
func (s *ConfigSnapshot) All() []SymbolConfig {
	out := make([]SymbolConfig, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.symbols[sym])
	}
	return out
}

// Active returns the configs with IsActive set, sorted by symbol.
func (s *ConfigSnapshot) Active() []SymbolConfig {
	out := make([]SymbolConfig, 0, len(s.order))
	for _, sym := range s.order {
		if c := s.symbols[sym]; c.IsActive {
			out = append(out, c)
		}
	}
	return out
}
