package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
)

// TickSink receives ticks that passed the pipeline.
type TickSink interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between the market stream and the price book.
// It validates, drops stale or out-of-order prints, throttles per symbol and
// forwards to every sink.
type TickPipeline struct {
	sinks    []TickSink
	metrics  domrepo.Metrics
	maxRPS   int
	maxAge   time.Duration
	symbols  map[string]bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	lastTS   map[string]time.Time
	now      func() time.Time
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS sets the max ticks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithMaxAge drops prints older than d.
func WithMaxAge(d time.Duration) PipelineOption {
	return func(p *TickPipeline) {
		if d > 0 {
			p.maxAge = d
		}
	}
}

// WithSymbols restricts the pipeline to the given tickers.
func WithSymbols(symbols []string) PipelineOption {
	return func(p *TickPipeline) {
		if len(symbols) == 0 {
			return
		}
		p.symbols = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			p.symbols[models.NormalizeSymbol(s)] = true
		}
	}
}

// NewTickPipeline creates a pipeline forwarding to sinks.
func NewTickPipeline(metrics domrepo.Metrics, sinks []TickSink, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		sinks:    sinks,
		metrics:  metrics,
		maxRPS:   20,
		maxAge:   5 * time.Minute,
		lastSeen: make(map[string]time.Time),
		lastTS:   make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards t.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := p.now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	t.Symbol = models.NormalizeSymbol(t.Symbol)
	if p.symbols != nil && !p.symbols[t.Symbol] {
		return nil
	}
	if p.maxAge > 0 && start.Sub(t.Timestamp) > p.maxAge {
		p.metrics.RecordError("pipeline_stale")
		return nil
	}
	if !p.admit(t, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	for _, s := range p.sinks {
		if err := s.Process(ctx, t); err != nil {
			p.metrics.RecordError("pipeline_sink")
			return fmt.Errorf("pipeline sink: %w", err)
		}
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if math.IsNaN(t.Price) || t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("invalid price/volume")
	}
	return nil
}

// admit drops out-of-order prints and enforces maxRPS per symbol.
func (p *TickPipeline) admit(t *models.Tick, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.lastTS[t.Symbol]; ok && t.Timestamp.Before(prev) {
		return false
	}
	if p.maxRPS > 0 {
		last := p.lastSeen[t.Symbol]
		if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
			return false
		}
	}
	p.lastSeen[t.Symbol] = now
	p.lastTS[t.Symbol] = t.Timestamp
	return true
}
