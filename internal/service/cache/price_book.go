package cache

import (
	"context"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
)

type quote struct {
	price float64
	at    time.Time
	exp   time.Time
}

// PriceBook keeps the last trade price per symbol. Entries older than the
// TTL are treated as missing so a dead feed cannot drive decisions.
type PriceBook struct {
	mu  sync.RWMutex
	m   map[string]quote
	ttl time.Duration
	now func() time.Time
}

// NewPriceBook creates a book; ttl <= 0 keeps prices forever.
func NewPriceBook(ttl time.Duration) *PriceBook {
	return &PriceBook{m: make(map[string]quote), ttl: ttl, now: time.Now}
}

// LastPrice returns a fresh price for symbol.
func (b *PriceBook) LastPrice(symbol string) (float64, bool) {
	symbol = models.NormalizeSymbol(symbol)
	b.mu.RLock()
	q, ok := b.m[symbol]
	b.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if !q.exp.IsZero() && b.now().After(q.exp) {
		b.mu.Lock()
		if cur, ok := b.m[symbol]; ok && cur.exp.Equal(q.exp) {
			delete(b.m, symbol)
		}
		b.mu.Unlock()
		return 0, false
	}
	return q.price, true
}

// Set records price observed at.
func (b *PriceBook) Set(symbol string, price float64, at time.Time) {
	var exp time.Time
	if b.ttl > 0 {
		exp = b.now().Add(b.ttl)
	}
	b.mu.Lock()
	b.m[models.NormalizeSymbol(symbol)] = quote{price: price, at: at, exp: exp}
	b.mu.Unlock()
}

// Process stores a tick; it is the pipeline sink.
func (b *PriceBook) Process(_ context.Context, t *models.Tick) error {
	b.Set(t.Symbol, t.Price, t.Timestamp)
	return nil
}

// Snapshot copies all fresh prices.
func (b *PriceBook) Snapshot() map[string]float64 {
	now := b.now()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]float64, len(b.m))
	for s, q := range b.m {
		if q.exp.IsZero() || !now.After(q.exp) {
			out[s] = q.price
		}
	}
	return out
}
