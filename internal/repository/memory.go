package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"

	"github.com/google/uuid"
)

var (
	_ domrepo.SentimentStore     = (*MemorySentimentStore)(nil)
	_ domrepo.ObservationArchive = (*MemorySentimentStore)(nil)
	_ domrepo.SnapshotStore      = (*MemorySnapshotStore)(nil)
	_ domrepo.PositionRepository = (*MemoryPositionRepository)(nil)
	_ domrepo.TradeRepository    = (*MemoryTradeRepository)(nil)
	_ domrepo.ConfigSource       = (*StaticConfigSource)(nil)
)

// MemorySentimentStore keeps observations in process. It serves both the hot
// window and the archive; entries older than retention are dropped on write.
type MemorySentimentStore struct {
	mu        sync.RWMutex
	bySymbol  map[string][]models.SentimentObservation
	retention time.Duration
	now       func() time.Time
}

func NewMemorySentimentStore(retention time.Duration) *MemorySentimentStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemorySentimentStore{
		bySymbol:  make(map[string][]models.SentimentObservation),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemorySentimentStore) Append(_ context.Context, o models.SentimentObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	kept := s.bySymbol[o.Symbol][:0]
	for _, prev := range s.bySymbol[o.Symbol] {
		if o.ID != "" && prev.ID == o.ID {
			continue
		}
		if !prev.Timestamp.Before(cutoff) {
			kept = append(kept, prev)
		}
	}
	s.bySymbol[o.Symbol] = append(kept, o)
	return nil
}

// Archive is a no-op: Append already holds the observation.
func (s *MemorySentimentStore) Archive(context.Context, models.SentimentObservation) error {
	return nil
}

func (s *MemorySentimentStore) FetchObservations(_ context.Context, symbol string, since time.Time) ([]models.SentimentObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SentimentObservation
	for _, o := range s.bySymbol[symbol] {
		if !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemorySentimentStore) RecentActivity(_ context.Context, since time.Time) ([]models.SymbolActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SymbolActivity, 0, len(s.bySymbol))
	for sym, obs := range s.bySymbol {
		a := models.SymbolActivity{Symbol: sym}
		for _, o := range obs {
			if !o.Timestamp.After(since) {
				continue
			}
			a.Observations++
			if o.Timestamp.After(a.LastObservedAt) {
				a.LastObservedAt = o.Timestamp
			}
		}
		if a.Observations > 0 {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// MemorySnapshotStore keeps aggregate history in process.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string][]models.SentimentSnapshot
	limit int
}

// NewMemorySnapshotStore keeps at most perSymbol snapshots per symbol.
func NewMemorySnapshotStore(perSymbol int) *MemorySnapshotStore {
	if perSymbol <= 0 {
		perSymbol = 10000
	}
	return &MemorySnapshotStore{snaps: make(map[string][]models.SentimentSnapshot), limit: perSymbol}
}

func (s *MemorySnapshotStore) SaveSnapshot(_ context.Context, snap models.SentimentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.snaps[snap.Symbol], snap)
	if len(list) > s.limit {
		list = list[len(list)-s.limit:]
	}
	s.snaps[snap.Symbol] = list
	return nil
}

func (s *MemorySnapshotStore) History(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.SentimentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.snaps[symbol]
	out := make([]models.SentimentSnapshot, 0)
	for i := len(list) - 1; i >= 0; i-- {
		t := list[i].ComputedAt
		if t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, list[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MemoryPositionRepository keeps positions in process.
type MemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[string]models.Position
}

func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{positions: make(map[string]models.Position)}
}

func (r *MemoryPositionRepository) Get(_ context.Context, symbol string) (models.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.positions[symbol]; ok {
		return p, nil
	}
	return models.FlatPosition(symbol), nil
}

func (r *MemoryPositionRepository) List(_ context.Context) ([]models.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *MemoryPositionRepository) Save(_ context.Context, p models.Position) error {
	if p.Quantity < 0 {
		return fmt.Errorf("save position %s: %w", p.Symbol, models.ErrNegativePosition)
	}
	r.mu.Lock()
	r.positions[p.Symbol] = p
	r.mu.Unlock()
	return nil
}

// MemoryTradeRepository keeps trade records in process. Stored records are
// copies so callers cannot mutate them behind the repository's back.
type MemoryTradeRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.TradeRecord
	order   []uuid.UUID
}

func NewMemoryTradeRepository() *MemoryTradeRepository {
	return &MemoryTradeRepository{records: make(map[uuid.UUID]models.TradeRecord)}
}

func (r *MemoryTradeRepository) Create(_ context.Context, rec *models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("trade %s already exists", rec.ID)
	}
	r.records[rec.ID] = *rec
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *MemoryTradeRepository) Update(_ context.Context, rec *models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return fmt.Errorf("trade %s: %w", rec.ID, models.ErrNotFound)
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *MemoryTradeRepository) Get(_ context.Context, id uuid.UUID) (*models.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, models.ErrNotFound)
	}
	return &rec, nil
}

// List returns matches newest first.
func (r *MemoryTradeRepository) List(_ context.Context, f domrepo.TradeFilter) ([]*models.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.TradeRecord
	for i := len(r.order) - 1; i >= 0; i-- {
		rec := r.records[r.order[i]]
		if f.Symbol != "" && rec.Symbol != f.Symbol {
			continue
		}
		if len(f.Status) > 0 && !hasStatus(f.Status, rec.Status) {
			continue
		}
		out = append(out, &rec)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func hasStatus(list []models.TradeStatus, s models.TradeStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// StaticConfigSource serves a fixed set of configs. Set replaces them.
type StaticConfigSource struct {
	mu   sync.RWMutex
	cfgs []models.SymbolConfig
	err  error
}

func NewStaticConfigSource(cfgs ...models.SymbolConfig) *StaticConfigSource {
	return &StaticConfigSource{cfgs: cfgs}
}

// Set replaces the served configs and the error returned by Load.
func (s *StaticConfigSource) Set(cfgs []models.SymbolConfig, err error) {
	s.mu.Lock()
	s.cfgs = cfgs
	s.err = err
	s.mu.Unlock()
}

func (s *StaticConfigSource) Load(context.Context) ([]models.SymbolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.SymbolConfig, len(s.cfgs))
	copy(out, s.cfgs)
	return out, nil
}
