package repository

import (
	"context"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/google/uuid"
)

// SentimentStore serves the hot observation window.
type SentimentStore interface {
	Append(ctx context.Context, o models.SentimentObservation) error
	FetchObservations(ctx context.Context, symbol string, since time.Time) ([]models.SentimentObservation, error)
}

// ObservationArchive keeps every observation durably.
type ObservationArchive interface {
	Archive(ctx context.Context, o models.SentimentObservation) error
	RecentActivity(ctx context.Context, since time.Time) ([]models.SymbolActivity, error)
}

// SnapshotStore keeps aggregate history.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s models.SentimentSnapshot) error
	History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.SentimentSnapshot, error)
}

// PositionRepository persists positions. Get returns a flat position for an
// unknown symbol.
type PositionRepository interface {
	Get(ctx context.Context, symbol string) (models.Position, error)
	List(ctx context.Context) ([]models.Position, error)
	Save(ctx context.Context, p models.Position) error
}

// TradeFilter narrows List.
type TradeFilter struct {
	Symbol string
	Status []models.TradeStatus
	Limit  int
}

// TradeRepository persists trade records.
type TradeRepository interface {
	Create(ctx context.Context, r *models.TradeRecord) error
	Update(ctx context.Context, r *models.TradeRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.TradeRecord, error)
	List(ctx context.Context, f TradeFilter) ([]*models.TradeRecord, error)
}

// ConfigSource loads symbol configurations.
type ConfigSource interface {
	Load(ctx context.Context) ([]models.SymbolConfig, error)
}

// TradePublisher emits trade record changes to downstream consumers.
type TradePublisher interface {
	PublishTrade(ctx context.Context, r *models.TradeRecord) error
	Close() error
}

// Locker is a TTL lease shared between replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// PriceStream produces last-trade prices.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordCycle(outcome string, seconds float64)
	RecordDecision(symbol string, action models.Action)
	RecordRiskRejection(reason string)
	RecordOrder(side models.Side, result string)
	RecordScore(symbol string, score float64)
	RecordPosition(symbol string, quantity int64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
