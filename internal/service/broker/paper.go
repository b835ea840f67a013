package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"SentiTrade/internal/domain/models"
	domsvc "SentiTrade/internal/domain/service"
)

// PaperBroker fills market orders immediately at the last known price.
type PaperBroker struct {
	prices domsvc.PriceSource
	seq    atomic.Int64
	mu     sync.Mutex
	orders map[string]models.OrderUpdate
	now    func() time.Time
}

func NewPaperBroker(prices domsvc.PriceSource) *PaperBroker {
	return &PaperBroker{prices: prices, orders: make(map[string]models.OrderUpdate), now: time.Now}
}

func (b *PaperBroker) Name() string { return "paper" }

func (b *PaperBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderUpdate, error) {
	if err := ctx.Err(); err != nil {
		return models.OrderUpdate{}, err
	}
	if req.Quantity <= 0 || !req.Side.Valid() {
		return models.OrderUpdate{}, models.PermanentBrokerError(fmt.Errorf("invalid order %s %d %s", req.Side, req.Quantity, req.Symbol))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.orders[req.ClientOrderID]; ok {
		return prev, nil
	}
	price, ok := b.prices.LastPrice(req.Symbol)
	if !ok {
		return models.OrderUpdate{}, models.PermanentBrokerError(fmt.Errorf("no price for %s", req.Symbol))
	}
	upd := models.OrderUpdate{
		OrderID:        "paper-" + strconv.FormatInt(b.seq.Add(1), 10),
		ClientOrderID:  req.ClientOrderID,
		State:          models.OrderFilled,
		FilledQuantity: req.Quantity,
		FillPrice:      price,
		UpdatedAt:      b.now(),
	}
	b.orders[req.ClientOrderID] = upd
	return upd, nil
}

func (b *PaperBroker) OrderStatus(ctx context.Context, clientOrderID string) (models.OrderUpdate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	upd, ok := b.orders[clientOrderID]
	if !ok {
		return models.OrderUpdate{}, fmt.Errorf("order %s: %w", clientOrderID, models.ErrNotFound)
	}
	return upd, nil
}

var _ domsvc.Broker = (*PaperBroker)(nil)
