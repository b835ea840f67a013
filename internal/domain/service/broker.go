package service

import (
	"context"

	"SentiTrade/internal/domain/models"
)

// Broker submits orders to an execution venue. Implementations classify
// failures with models.TransientBrokerError or models.PermanentBrokerError.
type Broker interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderUpdate, error)
	// OrderStatus looks an order up by the client order id sent at submission.
	// It returns models.ErrNotFound when the venue never saw the order.
	OrderStatus(ctx context.Context, clientOrderID string) (models.OrderUpdate, error)
	Name() string
}

// PriceSource answers the last known trade price for a symbol.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}
