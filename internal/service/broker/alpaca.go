package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	domsvc "SentiTrade/internal/domain/service"
	xhttp "SentiTrade/pkg/http"

	"golang.org/x/time/rate"
)

// AlpacaClient submits market orders through the Alpaca v2 REST API.
type AlpacaClient struct {
	http    *xhttp.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// AlpacaOption configures AlpacaClient.
type AlpacaOption func(*AlpacaClient)

// WithRateLimit caps requests per second with a burst.
func WithRateLimit(rps float64, burst int) AlpacaOption {
	return func(c *AlpacaClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithRequestTimeout bounds each REST call.
func WithRequestTimeout(d time.Duration) AlpacaOption {
	return func(c *AlpacaClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewAlpacaClient(baseURL, keyID, secret string, opts ...AlpacaOption) *AlpacaClient {
	c := &AlpacaClient{
		limiter: rate.NewLimiter(rate.Limit(3), 5),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(strings.TrimRight(baseURL, "/"),
		xhttp.WithTimeout(c.timeout),
		xhttp.WithHeader("APCA-API-KEY-ID", keyID),
		xhttp.WithHeader("APCA-API-SECRET-KEY", secret),
	)
	return c
}

func (c *AlpacaClient) Name() string { return "alpaca" }

type alpacaOrder struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"client_order_id"`
	Status         string  `json:"status"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
	UpdatedAt      string  `json:"updated_at"`
}

type alpacaError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *AlpacaClient) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderUpdate, error) {
	body := map[string]string{
		"symbol":          req.Symbol,
		"qty":             strconv.FormatInt(req.Quantity, 10),
		"side":            strings.ToLower(string(req.Side)),
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": req.ClientOrderID,
	}
	var out alpacaOrder
	status, err := c.do(ctx, http.MethodPost, "/v2/orders", nil, body, &out)
	if err != nil {
		// a retried submission collides with its own first attempt
		if status == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "client_order_id") {
			return c.OrderStatus(ctx, req.ClientOrderID)
		}
		return models.OrderUpdate{}, err
	}
	return out.update()
}

func (c *AlpacaClient) OrderStatus(ctx context.Context, clientOrderID string) (models.OrderUpdate, error) {
	var out alpacaOrder
	status, err := c.do(ctx, http.MethodGet, "/v2/orders:by_client_order_id",
		url.Values{"client_order_id": {clientOrderID}}, nil, &out)
	if status == http.StatusNotFound {
		return models.OrderUpdate{}, fmt.Errorf("order %s: %w", clientOrderID, models.ErrNotFound)
	}
	if err != nil {
		return models.OrderUpdate{}, err
	}
	return out.update()
}

func (c *AlpacaClient) do(ctx context.Context, method, path string, query url.Values, body interface{}, dest interface{}) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	err := c.http.Do(ctx, xhttp.Request{Method: method, Path: path, Query: query, Body: body}, dest)
	if err == nil {
		return http.StatusOK, nil
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		var ae alpacaError
		_ = json.Unmarshal(se.Body, &ae)
		msg := ae.Message
		if msg == "" {
			msg = strings.TrimSpace(string(se.Body))
		}
		return se.Status, classifyStatus(se.Status, fmt.Errorf("alpaca %w: %s", se, msg))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("alpaca %s %s: %w", method, path, ctxErr)
	}
	if errors.Is(err, xhttp.ErrDecode) {
		return 0, models.PermanentBrokerError(err)
	}
	return 0, models.TransientBrokerError(err)
}

func classifyStatus(code int, cause error) error {
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return models.TransientBrokerError(cause)
	default:
		return models.PermanentBrokerError(cause)
	}
}

func (o alpacaOrder) update() (models.OrderUpdate, error) {
	upd := models.OrderUpdate{
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		State:         mapAlpacaStatus(o.Status),
	}
	if o.FilledQty != "" {
		q, err := strconv.ParseFloat(o.FilledQty, 64)
		if err != nil {
			return upd, models.PermanentBrokerError(fmt.Errorf("filled_qty %q: %w", o.FilledQty, err))
		}
		upd.FilledQuantity = int64(q)
	}
	if o.FilledAvgPrice != nil && *o.FilledAvgPrice != "" {
		p, err := strconv.ParseFloat(*o.FilledAvgPrice, 64)
		if err != nil {
			return upd, models.PermanentBrokerError(fmt.Errorf("filled_avg_price %q: %w", *o.FilledAvgPrice, err))
		}
		upd.FillPrice = p
	}
	if t, err := time.Parse(time.RFC3339Nano, o.UpdatedAt); err == nil {
		upd.UpdatedAt = t
	}
	if upd.State == models.OrderRejected || upd.State == models.OrderCancelled {
		upd.Reason = "alpaca status " + o.Status
	}
	return upd, nil
}

func mapAlpacaStatus(s string) models.OrderState {
	switch s {
	case "filled":
		return models.OrderFilled
	case "canceled", "expired":
		return models.OrderCancelled
	case "rejected", "suspended":
		return models.OrderRejected
	default:
		return models.OrderPending
	}
}

var _ domsvc.Broker = (*AlpacaClient)(nil)
