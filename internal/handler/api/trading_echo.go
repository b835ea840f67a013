package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	models "SentiTrade/internal/domain/models"
	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/cache"
	xhttp "SentiTrade/pkg/http"
	"SentiTrade/pkg/http/middleware"
	xlogger "SentiTrade/pkg/logger"

	"github.com/labstack/echo/v4"
)

const activeSymbolsKey = "api:symbols:active"

// HealthCheck reports one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// TradingEchoHandler serves the trading engine's HTTP surface.
type TradingEchoHandler struct {
	logger    *xlogger.Logger
	sentiment *usecase.SentimentService
	trading   *usecase.TradingService
	bot       *usecase.BotController
	configs   *usecase.ConfigStore

	tradeLimiter middleware.Allower
	cache        cache.Service
	cacheTTL     time.Duration
	activeSince  time.Duration
	checks       map[string]HealthCheck
}

// HandlerOption customizes a TradingEchoHandler.
type HandlerOption func(*TradingEchoHandler)

// WithTradeLimiter throttles POST /trade per client.
func WithTradeLimiter(a middleware.Allower) HandlerOption {
	return func(h *TradingEchoHandler) { h.tradeLimiter = a }
}

// WithActiveSymbolsCache caches GET /symbols/active for ttl.
func WithActiveSymbolsCache(c cache.Service, ttl time.Duration) HandlerOption {
	return func(h *TradingEchoHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithActiveSince sets how far back /symbols/active looks for observations.
func WithActiveSince(d time.Duration) HandlerOption {
	return func(h *TradingEchoHandler) {
		if d > 0 {
			h.activeSince = d
		}
	}
}

// WithHealthCheck adds a named dependency to GET /ready.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *TradingEchoHandler) { h.checks[name] = check }
}

func NewTradingEchoHandler(
	logger *xlogger.Logger,
	sentiment *usecase.SentimentService,
	trading *usecase.TradingService,
	bot *usecase.BotController,
	configs *usecase.ConfigStore,
	opts ...HandlerOption,
) *TradingEchoHandler {
	h := &TradingEchoHandler{
		logger:      logger,
		sentiment:   sentiment,
		trading:     trading,
		bot:         bot,
		configs:     configs,
		activeSince: 24 * time.Hour,
		checks:      make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TradingEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)

	e.GET("/sentiment/:symbol", h.Sentiment)
	e.GET("/sentiment/:symbol/history", h.SentimentHistory)
	e.POST("/observations", h.Observe)
	e.GET("/symbols/active", h.ActiveSymbols)

	if h.tradeLimiter != nil {
		e.POST("/trade", h.Trade, middleware.RateLimit(h.tradeLimiter))
	} else {
		e.POST("/trade", h.Trade)
	}
	e.GET("/trades", h.Trades)
	e.GET("/portfolio", h.Portfolio)

	bot := e.Group("/bot")
	bot.POST("/start", h.StartBot)
	bot.POST("/stop", h.StopBot)
	bot.GET("/status", h.BotStatus)

	e.POST("/config/reload", h.ReloadConfig)
}

func (h *TradingEchoHandler) fail(c echo.Context, msg string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(msg, xlogger.String("path", c.Path()), xlogger.Error(err))
	} else {
		h.logger.Debug(msg, xlogger.String("path", c.Path()), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *TradingEchoHandler) Trade(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.trading.Submit(c.Request().Context(), usecase.ManualTrade{
		Symbol:         req.Symbol,
		Side:           models.Side(strings.ToUpper(req.Side)),
		Quantity:       req.Quantity,
		Price:          req.Price,
		SentimentScore: req.SentimentScore,
	})
	if err != nil {
		return h.fail(c, "manual trade failed", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *TradingEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.trading.Trades(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "list trades failed", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) Portfolio(c echo.Context) error {
	p, err := h.trading.Portfolio(c.Request().Context())
	if err != nil {
		return h.fail(c, "portfolio failed", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *TradingEchoHandler) StartBot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.bot.Start())
}

func (h *TradingEchoHandler) StopBot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.bot.Stop())
}

func (h *TradingEchoHandler) BotStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.bot.Status())
}

type reloadResponse struct {
	Version  int64             `json:"version"`
	LoadedAt time.Time         `json:"loaded_at"`
	Symbols  int               `json:"symbols"`
	Active   []string          `json:"active"`
	Invalid  map[string]string `json:"invalid,omitempty"`
}

// ReloadConfig re-reads the symbol configuration. A failed load leaves the
// previous snapshot in place.
func (h *TradingEchoHandler) ReloadConfig(c echo.Context) error {
	ctx := c.Request().Context()
	snap, err := h.configs.Reload(ctx)
	if err != nil {
		return h.fail(c, "config reload failed", &xhttp.AppError{
			Code:    "ERR_CONFIG_RELOAD",
			Message: err.Error(),
			Status:  http.StatusUnprocessableEntity,
			Err:     err,
		})
	}
	if h.cache != nil {
		if err := h.cache.Delete(ctx, activeSymbolsKey); err != nil {
			h.logger.Warn("invalidate active symbols cache failed", xlogger.Error(err))
		}
	}

	out := reloadResponse{
		Version:  snap.Version(),
		LoadedAt: snap.LoadedAt(),
		Symbols:  snap.Len(),
		Active:   make([]string, 0, len(snap.Active())),
	}
	for _, cfg := range snap.Active() {
		out.Active = append(out.Active, cfg.Symbol)
	}
	if inv := snap.Invalid(); len(inv) > 0 {
		out.Invalid = make(map[string]string, len(inv))
		for sym, e := range inv {
			out.Invalid[sym] = e.Error()
		}
	}
	return xhttp.SuccessResponse(c, out)
}

type healthResponse struct {
	Status string            `json:"status"`
	Bot    usecase.BotState  `json:"bot"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health is liveness only: 200 while the process serves requests.
func (h *TradingEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, healthResponse{Status: "ok", Bot: h.bot.Status().State})
}

// Ready runs the dependency checks and answers 503 if any of them fails.
func (h *TradingEchoHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := healthResponse{Status: "ok", Bot: h.bot.Status().State}
	if len(h.checks) > 0 {
		out.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out.Checks[name] = err.Error()
			out.Status = "degraded"
			continue
		}
		out.Checks[name] = "ok"
	}
	if out.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, out)
	}
	return xhttp.SuccessResponse(c, out)
}
