package api

import (
	"errors"
	"time"

	models "SentiTrade/internal/domain/models"
	"SentiTrade/pkg/cache"
	xhttp "SentiTrade/pkg/http"
	xlogger "SentiTrade/pkg/logger"
	xutil "SentiTrade/pkg/util"

	"github.com/labstack/echo/v4"
)

func (h *TradingEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	agg, err := h.sentiment.Current(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "sentiment lookup failed", err)
	}
	return xhttp.SuccessResponse(c, agg)
}

func (h *TradingEchoHandler) SentimentHistory(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now().UTC()
	from, err := xutil.ParseTimeOr(req.From, now.Add(-24*time.Hour))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from: %v", err))
	}
	to, err := xutil.ParseTimeOr(req.To, now)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("to: %v", err))
	}
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	rows, err := h.sentiment.History(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "sentiment history failed", err)
	}
	if rows == nil {
		rows = []models.SentimentSnapshot{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Observe ingests one scored observation pushed over HTTP.
func (h *TradingEchoHandler) Observe(c echo.Context) error {
	req := &models.ObservationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	src, err := models.ParseSource(req.Source)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	ts := time.Now()
	if req.Timestamp != "" {
		t, err := xutil.ParseTime(req.Timestamp)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("timestamp: %v", err))
		}
		ts = t
	}

	obs := models.SentimentObservation{
		ID:         req.ID,
		Symbol:     req.Symbol,
		Source:     src,
		Sentiment:  req.Sentiment,
		Confidence: req.Confidence,
		Timestamp:  ts,
	}
	if err := h.sentiment.Ingest(c.Request().Context(), obs); err != nil {
		return h.fail(c, "observation ingest failed", err)
	}
	obs.Symbol = models.NormalizeSymbol(obs.Symbol)
	return xhttp.CreatedResponse(c, obs)
}

// ActiveSymbols lists active symbols with recent observations. Results are
// cached briefly when a cache is configured.
func (h *TradingEchoHandler) ActiveSymbols(c echo.Context) error {
	ctx := c.Request().Context()
	if h.cache != nil {
		var cached []models.ActiveSymbol
		err := h.cache.Get(ctx, activeSymbolsKey, &cached)
		if err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("active symbols cache read failed", xlogger.Error(err))
		}
	}

	rows, err := h.sentiment.ActiveSymbols(ctx, h.activeSince)
	if err != nil {
		return h.fail(c, "active symbols failed", err)
	}
	if rows == nil {
		rows = []models.ActiveSymbol{}
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, activeSymbolsKey, rows, h.cacheTTL); err != nil {
			h.logger.Warn("active symbols cache write failed", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
