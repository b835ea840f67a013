package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	domsvc "SentiTrade/internal/domain/service"
)

// ManualTrade is an operator-submitted order.
type ManualTrade struct {
	Symbol         string
	Side           models.Side
	Quantity       int64
	Price          *float64
	SentimentScore *float64
}

// PortfolioEntry is one position marked to market.
type PortfolioEntry struct {
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"`
	AveragePrice  *float64  `json:"average_price"`
	CurrentPrice  float64   `json:"current_price"`
	TotalValue    float64   `json:"total_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	LastUpdated   time.Time `json:"last_updated"`
}

// PortfolioTotals sums the entries.
type PortfolioTotals struct {
	TotalValue    float64 `json:"total_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Positions     int     `json:"positions"`
}

type Portfolio struct {
	Positions []PortfolioEntry `json:"positions"`
	Totals    PortfolioTotals  `json:"totals"`
}

// TradingService serves manual trades, the trade log and the portfolio.
type TradingService struct {
	configs  *ConfigStore
	executor *TradeExecutor
	tracker  *PositionTracker
	trades   drepo.TradeRepository
	prices   domsvc.PriceSource
	locks    *SymbolLocks

	lockTimeout   time.Duration
	accountEquity float64
}

func NewTradingService(
	configs *ConfigStore,
	executor *TradeExecutor,
	tracker *PositionTracker,
	trades drepo.TradeRepository,
	prices domsvc.PriceSource,
	locks *SymbolLocks,
	lockTimeout time.Duration,
	accountEquity float64,
) *TradingService {
	return &TradingService{
		configs:       configs,
		executor:      executor,
		tracker:       tracker,
		trades:        trades,
		prices:        prices,
		locks:         locks,
		lockTimeout:   lockTimeout,
		accountEquity: accountEquity,
	}
}

// Submit runs a manual trade through risk and the broker under the symbol
// lock. A zero-share sizing is reported as a risk rejection.
func (s *TradingService) Submit(ctx context.Context, t ManualTrade) (*models.TradeRecord, error) {
	sym := models.NormalizeSymbol(t.Symbol)
	cfg, ok := s.configs.Current().Get(sym)
	if !ok {
		return nil, fmt.Errorf("%w: no config for %s", models.ErrNotFound, sym)
	}

	price := 0.0
	if t.Price != nil {
		price = *t.Price
	} else if p, ok := s.prices.LastPrice(sym); ok {
		price = p
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s: %w", sym, models.ErrNoPrice)
	}

	release, err := s.locks.Acquire(ctx, sym, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	pos, err := s.tracker.Get(ctx, sym)
	if err != nil {
		return nil, err
	}
	if t.Side == models.SideSell {
		// shares behind an unsettled sell may already be gone at the broker
		pending, err := s.pendingSellQuantity(ctx, sym)
		if err != nil {
			return nil, err
		}
		pos.Quantity -= pending
		if pos.Quantity < 0 {
			pos.Quantity = 0
		}
	}
	equity, err := s.availableEquity(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.executor.Execute(ctx, models.TradeIntent{
		Symbol:         sym,
		Side:           t.Side,
		Quantity:       t.Quantity,
		Price:          price,
		SentimentScore: t.SentimentScore,
		Origin:         models.OriginManual,
	}, cfg, pos, equity)
	if err != nil {
		return res.Record, err
	}
	if res.Record == nil {
		return nil, models.NewRiskError(res.Risk.Reason)
	}
	return res.Record, nil
}

// Trades lists records newest first.
func (s *TradingService) Trades(ctx context.Context, symbol string, limit int) ([]*models.TradeRecord, error) {
	return s.trades.List(ctx, drepo.TradeFilter{Symbol: models.NormalizeSymbol(symbol), Limit: limit})
}

// Portfolio marks every position with the freshest price available.
func (s *TradingService) Portfolio(ctx context.Context) (Portfolio, error) {
	positions, err := s.tracker.List(ctx)
	if err != nil {
		return Portfolio{}, fmt.Errorf("list positions: %w", err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	out := Portfolio{Positions: make([]PortfolioEntry, 0, len(positions))}
	for _, p := range positions {
		if p.Quantity == 0 {
			continue
		}
		if live, ok := s.prices.LastPrice(p.Symbol); ok {
			p.LastKnownPrice = live
		}
		e := PortfolioEntry{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			CurrentPrice:  p.LastKnownPrice,
			TotalValue:    p.MarketValue(),
			UnrealizedPnL: p.UnrealizedPnL(),
			LastUpdated:   p.UpdatedAt,
		}
		if p.HasCost() {
			avg := p.AveragePrice
			e.AveragePrice = &avg
		}
		out.Positions = append(out.Positions, e)
		out.Totals.TotalValue += e.TotalValue
		out.Totals.UnrealizedPnL += e.UnrealizedPnL
	}
	out.Totals.Positions = len(out.Positions)
	return out, nil
}

func (s *TradingService) pendingSellQuantity(ctx context.Context, symbol string) (int64, error) {
	recs, err := s.trades.List(ctx, drepo.TradeFilter{
		Symbol: symbol,
		Status: []models.TradeStatus{models.StatusSubmitted},
	})
	if err != nil {
		return 0, fmt.Errorf("list submitted trades: %w", err)
	}
	var qty int64
	for _, r := range recs {
		if r.Side == models.SideSell {
			qty += r.Quantity
		}
	}
	return qty, nil
}

func (s *TradingService) availableEquity(ctx context.Context) (float64, error) {
	if s.accountEquity <= 0 {
		return math.Inf(1), nil
	}
	positions, err := s.tracker.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list positions: %w", err)
	}
	return s.accountEquity - openExposure(positions), nil
}
