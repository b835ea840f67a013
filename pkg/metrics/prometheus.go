package metrics

import (
	"SentiTrade/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	decisions      *prometheus.CounterVec
	riskRejections *prometheus.CounterVec
	orders         *prometheus.CounterVec
	score          *prometheus.GaugeVec
	position       *prometheus.GaugeVec
	lastPrice      *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_cycles_total",
				Help: "Evaluation cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentitrade_cycle_duration_seconds",
				Help:    "Wall time of one evaluation cycle",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_decisions_total",
				Help: "Decisions by symbol and action",
			},
			[]string{"symbol", "action"},
		),
		riskRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_risk_rejections_total",
				Help: "Trade intents rejected by risk",
			},
			[]string{"reason"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_orders_total",
				Help: "Broker order submissions by side and result",
			},
			[]string{"side", "result"},
		),
		score: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentitrade_sentiment_score",
				Help: "Last aggregated sentiment score",
			},
			[]string{"symbol"},
		),
		position: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentitrade_position_quantity",
				Help: "Current position quantity",
			},
			[]string{"symbol"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentitrade_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentitrade_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCycle(outcome string, seconds float64) {
	r.cycles.WithLabelValues(outcome).Inc()
	r.cycleDuration.Observe(seconds)
}

func (r *Recorder) RecordDecision(symbol string, action models.Action) {
	r.decisions.WithLabelValues(symbol, string(action)).Inc()
}

func (r *Recorder) RecordRiskRejection(reason string) {
	r.riskRejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordOrder(side models.Side, result string) {
	r.orders.WithLabelValues(string(side), result).Inc()
}

func (r *Recorder) RecordScore(symbol string, score float64) {
	r.score.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) RecordPosition(symbol string, quantity int64) {
	r.position.WithLabelValues(symbol).Set(float64(quantity))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCycle(string, float64) {}
func (Nop) RecordDecision(string, models.Action) {}
func (Nop) RecordRiskRejection(string) {}
func (Nop) RecordOrder(models.Side, string) {}
func (Nop) RecordScore(string, float64) {}
func (Nop) RecordPosition(string, int64) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
