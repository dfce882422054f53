// Package metrics exposes the decision pipeline's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TicksTotal counts evaluated decision ticks.
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zdte_ticks_total",
		Help: "Total decision ticks evaluated",
	})

	// OrdersBuiltTotal counts candidate orders the spread builder produced,
	// by structure name.
	OrdersBuiltTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zdte_orders_built_total",
		Help: "Candidate orders built, by structure",
	}, []string{"structure"})

	// OrdersApprovedTotal counts orders the risk gate admitted.
	OrdersApprovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zdte_orders_approved_total",
		Help: "Orders approved by the risk gate",
	})

	// OrdersRejectedTotal counts orders the risk gate refused.
	OrdersRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zdte_orders_rejected_total",
		Help: "Orders rejected by the risk gate",
	})

	// FillsTotal counts simulated order executions.
	FillsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zdte_fills_total",
		Help: "Simulated order fills",
	})

	// ConsecutiveLossDays tracks the current loss-day streak.
	ConsecutiveLossDays = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zdte_consecutive_loss_days",
		Help: "Current consecutive losing-day streak",
	})

	// AllowedDailyLoss tracks today's loss budget in dollars.
	AllowedDailyLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zdte_allowed_daily_loss_dollars",
		Help: "Allowed daily loss budget for the current date",
	})

	// DailyPnL tracks the most recently settled day's realized result.
	DailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zdte_daily_pnl_dollars",
		Help: "Realized PnL of the last settled trading day",
	})
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		OrdersBuiltTotal,
		OrdersApprovedTotal,
		OrdersRejectedTotal,
		FillsTotal,
		ConsecutiveLossDays,
		AllowedDailyLoss,
		DailyPnL,
	)
}
