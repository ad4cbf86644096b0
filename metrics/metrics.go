// Package metrics exports reconciliation telemetry to Prometheus.
//
// A nil *Recorder is valid and records nothing, so engines and tests can run
// without a registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "accountability"

type Recorder struct {
	runs               *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stepFailures       *prometheus.CounterVec
	debtsCreated       *prometheus.CounterVec
	interestDollars    prometheus.Counter
	paymentDollars     prometheus.Counter
	bonusesAwarded     *prometheus.CounterVec
	bonusDollars       prometheus.Counter
	punishmentsCreated *prometheus.CounterVec
	activeDebt         prometheus.Gauge
}

// New registers every collector on reg (the default registerer when nil).
// Registering twice on the same registry panics, as with promauto.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_runs_total",
			Help:      "Reconciliation runs by kind and final status.",
		}, []string{"kind", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Wall time of reconciliation runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Best-effort reconciliation steps that failed and were skipped.",
		}, []string{"kind", "step"}),
		debtsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debts_created_total",
			Help:      "Debts created, by what triggered them.",
		}, []string{"source"}),
		interestDollars: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interest_applied_dollars_total",
			Help:      "Dollars of daily interest added to debts.",
		}),
		paymentDollars: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debt_payments_dollars_total",
			Help:      "Dollars of earnings and buyouts applied to debts.",
		}),
		bonusesAwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonuses_awarded_total",
			Help:      "Bonuses awarded, by type.",
		}, []string{"type"}),
		bonusDollars: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonus_dollars_total",
			Help:      "Dollars of bonuses awarded.",
		}),
		punishmentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "punishments_assigned_total",
			Help:      "Punishments assigned, by route (0 for daily violations).",
		}, []string{"route"}),
		activeDebt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_debt_dollars",
			Help:      "Total active debt after the last daily run.",
		}),
	}
}

func (r *Recorder) RunFinished(kind, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(kind, status).Inc()
	r.runDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (r *Recorder) StepFailed(kind, step string) {
	if r == nil {
		return
	}
	r.stepFailures.WithLabelValues(kind, step).Inc()
}

func (r *Recorder) DebtCreated(source string) {
	if r == nil {
		return
	}
	r.debtsCreated.WithLabelValues(source).Inc()
}

func (r *Recorder) InterestApplied(amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.interestDollars.Add(amount.InexactFloat64())
}

func (r *Recorder) DebtPaid(amount decimal.Decimal) {
	if r == nil || !amount.IsPositive() {
		return
	}
	r.paymentDollars.Add(amount.InexactFloat64())
}

func (r *Recorder) BonusAwarded(bonusType string, amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.bonusesAwarded.WithLabelValues(bonusType).Inc()
	r.bonusDollars.Add(amount.InexactFloat64())
}

func (r *Recorder) PunishmentAssigned(route int) {
	if r == nil {
		return
	}
	r.punishmentsCreated.WithLabelValues(strconv.Itoa(route)).Inc()
}

func (r *Recorder) SetActiveDebt(amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.activeDebt.Set(amount.InexactFloat64())
}
