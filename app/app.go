// Package app wires the engines over one document store. Both the HTTP
// server and the one-shot CLI commands start from New.
package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/accountability-engine/api"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/config"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/integrations"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/metrics"
	"github.com/warp/accountability-engine/reconcile"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/store/documents"
	"github.com/warp/accountability-engine/violation"
)

type App struct {
	Config       config.Config
	Clock        domain.Clock
	Stores       domain.Stores
	Rules        *rules.Store
	Ledger       *ledger.Engine
	Bonuses      *bonus.Evaluator
	Violations   *violation.Engine
	Orchestrator *reconcile.Orchestrator
	Metrics      *metrics.Recorder
	Registry     *prometheus.Registry
}

// Options override the environment for tests.
type Options struct {
	// Clock defaults to the system clock in the configured timezone.
	Clock domain.Clock
	// Registry defaults to a fresh registry, so repeated construction
	// never collides.
	Registry *prometheus.Registry
}

func New(cfg config.Config, docs domain.DocumentStore, opts Options) *App {
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{Loc: cfg.Location()}
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	stores := documents.New(docs)
	rs := rules.NewStore(stores.Rules, rules.NewCache(cfg.Rules.TTL(), clock), clock)
	led := ledger.NewEngine(stores.Debts, clock, ledger.Config{
		DefaultInterestRate: cfg.Ledger.InterestRate(),
		ViolationDebtAmount: cfg.Ledger.ViolationDebt(),
		BuyoutMinutes:       cfg.Ledger.CardioBuyoutMinutes,
		BuyoutAmount:        cfg.Ledger.BuyoutAmount(),
	})
	bon := bonus.NewEvaluator(rs, stores.Bonuses)

	seed := cfg.Punishments.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	habits := integrations.NewHabitTasks(docs)
	vio := violation.NewEngine(stores.Punishments, stores.Workouts, rs, domain.NewRandom(seed),
		violation.MorningCheckIn{Tracker: habits, Rules: rs})

	rec := metrics.New(reg)
	orch := reconcile.New(reconcile.Deps{
		Stores:     stores,
		Rules:      rs,
		Ledger:     led,
		Bonuses:    bon,
		Violations: vio,
		Sources: reconcile.Sources{
			Workouts: integrations.NewStravaInbox(docs),
			Earnings: integrations.NewBankInbox(docs),
			Habits:   habits,
		},
		Metrics: rec,
		Clock:   clock,
	})

	return &App{
		Config:       cfg,
		Clock:        clock,
		Stores:       stores,
		Rules:        rs,
		Ledger:       led,
		Bonuses:      bon,
		Violations:   vio,
		Orchestrator: orch,
		Metrics:      rec,
		Registry:     reg,
	}
}

func (a *App) Handler() *api.Handler {
	return &api.Handler{
		Reconciler: a.Orchestrator,
		Rules:      a.Rules,
		Ledger:     a.Ledger,
		Violations: a.Violations,
		Stores:     a.Stores,
		Clock:      a.Clock,
		Production: a.Config.IsProduction(),
	}
}

// Router serves the API with /metrics backed by the app's registry.
func (a *App) Router() http.Handler { return api.NewRouter(a.Handler(), a.Registry) }

// Scheduler builds the background scheduler from the config's scheduler section.
func (a *App) Scheduler() *api.Scheduler {
	s := api.NewScheduler(a.Orchestrator, a.Clock)
	s.Enabled = a.Config.Scheduler.Enabled
	s.CheckInterval = a.Config.Scheduler.Interval()
	s.DailyHour, s.DailyMinute, _ = a.Config.Scheduler.DailyTime()
	if day, err := a.Config.Scheduler.Weekday(); err == nil {
		s.WeeklyDay = day
	}
	return s
}
