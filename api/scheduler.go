/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically checks whether yesterday's daily run or the last full week's
  weekly run is due and triggers it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Daily: once the local clock passes DailyAt, reconcile yesterday, whose
    signals have all arrived by then
  - Weekly: on WeeklyDay after DailyAt, reconcile the last full week, but
    only once yesterday (its Sunday) is reconciled
  - Skips periods that already have a completed run record, so restarts
    and overlapping ticks never double-run a period
  - Never retries a period whose latest run failed; that needs a manual
    run from the API or CLI

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: false)

USAGE:
  scheduler := NewScheduler(orchestrator, clock)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ReconcileDaily/ReconcileWeekly (manual runs)
  - reconcile/reconcile.go: Run records
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/reconcile"
)

// Scheduler triggers daily and weekly reconciliation.
type Scheduler struct {
	Reconciler    *reconcile.Orchestrator
	Clock         domain.Clock
	CheckInterval time.Duration
	Enabled       bool

	// Local time of day after which the day's runs are due.
	DailyHour   int
	DailyMinute int
	WeeklyDay   time.Weekday

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler due at 06:00 with weekly runs on Monday.
func NewScheduler(orch *reconcile.Orchestrator, clock domain.Clock) *Scheduler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Scheduler{
		Reconciler:    orch,
		Clock:         clock,
		CheckInterval: time.Minute,
		DailyHour:     6,
		WeeklyDay:     time.Monday,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v (daily at %02d:%02d, weekly on %s)",
		s.CheckInterval, s.DailyHour, s.DailyMinute, s.WeeklyDay)
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndProcess()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

// Due reports which runs are due at now.
func (s *Scheduler) Due(now time.Time) (daily, weekly bool) {
	due := time.Date(now.Year(), now.Month(), now.Day(), s.DailyHour, s.DailyMinute, 0, 0, now.Location())
	if now.Before(due) {
		return false, false
	}
	return true, now.Weekday() == s.WeeklyDay
}

func (s *Scheduler) checkAndProcess() {
	ctx := context.Background()
	now := s.Clock.Now()

	daily, weekly := s.Due(now)
	if !daily && !weekly {
		return
	}

	dailyDone := !daily
	if daily {
		date := domain.Today(s.Clock).AddDays(-1)
		res, err := s.Reconciler.RunDaily(ctx, reconcile.DailyRequest{Date: date, SkipFailed: true})
		switch {
		case errors.Is(err, domain.ErrAlreadyReconciled):
			dailyDone = true
		case errors.Is(err, domain.ErrPreviousRunFailed):
		case err != nil:
			log.Printf("[Scheduler] Daily reconciliation for %s failed: %v", date, err)
		default:
			dailyDone = true
			log.Printf("[Scheduler] Daily %s: %s", res.Date, res.Summary)
		}
	}

	if weekly && dailyDone {
		res, err := s.Reconciler.RunWeekly(ctx, reconcile.WeeklyRequest{SkipFailed: true})
		switch {
		case errors.Is(err, domain.ErrAlreadyReconciled), errors.Is(err, domain.ErrPreviousRunFailed):
		case err != nil:
			log.Printf("[Scheduler] Weekly reconciliation failed: %v", err)
		default:
			log.Printf("[Scheduler] Weekly %s: %s", res.Week, res.Summary)
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (s *Scheduler) RunNow() {
	s.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (s *Scheduler) GetNextRunTime() time.Time {
	return s.Clock.Now().Add(s.CheckInterval)
}
