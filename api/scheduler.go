/*
scheduler.go - Background rank recompute scheduler

PURPOSE:
  Recomputes ranks after employee mutations without blocking the request,
  and periodically as a safety net. Implements vacation.RankTrigger.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Trigger() is non-blocking: the channel holds at most one pending signal,
    so a burst of mutations collapses into a single recompute
  - Each recompute runs vacation.Ranker.Recompute, which commits one
    transaction per (group, year)
  - Bookings never trigger a recompute

CONFIGURATION:
  - Interval: periodic full recompute (0 disables the ticker)

USAGE:
  scheduler := NewRankScheduler(ranker, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - vacation/ranking.go: Ranker
  - handlers.go: RecomputeRanks endpoint (synchronous)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/vacation"
)

// RankScheduler handles asynchronous rank recomputation.
type RankScheduler struct {
	Ranker   *vacation.Ranker
	Interval time.Duration
	Logger   logrus.FieldLogger

	trigger chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// run serializes recomputes from the loop and from RunNow.
	run sync.Mutex
}

var _ vacation.RankTrigger = (*RankScheduler)(nil)

// NewRankScheduler creates a new scheduler.
func NewRankScheduler(ranker *vacation.Ranker, interval time.Duration, logger logrus.FieldLogger) *RankScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RankScheduler{
		Ranker:   ranker,
		Interval: interval,
		Logger:   logger.WithField("component", "rank-scheduler"),
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (rs *RankScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.running {
		return
	}
	rs.running = true
	rs.stop = make(chan struct{})

	var tick <-chan time.Time
	var ticker *time.Ticker
	if rs.Interval > 0 {
		ticker = time.NewTicker(rs.Interval)
		tick = ticker.C
	}

	rs.wg.Add(1)
	go rs.loop(ticker, tick)

	rs.Logger.WithField("interval", rs.Interval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight recompute.
func (rs *RankScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.running {
		return
	}
	close(rs.stop)
	rs.wg.Wait()
	rs.running = false
	rs.Logger.Info("scheduler stopped")
}

// Trigger requests a recompute. Never blocks.
func (rs *RankScheduler) Trigger() {
	select {
	case rs.trigger <- struct{}{}:
	default:
	}
}

// RunNow recomputes synchronously (for the admin endpoint and scenarios).
func (rs *RankScheduler) RunNow(ctx context.Context) (vacation.RankReport, error) {
	rs.run.Lock()
	defer rs.run.Unlock()
	return rs.Ranker.Recompute(ctx)
}

func (rs *RankScheduler) loop(ticker *time.Ticker, tick <-chan time.Time) {
	defer rs.wg.Done()
	if ticker != nil {
		defer ticker.Stop()
	}

	// Run immediately on start
	rs.recompute("startup")

	for {
		select {
		case <-tick:
			rs.recompute("interval")
		case <-rs.trigger:
			rs.recompute("trigger")
		case <-rs.stop:
			return
		}
	}
}

func (rs *RankScheduler) recompute(reason string) {
	start := time.Now()
	report, err := rs.RunNow(context.Background())
	if err != nil {
		rs.Logger.WithError(err).WithField("reason", reason).Error("rank recompute failed")
		return
	}
	rs.Logger.WithFields(logrus.Fields{
		"reason":    reason,
		"batches":   len(report.Batches),
		"employees": report.Employees,
		"took":      time.Since(start).String(),
	}).Debug("rank recompute finished")
}
