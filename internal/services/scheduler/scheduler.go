// Package scheduler runs the background sync loop: prefetching market data,
// draining dirty holdings through the valuation engine, rebuilding journals
// and refreshing realtime snapshots. All work runs on one goroutine; cron
// schedules only raise triggers for it.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/journal"
	"github.com/bobmcallan/folio/internal/services/valuation"
)

// Scheduler implements interfaces.SyncService
type Scheduler struct {
	portfolios interfaces.PortfolioStore
	series     interfaces.SeriesStore
	source     interfaces.MarketDataSource // nil runs offline from cache
	tracker    interfaces.DirtyTracker
	valuation  *valuation.Service
	journals   *journal.Service
	config     *common.Config
	logger     *common.Logger
	now        func() time.Time // injectable clock for testing

	unitMu     sync.Mutex // one unit of work at a time, loop or direct call
	cron       *cron.Cron
	cycleCh    chan struct{}
	realtimeCh chan struct{}
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler creates a new scheduler. source may be nil, in which case
// holdings are valued from whatever is already cached.
func NewScheduler(
	storage interfaces.StorageManager,
	source interfaces.MarketDataSource,
	tracker interfaces.DirtyTracker,
	config *common.Config,
	logger *common.Logger,
) *Scheduler {
	return &Scheduler{
		portfolios: storage.PortfolioStore(),
		series:     storage.SeriesStore(),
		source:     source,
		tracker:    tracker,
		valuation:  valuation.NewService(storage.SeriesStore(), config, logger),
		journals:   journal.NewService(storage.SeriesStore(), logger),
		config:     config,
		logger:     logger.Component("scheduler"),
		now:        time.Now,
		cycleCh:    make(chan struct{}, 1),
		realtimeCh: make(chan struct{}, 1),
	}
}

// Start registers the cadence triggers and launches the loop. A full cycle
// runs immediately. Calling Start on a running scheduler restarts it.
func (s *Scheduler) Start() error {
	if s.cancel != nil {
		s.Stop()
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.Scheduler.CycleSchedule, func() { trigger(s.cycleCh) }); err != nil {
		return fmt.Errorf("invalid cycle schedule %q: %w", s.config.Scheduler.CycleSchedule, err)
	}
	if s.source != nil {
		if _, err := c.AddFunc(s.config.Scheduler.RealtimeSchedule, func() { trigger(s.realtimeCh) }); err != nil {
			return fmt.Errorf("invalid realtime schedule %q: %w", s.config.Scheduler.RealtimeSchedule, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = c

	trigger(s.cycleCh)
	s.safeGo("sync-loop", func() { s.loop(ctx) })
	c.Start()

	s.updateStatus(context.Background(), func(st *models.SyncStatus) { st.Running = true })
	s.logger.Info().
		Str("cycle", s.config.Scheduler.CycleSchedule).
		Str("realtime", s.config.Scheduler.RealtimeSchedule).
		Dur("dirty_poll", s.config.Scheduler.GetDirtyPoll()).
		Bool("online", s.source != nil).
		Msg("Scheduler started")
	return nil
}

// Stop cancels the loop and waits for the current unit of work to finish or
// abandon. Atomic writes make an abandoned unit safe.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	s.updateStatus(context.Background(), func(st *models.SyncStatus) { st.Running = false })
	s.logger.Info().Msg("Scheduler stopped")
}

// loop is the single background worker. Between cycles it polls the
// persisted dirty set so foreground edits are picked up without any
// in-memory handoff.
func (s *Scheduler) loop(ctx context.Context) {
	poll := time.NewTicker(s.config.Scheduler.GetDirtyPoll())
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.cycleCh:
			if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Sync cycle failed")
			}
		case <-s.realtimeCh:
			if err := s.RefreshRealtime(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Realtime refresh failed")
			}
		case <-poll.C:
			n, err := s.tracker.Len(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to poll dirty set")
				continue
			}
			if n == 0 {
				continue
			}
			if err := s.DrainDirty(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Dirty drain failed")
			}
		}
	}
}

// trigger performs a non-blocking send; a pending trigger absorbs repeats.
func trigger(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (s *Scheduler) safeGo(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in scheduler goroutine")
			}
		}()
		fn()
	}()
}

func (s *Scheduler) today() time.Time {
	return common.Day(s.now())
}

// Compile-time check
var _ interfaces.SyncService = (*Scheduler)(nil)
