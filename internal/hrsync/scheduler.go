package hrsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler runs the Syncer every HR_SYNC_INTERVAL in a background goroutine
// tied to the fx lifecycle, and serves on-demand triggers.
type Scheduler struct {
	syncer *Syncer
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(syncer *Syncer, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{syncer: syncer, log: log.Named("hr-scheduler"), ctx: ctx, cancel: cancel}
}

// StartScheduler registers the periodic job. Nothing is scheduled when no HR
// API is configured; with a non-positive interval only triggered runs happen,
// and they are still cancelled on stop.
func (s *Scheduler) StartScheduler(lc fx.Lifecycle) {
	cfg := s.syncer.cfg
	if !cfg.Enabled() {
		s.log.Info("HR_API_URL not set, hr sync disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.SyncInterval <= 0 {
				s.log.Info("HR_SYNC_INTERVAL not positive, periodic hr sync disabled")
				return nil
			}
			s.log.Info("starting hr sync scheduler", zap.Duration("interval", cfg.SyncInterval))
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.loop()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("stopping hr sync scheduler")
			return s.Stop(ctx)
		},
	})
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.syncer.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.syncer.Run(s.ctx); err != nil {
				s.log.Info("scheduled hr sync skipped", zap.Error(err))
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Trigger starts a run in the background. The run slot is taken before
// returning, so a second trigger fails with ErrSyncInProgress until it ends.
func (s *Scheduler) Trigger() error {
	if !s.syncer.cfg.Enabled() {
		return ErrSyncDisabled
	}
	if !s.syncer.acquire() {
		return ErrSyncInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.syncer.release()
		s.syncer.run(s.ctx)
	}()
	return nil
}

// Stop cancels running syncs and waits for them, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
