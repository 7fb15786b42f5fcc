package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DraftSweeper drops drafts that outlived their TTL across all users.
type DraftSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionReaper closes composition sessions nobody touched for a while.
type SessionReaper interface {
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
	OpenSessions() int
}

// ActivityPurger deletes audit rows past retention.
type ActivityPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

type Config struct {
	IdleTimeout       time.Duration
	ActivityRetention time.Duration

	DraftSweepSpec    string
	SessionReapSpec   string
	ActivityPurgeSpec string
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.ActivityRetention <= 0 {
		c.ActivityRetention = 90 * 24 * time.Hour
	}
	if c.DraftSweepSpec == "" {
		c.DraftSweepSpec = "0 * * * *"
	}
	if c.SessionReapSpec == "" {
		c.SessionReapSpec = "*/5 * * * *"
	}
	if c.ActivityPurgeSpec == "" {
		c.ActivityPurgeSpec = "30 3 * * *"
	}
	return c
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	drafts   DraftSweeper
	sessions SessionReaper
	activity ActivityPurger
	cfg      Config
	log      *zap.Logger
}

// NewScheduler creates a new scheduler. Any of the job targets may be nil,
// in which case that job is not registered.
func NewScheduler(drafts DraftSweeper, sessions SessionReaper, activity ActivityPurger, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("cron")
	panics := cron.PrintfLogger(zap.NewStdLog(log))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(panics))),
		drafts:   drafts,
		sessions: sessions,
		activity: activity,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
		on   bool
	}{
		{"draft sweep", s.cfg.DraftSweepSpec, s.sweepDrafts, s.drafts != nil},
		{"session reap", s.cfg.SessionReapSpec, s.reapSessions, s.sessions != nil},
		{"activity purge", s.cfg.ActivityPurgeSpec, s.purgeActivities, s.activity != nil},
	}

	for _, job := range jobs {
		if !job.on {
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() { run(context.Background()) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		s.log.Info("Job scheduled", zap.String("job", job.name), zap.String("spec", job.spec))
	}

	s.cron.Start()
	s.log.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) sweepDrafts(ctx context.Context) {
	n, err := s.drafts.SweepExpired(ctx)
	if err != nil {
		s.log.Error("Draft sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Expired drafts removed", zap.Int("count", n))
	}
}

func (s *Scheduler) reapSessions(ctx context.Context) {
	n := s.sessions.ReapIdle(ctx, s.cfg.IdleTimeout)
	metrics.SetOpenSessions(s.sessions.OpenSessions())
	if n > 0 {
		s.log.Info("Idle composition sessions closed", zap.Int("count", n), zap.Duration("idle_timeout", s.cfg.IdleTimeout))
	}
}

func (s *Scheduler) purgeActivities(ctx context.Context) {
	n, err := s.activity.PurgeOlderThan(ctx, s.cfg.ActivityRetention)
	if err != nil {
		s.log.Error("Activity purge failed", zap.Error(err))
		return
	}
	s.log.Info("Old activities purged", zap.Int("count", n))
}
