package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/quota"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Admitter puts campaigns into the dispatch queue.
type Admitter interface {
	Admit(id int64, source string) bool
	GetQueueStatus() QueueStatus
}

type SchedulerConfig struct {
	Spec         string // cron spec for the due-campaign scan
	RolloverSpec string // cron spec for the daily counter rollover
	Batch        int
}

// Scheduler admits due campaigns on a cron cadence and runs the daily
// rollover. Both jobs also run once when Start is called.
type Scheduler struct {
	campaigns repository.CampaignStore
	admitter  Admitter
	bus       *events.Bus
	rollover  *quota.Rollover
	clock     clock.Clock
	cfg       SchedulerConfig
	log       zerolog.Logger
}

func NewScheduler(
	campaigns repository.CampaignStore,
	admitter Admitter,
	bus *events.Bus,
	rollover *quota.Rollover,
	clk clock.Clock,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.Batch < 1 {
		cfg.Batch = 50
	}
	return &Scheduler{
		campaigns: campaigns,
		admitter:  admitter,
		bus:       bus,
		rollover:  rollover,
		clock:     clk,
		cfg:       cfg,
		log:       logger.Component("scheduler"),
	}
}

// RunOnce broadcasts the queue status, then admits up to Batch due
// campaigns. It returns the number admitted.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	s.bus.Publish(events.TopicQueueStatus, s.admitter.GetQueueStatus())

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	due, err := s.campaigns.FetchDueScheduledCampaigns(ctx, s.clock.Now(), s.cfg.Batch)
	if err != nil {
		return 0, err
	}
	for _, c := range due {
		s.admitter.Admit(c.ID, "scheduler")
	}
	if len(due) > 0 {
		s.log.Info().Int("due", len(due)).Msg("admitted scheduled campaigns")
	}
	return len(due), nil
}

// Start runs the rollover and one scan, then keeps both on their cron
// schedules until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.rollover.Do(ctx); err != nil {
		s.log.Error().Err(err).Msg("startup rollover failed")
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("startup scan failed")
	}

	cl := logger.CronLogger{L: s.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled scan failed")
		}
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.cfg.RolloverSpec, func() {
		if err := s.rollover.Do(ctx); err != nil {
			s.log.Error().Err(err).Msg("daily rollover failed")
		}
	}); err != nil {
		return err
	}

	c.Start()
	s.log.Info().Str("scan", s.cfg.Spec).Str("rollover", s.cfg.RolloverSpec).Msg("scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}
