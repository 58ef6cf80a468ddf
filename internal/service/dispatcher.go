package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-mailer/internal/delivery"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/metrics"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/queue"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// ProgressEvent is the payload of campaign:progress.
type ProgressEvent struct {
	CampaignID  int64                 `json:"campaign_id"`
	RecipientID int64                 `json:"recipient_id"`
	Address     string                `json:"address"`
	Status      model.RecipientStatus `json:"status"`
	Reason      string                `json:"reason,omitempty"`
	AccountID   int64                 `json:"account_id,omitempty"`
}

// CampaignEvent is the payload of the campaign lifecycle topics.
type CampaignEvent struct {
	CampaignID int64                `json:"campaign_id"`
	Status     model.CampaignStatus `json:"status"`
	Source     string               `json:"source,omitempty"`
}

type DispatcherConfig struct {
	Interval    time.Duration
	Workers     int
	UnitTimeout time.Duration
}

// Dispatcher advances at most one pending recipient of every queued
// campaign per tick. Campaigns within a tick run concurrently on a bounded
// pool; ticks never overlap.
type Dispatcher struct {
	campaigns repository.CampaignStore
	queue     *queue.CampaignQueue
	pipeline  *Pipeline
	bus       *events.Bus
	metrics   *metrics.Metrics
	cfg       DispatcherConfig

	running atomic.Bool
	log     zerolog.Logger
}

func NewDispatcher(
	campaigns repository.CampaignStore,
	q *queue.CampaignQueue,
	pipeline *Pipeline,
	bus *events.Bus,
	m *metrics.Metrics,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		campaigns: campaigns,
		queue:     q,
		pipeline:  pipeline,
		bus:       bus,
		metrics:   m,
		cfg:       cfg,
		log:       logger.Component("dispatcher"),
	}
}

// Run ticks until ctx is cancelled. The next tick is taken only after the
// previous pass has returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	d.log.Info().Dur("interval", d.cfg.Interval).Int("workers", d.cfg.Workers).Msg("dispatcher started")

	for {
		select {
		case <-ticker.C:
			d.Tick(ctx)
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopped")
			return nil
		}
	}
}

// Tick runs one pass over the queue. A call made while another pass is in
// progress returns immediately.
func (d *Dispatcher) Tick(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		d.log.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer d.running.Store(false)

	start := time.Now()
	ids := d.queue.Snapshot()

	var mu sync.Mutex
	var evict []int64

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			done, err := d.runUnit(ctx, id)
			if err != nil {
				d.log.Error().Err(err).Int64("campaign_id", id).Msg("dispatch unit failed")
				return nil
			}
			if done {
				mu.Lock()
				evict = append(evict, id)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range evict {
		d.queue.Remove(id)
	}
	if d.metrics != nil {
		d.metrics.QueueSize.Set(float64(d.queue.Len()))
		d.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}

// runUnit processes one campaign with its own deadline. It reports whether
// the campaign should leave the queue. Panics become errors.
func (d *Dispatcher) runUnit(ctx context.Context, id int64) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if d.metrics != nil {
				d.metrics.TickPanics.Inc()
			}
			d.log.Error().Str("stack", string(debug.Stack())).Int64("campaign_id", id).Msg("dispatch unit panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	uctx := ctx
	if d.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, d.cfg.UnitTimeout)
		defer cancel()
	}
	return d.step(uctx, id)
}

func (d *Dispatcher) step(ctx context.Context, id int64) (bool, error) {
	c, err := d.campaigns.GetByID(ctx, id)
	if appErrors.IsNotFound(err) {
		d.log.Warn().Int64("campaign_id", id).Msg("queued campaign no longer exists, evicting")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	switch c.Status {
	case model.CampaignPaused:
		return false, nil
	case model.CampaignSent:
		return true, nil
	}

	rc, err := d.campaigns.FetchPendingRecipient(ctx, id)
	if err != nil {
		return false, err
	}
	if rc == nil {
		if err := d.campaigns.UpdateStatus(ctx, id, model.CampaignSent); err != nil {
			return false, err
		}
		d.bus.Publish(events.TopicCampaignCompleted, CampaignEvent{CampaignID: id, Status: model.CampaignSent})
		d.log.Info().Int64("campaign_id", id).Msg("campaign completed")
		return true, nil
	}

	out, err := d.pipeline.Send(ctx, SendRequest{
		UserID:             c.OwnerID,
		Role:               c.OwnerRole,
		PreferredAccountID: c.SenderAccountID,
		Message: delivery.Message{
			RecipientID: rc.ID,
			CampaignID:  c.ID,
			To:          rc.Address,
			Subject:     c.Subject,
			Body: delivery.Render(c.Body, map[string]string{
				"email":        rc.Address,
				"recipient_id": strconv.FormatInt(rc.ID, 10),
			}),
		},
	})
	if err != nil {
		return false, err
	}

	status := model.RecipientFailed
	if out.Sent {
		status = model.RecipientSent
	}
	if err := d.campaigns.UpdateRecipientStatus(ctx, rc.ID, status, out.Reason); err != nil {
		return false, err
	}

	d.bus.Publish(events.TopicCampaignProgress, ProgressEvent{
		CampaignID:  id,
		RecipientID: rc.ID,
		Address:     rc.Address,
		Status:      status,
		Reason:      out.Reason,
		AccountID:   out.AccountID,
	})
	return false, nil
}
