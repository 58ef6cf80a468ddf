// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/delivery"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/gate"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/metrics"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/queue"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// QueueStatus is the polling snapshot of the dispatcher.
type QueueStatus struct {
	QueueSize         int     `json:"queue_size"`
	SentCount         int64   `json:"sent_count"`
	FailedCount       int64   `json:"failed_count"`
	SlowCount         int64   `json:"slow_count"`
	ActiveCampaignIDs []int64 `json:"active_campaign_ids"`
}

type CampaignService struct {
	CampaignRepo repository.CampaignStore
	Queue        *queue.CampaignQueue
	Bus          *events.Bus
	Counters     *Counters
	Pipeline     *Pipeline
	Gate         *gate.Gate
	Clock        clock.Clock
	Metrics      *metrics.Metrics
}

var _ Admitter = (*CampaignService)(nil)

func (s *CampaignService) log() *zerolog.Logger {
	l := logger.Component("campaign_service")
	return &l
}

// Admit adds id to the dispatch queue and announces it. Admitting a queued
// campaign again only repeats the announcement.
func (s *CampaignService) Admit(id int64, source string) bool {
	added := s.Queue.Add(id)
	if added && s.Metrics != nil {
		s.Metrics.AdmissionsTotal.WithLabelValues(source).Inc()
	}
	s.Bus.Publish(events.TopicCampaignQueued, CampaignEvent{CampaignID: id, Status: model.CampaignScheduled, Source: source})
	return added
}

// EnqueueCampaign starts a campaign now.
func (s *CampaignService) EnqueueCampaign(ctx context.Context, id int64) error {
	return s.enqueue(ctx, id, "send_now")
}

func (s *CampaignService) enqueue(ctx context.Context, id int64, source string) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignSent {
		return appErrors.ErrCampaignAlreadySent
	}

	now := s.Clock.Now()
	if !c.Due(now) {
		if err := s.CampaignRepo.MarkScheduled(ctx, id, &now); err != nil {
			return err
		}
	}
	s.Admit(id, source)
	s.log().Info().Int64("campaign_id", id).Str("source", source).Msg("campaign enqueued")
	return nil
}

// PauseCampaign stops future dispatch of a campaign. It stays in the queue;
// the dispatcher skips paused campaigns.
func (s *CampaignService) PauseCampaign(ctx context.Context, id int64) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignSent {
		return appErrors.ErrCampaignAlreadySent
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, id, model.CampaignPaused); err != nil {
		return err
	}
	s.Bus.Publish(events.TopicCampaignPaused, CampaignEvent{CampaignID: id, Status: model.CampaignPaused})
	s.log().Info().Int64("campaign_id", id).Msg("campaign paused")
	return nil
}

func (s *CampaignService) ResumeCampaign(ctx context.Context, id int64) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignSent {
		return appErrors.ErrCampaignAlreadySent
	}
	if err := s.CampaignRepo.MarkScheduled(ctx, id, nil); err != nil {
		return err
	}
	return s.enqueue(ctx, id, "resume")
}

func (s *CampaignService) GetQueueStatus() QueueStatus {
	ids := s.Queue.Snapshot()
	return QueueStatus{
		QueueSize:         len(ids),
		SentCount:         s.Counters.Sent(),
		FailedCount:       s.Counters.Failed(),
		SlowCount:         s.Counters.Slow(),
		ActiveCampaignIDs: ids,
	}
}

// SubscribeToEvents registers an observer. Callers must Close the subscription.
func (s *CampaignService) SubscribeToEvents(topics ...string) *events.Subscription {
	return s.Bus.Subscribe(topics...)
}

func (s *CampaignService) GetCampaignStats(ctx context.Context, id int64) (map[string]int, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.CampaignRepo.GetCampaignStats(ctx, id)
}

// ====================== Direct send ======================

type DirectSendRequest struct {
	UserID             string     `json:"user_id"`
	Role               model.Role `json:"role"`
	PreferredAccountID *int64     `json:"account_id,omitempty"`
	To                 string     `json:"to"`
	Subject            string     `json:"subject"`
	Body               string     `json:"body"`
}

// SendDirect sends one message outside any campaign. A rejected send
// returns the taxonomy error, for example ErrCapacityExhausted.
func (s *CampaignService) SendDirect(ctx context.Context, req DirectSendRequest) (Outcome, error) {
	if strings.TrimSpace(req.To) == "" || req.UserID == "" {
		return Outcome{}, fmt.Errorf("%w: to and user_id are required", appErrors.ErrInvalidRequest)
	}
	out, err := s.Pipeline.Send(ctx, SendRequest{
		UserID:             req.UserID,
		Role:               req.Role,
		PreferredAccountID: req.PreferredAccountID,
		Message: delivery.Message{
			To:      req.To,
			Subject: req.Subject,
			Body:    req.Body,
		},
	})
	if err != nil {
		return Outcome{}, err
	}
	if !out.Sent {
		return out, out.Err
	}
	return out, nil
}

// ====================== Tracking & suppression ======================

// TrackOpen records an open. Only a sent recipient can become opened.
func (s *CampaignService) TrackOpen(ctx context.Context, recipientID int64) (bool, error) {
	if _, err := s.CampaignRepo.GetRecipient(ctx, recipientID); err != nil {
		return false, err
	}
	return s.CampaignRepo.MarkOpened(ctx, recipientID, s.Clock.Now())
}

// TrackClick records a click on any delivered recipient.
func (s *CampaignService) TrackClick(ctx context.Context, recipientID int64) (bool, error) {
	if _, err := s.CampaignRepo.GetRecipient(ctx, recipientID); err != nil {
		return false, err
	}
	return s.CampaignRepo.MarkClicked(ctx, recipientID, s.Clock.Now())
}

// Unsubscribe adds the recipient's address to the unsubscribe set and
// marks the recipient failed.
func (s *CampaignService) Unsubscribe(ctx context.Context, recipientID int64) error {
	rc, err := s.CampaignRepo.GetRecipient(ctx, recipientID)
	if err != nil {
		return err
	}
	if err := s.Gate.Unsubscribe(ctx, rc.Address, "recipient unsubscribed"); err != nil {
		return err
	}
	return s.CampaignRepo.UpdateRecipientStatus(ctx, recipientID, model.RecipientFailed, model.ReasonUnsubscribed)
}

func (s *CampaignService) BlockAddress(ctx context.Context, address, reason string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: address is required", appErrors.ErrInvalidRequest)
	}
	return s.Gate.Block(ctx, address, reason)
}

// ====================== Webhooks ======================

// DeliveryFailure is a provider report that a sent message bounced.
type DeliveryFailure struct {
	RecipientID int64  `json:"recipient_id,omitempty"`
	Address     string `json:"address,omitempty"`
	Reason      string `json:"reason"`
	Hard        bool   `json:"hard"`
}

// HandleDeliveryFailure marks the recipient failed, blocklists the address
// on a hard bounce and publishes outbox:bounce.
func (s *CampaignService) HandleDeliveryFailure(ctx context.Context, f DeliveryFailure) error {
	if f.RecipientID == 0 && strings.TrimSpace(f.Address) == "" {
		return fmt.Errorf("%w: recipient_id or address is required", appErrors.ErrInvalidRequest)
	}
	reason := f.Reason
	if reason == "" {
		reason = model.ReasonSendFailed
	}

	if f.RecipientID != 0 {
		rc, err := s.CampaignRepo.GetRecipient(ctx, f.RecipientID)
		if err != nil {
			return err
		}
		if f.Address == "" {
			f.Address = rc.Address
		}
		if err := s.CampaignRepo.UpdateRecipientStatus(ctx, f.RecipientID, model.RecipientFailed, reason); err != nil {
			return err
		}
		s.Counters.IncFailed()
	}
	if f.Hard {
		if err := s.Gate.Block(ctx, f.Address, reason); err != nil {
			return err
		}
	}

	f.Reason = reason
	s.Bus.Publish(events.TopicOutboxBounce, f)
	s.log().Warn().Int64("recipient_id", f.RecipientID).Str("address", f.Address).Bool("hard", f.Hard).Msg("delivery failure reported")
	return nil
}

// InboundMessage is a reply or other mail received for a sending account.
type InboundMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// Inbound publishes a received message to observers.
func (s *CampaignService) Inbound(_ context.Context, m InboundMessage) error {
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("%w: from is required", appErrors.ErrInvalidRequest)
	}
	s.Bus.Publish(events.TopicInboxMessage, m)
	return nil
}
