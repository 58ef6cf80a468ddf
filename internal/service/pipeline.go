package service

import (
	"context"
	"errors"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/account"
	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/delivery"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/gate"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/metrics"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/quota"
)

// reserveAttempts bounds how often selection is retried when another
// sender takes an account's last slot between Select and the reservation.
const reserveAttempts = 3

// SendRequest is one message attributed to a requesting user.
type SendRequest struct {
	UserID             string
	Role               model.Role
	PreferredAccountID *int64
	Message            delivery.Message
}

// Outcome describes what happened to a send attempt. When Sent is false,
// Reason is the recipient failure reason and Err the classified cause.
type Outcome struct {
	Sent      bool
	Reason    string
	AccountID int64
	Err       error
}

func failed(reason string, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// Pipeline runs one message through gate, user ledger, account pool and
// delivery, in that order.
type Pipeline struct {
	Gate          *gate.Gate
	Ledger        *quota.Ledger
	Pool          *account.Pool
	Adapter       delivery.Adapter
	Clock         clock.Clock
	Counters      *Counters
	Metrics       *metrics.Metrics
	SlowThreshold time.Duration
}

// Send attempts delivery of req. The returned error is reserved for store
// failures; every business outcome, including a failed delivery, is an
// Outcome. Account quota is reserved before delivery and released if the
// transport fails, so only confirmed sends stay counted.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (Outcome, error) {
	log := logger.Component("pipeline")

	decision, err := p.Gate.Check(ctx, req.Message.To)
	if err != nil {
		return Outcome{}, err
	}
	if !decision.Allowed {
		p.observe("blocked")
		return failed(decision.Reason, appErrors.ErrRecipientBlocked), nil
	}

	ok, err := p.Ledger.TryConsumeUser(ctx, req.UserID, req.Role, 1)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		p.observe("daily_limit")
		return failed(model.ReasonDailyLimit, appErrors.ErrDailyLimitReached), nil
	}

	acct, err := p.reserveAccount(ctx, req.PreferredAccountID)
	if errors.Is(err, appErrors.ErrCapacityExhausted) {
		p.observe("no_account")
		return failed(model.ReasonNoAccount, err), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	start := p.Clock.Now()
	sendErr := p.Adapter.Send(ctx, acct, req.Message)
	elapsed := p.Clock.Now().Sub(start)
	if p.Metrics != nil {
		p.Metrics.SendDuration.Observe(elapsed.Seconds())
	}
	if p.SlowThreshold > 0 && elapsed > p.SlowThreshold {
		p.Counters.IncSlow()
		if p.Metrics != nil {
			p.Metrics.SlowSends.Inc()
		}
		log.Warn().Int64("account_id", acct.ID).Dur("elapsed", elapsed).Msg("slow send")
	}

	if sendErr != nil {
		if err := p.Ledger.ReleaseAccount(ctx, acct.ID, 1); err != nil {
			log.Error().Err(err).Int64("account_id", acct.ID).Msg("failed to release account quota")
		}
		p.Counters.IncFailed()
		p.observe("failed")
		log.Warn().Err(sendErr).Int64("account_id", acct.ID).Str("to", req.Message.To).Msg("delivery failed")
		return Outcome{Reason: model.ReasonSendFailed, AccountID: acct.ID, Err: sendErr}, nil
	}

	p.Counters.IncSent()
	p.observe("sent")
	return Outcome{Sent: true, AccountID: acct.ID}, nil
}

func (p *Pipeline) reserveAccount(ctx context.Context, preferred *int64) (*model.SendingAccount, error) {
	for i := 0; i < reserveAttempts; i++ {
		acct, err := p.Pool.Select(ctx, preferred)
		if err != nil {
			return nil, err
		}
		ok, err := p.Ledger.TryConsumeAccount(ctx, acct.ID, 1)
		if err != nil {
			return nil, err
		}
		if ok {
			return acct, nil
		}
	}
	return nil, appErrors.ErrCapacityExhausted
}

func (p *Pipeline) observe(outcome string) {
	if p.Metrics != nil {
		p.Metrics.SendsTotal.WithLabelValues(outcome).Inc()
	}
}
