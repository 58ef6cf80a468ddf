// Package quota enforces the two daily send limits: per sending account and
// per requesting user.
package quota

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/config"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Limits maps roles to their daily send limit.
type Limits struct {
	Agent   int
	Manager int
}

func LimitsFromConfig(cfg config.QuotaConfig) Limits {
	return Limits{Agent: cfg.AgentLimit, Manager: cfg.ManagerLimit}
}

// For returns the daily limit for role. Unknown roles get the agent limit.
func (l Limits) For(role model.Role) int {
	switch role {
	case model.RoleAdmin:
		return model.Unlimited
	case model.RoleManager:
		return l.Manager
	default:
		return l.Agent
	}
}

type Ledger struct {
	accounts repository.AccountStore
	usage    repository.UsageStore
	clock    clock.Clock
	limits   Limits
	log      zerolog.Logger
}

func NewLedger(accounts repository.AccountStore, usage repository.UsageStore, clk clock.Clock, limits Limits) *Ledger {
	return &Ledger{
		accounts: accounts,
		usage:    usage,
		clock:    clk,
		limits:   limits,
		log:      logger.Component("quota"),
	}
}

// TryConsumeAccount reserves amount sends on the account for today.
// It returns false when the account's daily limit would be exceeded.
func (l *Ledger) TryConsumeAccount(ctx context.Context, accountID int64, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	ok, err := l.accounts.IncrementDailySent(ctx, accountID, l.clock.Today(), amount)
	if err != nil {
		return false, fmt.Errorf("increment account %d: %w", accountID, err)
	}
	if !ok {
		l.log.Debug().Int64("account_id", accountID).Msg("account daily limit reached")
	}
	return ok, nil
}

// ReleaseAccount returns amount previously reserved with TryConsumeAccount
// today, for a send that did not go out.
func (l *Ledger) ReleaseAccount(ctx context.Context, accountID int64, amount int) error {
	if err := l.accounts.DecrementDailySent(ctx, accountID, l.clock.Today(), amount); err != nil {
		return fmt.Errorf("release account %d: %w", accountID, err)
	}
	return nil
}

// TryConsumeUser reserves amount sends against the user's role limit for today.
func (l *Ledger) TryConsumeUser(ctx context.Context, userID string, role model.Role, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	limit := l.limits.For(role)
	ok, err := l.usage.ReadAndMaybeIncrement(ctx, userID, l.clock.Today(), amount, limit)
	if err != nil {
		return false, fmt.Errorf("increment usage for %s: %w", userID, err)
	}
	if !ok {
		l.log.Debug().Str("user_id", userID).Str("role", string(role)).Int("limit", limit).Msg("user daily limit reached")
	}
	return ok, nil
}

func (l *Ledger) Limits() Limits { return l.limits }
