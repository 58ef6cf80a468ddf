// Package account picks which sending account a message goes out through.
package account

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Availability reports whether an account can currently be sent through,
// independent of quota. Circuit breakers implement it.
type Availability interface {
	Available(accountID int64) bool
}

type Pool struct {
	accounts     repository.AccountStore
	clock        clock.Clock
	availability Availability
	log          zerolog.Logger
}

// NewPool builds a Pool. availability may be nil.
func NewPool(accounts repository.AccountStore, clk clock.Clock, availability Availability) *Pool {
	return &Pool{
		accounts:     accounts,
		clock:        clk,
		availability: availability,
		log:          logger.Component("account_pool"),
	}
}

func (p *Pool) usable(a *model.SendingAccount, today clock.Date) bool {
	if !a.Active || a.Remaining(today) <= 0 {
		return false
	}
	return p.availability == nil || p.availability.Available(a.ID)
}

// Select returns the account to send through. A usable preferred account
// wins; otherwise the least-used active account with capacity left, ties
// broken by lowest id. It returns ErrCapacityExhausted when none qualifies.
//
// The result is a hint: the caller must still reserve quota atomically.
func (p *Pool) Select(ctx context.Context, preferredID *int64) (*model.SendingAccount, error) {
	today := p.clock.Today()

	if preferredID != nil {
		a, err := p.accounts.GetByID(ctx, *preferredID)
		switch {
		case err == nil && p.usable(a, today):
			return a, nil
		case err != nil && err != appErrors.ErrAccountNotFound:
			return nil, err
		}
		p.log.Debug().Int64("account_id", *preferredID).Msg("preferred account unusable, falling back to pool")
	}

	candidates, err := p.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].EffectiveSent(today), candidates[j].EffectiveSent(today)
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})
	for _, a := range candidates {
		if p.usable(a, today) {
			return a, nil
		}
	}
	return nil, appErrors.ErrCapacityExhausted
}

// Capacity sums the remaining quota of every usable active account.
func (p *Pool) Capacity(ctx context.Context) (int, error) {
	today := p.clock.Today()
	accounts, err := p.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, a := range accounts {
		if p.usable(a, today) {
			total += a.Remaining(today)
		}
	}
	return total, nil
}
