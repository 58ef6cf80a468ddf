package delivery

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/model"
)

// Breakers keeps one circuit breaker per sending account. An account whose
// breaker is open is skipped by account selection until the breaker half-opens.
type Breakers struct {
	failures   uint32
	openPeriod time.Duration
	log        zerolog.Logger

	mu       sync.Mutex
	breakers map[int64]*gobreaker.CircuitBreaker
}

func NewBreakers(failures uint32, openPeriod time.Duration) *Breakers {
	if failures == 0 {
		failures = 1
	}
	return &Breakers{
		failures:   failures,
		openPeriod: openPeriod,
		log:        logger.Component("breaker"),
		breakers:   make(map[int64]*gobreaker.CircuitBreaker),
	}
}

func (b *Breakers) get(accountID int64) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[accountID]; ok {
		return cb
	}
	threshold := b.failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "account-" + strconv.FormatInt(accountID, 10),
		MaxRequests: 1,
		Timeout:     b.openPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	b.breakers[accountID] = cb
	return cb
}

// Available reports whether sends through the account may be attempted.
func (b *Breakers) Available(accountID int64) bool {
	return b.get(accountID).State() != gobreaker.StateOpen
}

// Execute runs fn under the account's breaker.
func (b *Breakers) Execute(accountID int64, fn func() error) error {
	_, err := b.get(accountID).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Guard wraps next so every send goes through the account's breaker.
func (b *Breakers) Guard(next Adapter) Adapter {
	return SendFunc(func(ctx context.Context, account *model.SendingAccount, msg Message) error {
		return b.Execute(account.ID, func() error {
			return next.Send(ctx, account, msg)
		})
	})
}
