package quota

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Rollover zeroes account counters left over from earlier days. Reads
// already treat stale counters as zero, so this only tidies stored state.
type Rollover struct {
	accounts repository.AccountStore
	clock    clock.Clock
	log      zerolog.Logger
}

func NewRollover(accounts repository.AccountStore, clk clock.Clock) *Rollover {
	return &Rollover{accounts: accounts, clock: clk, log: logger.Component("rollover")}
}

// Do resets every stale account. A failure on one account does not stop the
// rest; all failures are returned together.
func (r *Rollover) Do(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	today := r.clock.Today()
	stale, err := r.accounts.ListStaleAccounts(ctx, today)
	if err != nil {
		return err
	}

	var result error
	reset := 0
	for _, a := range stale {
		if err := r.accounts.ResetDailySent(ctx, a.ID, today); err != nil {
			r.log.Error().Err(err).Int64("account_id", a.ID).Msg("failed to reset daily counter")
			result = multierror.Append(result, err)
			continue
		}
		reset++
	}
	r.log.Info().Int("reset", reset).Str("date", today.String()).Msg("daily counters rolled over")
	return result
}
