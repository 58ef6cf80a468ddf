package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/campaign-mailer/internal/clock"
)

// UsageRepository keeps the per-user ledger in the daily_usage table.
// Rows from earlier days are left in place; a new day starts a new row.
type UsageRepository struct {
	DB *sql.DB
}

var _ UsageStore = (*UsageRepository)(nil)

func (r *UsageRepository) ReadAndMaybeIncrement(ctx context.Context, key string, day clock.Date, amount, limit int) (bool, error) {
	if amount > limit {
		return false, nil
	}
	query := `
		INSERT INTO daily_usage (user_id, usage_date, sent_today, daily_limit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, usage_date) DO UPDATE
		SET sent_today = daily_usage.sent_today + EXCLUDED.sent_today,
		    daily_limit = EXCLUDED.daily_limit
		WHERE daily_usage.sent_today + EXCLUDED.sent_today <= EXCLUDED.daily_limit
		RETURNING sent_today
	`
	var sent int
	err := r.DB.QueryRowContext(ctx, query, key, day.String(), amount, limit).Scan(&sent)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetUsage returns how much key has sent on day. Missing rows read as 0.
func (r *UsageRepository) GetUsage(ctx context.Context, key string, day clock.Date) (int, error) {
	var sent int
	err := r.DB.QueryRowContext(ctx,
		`SELECT sent_today FROM daily_usage WHERE user_id=$1 AND usage_date=$2`,
		key, day.String(),
	).Scan(&sent)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return sent, err
}
