package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/model"
)

type AccountRepository struct {
	DB *sql.DB
}

var _ AccountStore = (*AccountRepository)(nil)

const accountColumns = `id, name, from_address, host, port, username, password, use_tls, active, daily_send_limit, current_day_sent, last_sent_date`

func scanAccount(row interface{ Scan(...any) error }) (*model.SendingAccount, error) {
	var a model.SendingAccount
	var last sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.FromAddress, &a.Host, &a.Port, &a.Username, &a.Password,
		&a.UseTLS, &a.Active, &a.DailySendLimit, &a.CurrentDaySent, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		a.LastSentDate = clock.DateOf(last.Time)
	}
	return &a, nil
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*model.SendingAccount, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.SendingAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.SendingAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM sending_accounts WHERE id=$1`
	a, err := scanAccount(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) ListActiveAccounts(ctx context.Context) ([]*model.SendingAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM sending_accounts WHERE active ORDER BY id`
	return r.queryAccounts(ctx, query)
}

// IncrementDailySent performs the read-check-increment as one conditional
// UPDATE so concurrent senders cannot push the counter past the limit.
func (r *AccountRepository) IncrementDailySent(ctx context.Context, id int64, today clock.Date, amount int) (bool, error) {
	query := `
		UPDATE sending_accounts
		SET current_day_sent = CASE WHEN last_sent_date = $2 THEN current_day_sent + $3 ELSE $3 END,
		    last_sent_date = $2
		WHERE id=$1
		  AND (CASE WHEN last_sent_date = $2 THEN current_day_sent ELSE 0 END) + $3 <= daily_send_limit
		RETURNING current_day_sent
	`
	var sent int
	err := r.DB.QueryRowContext(ctx, query, id, today.String(), amount).Scan(&sent)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AccountRepository) DecrementDailySent(ctx context.Context, id int64, today clock.Date, amount int) error {
	query := `
		UPDATE sending_accounts
		SET current_day_sent = GREATEST(current_day_sent - $3, 0)
		WHERE id=$1 AND last_sent_date = $2
	`
	_, err := r.DB.ExecContext(ctx, query, id, today.String(), amount)
	return err
}

func (r *AccountRepository) ListStaleAccounts(ctx context.Context, today clock.Date) ([]*model.SendingAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM sending_accounts
		WHERE current_day_sent > 0 AND (last_sent_date IS NULL OR last_sent_date < $1)
		ORDER BY id
	`
	return r.queryAccounts(ctx, query, today.String())
}

func (r *AccountRepository) ResetDailySent(ctx context.Context, id int64, today clock.Date) error {
	query := `
		UPDATE sending_accounts
		SET current_day_sent=0, last_sent_date=$2
		WHERE id=$1 AND (last_sent_date IS NULL OR last_sent_date < $2)
	`
	_, err := r.DB.ExecContext(ctx, query, id, today.String())
	return err
}
