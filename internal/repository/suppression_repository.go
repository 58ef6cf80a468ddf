package repository

import (
	"context"
	"database/sql"
)

type SuppressionRepository struct {
	DB *sql.DB
}

var _ SuppressionStore = (*SuppressionRepository)(nil)

func (r *SuppressionRepository) IsUnsubscribed(ctx context.Context, address string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM email_unsubscribes WHERE address=$1)`, address)
}

func (r *SuppressionRepository) IsBlocklisted(ctx context.Context, address string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM email_blocklist WHERE address=$1)`, address)
}

func (r *SuppressionRepository) exists(ctx context.Context, query, address string) (bool, error) {
	var found bool
	if err := r.DB.QueryRowContext(ctx, query, address).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *SuppressionRepository) Unsubscribe(ctx context.Context, address, reason string) error {
	query := `
		INSERT INTO email_unsubscribes (address, reason, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query, address, nullIfEmpty(reason))
	return err
}

func (r *SuppressionRepository) Block(ctx context.Context, address, reason string) error {
	query := `
		INSERT INTO email_blocklist (address, reason, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET reason = COALESCE(EXCLUDED.reason, email_blocklist.reason)
	`
	_, err := r.DB.ExecContext(ctx, query, address, nullIfEmpty(reason))
	return err
}
