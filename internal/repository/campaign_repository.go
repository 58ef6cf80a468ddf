package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/model"
)

type CampaignRepository struct {
	DB *sql.DB
}

var _ CampaignStore = (*CampaignRepository)(nil)

const campaignColumns = `id, name, subject, body, owner_id, owner_role, sender_account_id, status, scheduled_at, created_at, updated_at`

// ====================== Campaigns ======================

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.Body, &c.OwnerID, &c.OwnerRole, &c.SenderAccountID,
		&c.Status, &c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewCampaignNotFound(id))
}

func (r *CampaignRepository) MarkScheduled(ctx context.Context, id int64, at *time.Time) error {
	query := `
		UPDATE campaigns
		SET status='scheduled', scheduled_at=COALESCE($2, scheduled_at), updated_at=NOW()
		WHERE id=$1
	`
	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewCampaignNotFound(id))
}

func (r *CampaignRepository) FetchDueScheduledCampaigns(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status='scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at, id
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// ====================== Recipients ======================

const recipientColumns = `id, campaign_id, address, status, COALESCE(error_message, ''), sent_at, opened_at, clicked_at, created_at, updated_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	var rc model.Recipient
	err := row.Scan(&rc.ID, &rc.CampaignID, &rc.Address, &rc.Status, &rc.ErrorMessage,
		&rc.SentAt, &rc.OpenedAt, &rc.ClickedAt, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *CampaignRepository) FetchPendingRecipient(ctx context.Context, campaignID int64) (*model.Recipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM campaign_recipients
		WHERE campaign_id=$1 AND status='pending'
		ORDER BY id
		LIMIT 1
	`
	rc, err := scanRecipient(r.DB.QueryRowContext(ctx, query, campaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rc, err
}

func (r *CampaignRepository) GetRecipient(ctx context.Context, id int64) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM campaign_recipients WHERE id=$1`
	rc, err := scanRecipient(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewRecipientNotFound(id)
		}
		return nil, err
	}
	return rc, nil
}

func (r *CampaignRepository) UpdateRecipientStatus(ctx context.Context, id int64, status model.RecipientStatus, reason string) error {
	var sentAt *time.Time
	if status == model.RecipientSent {
		now := time.Now()
		sentAt = &now
	}
	query := `
		UPDATE campaign_recipients
		SET status=$1, error_message=$2, sent_at=COALESCE($3, sent_at), updated_at=NOW()
		WHERE id=$4
	`
	res, err := r.DB.ExecContext(ctx, query, status, nullIfEmpty(reason), sentAt, id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewRecipientNotFound(id))
}

func (r *CampaignRepository) MarkOpened(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE campaign_recipients
		SET status='opened', opened_at=$2, updated_at=NOW()
		WHERE id=$1 AND status='sent'
	`
	return r.execChanged(ctx, query, id, at)
}

func (r *CampaignRepository) MarkClicked(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE campaign_recipients
		SET status='clicked', clicked_at=$2, updated_at=NOW()
		WHERE id=$1 AND status IN ('sent', 'opened', 'clicked')
	`
	return r.execChanged(ctx, query, id, at)
}

func (r *CampaignRepository) execChanged(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepository) GetCampaignStats(ctx context.Context, campaignID int64) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM campaign_recipients
		WHERE campaign_id=$1
		GROUP BY status
	`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"total": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
