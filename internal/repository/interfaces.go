package repository

import (
	"context"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/model"
)

// CampaignStore holds campaigns and their recipient rows.
type CampaignStore interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	// MarkScheduled sets status to scheduled. A nil at leaves scheduled_at untouched.
	MarkScheduled(ctx context.Context, id int64, at *time.Time) error
	FetchDueScheduledCampaigns(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error)

	// FetchPendingRecipient returns nil, nil when the campaign has no pending rows.
	FetchPendingRecipient(ctx context.Context, campaignID int64) (*model.Recipient, error)
	GetRecipient(ctx context.Context, id int64) (*model.Recipient, error)
	UpdateRecipientStatus(ctx context.Context, id int64, status model.RecipientStatus, reason string) error
	// MarkOpened and MarkClicked report whether the row changed.
	MarkOpened(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkClicked(ctx context.Context, id int64, at time.Time) (bool, error)
	GetCampaignStats(ctx context.Context, campaignID int64) (map[string]int, error)
}

// AccountStore holds sending accounts and their per-day counters.
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*model.SendingAccount, error)
	ListActiveAccounts(ctx context.Context) ([]*model.SendingAccount, error)
	// IncrementDailySent adds amount to the account's counter for today in one
	// atomic step. It returns false, leaving the row alone, when the result
	// would exceed daily_send_limit. A counter from an earlier day counts as 0.
	IncrementDailySent(ctx context.Context, id int64, today clock.Date, amount int) (bool, error)
	// DecrementDailySent gives back amount reserved today. It never goes below 0
	// and does nothing to a counter from an earlier day.
	DecrementDailySent(ctx context.Context, id int64, today clock.Date, amount int) error
	ListStaleAccounts(ctx context.Context, today clock.Date) ([]*model.SendingAccount, error)
	ResetDailySent(ctx context.Context, id int64, today clock.Date) error
}

// UsageStore is the per-user daily usage ledger.
type UsageStore interface {
	// ReadAndMaybeIncrement adds amount to key's counter for day when the
	// result stays within limit, atomically. It reports whether it did.
	ReadAndMaybeIncrement(ctx context.Context, key string, day clock.Date, amount, limit int) (bool, error)
}

// SuppressionStore holds the unsubscribe and blocklist sets. Both are
// keyed by normalized address and only ever upserted.
type SuppressionStore interface {
	IsUnsubscribed(ctx context.Context, address string) (bool, error)
	IsBlocklisted(ctx context.Context, address string) (bool, error)
	Unsubscribe(ctx context.Context, address, reason string) error
	Block(ctx context.Context, address, reason string) error
}
