// internal/model/recipient.go
package model

import "time"

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
	RecipientOpened  RecipientStatus = "opened"
	RecipientClicked RecipientStatus = "clicked"
)

// Failure reasons written to error_message.
const (
	ReasonBlocked      = "blocked recipient"
	ReasonUnsubscribed = "unsubscribed"
	ReasonDailyLimit   = "daily limit reached"
	ReasonNoAccount    = "no sending account available"
	ReasonSendFailed   = "send failed"
)

type Recipient struct {
	ID           int64           `db:"id" json:"id"`
	CampaignID   int64           `db:"campaign_id" json:"campaign_id"`
	Address      string          `db:"address" json:"address"`
	Status       RecipientStatus `db:"status" json:"status"`
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	SentAt       *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt     *time.Time      `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt    *time.Time      `db:"clicked_at" json:"clicked_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
