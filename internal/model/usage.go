// internal/model/usage.go
package model

import (
	"math"

	"github.com/unclebandit/campaign-mailer/internal/clock"
)

type Role string

const (
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Unlimited is the daily limit given to roles with no practical cap.
const Unlimited = math.MaxInt32

// DailyUsage is one row of the per-user ledger.
type DailyUsage struct {
	UserID    string     `db:"user_id" json:"user_id"`
	Date      clock.Date `db:"usage_date" json:"date"`
	SentToday int        `db:"sent_today" json:"sent_today"`
	Limit     int        `db:"daily_limit" json:"limit"`
}

type SuppressionKind string

const (
	SuppressionUnsubscribe SuppressionKind = "unsubscribe"
	SuppressionBlock       SuppressionKind = "block"
)

type Suppression struct {
	Address string          `db:"address" json:"address"`
	Kind    SuppressionKind `db:"-" json:"kind"`
	Reason  string          `db:"reason" json:"reason"`
}
