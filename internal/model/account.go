// internal/model/account.go
package model

import "github.com/unclebandit/campaign-mailer/internal/clock"

// SendingAccount is an outbound mail identity with its own daily capacity.
// CurrentDaySent is only meaningful when LastSentDate is today.
type SendingAccount struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	FromAddress    string     `db:"from_address" json:"from_address"`
	Host           string     `db:"host" json:"host"`
	Port           int        `db:"port" json:"port"`
	Username       string     `db:"username" json:"username"`
	Password       string     `db:"password" json:"-"`
	UseTLS         bool       `db:"use_tls" json:"use_tls"`
	Active         bool       `db:"active" json:"active"`
	DailySendLimit int        `db:"daily_send_limit" json:"daily_send_limit"`
	CurrentDaySent int        `db:"current_day_sent" json:"current_day_sent"`
	LastSentDate   clock.Date `db:"last_sent_date" json:"last_sent_date"`
}

func (a *SendingAccount) EffectiveSent(today clock.Date) int {
	return clock.EffectiveCount(a.CurrentDaySent, a.LastSentDate, today)
}

func (a *SendingAccount) Remaining(today clock.Date) int {
	r := a.DailySendLimit - a.EffectiveSent(today)
	if r < 0 {
		return 0
	}
	return r
}
