// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExhausted means no active sending account has quota left today.
	ErrCapacityExhausted = errors.New("no sending account has remaining capacity")
	// ErrDailyLimitReached means the requesting user's role limit is used up for today.
	ErrDailyLimitReached = errors.New("daily limit reached")
	// ErrRecipientBlocked means the address is unsubscribed or blocklisted.
	ErrRecipientBlocked    = errors.New("recipient is blocked")
	ErrCampaignAlreadySent = errors.New("campaign has already been sent")
	ErrAccountNotFound     = errors.New("sending account not found")
	ErrInvalidRequest      = errors.New("invalid request")
)

// ErrCampaignNotFound is returned when a campaign row does not exist
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrRecipientNotFound struct {
	RecipientID int64
}

func (e *ErrRecipientNotFound) Error() string {
	return fmt.Sprintf("recipient with ID %d not found", e.RecipientID)
}

func NewRecipientNotFound(id int64) error {
	return &ErrRecipientNotFound{RecipientID: id}
}

// IsNotFound reports whether err wraps any not-found error of this package.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var r *ErrRecipientNotFound
	return errors.As(err, &c) || errors.As(err, &r) || errors.Is(err, ErrAccountNotFound)
}
