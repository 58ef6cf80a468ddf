package appErrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, appErrors.IsNotFound(appErrors.NewCampaignNotFound(3)))
	assert.True(t, appErrors.IsNotFound(fmt.Errorf("load: %w", appErrors.NewRecipientNotFound(9))))
	assert.True(t, appErrors.IsNotFound(fmt.Errorf("pool: %w", appErrors.ErrAccountNotFound)))
	assert.False(t, appErrors.IsNotFound(appErrors.ErrCapacityExhausted))
	assert.False(t, appErrors.IsNotFound(errors.New("boom")))
}

func TestNotFoundMessages(t *testing.T) {
	assert.Equal(t, "campaign with ID 3 not found", appErrors.NewCampaignNotFound(3).Error())
	assert.Equal(t, "recipient with ID 9 not found", appErrors.NewRecipientNotFound(9).Error())
}
