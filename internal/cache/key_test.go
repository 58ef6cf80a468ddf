package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/campaign-mailer/internal/clock"
)

func TestUsageKey(t *testing.T) {
	day := clock.Date{Year: 2025, Month: time.January, Day: 9}
	assert.Equal(t, "usage:{agent-7}:2025-01-09", usageKey("agent-7", day))
}
