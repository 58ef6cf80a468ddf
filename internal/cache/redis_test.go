//go:build e2e

package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/unclebandit/campaign-mailer/internal/clock"
)

type UsageLedgerTestSuite struct {
	suite.Suite
	client *redis.Client
	ledger *UsageLedger
}

func (s *UsageLedgerTestSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	s.ledger = NewUsageLedger(s.client)
}

func (s *UsageLedgerTestSuite) TearDownSuite() {
	s.client.FlushDB(s.T().Context())
	s.client.Close()
}

func (s *UsageLedgerTestSuite) SetupTest() {
	s.client.FlushDB(s.T().Context())
}

func (s *UsageLedgerTestSuite) TestConsumeUpToLimit() {
	ctx := s.T().Context()
	day := clock.Date{Year: 2025, Month: time.May, Day: 1}

	for i := 0; i < 5; i++ {
		ok, err := s.ledger.ReadAndMaybeIncrement(ctx, "agent-1", day, 1, 5)
		s.NoError(err)
		s.True(ok)
	}
	ok, err := s.ledger.ReadAndMaybeIncrement(ctx, "agent-1", day, 1, 5)
	s.NoError(err)
	s.False(ok)

	v, err := s.client.Get(ctx, usageKey("agent-1", day)).Int()
	s.NoError(err)
	s.Equal(5, v)
}

func (s *UsageLedgerTestSuite) TestNewDayIsSeparateKey() {
	ctx := s.T().Context()
	day := clock.Date{Year: 2025, Month: time.May, Day: 1}

	ok, err := s.ledger.ReadAndMaybeIncrement(ctx, "agent-2", day, 3, 3)
	s.NoError(err)
	s.True(ok)

	ok, err = s.ledger.ReadAndMaybeIncrement(ctx, "agent-2", day.AddDays(1), 3, 3)
	s.NoError(err)
	s.True(ok)

	ttl, err := s.client.TTL(ctx, usageKey("agent-2", day)).Result()
	s.NoError(err)
	s.Greater(ttl, 24*time.Hour)
}

func TestUsageLedgerSuite(t *testing.T) {
	suite.Run(t, new(UsageLedgerTestSuite))
}
