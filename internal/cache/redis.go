package cache

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/config"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

//go:embed lua/consume.lua
var consumeScript string

// usageTTL keeps yesterday's key around long enough to be inspected, then lets it expire.
const usageTTL = 48 * time.Hour

func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// UsageLedger is a Redis-backed per-user daily ledger. Each user/day pair
// is one key, so a new day needs no reset.
type UsageLedger struct {
	client redis.Scripter
	script *redis.Script
}

var _ repository.UsageStore = (*UsageLedger)(nil)

func NewUsageLedger(client redis.Scripter) *UsageLedger {
	return &UsageLedger{client: client, script: redis.NewScript(consumeScript)}
}

func usageKey(user string, day clock.Date) string {
	return fmt.Sprintf("usage:{%s}:%s", user, day.String())
}

func (l *UsageLedger) ReadAndMaybeIncrement(ctx context.Context, key string, day clock.Date, amount, limit int) (bool, error) {
	res, err := l.script.Run(ctx, l.client, []string{usageKey(key, day)},
		amount, limit, int(usageTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("usage script: %w", err)
	}
	return res == 1, nil
}
