package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/repository/memory"
)

type countingStore struct {
	*memory.Suppressions
	lookups int
	err     error
}

func (c *countingStore) IsUnsubscribed(ctx context.Context, addr string) (bool, error) {
	c.lookups++
	if c.err != nil {
		return false, c.err
	}
	return c.Suppressions.IsUnsubscribed(ctx, addr)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSuppressions()
	require.NoError(t, store.Block(ctx, "blocked@example.com", ""))
	require.NoError(t, store.Unsubscribe(ctx, "gone@example.com", ""))
	require.NoError(t, store.Block(ctx, "both@example.com", ""))
	require.NoError(t, store.Unsubscribe(ctx, "both@example.com", ""))

	g := New(store, time.Minute)

	testCases := []struct {
		address string
		want    Decision
	}{
		{"ok@example.com", Decision{Allowed: true}},
		{"blocked@example.com", Decision{Reason: model.ReasonBlocked}},
		{"  Blocked@Example.COM ", Decision{Reason: model.ReasonBlocked}},
		{"gone@example.com", Decision{Reason: model.ReasonUnsubscribed}},
		{"both@example.com", Decision{Reason: model.ReasonUnsubscribed}},
	}
	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			got, err := g.Check(ctx, tc.address)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCheckCachesSuppressedOnly(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Suppressions: memory.NewSuppressions()}
	require.NoError(t, store.Unsubscribe(ctx, "gone@example.com", ""))
	g := New(store, time.Minute)

	_, _ = g.Check(ctx, "gone@example.com")
	_, _ = g.Check(ctx, "gone@example.com")
	assert.Equal(t, 1, store.lookups)

	_, _ = g.Check(ctx, "ok@example.com")
	_, _ = g.Check(ctx, "ok@example.com")
	assert.Equal(t, 3, store.lookups)
}

func TestBlockTakesEffectImmediately(t *testing.T) {
	ctx := context.Background()
	g := New(memory.NewSuppressions(), time.Minute)

	d, err := g.Check(ctx, "x@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, g.Block(ctx, "X@example.com", "hard bounce"))
	d, err = g.Check(ctx, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonBlocked, d.Reason)

	require.NoError(t, g.Unsubscribe(ctx, "y@example.com", ""))
	d, _ = g.Check(ctx, "y@example.com")
	assert.Equal(t, model.ReasonUnsubscribed, d.Reason)
}

func TestCheckPropagatesStoreErrors(t *testing.T) {
	store := &countingStore{Suppressions: memory.NewSuppressions(), err: errors.New("db down")}
	_, err := New(store, time.Minute).Check(context.Background(), "a@example.com")
	assert.Error(t, err)
}
