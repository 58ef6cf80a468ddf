// Package gate decides whether a recipient address may be mailed at all.
package gate

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Decision is the outcome of a gate check. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

// Gate checks the unsubscribe set and the blocklist. Suppressions are never
// lifted, so a positive answer is cached; a negative one is always re-read.
type Gate struct {
	store repository.SuppressionStore
	hits  *gocache.Cache
}

func New(store repository.SuppressionStore, ttl time.Duration) *Gate {
	return &Gate{
		store: store,
		hits:  gocache.New(ttl, 2*ttl),
	}
}

// Normalize lowercases and trims an address. Both suppression sets are keyed by it.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Check reports whether address may be sent to. The unsubscribe set is
// consulted first, so an address on both lists reports "unsubscribed".
func (g *Gate) Check(ctx context.Context, address string) (Decision, error) {
	addr := Normalize(address)
	if v, ok := g.hits.Get(addr); ok {
		return v.(Decision), nil
	}

	unsub, err := g.store.IsUnsubscribed(ctx, addr)
	if err != nil {
		return Decision{}, err
	}
	if unsub {
		return g.remember(addr, model.ReasonUnsubscribed), nil
	}

	blocked, err := g.store.IsBlocklisted(ctx, addr)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		return g.remember(addr, model.ReasonBlocked), nil
	}
	return allowed, nil
}

func (g *Gate) remember(addr, reason string) Decision {
	d := Decision{Reason: reason}
	g.hits.Set(addr, d, gocache.DefaultExpiration)
	return d
}

// Unsubscribe adds address to the unsubscribe set.
func (g *Gate) Unsubscribe(ctx context.Context, address, reason string) error {
	addr := Normalize(address)
	if err := g.store.Unsubscribe(ctx, addr, reason); err != nil {
		return err
	}
	g.hits.Set(addr, Decision{Reason: model.ReasonUnsubscribed}, gocache.DefaultExpiration)
	return nil
}

// Block adds address to the blocklist.
func (g *Gate) Block(ctx context.Context, address, reason string) error {
	addr := Normalize(address)
	// negative answers are never cached, so the next Check re-reads the store
	return g.store.Block(ctx, addr, reason)
}

// IsBlocked reports whether address is unsubscribed or blocklisted.
func (g *Gate) IsBlocked(ctx context.Context, address string) (bool, error) {
	d, err := g.Check(ctx, address)
	if err != nil {
		return false, err
	}
	return !d.Allowed, nil
}
