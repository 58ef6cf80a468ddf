package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/account"
	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/delivery"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/gate"
	"github.com/unclebandit/campaign-mailer/internal/metrics"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/queue"
	"github.com/unclebandit/campaign-mailer/internal/quota"
	"github.com/unclebandit/campaign-mailer/internal/repository"
	"github.com/unclebandit/campaign-mailer/internal/repository/memory"
)

// recordingAdapter remembers every address it was asked to deliver to.
type recordingAdapter struct {
	mu    sync.Mutex
	to    []string
	fail  map[string]error
	panic bool
}

func (r *recordingAdapter) Send(_ context.Context, _ *model.SendingAccount, msg delivery.Message) error {
	if r.panic {
		panic("transport exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, msg.To)
	if err, ok := r.fail[msg.To]; ok {
		return err
	}
	return nil
}

func (r *recordingAdapter) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.to))
	copy(out, r.to)
	return out
}

type harness struct {
	store    *memory.Store
	clk      *clock.Fixed
	bus      *events.Bus
	queue    *queue.CampaignQueue
	counters *Counters
	adapter  *recordingAdapter
	svc      *CampaignService
	disp     *Dispatcher
	sched    *Scheduler
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithCampaigns(t, nil)
}

// newHarnessWithCampaigns lets a test swap the campaign store for a wrapper.
func newHarnessWithCampaigns(t *testing.T, wrap func(*memory.Campaigns) repository.CampaignStore) *harness {
	t.Helper()
	h := &harness{
		store:    memory.New(),
		clk:      clock.NewFixed(time.Date(2025, time.May, 20, 10, 0, 0, 0, time.UTC)),
		bus:      events.NewBus(64),
		queue:    queue.NewCampaignQueue(),
		counters: &Counters{},
		adapter:  &recordingAdapter{fail: map[string]error{}},
	}
	var campaigns repository.CampaignStore = h.store.Campaigns
	if wrap != nil {
		campaigns = wrap(h.store.Campaigns)
	}

	m := metrics.Discard()
	g := gate.New(h.store.Suppressions, time.Minute)
	pipeline := &Pipeline{
		Gate:     g,
		Ledger:   quota.NewLedger(h.store.Accounts, h.store.Usage, h.clk, quota.Limits{Agent: 100, Manager: 1000}),
		Pool:     account.NewPool(h.store.Accounts, h.clk, nil),
		Adapter:  h.adapter,
		Clock:    h.clk,
		Counters: h.counters,
		Metrics:  m,
	}
	h.svc = &CampaignService{
		CampaignRepo: campaigns,
		Queue:        h.queue,
		Bus:          h.bus,
		Counters:     h.counters,
		Pipeline:     pipeline,
		Gate:         g,
		Clock:        h.clk,
		Metrics:      m,
	}
	h.disp = NewDispatcher(campaigns, h.queue, pipeline, h.bus, m, DispatcherConfig{
		Interval:    10 * time.Millisecond,
		Workers:     4,
		UnitTimeout: time.Second,
	})
	h.sched = NewScheduler(campaigns, h.svc, h.bus, quota.NewRollover(h.store.Accounts, h.clk), h.clk, SchedulerConfig{
		Spec:         "@every 1m",
		RolloverSpec: "@midnight",
		Batch:        50,
	})
	return h
}

func (h *harness) today() clock.Date { return h.clk.Today() }

func (h *harness) addAccount(limit, sent int) *model.SendingAccount {
	return h.store.Accounts.AddAccount(model.SendingAccount{
		Name:           "acct",
		FromAddress:    "news@example.com",
		Active:         true,
		DailySendLimit: limit,
		CurrentDaySent: sent,
		LastSentDate:   h.today(),
	})
}

func (h *harness) addCampaign(owner string, role model.Role, addresses ...string) (*model.Campaign, []int64) {
	c := h.store.Campaigns.AddCampaign(model.Campaign{
		Name:      "campaign",
		Subject:   "Hello",
		Body:      "Hi {email}",
		OwnerID:   owner,
		OwnerRole: role,
	})
	return c, h.store.Campaigns.AddRecipients(c.ID, addresses...)
}

func (h *harness) recipient(t *testing.T, id int64) *model.Recipient {
	t.Helper()
	r, err := h.store.Campaigns.GetRecipient(context.Background(), id)
	if err != nil {
		t.Fatalf("get recipient %d: %v", id, err)
	}
	return r
}

func (h *harness) accountSent(t *testing.T, id int64) int {
	t.Helper()
	a, err := h.store.Accounts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return a.EffectiveSent(h.today())
}

func (h *harness) pending(campaignID int64) int {
	stats, _ := h.store.Campaigns.GetCampaignStats(context.Background(), campaignID)
	return stats[string(model.RecipientPending)]
}
