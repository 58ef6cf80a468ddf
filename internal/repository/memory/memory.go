// Package memory holds in-process implementations of the repository
// interfaces. They back STORE=memory and most service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/clock"
	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/repository"
)

// Store bundles one of each in-memory repository.
type Store struct {
	Campaigns    *Campaigns
	Accounts     *Accounts
	Usage        *Usage
	Suppressions *Suppressions
}

func New() *Store {
	return &Store{
		Campaigns:    NewCampaigns(),
		Accounts:     NewAccounts(),
		Usage:        NewUsage(),
		Suppressions: NewSuppressions(),
	}
}

// ====================== Campaigns ======================

type Campaigns struct {
	mu         sync.Mutex
	campaigns  map[int64]*model.Campaign
	recipients map[int64]*model.Recipient
	nextCID    int64
	nextRID    int64
}

var _ repository.CampaignStore = (*Campaigns)(nil)

func NewCampaigns() *Campaigns {
	return &Campaigns{
		campaigns:  make(map[int64]*model.Campaign),
		recipients: make(map[int64]*model.Recipient),
	}
}

// AddCampaign stores a copy of c, assigning an ID when c.ID is zero.
func (s *Campaigns) AddCampaign(c model.Campaign) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextCID++
		c.ID = s.nextCID
	} else if c.ID > s.nextCID {
		s.nextCID = c.ID
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.campaigns[c.ID] = &c
	cp := c
	return &cp
}

// AddRecipients appends pending recipient rows for campaignID in the order given.
func (s *Campaigns) AddRecipients(campaignID int64, addresses ...string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(addresses))
	now := time.Now()
	for _, addr := range addresses {
		s.nextRID++
		s.recipients[s.nextRID] = &model.Recipient{
			ID:         s.nextRID,
			CampaignID: campaignID,
			Address:    addr,
			Status:     model.RecipientPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ids = append(ids, s.nextRID)
	}
	return ids
}

func (s *Campaigns) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (s *Campaigns) UpdateStatus(_ context.Context, id int64, status model.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	now := time.Now()
	c.Status = status
	c.UpdatedAt = &now
	return nil
}

func (s *Campaigns) MarkScheduled(_ context.Context, id int64, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	now := time.Now()
	c.Status = model.CampaignScheduled
	if at != nil {
		t := *at
		c.ScheduledAt = &t
	}
	c.UpdatedAt = &now
	return nil
}

func (s *Campaigns) FetchDueScheduledCampaigns(_ context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := []*model.Campaign{}
	for _, c := range s.campaigns {
		if c.Due(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(*due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Campaigns) FetchPendingRecipient(_ context.Context, campaignID int64) (*model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *model.Recipient
	for _, r := range s.recipients {
		if r.CampaignID != campaignID || r.Status != model.RecipientPending {
			continue
		}
		if found == nil || r.ID < found.ID {
			found = r
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (s *Campaigns) GetRecipient(_ context.Context, id int64) (*model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return nil, appErrors.NewRecipientNotFound(id)
	}
	cp := *r
	return &cp, nil
}

func (s *Campaigns) UpdateRecipientStatus(_ context.Context, id int64, status model.RecipientStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return appErrors.NewRecipientNotFound(id)
	}
	now := time.Now()
	r.Status = status
	r.ErrorMessage = reason
	if status == model.RecipientSent {
		r.SentAt = &now
	}
	r.UpdatedAt = now
	return nil
}

func (s *Campaigns) MarkOpened(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok || r.Status != model.RecipientSent {
		return false, nil
	}
	r.Status = model.RecipientOpened
	r.OpenedAt = &at
	r.UpdatedAt = time.Now()
	return true, nil
}

func (s *Campaigns) MarkClicked(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return false, nil
	}
	switch r.Status {
	case model.RecipientSent, model.RecipientOpened, model.RecipientClicked:
	default:
		return false, nil
	}
	r.Status = model.RecipientClicked
	r.ClickedAt = &at
	r.UpdatedAt = time.Now()
	return true, nil
}

func (s *Campaigns) GetCampaignStats(_ context.Context, campaignID int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := map[string]int{"total": 0}
	for _, r := range s.recipients {
		if r.CampaignID != campaignID {
			continue
		}
		stats[string(r.Status)]++
		stats["total"]++
	}
	return stats, nil
}

// ====================== Accounts ======================

type Accounts struct {
	mu       sync.Mutex
	accounts map[int64]*model.SendingAccount
	nextID   int64
}

var _ repository.AccountStore = (*Accounts)(nil)

func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[int64]*model.SendingAccount)}
}

func (s *Accounts) AddAccount(a model.SendingAccount) *model.SendingAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	s.accounts[a.ID] = &a
	cp := a
	return &cp
}

func (s *Accounts) GetByID(_ context.Context, id int64) (*model.SendingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, appErrors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Accounts) ListActiveAccounts(_ context.Context) ([]*model.SendingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.SendingAccount{}
	for _, a := range s.accounts {
		if a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Accounts) IncrementDailySent(_ context.Context, id int64, today clock.Date, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return false, nil
	}
	sent := a.EffectiveSent(today)
	if sent+amount > a.DailySendLimit {
		return false, nil
	}
	a.CurrentDaySent = sent + amount
	a.LastSentDate = today
	return true, nil
}

func (s *Accounts) DecrementDailySent(_ context.Context, id int64, today clock.Date, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.LastSentDate != today {
		return nil
	}
	a.CurrentDaySent -= amount
	if a.CurrentDaySent < 0 {
		a.CurrentDaySent = 0
	}
	return nil
}

func (s *Accounts) ListStaleAccounts(_ context.Context, today clock.Date) ([]*model.SendingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.SendingAccount{}
	for _, a := range s.accounts {
		if a.CurrentDaySent > 0 && a.LastSentDate.Before(today) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Accounts) ResetDailySent(_ context.Context, id int64, today clock.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return appErrors.ErrAccountNotFound
	}
	if a.LastSentDate.Before(today) {
		a.CurrentDaySent = 0
		a.LastSentDate = today
	}
	return nil
}

// ====================== Usage ======================

type usageKey struct {
	user string
	day  clock.Date
}

type Usage struct {
	mu   sync.Mutex
	sent map[usageKey]int
}

var _ repository.UsageStore = (*Usage)(nil)

func NewUsage() *Usage {
	return &Usage{sent: make(map[usageKey]int)}
}

func (s *Usage) ReadAndMaybeIncrement(_ context.Context, key string, day clock.Date, amount, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := usageKey{user: key, day: day}
	if s.sent[k]+amount > limit {
		return false, nil
	}
	s.sent[k] += amount
	return true, nil
}

func (s *Usage) Get(key string, day clock.Date) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[usageKey{user: key, day: day}]
}

// ====================== Suppressions ======================

type Suppressions struct {
	mu           sync.RWMutex
	unsubscribed map[string]string
	blocked      map[string]string
}

var _ repository.SuppressionStore = (*Suppressions)(nil)

func NewSuppressions() *Suppressions {
	return &Suppressions{
		unsubscribed: make(map[string]string),
		blocked:      make(map[string]string),
	}
}

func (s *Suppressions) IsUnsubscribed(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unsubscribed[address]
	return ok, nil
}

func (s *Suppressions) IsBlocklisted(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocked[address]
	return ok, nil
}

func (s *Suppressions) Unsubscribe(_ context.Context, address, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unsubscribed[address]; !ok {
		s.unsubscribed[address] = reason
	}
	return nil
}

func (s *Suppressions) Block(_ context.Context, address, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.blocked[address]; ok && reason == "" {
		reason = prev
	}
	s.blocked[address] = reason
	return nil
}
