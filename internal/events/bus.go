package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-mailer/internal/logger"
)

// Topics published by the mailer.
const (
	TopicQueueStatus       = "queue:status"
	TopicCampaignQueued    = "campaign:queued"
	TopicCampaignProgress  = "campaign:progress"
	TopicCampaignCompleted = "campaign:completed"
	TopicCampaignPaused    = "campaign:paused"
	TopicOutboxBounce      = "outbox:bounce"
	TopicInboxMessage      = "inbox:message"
)

type Event struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Bus fans events out to in-process subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	buffer  int
	dropped atomic.Int64
	log     zerolog.Logger
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		log:    logger.Component("events"),
	}
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	ID     string
	C      <-chan Event
	ch     chan Event
	topics map[string]bool
	bus    *Bus
	once   sync.Once
}

// Subscribe registers a subscriber for the given topics, or for every topic
// when none are named.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{
		ID:  uuid.NewString(),
		C:   ch,
		ch:  ch,
		bus: b,
	}
	if len(topics) > 0 {
		s.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			s.topics[t] = true
		}
	}

	b.mu.Lock()
	b.subs[s.ID] = s
	b.mu.Unlock()
	return s
}

// Close removes the subscription and closes C. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.ID)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

func (s *Subscription) wants(topic string) bool {
	return s.topics == nil || s.topics[topic]
}

func (b *Bus) Publish(topic string, payload any) {
	ev := Event{ID: uuid.NewString(), Topic: topic, Payload: payload, At: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			b.log.Debug().Str("subscriber", s.ID).Str("topic", topic).Msg("subscriber buffer full, event dropped")
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped counts events discarded because a subscriber was not keeping up.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }
