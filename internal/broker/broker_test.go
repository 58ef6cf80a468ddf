package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-mailer/internal/events"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp.Publishing
	failFirst  int
	exchanges  []string
	queues     []string
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(_, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return amqp.ErrClosed
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) messages() []amqp.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.published...)
}

// ackRecorder implements amqp.Acknowledger.
type ackRecorder struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeues []bool
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *ackRecorder) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks), len(a.nacks)
}

func TestRelay_PublishesEnvelopes(t *testing.T) {
	ch := &fakeChannel{failFirst: 1}
	bus := events.NewBus(8)
	relay := NewRelay(ch, "campaign_events", bus)
	relay.Backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)
	bus.Publish(events.TopicCampaignCompleted, map[string]int64{"campaign_id": 4})

	require.Eventually(t, func() bool { return len(ch.messages()) == 1 }, time.Second, time.Millisecond)
	msg := ch.messages()[0]
	assert.Equal(t, events.TopicCampaignCompleted, msg.Type)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.NotEmpty(t, msg.MessageId)

	var env struct {
		Event   string           `json:"event"`
		Payload map[string]int64 `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	assert.Equal(t, events.TopicCampaignCompleted, env.Event)
	assert.Equal(t, int64(4), env.Payload["campaign_id"])
	assert.Equal(t, []string{"campaign_events:fanout"}, ch.exchanges)
}

func TestRelay_GivesUpAfterRetries(t *testing.T) {
	ch := &fakeChannel{failFirst: publishAttempts}
	relay := NewRelay(ch, "x", events.NewBus(1))
	relay.Backoff = time.Millisecond

	err := relay.publish(context.Background(), events.Event{ID: "1", Topic: "t"})
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.Empty(t, ch.messages())
}

type fakeHandler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeHandler) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeHandler) EnqueueCampaign(context.Context, int64) error { return f.record("send") }
func (f *fakeHandler) PauseCampaign(context.Context, int64) error   { return f.record("pause") }
func (f *fakeHandler) ResumeCampaign(context.Context, int64) error  { return f.record("resume") }

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestConsumer_AcksAndNacks(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 4)}
	h := &fakeHandler{}
	ack := &ackRecorder{}

	ch.deliveries <- delivery(ack, 1, `{"command":"send","campaign_id":3}`)
	ch.deliveries <- delivery(ack, 2, `not json`)
	ch.deliveries <- delivery(ack, 3, `{"command":"explode","campaign_id":3}`)
	ch.deliveries <- delivery(ack, 4, `{"command":"pause","campaign_id":3}`)
	close(ch.deliveries)

	c := NewConsumer(ch, "campaign_commands", h)
	err := c.Run(context.Background())
	assert.Error(t, err, "a closed delivery channel ends the consumer")

	acks, nacks := ack.counts()
	assert.Equal(t, 3, acks)
	assert.Equal(t, 1, nacks)
	assert.Equal(t, []uint64{3}, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeues)
	assert.Equal(t, []string{"send", "pause"}, h.calls)
	assert.Equal(t, []string{"campaign_commands"}, ch.queues)
}

func TestConsumer_HandlerErrorIsNotRequeued(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}
	h := &fakeHandler{err: errors.New("campaign not found")}
	ack := &ackRecorder{}
	ch.deliveries <- delivery(ack, 9, `{"command":"resume","campaign_id":12}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewConsumer(ch, "q", h).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { _, n := ack.counts(); return n == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, []bool{false}, ack.requeues)
}
