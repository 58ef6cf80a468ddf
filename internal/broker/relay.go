package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/logger"
)

const publishAttempts = 3

// envelope is the wire form of a relayed event.
type envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Relay forwards every bus event to a fanout exchange.
type Relay struct {
	ch       Channel
	exchange string
	bus      *events.Bus
	log      zerolog.Logger

	// Backoff is multiplied by the attempt number between publish retries.
	Backoff time.Duration
}

func NewRelay(ch Channel, exchange string, bus *events.Bus) *Relay {
	return &Relay{
		ch:       ch,
		exchange: exchange,
		bus:      bus,
		log:      logger.Component("amqp_relay"),
		Backoff:  500 * time.Millisecond,
	}
}

// Run declares the exchange and relays events until ctx is cancelled.
// An event that still fails after the retries is logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.ch.ExchangeDeclare(r.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}
	sub := r.bus.Subscribe()
	defer sub.Close()
	r.log.Info().Str("exchange", r.exchange).Msg("relaying events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.C:
			if err := r.publish(ctx, ev); err != nil {
				r.log.Error().Err(err).Str("topic", ev.Topic).Str("event_id", ev.ID).Msg("dropping event after retries")
			}
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(envelope{Event: ev.Topic, Payload: ev.Payload, At: ev.At})
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.At,
		Type:         ev.Topic,
		Body:         body,
	}

	for attempt := 1; ; attempt++ {
		err = r.ch.Publish(r.exchange, "", false, false, msg)
		if err == nil || attempt == publishAttempts {
			return err
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("publish failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.Backoff):
		}
	}
}
