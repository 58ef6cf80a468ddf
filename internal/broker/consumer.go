package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/campaign-mailer/internal/logger"
)

// Command is a campaign instruction received from the command queue.
type Command struct {
	Command    string `json:"command"`
	CampaignID int64  `json:"campaign_id"`
}

const (
	CommandSend   = "send"
	CommandPause  = "pause"
	CommandResume = "resume"
)

// CommandHandler executes campaign commands. *service.CampaignService implements it.
type CommandHandler interface {
	EnqueueCampaign(ctx context.Context, id int64) error
	PauseCampaign(ctx context.Context, id int64) error
	ResumeCampaign(ctx context.Context, id int64) error
}

// Consumer reads commands from a durable queue with manual acknowledgement.
type Consumer struct {
	ch      Channel
	queue   string
	handler CommandHandler
	log     zerolog.Logger
}

func NewConsumer(ch Channel, queue string, handler CommandHandler) *Consumer {
	return &Consumer{
		ch:      ch,
		queue:   queue,
		handler: handler,
		log:     logger.Component("amqp_consumer"),
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	q, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info().Str("queue", q.Name).Msg("consuming commands")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", q.Name)
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var cmd Command
	if err := json.Unmarshal(d.Body, &cmd); err != nil || cmd.CampaignID == 0 {
		c.log.Warn().Err(err).Bytes("body", d.Body).Msg("invalid command, dropping")
		c.ack(d)
		return
	}

	if err := c.dispatch(ctx, cmd); err != nil {
		c.log.Error().Err(err).Str("command", cmd.Command).Int64("campaign_id", cmd.CampaignID).Msg("command failed")
		if err := d.Nack(false, false); err != nil {
			c.log.Error().Err(err).Msg("nack failed")
		}
		return
	}
	c.log.Info().Str("command", cmd.Command).Int64("campaign_id", cmd.CampaignID).Msg("command applied")
	c.ack(d)
}

func (c *Consumer) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Command {
	case CommandSend:
		return c.handler.EnqueueCampaign(ctx, cmd.CampaignID)
	case CommandPause:
		return c.handler.PauseCampaign(ctx, cmd.CampaignID)
	case CommandResume:
		return c.handler.ResumeCampaign(ctx, cmd.CampaignID)
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.log.Error().Err(err).Msg("ack failed")
	}
}
