package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaign-mailer/internal/errors"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/model"
)

func TestCampaignService_AdmitIsIdempotent(t *testing.T) {
	h := newHarness(t)
	sub := h.svc.SubscribeToEvents(events.TopicCampaignQueued)
	defer sub.Close()

	assert.True(t, h.svc.Admit(7, "send_now"))
	assert.False(t, h.svc.Admit(7, "scheduler"))
	assert.Equal(t, 1, h.queue.Len())

	// both admissions are announced
	assert.Len(t, sub.C, 2)
}

func TestCampaignService_EnqueueCampaign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.addCampaign("agent-1", model.RoleAgent, "a@x")

	require.NoError(t, h.svc.EnqueueCampaign(ctx, c.ID))
	got, _ := h.store.Campaigns.GetByID(ctx, c.ID)
	assert.Equal(t, model.CampaignScheduled, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.Equal(t, h.clk.Now(), *got.ScheduledAt)
	assert.True(t, h.queue.Contains(c.ID))

	var nf *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, h.svc.EnqueueCampaign(ctx, 404), &nf)

	require.NoError(t, h.store.Campaigns.UpdateStatus(ctx, c.ID, model.CampaignSent))
	assert.ErrorIs(t, h.svc.EnqueueCampaign(ctx, c.ID), appErrors.ErrCampaignAlreadySent)
	assert.ErrorIs(t, h.svc.PauseCampaign(ctx, c.ID), appErrors.ErrCampaignAlreadySent)
}

func TestCampaignService_GetQueueStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(10, 0)
	h.adapter.fail["b@x"] = assert.AnError
	c, _ := h.addCampaign("agent-1", model.RoleAgent, "a@x", "b@x")
	require.NoError(t, h.svc.EnqueueCampaign(ctx, c.ID))

	h.disp.Tick(ctx)
	h.disp.Tick(ctx)

	st := h.svc.GetQueueStatus()
	assert.Equal(t, 1, st.QueueSize)
	assert.Equal(t, []int64{c.ID}, st.ActiveCampaignIDs)
	assert.Equal(t, int64(1), st.SentCount)
	assert.Equal(t, int64(1), st.FailedCount)
}

func TestCampaignService_SendDirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SendDirect(ctx, DirectSendRequest{UserID: "u", Role: model.RoleAgent})
	assert.ErrorIs(t, err, appErrors.ErrInvalidRequest)

	req := DirectSendRequest{UserID: "u", Role: model.RoleAgent, To: "a@x", Subject: "s", Body: "b"}
	out, err := h.svc.SendDirect(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExhausted)
	assert.Equal(t, model.ReasonNoAccount, out.Reason)

	acct := h.addAccount(5, 0)
	out, err = h.svc.SendDirect(ctx, req)
	require.NoError(t, err)
	assert.True(t, out.Sent)
	assert.Equal(t, acct.ID, out.AccountID)

	require.NoError(t, h.svc.BlockAddress(ctx, " A@X ", "complaint"))
	_, err = h.svc.SendDirect(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrRecipientBlocked)
	assert.Equal(t, []string{"a@x"}, h.adapter.calls())
}

func TestCampaignService_Tracking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(10, 0)
	c, ids := h.addCampaign("agent-1", model.RoleAgent, "a@x")

	changed, err := h.svc.TrackOpen(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, changed, "pending recipients are not opened")

	require.NoError(t, h.svc.EnqueueCampaign(ctx, c.ID))
	h.disp.Tick(ctx)

	h.clk.Advance(time.Hour)
	changed, err = h.svc.TrackOpen(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = h.svc.TrackClick(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, changed)

	r := h.recipient(t, ids[0])
	assert.Equal(t, model.RecipientClicked, r.Status)
	require.NotNil(t, r.OpenedAt)
	assert.Equal(t, h.clk.Now(), *r.OpenedAt)

	_, err = h.svc.TrackOpen(ctx, 9999)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCampaignService_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(10, 0)
	_, first := h.addCampaign("agent-1", model.RoleAgent, "a@x")
	c2, second := h.addCampaign("agent-1", model.RoleAgent, "A@x")

	require.NoError(t, h.svc.Unsubscribe(ctx, first[0]))
	r := h.recipient(t, first[0])
	assert.Equal(t, model.RecipientFailed, r.Status)
	assert.Equal(t, model.ReasonUnsubscribed, r.ErrorMessage)

	// the address stays suppressed for every later campaign
	require.NoError(t, h.svc.EnqueueCampaign(ctx, c2.ID))
	h.disp.Tick(ctx)
	assert.Equal(t, model.ReasonUnsubscribed, h.recipient(t, second[0]).ErrorMessage)
	assert.Empty(t, h.adapter.calls())
}

func TestCampaignService_HandleDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(10, 0)
	c, ids := h.addCampaign("agent-1", model.RoleAgent, "a@x", "b@x")
	require.NoError(t, h.svc.EnqueueCampaign(ctx, c.ID))
	h.disp.Tick(ctx)

	sub := h.svc.SubscribeToEvents(events.TopicOutboxBounce)
	defer sub.Close()

	err := h.svc.HandleDeliveryFailure(ctx, DeliveryFailure{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidRequest)

	require.NoError(t, h.svc.HandleDeliveryFailure(ctx, DeliveryFailure{RecipientID: ids[0], Reason: "550 no such user", Hard: true}))
	r := h.recipient(t, ids[0])
	assert.Equal(t, model.RecipientFailed, r.Status)
	assert.Equal(t, "550 no such user", r.ErrorMessage)
	assert.Equal(t, int64(1), h.counters.Failed())

	blocked, err := h.svc.Gate.IsBlocked(ctx, "a@x")
	require.NoError(t, err)
	assert.True(t, blocked)

	ev := <-sub.C
	f := ev.Payload.(DeliveryFailure)
	assert.Equal(t, "a@x", f.Address)

	// soft bounces by address only publish
	require.NoError(t, h.svc.HandleDeliveryFailure(ctx, DeliveryFailure{Address: "b@x"}))
	blocked, _ = h.svc.Gate.IsBlocked(ctx, "b@x")
	assert.False(t, blocked)
	assert.Equal(t, model.RecipientPending, h.recipient(t, ids[1]).Status)
}

func TestCampaignService_Inbound(t *testing.T) {
	h := newHarness(t)
	sub := h.svc.SubscribeToEvents(events.TopicInboxMessage)
	defer sub.Close()

	assert.ErrorIs(t, h.svc.Inbound(context.Background(), InboundMessage{}), appErrors.ErrInvalidRequest)
	require.NoError(t, h.svc.Inbound(context.Background(), InboundMessage{From: "lead@x", To: "news@example.com", Subject: "Re: Hello"}))

	ev := <-sub.C
	assert.Equal(t, "lead@x", ev.Payload.(InboundMessage).From)
}
