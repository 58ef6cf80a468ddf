package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	b := NewBus(4)
	all := b.Subscribe()
	onlyPaused := b.Subscribe(TopicCampaignPaused)
	defer all.Close()
	defer onlyPaused.Close()

	b.Publish(TopicCampaignQueued, map[string]int64{"campaign_id": 1})
	b.Publish(TopicCampaignPaused, map[string]int64{"campaign_id": 1})

	ev := <-all.C
	assert.Equal(t, TopicCampaignQueued, ev.Topic)
	assert.NotEmpty(t, ev.ID)
	ev = <-all.C
	assert.Equal(t, TopicCampaignPaused, ev.Topic)

	ev = <-onlyPaused.C
	assert.Equal(t, TopicCampaignPaused, ev.Topic)
	assert.Len(t, onlyPaused.C, 0)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus(1)
	slow := b.Subscribe()
	defer slow.Close()

	b.Publish(TopicQueueStatus, 1)
	b.Publish(TopicQueueStatus, 2)
	b.Publish(TopicQueueStatus, 3)

	assert.Equal(t, int64(2), b.Dropped())
	ev := <-slow.C
	assert.Equal(t, 1, ev.Payload)
}

func TestCloseRemovesSubscription(t *testing.T) {
	b := NewBus(1)
	s := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, b.Subscribers())

	_, open := <-s.C
	assert.False(t, open)

	// publishing after close must not panic
	b.Publish(TopicQueueStatus, nil)
}
