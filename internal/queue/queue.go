// Package queue holds the set of campaigns currently being dispatched.
package queue

import (
	"sort"
	"sync"
)

// CampaignQueue is a set of campaign ids. A campaign is present at most
// once no matter how often it is added.
type CampaignQueue struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewCampaignQueue() *CampaignQueue {
	return &CampaignQueue{ids: make(map[int64]struct{})}
}

// Add inserts id and reports whether it was newly added.
func (q *CampaignQueue) Add(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ids[id]; ok {
		return false
	}
	q.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (q *CampaignQueue) Remove(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ids[id]; !ok {
		return false
	}
	delete(q.ids, id)
	return true
}

func (q *CampaignQueue) Contains(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.ids[id]
	return ok
}

func (q *CampaignQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Snapshot returns the ids in ascending order. Later changes to the queue
// do not affect the returned slice.
func (q *CampaignQueue) Snapshot() []int64 {
	q.mu.Lock()
	out := make([]int64, 0, len(q.ids))
	for id := range q.ids {
		out = append(out, id)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
