package delivery

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/model"
)

var ErrMockSendFailed = errors.New("mock send failed")

// MockAdapter records messages instead of sending them. SuccessRate is a
// percentage; 90 fails roughly one send in ten.
type MockAdapter struct {
	SuccessRate int
	Delay       time.Duration

	mu   sync.Mutex
	rng  *rand.Rand
	sent []Message
}

var _ Adapter = (*MockAdapter)(nil)

func NewMockAdapter(successRate int) *MockAdapter {
	return &MockAdapter{
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockAdapter) Send(ctx context.Context, _ *model.SendingAccount, msg Message) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rng.Intn(100) >= m.SuccessRate {
		return ErrMockSendFailed
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of every message accepted so far.
func (m *MockAdapter) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
