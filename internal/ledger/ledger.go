package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/baharkarakas/mpesa-backend/internal/models"
)

// Ledger correlates a gateway CheckoutRequestID with the request context it
// was issued for. Put and Take are atomic with respect to each other: two
// callbacks racing on one id see exactly one hit. The in-memory form serves
// a single instance; a shared deployment swaps in an externally backed
// implementation behind this interface.
type Ledger interface {
	Put(id string, p models.PendingPayment)
	Take(id string) (models.PendingPayment, bool)
	Expire(olderThan time.Duration) int
	Len() int
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]models.PendingPayment
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]models.PendingPayment), now: time.Now}
}

func (m *Memory) Put(id string, p models.PendingPayment) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.mu.Lock()
	m.entries[id] = p
	m.mu.Unlock()
}

// Take removes and returns the entry, so each id reconciles at most once.
func (m *Memory) Take(id string) (models.PendingPayment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	return p, ok
}

// Expire removes entries older than olderThan and returns how many.
func (m *Memory) Expire(olderThan time.Duration) int {
	cutoff := m.now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.entries {
		if p.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep expires entries older than maxAge every interval until ctx is done.
// Some pushes never get a callback (payer ignores the prompt, webhook lost);
// without this the ledger grows forever.
func Sweep(ctx context.Context, l Ledger, interval, maxAge time.Duration, onExpired func(count int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Expire(maxAge); n > 0 && onExpired != nil {
				onExpired(n)
			}
		}
	}
}
