package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/mpesa-backend/internal/models"
)

func pending(id string) models.PendingPayment {
	return models.PendingPayment{CheckoutRequestID: id}
}

func TestMemory_PutTake(t *testing.T) {
	m := NewMemory()
	m.Put("ws_CO_1", pending("ws_CO_1"))
	assert.Equal(t, 1, m.Len())

	p, ok := m.Take("ws_CO_1")
	require.True(t, ok)
	assert.Equal(t, "ws_CO_1", p.CheckoutRequestID)
	assert.False(t, p.CreatedAt.IsZero(), "Put stamps CreatedAt")
	assert.Equal(t, 0, m.Len())
}

func TestMemory_TakeTwiceSecondMisses(t *testing.T) {
	m := NewMemory()
	m.Put("ws_CO_1", pending("ws_CO_1"))

	_, ok := m.Take("ws_CO_1")
	require.True(t, ok)
	_, ok = m.Take("ws_CO_1")
	assert.False(t, ok)
}

func TestMemory_TakeUnknown(t *testing.T) {
	m := NewMemory()
	_, ok := m.Take("nope")
	assert.False(t, ok)
}

func TestMemory_ConcurrentTakeExactlyOneHit(t *testing.T) {
	const rounds = 200
	for i := 0; i < rounds; i++ {
		m := NewMemory()
		m.Put("ws_CO_1", pending("ws_CO_1"))

		var hits int64
		var wg sync.WaitGroup
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := m.Take("ws_CO_1"); ok {
					atomic.AddInt64(&hits, 1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int64(1), hits)
	}
}

func TestMemory_ExpireOnlyOld(t *testing.T) {
	m := NewMemory()
	old := pending("old")
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := pending("fresh")
	fresh.CreatedAt = time.Now().Add(-time.Minute)
	m.Put("old", old)
	m.Put("fresh", fresh)

	n := m.Expire(time.Hour)
	assert.Equal(t, 1, n)

	_, ok := m.Take("old")
	assert.False(t, ok)
	_, ok = m.Take("fresh")
	assert.True(t, ok)
}

func TestMemory_ExpireEmpty(t *testing.T) {
	m := NewMemory()
	assert.Equal(t, 0, m.Expire(time.Hour))
}
