package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber_booking_echo/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestRedisStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, _ := newTestRedisStore(t)
		return s
	})
}

func TestRedisStore_IndexesIntentsByCreation(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	intent := &models.PaymentIntent{
		CorrelationID: "apt1",
		Amount:        decimal.RequireFromString("100.00"),
		CreatedAt:     time.UnixMilli(1700000000000),
	}
	require.NoError(t, s.PutIntent(ctx, intent))

	score, err := mr.ZScore("test:intents:by_created", "apt1")
	require.NoError(t, err)
	assert.Equal(t, float64(1700000000000), score)

	booking := intent.ToBooking()
	booking.PaymentStatus = models.PaymentStatusApproved
	applied, err := s.ConfirmPaid(ctx, &booking)
	require.NoError(t, err)
	assert.True(t, applied)

	assert.False(t, mr.Exists("test:intent:apt1"))
	members, err := mr.ZMembers("test:intents:by_created")
	if err == nil {
		assert.NotContains(t, members, "apt1")
	}
}

func TestRedisStore_DropsDanglingIndexEntries(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := mr.ZAdd("test:intents:by_created", 1, "ghost")
	require.NoError(t, err)

	stale, err := s.ListStaleIntents(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	members, _ := mr.ZMembers("test:intents:by_created")
	assert.NotContains(t, members, "ghost")
}

func TestRedisStore_UnavailableIsStorageError(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, err := s.GetIntent(context.Background(), "apt1")
	assert.True(t, models.IsKind(err, models.KindStorageUnavailable))
}

func TestRedisStore_RecordStatusUnderContention(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	const writers = 40
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RecordStatus(ctx, &models.ConfirmedBooking{
				CorrelationID:      "apt1",
				Amount:             decimal.RequireFromString("100"),
				PaymentStatus:      models.PaymentStatusPending,
				PaymentReferenceID: "pay-1",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}
	got, err := s.GetBooking(ctx, "apt1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
	assert.False(t, got.Paid)
}
