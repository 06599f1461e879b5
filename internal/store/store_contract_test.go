package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber_booking_echo/internal/models"
)

// testStoreContract runs the behaviour every backend must share against a
// fresh store. Ids are prefixed so backends without cleanup stay isolated.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	newIntent := func(id string, createdAt time.Time) *models.PaymentIntent {
		return &models.PaymentIntent{
			CorrelationID: id,
			BarberID:      "barber-1",
			ServiceName:   "Corte",
			ClientName:    "Ana",
			DateKey:       "2024-05-10",
			HourKey:       "10:00",
			Amount:        decimal.RequireFromString("100.00"),
			CreatedAt:     createdAt,
		}
	}
	uniqueID := func(t *testing.T, name string) string {
		return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	}

	t.Run("put and get intent", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		require.NoError(t, s.PutIntent(ctx, newIntent(id, base)))

		got, err := s.GetIntent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.CorrelationID)
		assert.Equal(t, "barber-1", got.BarberID)
		assert.Equal(t, "Corte", got.ServiceName)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("100")))
		assert.True(t, got.CreatedAt.Equal(base))
	})

	t.Run("duplicate intent is rejected and original kept", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		require.NoError(t, s.PutIntent(ctx, newIntent(id, base)))

		dup := newIntent(id, base)
		dup.Amount = decimal.RequireFromString("1.00")
		err := s.PutIntent(ctx, dup)
		assert.ErrorIs(t, err, models.ErrDuplicateKey)

		got, err := s.GetIntent(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("missing records are not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetIntent(ctx, uniqueID(t, "missing"))
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = s.GetBooking(ctx, uniqueID(t, "missing"))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("remove intent is idempotent", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		require.NoError(t, s.PutIntent(ctx, newIntent(id, base)))

		require.NoError(t, s.RemoveIntent(ctx, id))
		require.NoError(t, s.RemoveIntent(ctx, id))

		_, err := s.GetIntent(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("stale intents oldest first with limit", func(t *testing.T) {
		s := newStore(t)
		old := base.Add(-100 * time.Hour)
		a := uniqueID(t, "stale-a")
		b := uniqueID(t, "stale-b")
		c := uniqueID(t, "fresh-c")
		require.NoError(t, s.PutIntent(ctx, newIntent(b, old.Add(time.Minute))))
		require.NoError(t, s.PutIntent(ctx, newIntent(a, old)))
		require.NoError(t, s.PutIntent(ctx, newIntent(c, base)))

		stale, err := s.ListStaleIntents(ctx, base.Add(-time.Hour), 10)
		require.NoError(t, err)

		var ids []string
		for _, intent := range stale {
			if intent.CorrelationID == a || intent.CorrelationID == b || intent.CorrelationID == c {
				ids = append(ids, intent.CorrelationID)
			}
		}
		assert.Equal(t, []string{a, b}, ids)

		limited, err := s.ListStaleIntents(ctx, base.Add(-time.Hour), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("confirm paid applies once and removes intent", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		intent := newIntent(id, base)
		require.NoError(t, s.PutIntent(ctx, intent))

		paidAt := base.Add(time.Minute)
		booking := intent.ToBooking()
		booking.PaymentStatus = models.PaymentStatusApproved
		booking.PaymentReferenceID = "pay-1"
		booking.PaidAt = &paidAt

		applied, err := s.ConfirmPaid(ctx, &booking)
		require.NoError(t, err)
		assert.True(t, applied)

		later := base.Add(time.Hour)
		again := booking
		again.PaidAt = &later
		applied, err = s.ConfirmPaid(ctx, &again)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := s.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Paid)
		assert.Equal(t, models.PaymentStatusApproved, got.PaymentStatus)
		require.NotNil(t, got.PaidAt)
		assert.True(t, got.PaidAt.Equal(paidAt))

		_, err = s.GetIntent(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("record status tracks unpaid and never touches paid", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		intent := newIntent(id, base)
		require.NoError(t, s.PutIntent(ctx, intent))

		pending := intent.ToBooking()
		pending.PaymentStatus = models.PaymentStatusPending
		pending.PaymentReferenceID = "pay-1"
		applied, err := s.RecordStatus(ctx, &pending)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := s.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Paid)
		assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
		assert.Nil(t, got.PaidAt)

		// the intent stays for a later approval
		_, err = s.GetIntent(ctx, id)
		require.NoError(t, err)

		paidAt := base
		approved := intent.ToBooking()
		approved.PaymentStatus = models.PaymentStatusApproved
		approved.PaidAt = &paidAt
		applied, err = s.ConfirmPaid(ctx, &approved)
		require.NoError(t, err)
		assert.True(t, applied)

		late := intent.ToBooking()
		late.PaymentStatus = models.PaymentStatusRejected
		applied, err = s.RecordStatus(ctx, &late)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err = s.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Paid)
		assert.Equal(t, models.PaymentStatusApproved, got.PaymentStatus)
	})

	t.Run("concurrent confirmations apply exactly once", func(t *testing.T) {
		s := newStore(t)
		id := uniqueID(t, "apt")
		intent := newIntent(id, base)
		require.NoError(t, s.PutIntent(ctx, intent))

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				paidAt := time.Now()
				booking := intent.ToBooking()
				booking.PaymentStatus = models.PaymentStatusApproved
				booking.PaidAt = &paidAt
				ok, err := s.ConfirmPaid(ctx, &booking)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, applied)
	})
}
