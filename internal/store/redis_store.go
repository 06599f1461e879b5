package store

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"barber_booking_echo/internal/models"
)

const (
	maxWatchRetries  = 20
	watchBackoffStep = 2 * time.Millisecond
)

// RedisStore keeps intents and bookings as JSON strings. Conditional writes
// use WATCH/MULTI so a concurrent change to the watched booking aborts and
// retries the transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) intentKey(id string) string  { return s.prefix + "intent:" + id }
func (s *RedisStore) bookingKey(id string) string { return s.prefix + "booking:" + id }
func (s *RedisStore) intentIndexKey() string      { return s.prefix + "intents:by_created" }

// watch runs fn in an optimistic transaction, retrying with a growing,
// jittered backoff when a watched key changed.
func (s *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		backoff := time.Duration(i+1)*watchBackoffStep + time.Duration(rand.Int63n(int64(watchBackoffStep)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return redis.TxFailedErr
}

func (s *RedisStore) PutIntent(ctx context.Context, intent *models.PaymentIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	key := s.intentKey(intent.CorrelationID)

	err = s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return models.ErrDuplicateKey
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.intentIndexKey(), redis.Z{
				Score:  float64(intent.CreatedAt.UnixMilli()),
				Member: intent.CorrelationID,
			})
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, models.ErrDuplicateKey) {
		return models.StorageUnavailable("failed to store payment intent", err)
	}
	return err
}

func (s *RedisStore) GetIntent(ctx context.Context, correlationID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	found, err := getJSON(ctx, s.client, s.intentKey(correlationID), &intent)
	if err != nil {
		return nil, models.StorageUnavailable("failed to fetch payment intent", err)
	}
	if !found {
		return nil, models.ErrNotFound
	}
	return &intent, nil
}

func (s *RedisStore) RemoveIntent(ctx context.Context, correlationID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.intentKey(correlationID))
		pipe.ZRem(ctx, s.intentIndexKey(), correlationID)
		return nil
	})
	if err != nil {
		return models.StorageUnavailable("failed to remove payment intent", err)
	}
	return nil
}

func (s *RedisStore) ListStaleIntents(ctx context.Context, before time.Time, limit int) ([]models.PaymentIntent, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.intentIndexKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, models.StorageUnavailable("failed to list stale payment intents", err)
	}

	intents := make([]models.PaymentIntent, 0, len(ids))
	for _, id := range ids {
		intent, err := s.GetIntent(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			// index entry outlived its intent
			s.client.ZRem(ctx, s.intentIndexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		intents = append(intents, *intent)
	}
	return intents, nil
}

func (s *RedisStore) GetBooking(ctx context.Context, correlationID string) (*models.ConfirmedBooking, error) {
	var booking models.ConfirmedBooking
	found, err := getJSON(ctx, s.client, s.bookingKey(correlationID), &booking)
	if err != nil {
		return nil, models.StorageUnavailable("failed to fetch booking", err)
	}
	if !found {
		return nil, models.ErrNotFound
	}
	return &booking, nil
}

// ConfirmPaid watches the booking key, and in one MULTI writes the paid
// booking and deletes the intent unless the booking is already paid.
func (s *RedisStore) ConfirmPaid(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	id := booking.CorrelationID
	bookingKey := s.bookingKey(id)

	row := *booking
	row.Paid = true
	row.UpdatedAt = time.Now()
	data, err := json.Marshal(row)
	if err != nil {
		return false, err
	}

	applied := false
	err = s.watch(ctx, func(tx *redis.Tx) error {
		applied = false
		var current models.ConfirmedBooking
		found, err := getJSON(ctx, tx, bookingKey, &current)
		if err != nil {
			return err
		}
		if found && current.Paid {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bookingKey, data, 0)
			pipe.Del(ctx, s.intentKey(id))
			pipe.ZRem(ctx, s.intentIndexKey(), id)
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	}, bookingKey)
	if err != nil {
		return false, models.StorageUnavailable("failed to confirm booking", err)
	}
	return applied, nil
}

func (s *RedisStore) RecordStatus(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	bookingKey := s.bookingKey(booking.CorrelationID)

	applied := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		applied = false
		var current models.ConfirmedBooking
		found, err := getJSON(ctx, tx, bookingKey, &current)
		if err != nil {
			return err
		}
		if found && current.Paid {
			return nil
		}
		if found && current.PaymentStatus == booking.PaymentStatus &&
			current.PaymentReferenceID == booking.PaymentReferenceID {
			// redelivery of the status already stored
			applied = true
			return nil
		}
		if !found {
			current = *booking
			current.Paid = false
			current.PaidAt = nil
		}
		current.PaymentStatus = booking.PaymentStatus
		current.PaymentReferenceID = booking.PaymentReferenceID
		current.UpdatedAt = time.Now()

		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bookingKey, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	}, bookingKey)
	if err != nil {
		return false, models.StorageUnavailable("failed to record payment status", err)
	}
	return applied, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON(ctx context.Context, c stringGetter, key string, dest interface{}) (bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}
