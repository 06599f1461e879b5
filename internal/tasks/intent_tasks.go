package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/store"
)

const (
	ExpireIntentsTaskID = "expire_payment_intents"
	defaultExpireLimit  = 500
)

// ExpireIntentsTask removes payment intents that outlived the retention
// window. It only reads local state: it never asks the gateway and never
// confirms a booking. Intents whose booking shows an in-flight gateway
// status are kept so a late approval can still complete.
type ExpireIntentsTask struct {
	store     store.Store
	retention time.Duration
	now       func() time.Time
}

func NewExpireIntentsTask(st store.Store, retention time.Duration) *ExpireIntentsTask {
	return &ExpireIntentsTask{store: st, retention: retention, now: time.Now}
}

func (t *ExpireIntentsTask) TaskID() string {
	return ExpireIntentsTaskID
}

// HandleExecution accepts optional "older_than_hours" and "limit" arguments.
func (t *ExpireIntentsTask) HandleExecution(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	retention := t.retention
	if hours, ok := numberArg(args, "older_than_hours"); ok {
		if hours <= 0 {
			return nil, fmt.Errorf("older_than_hours must be positive, got %v", hours)
		}
		retention = time.Duration(hours * float64(time.Hour))
	}
	limit := defaultExpireLimit
	if n, ok := numberArg(args, "limit"); ok && n > 0 {
		limit = int(n)
	}

	cutoff := t.now().Add(-retention)
	stale, err := t.store.ListStaleIntents(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	removed, skipped := 0, 0
	for _, intent := range stale {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		booking, err := t.store.GetBooking(ctx, intent.CorrelationID)
		switch {
		case err == nil && !booking.Paid && booking.PaymentStatus.InFlight():
			skipped++
			continue
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, err
		}

		if err := t.store.RemoveIntent(ctx, intent.CorrelationID); err != nil {
			return nil, err
		}
		removed++
		log.Debug().
			Str("correlation_id", intent.CorrelationID).
			Time("created_at", intent.CreatedAt).
			Msg("Expired payment intent")
	}

	log.Info().Int("scanned", len(stale)).Int("removed", removed).Int("skipped", skipped).Msg("Payment intent retention finished")
	return map[string]interface{}{
		"status":  "success",
		"cutoff":  cutoff.Format(time.RFC3339),
		"scanned": len(stale),
		"removed": removed,
		"skipped": skipped,
	}, nil
}

// numberArg reads a numeric argument decoded from JSON.
func numberArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
