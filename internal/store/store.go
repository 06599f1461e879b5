package store

import (
	"context"
	"time"

	"barber_booking_echo/internal/models"
)

// IntentStore holds payment intents keyed by correlation id.
type IntentStore interface {
	// PutIntent stores a new intent. It returns models.ErrDuplicateKey when an
	// intent already exists for the correlation id; existing intents are never
	// overwritten.
	PutIntent(ctx context.Context, intent *models.PaymentIntent) error
	// GetIntent returns models.ErrNotFound when there is no intent.
	GetIntent(ctx context.Context, correlationID string) (*models.PaymentIntent, error)
	// RemoveIntent is idempotent: removing a missing intent is not an error.
	RemoveIntent(ctx context.Context, correlationID string) error
	// ListStaleIntents returns up to limit intents created before the given time, oldest first.
	ListStaleIntents(ctx context.Context, before time.Time, limit int) ([]models.PaymentIntent, error)
}

// BookingStore holds reconciled bookings keyed by correlation id.
type BookingStore interface {
	// GetBooking returns models.ErrNotFound when there is no booking.
	GetBooking(ctx context.Context, correlationID string) (*models.ConfirmedBooking, error)
	// ConfirmPaid writes the booking with paid=true only if no paid booking
	// exists for the correlation id, as one conditional write. applied is
	// false when a paid booking was already there. Backends that support it
	// remove the matching intent in the same transaction.
	ConfirmPaid(ctx context.Context, booking *models.ConfirmedBooking) (applied bool, err error)
	// RecordStatus upserts the payment status of an unpaid booking. It never
	// touches a paid booking; applied is false in that case.
	RecordStatus(ctx context.Context, booking *models.ConfirmedBooking) (applied bool, err error)
}

// Store is the durable state the reconciler works against.
type Store interface {
	IntentStore
	BookingStore
}
