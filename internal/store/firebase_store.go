package store

import (
	"context"
	"errors"
	"time"

	"firebase.google.com/go/v4/db"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"barber_booking_echo/internal/models"
)

const (
	intentsPath  = "paymentIntents"
	bookingsPath = "appointments"
)

// errAlreadyPaid aborts a transaction without writing.
var errAlreadyPaid = errors.New("booking already paid")

// FirebaseStore keeps intents and bookings in the Realtime Database under
// paymentIntents/{id} and appointments/{id}. Conditional writes go through
// Ref.Transaction, which retries the update function until its compare-and-set
// succeeds.
type FirebaseStore struct {
	client *db.Client
}

func NewFirebaseStore(client *db.Client) *FirebaseStore {
	return &FirebaseStore{client: client}
}

// firebaseIntent is the stored shape of a PaymentIntent; timestamps are
// epoch millis so they can be ordered by the database.
type firebaseIntent struct {
	BarberID    string          `json:"barberId"`
	ServiceName string          `json:"service"`
	ClientName  string          `json:"clientName"`
	DateKey     string          `json:"dateKey"`
	HourKey     string          `json:"hourKey"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   int64           `json:"createdAt"`
}

type firebaseBooking struct {
	BarberID           string          `json:"barberId"`
	ServiceName        string          `json:"service"`
	ClientName         string          `json:"clientName"`
	DateKey            string          `json:"dateKey"`
	HourKey            string          `json:"hourKey"`
	Amount             decimal.Decimal `json:"amount"`
	CreatedAt          int64           `json:"createdAt"`
	Paid               bool            `json:"paid"`
	PaymentStatus      string          `json:"paymentStatus"`
	PaymentReferenceID string          `json:"paymentReferenceId,omitempty"`
	PaidAt             int64           `json:"paidAt,omitempty"`
	UpdatedAt          int64           `json:"updatedAt"`
}

func toFirebaseIntent(i *models.PaymentIntent) firebaseIntent {
	return firebaseIntent{
		BarberID:    i.BarberID,
		ServiceName: i.ServiceName,
		ClientName:  i.ClientName,
		DateKey:     i.DateKey,
		HourKey:     i.HourKey,
		Amount:      i.Amount,
		CreatedAt:   i.CreatedAt.UnixMilli(),
	}
}

func (f firebaseIntent) model(id string) models.PaymentIntent {
	return models.PaymentIntent{
		CorrelationID: id,
		BarberID:      f.BarberID,
		ServiceName:   f.ServiceName,
		ClientName:    f.ClientName,
		DateKey:       f.DateKey,
		HourKey:       f.HourKey,
		Amount:        f.Amount,
		CreatedAt:     time.UnixMilli(f.CreatedAt),
	}
}

func toFirebaseBooking(b *models.ConfirmedBooking) firebaseBooking {
	fb := firebaseBooking{
		BarberID:           b.BarberID,
		ServiceName:        b.ServiceName,
		ClientName:         b.ClientName,
		DateKey:            b.DateKey,
		HourKey:            b.HourKey,
		Amount:             b.Amount,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		Paid:               b.Paid,
		PaymentStatus:      string(b.PaymentStatus),
		PaymentReferenceID: b.PaymentReferenceID,
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
	}
	if b.PaidAt != nil {
		fb.PaidAt = b.PaidAt.UnixMilli()
	}
	return fb
}

func (f firebaseBooking) model(id string) models.ConfirmedBooking {
	b := models.ConfirmedBooking{
		CorrelationID:      id,
		BarberID:           f.BarberID,
		ServiceName:        f.ServiceName,
		ClientName:         f.ClientName,
		DateKey:            f.DateKey,
		HourKey:            f.HourKey,
		Amount:             f.Amount,
		CreatedAt:          time.UnixMilli(f.CreatedAt),
		Paid:               f.Paid,
		PaymentStatus:      models.PaymentStatus(f.PaymentStatus),
		PaymentReferenceID: f.PaymentReferenceID,
		UpdatedAt:          time.UnixMilli(f.UpdatedAt),
	}
	if f.PaidAt != 0 {
		paidAt := time.UnixMilli(f.PaidAt)
		b.PaidAt = &paidAt
	}
	return b
}

func (s *FirebaseStore) intentRef(id string) *db.Ref {
	return s.client.NewRef(intentsPath).Child(id)
}

func (s *FirebaseStore) bookingRef(id string) *db.Ref {
	return s.client.NewRef(bookingsPath).Child(id)
}

func (s *FirebaseStore) PutIntent(ctx context.Context, intent *models.PaymentIntent) error {
	record := toFirebaseIntent(intent)
	err := s.intentRef(intent.CorrelationID).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current *firebaseIntent
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		if current != nil {
			return nil, models.ErrDuplicateKey
		}
		return record, nil
	})
	if errors.Is(err, models.ErrDuplicateKey) {
		return err
	}
	if err != nil {
		return models.StorageUnavailable("failed to store payment intent", err)
	}
	return nil
}

func (s *FirebaseStore) GetIntent(ctx context.Context, correlationID string) (*models.PaymentIntent, error) {
	var record *firebaseIntent
	if err := s.intentRef(correlationID).Get(ctx, &record); err != nil {
		return nil, models.StorageUnavailable("failed to fetch payment intent", err)
	}
	if record == nil {
		return nil, models.ErrNotFound
	}
	intent := record.model(correlationID)
	return &intent, nil
}

func (s *FirebaseStore) RemoveIntent(ctx context.Context, correlationID string) error {
	if err := s.intentRef(correlationID).Delete(ctx); err != nil {
		return models.StorageUnavailable("failed to remove payment intent", err)
	}
	return nil
}

func (s *FirebaseStore) ListStaleIntents(ctx context.Context, before time.Time, limit int) ([]models.PaymentIntent, error) {
	query := s.client.NewRef(intentsPath).OrderByChild("createdAt").EndAt(before.UnixMilli() - 1)
	if limit > 0 {
		query = query.LimitToFirst(limit)
	}
	nodes, err := query.GetOrdered(ctx)
	if err != nil {
		return nil, models.StorageUnavailable("failed to list stale payment intents", err)
	}

	intents := make([]models.PaymentIntent, 0, len(nodes))
	for _, node := range nodes {
		var record firebaseIntent
		if err := node.Unmarshal(&record); err != nil {
			return nil, models.StorageUnavailable("failed to decode payment intent", err)
		}
		intents = append(intents, record.model(node.Key()))
	}
	return intents, nil
}

func (s *FirebaseStore) GetBooking(ctx context.Context, correlationID string) (*models.ConfirmedBooking, error) {
	var record *firebaseBooking
	if err := s.bookingRef(correlationID).Get(ctx, &record); err != nil {
		return nil, models.StorageUnavailable("failed to fetch booking", err)
	}
	if record == nil {
		return nil, models.ErrNotFound
	}
	booking := record.model(correlationID)
	return &booking, nil
}

// ConfirmPaid sets the booking to paid in a transaction on appointments/{id}.
// RTDB transactions cover a single location, so the intent is removed after
// the booking write commits; RemoveIntent is idempotent and the paid guard
// makes a retried confirmation a no-op.
func (s *FirebaseStore) ConfirmPaid(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	row := *booking
	row.Paid = true
	row.UpdatedAt = time.Now()
	record := toFirebaseBooking(&row)

	err := s.bookingRef(booking.CorrelationID).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current *firebaseBooking
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		if current != nil && current.Paid {
			return nil, errAlreadyPaid
		}
		return record, nil
	})
	if errors.Is(err, errAlreadyPaid) {
		return false, nil
	}
	if err != nil {
		return false, models.StorageUnavailable("failed to confirm booking", err)
	}

	// The booking is committed. A failed removal leaves an intent that the
	// paid guard ignores and the retention task deletes.
	if err := s.RemoveIntent(ctx, booking.CorrelationID); err != nil {
		log.Warn().Err(err).Str("correlation_id", booking.CorrelationID).Msg("Failed to remove payment intent after confirmation")
	}
	return true, nil
}

func (s *FirebaseStore) RecordStatus(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	now := time.Now().UnixMilli()
	fresh := toFirebaseBooking(booking)
	fresh.Paid = false
	fresh.PaidAt = 0

	err := s.bookingRef(booking.CorrelationID).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current *firebaseBooking
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		if current != nil && current.Paid {
			return nil, errAlreadyPaid
		}
		next := fresh
		if current != nil {
			next = *current
		}
		next.PaymentStatus = string(booking.PaymentStatus)
		next.PaymentReferenceID = booking.PaymentReferenceID
		next.UpdatedAt = now
		return next, nil
	})
	if errors.Is(err, errAlreadyPaid) {
		return false, nil
	}
	if err != nil {
		return false, models.StorageUnavailable("failed to record payment status", err)
	}
	return true, nil
}
