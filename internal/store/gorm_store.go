package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barber_booking_echo/internal/models"
)

var bookingColumns = []string{
	"barber_id", "service_name", "client_name", "date_key", "hour_key", "amount",
	"paid", "payment_status", "payment_reference_id", "paid_at", "updated_at",
}

// unpaidOnly restricts an upsert to rows whose stored booking is not paid yet.
var unpaidOnly = clause.Where{Exprs: []clause.Expression{
	clause.Eq{Column: clause.Column{Table: "confirmed_bookings", Name: "paid"}, Value: false},
}}

// GormStore keeps intents and bookings in Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) PutIntent(ctx context.Context, intent *models.PaymentIntent) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "correlation_id"}}, DoNothing: true}).
		Create(intent)
	if result.Error != nil {
		return models.StorageUnavailable("failed to store payment intent", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrDuplicateKey
	}
	return nil
}

func (s *GormStore) GetIntent(ctx context.Context, correlationID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.StorageUnavailable("failed to fetch payment intent", err)
	}
	return &intent, nil
}

func (s *GormStore) RemoveIntent(ctx context.Context, correlationID string) error {
	err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).Delete(&models.PaymentIntent{}).Error
	if err != nil {
		return models.StorageUnavailable("failed to remove payment intent", err)
	}
	return nil
}

func (s *GormStore) ListStaleIntents(ctx context.Context, before time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	query := s.db.WithContext(ctx).Where("created_at < ?", before).Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&intents).Error; err != nil {
		return nil, models.StorageUnavailable("failed to list stale payment intents", err)
	}
	return intents, nil
}

func (s *GormStore) GetBooking(ctx context.Context, correlationID string) (*models.ConfirmedBooking, error) {
	var booking models.ConfirmedBooking
	err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.StorageUnavailable("failed to fetch booking", err)
	}
	return &booking, nil
}

// ConfirmPaid inserts or upgrades the booking to paid with
// INSERT ... ON CONFLICT DO UPDATE ... WHERE paid = false and deletes the
// intent in the same transaction. A paid row makes the upsert affect zero rows.
func (s *GormStore) ConfirmPaid(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	row := *booking
	row.Paid = true

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "correlation_id"}},
			DoUpdates: clause.AssignmentColumns(bookingColumns),
			Where:     unpaidOnly,
		}).Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Where("correlation_id = ?", booking.CorrelationID).Delete(&models.PaymentIntent{}).Error
	})
	if err != nil {
		return false, models.StorageUnavailable("failed to confirm booking", err)
	}
	return applied, nil
}

func (s *GormStore) RecordStatus(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	row := *booking
	row.Paid = false
	row.PaidAt = nil

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "correlation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payment_status", "payment_reference_id", "updated_at"}),
		Where:     unpaidOnly,
	}).Create(&row)
	if result.Error != nil {
		return false, models.StorageUnavailable("failed to record payment status", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CallbackHistory appends inbound gateway deliveries to the audit table.
type CallbackHistory struct {
	db *gorm.DB
}

func NewCallbackHistory(db *gorm.DB) *CallbackHistory {
	return &CallbackHistory{db: db}
}

func (h *CallbackHistory) Record(ctx context.Context, entry *models.PaymentCallbackHistory) error {
	return h.db.WithContext(ctx).Create(entry).Error
}
