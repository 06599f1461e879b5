package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"barber_booking_echo/internal/models"
)

// MemoryStore keeps intents and bookings in process memory. It honours the
// same conditional write contract as the durable backends but only within a
// single process, so it is meant for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	intents  map[string]models.PaymentIntent
	bookings map[string]models.ConfirmedBooking

	// bookingWrites counts every applied booking write.
	bookingWrites int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:  make(map[string]models.PaymentIntent),
		bookings: make(map[string]models.ConfirmedBooking),
	}
}

func (s *MemoryStore) PutIntent(ctx context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.CorrelationID]; exists {
		return models.ErrDuplicateKey
	}
	s.intents[intent.CorrelationID] = *intent
	return nil
}

func (s *MemoryStore) GetIntent(ctx context.Context, correlationID string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[correlationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &intent, nil
}

func (s *MemoryStore) RemoveIntent(ctx context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.intents, correlationID)
	return nil
}

func (s *MemoryStore) ListStaleIntents(ctx context.Context, before time.Time, limit int) ([]models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []models.PaymentIntent
	for _, intent := range s.intents {
		if intent.CreatedAt.Before(before) {
			stale = append(stale, intent)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, correlationID string) (*models.ConfirmedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[correlationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &booking, nil
}

func (s *MemoryStore) ConfirmPaid(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.bookings[booking.CorrelationID]; ok && current.Paid {
		return false, nil
	}
	stored := *booking
	stored.Paid = true
	stored.UpdatedAt = time.Now()
	s.bookings[booking.CorrelationID] = stored
	delete(s.intents, booking.CorrelationID)
	s.bookingWrites++
	return true, nil
}

func (s *MemoryStore) RecordStatus(ctx context.Context, booking *models.ConfirmedBooking) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bookings[booking.CorrelationID]
	if ok && current.Paid {
		return false, nil
	}
	if !ok {
		current = *booking
		current.Paid = false
		current.PaidAt = nil
	}
	current.PaymentStatus = booking.PaymentStatus
	current.PaymentReferenceID = booking.PaymentReferenceID
	current.UpdatedAt = time.Now()
	s.bookings[booking.CorrelationID] = current
	s.bookingWrites++
	return true, nil
}

// BookingWrites returns how many booking writes were applied.
func (s *MemoryStore) BookingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingWrites
}
