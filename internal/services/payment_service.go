package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/store"
)

// CreateIntentInput is what the booking UI submits before redirecting the payer.
type CreateIntentInput struct {
	CorrelationID string
	BarberID      string
	ServiceName   string
	ClientName    string
	DateKey       string
	HourKey       string
	Amount        decimal.Decimal
}

// CreateIntentResult holds the stored intent and where to send the payer.
type CreateIntentResult struct {
	Intent      *models.PaymentIntent
	RedirectURL string
}

type PaymentService struct {
	intents  store.IntentStore
	checkout CheckoutProvider
	now      func() time.Time
}

func NewPaymentService(intents store.IntentStore, checkout CheckoutProvider) *PaymentService {
	return &PaymentService{
		intents:  intents,
		checkout: checkout,
		now:      time.Now,
	}
}

// Validate rejects input before any state is touched.
func (in CreateIntentInput) Validate() error {
	id := strings.TrimSpace(in.CorrelationID)
	if id == "" {
		return models.InvalidInput("correlationId is required")
	}
	if !models.ValidCorrelationID(id) {
		return models.InvalidInput("correlationId may only contain letters, digits, '-' and '_' (max 128)")
	}
	if !in.Amount.IsPositive() {
		return models.InvalidInput("amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return models.InvalidInput("amount must have at most two decimal places")
	}
	return nil
}

// CreateIntent stores the intent and creates the gateway checkout for it.
// Duplicate correlation ids are rejected, never overwritten. If the checkout
// cannot be created the intent is removed so the caller may retry.
func (s *PaymentService) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		CorrelationID: strings.TrimSpace(in.CorrelationID),
		BarberID:      in.BarberID,
		ServiceName:   in.ServiceName,
		ClientName:    in.ClientName,
		DateKey:       in.DateKey,
		HourKey:       in.HourKey,
		Amount:        in.Amount,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.checkout.ValidateIntent(intent); err != nil {
		return nil, err
	}

	if err := s.intents.PutIntent(ctx, intent); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, models.NewError(models.KindDuplicateKey, "a payment intent already exists for this correlationId", err)
		}
		return nil, err
	}

	redirectURL, err := s.checkout.CreateCheckout(ctx, intent)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", intent.CorrelationID).Msg("Failed to create checkout")
		if rmErr := s.intents.RemoveIntent(ctx, intent.CorrelationID); rmErr != nil {
			log.Error().Err(rmErr).Str("correlation_id", intent.CorrelationID).Msg("Failed to remove intent after checkout failure")
		}
		return nil, err
	}

	log.Info().
		Str("correlation_id", intent.CorrelationID).
		Str("amount", intent.Amount.String()).
		Msg("Payment intent created")
	return &CreateIntentResult{Intent: intent, RedirectURL: redirectURL}, nil
}
