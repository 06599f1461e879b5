package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/store"
)

// ReconcileStatus tells the notification endpoint how to answer the gateway.
type ReconcileStatus string

const (
	// ReconcileOK covers every legitimate outcome, including no-ops.
	ReconcileOK ReconcileStatus = "ok"
	// ReconcileRejected means the notification was dropped on validation.
	ReconcileRejected ReconcileStatus = "rejected"
	// ReconcileFailed means an infrastructure or protocol failure.
	ReconcileFailed ReconcileStatus = "failed"
)

// Outcome is which branch of the reconciliation fired.
type Outcome string

const (
	OutcomeConfirmed          Outcome = "confirmed"
	OutcomeStatusRecorded     Outcome = "status_recorded"
	OutcomeAlreadyConfirmed   Outcome = "already_confirmed"
	OutcomeNoReference        Outcome = "no_reference"
	OutcomeNoIntent           Outcome = "no_intent"
	OutcomeAmountMismatch     Outcome = "amount_mismatch"
	OutcomeGatewayUnavailable Outcome = "gateway_unavailable"
	OutcomeProtocolError      Outcome = "gateway_protocol_error"
	OutcomeStorageUnavailable Outcome = "storage_unavailable"
)

// ReconcileResult replaces error returns for reconciliation so callers can
// tell "acknowledge" from "let the gateway retry" without inspecting errors.
type ReconcileResult struct {
	Status        ReconcileStatus
	Outcome       Outcome
	CorrelationID string
	Err           error
}

// Retryable reports whether the gateway should redeliver the notification.
func (r ReconcileResult) Retryable() bool {
	return r.Status == ReconcileFailed &&
		(r.Outcome == OutcomeGatewayUnavailable || r.Outcome == OutcomeStorageUnavailable)
}

func okResult(outcome Outcome, correlationID string) ReconcileResult {
	return ReconcileResult{Status: ReconcileOK, Outcome: outcome, CorrelationID: correlationID}
}

func rejectedResult(outcome Outcome, correlationID string) ReconcileResult {
	return ReconcileResult{Status: ReconcileRejected, Outcome: outcome, CorrelationID: correlationID}
}

func failedResult(outcome Outcome, correlationID string, err error) ReconcileResult {
	return ReconcileResult{Status: ReconcileFailed, Outcome: outcome, CorrelationID: correlationID, Err: err}
}

// Reconciler turns gateway notifications into confirmed bookings. It keeps
// no state between calls; every call starts from the gateway and the store.
type Reconciler struct {
	gateway   GatewayClient
	store     store.Store
	publisher BookingPublisher
	now       func() time.Time
}

func NewReconciler(gateway GatewayClient, st store.Store, publisher BookingPublisher) *Reconciler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Reconciler{
		gateway:   gateway,
		store:     st,
		publisher: publisher,
		now:       time.Now,
	}
}

// Reconcile fetches the payment from the gateway and applies it to the
// booking identified by its external reference.
func (r *Reconciler) Reconcile(ctx context.Context, paymentReferenceID string) ReconcileResult {
	logger := log.With().Str("payment_reference_id", paymentReferenceID).Logger()

	record, err := r.gateway.FetchPayment(ctx, paymentReferenceID)
	if err != nil {
		if models.IsKind(err, models.KindGatewayProtocolError) {
			logger.Error().Err(err).Msg("Dropping notification with malformed gateway response")
			return failedResult(OutcomeProtocolError, "", err)
		}
		logger.Error().Err(err).Msg("Gateway unavailable")
		return failedResult(OutcomeGatewayUnavailable, "", err)
	}

	correlationID := record.ExternalReference
	if correlationID == "" || !models.ValidCorrelationID(correlationID) {
		logger.Info().Str("external_reference", correlationID).Msg("Payment is not linked to a booking")
		return okResult(OutcomeNoReference, "")
	}
	logger = logger.With().Str("correlation_id", correlationID).Str("status", string(record.Status)).Logger()

	booking, err := r.store.GetBooking(ctx, correlationID)
	switch {
	case err == nil && booking.Paid:
		logger.Info().Msg("Booking already confirmed")
		return okResult(OutcomeAlreadyConfirmed, correlationID)
	case err != nil && !errors.Is(err, models.ErrNotFound):
		logger.Error().Err(err).Msg("Failed to read booking")
		return failedResult(OutcomeStorageUnavailable, correlationID, err)
	}

	intent, err := r.store.GetIntent(ctx, correlationID)
	if errors.Is(err, models.ErrNotFound) {
		logger.Info().Msg("No payment intent for notification")
		return okResult(OutcomeNoIntent, correlationID)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read payment intent")
		return failedResult(OutcomeStorageUnavailable, correlationID, err)
	}

	if !record.TransactionAmount.Equal(intent.Amount) {
		logger.Warn().
			Str("expected_amount", intent.Amount.String()).
			Str("reported_amount", record.TransactionAmount.String()).
			Msg("Amount mismatch, payment not confirmed")
		return rejectedResult(OutcomeAmountMismatch, correlationID)
	}

	next := intent.ToBooking()
	next.PaymentStatus = record.Status
	next.PaymentReferenceID = record.PaymentReferenceID

	if !record.Status.IsApproved() {
		applied, err := r.store.RecordStatus(ctx, &next)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to record payment status")
			return failedResult(OutcomeStorageUnavailable, correlationID, err)
		}
		if !applied {
			// confirmed concurrently
			return okResult(OutcomeAlreadyConfirmed, correlationID)
		}
		logger.Info().Msg("Payment status recorded")
		return okResult(OutcomeStatusRecorded, correlationID)
	}

	paidAt := r.now()
	next.PaidAt = &paidAt
	applied, err := r.store.ConfirmPaid(ctx, &next)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to confirm booking")
		return failedResult(OutcomeStorageUnavailable, correlationID, err)
	}
	if !applied {
		logger.Info().Msg("Booking already confirmed")
		return okResult(OutcomeAlreadyConfirmed, correlationID)
	}

	// The booking write is what matters; a failed cleanup leaves an intent
	// that later notifications and the retention task skip or remove.
	if err := r.store.RemoveIntent(ctx, correlationID); err != nil {
		logger.Warn().Err(err).Msg("Failed to remove payment intent after confirmation")
	}

	if err := r.publisher.PublishBookingConfirmed(ctx, &next); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish booking confirmed event")
	}

	logger.Info().Msg("Booking confirmed")
	return okResult(OutcomeConfirmed, correlationID)
}
