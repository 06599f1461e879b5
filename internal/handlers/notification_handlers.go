package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
)

const (
	maxNotificationBody = 64 << 10
	reconcileTimeout    = 30 * time.Second
)

// CallbackRecorder persists the audit trail of inbound deliveries.
type CallbackRecorder interface {
	Record(ctx context.Context, entry *models.PaymentCallbackHistory) error
}

// NotificationHandler is the gateway-facing endpoint. It answers 200 for
// every outcome except failures the gateway can fix by redelivering.
type NotificationHandler struct {
	gateway    services.Gateway
	reconciler *services.Reconciler
	history    CallbackRecorder
}

func NewNotificationHandler(gateway services.Gateway, reconciler *services.Reconciler, history CallbackRecorder) *NotificationHandler {
	return &NotificationHandler{gateway: gateway, reconciler: reconciler, history: history}
}

func ack(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Webhook handles one gateway notification.
func (h *NotificationHandler) Webhook(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxNotificationBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	// The gateway may hang up once it has sent; the transition must not be cut short.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), reconcileTimeout)
	defer cancel()

	logger := log.With().
		Str("provider", string(h.gateway.Provider())).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Logger()

	n, err := h.gateway.ParseNotification(services.InboundNotification{
		Body:   body,
		Query:  c.QueryParams(),
		Header: req.Header,
	})
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		ref := ""
		if n != nil {
			ref = n.PaymentReferenceID
		}
		logger.Warn().Str("payment_reference_id", ref).Msg("Notification signature mismatch, ignoring")
		h.record(ctx, ref, "", "invalid_signature", "", body)
		return ack(c)
	case err != nil:
		logger.Error().Err(err).Msg("Malformed notification, ignoring")
		h.record(ctx, "", "", string(services.OutcomeProtocolError), err.Error(), body)
		return ack(c)
	}

	if n.PaymentReferenceID == "" {
		logger.Debug().Msg("Notification without payment reference")
		return ack(c)
	}
	if n.Topic != "" && n.Topic != "payment" {
		logger.Debug().Str("topic", n.Topic).Msg("Ignoring non-payment notification")
		return ack(c)
	}

	result := h.reconciler.Reconcile(ctx, n.PaymentReferenceID)

	detail := ""
	if result.Err != nil {
		detail = result.Err.Error()
	}
	h.record(ctx, n.PaymentReferenceID, result.CorrelationID, string(result.Outcome), detail, body)

	if result.Retryable() {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "retry",
			"outcome": string(result.Outcome),
		})
	}
	return ack(c)
}

func (h *NotificationHandler) record(ctx context.Context, ref, correlationID, outcome, detail string, body []byte) {
	if h.history == nil {
		return
	}

	metadata := json.RawMessage(body)
	if !json.Valid(body) {
		raw, _ := json.Marshal(string(body))
		metadata = raw
	}
	entry := &models.PaymentCallbackHistory{
		PaymentGateway:     h.gateway.Provider(),
		PaymentReferenceID: ref,
		CorrelationID:      correlationID,
		Outcome:            outcome,
		Detail:             detail,
		Metadata:           metadata,
	}
	if err := h.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("Failed to record payment callback history")
	}
}
