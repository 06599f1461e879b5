package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateIntent stores a payment intent and returns the checkout URL.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req CreateIntentRequest
	if err := c.Bind(&req); err != nil {
		return models.InvalidInput("invalid JSON payload")
	}
	if !req.Amount.Valid {
		return models.InvalidInput("amount is required and must be numeric")
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = req.AppointmentID
	}

	result, err := h.payments.CreateIntent(c.Request().Context(), services.CreateIntentInput{
		CorrelationID: correlationID,
		BarberID:      req.BarberID,
		ServiceName:   req.Service,
		ClientName:    req.ClientName,
		DateKey:       req.DateKey,
		HourKey:       req.HourKey,
		Amount:        req.Amount.Decimal,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreateIntentResponse{
		CorrelationID: result.Intent.CorrelationID,
		RedirectURL:   result.RedirectURL,
		InitPoint:     result.RedirectURL,
	})
}
