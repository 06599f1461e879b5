package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"barber_booking_echo/internal/models"
)

// CreateIntentRequest is the create-intent body. appointmentId is the key
// older clients send for the correlation id.
type CreateIntentRequest struct {
	CorrelationID string              `json:"correlationId"`
	AppointmentID string              `json:"appointmentId"`
	BarberID      string              `json:"barberId"`
	Service       string              `json:"service"`
	ClientName    string              `json:"clientName"`
	DateKey       string              `json:"dateKey"`
	HourKey       string              `json:"hourKey"`
	Amount        decimal.NullDecimal `json:"amount"`
}

type CreateIntentResponse struct {
	CorrelationID string `json:"correlationId"`
	RedirectURL   string `json:"redirectUrl"`
	// InitPoint mirrors RedirectURL under the Mercado Pago name.
	InitPoint string `json:"init_point"`
}

// BookingStatusResponse is what the booking UI polls after the redirect.
type BookingStatusResponse struct {
	CorrelationID string               `json:"correlationId"`
	Paid          bool                 `json:"paid"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaidAt        *time.Time           `json:"paidAt,omitempty"`
}

// ReconcileResponse reports a manual reconciliation.
type ReconcileResponse struct {
	Status        string `json:"status"`
	Outcome       string `json:"outcome"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
}
