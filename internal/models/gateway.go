package models

import (
	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors the gateway status vocabulary. Values outside the
// known set are kept verbatim.
type PaymentStatus string

const (
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusAuthorized  PaymentStatus = "authorized"
	PaymentStatusInProcess   PaymentStatus = "in_process"
	PaymentStatusInMediation PaymentStatus = "in_mediation"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusChargedBack PaymentStatus = "charged_back"
)

// IsApproved reports whether the status confirms the payment. Only the exact
// literal "approved" does.
func (s PaymentStatus) IsApproved() bool {
	return s == PaymentStatusApproved
}

// InFlight reports whether the gateway may still approve the payment later.
func (s PaymentStatus) InFlight() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusInProcess, PaymentStatusAuthorized, PaymentStatusInMediation:
		return true
	}
	return false
}

// GatewayPaymentRecord is the authoritative payment state fetched from the
// gateway for one notification. It is never persisted as-is.
type GatewayPaymentRecord struct {
	PaymentReferenceID string
	Status             PaymentStatus
	TransactionAmount  decimal.Decimal
	// ExternalReference carries the correlation id set when the checkout was created.
	ExternalReference string
}

// Notification is a parsed inbound gateway delivery.
type Notification struct {
	Provider           PaymentGateway
	PaymentReferenceID string
	Topic              string
}
