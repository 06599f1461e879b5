package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"barber_booking_echo/internal/models"
)

// ErrInvalidSignature is returned when a notification fails signature verification.
var ErrInvalidSignature = errors.New("invalid notification signature")

// GatewayClient fetches the authoritative state of a payment. Transport
// failures are models.KindGatewayUnavailable, malformed responses are
// models.KindGatewayProtocolError.
type GatewayClient interface {
	FetchPayment(ctx context.Context, paymentReferenceID string) (*models.GatewayPaymentRecord, error)
}

// CheckoutProvider creates the hosted checkout the payer is redirected to.
// ValidateIntent rejects intents the provider cannot check out and is called
// before the intent is stored.
type CheckoutProvider interface {
	ValidateIntent(intent *models.PaymentIntent) error
	CreateCheckout(ctx context.Context, intent *models.PaymentIntent) (redirectURL string, err error)
}

// InboundNotification is the raw HTTP delivery from a gateway.
type InboundNotification struct {
	Body   []byte
	Query  url.Values
	Header http.Header
}

// Gateway is one payment provider: ground truth, checkout and the parsing of
// its notification format.
type Gateway interface {
	GatewayClient
	CheckoutProvider
	Provider() models.PaymentGateway
	// ParseNotification returns a typed notification, a gateway protocol
	// error for a malformed delivery, or ErrInvalidSignature.
	ParseNotification(in InboundNotification) (*models.Notification, error)
}
