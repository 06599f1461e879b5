package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/models"
)

type midtransStatusChecker interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

type midtransSnapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransService adapts Midtrans to the Gateway interface. The Midtrans
// order id is the correlation id.
type MidtransService struct {
	serverKey string
	appURL    string
	core      midtransStatusChecker
	snap      midtransSnapCreator
}

func NewMidtransService(cfg *config.Config) *MidtransService {
	env := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.MidtransServerKey, env)

	var c coreapi.Client
	c.New(cfg.MidtransServerKey, env)

	return &MidtransService{
		serverKey: cfg.MidtransServerKey,
		appURL:    strings.TrimRight(cfg.AppURL, "/"),
		core:      &c,
		snap:      &s,
	}
}

func (s *MidtransService) Provider() models.PaymentGateway {
	return models.PaymentGatewayMidtrans
}

// FetchPayment checks the transaction status by order id.
func (s *MidtransService) FetchPayment(ctx context.Context, paymentReferenceID string) (*models.GatewayPaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.GatewayUnavailable("midtrans status check cancelled", err)
	}

	resp, mErr := s.core.CheckTransaction(paymentReferenceID)
	if mErr != nil {
		return nil, models.GatewayUnavailable(
			fmt.Sprintf("midtrans status check failed with status %d", mErr.StatusCode), mErr)
	}
	return midtransRecord(resp)
}

func midtransRecord(resp *coreapi.TransactionStatusResponse) (*models.GatewayPaymentRecord, error) {
	if resp == nil || resp.TransactionStatus == "" {
		return nil, models.GatewayProtocolError("midtrans response without transaction_status", nil)
	}
	amount, err := decimal.NewFromString(resp.GrossAmount)
	if err != nil {
		return nil, models.GatewayProtocolError("malformed midtrans gross_amount", err)
	}

	ref := resp.TransactionID
	if ref == "" {
		ref = resp.OrderID
	}
	return &models.GatewayPaymentRecord{
		PaymentReferenceID: ref,
		Status:             MidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		TransactionAmount:  amount,
		ExternalReference:  resp.OrderID,
	}, nil
}

// MidtransStatus maps a Midtrans transaction/fraud status pair onto the
// booking status vocabulary. Unknown statuses pass through verbatim.
func MidtransStatus(transactionStatus, fraudStatus string) models.PaymentStatus {
	switch transactionStatus {
	case "settlement":
		return models.PaymentStatusApproved
	case "capture":
		switch fraudStatus {
		case "accept", "":
			return models.PaymentStatusApproved
		case "challenge":
			return models.PaymentStatusInProcess
		default:
			return models.PaymentStatusRejected
		}
	case "pending":
		return models.PaymentStatusPending
	case "deny":
		return models.PaymentStatusRejected
	case "cancel", "expire":
		return models.PaymentStatusCancelled
	case "refund", "partial_refund":
		return models.PaymentStatusRefunded
	case "chargeback", "partial_chargeback":
		return models.PaymentStatusChargedBack
	}
	return models.PaymentStatus(transactionStatus)
}

// ValidateIntent rejects fractional amounts; Midtrans takes whole amounts only.
func (s *MidtransService) ValidateIntent(intent *models.PaymentIntent) error {
	if !intent.Amount.Equal(intent.Amount.Truncate(0)) {
		return models.InvalidInput("amount must be a whole number for midtrans")
	}
	return nil
}

// CreateCheckout creates a Snap transaction for the intent.
func (s *MidtransService) CreateCheckout(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	if err := s.ValidateIntent(intent); err != nil {
		return "", err
	}
	gross := intent.Amount.IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  intent.CorrelationID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: intent.ClientName,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    intent.Slot(),
				Name:  truncate("Anticipo - "+intent.ServiceName, 50),
				Price: gross,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: s.appURL + "/payment-result?id=" + intent.CorrelationID,
		},
	}

	resp, mErr := s.snap.CreateTransaction(req)
	if mErr != nil {
		return "", models.GatewayUnavailable("midtrans create transaction failed", mErr)
	}
	if resp == nil || resp.RedirectURL == "" {
		return "", models.GatewayProtocolError("midtrans response without redirect_url", nil)
	}
	return resp.RedirectURL, nil
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
}

// ParseNotification reads the HTTP notification body. The order id is what
// the status endpoint is queried with. With a server key configured every
// notification must carry a valid signature_key.
func (s *MidtransService) ParseNotification(in InboundNotification) (*models.Notification, error) {
	var body midtransNotification
	if err := json.Unmarshal(in.Body, &body); err != nil {
		return nil, models.GatewayProtocolError("malformed midtrans notification", err)
	}

	n := &models.Notification{
		Provider:           models.PaymentGatewayMidtrans,
		PaymentReferenceID: body.OrderID,
		Topic:              "payment",
	}
	if s.serverKey != "" && !s.VerifySignature(body.OrderID, body.StatusCode, body.GrossAmount, body.SignatureKey) {
		return n, ErrInvalidSignature
	}
	return n, nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server_key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + s.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signatureKey))) == 1
}
