package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	mprequester "github.com/mercadopago/sdk-go/pkg/requester"
	"github.com/shopspring/decimal"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/models"
)

// MercadoPagoService adapts the Mercado Pago SDK to the Gateway interface.
type MercadoPagoService struct {
	webhookSecret string
	appURL        string
	currency      string
	payments      payment.Client
	preferences   preference.Client
}

func NewMercadoPagoService(cfg *config.Config) (*MercadoPagoService, error) {
	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}

	var requester mprequester.Requester = httpClient
	if base := strings.TrimRight(cfg.MPBaseURL, "/"); base != "" && base != mpDefaultBaseURL {
		target, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid MP_BASE_URL: %w", err)
		}
		requester = &rebaseRequester{client: httpClient, target: target}
	}

	mpCfg, err := mpconfig.New(cfg.MPAccessToken, mpconfig.WithHTTPClient(requester))
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}

	return &MercadoPagoService{
		webhookSecret: cfg.MPWebhookSecret,
		appURL:        strings.TrimRight(cfg.AppURL, "/"),
		currency:      cfg.CheckoutCurrency,
		payments:      payment.NewClient(mpCfg),
		preferences:   preference.NewClient(mpCfg),
	}, nil
}

const mpDefaultBaseURL = "https://api.mercadopago.com"

// rebaseRequester sends the SDK's requests to another host, e.g. a sandbox
// proxy. The SDK hardcodes api.mercadopago.com.
type rebaseRequester struct {
	client *http.Client
	target *url.URL
}

func (r *rebaseRequester) Do(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	req.URL.Path = strings.TrimRight(r.target.Path, "/") + req.URL.Path
	req.Host = r.target.Host
	return r.client.Do(req)
}

func (s *MercadoPagoService) Provider() models.PaymentGateway {
	return models.PaymentGatewayMercadoPago
}

// mpError classifies an SDK error. HTTP error responses and transport
// failures are the gateway being unavailable; an undecodable body is a
// protocol error.
func mpError(action string, err error) error {
	var respErr *mperror.ResponseError
	if errors.As(err, &respErr) {
		return models.GatewayUnavailable(
			fmt.Sprintf("%s: mercado pago responded with status %d", action, respErr.StatusCode),
			fmt.Errorf("%s", truncate(respErr.Message, 256)),
		)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return models.GatewayProtocolError(action+": malformed mercado pago response", err)
	}
	return models.GatewayUnavailable(action+": mercado pago request failed", err)
}

// FetchPayment reads GET /v1/payments/{id}.
func (s *MercadoPagoService) FetchPayment(ctx context.Context, paymentReferenceID string) (*models.GatewayPaymentRecord, error) {
	id, err := strconv.Atoi(paymentReferenceID)
	if err != nil {
		return nil, models.GatewayProtocolError("mercado pago payment id must be numeric", err)
	}

	resp, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, mpError("fetch payment", err)
	}
	return mpPaymentRecord(resp, paymentReferenceID)
}

func mpPaymentRecord(resp *payment.Response, paymentReferenceID string) (*models.GatewayPaymentRecord, error) {
	if resp == nil {
		return nil, models.GatewayProtocolError("empty mercado pago payment", nil)
	}
	if resp.Status == "" {
		return nil, models.GatewayProtocolError("mercado pago payment without status", nil)
	}
	if resp.TransactionAmount <= 0 {
		return nil, models.GatewayProtocolError("mercado pago payment without transaction_amount", nil)
	}

	ref := paymentReferenceID
	if resp.ID != 0 {
		ref = strconv.Itoa(resp.ID)
	}
	return &models.GatewayPaymentRecord{
		PaymentReferenceID: ref,
		Status:             models.PaymentStatus(resp.Status),
		// the API sends at most two decimals; NewFromFloat keeps the shortest exact form
		TransactionAmount: decimal.NewFromFloat(resp.TransactionAmount),
		ExternalReference: resp.ExternalReference,
	}, nil
}

// cardOnly keeps cash and bank transfer methods out of the checkout. Those
// stay pending for days, longer than intents are retained.
var cardOnly = &preference.PaymentMethodsRequest{
	ExcludedPaymentTypes: []preference.ExcludedPaymentTypeRequest{
		{ID: "ticket"},
		{ID: "atm"},
		{ID: "bank_transfer"},
	},
	Installments: 1,
}

// CreateCheckout creates a checkout preference whose external reference is the
// correlation id and returns its init_point.
func (s *MercadoPagoService) CreateCheckout(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	resultURL := s.appURL + "/payment-result?id=" + intent.CorrelationID
	req := preference.Request{
		Items: []preference.ItemRequest{{
			ID:         intent.Slot(),
			Title:      "Anticipo - " + intent.ServiceName,
			Quantity:   1,
			CurrencyID: s.currency,
			UnitPrice:  intent.Amount.InexactFloat64(),
		}},
		ExternalReference: intent.CorrelationID,
		NotificationURL:   s.appURL + "/webhooks/mercadopago",
		BackURLs: &preference.BackURLsRequest{
			Success: resultURL + "&status=approved",
			Pending: resultURL + "&status=pending",
			Failure: resultURL + "&status=rejected",
		},
		AutoReturn:     "approved",
		PaymentMethods: cardOnly,
		Metadata: map[string]any{
			"barberId":   intent.BarberID,
			"dateKey":    intent.DateKey,
			"hourKey":    intent.HourKey,
			"clientName": intent.ClientName,
			"service":    intent.ServiceName,
		},
	}

	resp, err := s.preferences.Create(ctx, req)
	if err != nil {
		return "", mpError("create preference", err)
	}
	if resp == nil || resp.InitPoint == "" {
		return "", models.GatewayProtocolError("mercado pago preference without init_point", nil)
	}
	return resp.InitPoint, nil
}

// ValidateIntent accepts any amount with at most two decimals, which
// CreateIntentInput.Validate already enforces.
func (s *MercadoPagoService) ValidateIntent(*models.PaymentIntent) error {
	return nil
}

type mpNotificationBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification accepts both webhook ({type, data:{id}}) and IPN
// (?topic=payment&id=...) deliveries.
func (s *MercadoPagoService) ParseNotification(in InboundNotification) (*models.Notification, error) {
	n := &models.Notification{Provider: models.PaymentGatewayMercadoPago}

	if len(bytes.TrimSpace(in.Body)) > 0 {
		var body mpNotificationBody
		if err := json.Unmarshal(in.Body, &body); err != nil {
			return nil, models.GatewayProtocolError("malformed mercado pago notification", err)
		}
		id, err := rawID(body.Data.ID)
		if err != nil {
			return nil, models.GatewayProtocolError("malformed mercado pago data.id", err)
		}
		n.PaymentReferenceID = id
		n.Topic = body.Type
	}

	if n.PaymentReferenceID == "" {
		n.PaymentReferenceID = in.Query.Get("data.id")
	}
	if n.PaymentReferenceID == "" {
		n.PaymentReferenceID = in.Query.Get("id")
	}
	if n.Topic == "" {
		n.Topic = in.Query.Get("type")
	}
	if n.Topic == "" {
		n.Topic = in.Query.Get("topic")
	}

	if s.webhookSecret != "" && n.PaymentReferenceID != "" {
		if !s.VerifySignature(in.Header.Get("x-signature"), in.Header.Get("x-request-id"), n.PaymentReferenceID) {
			return n, ErrInvalidSignature
		}
	}
	return n, nil
}

// rawID accepts data.id as a JSON string or number.
func rawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// VerifySignature checks the x-signature header (ts=...,v1=...) against
// HMAC-SHA256 of "id:{data.id};request-id:{x-request-id};ts:{ts};".
func (s *MercadoPagoService) VerifySignature(signature, requestID, dataID string) bool {
	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	expected := signManifest(s.webhookSecret, mpManifest(dataID, requestID, ts))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}

func mpManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	b.WriteString("id:" + strings.ToLower(dataID) + ";")
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func signManifest(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
