package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber_booking_echo/internal/config"
	appmw "barber_booking_echo/internal/middleware"
	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/store"
)

// testGateway parses notifications like Mercado Pago but serves payments
// from memory.
type testGateway struct {
	*services.MercadoPagoService

	mu          sync.Mutex
	records     map[string]*models.GatewayPaymentRecord
	fetchErr    error
	checkoutErr error
	fetches     int
}

func newTestGateway(t *testing.T) *testGateway {
	mp, err := services.NewMercadoPagoService(&config.Config{})
	require.NoError(t, err)
	return &testGateway{
		MercadoPagoService: mp,
		records:            make(map[string]*models.GatewayPaymentRecord),
	}
}

func (g *testGateway) add(ref, correlationID string, status models.PaymentStatus, amount string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[ref] = &models.GatewayPaymentRecord{
		PaymentReferenceID: ref,
		Status:             status,
		TransactionAmount:  decimal.RequireFromString(amount),
		ExternalReference:  correlationID,
	}
}

func (g *testGateway) FetchPayment(ctx context.Context, ref string) (*models.GatewayPaymentRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	record, ok := g.records[ref]
	if !ok {
		return nil, models.GatewayUnavailable("not found", nil)
	}
	copied := *record
	return &copied, nil
}

func (g *testGateway) CreateCheckout(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	if g.checkoutErr != nil {
		return "", g.checkoutErr
	}
	return "https://mp.example/init/" + intent.CorrelationID, nil
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []models.PaymentCallbackHistory
}

func (h *memoryHistory) Record(ctx context.Context, entry *models.PaymentCallbackHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *entry)
	return nil
}

func (h *memoryHistory) outcomes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, e := range h.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type fakeVerifier struct {
	tokens map[string]*auth.Token
}

func (v fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if t, ok := v.tokens[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("invalid token")
}

func (v fakeVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*auth.Token, error) {
	return v.VerifyIDToken(ctx, strings.TrimPrefix(cookie, "session-"))
}

func (v fakeVerifier) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return "session-" + idToken, nil
}

type testServer struct {
	e       *echo.Echo
	store   *store.MemoryStore
	gateway *testGateway
	history *memoryHistory
}

func newTestServer(t *testing.T) *testServer {
	st := store.NewMemoryStore()
	gw := newTestGateway(t)
	history := &memoryHistory{}
	verifier := fakeVerifier{tokens: map[string]*auth.Token{
		"admin-token": {UID: "admin-1", Claims: map[string]interface{}{"admin": true}},
		"user-token":  {UID: "user-1", Claims: map[string]interface{}{}},
	}}

	e := NewRouter(Deps{
		Store:         st,
		Gateway:       gw,
		Payments:      services.NewPaymentService(st, gw),
		Reconciler:    services.NewReconciler(gw, st, nil),
		History:       history,
		TokenVerifier: verifier,
		SessionIssuer: verifier,
		AdminClaim:    "admin",
	})
	return &testServer{e: e, store: st, gateway: gw, history: history}
}

func (s *testServer) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) putIntent(t *testing.T, id, amount string) {
	require.NoError(t, s.store.PutIntent(context.Background(), &models.PaymentIntent{
		CorrelationID: id,
		ServiceName:   "Corte",
		DateKey:       "2026-10-18",
		HourKey:       "10:00",
		Amount:        decimal.RequireFromString(amount),
		CreatedAt:     time.Now(),
	}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) appmw.ErrorDetail {
	var body appmw.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCreateIntentHandler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/payments/intents",
		`{"correlationId":"apt1","amount":"100.00","barberId":"b1","dateKey":"2026-10-18","hourKey":"10:00","clientName":"Ana","service":"Corte"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateIntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "apt1", resp.CorrelationID)
	assert.Equal(t, "https://mp.example/init/apt1", resp.RedirectURL)
	assert.Equal(t, resp.RedirectURL, resp.InitPoint)

	intent, err := s.store.GetIntent(context.Background(), "apt1")
	require.NoError(t, err)
	assert.Equal(t, "Corte", intent.ServiceName)
	assert.True(t, intent.Amount.Equal(decimal.RequireFromString("100")))
}

func TestCreateIntentHandler_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   models.ErrorKind
	}{
		{name: "missing id", body: `{"amount":100}`, status: http.StatusBadRequest, kind: models.KindInvalidInput},
		{name: "missing amount", body: `{"correlationId":"apt9"}`, status: http.StatusBadRequest, kind: models.KindInvalidInput},
		{name: "non numeric amount", body: `{"correlationId":"apt9","amount":"abc"}`, status: http.StatusBadRequest, kind: models.KindInvalidInput},
		{name: "zero amount", body: `{"correlationId":"apt9","amount":0}`, status: http.StatusBadRequest, kind: models.KindInvalidInput},
		{name: "duplicate", body: `{"correlationId":"apt1","amount":100}`, status: http.StatusConflict, kind: models.KindDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.putIntent(t, "apt1", "100")

			rec := s.do(http.MethodPost, "/payments/intents", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			detail := decodeError(t, rec)
			assert.Equal(t, tt.kind, detail.Kind)
			assert.NotEmpty(t, detail.Message)
		})
	}
}

func TestCreateIntentHandler_LegacyAppointmentID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/payments/intents", `{"appointmentId":"-Nx1","amount":250}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, err := s.store.GetIntent(context.Background(), "-Nx1")
	assert.NoError(t, err)
}

func TestCreateIntentHandler_CheckoutFailure(t *testing.T) {
	s := newTestServer(t)
	s.gateway.checkoutErr = models.GatewayUnavailable("mercado pago responded with status 500", nil)

	rec := s.do(http.MethodPost, "/payments/intents", `{"correlationId":"apt1","amount":100}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, models.KindGatewayUnavailable, decodeError(t, rec).Kind)

	_, err := s.store.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWebhook_DuplicateConcurrentApprovals(t *testing.T) {
	s := newTestServer(t)
	s.putIntent(t, "apt1", "100.00")
	s.gateway.add("pay-1", "apt1", models.PaymentStatusApproved, "100.00")

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = s.do(http.MethodPost, "/webhooks/mercadopago", `{"type":"payment","data":{"id":"pay-1"}}`, nil).Code
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, 1, s.store.BookingWrites())

	booking, err := s.store.GetBooking(context.Background(), "apt1")
	require.NoError(t, err)
	assert.True(t, booking.Paid)
	assert.Equal(t, models.PaymentStatusApproved, booking.PaymentStatus)

	_, err = s.store.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, s.history.outcomes(), 2)
}

func TestWebhook_Acknowledgements(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		setup       func(s *testServer)
		status      int
		wantFetches int
		outcome     string
	}{
		{
			name:        "unknown correlation id",
			target:      "/webhooks/mercadopago",
			body:        `{"type":"payment","data":{"id":"pay-9"}}`,
			setup:       func(s *testServer) { s.gateway.add("pay-9", "ghost", models.PaymentStatusApproved, "100") },
			status:      http.StatusOK,
			wantFetches: 1,
			outcome:     string(services.OutcomeNoIntent),
		},
		{
			name:        "amount mismatch",
			target:      "/webhooks/mercadopago",
			body:        `{"type":"payment","data":{"id":"pay-1"}}`,
			setup:       func(s *testServer) { s.gateway.add("pay-1", "apt1", models.PaymentStatusApproved, "50") },
			status:      http.StatusOK,
			wantFetches: 1,
			outcome:     string(services.OutcomeAmountMismatch),
		},
		{
			name:   "no payment id",
			target: "/webhooks/mercadopago",
			body:   `{"type":"payment","data":{}}`,
			status: http.StatusOK,
		},
		{
			name:    "malformed body",
			target:  "/webhooks/mercadopago",
			body:    `{"data":`,
			status:  http.StatusOK,
			outcome: string(services.OutcomeProtocolError),
		},
		{
			name:   "non payment topic",
			target: "/webhooks/mercadopago?topic=merchant_order&id=77",
			status: http.StatusOK,
		},
		{
			name:        "ipn query",
			target:      "/webhooks/mercadopago?topic=payment&id=pay-1",
			setup:       func(s *testServer) { s.gateway.add("pay-1", "apt1", models.PaymentStatusPending, "100") },
			status:      http.StatusOK,
			wantFetches: 1,
			outcome:     string(services.OutcomeStatusRecorded),
		},
		{
			name:        "protocol error",
			target:      "/webhooks/mercadopago",
			body:        `{"type":"payment","data":{"id":"pay-1"}}`,
			setup:       func(s *testServer) { s.gateway.fetchErr = models.GatewayProtocolError("bad json", nil) },
			status:      http.StatusOK,
			wantFetches: 1,
			outcome:     string(services.OutcomeProtocolError),
		},
		{
			name:        "gateway unavailable",
			target:      "/webhooks/mercadopago",
			body:        `{"type":"payment","data":{"id":"pay-1"}}`,
			setup:       func(s *testServer) { s.gateway.fetchErr = models.GatewayUnavailable("timeout", nil) },
			status:      http.StatusInternalServerError,
			wantFetches: 1,
			outcome:     string(services.OutcomeGatewayUnavailable),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.putIntent(t, "apt1", "100.00")
			if tt.setup != nil {
				tt.setup(s)
			}

			rec := s.do(http.MethodPost, tt.target, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantFetches, s.gateway.fetches)

			outcomes := s.history.outcomes()
			if tt.outcome == "" {
				assert.Empty(t, outcomes)
			} else {
				assert.Equal(t, []string{tt.outcome}, outcomes)
			}

			_, err := s.store.GetBooking(context.Background(), "ghost")
			assert.ErrorIs(t, err, models.ErrNotFound)
			if tt.outcome != string(services.OutcomeStatusRecorded) {
				assert.Equal(t, 0, s.store.BookingWrites())
			}
		})
	}
}

func TestBookingStatus(t *testing.T) {
	s := newTestServer(t)
	s.putIntent(t, "apt1", "100.00")

	rec := s.do(http.MethodGet, "/bookings/apt1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status BookingStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Paid)
	assert.Equal(t, models.PaymentStatusPending, status.PaymentStatus)

	s.gateway.add("pay-1", "apt1", models.PaymentStatusApproved, "100.00")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/webhooks/mercadopago", `{"data":{"id":"pay-1"}}`, nil).Code)

	rec = s.do(http.MethodGet, "/bookings/apt1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Paid)
	assert.Equal(t, models.PaymentStatusApproved, status.PaymentStatus)
	assert.NotNil(t, status.PaidAt)

	rec = s.do(http.MethodGet, "/bookings/nope/status", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.KindNotFound, decodeError(t, rec).Kind)
}

func TestPaymentResultPage(t *testing.T) {
	s := newTestServer(t)
	s.putIntent(t, "apt1", "100.00")
	s.gateway.add("pay-1", "apt1", models.PaymentStatusApproved, "100.00")
	s.do(http.MethodPost, "/webhooks/mercadopago", `{"data":{"id":"pay-1"}}`, nil)

	// the status query parameter is not trusted
	rec := s.do(http.MethodGet, "/payment-result?status=rejected&id=apt1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "Pago confirmado")

	rec = s.do(http.MethodGet, "/payment-result?id=a/b", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.putIntent(t, "apt1", "100.00")
	s.gateway.add("pay-1", "apt1", models.PaymentStatusApproved, "100.00")

	rec := s.do(http.MethodGet, "/admin/intents/apt1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/admin/intents/apt1", "", map[string]string{"Authorization": "Bearer user-token"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := map[string]string{"Authorization": "Bearer admin-token"}
	rec = s.do(http.MethodGet, "/admin/intents/apt1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/admin/reconcile/pay-1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(services.OutcomeConfirmed), resp.Outcome)

	rec = s.do(http.MethodGet, "/admin/bookings/apt1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var booking models.ConfirmedBooking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))
	assert.True(t, booking.Paid)

	rec = s.do(http.MethodGet, "/admin/intents/apt1", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSessionLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"Authorization": "Bearer user-token"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"Authorization": "Bearer admin-token"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session-admin-token", cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/admin/bookings/missing", nil)
	req.AddCookie(cookies[0])
	res := httptest.NewRecorder()
	s.e.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
