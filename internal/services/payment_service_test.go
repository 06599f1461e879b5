package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/store"
)

type fakeCheckout struct {
	url         string
	err         error
	validateErr error
	calls       int
}

func (c *fakeCheckout) ValidateIntent(intent *models.PaymentIntent) error {
	return c.validateErr
}

func (c *fakeCheckout) CreateCheckout(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.url + "?ref=" + intent.CorrelationID, nil
}

func validInput() CreateIntentInput {
	return CreateIntentInput{
		CorrelationID: "apt1",
		BarberID:      "barber-1",
		ServiceName:   "Corte",
		ClientName:    "Ana",
		DateKey:       "2026-10-18",
		HourKey:       "10:00",
		Amount:        decimal.RequireFromString("100.00"),
	}
}

func TestCreateIntentInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *CreateIntentInput)
		wantErr bool
	}{
		{name: "valid", mutate: func(in *CreateIntentInput) {}},
		{name: "missing correlation id", mutate: func(in *CreateIntentInput) { in.CorrelationID = "  " }, wantErr: true},
		{name: "correlation id with path", mutate: func(in *CreateIntentInput) { in.CorrelationID = "a/b" }, wantErr: true},
		{name: "zero amount", mutate: func(in *CreateIntentInput) { in.Amount = decimal.Zero }, wantErr: true},
		{name: "negative amount", mutate: func(in *CreateIntentInput) { in.Amount = decimal.RequireFromString("-1") }, wantErr: true},
		{name: "sub cent amount", mutate: func(in *CreateIntentInput) { in.Amount = decimal.RequireFromString("10.001") }, wantErr: true},
		{name: "trailing zeros", mutate: func(in *CreateIntentInput) { in.Amount = decimal.RequireFromString("10.5000") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr {
				assert.True(t, models.IsKind(err, models.KindInvalidInput), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateIntent(t *testing.T) {
	st := store.NewMemoryStore()
	checkout := &fakeCheckout{url: "https://pay.example/checkout"}
	svc := NewPaymentService(st, checkout)
	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.CreateIntent(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout?ref=apt1", result.RedirectURL)
	assert.True(t, result.Intent.CreatedAt.Equal(fixed))

	stored, err := st.GetIntent(context.Background(), "apt1")
	require.NoError(t, err)
	assert.Equal(t, "Corte", stored.ServiceName)
}

func TestCreateIntent_DuplicateRejected(t *testing.T) {
	st := store.NewMemoryStore()
	checkout := &fakeCheckout{url: "https://pay.example/checkout"}
	svc := NewPaymentService(st, checkout)

	_, err := svc.CreateIntent(context.Background(), validInput())
	require.NoError(t, err)

	dup := validInput()
	dup.Amount = decimal.RequireFromString("1.00")
	_, err = svc.CreateIntent(context.Background(), dup)
	assert.True(t, models.IsKind(err, models.KindDuplicateKey))
	assert.Equal(t, 1, checkout.calls)

	stored, err := st.GetIntent(context.Background(), "apt1")
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("100")))
}

func TestCreateIntent_InvalidInputTouchesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	checkout := &fakeCheckout{}
	svc := NewPaymentService(st, checkout)

	in := validInput()
	in.Amount = decimal.Zero
	_, err := svc.CreateIntent(context.Background(), in)
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
	assert.Equal(t, 0, checkout.calls)

	_, err = st.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateIntent_CheckoutFailureRemovesIntent(t *testing.T) {
	st := store.NewMemoryStore()
	checkout := &fakeCheckout{err: models.GatewayUnavailable("down", errors.New("503"))}
	svc := NewPaymentService(st, checkout)

	_, err := svc.CreateIntent(context.Background(), validInput())
	assert.True(t, models.IsKind(err, models.KindGatewayUnavailable))

	_, err = st.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	checkout.err = nil
	checkout.url = "https://pay.example/checkout"
	_, err = svc.CreateIntent(context.Background(), validInput())
	assert.NoError(t, err)
}

func TestCreateIntent_ProviderRejectsBeforeStoring(t *testing.T) {
	st := store.NewMemoryStore()
	checkout := &fakeCheckout{
		url:         "https://pay.example/checkout",
		validateErr: models.InvalidInput("amount must be a whole number for midtrans"),
	}
	svc := NewPaymentService(st, checkout)

	in := validInput()
	in.Amount = decimal.RequireFromString("100.50")
	_, err := svc.CreateIntent(context.Background(), in)
	assert.True(t, models.IsKind(err, models.KindInvalidInput), "got %v", err)
	assert.Zero(t, checkout.calls)

	_, err = st.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateIntent_MidtransFractionalAmountTouchesNoState(t *testing.T) {
	st := store.NewMemoryStore()
	sn := &stubSnap{}
	svc := NewPaymentService(st, newTestMidtrans(stubCore{}, sn))

	in := validInput()
	in.Amount = decimal.RequireFromString("100.50")
	_, err := svc.CreateIntent(context.Background(), in)
	assert.True(t, models.IsKind(err, models.KindInvalidInput), "got %v", err)
	assert.Nil(t, sn.req)

	_, err = st.GetIntent(context.Background(), "apt1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
