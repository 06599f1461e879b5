package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/store"
	"barber_booking_echo/internal/views"
)

// BookingHandler exposes the reconciled booking state to the payer.
type BookingHandler struct {
	store store.Store
}

func NewBookingHandler(st store.Store) *BookingHandler {
	return &BookingHandler{store: st}
}

// Status returns the booking's payment state. An intent that has not been
// reconciled yet reads as pending.
func (h *BookingHandler) Status(c echo.Context) error {
	id := c.Param("id")
	if !models.ValidCorrelationID(id) {
		return models.InvalidInput("invalid booking id")
	}
	ctx := c.Request().Context()

	booking, err := h.store.GetBooking(ctx, id)
	if err == nil {
		return c.JSON(http.StatusOK, BookingStatusResponse{
			CorrelationID: id,
			Paid:          booking.Paid,
			PaymentStatus: booking.PaymentStatus,
			PaidAt:        booking.PaidAt,
		})
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if _, err := h.store.GetIntent(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewError(models.KindNotFound, "booking not found", err)
		}
		return err
	}
	return c.JSON(http.StatusOK, BookingStatusResponse{
		CorrelationID: id,
		PaymentStatus: models.PaymentStatusPending,
	})
}

// PaymentResult renders the page the gateway redirects the payer back to.
// The status in the query string is ignored.
func (h *BookingHandler) PaymentResult(c echo.Context) error {
	id := c.QueryParam("id")
	if !models.ValidCorrelationID(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	props := views.PaymentResultProps{CorrelationID: id}
	booking, err := h.store.GetBooking(c.Request().Context(), id)
	switch {
	case err == nil:
		props.Found = true
		props.Paid = booking.Paid
		props.PaymentStatus = string(booking.PaymentStatus)
		props.Service = booking.ServiceName
		props.DateKey = booking.DateKey
		props.HourKey = booking.HourKey
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return views.PaymentResult(props).Render(c.Request().Context(), c.Response())
}
