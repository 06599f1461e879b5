package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/store"
)

// AdminHandler lets operators inspect state and re-run a reconciliation.
type AdminHandler struct {
	store      store.Store
	reconciler *services.Reconciler
}

func NewAdminHandler(st store.Store, reconciler *services.Reconciler) *AdminHandler {
	return &AdminHandler{store: st, reconciler: reconciler}
}

func (h *AdminHandler) GetIntent(c echo.Context) error {
	intent, err := h.store.GetIntent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, intent)
}

func (h *AdminHandler) GetBooking(c echo.Context) error {
	booking, err := h.store.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, booking)
}

// Reconcile runs the reconciler for a payment reference, as if the gateway
// had delivered a notification for it.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return models.InvalidInput("payment reference is required")
	}

	result := h.reconciler.Reconcile(c.Request().Context(), ref)
	log.Info().
		Interface("admin", c.Get("userUID")).
		Str("payment_reference_id", ref).
		Str("outcome", string(result.Outcome)).
		Msg("Manual reconciliation")

	resp := ReconcileResponse{
		Status:        string(result.Status),
		Outcome:       string(result.Outcome),
		CorrelationID: result.CorrelationID,
	}
	code := http.StatusOK
	if result.Err != nil {
		resp.Error = result.Err.Error()
		code = models.KindOf(result.Err).HTTPStatus()
	}
	return c.JSON(code, resp)
}
