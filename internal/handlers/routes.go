package handlers

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	appmw "barber_booking_echo/internal/middleware"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/store"
)

// Deps is everything the HTTP surface is built from. TokenVerifier,
// SessionIssuer and History may be nil.
type Deps struct {
	Store      store.Store
	Gateway    services.Gateway
	Payments   *services.PaymentService
	Reconciler *services.Reconciler
	History    CallbackRecorder

	TokenVerifier appmw.TokenVerifier
	SessionIssuer SessionIssuer
	AdminClaim    string
	SecureCookies bool
}

// NewRouter builds the Echo instance with middleware and every route.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = appmw.JSONErrorHandler

	e.Use(appmw.RequestID())
	e.Use(appmw.RequestLogger())
	e.Use(echomw.Recover())

	paymentHandler := NewPaymentHandler(d.Payments)
	notificationHandler := NewNotificationHandler(d.Gateway, d.Reconciler, d.History)
	bookingHandler := NewBookingHandler(d.Store)
	adminHandler := NewAdminHandler(d.Store, d.Reconciler)
	authHandler := NewAuthHandler(d.SessionIssuer, d.AdminClaim, d.SecureCookies)

	e.GET("/healthz", Health)

	// Public routes
	e.POST("/payments/intents", paymentHandler.CreateIntent)
	e.GET("/bookings/:id/status", bookingHandler.Status)
	e.GET("/payment-result", bookingHandler.PaymentResult)

	// Gateway notifications
	e.POST("/webhooks/"+string(d.Gateway.Provider()), notificationHandler.Webhook)

	// Admin session
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)

	admin := e.Group("/admin")
	admin.Use(appmw.RequireAdmin(d.TokenVerifier, d.AdminClaim))
	admin.GET("/intents/:id", adminHandler.GetIntent)
	admin.GET("/bookings/:id", adminHandler.GetBooking)
	admin.POST("/reconcile/:ref", adminHandler.Reconcile)

	return e
}
