package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const sessionCookieName = "session"

// SessionIssuer verifies Firebase ID tokens and mints session cookies.
type SessionIssuer interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

// AuthHandler exchanges an admin's Firebase ID token for a session cookie
// accepted by the admin routes.
type AuthHandler struct {
	issuer     SessionIssuer
	secure     bool
	adminClaim string
}

func NewAuthHandler(issuer SessionIssuer, adminClaim string, secure bool) *AuthHandler {
	return &AuthHandler{issuer: issuer, adminClaim: adminClaim, secure: secure}
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.issuer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "auth not configured")
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	idToken := strings.TrimPrefix(authHeader, "Bearer ")
	if idToken == authHeader {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	ctx := c.Request().Context()
	token, err := h.issuer.VerifyIDToken(ctx, idToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if isAdmin, _ := token.Claims[h.adminClaim].(bool); !isAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}

	expiresIn := time.Hour * 24 * 5
	cookieValue, err := h.issuer.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		log.Error().Err(err).Str("uid", token.UID).Msg("Failed to create session cookie")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(expiresIn.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}
