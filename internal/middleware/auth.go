package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// TokenVerifier is the part of the Firebase auth client the guard needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
}

// RequireAdmin accepts a Firebase ID token (Authorization: Bearer) or a
// Firebase session cookie whose custom claims set claim to true.
func RequireAdmin(verifier TokenVerifier, claim string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "auth not configured")
			}

			ctx := c.Request().Context()
			var (
				token *auth.Token
				err   error
			)
			if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
				idToken := strings.TrimPrefix(header, "Bearer ")
				if idToken == header {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
				}
				token, err = verifier.VerifyIDToken(ctx, idToken)
			} else if cookie, cErr := c.Cookie("session"); cErr == nil && cookie.Value != "" {
				token, err = verifier.VerifySessionCookie(ctx, cookie.Value)
			} else {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
			}
			if err != nil {
				log.Debug().Err(err).Msg("Rejected admin credentials")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if isAdmin, _ := token.Claims[claim].(bool); !isAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}

			c.Set("userUID", token.UID)
			if email, ok := token.Claims["email"].(string); ok {
				c.Set("userEmail", email)
			}
			return next(c)
		}
	}
}
