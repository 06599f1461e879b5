package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/models"
)

// ErrorBody is the structured rejection returned to API callers.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// JSONErrorHandler renders application errors as {"error":{"kind","message"}}.
// Echo errors keep their status code.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := ErrorDetail{Kind: models.KindInternal, Message: "Something went wrong. Please try again later."}

	var he *echo.HTTPError
	var appErr *models.Error
	switch {
	case errors.As(err, &he):
		code = he.Code
		detail.Kind = kindForStatus(code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			detail.Message = msg
		} else {
			detail.Message = http.StatusText(code)
		}
	case errors.As(err, &appErr):
		code = appErr.Kind.HTTPStatus()
		detail.Kind = appErr.Kind
		detail.Message = appErr.Message
	default:
		if kind := models.KindOf(err); kind != models.KindInternal {
			code = kind.HTTPStatus()
			detail.Kind = kind
			detail.Message = err.Error()
		}
	}

	event := log.Warn()
	if code >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Int("status", code).
		Str("path", c.Request().URL.Path).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("Request failed")

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorBody{Error: detail})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func kindForStatus(code int) models.ErrorKind {
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return models.KindInvalidInput
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusConflict:
		return models.KindDuplicateKey
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	return models.KindInternal
}
