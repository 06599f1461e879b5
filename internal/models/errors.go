package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("record already exists")
)

// ErrorKind is the machine readable category of an Error.
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "invalid_input"
	KindDuplicateKey         ErrorKind = "duplicate_key"
	KindNotFound             ErrorKind = "not_found"
	KindGatewayUnavailable   ErrorKind = "gateway_unavailable"
	KindGatewayProtocolError ErrorKind = "gateway_protocol_error"
	KindStorageUnavailable   ErrorKind = "storage_unavailable"
	KindInternal             ErrorKind = "internal"
)

// Error is an application error with a kind and a human readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error {
	return NewError(KindInvalidInput, message, nil)
}

func GatewayUnavailable(message string, err error) *Error {
	return NewError(KindGatewayUnavailable, message, err)
}

func GatewayProtocolError(message string, err error) *Error {
	return NewError(KindGatewayProtocolError, message, err)
}

func StorageUnavailable(message string, err error) *Error {
	return NewError(KindStorageUnavailable, message, err)
}

// KindOf returns the kind of err. Store sentinels map to their kinds and
// anything else is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	}
	return KindInternal
}

// IsKind reports whether err is of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status used for structured rejections.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDuplicateKey:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindGatewayUnavailable, KindGatewayProtocolError:
		return http.StatusBadGateway
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
