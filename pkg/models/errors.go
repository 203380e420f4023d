package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBody is returned when a request body is not a JSON object
	ErrMalformedBody = errors.New("malformed request body")

	// ErrUnsupportedMediaType is returned for non-JSON request bodies
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ErrorCode is a machine readable error identifier.
type ErrorCode string

const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeValidationFailed     ErrorCode = "validation_failed"
	ErrorCodeUnsupportedMediaType ErrorCode = "unsupported_media_type"
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed     ErrorCode = "method_not_allowed"
)

// APIError is the JSON error body returned by the HTTP API.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"error"`
	StatusCode int       `json:"-"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}
