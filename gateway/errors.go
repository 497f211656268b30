package gateway

import (
	"errors"
	"fmt"

	"tpay/models"
	"tpay/signature"
)

// ErrInvalidSignature marks a tokenize response whose hash did not verify
var ErrInvalidSignature = signature.ErrInvalidSignature

var ErrMalformedResponse = errors.New("malformed gateway response")

// NetworkError is a transport or timeout failure talking to the gateway or the bank
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway %s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is returned when the remote side answers with a non-2xx status
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway %s: http error %d (%s)", e.Op, e.StatusCode, e.Status)
}

// DeclinedError is a non-success business response code; the client itself never
// returns it, flows use it to stop on a declined step
type DeclinedError struct {
	Op     string
	Header models.ResponseHeader
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("gateway %s: declined with code %s: %s", e.Op, e.Header.ResponseCode, e.Header.ResponseDescription)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// Declined wraps a non-success outcome, nil for success
func Declined(op string, outcome models.Outcome) error {
	if models.Succeeded(outcome) {
		return nil
	}
	header := models.ResponseHeader{}
	if outcome != nil {
		header = outcome.Header()
	}
	return &DeclinedError{Op: op, Header: header}
}

// Kind names the failure class of err for metrics and error payloads
func Kind(err error) string {
	var networkErr *NetworkError
	var httpErr *HTTPError
	var declinedErr *DeclinedError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &declinedErr):
		return "declined"
	case errors.As(err, &httpErr):
		return "http_status"
	case errors.As(err, &networkErr):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "internal"
	}
}
