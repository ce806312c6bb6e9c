package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrUpstream            = errors.New("upstream provider failure")
	ErrConfiguration       = errors.New("configuration error")
	ErrPersistence         = errors.New("persistence failure")
	ErrPaymentNotCompleted = errors.New("Payment not completed")
	ErrSignature           = errors.New("signature verification failed")
	ErrMalformedEvent      = errors.New("malformed event")
)

// Error carries a user-facing message alongside its kind. Match on the kind
// with errors.Is.
type Error struct {
	Kind    error
	Message string
	// Status is the provider status for ErrPaymentNotCompleted.
	Status string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
