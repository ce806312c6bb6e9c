package provider

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured        = errors.New("stripe secret key is not configured")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid stripe signature")
	ErrIntentNotFound       = errors.New("payment intent not found")
	ErrMalformedEvent       = errors.New("malformed stripe event")
)

// Stripe payment intent statuses the service acts on.
const (
	IntentStatusSucceeded  = "succeeded"
	IntentStatusCanceled   = "canceled"
	IntentStatusProcessing = "processing"
)

// Stripe event types the reconciler dispatches on.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

type CreateIntentInput struct {
	AmountMinor    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	ReceiptURL   *string
	Metadata     map[string]string
}

type CheckoutSessionInput struct {
	ProductName   string
	Description   string
	ImageURL      string
	UnitAmount    int64
	Quantity      int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified provider event. Intent is set for payment_intent.* events.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

type PaymentGateway interface {
	Configured() bool
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error)
	VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// APIError carries a provider failure whose message is safe to pass through.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}
