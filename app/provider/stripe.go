package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	// APIBaseURL overrides https://api.stripe.com, e.g. for stripe-mock.
	APIBaseURL string
}

type StripeGateway struct {
	cfg    StripeConfig
	api    *client.API
	logger logrus.FieldLogger
}

func NewStripeGateway(cfg StripeConfig, logger logrus.FieldLogger) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger,
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeGateway{
		cfg:    cfg,
		api:    client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		logger: logger,
	}
}

// Configured reports whether a secret key is set.
func (g *StripeGateway) Configured() bool {
	return strings.TrimSpace(g.cfg.SecretKey) != ""
}

func (g *StripeGateway) CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountMinor),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}
	if input.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(input.ReceiptEmail)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}

	return intentFromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrIntentNotFound
	}

	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		err = translateStripeError(err)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.missing() {
			return nil, fmt.Errorf("%w: %w", ErrIntentNotFound, apiErr)
		}
		return nil, err
	}

	return intentFromStripe(pi), nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(input.ProductName),
	}
	if input.Description != "" {
		productData.Description = stripe.String(input.Description)
	}
	if input.ImageURL != "" {
		productData.Images = stripe.StringSlice([]string{input.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(strings.ToLower(input.Currency)),
					UnitAmount:  stripe.Int64(input.UnitAmount),
					ProductData: productData,
				},
				Quantity: stripe.Int64(input.Quantity),
			},
		},
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
	}
	if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) VerifyAndParseEvent(_ context.Context, payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, ErrWebhookNotConfigured
	}
	if err := verifyStripeSignature(payload, signature, g.cfg.WebhookSecret, time.Duration(g.cfg.SignatureToleranceSeconds)*time.Second); err != nil {
		return nil, err
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(event.Type) == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	result := &Event{
		ID:   strings.TrimSpace(event.ID),
		Type: strings.TrimSpace(event.Type),
	}
	if !strings.HasPrefix(result.Type, "payment_intent.") {
		return result, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(pi.ID) == "" {
		return nil, fmt.Errorf("%w: payment intent id missing", ErrMalformedEvent)
	}
	result.Intent = intentFromStripe(&pi)

	return result, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil && strings.TrimSpace(pi.LatestCharge.ReceiptURL) != "" {
		receipt := pi.LatestCharge.ReceiptURL
		intent.ReceiptURL = &receipt
	}
	return intent
}

func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	message := strings.TrimSpace(stripeErr.Msg)
	if message == "" {
		message = "stripe request failed"
	}
	return &APIError{
		StatusCode: stripeErr.HTTPStatusCode,
		Code:       string(stripeErr.Code),
		Message:    message,
	}
}

func (e *APIError) missing() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == string(stripe.ErrorCodeResourceMissing)
}
