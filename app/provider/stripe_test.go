package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIBaseURL:    srv.URL,
	}, logger.WithField("module", "stripe-test"))
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, "whsec_test", time.Now())

	if err := verifyStripeSignature(payload, header, "whsec_test", 5*time.Minute); err != nil {
		t.Fatalf("expected signature to validate, got %v", err)
	}
	if err := verifyStripeSignature(payload, header, "wrong-secret", 5*time.Minute); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}
	if err := verifyStripeSignature([]byte(`{"id":"evt_2"}`), header, "whsec_test", 5*time.Minute); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected tampered payload to fail, got %v", err)
	}
}

func TestVerifyStripeSignatureRejectsMalformedAndStaleHeaders(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	for _, header := range []string{"", "garbage", "t=abc,v1=00", "v1=deadbeef"} {
		if err := verifyStripeSignature(payload, header, "whsec_test", 5*time.Minute); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("header %q: expected invalid signature error, got %v", header, err)
		}
	}

	stale := SignPayload(payload, "whsec_test", now.Add(-10*time.Minute))
	if err := verifyStripeSignature(payload, stale, "whsec_test", 5*time.Minute); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected stale timestamp to fail, got %v", err)
	}
}

func TestVerifyAndParseEventRequiresWebhookSecret(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123"}, nil)
	_, err := gateway.VerifyAndParseEvent(context.Background(), []byte(`{}`), "t=1,v1=00")
	if !errors.Is(err, ErrWebhookNotConfigured) {
		t.Fatalf("expected webhook not configured error, got %v", err)
	}
}

func TestVerifyAndParseEventPaymentIntent(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"}, nil)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded","amount":15000,"currency":"usd","latest_charge":"ch_1","metadata":{"customer_email":"a@b.com"}}}}`)

	event, err := gateway.VerifyAndParseEvent(context.Background(), payload, SignPayload(payload, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Type != EventIntentSucceeded || event.ID != "evt_1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Intent == nil || event.Intent.ID != "pi_123" || event.Intent.Amount != 15000 {
		t.Fatalf("unexpected intent: %+v", event.Intent)
	}
	if event.Intent.ReceiptURL != nil {
		t.Fatalf("expected no receipt url for unexpanded charge, got %v", *event.Intent.ReceiptURL)
	}
	if event.Intent.Metadata["customer_email"] != "a@b.com" {
		t.Fatalf("unexpected metadata: %+v", event.Intent.Metadata)
	}
}

func TestVerifyAndParseEventOtherTypeAndMalformedBody(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"}, nil)

	payload := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
	event, err := gateway.VerifyAndParseEvent(context.Background(), payload, SignPayload(payload, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Intent != nil {
		t.Fatal("expected no intent for non payment_intent event")
	}

	malformed := []byte(`{"id":"evt_3","type":`)
	_, err = gateway.VerifyAndParseEvent(context.Background(), malformed, SignPayload(malformed, "whsec_test", time.Now()))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected malformed event error, got %v", err)
	}
}

func TestCreateIntent(t *testing.T) {
	var form url.Values
	var idempotencyKey string
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","status":"requires_payment_method","amount":15000,"currency":"usd"}`))
	})

	intent, err := gateway.CreateIntent(context.Background(), &CreateIntentInput{
		AmountMinor:    15000,
		Currency:       "USD",
		Description:    "Nodaluxe Airport Transfer - A B",
		ReceiptEmail:   "a@b.com",
		Metadata:       map[string]string{"customer_email": "a@b.com", "customer_name": "A B"},
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret_abc" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if form.Get("amount") != "15000" || form.Get("currency") != "usd" {
		t.Fatalf("unexpected amount/currency: %v", form)
	}
	if form.Get("metadata[customer_email]") != "a@b.com" {
		t.Fatalf("expected metadata to be sent, got %v", form)
	}
	if form.Get("receipt_email") != "a@b.com" {
		t.Fatalf("expected receipt email to be sent, got %v", form)
	}
	if idempotencyKey != "idem-1" {
		t.Fatalf("unexpected idempotency key: %q", idempotencyKey)
	}
}

func TestCreateIntentWithoutSecretKey(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{}, nil)
	if _, err := gateway.CreateIntent(context.Background(), &CreateIntentInput{AmountMinor: 100, Currency: "usd"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func TestRetrieveIntentExpandsLatestCharge(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents/pi_123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "latest_charge") {
			t.Errorf("expected latest_charge expansion, got query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded","amount":15000,"currency":"usd","latest_charge":{"id":"ch_1","object":"charge","receipt_url":"https://pay.stripe.com/receipts/ch_1"}}`))
	})

	intent, err := gateway.RetrieveIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Status != IntentStatusSucceeded {
		t.Fatalf("unexpected status: %s", intent.Status)
	}
	if intent.ReceiptURL == nil || *intent.ReceiptURL != "https://pay.stripe.com/receipts/ch_1" {
		t.Fatalf("unexpected receipt url: %v", intent.ReceiptURL)
	}
}

func TestRetrieveIntentTranslatesErrors(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/pi_missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent: 'pi_missing'"}}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	})

	_, err := gateway.RetrieveIntent(context.Background(), "pi_missing")
	if !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	var missing *APIError
	if !errors.As(err, &missing) || missing.Message != "No such payment_intent: 'pi_missing'" {
		t.Fatalf("expected provider message to be kept, got %v", err)
	}

	_, err = gateway.RetrieveIntent(context.Background(), "pi_other")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Message != "Invalid API Key provided" {
		t.Fatalf("expected provider message to pass through, got %q", apiErr.Message)
	}
}

func TestCreateCallsKeepProviderMessageOnNotFound(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price: 'price_1'"}}`))
	})

	_, err := gateway.CreateIntent(context.Background(), &CreateIntentInput{AmountMinor: 15000, Currency: "usd"})
	var apiErr *APIError
	if errors.Is(err, ErrIntentNotFound) || !errors.As(err, &apiErr) || apiErr.Message != "No such price: 'price_1'" {
		t.Fatalf("expected api error with provider message, got %v", err)
	}

	_, err = gateway.CreateCheckoutSession(context.Background(), &CheckoutSessionInput{UnitAmount: 100, Quantity: 1, Currency: "usd"})
	if errors.Is(err, ErrIntentNotFound) || !errors.As(err, &apiErr) || apiErr.Message != "No such price: 'price_1'" {
		t.Fatalf("expected api error with provider message, got %v", err)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	session, err := gateway.CreateCheckoutSession(context.Background(), &CheckoutSessionInput{
		ProductName:   "ETHDenver 2025 - VIP",
		Description:   "2 seat(s) reserved",
		UnitAmount:    19999,
		Quantity:      2,
		Currency:      "usd",
		CustomerEmail: "a@b.com",
		SuccessURL:    "https://nodaluxe.com/payment-success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://nodaluxe.com/payment-cancel.html",
		Metadata:      map[string]string{"tier": "VIP", "seats": "2"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.ID != "cs_test_1" || session.URL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if form.Get("line_items[0][price_data][unit_amount]") != "19999" {
		t.Fatalf("unexpected unit amount: %v", form)
	}
	if form.Get("line_items[0][quantity]") != "2" {
		t.Fatalf("unexpected quantity: %v", form)
	}
	if form.Get("mode") != "payment" {
		t.Fatalf("unexpected mode: %v", form)
	}
	if form.Get("metadata[tier]") != "VIP" {
		t.Fatalf("unexpected metadata: %v", form)
	}
}
