//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/provider"
)

const (
	defaultCheckoutHTTPBase = "http://localhost:48080"
	functionsPrefix         = "/.netlify/functions"
)

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient() *httpClient {
	baseURL := strings.TrimSpace(os.Getenv("CHECKOUT_HTTP_BASE"))
	if baseURL == "" {
		baseURL = defaultCheckoutHTTPBase
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) do(t *testing.T, method, path string, body []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, bodyBytes
}

func decodeBody(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v body=%s", err, body)
	}
	return payload
}

func TestHealth(t *testing.T) {
	c := newHTTPClient()
	resp, body := c.do(t, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK || decodeBody(t, body)["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %s", resp.StatusCode, body)
	}
}

func TestFunctionsAnswerPreflightAndRejectOtherMethods(t *testing.T) {
	c := newHTTPClient()
	for _, fn := range []string{"create-payment-intent", "confirm-payment", "stripe-webhook", "send-sms", "create-stripe-checkout"} {
		resp, _ := c.do(t, http.MethodOptions, functionsPrefix+"/"+fn, nil, nil)
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s: unexpected preflight response %d", fn, resp.StatusCode)
		}

		resp, body := c.do(t, http.MethodGet, functionsPrefix+"/"+fn, nil, nil)
		if resp.StatusCode != http.StatusMethodNotAllowed || decodeBody(t, body)["error"] != "Method not allowed" {
			t.Fatalf("%s: unexpected response %d %s", fn, resp.StatusCode, body)
		}
	}
}

func TestCreatePaymentIntentRejectsSmallAmount(t *testing.T) {
	c := newHTTPClient()
	resp, body := c.do(t, http.MethodPost, functionsPrefix+"/create-payment-intent",
		[]byte(`{"amount":10,"bookingData":{"email":"a@b.com","full_name":"A B"}}`), nil)
	if resp.StatusCode != http.StatusBadRequest || !strings.HasPrefix(decodeBody(t, body)["error"].(string), "Invalid amount.") {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
}

func TestConfirmPaymentRequiresIntentID(t *testing.T) {
	c := newHTTPClient()
	resp, body := c.do(t, http.MethodPost, functionsPrefix+"/confirm-payment", []byte(`{}`), nil)
	if resp.StatusCode != http.StatusBadRequest || decodeBody(t, body)["error"] != "Missing payment intent ID" {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
}

func TestStripeWebhookSignature(t *testing.T) {
	secret := strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if secret == "" {
		t.Skip("STRIPE_WEBHOOK_SECRET not set")
	}
	c := newHTTPClient()
	payload := []byte(`{"id":"evt_e2e","type":"customer.created","data":{"object":{"id":"cus_e2e"}}}`)

	resp, body := c.do(t, http.MethodPost, functionsPrefix+"/stripe-webhook", payload, map[string]string{
		"Stripe-Signature": provider.SignPayload(payload, "whsec_wrong", time.Now()),
	})
	if resp.StatusCode != http.StatusBadRequest || !strings.HasPrefix(string(body), "Webhook Error: ") {
		t.Fatalf("unexpected response for bad signature: %d %s", resp.StatusCode, body)
	}

	resp, body = c.do(t, http.MethodPost, functionsPrefix+"/stripe-webhook", payload, map[string]string{
		"Stripe-Signature": provider.SignPayload(payload, secret, time.Now()),
	})
	if resp.StatusCode != http.StatusOK || decodeBody(t, body)["received"] != true {
		t.Fatalf("unexpected response for signed event: %d %s", resp.StatusCode, body)
	}
}
