package provider

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74/webhook"
)

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, tolerance time.Duration) error {
	err := webhook.ValidatePayloadWithTolerance(payload, strings.TrimSpace(signatureHeader), webhookSecret, tolerance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrNotSigned):
		return fmt.Errorf("%w: no Stripe-Signature header", ErrInvalidSignature)
	case errors.Is(err, webhook.ErrInvalidHeader):
		return fmt.Errorf("%w: unable to extract timestamp and signatures from header", ErrInvalidSignature)
	case errors.Is(err, webhook.ErrTooOld):
		return fmt.Errorf("%w: timestamp outside the tolerance zone", ErrInvalidSignature)
	default:
		return fmt.Errorf("%w: no signatures found matching the expected signature for payload", ErrInvalidSignature)
	}
}

// SignPayload builds a Stripe-Signature header value for payload. Used by tests and local tooling.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	signature := webhook.ComputeSignature(ts, payload, secret)
	return "t=" + strconv.FormatInt(ts.Unix(), 10) + ",v1=" + hex.EncodeToString(signature)
}
