package service

import (
	"context"
	"errors"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/nodaluxe/ms-go-checkout/app/notifier"
	"github.com/nodaluxe/ms-go-checkout/app/provider"
)

// WebhookResult describes what a verified event changed. Booking is nil when
// the event was ignored or no stored booking matched.
type WebhookResult struct {
	EventID       string
	EventType     string
	IntentID      string
	Booking       *entity.Booking
	Transitioned  bool
	Conflict      bool
	Notifications []notifier.EffectResult
}

// HandleWebhook verifies a provider event and reconciles the matching booking.
// Once the signature checks out, store and notification failures are logged
// and the event is still acknowledged.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.gateway.VerifyAndParseEvent(ctx, payload, signature)
	switch {
	case errors.Is(err, provider.ErrWebhookNotConfigured):
		s.logger.Error("stripe webhook secret not configured")
		return nil, newError(ErrConfiguration, "Webhook secret not configured")
	case errors.Is(err, provider.ErrInvalidSignature):
		s.logger.WithError(err).Warn("webhook_signature_rejected")
		return nil, newError(ErrSignature, err.Error())
	case errors.Is(err, provider.ErrMalformedEvent):
		s.logger.WithError(err).Error("webhook_event_malformed")
		return nil, newError(ErrMalformedEvent, err.Error())
	case err != nil:
		return nil, err
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type}
	logger := s.logger.WithField("event_id", event.ID).WithField("event_type", event.Type)

	var paymentStatus entity.PaymentStatus
	switch event.Type {
	case provider.EventIntentSucceeded:
		paymentStatus = entity.PaymentStatusSucceeded
	case provider.EventIntentFailed:
		paymentStatus = entity.PaymentStatusFailed
	case provider.EventIntentCanceled:
		paymentStatus = entity.PaymentStatusCanceled
	default:
		logger.Info("webhook_event_ignored")
		return result, nil
	}

	intent := event.Intent
	result.IntentID = intent.ID
	logger = logger.WithField("payment_intent_id", intent.ID)

	booking := s.findBooking(ctx, intent.ID)
	if booking == nil {
		logger.Info("webhook_event_without_booking")
		return result, nil
	}

	var receiptURL *string
	if paymentStatus == entity.PaymentStatusSucceeded {
		receiptURL = s.resolveReceiptURL(ctx, intent)
	}

	updated, write := s.applyStatus(ctx, booking, entity.NewStatusUpdate(paymentStatus, receiptURL))
	result.Booking = updated
	result.Transitioned = write == statusWriteTransitioned
	result.Conflict = write == statusWriteConflict

	if paymentStatus == entity.PaymentStatusSucceeded {
		payment := paymentDetails(intent)
		payment.ReceiptURL = receiptURL
		switch write {
		case statusWriteTransitioned:
			result.Notifications = s.dispatcher.Run(ctx, s.adminNotificationEffect(updated, payment))
		case statusWriteConflict:
			result.Notifications = s.dispatcher.Run(ctx, s.statusMismatchEffect(updated, payment))
		}
	}

	logger.WithField("transitioned", result.Transitioned).Info("webhook_event_processed")
	return result, nil
}

// resolveReceiptURL returns the receipt carried by the event, falling back to
// a lookup of the intent with its latest charge expanded.
func (s *CheckoutService) resolveReceiptURL(ctx context.Context, intent *provider.Intent) *string {
	if intent.ReceiptURL != nil {
		return intent.ReceiptURL
	}

	fresh, err := s.gateway.RetrieveIntent(ctx, intent.ID)
	if err != nil {
		s.logger.WithField("payment_intent_id", intent.ID).WithError(err).Warn("receipt_lookup_failed")
		return nil
	}
	return fresh.ReceiptURL
}
