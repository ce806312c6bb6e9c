package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/nodaluxe/ms-go-checkout/app/provider"
	"github.com/nodaluxe/ms-go-checkout/app/repository"
)

const defaultBatchSize = int32(50)

// RunReconcileBatch re-polls the provider for bookings stuck in pending and
// applies the terminal status the intent has since reached.
func (s *CheckoutService) RunReconcileBatch(ctx context.Context) error {
	if s.store == nil {
		return newError(ErrConfiguration, "booking store not configured")
	}

	now := s.now().UTC()
	before := now.Add(-s.jobs.ReconcileStaleAfter)
	items, err := s.store.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, booking := range items {
		if booking == nil || strings.TrimSpace(booking.PaymentIntentID) == "" {
			continue
		}

		intent, err := s.gateway.RetrieveIntent(ctx, booking.PaymentIntentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		var paymentStatus entity.PaymentStatus
		switch intent.Status {
		case provider.IntentStatusSucceeded:
			paymentStatus = entity.PaymentStatusSucceeded
		case provider.IntentStatusCanceled:
			paymentStatus = entity.PaymentStatusCanceled
		default:
			continue
		}

		updated, transitioned, err := s.store.ApplyStatus(ctx, booking, entity.NewStatusUpdate(paymentStatus, intent.ReceiptURL))
		if errors.Is(err, repository.ErrStatusConflict) {
			s.logger.
				WithField("booking_id", booking.ID.String()).
				WithField("payment_intent_id", intent.ID).
				Warn("booking_status_conflict")
			if paymentStatus == entity.PaymentStatusSucceeded {
				if current, findErr := s.store.FindByPaymentIntentID(ctx, intent.ID); findErr == nil && current != nil {
					booking = current
				}
				s.dispatcher.Run(ctx, s.statusMismatchEffect(booking, paymentDetails(intent)))
			}
			continue
		}
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		s.logger.
			WithField("booking_id", updated.ID.String()).
			WithField("payment_intent_id", intent.ID).
			WithField("status", string(updated.Status)).
			WithField("transitioned", transitioned).
			Info("booking_reconciled")

		if transitioned && paymentStatus == entity.PaymentStatusSucceeded {
			s.dispatcher.Run(ctx, s.adminNotificationEffect(updated, paymentDetails(intent)))
		}
	}

	return firstErr
}

func (s *CheckoutService) batchSize() int32 {
	if s.jobs.BatchSize <= 0 {
		return defaultBatchSize
	}
	return s.jobs.BatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
