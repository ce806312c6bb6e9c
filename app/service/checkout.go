package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/nodaluxe/ms-go-checkout/app/notifier"
	"github.com/nodaluxe/ms-go-checkout/app/provider"
	"github.com/nodaluxe/ms-go-checkout/app/repository"
	"github.com/nodaluxe/ms-go-checkout/app/types"
	"github.com/nodaluxe/ms-go-checkout/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	effectCustomerConfirmation = "customer_confirmation"
	effectAdminNotification    = "admin_notification"
	effectStatusMismatch       = "status_mismatch_alert"
)

// statusWrite is the outcome of a guarded booking status write.
type statusWrite int

const (
	statusWriteFailed statusWrite = iota
	statusWriteApplied
	statusWriteTransitioned
	statusWriteConflict
)

// BookingStore is the booking persistence contract shared by the store drivers.
type BookingStore interface {
	InsertPending(ctx context.Context, booking *entity.Booking) (*entity.Booking, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error)
	ApplyStatus(ctx context.Context, booking *entity.Booking, update entity.StatusUpdate) (*entity.Booking, bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error)
}

type bookingMailer interface {
	SendCustomerConfirmation(ctx context.Context, booking *entity.Booking, payment notifier.PaymentDetails) (string, error)
	SendAdminNotification(ctx context.Context, booking *entity.Booking, payment notifier.PaymentDetails) (string, error)
	SendStatusMismatchAlert(ctx context.Context, booking *entity.Booking, payment notifier.PaymentDetails) (string, error)
}

type inquirySender interface {
	SendInquiryAlert(ctx context.Context, fields notifier.InquiryFields) (string, error)
}

// ConfirmResult is the outcome of a client-side payment confirmation.
// Booking is nil when no stored booking matches the intent or the stored
// booking was already closed with another status.
type ConfirmResult struct {
	Intent        *provider.Intent
	Booking       *entity.Booking
	Notifications []notifier.EffectResult
}

type CheckoutService struct {
	store      BookingStore
	gateway    provider.PaymentGateway
	mailer     bookingMailer
	sms        inquirySender
	dispatcher *notifier.Dispatcher
	checkout   config.CheckoutConfig
	jobs       config.JobsConfig
	brandName  string
	logger     logrus.FieldLogger

	newIdempotencyKey func() string
	now               func() time.Time
}

// NewCheckoutService wires the checkout operations. store may be nil, in which
// case persistence is skipped and logged.
func NewCheckoutService(
	store BookingStore,
	gateway provider.PaymentGateway,
	mailer bookingMailer,
	sms inquirySender,
	checkoutCfg config.CheckoutConfig,
	jobsCfg config.JobsConfig,
	brandName string,
	logger logrus.FieldLogger,
) *CheckoutService {
	if checkoutCfg.DefaultCurrency == "" {
		checkoutCfg.DefaultCurrency = "usd"
	}

	return &CheckoutService{
		store:             store,
		gateway:           gateway,
		mailer:            mailer,
		sms:               sms,
		dispatcher:        notifier.NewDispatcher(logger),
		checkout:          checkoutCfg,
		jobs:              jobsCfg,
		brandName:         strings.TrimSpace(brandName),
		logger:            logger,
		newIdempotencyKey: uuid.NewString,
		now:               time.Now,
	}
}

func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, req *types.CreatePaymentIntentRequest) (*provider.Intent, error) {
	if err := req.Validate(s.checkout.MinPaymentAmount); err != nil {
		return nil, newError(ErrValidation, err.Error())
	}

	data := req.BookingData
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.checkout.DefaultCurrency
	}

	intent, err := s.gateway.CreateIntent(ctx, &provider.CreateIntentInput{
		AmountMinor:  req.AmountMinor(),
		Currency:     currency,
		Description:  fmt.Sprintf("%s %s - %s", s.brandName, orDefault(data.BookingType, "Booking"), data.FullName),
		ReceiptEmail: data.Email,
		Metadata: map[string]string{
			"booking_type":   orDefault(data.BookingType, "unknown"),
			"customer_email": data.Email,
			"customer_name":  data.FullName,
		},
		IdempotencyKey: s.newIdempotencyKey(),
	})
	if err != nil {
		return nil, gatewayError(err, "")
	}

	s.persistPending(ctx, &entity.Booking{
		BookingType:     data.BookingType,
		FullName:        data.FullName,
		Email:           data.Email,
		Phone:           optionalString(data.Phone),
		AmountPaid:      decimal.New(req.AmountMinor(), -2),
		Currency:        currency,
		BookingDetails:  data.Raw(),
		Notes:           optionalString(data.Notes),
		PaymentIntentID: intent.ID,
	})

	return intent, nil
}

func (s *CheckoutService) ConfirmPayment(ctx context.Context, req *types.ConfirmPaymentRequest) (*ConfirmResult, error) {
	if err := req.Validate(); err != nil {
		return nil, newError(ErrValidation, err.Error())
	}

	intent, err := s.gateway.RetrieveIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, gatewayError(err, req.PaymentIntentID)
	}
	if intent.Status != provider.IntentStatusSucceeded {
		return nil, &Error{Kind: ErrPaymentNotCompleted, Message: ErrPaymentNotCompleted.Error(), Status: intent.Status}
	}

	result := &ConfirmResult{Intent: intent}
	booking := s.findBooking(ctx, intent.ID)
	if booking == nil {
		return result, nil
	}

	updated, write := s.applyStatus(ctx, booking, entity.NewStatusUpdate(entity.PaymentStatusSucceeded, intent.ReceiptURL))
	payment := paymentDetails(intent)
	if write == statusWriteConflict {
		result.Notifications = s.dispatcher.Run(ctx, s.statusMismatchEffect(updated, payment))
		return result, nil
	}
	result.Booking = updated

	effects := []notifier.Effect{s.customerConfirmationEffect(updated, payment)}
	if write == statusWriteTransitioned {
		effects = append(effects, s.adminNotificationEffect(updated, payment))
	}
	result.Notifications = s.dispatcher.Run(ctx, effects...)

	return result, nil
}

// CreateCheckoutSession opens a hosted checkout for a ticket tier. baseURL is
// the redirect origin; an empty value falls back to the configured default.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req *types.CheckoutSessionRequest, baseURL string) (*provider.CheckoutSession, error) {
	if !s.gateway.Configured() {
		s.logger.Error("stripe secret key not configured")
		return nil, newError(ErrConfiguration, "Stripe is not configured. Please contact support.")
	}
	if err := req.Validate(); err != nil {
		return nil, newError(ErrValidation, err.Error())
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(s.checkout.DefaultBaseURL, "/")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &provider.CheckoutSessionInput{
		ProductName:   fmt.Sprintf("%s - %s", s.checkout.EventName, req.TierName),
		Description:   fmt.Sprintf("%s - %s seat(s) reserved", s.checkout.ProductLabel, req.Seats.String()),
		ImageURL:      s.checkout.ProductImageURL,
		UnitAmount:    req.UnitAmount(),
		Quantity:      req.Quantity(),
		Currency:      s.checkout.DefaultCurrency,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    baseURL + "/payment-success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     baseURL + "/payment-cancel.html",
		Metadata: map[string]string{
			"event":         s.checkout.EventName,
			"tier":          req.TierName,
			"seats":         req.Seats.String(),
			"customer_name": orDefault(req.CustomerName, "Not provided"),
		},
	})
	if err != nil {
		return nil, gatewayError(err, "")
	}

	s.logger.WithField("session_id", session.ID).Info("checkout_session_created")
	return session, nil
}

func (s *CheckoutService) persistPending(ctx context.Context, booking *entity.Booking) {
	logger := s.logger.WithField("payment_intent_id", booking.PaymentIntentID)
	if s.store == nil {
		logger.Warn("booking store not configured, skipping booking insert")
		return
	}

	stored, err := s.store.InsertPending(ctx, booking)
	if err != nil {
		logger.WithError(fmt.Errorf("%w: %v", ErrPersistence, err)).Error("booking_insert_failed")
		return
	}
	logger.WithField("booking_id", stored.ID.String()).Info("booking_created")
}

func (s *CheckoutService) findBooking(ctx context.Context, paymentIntentID string) *entity.Booking {
	logger := s.logger.WithField("payment_intent_id", paymentIntentID)
	if s.store == nil {
		logger.Warn("booking store not configured, skipping booking lookup")
		return nil
	}

	booking, err := s.store.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		logger.WithError(fmt.Errorf("%w: %v", ErrPersistence, err)).Error("booking_lookup_failed")
		return nil
	}
	if booking == nil {
		logger.Info("booking_not_found")
		return nil
	}
	return booking
}

// applyStatus writes update to booking. On conflict or failure the stored
// booking is untouched and the returned booking is the one passed in.
func (s *CheckoutService) applyStatus(ctx context.Context, booking *entity.Booking, update entity.StatusUpdate) (*entity.Booking, statusWrite) {
	logger := s.logger.
		WithField("booking_id", booking.ID.String()).
		WithField("payment_intent_id", booking.PaymentIntentID).
		WithField("status", string(update.Status))

	updated, transitioned, err := s.store.ApplyStatus(ctx, booking, update)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			logger.WithField("current_status", string(booking.Status)).Warn("booking_status_conflict")
			return booking, statusWriteConflict
		}
		logger.WithError(fmt.Errorf("%w: %v", ErrPersistence, err)).Error("booking_status_update_failed")
		return booking, statusWriteFailed
	}

	logger.WithField("transitioned", transitioned).Info("booking_status_applied")
	if transitioned {
		return updated, statusWriteTransitioned
	}
	return updated, statusWriteApplied
}

func (s *CheckoutService) customerConfirmationEffect(booking *entity.Booking, payment notifier.PaymentDetails) notifier.Effect {
	return notifier.Effect{
		Name: effectCustomerConfirmation,
		Run: func(ctx context.Context) (string, error) {
			return s.mailer.SendCustomerConfirmation(ctx, booking, payment)
		},
	}
}

func (s *CheckoutService) adminNotificationEffect(booking *entity.Booking, payment notifier.PaymentDetails) notifier.Effect {
	return notifier.Effect{
		Name: effectAdminNotification,
		Run: func(ctx context.Context) (string, error) {
			return s.mailer.SendAdminNotification(ctx, booking, payment)
		},
	}
}

func (s *CheckoutService) statusMismatchEffect(booking *entity.Booking, payment notifier.PaymentDetails) notifier.Effect {
	return notifier.Effect{
		Name: effectStatusMismatch,
		Run: func(ctx context.Context) (string, error) {
			return s.mailer.SendStatusMismatchAlert(ctx, booking, payment)
		},
	}
}

func paymentDetails(intent *provider.Intent) notifier.PaymentDetails {
	return notifier.PaymentDetails{
		IntentID:   intent.ID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		ReceiptURL: intent.ReceiptURL,
	}
}

// gatewayError classifies a payment provider failure, keeping the provider
// message. intentID names the intent when the provider gave no message.
func gatewayError(err error, intentID string) error {
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		return newError(ErrConfiguration, err.Error())
	}

	var apiErr *provider.APIError
	hasMessage := errors.As(err, &apiErr)
	if errors.Is(err, provider.ErrIntentNotFound) {
		if hasMessage {
			return newError(ErrNotFound, apiErr.Message)
		}
		return newError(ErrNotFound, fmt.Sprintf("No such payment_intent: '%s'", intentID))
	}
	if hasMessage {
		return newError(ErrUpstream, apiErr.Message)
	}
	return newError(ErrUpstream, err.Error())
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
