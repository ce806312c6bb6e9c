package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// MaxAmountMinor is the largest charge the payment provider accepts, in minor units.
const MaxAmountMinor = 99999999

var (
	ErrInvalidBody           = errors.New("invalid request body")
	ErrMissingBookingInfo    = errors.New("Missing required booking information")
	ErrMissingPaymentIntent  = errors.New("Missing payment intent ID")
	ErrMissingCheckoutFields = errors.New("Missing required fields")
)

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

type BookingData struct {
	Email       string `json:"email" validate:"required"`
	FullName    string `json:"full_name" validate:"required"`
	BookingType string `json:"booking_type"`
	Phone       string `json:"phone"`
	Notes       string `json:"notes"`

	raw json.RawMessage
}

func (b *BookingData) UnmarshalJSON(data []byte) error {
	type plain BookingData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = BookingData(p)
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Raw returns the bookingData object exactly as the client sent it.
func (b *BookingData) Raw() json.RawMessage {
	if b == nil || len(b.raw) == 0 {
		return nil
	}
	return b.raw
}

type CreatePaymentIntentRequest struct {
	Amount      *Number      `json:"amount"`
	Currency    string       `json:"currency"`
	BookingData *BookingData `json:"bookingData"`
}

func NewCreatePaymentIntentRequestFromContext(ctx echo.Context) (*CreatePaymentIntentRequest, error) {
	var body CreatePaymentIntentRequest
	if err := decodeBody(ctx, &body); err != nil {
		return nil, err
	}

	body.Currency = strings.ToLower(strings.TrimSpace(body.Currency))
	if body.BookingData != nil {
		body.BookingData.Email = strings.TrimSpace(body.BookingData.Email)
		body.BookingData.FullName = strings.TrimSpace(body.BookingData.FullName)
		body.BookingData.BookingType = strings.TrimSpace(body.BookingData.BookingType)
		body.BookingData.Phone = strings.TrimSpace(body.BookingData.Phone)
		body.BookingData.Notes = strings.TrimSpace(body.BookingData.Notes)
	}

	return &body, nil
}

// Validate checks the amount against minAmount (minor units) before the booking fields.
func (r *CreatePaymentIntentRequest) Validate(minAmount int64) error {
	if r.Amount == nil || !finite(float64(*r.Amount)) ||
		*r.Amount <= 0 || float64(*r.Amount) < float64(minAmount) || float64(*r.Amount) > MaxAmountMinor {
		return fmt.Errorf("Invalid amount. Minimum $%s USD.", decimal.New(minAmount, -2).StringFixed(2))
	}
	if r.BookingData == nil || validate.Struct(r.BookingData) != nil {
		return ErrMissingBookingInfo
	}
	return nil
}

func (r *CreatePaymentIntentRequest) AmountMinor() int64 {
	if r.Amount == nil {
		return 0
	}
	return int64(math.Round(float64(*r.Amount)))
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

func NewConfirmPaymentRequestFromContext(ctx echo.Context) (*ConfirmPaymentRequest, error) {
	var body ConfirmPaymentRequest
	if err := decodeBody(ctx, &body); err != nil {
		return nil, err
	}
	body.PaymentIntentID = strings.TrimSpace(body.PaymentIntentID)
	return &body, nil
}

func (r *ConfirmPaymentRequest) Validate() error {
	if validate.Struct(r) != nil {
		return ErrMissingPaymentIntent
	}
	return nil
}

type CheckoutSessionRequest struct {
	TierName      string `json:"tierName" validate:"required"`
	TierPrice     Number `json:"tierPrice" validate:"gt=0"`
	Seats         Number `json:"seats" validate:"gt=0"`
	CustomerEmail string `json:"customerEmail" validate:"required"`
	CustomerName  string `json:"customerName"`
}

func NewCheckoutSessionRequestFromContext(ctx echo.Context) (*CheckoutSessionRequest, error) {
	var body CheckoutSessionRequest
	if err := decodeBody(ctx, &body); err != nil {
		return nil, err
	}
	body.TierName = strings.TrimSpace(body.TierName)
	body.CustomerEmail = strings.TrimSpace(body.CustomerEmail)
	body.CustomerName = strings.TrimSpace(body.CustomerName)
	return &body, nil
}

func (r *CheckoutSessionRequest) Validate() error {
	if validate.Struct(r) != nil || !finite(float64(r.TierPrice)) || !finite(float64(r.Seats)) {
		return ErrMissingCheckoutFields
	}
	if r.Quantity() < 1 || float64(r.Seats) > MaxAmountMinor || float64(r.TierPrice)*100 > MaxAmountMinor {
		return ErrMissingCheckoutFields
	}
	return nil
}

// UnitAmount is the tier price in minor units.
func (r *CheckoutSessionRequest) UnitAmount() int64 {
	return int64(math.Round(float64(r.TierPrice) * 100))
}

func (r *CheckoutSessionRequest) Quantity() int64 {
	return int64(math.Trunc(float64(r.Seats)))
}

type SMSRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	InvestmentLevel string `json:"investment_level"`
	Message         string `json:"message"`
}

func NewSMSRequestFromContext(ctx echo.Context) (*SMSRequest, error) {
	var body SMSRequest
	if err := decodeBody(ctx, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

func decodeBody(ctx echo.Context, dst interface{}) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ErrInvalidBody
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return ErrInvalidBody
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return ErrInvalidBody
	}
	return nil
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type BookingResponse struct {
	ID              json.RawMessage `json:"id"`
	BookingType     string          `json:"booking_type"`
	FullName        string          `json:"full_name"`
	Email           string          `json:"email"`
	Phone           *string         `json:"phone"`
	AmountPaid      json.Number     `json:"amount_paid"`
	Currency        string          `json:"currency"`
	BookingDetails  json.RawMessage `json:"booking_details,omitempty"`
	Notes           *string         `json:"notes"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentIntentID string          `json:"stripe_payment_intent_id"`
	ReceiptURL      *string         `json:"receipt_url"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

type PaymentIntentSummary struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Amount     int64   `json:"amount"`
	ReceiptURL *string `json:"receiptUrl,omitempty"`
}

type ConfirmPaymentResponse struct {
	Success       bool                  `json:"success"`
	Booking       *BookingResponse      `json:"booking,omitempty"`
	ReceiptURL    *string               `json:"receiptUrl,omitempty"`
	PaymentIntent *PaymentIntentSummary `json:"paymentIntent,omitempty"`
}

type PaymentNotCompletedResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

type WebhookReceivedResponse struct {
	Received bool `json:"received"`
}

type SMSResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SID     string `json:"sid"`
}

type CheckoutSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// FailureResponse is the error shape of the send-sms and create-stripe-checkout functions.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
