package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusPaymentFailed BookingStatus = "payment_failed"
	BookingStatusCanceled      BookingStatus = "canceled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

// RecordID is the store-assigned booking id. PostgREST returns it as a JSON
// number for bigint keys and as a string for uuid keys; both are accepted.
type RecordID string

func (id RecordID) String() string {
	return string(id)
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Booking struct {
	ID RecordID `json:"id,omitempty"`

	BookingType string  `json:"booking_type"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone"`

	AmountPaid decimal.Decimal `json:"amount_paid"`
	Currency   string          `json:"currency"`

	BookingDetails json.RawMessage `json:"booking_details,omitempty"`
	Notes          *string         `json:"notes"`

	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID string        `json:"stripe_payment_intent_id"`
	ReceiptURL      *string       `json:"receipt_url"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// StatusUpdate is the pair of statuses written together to a booking.
// Build it with NewStatusUpdate so both halves always agree.
type StatusUpdate struct {
	Status        BookingStatus
	PaymentStatus PaymentStatus
	ReceiptURL    *string
}

func NewStatusUpdate(paymentStatus PaymentStatus, receiptURL *string) StatusUpdate {
	return StatusUpdate{
		Status:        paymentStatus.BookingStatus(),
		PaymentStatus: paymentStatus,
		ReceiptURL:    receiptURL,
	}
}

func (s PaymentStatus) BookingStatus() BookingStatus {
	switch s {
	case PaymentStatusSucceeded:
		return BookingStatusConfirmed
	case PaymentStatusFailed:
		return BookingStatusPaymentFailed
	case PaymentStatusCanceled:
		return BookingStatusCanceled
	default:
		return BookingStatusPending
	}
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusPaymentFailed, BookingStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a booking in status current may be written
// with next. Terminal statuses only accept a rewrite of the same value.
func CanTransition(current, next BookingStatus) bool {
	return !current.Terminal() || current == next
}
