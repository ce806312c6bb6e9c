package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusConflict is returned when a status write would move a booking
	// out of a terminal status.
	ErrStatusConflict = errors.New("booking status conflict")
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// bookingRow is the JSON shape written to the bookings table on insert.
type bookingRow struct {
	BookingType     string               `json:"booking_type"`
	FullName        string               `json:"full_name"`
	Email           string               `json:"email"`
	Phone           *string              `json:"phone"`
	AmountPaid      decimal.Decimal      `json:"amount_paid"`
	Currency        string               `json:"currency"`
	BookingDetails  json.RawMessage      `json:"booking_details"`
	Notes           *string              `json:"notes"`
	Status          entity.BookingStatus `json:"status"`
	PaymentStatus   entity.PaymentStatus `json:"payment_status"`
	PaymentIntentID string               `json:"stripe_payment_intent_id"`
}

func newPendingRow(booking *entity.Booking) bookingRow {
	return bookingRow{
		BookingType:     booking.BookingType,
		FullName:        booking.FullName,
		Email:           booking.Email,
		Phone:           normalizeOptionalString(booking.Phone),
		AmountPaid:      booking.AmountPaid,
		Currency:        strings.ToLower(booking.Currency),
		BookingDetails:  detailsOrEmpty(booking.BookingDetails),
		Notes:           normalizeOptionalString(booking.Notes),
		Status:          entity.BookingStatusPending,
		PaymentStatus:   entity.PaymentStatusPending,
		PaymentIntentID: booking.PaymentIntentID,
	}
}

func detailsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timeFromNull(v sql.NullTime) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time
}
