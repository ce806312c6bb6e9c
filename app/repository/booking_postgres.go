package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
)

//go:embed schema.sql
var schemaSQL string

const bookingColumns = `id, booking_type, full_name, email, phone, amount_paid, currency, booking_details, notes,
	status, payment_status, stripe_payment_intent_id, receipt_url, created_at, updated_at`

// PostgresBookingRepository stores bookings directly in Postgres.
type PostgresBookingRepository struct {
	db  DBTX
	now func() time.Time
}

func NewPostgresBookingRepository(db DBTX) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db, now: time.Now}
}

// Migrate creates the bookings table and its indexes when missing.
func Migrate(ctx context.Context, db DBTX) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

func (r *PostgresBookingRepository) InsertPending(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	row := newPendingRow(booking)
	now := r.now().UTC()

	query := `
		INSERT INTO bookings (
			booking_type, full_name, email, phone, amount_paid, currency, booking_details, notes,
			status, payment_status, stripe_payment_intent_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + bookingColumns

	return scanBooking(r.db.QueryRowContext(ctx, query,
		row.BookingType,
		row.FullName,
		row.Email,
		nullableStringValue(row.Phone),
		row.AmountPaid,
		row.Currency,
		string(row.BookingDetails),
		nullableStringValue(row.Notes),
		string(row.Status),
		string(row.PaymentStatus),
		row.PaymentIntentID,
		now,
		now,
	))
}

func (r *PostgresBookingRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE stripe_payment_intent_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, paymentIntentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

func (r *PostgresBookingRepository) ApplyStatus(ctx context.Context, booking *entity.Booking, update entity.StatusUpdate) (*entity.Booking, bool, error) {
	if booking == nil || booking.ID == "" {
		return nil, false, ErrBookingNotFound
	}
	id, err := strconv.ParseInt(booking.ID.String(), 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("invalid booking id %q: %w", booking.ID, err)
	}

	// The locking read serializes concurrent writers so exactly one of them
	// observes previous_status = 'pending'.
	query := `
		WITH prev AS (
			SELECT id, status AS previous_status FROM bookings WHERE id = $1 FOR UPDATE
		)
		UPDATE bookings b
		SET status = $2,
			payment_status = $3,
			receipt_url = COALESCE($4, b.receipt_url),
			updated_at = $5
		FROM prev
		WHERE b.id = prev.id AND prev.previous_status IN ('pending', $2)
		RETURNING ` + prefixedColumns("b") + `, prev.previous_status`

	var previous string
	updated, err := scanBookingWith(r.db.QueryRowContext(ctx, query,
		id,
		string(update.Status),
		string(update.PaymentStatus),
		nullableStringValue(update.ReceiptURL),
		r.now().UTC(),
	), &previous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrStatusConflict
	}
	if err != nil {
		return nil, false, err
	}

	transitioned := entity.BookingStatus(previous) == entity.BookingStatusPending && update.Status != entity.BookingStatusPending
	return updated, transitioned, nil
}

func (r *PostgresBookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Booking, 0)
	for rows.Next() {
		item, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row scanner) (*entity.Booking, error) {
	return scanBookingWith(row)
}

func scanBookingWith(row scanner, extra ...interface{}) (*entity.Booking, error) {
	var (
		booking   entity.Booking
		id        int64
		status    string
		payStatus string
		phone     sql.NullString
		notes     sql.NullString
		receipt   sql.NullString
		details   []byte
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	dest := []interface{}{
		&id,
		&booking.BookingType,
		&booking.FullName,
		&booking.Email,
		&phone,
		&booking.AmountPaid,
		&booking.Currency,
		&details,
		&notes,
		&status,
		&payStatus,
		&booking.PaymentIntentID,
		&receipt,
		&createdAt,
		&updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	booking.ID = entity.RecordID(strconv.FormatInt(id, 10))
	booking.Status = entity.BookingStatus(status)
	booking.PaymentStatus = entity.PaymentStatus(payStatus)
	booking.Phone = stringPtrFromNull(phone)
	booking.Notes = stringPtrFromNull(notes)
	booking.ReceiptURL = stringPtrFromNull(receipt)
	booking.BookingDetails = details
	booking.CreatedAt = timeFromNull(createdAt)
	booking.UpdatedAt = timeFromNull(updatedAt)

	return &booking, nil
}

func prefixedColumns(alias string) string {
	parts := strings.Split(bookingColumns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
