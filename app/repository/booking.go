package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// BookingRepository stores bookings through the Supabase REST (PostgREST) interface.
type BookingRepository struct {
	client *supabase.Client
	table  string
	now    func() time.Time
}

func NewBookingRepository(client *supabase.Client, table string) *BookingRepository {
	if strings.TrimSpace(table) == "" {
		table = "bookings"
	}
	return &BookingRepository{
		client: client,
		table:  table,
		now:    time.Now,
	}
}

func (r *BookingRepository) InsertPending(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := r.client.From(r.table).
		Insert(newPendingRow(booking), false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	rows, err := decodeBookings(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("insert booking: store returned no rows")
	}
	return rows[0], nil
}

func (r *BookingRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := r.client.From(r.table).
		Select("*", "", false).
		Eq("stripe_payment_intent_id", paymentIntentID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}

	rows, err := decodeBookings(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ApplyStatus writes update only while the booking is pending or already holds
// update.Status. The returned flag is true when this call moved the booking out
// of pending.
func (r *BookingRepository) ApplyStatus(ctx context.Context, booking *entity.Booking, update entity.StatusUpdate) (*entity.Booking, bool, error) {
	if booking == nil || booking.ID == "" {
		return nil, false, ErrBookingNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	patch := r.statusPatch(update)

	updated, err := r.patchWhereStatus(booking.ID, entity.BookingStatusPending, patch)
	if err != nil {
		return nil, false, err
	}
	if updated != nil {
		return updated, update.Status != entity.BookingStatusPending, nil
	}
	if update.Status == entity.BookingStatusPending {
		return nil, false, ErrStatusConflict
	}

	updated, err = r.patchWhereStatus(booking.ID, update.Status, patch)
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		return nil, false, ErrStatusConflict
	}
	return updated, false, nil
}

func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	data, _, err := r.client.From(r.table).
		Select("*", "", false).
		Eq("status", string(entity.BookingStatusPending)).
		Lt("created_at", before.UTC().Format(time.RFC3339)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Limit(int(limit), "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("list stale bookings: %w", err)
	}

	return decodeBookings(data)
}

func (r *BookingRepository) patchWhereStatus(id entity.RecordID, current entity.BookingStatus, patch map[string]interface{}) (*entity.Booking, error) {
	data, _, err := r.client.From(r.table).
		Update(patch, "representation", "").
		Eq("id", id.String()).
		Eq("status", string(current)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	rows, err := decodeBookings(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *BookingRepository) statusPatch(update entity.StatusUpdate) map[string]interface{} {
	patch := map[string]interface{}{
		"status":         update.Status,
		"payment_status": update.PaymentStatus,
		"updated_at":     r.now().UTC().Format(time.RFC3339Nano),
	}
	if update.ReceiptURL != nil {
		patch["receipt_url"] = *update.ReceiptURL
	}
	return patch
}

func decodeBookings(data []byte) ([]*entity.Booking, error) {
	if len(data) == 0 {
		return []*entity.Booking{}, nil
	}
	var rows []*entity.Booking
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	return rows, nil
}
