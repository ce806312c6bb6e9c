package entity

import (
	"encoding/json"
	"testing"
)

func TestNewStatusUpdateKeepsStatusesInAgreement(t *testing.T) {
	cases := map[PaymentStatus]BookingStatus{
		PaymentStatusSucceeded: BookingStatusConfirmed,
		PaymentStatusFailed:    BookingStatusPaymentFailed,
		PaymentStatusCanceled:  BookingStatusCanceled,
		PaymentStatusPending:   BookingStatusPending,
	}
	for paymentStatus, want := range cases {
		update := NewStatusUpdate(paymentStatus, nil)
		if update.Status != want {
			t.Fatalf("payment status %s: expected %s, got %s", paymentStatus, want, update.Status)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(BookingStatusPending, BookingStatusConfirmed) {
		t.Fatal("expected pending -> confirmed to be allowed")
	}
	if !CanTransition(BookingStatusConfirmed, BookingStatusConfirmed) {
		t.Fatal("expected confirmed rewrite to be allowed")
	}
	if CanTransition(BookingStatusConfirmed, BookingStatusPaymentFailed) {
		t.Fatal("expected confirmed -> payment_failed to be rejected")
	}
	if CanTransition(BookingStatusCanceled, BookingStatusConfirmed) {
		t.Fatal("expected canceled -> confirmed to be rejected")
	}
}

func TestRecordIDAcceptsNumbersAndStrings(t *testing.T) {
	var numeric struct {
		ID RecordID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":42}`), &numeric); err != nil {
		t.Fatalf("unmarshal numeric id failed: %v", err)
	}
	if numeric.ID != "42" {
		t.Fatalf("unexpected numeric id: %q", numeric.ID)
	}

	var textual struct {
		ID RecordID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":"6f1c2f8e-0d1b-4a8e-9d55-1f0c3d1e2a10"}`), &textual); err != nil {
		t.Fatalf("unmarshal uuid id failed: %v", err)
	}
	if textual.ID != "6f1c2f8e-0d1b-4a8e-9d55-1f0c3d1e2a10" {
		t.Fatalf("unexpected uuid id: %q", textual.ID)
	}

	encoded, err := json.Marshal(numeric)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != `{"id":42}` {
		t.Fatalf("expected numeric id to stay numeric, got %s", encoded)
	}
}

func TestBookingOmitsUnsetTimestamps(t *testing.T) {
	encoded, err := json.Marshal(&Booking{ID: "1", Status: BookingStatusPending})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := fields["created_at"]; ok {
		t.Fatalf("expected zero created_at to be omitted, got %s", encoded)
	}
	if _, ok := fields["updated_at"]; ok {
		t.Fatalf("expected zero updated_at to be omitted, got %s", encoded)
	}
}
