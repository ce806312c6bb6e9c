package mapper

import (
	"encoding/json"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/nodaluxe/ms-go-checkout/app/provider"
	"github.com/nodaluxe/ms-go-checkout/app/types"
)

// BookingToResponse renders a booking in its stored row shape.
func BookingToResponse(item *entity.Booking) *types.BookingResponse {
	if item == nil {
		return nil
	}

	id, _ := json.Marshal(item.ID)
	return &types.BookingResponse{
		ID:              id,
		BookingType:     item.BookingType,
		FullName:        item.FullName,
		Email:           item.Email,
		Phone:           item.Phone,
		AmountPaid:      json.Number(item.AmountPaid.String()),
		Currency:        item.Currency,
		BookingDetails:  item.BookingDetails,
		Notes:           item.Notes,
		Status:          string(item.Status),
		PaymentStatus:   string(item.PaymentStatus),
		PaymentIntentID: item.PaymentIntentID,
		ReceiptURL:      item.ReceiptURL,
		CreatedAt:       formatTime(item.CreatedAt),
		UpdatedAt:       formatTime(item.UpdatedAt),
	}
}

func IntentToSummary(intent *provider.Intent) *types.PaymentIntentSummary {
	if intent == nil {
		return nil
	}
	return &types.PaymentIntentSummary{
		ID:         intent.ID,
		Status:     intent.Status,
		Amount:     intent.Amount,
		ReceiptURL: intent.ReceiptURL,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
