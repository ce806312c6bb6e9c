package notifier

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/shopspring/decimal"
)

const customerConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #000; color: #d4af37; padding: 30px; text-align: center; }
    .content { padding: 30px; background: #f9f9f9; }
    .booking-details { background: white; padding: 20px; margin: 20px 0; border-left: 4px solid #d4af37; }
    .footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
    .button { display: inline-block; padding: 12px 24px; background: #d4af37; color: #000; text-decoration: none; border-radius: 4px; font-weight: bold; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>{{.Brand}} Experiences</h1>
      <p>Booking Confirmation</p>
    </div>
    <div class="content">
      <h2>Thank you for your booking!</h2>
      <p>Dear {{.Booking.FullName}},</p>
      <p>We're excited to confirm your booking with {{.Brand}} Experiences. Your payment has been processed successfully.</p>
      <div class="booking-details">
        <h3>Booking Details</h3>
        <p><strong>Booking Type:</strong> {{.Booking.BookingType}}</p>
        <p><strong>Booking ID:</strong> #{{.Booking.ID}}</p>
        <p><strong>Amount Paid:</strong> ${{.Amount}} {{.Currency}}</p>
        <p><strong>Payment ID:</strong> {{.Payment.IntentID}}</p>
      </div>
      <p style="text-align: center; margin: 30px 0;">
        <a href="{{.ReceiptURL}}" class="button">View Receipt</a>
      </p>
      <h3>What's Next?</h3>
      <ul>
        <li>You will receive a detailed confirmation email within 24 hours</li>
        <li>Our team will contact you to finalize the details</li>
        <li>If you have any questions, reply to this email or call {{.ContactPhone}}</li>
      </ul>
    </div>
    <div class="footer">
      <p>&copy; {{.Year}} {{.Brand}} Experiences. All rights reserved.</p>
      <p>Phone: {{.ContactPhone}} | Email: {{.ContactEmail}}</p>
    </div>
  </div>
</body>
</html>
`

const adminNotificationHTML = `<h2>New Booking Received</h2>
<p><strong>Booking ID:</strong> #{{.Booking.ID}}</p>
<p><strong>Type:</strong> {{.Booking.BookingType}}</p>
<p><strong>Customer:</strong> {{.Booking.FullName}}</p>
<p><strong>Email:</strong> {{.Booking.Email}}</p>
<p><strong>Phone:</strong> {{if .Booking.Phone}}{{.Booking.Phone}}{{else}}Not provided{{end}}</p>
<p><strong>Amount:</strong> ${{.Amount}} {{.Currency}}</p>
<p><strong>Payment ID:</strong> {{.Payment.IntentID}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
<hr>
<p>View in Supabase dashboard to see full booking details.</p>
`

const statusMismatchHTML = `<h2>Payment Succeeded On A Closed Booking</h2>
<p>The payment below succeeded, but the booking was already <strong>{{.Booking.Status}}</strong> and was left unchanged. The customer has not been sent a confirmation.</p>
<p><strong>Booking ID:</strong> #{{.Booking.ID}}</p>
<p><strong>Type:</strong> {{.Booking.BookingType}}</p>
<p><strong>Customer:</strong> {{.Booking.FullName}}</p>
<p><strong>Email:</strong> {{.Booking.Email}}</p>
<p><strong>Amount:</strong> ${{.Amount}} {{.Currency}}</p>
<p><strong>Payment ID:</strong> {{.Payment.IntentID}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
`

var (
	statusMismatchTmpl       = template.Must(template.New("status_mismatch").Parse(statusMismatchHTML))
	customerConfirmationTmpl = template.Must(template.New("customer_confirmation").Parse(customerConfirmationHTML))
	adminNotificationTmpl    = template.Must(template.New("admin_notification").Parse(adminNotificationHTML))
)

type templateData struct {
	Brand        string
	Booking      templateBooking
	Payment      PaymentDetails
	Amount       string
	Currency     string
	ReceiptURL   string
	ContactPhone string
	ContactEmail string
	Year         int
	Time         string
}

type templateBooking struct {
	ID          string
	BookingType string
	FullName    string
	Email       string
	Phone       string
	Status      string
}

// FormatAmount renders minor units as a two-decimal major amount, e.g. 15000 -> "150.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func (m *ResendMailer) templateData(booking *entity.Booking, payment PaymentDetails, now time.Time) templateData {
	receipt := "#"
	if payment.ReceiptURL != nil && *payment.ReceiptURL != "" {
		receipt = *payment.ReceiptURL
	}
	phone := ""
	if booking.Phone != nil {
		phone = *booking.Phone
	}
	currency := "USD"
	if payment.Currency != "" {
		currency = strings.ToUpper(payment.Currency)
	}

	return templateData{
		Brand: m.cfg.BrandName,
		Booking: templateBooking{
			ID:          booking.ID.String(),
			BookingType: booking.BookingType,
			FullName:    booking.FullName,
			Email:       booking.Email,
			Phone:       phone,
			Status:      string(booking.Status),
		},
		Payment:      payment,
		Amount:       FormatAmount(payment.Amount),
		Currency:     currency,
		ReceiptURL:   receipt,
		ContactPhone: m.cfg.ContactPhone,
		ContactEmail: m.cfg.ContactEmail,
		Year:         now.Year(),
		Time:         now.UTC().Format(time.RFC1123),
	}
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
