package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/entity"
	"github.com/resend/resend-go/v2"
)

var ErrEmailDisabled = errors.New("email delivery is not configured")

type EmailConfig struct {
	APIKey            string
	BaseURL           string
	BrandName         string
	FromCustomer      string
	FromAdmin         string
	NotificationEmail string
	ContactPhone      string
	ContactEmail      string
	HTTPTimeout       time.Duration
}

// PaymentDetails is the payment-side data rendered into booking emails.
type PaymentDetails struct {
	IntentID   string
	Amount     int64
	Currency   string
	ReceiptURL *string
}

// ResendMailer sends booking emails through Resend. Without an API key every
// send returns ErrEmailDisabled.
type ResendMailer struct {
	cfg    EmailConfig
	client *resend.Client
	now    func() time.Time
}

func NewResendMailer(cfg EmailConfig) (*ResendMailer, error) {
	mailer := &ResendMailer{cfg: cfg, now: time.Now}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return mailer, nil
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resend.NewCustomClient(&http.Client{Timeout: timeout}, cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		parsed, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = parsed
	}
	mailer.client = client

	return mailer, nil
}

func (m *ResendMailer) Enabled() bool {
	return m != nil && m.client != nil
}

func (m *ResendMailer) SendCustomerConfirmation(ctx context.Context, booking *entity.Booking, payment PaymentDetails) (string, error) {
	if !m.Enabled() {
		return "", ErrEmailDisabled
	}
	html, err := render(customerConfirmationTmpl, m.templateData(booking, payment, m.now()))
	if err != nil {
		return "", err
	}

	return m.send(ctx, &resend.SendEmailRequest{
		From:    m.cfg.FromCustomer,
		To:      []string{booking.Email},
		Subject: "Booking Confirmation - " + booking.BookingType,
		Html:    html,
	})
}

func (m *ResendMailer) SendAdminNotification(ctx context.Context, booking *entity.Booking, payment PaymentDetails) (string, error) {
	if !m.Enabled() {
		return "", ErrEmailDisabled
	}
	html, err := render(adminNotificationTmpl, m.templateData(booking, payment, m.now()))
	if err != nil {
		return "", err
	}

	return m.send(ctx, &resend.SendEmailRequest{
		From:    m.cfg.FromAdmin,
		To:      []string{m.cfg.NotificationEmail},
		Subject: fmt.Sprintf("🎉 New Booking: %s - $%s", booking.BookingType, FormatAmount(payment.Amount)),
		Html:    html,
	})
}

// SendStatusMismatchAlert tells the admin inbox that a payment succeeded for a
// booking already closed as failed or canceled.
func (m *ResendMailer) SendStatusMismatchAlert(ctx context.Context, booking *entity.Booking, payment PaymentDetails) (string, error) {
	if !m.Enabled() {
		return "", ErrEmailDisabled
	}
	html, err := render(statusMismatchTmpl, m.templateData(booking, payment, m.now()))
	if err != nil {
		return "", err
	}

	return m.send(ctx, &resend.SendEmailRequest{
		From:    m.cfg.FromAdmin,
		To:      []string{m.cfg.NotificationEmail},
		Subject: fmt.Sprintf("⚠️ Payment received for %s booking #%s - $%s", booking.Status, booking.ID.String(), FormatAmount(payment.Amount)),
		Html:    html,
	})
}

func (m *ResendMailer) send(ctx context.Context, req *resend.SendEmailRequest) (string, error) {
	sent, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	if sent == nil {
		return "", nil
	}
	return sent.Id, nil
}
