package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrSMSNotConfigured = errors.New("twilio credentials are not configured")

type SMSConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	NotificationPhone string
	APIBaseURL        string
	HTTPTimeout       time.Duration
}

// InquiryFields is the content of an inbound investment inquiry.
type InquiryFields struct {
	Name            string
	Email           string
	Phone           string
	InvestmentLevel string
	Message         string
}

// DeliveryError is a non-2xx answer from a delivery provider.
type DeliveryError struct {
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	return "Twilio API error: " + e.Message
}

type TwilioSender struct {
	cfg    SMSConfig
	client *twilio.RestClient
}

func NewTwilioSender(cfg SMSConfig) *TwilioSender {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")); err == nil && base.Host != "" {
		httpClient.Transport = &baseURLTransport{base: base, next: http.DefaultTransport}
	}

	apiClient := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	apiClient.SetAccountSid(cfg.AccountSID)

	return &TwilioSender{
		cfg:    cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{Client: apiClient}),
	}
}

func (s *TwilioSender) Configured() bool {
	return strings.TrimSpace(s.cfg.AccountSID) != "" &&
		strings.TrimSpace(s.cfg.AuthToken) != "" &&
		strings.TrimSpace(s.cfg.FromNumber) != ""
}

// SendInquiryAlert texts the inquiry to the notification phone and returns the message sid.
func (s *TwilioSender) SendInquiryAlert(ctx context.Context, fields InquiryFields) (string, error) {
	if !s.Configured() {
		return "", ErrSMSNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetPathAccountSid(s.cfg.AccountSID)
	params.SetTo(s.cfg.NotificationPhone)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(FormatInquiry(fields))

	message, err := s.client.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			msg := strings.TrimSpace(restErr.Message)
			if msg == "" {
				msg = "Unknown error"
			}
			return "", &DeliveryError{StatusCode: restErr.Status, Message: msg}
		}
		return "", err
	}
	if message == nil || message.Sid == nil {
		return "", nil
	}
	return *message.Sid, nil
}

// FormatInquiry renders the fixed-shape inquiry text.
func FormatInquiry(fields InquiryFields) string {
	return fmt.Sprintf("🚨 NEW INVESTMENT INQUIRY\n\nName: %s\nEmail: %s\nPhone: %s\nPackage: %s\nMessage: %s\n\nReply to schedule meeting!",
		fields.Name,
		fields.Email,
		orDefault(fields.Phone, "Not provided"),
		orDefault(fields.InvestmentLevel, "Not specified"),
		orDefault(fields.Message, "None"),
	)
}

// baseURLTransport sends every request to base, keeping path and query.
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.base.Scheme
	req.URL.Host = t.base.Host
	req.Host = t.base.Host
	return t.next.RoundTrip(req)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
