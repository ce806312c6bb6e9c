package service

import (
	"context"
	"errors"

	"github.com/nodaluxe/ms-go-checkout/app/notifier"
	"github.com/nodaluxe/ms-go-checkout/app/types"
)

// SendInquirySMS texts an inbound inquiry to the notification phone and
// returns the provider message sid.
func (s *CheckoutService) SendInquirySMS(ctx context.Context, req *types.SMSRequest) (string, error) {
	sid, err := s.sms.SendInquiryAlert(ctx, notifier.InquiryFields{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		InvestmentLevel: req.InvestmentLevel,
		Message:         req.Message,
	})
	if err != nil {
		if errors.Is(err, notifier.ErrSMSNotConfigured) {
			s.logger.Error("twilio credentials not configured")
			return "", newError(ErrConfiguration, "Server configuration error")
		}
		s.logger.WithError(err).Error("inquiry_sms_failed")
		return "", newError(ErrUpstream, err.Error())
	}

	s.logger.WithField("sid", sid).Info("inquiry_sms_sent")
	return sid, nil
}
