package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nodaluxe/ms-go-checkout/app/factory"
	"github.com/nodaluxe/ms-go-checkout/app/mapper"
	"github.com/nodaluxe/ms-go-checkout/app/service"
	"github.com/nodaluxe/ms-go-checkout/app/types"
	"github.com/sirupsen/logrus"
)

const stripeSignatureHeader = "Stripe-Signature"

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) CreatePaymentIntent(ctx echo.Context) error {
	req, err := types.NewCreatePaymentIntentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	intent, err := c.checkoutService.CreatePaymentIntent(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create payment intent failed")
	}

	return ctx.JSON(http.StatusOK, &types.CreatePaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

func (c *CheckoutController) ConfirmPayment(ctx echo.Context) error {
	req, err := types.NewConfirmPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.ConfirmPayment(ctx.Request().Context(), req)
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) && errors.Is(err, service.ErrPaymentNotCompleted) {
			return ctx.JSON(http.StatusBadRequest, &types.PaymentNotCompletedResponse{Error: svcErr.Message, Status: svcErr.Status})
		}
		return c.writeServiceError(ctx, err, "Confirm payment failed")
	}

	if result.Booking != nil {
		return ctx.JSON(http.StatusOK, &types.ConfirmPaymentResponse{
			Success:    true,
			Booking:    mapper.BookingToResponse(result.Booking),
			ReceiptURL: result.Intent.ReceiptURL,
		})
	}
	return ctx.JSON(http.StatusOK, &types.ConfirmPaymentResponse{
		Success:       true,
		PaymentIntent: mapper.IntentToSummary(result.Intent),
	})
}

// StripeWebhook answers verification failures in plain text, matching what
// the provider dashboard displays.
func (c *CheckoutController) StripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
	}

	_, err = c.checkoutService.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get(stripeSignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConfiguration):
			return ctx.String(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSignature):
			return ctx.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
		case errors.Is(err, service.ErrMalformedEvent):
			return c.writeError(ctx, http.StatusInternalServerError, err.Error())
		default:
			c.logger.WithError(err).Error("Stripe webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookReceivedResponse{Received: true})
}

func (c *CheckoutController) SendSMS(ctx echo.Context) error {
	req, err := types.NewSMSRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	sid, err := c.checkoutService.SendInquirySMS(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrConfiguration) {
			return c.writeError(ctx, http.StatusInternalServerError, err.Error())
		}
		return ctx.JSON(http.StatusInternalServerError, &types.FailureResponse{Success: false, Error: err.Error()})
	}

	return ctx.JSON(http.StatusOK, &types.SMSResponse{
		Success: true,
		Message: "SMS notification sent successfully",
		SID:     sid,
	})
}

func (c *CheckoutController) CreateStripeCheckout(ctx echo.Context) error {
	req, err := types.NewCheckoutSessionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.checkoutService.CreateCheckoutSession(ctx.Request().Context(), req, requestBaseURL(ctx))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConfiguration):
			return c.writeError(ctx, http.StatusInternalServerError, err.Error())
		default:
			c.logger.WithError(err).Error("Create checkout session failed")
			return ctx.JSON(http.StatusInternalServerError, &types.FailureResponse{Success: false, Error: err.Error()})
		}
	}

	return ctx.JSON(http.StatusOK, &types.CheckoutSessionResponse{
		Success:   true,
		SessionID: session.ID,
		URL:       session.URL,
	})
}

func (c *CheckoutController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrConfiguration), errors.Is(err, service.ErrUpstream):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func requestBaseURL(ctx echo.Context) string {
	if origin := ctx.Request().Header.Get(echo.HeaderOrigin); origin != "" {
		return origin
	}
	return ctx.Request().Header.Get("Referer")
}
