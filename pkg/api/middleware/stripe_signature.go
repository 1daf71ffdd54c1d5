package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
)

// MaxWebhookBodyBytes caps the payload read for signature verification
const MaxWebhookBodyBytes = 65536

// HeaderStripeSignature carries the provider-issued payload signature
const HeaderStripeSignature = "Stripe-Signature"

// RequireStripeSignature verifies the Stripe webhook signature of the raw
// body and attaches the parsed event. The body stays readable downstream.
func RequireStripeSignature(secret string, log logger.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	if secret == "" {
		panic("middleware: stripe signature verification requires a webhook secret")
	}
	if log == nil {
		log = logger.Discard()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			signature := req.Header.Get(HeaderStripeSignature)
			if signature == "" {
				m.RecordRejection("webhook", domain.ErrCodeWebhookSignatureMissing)
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   domain.ErrCodeWebhookSignatureMissing,
					Message: "Stripe-Signature header is required",
				})
			}

			payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, MaxWebhookBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
						Error:   domain.ErrCodeBadRequest,
						Message: "Webhook payload too large",
					})
				}
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   domain.ErrCodeBadRequest,
					Message: "Failed to read webhook payload",
				})
			}
			req.Body = io.NopCloser(bytes.NewReader(payload))

			event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
				webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
			if err != nil {
				log.Warn("stripe webhook signature rejected", "error", err)
				m.RecordRejection("webhook", domain.ErrCodeWebhookSignatureInvalid)
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   domain.ErrCodeWebhookSignatureInvalid,
					Message: "Webhook signature verification failed",
				})
			}

			m.RecordWebhookEvent(string(event.Type))
			c.Set(ContextKeyStripeEvent, &event)
			return next(c)
		}
	}
}
