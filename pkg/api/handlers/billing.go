package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
)

// Stripe calls get longer than local lookups
const checkoutTimeout = 10 * time.Second

// BillingService is what the billing handler needs from Stripe integration
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, user *models.User, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
	ApplyEvent(ctx context.Context, event *stripe.Event) error
}

// BillingHandler handles checkout and the Stripe webhook
type BillingHandler struct {
	billing BillingService
	logger  logger.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billing BillingService, log logger.Logger) *BillingHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &BillingHandler{billing: billing, logger: log}
}

// Checkout godoc
// @Summary Create checkout session
// @Description Start a Stripe checkout for a subscription price
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CheckoutRequest true "Checkout request"
// @Success 200 {object} models.CheckoutResponse
// @Failure 400 {object} models.ErrorResponse "Invalid request or unknown price"
// @Failure 401 {object} models.ErrorResponse "Not authenticated"
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
	}
	req, ok := middleware.ValidatedBody[models.CheckoutRequest](c)
	if !ok {
		return errors.InternalError(c, h.logger, errMissingValidation)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), checkoutTimeout)
	defer cancel()

	resp, err := h.billing.CreateCheckoutSession(ctx, user, req)
	if err != nil {
		return errors.FromDomain(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// Webhook godoc
// @Summary Stripe webhook
// @Description Apply a signed Stripe event to the affected user's subscription
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} models.ErrorResponse "Missing or invalid signature"
// @Router /webhooks/stripe [post]
func (h *BillingHandler) Webhook(c echo.Context) error {
	event, ok := middleware.StripeEventFromContext(c)
	if !ok {
		return errors.InternalError(c, h.logger, errMissingValidation)
	}

	if err := h.billing.ApplyEvent(c.Request().Context(), event); err != nil {
		// Non-2xx makes Stripe retry the delivery
		return errors.InternalError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
