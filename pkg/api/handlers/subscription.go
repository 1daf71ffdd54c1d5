package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// SubscriptionHandler reports the caller's subscription and quota usage
type SubscriptionHandler struct {
	subs   *subscription.Service
	logger logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subs *subscription.Service, log logger.Logger) *SubscriptionHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &SubscriptionHandler{subs: subs, logger: log}
}

// Get godoc
// @Summary Get subscription
// @Description Current tier, status and expiry with usage for every metered feature
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SubscriptionResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.TierErrorResponse "Enterprise route, lower tier"
// @Router /subscription [get]
// @Router /enterprise/usage [get]
func (h *SubscriptionHandler) Get(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	snap, ok := middleware.SubscriptionFromContext(c)
	if !ok {
		current, _, err := h.subs.Current(ctx, userID)
		if err != nil {
			return errors.FromDomain(c, h.logger, err)
		}
		snap = current
	}

	usage, err := h.subs.Report(ctx, userID, snap.Tier)
	if err != nil {
		return errors.InternalError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, models.SubscriptionResponse{
		Subscription: *snap,
		Usage:        usage,
	})
}
