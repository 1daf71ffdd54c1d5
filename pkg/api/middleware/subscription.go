package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// GateConfig configures the subscription, tier and usage gates
type GateConfig struct {
	Subscriptions *subscription.Service
	Logger        logger.Logger
	Metrics       *metrics.Metrics

	// UpgradeURL is returned when a tier or quota is insufficient,
	// ManageURL when a paid subscription is not active.
	UpgradeURL string
	ManageURL  string
}

func (cfg GateConfig) withDefaults() GateConfig {
	if cfg.Subscriptions == nil {
		panic("middleware: gates require a subscription service")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return cfg
}

// SubscriptionStatus loads the authenticated user's subscription, applying
// the expiry downgrade when due, and attaches it to the context. It must run
// after Authenticate.
func SubscriptionStatus(cfg GateConfig) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserIDFromContext(c)
			if !ok {
				cfg.Metrics.RecordRejection("subscription", domain.ErrCodeAuthMissing)
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   domain.ErrCodeAuthMissing,
					Message: "Authentication required",
				})
			}

			snap, downgraded, err := cfg.Subscriptions.Current(c.Request().Context(), userID)
			if err != nil {
				if domain.IsNotFound(err) {
					cfg.Metrics.RecordRejection("subscription", domain.ErrCodeUserNotFound)
					return c.JSON(http.StatusNotFound, models.ErrorResponse{
						Error:   domain.ErrCodeUserNotFound,
						Message: "User account not found",
					})
				}
				return apierrors.InternalError(c, cfg.Logger, fmt.Errorf("subscription status: %w", err))
			}
			if downgraded {
				cfg.Metrics.RecordDowngrade()
			}

			// Keep the attached user consistent with the downgrade.
			if user, ok := UserFromContext(c); ok {
				user.SubscriptionTier = snap.Tier
				user.SubscriptionTierName = snap.TierName
				user.SubscriptionStatus = snap.Status
				c.Set(ContextKeyUserTier, snap.Tier)
				c.Set(ContextKeyHasActiveSubscription, snap.Active())
			}

			c.Set(ContextKeySubscription, snap)
			return next(c)
		}
	}
}
