package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// RequireTier allows the request only when the user's tier ranks at least
// required and a paid tier is actively billed. Unknown or empty required
// tiers mean pro. SubscriptionStatus runs first as part of the gate.
func RequireTier(cfg GateConfig, required string) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return Chain(SubscriptionStatus(cfg), tierCheck(cfg, subscription.ParseRequiredTier(required)))
}

func tierCheck(cfg GateConfig, required subscription.Tier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap, ok := SubscriptionFromContext(c)
			if !ok {
				snap = &subscription.Snapshot{Tier: subscription.TierFree}
			}

			if !snap.Tier.AtLeast(required) {
				cfg.Metrics.RecordRejection("tier", domain.ErrCodeTierInsufficient)
				return c.JSON(http.StatusForbidden, models.TierErrorResponse{
					Error:        domain.ErrCodeTierInsufficient,
					Message:      fmt.Sprintf("This feature requires the %s plan or higher", required),
					CurrentTier:  snap.Name(),
					RequiredTier: required.String(),
					UpgradeURL:   cfg.UpgradeURL,
				})
			}

			// Free is usable whatever its status; paid tiers must be active.
			if !snap.Usable() {
				cfg.Metrics.RecordRejection("tier", domain.ErrCodeSubscriptionInactive)
				return c.JSON(http.StatusForbidden, models.SubscriptionInactiveResponse{
					Error:     domain.ErrCodeSubscriptionInactive,
					Message:   fmt.Sprintf("Your %s subscription is %s", snap.Name(), snap.Status),
					Status:    string(snap.Status),
					ManageURL: cfg.ManageURL,
				})
			}

			return next(c)
		}
	}
}
