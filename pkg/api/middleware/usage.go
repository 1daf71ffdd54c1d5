package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// Usage headers set on requests that pass CheckUsage
const (
	HeaderUsageLimit     = "X-Usage-Limit"
	HeaderUsageRemaining = "X-Usage-Remaining"
)

// CheckUsage rejects the request with 429 once the user's quota for feature
// is used up. Unlimited quotas and unknown features pass without counting.
func CheckUsage(cfg GateConfig, feature string) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()
	f, known := subscription.ParseFeature(feature)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !known {
			cfg.Logger.Warn("usage gate configured with unknown feature, allowing all requests", "feature", feature)
			return next
		}

		return func(c echo.Context) error {
			userID, ok := UserIDFromContext(c)
			if !ok {
				cfg.Metrics.RecordRejection("usage", domain.ErrCodeAuthMissing)
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   domain.ErrCodeAuthMissing,
					Message: "Authentication required",
				})
			}

			snap := currentSubscription(c)

			usage, err := cfg.Subscriptions.CheckUsage(c.Request().Context(), userID, snap.Tier, f)
			if err != nil {
				return apierrors.InternalError(c, cfg.Logger, fmt.Errorf("usage check: %w", err))
			}

			if usage.Unlimited() {
				cfg.Metrics.RecordUsageCheck(string(f), "unlimited")
				return next(c)
			}

			if usage.Exceeded() {
				cfg.Metrics.RecordUsageCheck(string(f), "exceeded")
				cfg.Metrics.RecordRejection("usage", domain.ErrCodeUsageExceeded)

				var resetDate *string
				if usage.ResetAt != nil {
					s := usage.ResetAt.Format(time.RFC3339)
					resetDate = &s
				}
				return c.JSON(http.StatusTooManyRequests, models.UsageLimitResponse{
					Error:        domain.ErrCodeUsageExceeded,
					Message:      fmt.Sprintf("You have reached the %s limit of your %s plan", f, snap.Name()),
					CurrentUsage: usage.Current,
					Limit:        usage.Limit,
					Tier:         snap.Name(),
					UpgradeURL:   cfg.UpgradeURL,
					ResetDate:    resetDate,
				})
			}

			cfg.Metrics.RecordUsageCheck(string(f), "allowed")
			c.Set(ContextKeyUsage, &UsageInfo{
				Current:   usage.Current,
				Limit:     usage.Limit,
				Remaining: usage.Remaining,
			})
			h := c.Response().Header()
			h.Set(HeaderUsageLimit, strconv.Itoa(usage.Limit))
			h.Set(HeaderUsageRemaining, strconv.Itoa(usage.Remaining))

			return next(c)
		}
	}
}
