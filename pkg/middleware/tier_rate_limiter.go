package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

const cleanupInterval = 5 * time.Minute

// TierLimits defines the request rate of a subscription tier
type TierLimits struct {
	RequestsPerMinute int
	Burst             int
}

// TierRateLimiter limits authenticated users by tier and anonymous callers
// by IP.
type TierRateLimiter struct {
	userLimiters map[int]*rate.Limiter
	ipLimiters   map[string]*rate.Limiter
	mu           sync.RWMutex

	tierLimits    map[subscription.Tier]TierLimits
	defaultLimits TierLimits

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTierRateLimiter creates a limiter and starts its cleanup loop. Call
// Stop to end the loop.
func NewTierRateLimiter() *TierRateLimiter {
	trl := &TierRateLimiter{
		userLimiters: make(map[int]*rate.Limiter),
		ipLimiters:   make(map[string]*rate.Limiter),
		tierLimits: map[subscription.Tier]TierLimits{
			subscription.TierFree: {
				RequestsPerMinute: 60,
				Burst:             10,
			},
			subscription.TierPro: {
				RequestsPerMinute: 300,
				Burst:             50,
			},
			subscription.TierEnterprise: {
				RequestsPerMinute: 600,
				Burst:             100,
			},
		},
		defaultLimits: TierLimits{
			RequestsPerMinute: 30,
			Burst:             5,
		},
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go trl.cleanupLoop()

	return trl
}

// Stop ends the cleanup loop. Safe to call more than once.
func (trl *TierRateLimiter) Stop() {
	trl.stopOnce.Do(func() { close(trl.stop) })
}

func newLimiter(l TierLimits) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(l.RequestsPerMinute)/60.0), l.Burst)
}

// getUserLimiter returns the user's limiter, replacing it when the user's
// tier limits changed since it was created (e.g. after an upgrade).
func (trl *TierRateLimiter) getUserLimiter(userID int, tier subscription.Tier) *rate.Limiter {
	trl.mu.Lock()
	defer trl.mu.Unlock()

	limits, ok := trl.tierLimits[tier]
	if !ok {
		limits = trl.tierLimits[subscription.TierFree]
	}

	if limiter, exists := trl.userLimiters[userID]; exists && limiter.Burst() == limits.Burst {
		return limiter
	}

	limiter := newLimiter(limits)
	trl.userLimiters[userID] = limiter
	return limiter
}

func (trl *TierRateLimiter) getIPLimiter(ip string) *rate.Limiter {
	trl.mu.Lock()
	defer trl.mu.Unlock()

	if limiter, exists := trl.ipLimiters[ip]; exists {
		return limiter
	}

	limiter := newLimiter(trl.defaultLimits)
	trl.ipLimiters[ip] = limiter
	return limiter
}

func (trl *TierRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-trl.stop:
			return
		case <-ticker.C:
			trl.cleanup()
		}
	}
}

// cleanup drops limiters with a full bucket; they have been idle long
// enough that recreating them is equivalent.
func (trl *TierRateLimiter) cleanup() {
	trl.mu.Lock()
	defer trl.mu.Unlock()

	for userID, limiter := range trl.userLimiters {
		if limiter.Tokens() >= float64(limiter.Burst()) {
			delete(trl.userLimiters, userID)
		}
	}
	for ip, limiter := range trl.ipLimiters {
		if limiter.Tokens() >= float64(limiter.Burst()) {
			delete(trl.ipLimiters, ip)
		}
	}
}

// Middleware creates an Echo middleware for tier-based rate limiting. It
// reads the user set by the authentication middleware, so mount it after.
func (trl *TierRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var limiter *rate.Limiter

			userID, hasUserID := c.Get("user_id").(int)
			tier, hasTier := trl.effectiveTier(c)

			tierInfo := "unauthenticated"
			if hasUserID && hasTier {
				limiter = trl.getUserLimiter(userID, tier)
				tierInfo = tier.String()
			} else {
				ip := c.RealIP()
				if ip == "" {
					ip = c.Request().RemoteAddr
				}
				limiter = trl.getIPLimiter(ip)
			}

			if !limiter.Allow() {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": fmt.Sprintf("Rate limit exceeded for %s tier. Please upgrade for higher limits or try again later.", tierInfo),
					"tier":    tierInfo,
				})
			}

			return next(c)
		}
	}
}

// effectiveTier is the tier the request is limited at. The authenticated
// user's stored tier counts as free once its expiry has passed, even before
// the subscription filter persists the downgrade.
func (trl *TierRateLimiter) effectiveTier(c echo.Context) (subscription.Tier, bool) {
	if snap, ok := c.Get("subscription").(*subscription.Snapshot); ok && snap != nil {
		return snap.Tier, true
	}
	if user, ok := c.Get("user").(*models.User); ok && user != nil {
		if user.Subscription().Expired(trl.now()) {
			return subscription.TierFree, true
		}
		return user.SubscriptionTier, true
	}
	tier, ok := c.Get("user_tier").(subscription.Tier)
	return tier, ok
}
