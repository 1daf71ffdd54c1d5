package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// Context keys set by the filters in this package
const (
	ContextKeyUser                  = "user"
	ContextKeyUserID                = "user_id"
	ContextKeyUserEmail             = "user_email"
	ContextKeyUserTier              = "user_tier"
	ContextKeyHasActiveSubscription = "has_active_subscription"
	ContextKeyToken                 = "token"
	ContextKeySubscription          = "subscription"
	ContextKeyUsage                 = "usage"
	ContextKeyStripeEvent           = "stripe_event"
)

// UsageInfo is the quota accounting attached by CheckUsage
type UsageInfo struct {
	Current   int `json:"current"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

func setUser(c echo.Context, user *models.User, token string) {
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyUserEmail, user.Email)
	c.Set(ContextKeyUserTier, user.SubscriptionTier)
	c.Set(ContextKeyHasActiveSubscription, user.HasActiveSubscription())
	c.Set(ContextKeyToken, token)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	return user, ok && user != nil
}

// UserIDFromContext returns the authenticated user's ID, if any
func UserIDFromContext(c echo.Context) (int, bool) {
	id, ok := c.Get(ContextKeyUserID).(int)
	return id, ok
}

// TokenFromContext returns the raw bearer token of the request
func TokenFromContext(c echo.Context) (string, bool) {
	token, ok := c.Get(ContextKeyToken).(string)
	return token, ok && token != ""
}

// HasActiveSubscription reports the flag set by Authenticate
func HasActiveSubscription(c echo.Context) bool {
	active, _ := c.Get(ContextKeyHasActiveSubscription).(bool)
	return active
}

// SubscriptionFromContext returns the snapshot set by SubscriptionStatus
func SubscriptionFromContext(c echo.Context) (*subscription.Snapshot, bool) {
	snap, ok := c.Get(ContextKeySubscription).(*subscription.Snapshot)
	return snap, ok && snap != nil
}

// UsageFromContext returns the usage set by CheckUsage
func UsageFromContext(c echo.Context) (*UsageInfo, bool) {
	usage, ok := c.Get(ContextKeyUsage).(*UsageInfo)
	return usage, ok && usage != nil
}

// StripeEventFromContext returns the event verified by RequireStripeSignature
func StripeEventFromContext(c echo.Context) (*stripe.Event, bool) {
	event, ok := c.Get(ContextKeyStripeEvent).(*stripe.Event)
	return event, ok && event != nil
}

// currentSubscription prefers the subscription snapshot, which reflects a lazy
// downgrade, over the tier loaded at authentication.
func currentSubscription(c echo.Context) subscription.Snapshot {
	if snap, ok := SubscriptionFromContext(c); ok {
		return *snap
	}
	if user, ok := UserFromContext(c); ok {
		return user.Subscription()
	}
	return subscription.Snapshot{Tier: subscription.TierFree}
}
