package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// Store is the persistence the billing service writes subscription state to
type Store interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID int, u store.SubscriptionUpdate) error
}

// Config holds Stripe configuration
type Config struct {
	SecretKey       string
	PricePro        string
	PriceEnterprise string

	// Backends overrides the Stripe API endpoints. Used in tests.
	Backends *stripe.Backends
}

// Service creates checkout sessions and applies Stripe events to users
type Service struct {
	store  Store
	config Config
	stripe *client.API
	logger logger.Logger
}

// NewService creates a new billing service
func NewService(store Store, config Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store:  store,
		config: config,
		stripe: client.New(config.SecretKey, config.Backends),
		logger: log,
	}
}

// TierForPrice maps a configured Stripe price to the tier it sells
func (s *Service) TierForPrice(priceID string) (subscription.Tier, bool) {
	switch {
	case priceID == "":
		return subscription.TierFree, false
	case priceID == s.config.PricePro:
		return subscription.TierPro, true
	case priceID == s.config.PriceEnterprise:
		return subscription.TierEnterprise, true
	default:
		return subscription.TierFree, false
	}
}

// CreateCheckoutSession starts a subscription checkout for user. The user
// ID and tier travel in the session metadata so the completion webhook can
// apply them.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	tier, ok := s.TierForPrice(req.PriceID)
	if !ok {
		return nil, domain.NewBadRequestError("Unknown price")
	}

	userID := strconv.Itoa(user.ID)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID, "tier": tier.String()},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("tier", tier.String())

	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created", "user_id", user.ID, "tier", tier.String(), "session_id", sess.ID)

	return &models.CheckoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// ApplyEvent updates the affected user's subscription from a verified
// Stripe event. Events for unknown users or of unhandled types are
// acknowledged without changes.
func (s *Service) ApplyEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event)
	default:
		s.logger.Debug("unhandled webhook event type", "type", event.Type, "event_id", event.ID)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	ref := sess.ClientReferenceID
	if ref == "" {
		ref = sess.Metadata["user_id"]
	}
	userID, err := strconv.Atoi(ref)
	if err != nil {
		s.logger.Warn("checkout session without user reference", "session_id", sess.ID)
		return nil
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return s.ignoreMissingUser(err, "checkout.session.completed", sess.ID)
	}

	// A lapsed expiry from an earlier plan must not survive the new
	// purchase; the subscription events set the real period end later.
	update := store.SubscriptionUpdate{
		Tier:                 subscription.ParseTier(sess.Metadata["tier"]),
		Status:               subscription.StatusActive,
		ExpiresAt:            periodEnd(sess.Subscription),
		StripeCustomerID:     customerID(sess.Customer),
		StripeSubscriptionID: subscriptionID(sess.Subscription),
	}
	if err := s.store.UpdateSubscription(ctx, user.ID, update); err != nil {
		return err
	}

	s.logger.Info("checkout completed", "user_id", user.ID, "tier", update.Tier.String())
	return nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	user, err := s.userForSubscription(ctx, &sub)
	if err != nil {
		return s.ignoreMissingUser(err, string(event.Type), sub.ID)
	}

	tier := user.SubscriptionTier
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		if t, ok := s.TierForPrice(sub.Items.Data[0].Price.ID); ok {
			tier = t
		}
	}

	update := store.SubscriptionUpdate{
		Tier:                 tier,
		Status:               statusFromStripe(sub.Status),
		ExpiresAt:            periodEnd(&sub),
		StripeCustomerID:     customerID(sub.Customer),
		StripeSubscriptionID: sub.ID,
	}
	if err := s.store.UpdateSubscription(ctx, user.ID, update); err != nil {
		return err
	}

	s.logger.Info("subscription updated",
		"user_id", user.ID, "tier", tier.String(), "status", string(update.Status), "subscription_id", sub.ID)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	user, err := s.userForSubscription(ctx, &sub)
	if err != nil {
		return s.ignoreMissingUser(err, string(event.Type), sub.ID)
	}

	update := store.SubscriptionUpdate{
		Tier:   subscription.TierFree,
		Status: subscription.StatusCanceled,
	}
	if err := s.store.UpdateSubscription(ctx, user.ID, update); err != nil {
		return err
	}

	s.logger.Info("subscription canceled, downgraded to free", "user_id", user.ID, "subscription_id", sub.ID)
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	user, err := s.store.GetUserByStripeCustomer(ctx, customerID(invoice.Customer))
	if err != nil {
		return s.ignoreMissingUser(err, string(event.Type), invoice.ID)
	}

	update := store.SubscriptionUpdate{
		Tier:      user.SubscriptionTier,
		Status:    subscription.StatusPastDue,
		ExpiresAt: user.SubscriptionExpiresAt,
	}
	if err := s.store.UpdateSubscription(ctx, user.ID, update); err != nil {
		return err
	}

	s.logger.Warn("invoice payment failed", "user_id", user.ID, "invoice_id", invoice.ID)
	return nil
}

// userForSubscription finds the user by Stripe customer, falling back to
// the user ID placed in the subscription metadata at checkout.
func (s *Service) userForSubscription(ctx context.Context, sub *stripe.Subscription) (*models.User, error) {
	user, err := s.store.GetUserByStripeCustomer(ctx, customerID(sub.Customer))
	if err == nil || !domain.IsNotFound(err) {
		return user, err
	}

	userID, convErr := strconv.Atoi(sub.Metadata["user_id"])
	if convErr != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) ignoreMissingUser(err error, eventType, objectID string) error {
	if domain.IsNotFound(err) {
		s.logger.Warn("webhook event for unknown user", "type", eventType, "object_id", objectID)
		return nil
	}
	return err
}

func statusFromStripe(status stripe.SubscriptionStatus) subscription.Status {
	switch status {
	case stripe.SubscriptionStatusActive:
		return subscription.StatusActive
	case stripe.SubscriptionStatusTrialing:
		return subscription.StatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return subscription.StatusPastDue
	case stripe.SubscriptionStatusUnpaid:
		return subscription.StatusUnpaid
	case stripe.SubscriptionStatusIncomplete:
		return subscription.StatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return subscription.StatusExpired
	default:
		return subscription.StatusCanceled
	}
}

// periodEnd is the end of the paid period, or nil when sub is unexpanded.
func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.CurrentPeriodEnd <= 0 {
		return nil
	}
	t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	return &t
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}
