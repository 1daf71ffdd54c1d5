package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/store/storetest"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

const (
	pricePro        = "price_pro_monthly"
	priceEnterprise = "price_enterprise_monthly"
)

func newTestService(t *testing.T, backends *stripe.Backends) (*Service, *store.SQLStore) {
	t.Helper()
	s := storetest.Open(t)
	svc := NewService(s, Config{
		SecretKey:       "sk_test_123",
		PricePro:        pricePro,
		PriceEnterprise: priceEnterprise,
		Backends:        backends,
	}, nil)
	return svc, s
}

func event(t *testing.T, eventType string, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":     "evt_test",
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": object},
	})
	require.NoError(t, err)

	var e stripe.Event
	require.NoError(t, json.Unmarshal(raw, &e))
	return &e
}

func TestTierForPrice(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tier, ok := svc.TierForPrice(pricePro)
	assert.True(t, ok)
	assert.Equal(t, subscription.TierPro, tier)

	tier, ok = svc.TierForPrice(priceEnterprise)
	assert.True(t, ok)
	assert.Equal(t, subscription.TierEnterprise, tier)

	_, ok = svc.TierForPrice("price_unknown")
	assert.False(t, ok)
	_, ok = svc.TierForPrice("")
	assert.False(t, ok)
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)
	}))
	defer srv.Close()

	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(srv.URL),
			MaxNetworkRetries: stripe.Int64(0),
		}),
	}
	svc, s := newTestService(t, backends)
	user := storetest.CreateUser(t, s, storetest.WithEmail("ada@example.com"))

	resp, err := svc.CreateCheckoutSession(context.Background(), user, &models.CheckoutRequest{
		PriceID:    pricePro,
		SuccessURL: "https://app.example.com/billing/success",
		CancelURL:  "https://app.example.com/billing/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp.URL)

	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, pricePro, form.Get("line_items[0][price]"))
	assert.Equal(t, "ada@example.com", form.Get("customer_email"))
	assert.Equal(t, fmt.Sprint(user.ID), form.Get("client_reference_id"))
	assert.Equal(t, "pro", form.Get("metadata[tier]"))
}

func TestCreateCheckoutSession_UnknownPrice(t *testing.T) {
	svc, s := newTestService(t, nil)
	user := storetest.CreateUser(t, s)

	_, err := svc.CreateCheckoutSession(context.Background(), user, &models.CheckoutRequest{
		PriceID:    "price_bogus",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/no",
	})
	assert.Equal(t, domain.ErrCodeBadRequest, domain.GetErrorCode(err))
}

func TestApplyEvent_CheckoutCompleted(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s)

	err := svc.ApplyEvent(ctx, event(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"client_reference_id": fmt.Sprint(user.ID),
		"customer":            "cus_123",
		"subscription":        "sub_123",
		"metadata":            map[string]string{"tier": "pro"},
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, got.SubscriptionTier)
	assert.Equal(t, subscription.StatusActive, got.SubscriptionStatus)
	assert.Equal(t, "cus_123", got.StripeCustomerID)
	assert.Equal(t, "sub_123", got.StripeSubscriptionID)
}

func TestApplyEvent_CheckoutCompletedAfterLapse(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierFree, subscription.StatusExpired),
		storetest.WithExpiry(time.Now().AddDate(0, -1, 0)))

	err := svc.ApplyEvent(ctx, event(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_test_2",
		"object":              "checkout.session",
		"client_reference_id": fmt.Sprint(user.ID),
		"customer":            "cus_again",
		"subscription":        "sub_again",
		"metadata":            map[string]string{"tier": "pro"},
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SubscriptionExpiresAt)

	// The next request must not downgrade the renewed subscription
	snap, downgraded, err := subscription.NewService(s).Current(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, downgraded)
	assert.Equal(t, subscription.TierPro, snap.Tier)
	assert.Equal(t, subscription.StatusActive, snap.Status)
}

func TestApplyEvent_CheckoutCompletedWithExpandedSubscription(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s)

	end := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	err := svc.ApplyEvent(ctx, event(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_test_3",
		"object":              "checkout.session",
		"client_reference_id": fmt.Sprint(user.ID),
		"subscription": map[string]any{
			"id":                 "sub_expanded",
			"object":             "subscription",
			"current_period_end": end.Unix(),
		},
		"metadata": map[string]string{"tier": "enterprise"},
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierEnterprise, got.SubscriptionTier)
	assert.Equal(t, "sub_expanded", got.StripeSubscriptionID)
	require.NotNil(t, got.SubscriptionExpiresAt)
	assert.True(t, end.Equal(*got.SubscriptionExpiresAt))
}

func TestApplyEvent_SubscriptionUpdated(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierPro, subscription.StatusActive),
		storetest.WithStripeCustomer("cus_456"))

	periodEnd := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	err := svc.ApplyEvent(ctx, event(t, "customer.subscription.updated", map[string]any{
		"id":                 "sub_456",
		"object":             "subscription",
		"customer":           "cus_456",
		"status":             "past_due",
		"current_period_end": periodEnd.Unix(),
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": priceEnterprise, "object": "price"}},
			},
		},
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierEnterprise, got.SubscriptionTier)
	assert.Equal(t, subscription.StatusPastDue, got.SubscriptionStatus)
	require.NotNil(t, got.SubscriptionExpiresAt)
	assert.True(t, periodEnd.Equal(*got.SubscriptionExpiresAt))
}

func TestApplyEvent_SubscriptionCreatedFallsBackToMetadata(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s)

	err := svc.ApplyEvent(ctx, event(t, "customer.subscription.created", map[string]any{
		"id":       "sub_789",
		"object":   "subscription",
		"customer": "cus_new",
		"status":   "active",
		"metadata": map[string]string{"user_id": fmt.Sprint(user.ID)},
		"items": map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "si_2", "object": "subscription_item", "price": map[string]any{"id": pricePro, "object": "price"}}},
		},
	}))
	require.NoError(t, err)

	got, err := s.GetUserByStripeCustomer(ctx, "cus_new")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, subscription.TierPro, got.SubscriptionTier)
}

func TestApplyEvent_SubscriptionDeleted(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierEnterprise, subscription.StatusActive),
		storetest.WithExpiry(time.Now().Add(24*time.Hour)),
		storetest.WithStripeCustomer("cus_del"))

	err := svc.ApplyEvent(ctx, event(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_del",
		"object":   "subscription",
		"customer": "cus_del",
		"status":   "canceled",
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierFree, got.SubscriptionTier)
	assert.Equal(t, subscription.StatusCanceled, got.SubscriptionStatus)
	assert.Nil(t, got.SubscriptionExpiresAt)
}

func TestApplyEvent_PaymentFailed(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()
	user := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierPro, subscription.StatusActive),
		storetest.WithStripeCustomer("cus_late"))

	err := svc.ApplyEvent(ctx, event(t, "invoice.payment_failed", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"customer": "cus_late",
	}))
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, got.SubscriptionTier)
	assert.Equal(t, subscription.StatusPastDue, got.SubscriptionStatus)
}

func TestApplyEvent_IgnoredEvents(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		err := svc.ApplyEvent(ctx, event(t, "customer.subscription.updated", map[string]any{
			"id": "sub_x", "object": "subscription", "customer": "cus_nobody", "status": "active",
		}))
		assert.NoError(t, err)
	})

	t.Run("no user reference", func(t *testing.T) {
		err := svc.ApplyEvent(ctx, event(t, "checkout.session.completed", map[string]any{
			"id": "cs_x", "object": "checkout.session",
		}))
		assert.NoError(t, err)
	})

	t.Run("unhandled type", func(t *testing.T) {
		err := svc.ApplyEvent(ctx, event(t, "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"}))
		assert.NoError(t, err)
	})
}

func TestStatusFromStripe(t *testing.T) {
	tests := map[stripe.SubscriptionStatus]subscription.Status{
		stripe.SubscriptionStatusActive:            subscription.StatusActive,
		stripe.SubscriptionStatusTrialing:          subscription.StatusTrialing,
		stripe.SubscriptionStatusPastDue:           subscription.StatusPastDue,
		stripe.SubscriptionStatusUnpaid:            subscription.StatusUnpaid,
		stripe.SubscriptionStatusIncomplete:        subscription.StatusIncomplete,
		stripe.SubscriptionStatusIncompleteExpired: subscription.StatusExpired,
		stripe.SubscriptionStatusCanceled:          subscription.StatusCanceled,
	}
	for in, want := range tests {
		assert.Equal(t, want, statusFromStripe(in), string(in))
	}
}
