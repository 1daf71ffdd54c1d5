// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/colorbook/pkg/database"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

var seq atomic.Int64

// fake is seeded so fixture data is the same on every run. The sequence
// number keeps generated emails and usernames unique.
var (
	fakeMu sync.Mutex
	fake   = gofakeit.New(20240315)
)

func fakeUsername() string {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	return strings.ToLower(fake.Username())
}

func fakeTitleWord() string {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	return fake.HipsterWord()
}

// Open returns a store over a fresh in-memory database with the schema applied.
func Open(t testing.TB) *store.SQLStore {
	t.Helper()
	return store.New(OpenClient(t).DB)
}

// OpenClient returns a fresh in-memory database client, closed on cleanup.
func OpenClient(t testing.TB) *database.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared&_fk=1", seq.Add(1))
	client, err := database.NewClient(context.Background(), database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// UserOption customizes a user created by CreateUser.
type UserOption func(*models.User)

// WithTier sets the subscription tier and status.
func WithTier(tier subscription.Tier, status subscription.Status) UserOption {
	return func(u *models.User) {
		u.SubscriptionTier = tier
		u.SubscriptionStatus = status
	}
}

// WithTierName stores name verbatim as the tier, for names the code does
// not know.
func WithTierName(name string, status subscription.Status) UserOption {
	return func(u *models.User) {
		u.SubscriptionTier = subscription.ParseTier(name)
		u.SubscriptionTierName = name
		u.SubscriptionStatus = status
	}
}

// WithExpiry sets the subscription expiry.
func WithExpiry(at time.Time) UserOption {
	return func(u *models.User) { u.SubscriptionExpiresAt = &at }
}

// WithEmail sets the email address.
func WithEmail(email string) UserOption {
	return func(u *models.User) { u.Email = email }
}

// WithPasswordHash sets the stored bcrypt hash.
func WithPasswordHash(hash string) UserOption {
	return func(u *models.User) { u.PasswordHash = hash }
}

// WithStripeCustomer links a Stripe customer ID.
func WithStripeCustomer(id string) UserOption {
	return func(u *models.User) { u.StripeCustomerID = id }
}

// CreateUser inserts an active free user, adjusted by opts.
func CreateUser(t testing.TB, s *store.SQLStore, opts ...UserOption) *models.User {
	t.Helper()
	n := seq.Add(1)
	name := fmt.Sprintf("%s%d", fakeUsername(), n)
	u := &models.User{
		Email:              name + "@example.com",
		Username:           name,
		SubscriptionTier:   subscription.TierFree,
		SubscriptionStatus: subscription.StatusActive,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// CreateResources inserts n records of kind for userID, all created at at.
// Titles start with the kind and a 1-based index, so they sort in insertion
// order for n < 10.
func CreateResources(t testing.TB, s *store.SQLStore, userID int, kind subscription.Resource, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := &models.Resource{
			UserID:    userID,
			Kind:      kind,
			Title:     fmt.Sprintf("%s %d %s", kind, i+1, fakeTitleWord()),
			CreatedAt: at,
		}
		require.NoError(t, s.CreateResource(context.Background(), r))
	}
}
