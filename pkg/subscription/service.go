package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/colorbook/pkg/logger"
)

// ErrUnknownFeature is returned for feature keys with no quota table.
var ErrUnknownFeature = errors.New("unknown feature")

// Store is the persistence the service needs. Implementations return a
// domain user-not-found error when the user record does not exist.
type Store interface {
	GetSubscription(ctx context.Context, userID int) (*Snapshot, error)
	// DowngradeExpired sets tier=free, status=expired when the stored expiry
	// is before now and the row is not already downgraded. It reports
	// whether a row changed.
	DowngradeExpired(ctx context.Context, userID int, now time.Time) (bool, error)
	// CountResources counts the user's records of a kind, optionally only
	// those created at or after since.
	CountResources(ctx context.Context, userID int, resource Resource, since *time.Time) (int, error)
}

// Usage is the quota accounting for one feature.
type Usage struct {
	Feature   Feature    `json:"feature"`
	Tier      Tier       `json:"tier"`
	Current   int        `json:"current"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt"`
}

// Unlimited reports whether the feature has no ceiling at this tier.
func (u Usage) Unlimited() bool {
	return u.Limit == Unlimited
}

// Exceeded reports whether no further use is allowed.
func (u Usage) Exceeded() bool {
	return !u.Unlimited() && u.Current >= u.Limit
}

// Service resolves subscription state and quota usage for users.
type Service struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new subscription service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current loads the user's subscription, lazily downgrading it to
// free/expired when its expiry has passed. The second result reports whether
// this call performed the downgrade.
func (s *Service) Current(ctx context.Context, userID int) (*Snapshot, bool, error) {
	snap, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if !snap.Expired(now) {
		return snap, false, nil
	}

	changed, err := s.store.DowngradeExpired(ctx, userID, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to downgrade expired subscription: %w", err)
	}
	if changed {
		s.logger.Info("subscription expired, downgraded to free",
			"user_id", userID, "previous_tier", snap.Tier.String(), "expired_at", snap.ExpiresAt)
	}

	snap.Tier = TierFree
	snap.TierName = ""
	snap.Status = StatusExpired
	return snap, changed, nil
}

// CheckUsage returns the quota accounting for feature at tier. Unlimited
// quotas are not counted.
func (s *Service) CheckUsage(ctx context.Context, userID int, tier Tier, feature Feature) (*Usage, error) {
	return s.usage(ctx, userID, tier, feature, false)
}

// Report returns usage for every metered feature, counting unlimited ones too.
func (s *Service) Report(ctx context.Context, userID int, tier Tier) ([]Usage, error) {
	report := make([]Usage, 0, len(Features))
	for _, f := range Features {
		u, err := s.usage(ctx, userID, tier, f, true)
		if err != nil {
			return nil, err
		}
		report = append(report, *u)
	}
	return report, nil
}

func (s *Service) usage(ctx context.Context, userID int, tier Tier, feature Feature, countUnlimited bool) (*Usage, error) {
	limit, ok := Quota(feature, tier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	now := s.now()
	u := &Usage{Feature: feature, Tier: tier, Limit: limit, Remaining: Unlimited}

	var since *time.Time
	if feature.Monthly() {
		start := MonthStart(now)
		reset := NextMonthStart(now)
		since = &start
		u.ResetAt = &reset
	}

	if limit == Unlimited && !countUnlimited {
		return u, nil
	}

	count, err := s.store.CountResources(ctx, userID, feature.Resource(), since)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", feature.Resource(), err)
	}

	u.Current = count
	if limit != Unlimited {
		u.Remaining = max(limit-count, 0)
	}
	return u, nil
}
