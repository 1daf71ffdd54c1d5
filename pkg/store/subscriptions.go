package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// SubscriptionUpdate is the billing state written back from the payment
// provider. Empty Stripe IDs leave the stored values untouched.
type SubscriptionUpdate struct {
	Tier                 subscription.Tier
	Status               subscription.Status
	ExpiresAt            *time.Time
	StripeCustomerID     string
	StripeSubscriptionID string
}

// GetSubscription returns the stored subscription state of a user
func (s *SQLStore) GetSubscription(ctx context.Context, userID int) (*subscription.Snapshot, error) {
	var (
		tier      string
		status    string
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT subscription_tier, subscription_status, subscription_expires_at FROM users WHERE id = $1`,
		userID,
	).Scan(&tier, &status, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewUserNotFoundError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	snap := subscription.NewSnapshot(tier, subscription.Status(status), timePtr(expiresAt))
	return &snap, nil
}

// DowngradeExpired moves an expired subscription to free/expired. The
// conditional update makes concurrent callers race safely: only one of them
// sees a changed row.
func (s *SQLStore) DowngradeExpired(ctx context.Context, userID int, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users
	SET subscription_tier = $1, subscription_status = $2
	WHERE id = $3
	  AND subscription_expires_at IS NOT NULL
	  AND subscription_expires_at < $4
	  AND (subscription_tier <> $1 OR subscription_status <> $2)`,
		subscription.TierFree.String(), string(subscription.StatusExpired), userID, utc(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateSubscription overwrites the subscription state of a user
func (s *SQLStore) UpdateSubscription(ctx context.Context, userID int, u SubscriptionUpdate) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
	SET subscription_tier = $1,
	    subscription_status = $2,
	    subscription_expires_at = $3,
	    stripe_customer_id = COALESCE(NULLIF($4, ''), stripe_customer_id),
	    stripe_subscription_id = COALESCE(NULLIF($5, ''), stripe_subscription_id)
	WHERE id = $6`,
		u.Tier.String(), string(u.Status), nullableTime(u.ExpiresAt),
		u.StripeCustomerID, u.StripeSubscriptionID, userID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireRow(res)
}

// DowngradeAllExpired moves every expired paid subscription to free/expired
// and returns the number of users changed.
func (s *SQLStore) DowngradeAllExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users
	SET subscription_tier = $1, subscription_status = $2
	WHERE subscription_expires_at IS NOT NULL
	  AND subscription_expires_at < $3
	  AND (subscription_tier <> $1 OR subscription_status <> $2)`,
		subscription.TierFree.String(), string(subscription.StatusExpired), utc(now))
	if err != nil {
		return 0, fmt.Errorf("failed to downgrade expired subscriptions: %w", err)
	}
	return res.RowsAffected()
}
