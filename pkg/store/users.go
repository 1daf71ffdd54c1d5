package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

const userColumns = `id, email, username, password_hash, subscription_tier, subscription_status,
	subscription_expires_at, stripe_customer_id, stripe_subscription_id, last_login_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		tier      string
		status    string
		expiresAt sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &tier, &status,
		&expiresAt, &u.StripeCustomerID, &u.StripeSubscriptionID, &lastLogin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewUserNotFoundError()
	}
	if err != nil {
		return nil, err
	}
	snap := subscription.NewSnapshot(tier, subscription.Status(status), nil)
	u.SubscriptionTier = snap.Tier
	u.SubscriptionTierName = snap.TierName
	u.SubscriptionStatus = subscription.Status(status)
	u.SubscriptionExpiresAt = timePtr(expiresAt)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

// CreateUser inserts u and sets its ID. A zero CreatedAt defaults to now,
// an empty status to active.
func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC().Truncate(time.Second)
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = subscription.StatusActive
	}

	err := s.db.QueryRowContext(ctx, `INSERT INTO users
	(email, username, password_hash, subscription_tier, subscription_status,
	 subscription_expires_at, stripe_customer_id, stripe_subscription_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		u.Email, u.Username, u.PasswordHash, u.Subscription().Name(), string(u.SubscriptionStatus),
		nullableTime(u.SubscriptionExpiresAt), u.StripeCustomerID, u.StripeSubscriptionID, utc(u.CreatedAt),
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID loads a user by primary key
func (s *SQLStore) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail loads a user by email address
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByStripeCustomer loads the user linked to a Stripe customer
func (s *SQLStore) GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, domain.NewUserNotFoundError()
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
}

// UpdateLastLogin records the time of the user's latest authenticated request
func (s *SQLStore) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1 WHERE id = $2`, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewUserNotFoundError()
	}
	return nil
}
