package models

import (
	"time"

	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// User is an account as stored in the users table
type User struct {
	ID                    int                 `json:"id"`
	Email                 string              `json:"email"`
	Username              string              `json:"username"`
	PasswordHash          string              `json:"-"`
	SubscriptionTier      subscription.Tier   `json:"subscriptionTier"`
	SubscriptionTierName  string              `json:"-"` // set only for unknown stored tiers
	SubscriptionStatus    subscription.Status `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time          `json:"subscriptionExpiresAt"`
	StripeCustomerID      string              `json:"-"`
	StripeSubscriptionID  string              `json:"-"`
	LastLoginAt           *time.Time          `json:"lastLoginAt"`
	CreatedAt             time.Time           `json:"createdAt"`
}

// HasActiveSubscription reports whether the stored status is active.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionStatus == subscription.StatusActive
}

// Subscription returns the user's stored subscription state.
func (u *User) Subscription() subscription.Snapshot {
	return subscription.Snapshot{
		Tier:      u.SubscriptionTier,
		TierName:  u.SubscriptionTierName,
		Status:    u.SubscriptionStatus,
		ExpiresAt: u.SubscriptionExpiresAt,
	}
}

// Resource is a user-owned record counted against a quota (a project,
// story, generated image or export).
type Resource struct {
	ID        int                   `json:"id"`
	UserID    int                   `json:"userId"`
	Kind      subscription.Resource `json:"kind"`
	Title     string                `json:"title"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ResourceListResponse is a paginated list of resources
type ResourceListResponse struct {
	Data       []Resource     `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPaginationInfo derives pagination metadata from a page request and total
func NewPaginationInfo(page, limit, total int) PaginationInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PaginationInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// SubscriptionResponse is the body of GET /subscription
type SubscriptionResponse struct {
	Subscription subscription.Snapshot `json:"subscription"`
	Usage        []subscription.Usage  `json:"usage"`
}
