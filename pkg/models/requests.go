package models

import "strings"

// Defaulter is implemented by request schemas that fill in or normalize
// values after binding and before validation.
type Defaulter interface {
	ApplyDefaults()
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ApplyDefaults normalizes the email address.
func (r *LoginRequest) ApplyDefaults() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// RefreshRequest exchanges a refresh token for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	User         *User  `json:"user"`
}

// CheckoutRequest starts a Stripe checkout for a price
type CheckoutRequest struct {
	PriceID    string `json:"priceId" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
}

// CheckoutResponse represents a checkout session response
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateResourceRequest creates a project, story, image or export
type CreateResourceRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

// ApplyDefaults trims the title.
func (r *CreateResourceRequest) ApplyDefaults() {
	r.Title = strings.TrimSpace(r.Title)
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PaginationQuery holds list query parameters
type PaginationQuery struct {
	Page  int    `query:"page" json:"page" validate:"min=1"`
	Limit int    `query:"limit" json:"limit" validate:"min=1,max=100"`
	Sort  string `query:"sort" json:"sort" validate:"oneof=created_at updated_at title"`
	Order string `query:"order" json:"order" validate:"oneof=asc desc"`
}

// ApplyDefaults fills page/limit/sort/order and clamps limit to [1, MaxLimit].
// A negative page is left for validation to reject.
func (q *PaginationQuery) ApplyDefaults() {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultLimit
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Sort == "" {
		q.Sort = "created_at"
	}
	q.Order = strings.ToLower(q.Order)
	if q.Order == "" {
		q.Order = "desc"
	}
}

// Offset returns the row offset of the requested page
func (q PaginationQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ResourceParams binds the :id path parameter
type ResourceParams struct {
	ID int `param:"id" json:"id" validate:"required,min=1"`
}
