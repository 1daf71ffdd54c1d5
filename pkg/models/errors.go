package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FieldError describes one failing field of a validated request
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// ValidationErrorResponse lists every failing field of a request
type ValidationErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"details"`
}

// TierErrorResponse is returned when the user's tier is below the required one
type TierErrorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	CurrentTier  string `json:"currentTier"`
	RequiredTier string `json:"requiredTier"`
	UpgradeURL   string `json:"upgradeUrl"`
}

// SubscriptionInactiveResponse is returned when a paid tier is not actively billed
type SubscriptionInactiveResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	ManageURL string `json:"manageUrl"`
}

// UsageLimitResponse is returned when a quota is exhausted. ResetDate is
// null for features that never reset.
type UsageLimitResponse struct {
	Error        string  `json:"error"`
	Message      string  `json:"message"`
	CurrentUsage int     `json:"currentUsage"`
	Limit        int     `json:"limit"`
	Tier         string  `json:"tier"`
	UpgradeURL   string  `json:"upgradeUrl"`
	ResetDate    *string `json:"resetDate"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
