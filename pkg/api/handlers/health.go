package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/api/middleware"
)

// Pinger is a dependency whose liveness the health check reports
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database and cache status
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a health handler. cache may be nil when Redis
// is not configured.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Check answers GET /health, outside the /api/v1 base path, with 200 when
// every configured dependency responds and 503 otherwise.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{
		"status":   "healthy",
		"database": "healthy",
		"cache":    "disabled",
	}

	if err := h.db.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["database"] = "unhealthy"
	}
	if h.cache != nil {
		body["cache"] = "healthy"
		if err := h.cache.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["cache"] = "unhealthy"
		}
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}

	return c.JSON(status, body)
}

// PingResponse greets the caller, by account when the request is signed in
type PingResponse struct {
	Message string `json:"message"`
	UserID  int    `json:"userId,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Active  bool   `json:"active,omitempty"`
}

// Ping godoc
// @Summary Ping
// @Description Liveness of the API. With a valid access token the response also names the caller and their plan.
// @Tags Health
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PingResponse
// @Router /ping [get]
func Ping(c echo.Context) error {
	resp := PingResponse{Message: "pong"}
	if u, ok := middleware.UserFromContext(c); ok {
		resp.UserID = u.ID
		resp.Tier = u.Subscription().Name()
		resp.Active = middleware.HasActiveSubscription(c)
	}
	return c.JSON(http.StatusOK, resp)
}
