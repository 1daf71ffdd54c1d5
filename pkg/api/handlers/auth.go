package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
)

const requestTimeout = 5 * time.Second

// UserStore is the user persistence the auth handler needs
type UserStore interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users     UserStore
	tokens    *auth.TokenService
	blacklist *auth.TokenBlacklist
	logger    logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewAuthHandler creates a new auth handler. blacklist may be nil, in which
// case logout and refresh cannot revoke tokens.
func NewAuthHandler(users UserStore, tokens *auth.TokenService, blacklist *auth.TokenBlacklist, log logger.Logger, m *metrics.Metrics) *AuthHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AuthHandler{
		users:     users,
		tokens:    tokens,
		blacklist: blacklist,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Login godoc
// @Summary Login user
// @Description Authenticate user with email and password, returns an access and a refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.AuthResponse "Login successful"
// @Failure 400 {object} models.ValidationErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	req, ok := middleware.ValidatedBody[models.LoginRequest](c)
	if !ok {
		return errors.InternalError(c, h.logger, errMissingValidation)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			h.metrics.RecordLoginAttempt(false)
			return errors.FromDomain(c, h.logger, domain.NewInvalidCredentialsError())
		}
		return errors.InternalError(c, h.logger, err)
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.metrics.RecordLoginAttempt(false)
		return errors.FromDomain(c, h.logger, domain.NewInvalidCredentialsError())
	}

	pair, err := h.tokens.IssueTokenPair(u.ID)
	if err != nil {
		return errors.InternalError(c, h.logger, err)
	}
	h.metrics.RecordLoginAttempt(true)
	h.metrics.RecordTokenIssued(string(auth.KindAccess))
	h.metrics.RecordTokenIssued(string(auth.KindRefresh))

	now := h.now().UTC()
	if err := h.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		// Login still succeeds
		h.logger.Warn("failed to update last login", "user_id", u.ID, "error", err)
	} else {
		u.LastLoginAt = &now
	}

	h.logger.Info("user logged in", "user_id", u.ID)

	return c.JSON(http.StatusOK, models.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt.Unix(),
		User:         u,
	})
}

// Refresh godoc
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair. The old refresh token is revoked.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.AuthResponse
// @Failure 403 {object} models.ErrorResponse "Invalid or revoked refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	req, ok := middleware.ValidatedBody[models.RefreshRequest](c)
	if !ok {
		return errors.InternalError(c, h.logger, errMissingValidation)
	}

	claims, err := h.tokens.Verify(req.RefreshToken)
	if err != nil || claims.Kind != auth.KindRefresh {
		return errors.Respond(c, domain.ErrCodeAuthInvalid, "Invalid or expired refresh token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	// Rotation: the presented refresh token is consumed before new tokens
	// are issued, so concurrent reuse yields a single new pair.
	if h.blacklist != nil {
		claimed, err := h.blacklist.Revoke(ctx, req.RefreshToken, h.tokens.RemainingTTL(claims))
		if err != nil {
			return errors.InternalError(c, h.logger, err)
		}
		if !claimed {
			return errors.Respond(c, domain.ErrCodeAuthInvalid, "Invalid or expired refresh token")
		}
	}

	u, err := h.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return errors.FromDomain(c, h.logger, err)
	}

	pair, err := h.tokens.IssueTokenPair(u.ID)
	if err != nil {
		return errors.InternalError(c, h.logger, err)
	}
	h.metrics.RecordTokenIssued(string(auth.KindAccess))
	h.metrics.RecordTokenIssued(string(auth.KindRefresh))

	return c.JSON(http.StatusOK, models.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt.Unix(),
		User:         u,
	})
}

// Me godoc
// @Summary Current user
// @Description The authenticated account with its stored subscription fields
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse "Missing, invalid or revoked token"
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.UserFromContext(c)
	if !ok {
		return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
	}
	return c.JSON(http.StatusOK, u)
}

// Logout godoc
// @Summary Logout user
// @Description Revoke the access token of the request until it expires
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse "Missing, invalid or revoked token"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := middleware.TokenFromContext(c)
	if !ok {
		return errors.Respond(c, domain.ErrCodeAuthMissing, "No token found in request")
	}

	if h.blacklist != nil {
		claims, err := h.tokens.Verify(token)
		if err != nil {
			return errors.Respond(c, domain.ErrCodeAuthInvalid, "Invalid or expired token")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		// TTL matches the token's remaining lifetime
		if err := h.blacklist.Add(ctx, token, h.tokens.RemainingTTL(claims)); err != nil {
			return errors.InternalError(c, h.logger, err)
		}
	}

	if userID, ok := middleware.UserIDFromContext(c); ok {
		h.logger.Info("user logged out", "user_id", userID)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Successfully logged out",
	})
}
