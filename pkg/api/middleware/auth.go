package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
)

const defaultLastLoginTimeout = 5 * time.Second

// UserStore is the user lookup needed for authentication
type UserStore interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
}

// AuthConfig configures Authenticate and OptionalAuth
type AuthConfig struct {
	Tokens *auth.TokenService
	// Blacklist is optional; when set, revoked tokens are rejected.
	Blacklist *auth.TokenBlacklist
	Users     UserStore
	Logger    logger.Logger
	Metrics   *metrics.Metrics

	Now              func() time.Time
	LastLoginTimeout time.Duration
}

func (cfg AuthConfig) withDefaults() AuthConfig {
	if cfg.Tokens == nil || cfg.Users == nil {
		panic("middleware: auth requires a token service and a user store")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LastLoginTimeout <= 0 {
		cfg.LastLoginTimeout = defaultLastLoginTimeout
	}
	return cfg
}

// errRevoked is reported as an invalid token to the client
var errRevoked = errors.New("token has been revoked")

// Authenticate requires a valid access token for an existing user and
// attaches that user to the request context.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request())
			if !ok {
				cfg.Metrics.RecordRejection("auth", domain.ErrCodeAuthMissing)
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   domain.ErrCodeAuthMissing,
					Message: "Authorization header must be 'Bearer {token}'",
				})
			}

			ctx := c.Request().Context()

			claims, err := cfg.verify(ctx, token)
			if err != nil {
				if domain.IsInvalidToken(err) || errors.Is(err, errRevoked) {
					return rejectInvalidToken(c, cfg.Metrics)
				}
				return apierrors.InternalError(c, cfg.Logger, err)
			}
			if claims.Kind != auth.KindAccess {
				return rejectInvalidToken(c, cfg.Metrics)
			}

			user, err := cfg.Users.GetUserByID(ctx, claims.UserID)
			if err != nil {
				if domain.IsNotFound(err) {
					cfg.Metrics.RecordRejection("auth", domain.ErrCodeUserNotFound)
					return c.JSON(http.StatusForbidden, models.ErrorResponse{
						Error:   domain.ErrCodeUserNotFound,
						Message: "User account not found",
					})
				}
				return apierrors.InternalError(c, cfg.Logger, err)
			}

			setUser(c, user, token)
			cfg.touchLastLogin(ctx, user.ID)

			return next(c)
		}
	}
}

// OptionalAuth attaches the user when the request carries a valid access
// token and otherwise continues anonymously. It never rejects.
func OptionalAuth(cfg AuthConfig) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request())
			if !ok {
				return next(c)
			}

			ctx := c.Request().Context()

			claims, err := cfg.verify(ctx, token)
			if err != nil || claims.Kind != auth.KindAccess {
				return next(c)
			}

			user, err := cfg.Users.GetUserByID(ctx, claims.UserID)
			if err != nil {
				if !domain.IsNotFound(err) {
					cfg.Logger.Warn("optional auth lookup failed", "user_id", claims.UserID, "error", err)
				}
				return next(c)
			}

			setUser(c, user, token)
			return next(c)
		}
	}
}

func (cfg AuthConfig) verify(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := cfg.Tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if cfg.Blacklist != nil {
		revoked, err := cfg.Blacklist.IsBlacklisted(ctx, token)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errRevoked
		}
	}

	return claims, nil
}

// touchLastLogin records the login time without holding up the request.
// Failures are logged only.
func (cfg AuthConfig) touchLastLogin(parent context.Context, userID int) {
	at := cfg.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), cfg.LastLoginTimeout)
		defer cancel()

		if err := cfg.Users.UpdateLastLogin(ctx, userID, at); err != nil {
			cfg.Logger.Warn("failed to update last login", "user_id", userID, "error", err)
		}
	}()
}

func rejectInvalidToken(c echo.Context, m *metrics.Metrics) error {
	m.RecordRejection("auth", domain.ErrCodeAuthInvalid)
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   domain.ErrCodeAuthInvalid,
		Message: "Invalid or expired token",
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
