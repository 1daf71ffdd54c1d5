package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jordanlanch/colorbook/pkg/domain"
)

const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// ErrMissingSecret is returned when the token service has no signing secret.
var ErrMissingSecret = errors.New("token signing secret is not set")

// ErrInvalidToken is returned for every token that fails verification,
// whatever the reason (expired, malformed, bad signature, unknown kind).
var ErrInvalidToken = domain.NewInvalidTokenError()

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims represents JWT claims
type Claims struct {
	UserID int       `json:"userId"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is what login and refresh hand back to clients
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// TokenService issues and verifies HS256 bearer tokens
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures a TokenService
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a token service. It fails when cfg has no secret.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	s := &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccessToken issues an access token for userID
func (s *TokenService) IssueAccessToken(userID int) (string, error) {
	token, _, err := s.issue(userID, KindAccess, s.accessTTL)
	return token, err
}

// IssueRefreshToken issues a refresh token for userID
func (s *TokenService) IssueRefreshToken(userID int) (string, error) {
	token, _, err := s.issue(userID, KindRefresh, s.refreshTTL)
	return token, err
}

// IssueTokenPair issues an access and a refresh token for userID
func (s *TokenService) IssueTokenPair(userID int) (*TokenPair, error) {
	access, expiresAt, err := s.issue(userID, KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.issue(userID, KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: expiresAt,
	}, nil
}

func (s *TokenService) issue(userID int, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates a token and returns its claims. Any failure yields
// ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 || (claims.Kind != KindAccess && claims.Kind != KindRefresh) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RemainingTTL returns how long claims stay valid, or zero if already expired.
func (s *TokenService) RemainingTTL(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return max(claims.ExpiresAt.Sub(s.now()), 0)
}
