package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clock *testClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: testSecret}, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)
	assert.Nil(t, svc)
}

func TestNewTokenService_DefaultTTLs(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, DefaultAccessTTL, svc.accessTTL)
	assert.Equal(t, DefaultRefreshTTL, svc.refreshTTL)
}

func TestIssueAccessToken_RoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	for _, userID := range []int{1, 42, 987654} {
		token, err := svc.IssueAccessToken(userID)
		require.NoError(t, err)

		claims, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, KindAccess, claims.Kind)
	}
}

func TestIssueAccessToken_ExpiresAfterSevenDays(t *testing.T) {
	issuedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := &testClock{now: issuedAt}
	svc := newTestService(t, clock)

	token, err := svc.IssueAccessToken(7)
	require.NoError(t, err)

	clock.now = issuedAt.Add(7*24*time.Hour - time.Second)
	_, err = svc.Verify(token)
	assert.NoError(t, err, "token should be valid just before expiry")

	clock.now = issuedAt.Add(7*24*time.Hour + time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueAccessToken_ConfiguredTTL(t *testing.T) {
	issuedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := &testClock{now: issuedAt}
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, AccessTTL: time.Hour}, WithClock(clock.Now))
	require.NoError(t, err)

	token, err := svc.IssueAccessToken(7)
	require.NoError(t, err)

	clock.now = issuedAt.Add(61 * time.Minute)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRefreshToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := &testClock{now: issuedAt}
	svc := newTestService(t, clock)

	token, err := svc.IssueRefreshToken(3)
	require.NoError(t, err)

	clock.now = issuedAt.Add(29 * 24 * time.Hour)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, claims.Kind)
	assert.Equal(t, 3, claims.UserID)

	clock.now = issuedAt.Add(31 * 24 * time.Hour)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueTokenPair(t *testing.T) {
	issuedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &testClock{now: issuedAt})

	pair, err := svc.IssueTokenPair(11)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(DefaultAccessTTL), pair.AccessExpiresAt)

	access, err := svc.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, KindAccess, access.Kind)

	refresh, err := svc.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, refresh.Kind)
}

func TestIssue_UniqueWithinSameSecond(t *testing.T) {
	svc := newTestService(t, &testClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)})

	first, err := svc.IssueRefreshToken(5)
	require.NoError(t, err)
	second, err := svc.IssueRefreshToken(5)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	claims, err := svc.Verify(first)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}

func TestVerify_Failures(t *testing.T) {
	clock := &testClock{now: time.Now()}
	svc := newTestService(t, clock)

	other, err := NewTokenService(TokenConfig{Secret: "wrong-secret-key-minimum-32-characters-long"}, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.IssueAccessToken(1)
	require.NoError(t, err)

	unknownKind := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		Kind:   "session",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	})
	unknownKindToken, err := unknownKind.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1, Kind: KindAccess})
	noExpiryToken, err := noExpiry.SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongAlg := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		UserID: 1,
		Kind:   KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	})
	wrongAlgToken, err := wrongAlg.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"malformed":    "invalid.token.here",
		"wrong secret": foreign,
		"unknown kind": unknownKindToken,
		"no expiry":    noExpiryToken,
		"wrong alg":    wrongAlgToken,
		"garbage":      "Bearer something",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := svc.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestRemainingTTL(t *testing.T) {
	issuedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := &testClock{now: issuedAt}
	svc := newTestService(t, clock)

	token, err := svc.IssueAccessToken(1)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)

	clock.now = issuedAt.Add(24 * time.Hour)
	assert.Equal(t, 6*24*time.Hour, svc.RemainingTTL(claims))

	clock.now = issuedAt.Add(8 * 24 * time.Hour)
	assert.Zero(t, svc.RemainingTTL(claims))
}
