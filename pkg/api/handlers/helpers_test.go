package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/cache"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/store/storetest"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

const testPassword = "correct horse battery staple"

// testEnv is an in-memory store, a Redis-backed blacklist and the services
// the handlers run on.
type testEnv struct {
	t         *testing.T
	store     *store.SQLStore
	tokens    *auth.TokenService
	blacklist *auth.TokenBlacklist
	redis     *miniredis.Miniredis
	cache     *cache.Client
	subs      *subscription.Service
	metrics   *metrics.Metrics
	echo      *echo.Echo
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := cache.NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "handler-test-secret"})
	require.NoError(t, err)

	s := storetest.Open(t)
	return &testEnv{
		t:         t,
		store:     s,
		tokens:    tokens,
		blacklist: auth.NewTokenBlacklist(c),
		redis:     mr,
		cache:     c,
		subs:      subscription.NewService(s),
		metrics:   metrics.New(prometheus.NewRegistry()),
		echo:      echo.New(),
	}
}

func (env *testEnv) authenticate() echo.MiddlewareFunc {
	return middleware.Authenticate(middleware.AuthConfig{
		Tokens:    env.tokens,
		Blacklist: env.blacklist,
		Users:     env.store,
		Metrics:   env.metrics,
	})
}

func (env *testEnv) gate() middleware.GateConfig {
	return middleware.GateConfig{
		Subscriptions: env.subs,
		Metrics:       env.metrics,
		UpgradeURL:    "http://localhost:3000/pricing",
		ManageURL:     "http://localhost:3000/account/billing",
	}
}

// createUser stores a user whose password is testPassword.
func (env *testEnv) createUser(opts ...storetest.UserOption) *models.User {
	env.t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(env.t, err)
	return storetest.CreateUser(env.t, env.store, append([]storetest.UserOption{storetest.WithPasswordHash(hash)}, opts...)...)
}

func (env *testEnv) accessToken(userID int) string {
	env.t.Helper()
	token, err := env.tokens.IssueAccessToken(userID)
	require.NoError(env.t, err)
	return token
}

func (env *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	env.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[models.ErrorResponse](t, rec).Error
}
