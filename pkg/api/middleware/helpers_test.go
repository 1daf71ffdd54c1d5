package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/store/storetest"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

const (
	testSecret     = "test-secret-key-for-middleware"
	testUpgradeURL = "http://localhost:3000/pricing"
	testManageURL  = "http://localhost:3000/account/billing"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	store   *store.SQLStore
	tokens  *auth.TokenService
	subs    *subscription.Service
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.Open(t)
	clock := func() time.Time { return testNow }

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: testSecret}, auth.WithClock(clock))
	require.NoError(t, err)

	return &fixture{
		t:       t,
		store:   s,
		tokens:  tokens,
		subs:    subscription.NewService(s, subscription.WithClock(clock)),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
}

func (f *fixture) authConfig() AuthConfig {
	return AuthConfig{
		Tokens:  f.tokens,
		Users:   f.store,
		Metrics: f.metrics,
		Now:     func() time.Time { return testNow },
	}
}

func (f *fixture) gateConfig() GateConfig {
	return GateConfig{
		Subscriptions: f.subs,
		Metrics:       f.metrics,
		UpgradeURL:    testUpgradeURL,
		ManageURL:     testManageURL,
	}
}

func (f *fixture) user(opts ...storetest.UserOption) *models.User {
	f.t.Helper()
	return storetest.CreateUser(f.t, f.store, opts...)
}

func (f *fixture) accessToken(userID int) string {
	f.t.Helper()
	token, err := f.tokens.IssueAccessToken(userID)
	require.NoError(f.t, err)
	return token
}

// asUser stands in for Authenticate by loading the user straight from the store.
func (f *fixture) asUser(userID int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := f.store.GetUserByID(c.Request().Context(), userID)
			if err != nil {
				c.Set(ContextKeyUserID, userID)
				return next(c)
			}
			setUser(c, user, "")
			return next(c)
		}
	}
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// serve routes a single request through mws to handler.
func serve(t *testing.T, req *http.Request, handler echo.HandlerFunc, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Any("/test", handler, mws...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func get(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
