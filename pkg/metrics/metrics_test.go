package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/projects/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/projects/:id", "200"))
	assert.Equal(t, 1.0, count)
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRejection("tier", "insufficient_tier")
	m.RecordRejection("tier", "insufficient_tier")
	m.RecordDowngrade()
	m.RecordUsageCheck("projects", "exceeded")
	m.RecordTokenIssued("access")
	m.RecordLoginAttempt(false)
	m.RecordWebhookEvent("checkout.session.completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateRejections.WithLabelValues("tier", "insufficient_tier")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionDowngrades))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageChecks.WithLabelValues("projects", "exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("checkout.session.completed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRejection("auth", "missing_token")
		m.RecordDowngrade()
		m.RecordUsageCheck("projects", "allowed")
		m.RecordTokenIssued("refresh")
		m.RecordLoginAttempt(true)
		m.RecordWebhookEvent("x")
	})

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
