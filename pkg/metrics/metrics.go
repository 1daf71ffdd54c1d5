package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Gate metrics
	GateRejections         *prometheus.CounterVec
	SubscriptionDowngrades prometheus.Counter
	UsageChecks            *prometheus.CounterVec

	// Auth and billing metrics
	TokensIssued  *prometheus.CounterVec
	LoginAttempts *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		GateRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_rejections_total",
				Help: "Requests rejected by auth, subscription, usage or signature gates",
			},
			[]string{"gate", "reason"},
		),
		SubscriptionDowngrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "subscription_downgrades_total",
			Help: "Expired subscriptions downgraded to free on access",
		}),
		UsageChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usage_checks_total",
				Help: "Usage quota checks by feature and outcome",
			},
			[]string{"feature", "outcome"}, // allowed, exceeded, unlimited
		),

		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_issued_total",
				Help: "Signed tokens issued",
			},
			[]string{"kind"}, // access, refresh
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Verified Stripe webhook events by type",
			},
			[]string{"type"},
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			req := c.Request()

			err := next(c)

			// Route pattern, not the raw path (e.g. /api/v1/projects/:id)
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordRejection counts a request stopped by a gate
func (m *Metrics) RecordRejection(gate, reason string) {
	if m == nil {
		return
	}
	m.GateRejections.WithLabelValues(gate, reason).Inc()
}

// RecordDowngrade counts a lazy expiry downgrade
func (m *Metrics) RecordDowngrade() {
	if m == nil {
		return
	}
	m.SubscriptionDowngrades.Inc()
}

// RecordUsageCheck counts a quota check outcome
func (m *Metrics) RecordUsageCheck(feature, outcome string) {
	if m == nil {
		return
	}
	m.UsageChecks.WithLabelValues(feature, outcome).Inc()
}

// RecordTokenIssued increments issued tokens by kind
func (m *Metrics) RecordTokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordWebhookEvent counts a verified webhook event
func (m *Metrics) RecordWebhookEvent(eventType string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType).Inc()
}
