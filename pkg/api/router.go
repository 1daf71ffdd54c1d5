// Package api wires the handlers and access-control middleware into routes.
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/colorbook/pkg/api/handlers"
	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/cache"
	"github.com/jordanlanch/colorbook/pkg/database"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	custommiddleware "github.com/jordanlanch/colorbook/pkg/middleware"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// Deps are the services the routes run on
type Deps struct {
	DB    *database.Client
	Store *store.SQLStore
	// Cache and Blacklist are nil when Redis is not configured.
	Cache     *cache.Client
	Blacklist *auth.TokenBlacklist

	Tokens        *auth.TokenService
	Subscriptions *subscription.Service
	Billing       handlers.BillingService
	Metrics       *metrics.Metrics
	Logger        logger.Logger

	// RateLimiter is optional.
	RateLimiter *custommiddleware.TierRateLimiter

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	UpgradeURL    string
	ManageURL     string
	WebhookSecret string
}

// meteredResources are the quota-counted record kinds and the feature each
// creation counts against.
var meteredResources = []struct {
	path     string
	resource subscription.Resource
	feature  subscription.Feature
}{
	{"/projects", subscription.ResourceProjects, subscription.FeatureProjects},
	{"/stories", subscription.ResourceStories, subscription.FeatureStoriesPerMonth},
	{"/images", subscription.ResourceImages, subscription.FeatureImagesPerMonth},
	{"/exports", subscription.ResourceExports, subscription.FeatureExportsPerMonth},
}

// RegisterRoutes mounts the health, metrics and /api/v1 routes on e
func RegisterRoutes(e *echo.Echo, d Deps) {
	log := d.Logger
	if log == nil {
		log = logger.Discard()
	}

	authCfg := middleware.AuthConfig{
		Tokens:    d.Tokens,
		Blacklist: d.Blacklist,
		Users:     d.Store,
		Logger:    log,
		Metrics:   d.Metrics,
	}
	gate := middleware.GateConfig{
		Subscriptions: d.Subscriptions,
		Logger:        log,
		Metrics:       d.Metrics,
		UpgradeURL:    d.UpgradeURL,
		ManageURL:     d.ManageURL,
	}

	var cachePinger handlers.Pinger
	if d.Cache != nil {
		cachePinger = d.Cache
	}
	health := handlers.NewHealthHandler(d.DB, cachePinger)
	e.GET("/health", health.Check)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/api/v1")
	v1.GET("/ping", handlers.Ping, middleware.OptionalAuth(authCfg))

	// Public auth routes
	authHandler := handlers.NewAuthHandler(d.Store, d.Tokens, d.Blacklist, log, d.Metrics)
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login, middleware.Validate[models.LoginRequest](middleware.SourceBody))
	authGroup.POST("/refresh", authHandler.Refresh, middleware.Validate[models.RefreshRequest](middleware.SourceBody))

	// Stripe calls this without a bearer token
	billingHandler := handlers.NewBillingHandler(d.Billing, log)
	if d.WebhookSecret != "" && d.Billing != nil {
		v1.POST("/webhooks/stripe", billingHandler.Webhook,
			middleware.RequireStripeSignature(d.WebhookSecret, log, d.Metrics))
	} else {
		log.Warn("stripe webhook disabled: STRIPE_WEBHOOK_SECRET not set")
	}

	// Everything below requires an access token. The filters are mounted
	// per route: a prefix-less group with middleware would answer unknown
	// /api/v1 paths with 401 instead of 404.
	authenticated := []echo.MiddlewareFunc{middleware.Authenticate(authCfg)}
	if d.RateLimiter != nil {
		authenticated = append(authenticated, d.RateLimiter.Middleware())
	}
	protect := func(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		return append(append([]echo.MiddlewareFunc{}, authenticated...), mws...)
	}

	authGroup.GET("/me", authHandler.Me, protect()...)
	authGroup.POST("/logout", authHandler.Logout, protect()...)

	subsHandler := handlers.NewSubscriptionHandler(d.Subscriptions, log)
	v1.GET("/subscription", subsHandler.Get, protect(middleware.SubscriptionStatus(gate))...)

	if d.Billing != nil {
		v1.POST("/billing/checkout", billingHandler.Checkout,
			protect(middleware.Validate[models.CheckoutRequest](middleware.SourceBody))...)
	}

	resources := handlers.NewResourceHandler(d.Store, log)
	for _, m := range meteredResources {
		v1.POST(m.path, resources.Create(m.resource), protect(
			middleware.SubscriptionStatus(gate),
			middleware.CheckUsage(gate, string(m.feature)),
			middleware.Validate[models.CreateResourceRequest](middleware.SourceBody),
		)...)
		v1.GET(m.path, resources.List(m.resource),
			protect(middleware.Validate[models.PaginationQuery](middleware.SourceQuery))...)
	}

	// High-resolution export download is a paid feature
	v1.GET("/exports/:id/hd", resources.Get(subscription.ResourceExports), protect(
		middleware.RequireTier(gate, "pro"),
		middleware.Validate[models.ResourceParams](middleware.SourceParams),
	)...)

	enterprise := v1.Group("/enterprise", protect(middleware.RequireTier(gate, "enterprise"))...)
	enterprise.GET("/usage", subsHandler.Get)
	for _, m := range meteredResources {
		enterprise.GET(m.path+"/:id", resources.Get(m.resource),
			middleware.Validate[models.ResourceParams](middleware.SourceParams),
		)
	}
}
