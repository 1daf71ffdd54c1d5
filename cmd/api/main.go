package main

// @title ColorBook API
// @version 1.0
// @description Coloring book studio API with tiered subscriptions.

// @contact.name API Support
// @contact.email support@colorbook.app

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/jordanlanch/colorbook/config"
	_ "github.com/jordanlanch/colorbook/docs" // Swagger docs (generated)
	"github.com/jordanlanch/colorbook/pkg/api"
	"github.com/jordanlanch/colorbook/pkg/auth"
	"github.com/jordanlanch/colorbook/pkg/billing"
	"github.com/jordanlanch/colorbook/pkg/cache"
	"github.com/jordanlanch/colorbook/pkg/database"
	"github.com/jordanlanch/colorbook/pkg/jobs"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/metrics"
	custommiddleware "github.com/jordanlanch/colorbook/pkg/middleware"
	"github.com/jordanlanch/colorbook/pkg/secrets"
	"github.com/jordanlanch/colorbook/pkg/store"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "colorbook-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// .env may select the secrets backend, so it is read before anything else
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	// Credentials come from the environment or AWS Secrets Manager
	bootLog := logger.New(os.Getenv("LOG_LEVEL"))
	sm, err := secrets.NewManager(secrets.ConfigFromEnv(), bootLog)
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.LoadWithSecrets(ctx, sm)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Database
	db, err := database.NewClient(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	sqlStore := store.New(db.DB)

	// Redis is optional; without it tokens cannot be revoked
	var (
		redisClient *cache.Client
		blacklist   *auth.TokenBlacklist
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		blacklist = auth.NewTokenBlacklist(redisClient)
	} else {
		log.Warn("REDIS_URL not set, token revocation disabled")
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	subs := subscription.NewService(sqlStore, subscription.WithLogger(log))

	deps := api.Deps{
		DB:            db,
		Store:         sqlStore,
		Cache:         redisClient,
		Blacklist:     blacklist,
		Tokens:        tokens,
		Subscriptions: subs,
		Metrics:       m,
		Logger:        log,
		Gatherer:      prometheus.DefaultGatherer,
		UpgradeURL:    cfg.UpgradeURL(),
		ManageURL:     cfg.ManageURL(),
		WebhookSecret: cfg.StripeWebhookSecret,
	}
	if cfg.StripeSecretKey != "" {
		deps.Billing = billing.NewService(sqlStore, billing.Config{
			SecretKey:       cfg.StripeSecretKey,
			PricePro:        cfg.StripePricePro,
			PriceEnterprise: cfg.StripePriceEnterprise,
		}, log)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, billing routes disabled")
	}

	if cfg.RateLimitEnabled {
		limiter := custommiddleware.NewTierRateLimiter()
		defer limiter.Stop()
		deps.RateLimiter = limiter
	}

	var cronManager *jobs.CronManager
	if cfg.ExpirySweepSchedule != "" {
		cronManager = jobs.NewCronManager(sqlStore, log)
		if err := cronManager.SetupJobs(cfg.ExpirySweepSchedule); err != nil {
			return err
		}
		cronManager.Start()
	}

	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Recover handles the panic after capture
		}))
	}
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.FrontendURL)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))

	api.RegisterRoutes(e, deps)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("colorbook api starting", "address", address, "access_ttl", cfg.AccessTokenTTL.String())

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if cronManager != nil {
		cronManager.Stop(shutdownCtx)
	}

	log.Info("server gracefully stopped")
	return nil
}
