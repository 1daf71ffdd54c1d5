// Package secrets resolves credentials (signing keys, Stripe keys,
// connection strings) from the environment or AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/jordanlanch/colorbook/pkg/logger"
)

// ErrNotFound is returned when a secret does not exist in the backend
var ErrNotFound = errors.New("secret not found")

const (
	BackendEnv = "env"
	BackendAWS = "aws"
)

// Manager defines the interface for secrets management
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)
	// RefreshCache drops cached values so the next read hits the backend
	RefreshCache()
}

// Config holds secrets manager configuration
type Config struct {
	Backend       string
	AWSRegion     string
	CacheDuration time.Duration
	// Prefix is prepended to keys looked up in AWS, e.g. "colorbook/prod/".
	Prefix string

	// AWSEndpoint and AWSCredentials override the SDK defaults. Used in tests.
	AWSEndpoint    string
	AWSCredentials *credentials.Credentials
}

// ConfigFromEnv reads SECRETS_BACKEND, SECRETS_PREFIX and AWS_REGION.
// AWS_SECRETS_MANAGER_ENABLED=true is accepted as an alias for the aws backend.
func ConfigFromEnv() Config {
	cfg := Config{
		Backend:       os.Getenv("SECRETS_BACKEND"),
		AWSRegion:     os.Getenv("AWS_REGION"),
		CacheDuration: 5 * time.Minute,
		Prefix:        os.Getenv("SECRETS_PREFIX"),
	}
	if enabled, _ := strconv.ParseBool(os.Getenv("AWS_SECRETS_MANAGER_ENABLED")); enabled {
		cfg.Backend = BackendAWS
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendEnv
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = "us-east-1"
	}
	return cfg
}

// NewManager creates a secrets manager for cfg.Backend
func NewManager(cfg Config, log logger.Logger) (Manager, error) {
	if log == nil {
		log = logger.Discard()
	}
	switch cfg.Backend {
	case BackendAWS, "aws-secrets-manager":
		log.Info("using AWS Secrets Manager", "region", cfg.AWSRegion, "prefix", cfg.Prefix)
		return NewAWSSecretsManager(cfg, log)
	case BackendEnv, "", "environment":
		return NewEnvironmentManager(), nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
	}
}

// EnvironmentManager loads secrets from environment variables
type EnvironmentManager struct{}

// NewEnvironmentManager creates a new environment-based secrets manager
func NewEnvironmentManager() *EnvironmentManager {
	return &EnvironmentManager{}
}

// GetSecret reads key from the environment. Empty values count as missing.
func (m *EnvironmentManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// RefreshCache is a no-op; the environment is read on every call.
func (m *EnvironmentManager) RefreshCache() {}

// AWSSecretsManager loads secrets from AWS Secrets Manager and caches them
type AWSSecretsManager struct {
	client *secretsmanager.SecretsManager
	config Config
	logger logger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(cfg Config, log logger.Logger) (*AWSSecretsManager, error) {
	if log == nil {
		log = logger.Discard()
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.AWSEndpoint)
	}
	if cfg.AWSCredentials != nil {
		awsCfg.Credentials = cfg.AWSCredentials
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &AWSSecretsManager{
		client: secretsmanager.New(sess),
		config: cfg,
		logger: log,
		now:    time.Now,
		cache:  make(map[string]cachedSecret),
	}, nil
}

// GetSecret retrieves the string value of Prefix+key
func (m *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cached(key); ok {
		return value, nil
	}

	id := m.config.Prefix + key
	result, err := m.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	m.store(key, *result.SecretString)
	m.logger.Debug("loaded secret", "secret_id", id)

	return *result.SecretString, nil
}

// RefreshCache drops every cached value
func (m *AWSSecretsManager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]cachedSecret)
}

func (m *AWSSecretsManager) cached(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cache[key]
	if !ok || m.now().After(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (m *AWSSecretsManager) store(key, value string) {
	if m.config.CacheDuration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cachedSecret{value: value, expiresAt: m.now().Add(m.config.CacheDuration)}
}

// Lookup returns the secret for key, or fallback when the backend does not
// have it. Backend failures other than a missing secret are returned.
func Lookup(ctx context.Context, m Manager, key, fallback string) (string, error) {
	value, err := m.GetSecret(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
