package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName         = "VizionCore"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultProviderTimeout = 30 * time.Second
	defaultWebhookTimeout  = 10 * time.Second
	defaultWebhookAttempts = 3
	defaultWebhookBackoff  = 2 * time.Second
	defaultSettlementTick  = time.Hour
	defaultCurrencies      = "XCD,USD"
	defaultFeePct          = "0.029"
	defaultPlatformFeePct  = "0.005"
	defaultPaymentsPerMin  = 60
	defaultPlatformOwner   = "platform"
	defaultDBMaxConns      = 8
	defaultRedisDial       = 2 * time.Second

	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AdminKey       string

	// Connection tuning for the backing stores.
	DatabaseMaxConns int
	RedisDialTimeout time.Duration

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Payment core settings. Fee rates are read once at startup; transactions
	// snapshot them at creation time.
	SupportedCurrencies []string
	FeePct              decimal.Decimal
	PlatformFeePct      decimal.Decimal
	ProviderTimeout     time.Duration
	PaymentsPerMinute   int

	// PlatformOwnerID identifies the wallet that receives payouts before
	// external disbursement.
	PlatformOwnerID string

	// Webhook delivery policy.
	WebhookTimeout  time.Duration
	WebhookAttempts int
	WebhookBackoff  time.Duration

	// Settlement batch cadence.
	SettlementInterval time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		AdminKey:           os.Getenv("ADMIN_API_KEY"),
		DatabaseMaxConns:   defaultDBMaxConns,
		RedisDialTimeout:   defaultRedisDial,
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		ProviderTimeout:    defaultProviderTimeout,
		PaymentsPerMinute:  defaultPaymentsPerMin,
		PlatformOwnerID:    getEnv("PLATFORM_OWNER_ID", defaultPlatformOwner),
		WebhookTimeout:     defaultWebhookTimeout,
		WebhookAttempts:    defaultWebhookAttempts,
		WebhookBackoff:     defaultWebhookBackoff,
		SettlementInterval: defaultSettlementTick,
	}

	for _, c := range strings.Split(getEnv("SUPPORTED_CURRENCIES", defaultCurrencies), ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			cfg.SupportedCurrencies = append(cfg.SupportedCurrencies, c)
		}
	}

	var err error
	if cfg.FeePct, err = parsePct("FEE_PCT", defaultFeePct); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePct, err = parsePct("PLATFORM_FEE_PCT", defaultPlatformFeePct); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", cfg.ProviderTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WebhookTimeout, err = parseDuration("WEBHOOK_TIMEOUT", cfg.WebhookTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WebhookBackoff, err = parseDuration("WEBHOOK_BACKOFF", cfg.WebhookBackoff); err != nil {
		return Config{}, err
	}
	if cfg.SettlementInterval, err = parseDuration("SETTLEMENT_INTERVAL", cfg.SettlementInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("WEBHOOK_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid WEBHOOK_ATTEMPTS: %q", v)
		}
		cfg.WebhookAttempts = n
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNS: %q", v)
		}
		cfg.DatabaseMaxConns = n
	}
	if cfg.RedisDialTimeout, err = parseDuration("REDIS_DIAL_TIMEOUT", cfg.RedisDialTimeout); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("PAYMENTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid PAYMENTS_PER_MINUTE: %q", v)
		}
		cfg.PaymentsPerMinute = n
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.AdminKey == "" {
			return Config{}, fmt.Errorf("ADMIN_API_KEY must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the environment allows in-memory fallbacks.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func parsePct(key, fallback string) (decimal.Decimal, error) {
	raw := getEnv(key, fallback)
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("%s must be within [0, 1], got %s", key, raw)
	}
	return pct, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
