// Package config loads the settlement engine configuration from environment variables.
// envconfig maps the variables onto the struct fields.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/settlement-engine/internal/common"
)

// Config holds every application setting.
type Config struct {
	// --- Database ---
	// Inside docker-compose the database service is called "postgres".
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"settler"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"numbers"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Postgres lock_timeout for settlement transactions. A lock wait beyond it
	// surfaces as a balance conflict and is retried.
	DBLockTimeout time.Duration `envconfig:"DB_LOCK_TIMEOUT" default:"2s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	// --- Settlement ---
	SettlementWorkers        int           `envconfig:"SETTLEMENT_WORKERS" default:"8"`
	SettlementWagerTimeout   time.Duration `envconfig:"SETTLEMENT_WAGER_TIMEOUT" default:"5s"`
	SettlementRetryAttempts  int           `envconfig:"SETTLEMENT_RETRY_ATTEMPTS" default:"4"`
	SettlementRetryBaseDelay time.Duration `envconfig:"SETTLEMENT_RETRY_BASE_DELAY" default:"50ms"`
	SettlementBinaryLabels   string        `envconfig:"SETTLEMENT_BINARY_LABELS" default:"heads,tails"`

	// --- Odds ---
	// Overrides the hard-coded per-mode fallbacks, e.g. "jodi=90,harf=9.5".
	OddsFallbacksRaw string           `envconfig:"ODDS_FALLBACKS"`
	OddsFallbacks    map[string]int64 `envconfig:"-"` // filled by Load

	// --- Round lock ---
	LockBackend   string        `envconfig:"LOCK_BACKEND" default:"memory"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"10m"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`

	// --- Reconciliation sweep ---
	ReconcileCron   string        `envconfig:"RECONCILE_CRON" default:"@every 5m"`
	ReconcileMinAge time.Duration `envconfig:"RECONCILE_MIN_AGE" default:"2m"`
	ReconcileBatch  int           `envconfig:"RECONCILE_BATCH" default:"50"`

	// --- HTTP operator API ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Argon2id hash of the operator token, see scripts/generate_hash.go.
	OperatorTokenHash string `envconfig:"OPERATOR_TOKEN_HASH"`

	// --- Operator bot ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // filled by Load
	OperatorChatID   int64   `envconfig:"OPERATOR_CHAT_ID"`

	BotUpdateTimeoutSeconds int           `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"30"`
	BotMaxInflight          int           `envconfig:"BOT_MAX_INFLIGHT" default:"8"`
	RateLimitRequests       int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow         time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature flags ---
	FeatureHTTPEnabled          bool `envconfig:"FEATURE_HTTP_ENABLED" default:"true"`
	FeatureBotEnabled           bool `envconfig:"FEATURE_BOT_ENABLED" default:"false"`
	FeatureReconcileCronEnabled bool `envconfig:"FEATURE_RECONCILE_CRON_ENABLED" default:"true"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// BinaryLabels returns the default outcome labels for binary rounds.
func (c *Config) BinaryLabels() []string {
	var out []string
	for _, p := range strings.Split(c.SettlementBinaryLabels, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.SettlementWorkers <= 0 {
		return fmt.Errorf("SETTLEMENT_WORKERS must be > 0")
	}
	if c.SettlementWagerTimeout <= 0 {
		return fmt.Errorf("SETTLEMENT_WAGER_TIMEOUT must be > 0")
	}
	if c.SettlementRetryAttempts <= 0 {
		return fmt.Errorf("SETTLEMENT_RETRY_ATTEMPTS must be > 0")
	}
	if len(c.BinaryLabels()) != 2 {
		return fmt.Errorf("SETTLEMENT_BINARY_LABELS must hold exactly two labels")
	}
	switch c.LockBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("LOCK_BACKEND must be memory or redis, got %q", c.LockBackend)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be > 0")
	}
	if c.FeatureHTTPEnabled && c.OperatorTokenHash == "" {
		return fmt.Errorf("OPERATOR_TOKEN_HASH is required when the HTTP API is enabled")
	}
	if c.FeatureBotEnabled {
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when the bot is enabled")
		}
		if len(c.AdminIDs) == 0 {
			return fmt.Errorf("ADMIN_IDS is required when the bot is enabled")
		}
	}
	return nil
}

// Load reads the environment and fills Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ids, err := common.ParseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	fallbacks, err := ParseOddsFallbacks(cfg.OddsFallbacksRaw)
	if err != nil {
		return nil, fmt.Errorf("ODDS_FALLBACKS parse: %w", err)
	}
	cfg.OddsFallbacks = fallbacks

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseOddsFallbacks parses "jodi=90,harf=9.5" into scaled multipliers keyed by mode.
func ParseOddsFallbacks(s string) (map[string]int64, error) {
	out := map[string]int64{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return nil, fmt.Errorf("bad pair %q", pair)
		}
		m, err := common.ParseMultiplier(v)
		if err != nil {
			return nil, err
		}
		out[k] = m
	}
	return out, nil
}
