package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox"`
}

type ServerConfig struct {
	Port              int             `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string          `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration   `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration   `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration   `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration   `mapstructure:"write_timeout"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles write endpoints per client. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// SettlementConfig holds the fee policy. Rates are decimal strings such as "0.015".
type SettlementConfig struct {
	Currency        string            `mapstructure:"currency" validate:"required,len=3"`
	PlatformFeeRate string            `mapstructure:"platform_fee_rate" validate:"required"`
	DefaultTier     string            `mapstructure:"default_tier" validate:"required"`
	CommissionTiers map[string]string `mapstructure:"commission_tiers" validate:"required,min=1"`
	Gateways        []GatewayConfig   `mapstructure:"gateways" validate:"required,min=1,dive"`
}

type GatewayConfig struct {
	ID         string `mapstructure:"id" validate:"required"`
	PercentFee string `mapstructure:"percent_fee" validate:"required"`
	FixedFee   int64  `mapstructure:"fixed_fee" validate:"min=0"`
}

type SchedulerConfig struct {
	Interval         time.Duration `mapstructure:"interval" validate:"required,min=1m"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout" validate:"required,min=1s"`
	Concurrency      int           `mapstructure:"concurrency" validate:"min=0"`
	DistributedLock  bool          `mapstructure:"distributed_lock"`
	StartImmediately bool          `mapstructure:"start_immediately"`
}

type SandboxConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	TransactionWebhookURL string        `mapstructure:"transaction_webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	PayoutWebhookURL      string        `mapstructure:"payout_webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	SuccessRate           float64       `mapstructure:"success_rate" validate:"min=0,max=1"`
	MaxDelay              time.Duration `mapstructure:"max_delay"`
	MaxWorkers            int           `mapstructure:"max_workers" validate:"min=0"`
	JobQueueSize          int           `mapstructure:"job_queue_size" validate:"min=0"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds the configuration from plain environment variables,
// used when running inside a container.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			RateLimit: RateLimitConfig{
				RequestsPerMinute: float64(getEnvAsInt("HTTP_RATE_LIMIT_PER_MINUTE", 600)),
				Burst:             getEnvAsInt("HTTP_RATE_LIMIT_BURST", 50),
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Settlement: SettlementConfig{
			Currency:        getEnv("SETTLEMENT_CURRENCY", "USD"),
			PlatformFeeRate: getEnv("SETTLEMENT_PLATFORM_FEE_RATE", "0.01"),
			DefaultTier:     getEnv("SETTLEMENT_DEFAULT_TIER", "free"),
			CommissionTiers: parseKeyValues(getEnv("SETTLEMENT_COMMISSION_TIERS", "free=0.05,standard=0.03,premium=0.01")),
			Gateways:        parseGateways(getEnv("SETTLEMENT_GATEWAYS", "stripe:0.029:30,paystack:0.015:0")),
		},
		Scheduler: SchedulerConfig{
			Interval:         getEnvAsDuration("SCHEDULER_INTERVAL", time.Hour),
			BatchTimeout:     getEnvAsDuration("SCHEDULER_BATCH_TIMEOUT", 10*time.Minute),
			Concurrency:      getEnvAsInt("SCHEDULER_CONCURRENCY", 4),
			DistributedLock:  getEnv("SCHEDULER_DISTRIBUTED_LOCK", "true") == "true",
			StartImmediately: getEnv("SCHEDULER_START_IMMEDIATELY", "false") == "true",
		},
		Sandbox: SandboxConfig{
			Enabled: false,
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// parseKeyValues reads "a=1,b=2".
func parseKeyValues(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// parseGateways reads "id:percent:fixed,id:percent:fixed".
func parseGateways(raw string) []GatewayConfig {
	var out []GatewayConfig
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			continue
		}
		fixed, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, GatewayConfig{ID: parts[0], PercentFee: parts[1], FixedFee: fixed})
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Settlement.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("settlement config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SettlementConfig) Validate() error {
	if _, err := parseRate(c.PlatformFeeRate); err != nil {
		return fmt.Errorf("platform_fee_rate: %w", err)
	}
	for tier, raw := range c.CommissionTiers {
		if _, err := parseRate(raw); err != nil {
			return fmt.Errorf("commission tier %s: %w", tier, err)
		}
	}
	if _, ok := c.CommissionTiers[c.DefaultTier]; !ok {
		return fmt.Errorf("default_tier %q is not a configured commission tier", c.DefaultTier)
	}
	seen := make(map[string]struct{}, len(c.Gateways))
	for _, g := range c.Gateways {
		id := strings.ToLower(strings.TrimSpace(g.ID))
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate gateway id %q", g.ID)
		}
		seen[id] = struct{}{}
		if _, err := parseRate(g.PercentFee); err != nil {
			return fmt.Errorf("gateway %s percent_fee: %w", g.ID, err)
		}
	}
	return nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("rate %s must be within [0, 1]", raw)
	}
	return rate, nil
}
