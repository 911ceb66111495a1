package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Logger      LoggerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Providers   ProvidersConfig
	Marketplace MarketplaceConfig
	Wallet      WalletConfig
	App         AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// RedisConfig holds the transient-store connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the optional domain-event producer configuration.
// An empty broker list disables event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CaptureMethod controls whether payments capture immediately or hold for
// an explicit vendor approval (authorize-then-capture)
type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

// ProvidersConfig holds per-provider credentials, resolved once at startup
type ProvidersConfig struct {
	PayPal      PayPalConfig
	MercadoPago MercadoPagoConfig
	Paystack    PaystackConfig
	Square      SquareConfig
}

// PayPalConfig holds PayPal REST credentials
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	Sandbox      bool
}

// Configured reports whether the provider has usable credentials.
func (c PayPalConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// MercadoPagoConfig holds Mercado Pago credentials
type MercadoPagoConfig struct {
	AccessToken   string
	PublicKey     string
	WebhookSecret string
	ClientID      string
	ClientSecret  string
	Sandbox       bool
}

// Configured reports whether the provider has usable credentials.
func (c MercadoPagoConfig) Configured() bool {
	return c.AccessToken != ""
}

// PaystackConfig holds Paystack credentials
type PaystackConfig struct {
	SecretKey     string
	PublicKey     string
	WebhookSecret string
}

// Configured reports whether the provider has usable credentials.
func (c PaystackConfig) Configured() bool {
	return c.SecretKey != ""
}

// SquareConfig holds Square credentials
type SquareConfig struct {
	AccessToken         string
	ApplicationID       string
	ApplicationSecret   string
	LocationID          string
	WebhookSignatureKey string
	WebhookURL          string
	Sandbox             bool
}

// Configured reports whether the provider has usable credentials.
func (c SquareConfig) Configured() bool {
	return c.AccessToken != "" && c.LocationID != ""
}

// FeeTier is one threshold of a conditional fee schedule: the percentage
// applies when the order total is at or above OverCents.
type FeeTier struct {
	OverCents  int64
	Percentage float64
}

// MarketplaceConfig holds the fee-splitting and payout configuration
type MarketplaceConfig struct {
	ConditionalTiers []FeeTier
	FeeType          string // none, fixed, percentage, conditional
	FeeFixedCents    int64
	FeePercentage    float64
	PayoutDelayDays  int
	Enabled          bool
}

// WalletConfig holds wallet deposit bounds
type WalletConfig struct {
	Currency        string
	MinDepositCents int64
	MaxDepositCents int64
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	CaptureMethod      CaptureMethod
	SuccessRedirectURL string
	FailureRedirectURL string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string // debug, info, warn, error
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // a missing .env file is fine

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "voxelpay"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "payments.events"),
		},
		Providers: ProvidersConfig{
			PayPal: PayPalConfig{
				ClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
				ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
				WebhookID:    getEnv("PAYPAL_WEBHOOK_ID", ""),
				Sandbox:      getEnvAsBool("PAYPAL_SANDBOX", true),
			},
			MercadoPago: MercadoPagoConfig{
				AccessToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
				PublicKey:     getEnv("MERCADOPAGO_PUBLIC_KEY", ""),
				WebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
				ClientID:      getEnv("MERCADOPAGO_CLIENT_ID", ""),
				ClientSecret:  getEnv("MERCADOPAGO_CLIENT_SECRET", ""),
				Sandbox:       getEnvAsBool("MERCADOPAGO_SANDBOX", true),
			},
			Paystack: PaystackConfig{
				SecretKey:     getEnv("PAYSTACK_SECRET_KEY", ""),
				PublicKey:     getEnv("PAYSTACK_PUBLIC_KEY", ""),
				WebhookSecret: getEnv("PAYSTACK_WEBHOOK_SECRET", ""),
			},
			Square: SquareConfig{
				AccessToken:         getEnv("SQUARE_ACCESS_TOKEN", ""),
				ApplicationID:       getEnv("SQUARE_APPLICATION_ID", ""),
				ApplicationSecret:   getEnv("SQUARE_APPLICATION_SECRET", ""),
				LocationID:          getEnv("SQUARE_LOCATION_ID", ""),
				WebhookSignatureKey: getEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
				WebhookURL:          getEnv("SQUARE_WEBHOOK_URL", ""),
				Sandbox:             getEnvAsBool("SQUARE_SANDBOX", true),
			},
		},
		Marketplace: MarketplaceConfig{
			Enabled:         getEnvAsBool("MARKETPLACE_ENABLED", false),
			FeeType:         getEnv("MARKETPLACE_FEE_TYPE", "none"),
			FeeFixedCents:   getEnvAsInt64("MARKETPLACE_FEE_FIXED_CENTS", 0),
			FeePercentage:   getEnvAsFloat("MARKETPLACE_FEE_PERCENTAGE", 0),
			PayoutDelayDays: getEnvAsInt("MARKETPLACE_PAYOUT_DELAY_DAYS", 0),
		},
		Wallet: WalletConfig{
			Currency:        getEnv("WALLET_CURRENCY", "USD"),
			MinDepositCents: getEnvAsInt64("WALLET_MIN_DEPOSIT_CENTS", 100),
			MaxDepositCents: getEnvAsInt64("WALLET_MAX_DEPOSIT_CENTS", 100000000),
		},
		App: AppConfig{
			CaptureMethod:      CaptureMethod(getEnv("CAPTURE_METHOD", "automatic")),
			SuccessRedirectURL: getEnv("SUCCESS_REDIRECT_URL", "/checkout/success"),
			FailureRedirectURL: getEnv("FAILURE_REDIRECT_URL", "/checkout/failure"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if tiers := getEnv("MARKETPLACE_CONDITIONAL_TIERS", ""); tiers != "" {
		parsed, err := parseFeeTiers(tiers)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.Marketplace.ConditionalTiers = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}

	if c.App.CaptureMethod != CaptureAutomatic && c.App.CaptureMethod != CaptureManual {
		return fmt.Errorf("invalid capture method: %s (must be automatic or manual)", c.App.CaptureMethod)
	}

	switch c.Marketplace.FeeType {
	case "none", "fixed", "percentage", "conditional":
	default:
		return fmt.Errorf("invalid marketplace fee type: %s", c.Marketplace.FeeType)
	}
	if c.Marketplace.FeePercentage < 0 || c.Marketplace.FeePercentage > 100 {
		return fmt.Errorf("marketplace fee percentage must be between 0 and 100, got %f", c.Marketplace.FeePercentage)
	}
	if c.Marketplace.FeeFixedCents < 0 {
		return fmt.Errorf("marketplace fixed fee cannot be negative")
	}

	if c.Wallet.MinDepositCents <= 0 {
		return fmt.Errorf("wallet minimum deposit must be positive")
	}
	if c.Wallet.MaxDepositCents < c.Wallet.MinDepositCents {
		return fmt.Errorf("wallet maximum deposit (%d) must be >= minimum deposit (%d)",
			c.Wallet.MaxDepositCents, c.Wallet.MinDepositCents)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// parseFeeTiers parses a schedule like "0:5,100000:3" as
// over_cents:percentage pairs.
func parseFeeTiers(raw string) ([]FeeTier, error) {
	var tiers []FeeTier
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid fee tier %q: want over_cents:percentage", pair)
		}
		over, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier threshold %q: %w", parts[0], err)
		}
		pct, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier percentage %q: %w", parts[1], err)
		}
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("fee tier percentage must be between 0 and 100, got %f", pct)
		}
		tiers = append(tiers, FeeTier{OverCents: over, Percentage: pct})
	}
	return tiers, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}
