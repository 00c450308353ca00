package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Stripe   StripeConfig
	Donation DonationConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Client   ClientConfig

	AppearanceFile string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
}

type DonationConfig struct {
	MaxAmount        float64
	PendingIntentTTL time.Duration
	SweepSchedule    string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
	File   string
}

// ClientConfig is used by the intake flow when it talks to a running server.
type ClientConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

var (
	ErrMissingJWTSecret    = errors.New("no JWT_SECRET provided")
	ErrMissingDatabase     = errors.New("no DB_CONNECTION_STRING provided")
	ErrMissingStripeSecret = errors.New("no STRIPE_SECRET_KEY provided")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("STRIPE_CURRENCY", "usd")
	v.SetDefault("DONATION_MAX_AMOUNT", 25000.0)
	v.SetDefault("PENDING_INTENT_TTL", 24*time.Hour)
	v.SetDefault("SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("JWT_ISSUER", "SledHockey")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("CLIENT_TIMEOUT", 20*time.Second)
}

// Load reads the optional .env file and then the environment, applying defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded, continuing with system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString("HTTP_ADDR"),
			ReadTimeout:     v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("HTTP_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
			AllowedOrigins:  splitCSV(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			ConnectionString: v.GetString("DB_CONNECTION_STRING"),
			MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime:  v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Stripe: StripeConfig{
			SecretKey:      v.GetString("STRIPE_SECRET_KEY"),
			PublishableKey: v.GetString("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:       strings.ToLower(v.GetString("STRIPE_CURRENCY")),
		},
		Donation: DonationConfig{
			MaxAmount:        v.GetFloat64("DONATION_MAX_AMOUNT"),
			PendingIntentTTL: v.GetDuration("PENDING_INTENT_TTL"),
			SweepSchedule:    v.GetString("SWEEP_SCHEDULE"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
		Client: ClientConfig{
			APIBaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			Timeout:    v.GetDuration("CLIENT_TIMEOUT"),
		},
		AppearanceFile: v.GetString("APPEARANCE_FILE"),
	}

	if cfg.Donation.PendingIntentTTL <= 0 {
		return nil, fmt.Errorf("invalid PENDING_INTENT_TTL: %s", cfg.Donation.PendingIntentTTL)
	}
	if cfg.Donation.MaxAmount <= 0 {
		return nil, fmt.Errorf("invalid DONATION_MAX_AMOUNT: %v", cfg.Donation.MaxAmount)
	}
	return cfg, nil
}

// ValidateServer checks the keys the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Stripe.SecretKey == "" {
		return ErrMissingStripeSecret
	}
	return nil
}

func (c *Config) ValidateDatabase() error {
	if c.Database.ConnectionString == "" {
		return ErrMissingDatabase
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
