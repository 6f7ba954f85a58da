package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort                 = "8080"
	defaultDatabaseURL          = "file:hotel.db?_pragma=foreign_keys(1)"
	defaultJWTSecret            = "change-me-jwt-secret"
	defaultJWTAccessTTL         = "15m"
	defaultLogFile              = "logs/hotelbooking.log"
	defaultGatewayProvider      = "fake"
	defaultGatewayTimeout       = "30s"
	defaultWebhookSecret        = "change-me-webhook-secret"
	defaultAutoCheckoutInterval = "1h"
	defaultSMTPPort             = "587"
	defaultTimezone             = "UTC"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogFile     string
	Location    *time.Location

	JWTSecret    string
	JWTAccessTTL time.Duration

	Gateway GatewayConfig

	RedisURL string
	NatsURL  string
	SMTP     SMTPConfig

	AutoCheckoutEnabled  bool
	AutoCheckoutInterval time.Duration

	OtelEnabled  bool
	OtelEndpoint string

	CORSAllowedOrigins []string
}

type GatewayConfig struct {
	Provider      string
	ServerKey     string
	IsProduction  bool
	Timeout       time.Duration
	WebhookSecret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	OpsEmail string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.LogFile = strings.TrimSpace(getEnv("LOG_FILE", defaultLogFile))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.NatsURL = strings.TrimSpace(os.Getenv("NATS_URL"))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(getEnv("HOTEL_TIMEZONE", defaultTimezone))
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid HOTEL_TIMEZONE value %q: %w", tz, err)
	}

	cfg.Gateway = GatewayConfig{
		Provider:      strings.ToLower(strings.TrimSpace(getEnv("GATEWAY_PROVIDER", defaultGatewayProvider))),
		ServerKey:     strings.TrimSpace(os.Getenv("MIDTRANS_SERVER_KEY")),
		IsProduction:  parseBoolEnv("MIDTRANS_IS_PRODUCTION", "false"),
		WebhookSecret: strings.TrimSpace(getEnv("WEBHOOK_SECRET", defaultWebhookSecret)),
	}
	cfg.Gateway.Timeout, err = parseDurationEnv("GATEWAY_TIMEOUT", defaultGatewayTimeout)
	if err != nil {
		return nil, err
	}

	smtpPort, err := parseIntEnv("SMTP_PORT", defaultSMTPPort)
	if err != nil {
		return nil, err
	}
	cfg.SMTP = SMTPConfig{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     smtpPort,
		Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     strings.TrimSpace(os.Getenv("SMTP_FROM")),
		OpsEmail: strings.TrimSpace(os.Getenv("OPS_EMAIL")),
	}

	cfg.AutoCheckoutEnabled = parseBoolEnv("AUTO_CHECKOUT_ENABLED", "true")
	cfg.AutoCheckoutInterval, err = parseDurationEnv("AUTO_CHECKOUT_INTERVAL", defaultAutoCheckoutInterval)
	if err != nil {
		return nil, err
	}

	cfg.OtelEnabled = parseBoolEnv("OTEL_ENABLED", "false")
	cfg.OtelEndpoint = strings.TrimSpace(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))

	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config: env=%s gateway=%s timeout=%s auto_checkout=%t/%s",
		cfg.AppEnv, cfg.Gateway.Provider, cfg.Gateway.Timeout, cfg.AutoCheckoutEnabled, cfg.AutoCheckoutInterval)

	return cfg, nil
}

func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.AutoCheckoutInterval < 0 {
		return fmt.Errorf("AUTO_CHECKOUT_INTERVAL must be >= 0")
	}
	switch cfg.Gateway.Provider {
	case "fake":
	case "midtrans":
		if cfg.Gateway.ServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY must be set when GATEWAY_PROVIDER=midtrans")
		}
	default:
		return fmt.Errorf("GATEWAY_PROVIDER must be one of: midtrans, fake")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Gateway.WebhookSecret, defaultWebhookSecret) && cfg.Gateway.Provider != "midtrans" {
			return fmt.Errorf("in prod/release WEBHOOK_SECRET must be set and not default")
		}
		if cfg.Gateway.Provider == "fake" {
			return fmt.Errorf("in prod/release GATEWAY_PROVIDER must not be fake")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
