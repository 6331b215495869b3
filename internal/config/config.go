package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultGatewayURL    = "https://payment.example.com/v2/gateway/pay"
	defaultInvoiceDueDay = "10"
)

// Config is the process-wide runtime configuration, read once from the
// environment at startup.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string

	// Payment gateway credentials (HMAC-SHA256 shared secret scheme).
	GatewayPartnerCode string
	GatewayAccessKey   string
	GatewaySecretKey   string
	GatewayEndpoint    string
	GatewayRedirectURL string
	GatewayNotifyURL   string

	// Outbound mail.
	SMTPAddr string
	SMTPFrom string

	// Day of month invoices fall due when the caller does not pass one.
	InvoiceDueDay int
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = getEnv("HTTP_ADDR", defaultHTTPAddr)
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	if cfg.AppEnv == "prod" && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET must be set in prod")
	}

	cfg.GatewayPartnerCode = os.Getenv("PAYGATE_PARTNER_CODE")
	cfg.GatewayAccessKey = os.Getenv("PAYGATE_ACCESS_KEY")
	cfg.GatewaySecretKey = os.Getenv("PAYGATE_SECRET_KEY")
	cfg.GatewayEndpoint = getEnv("PAYGATE_ENDPOINT", defaultGatewayURL)
	cfg.GatewayRedirectURL = os.Getenv("PAYGATE_REDIRECT_URL")
	cfg.GatewayNotifyURL = os.Getenv("PAYGATE_NOTIFY_URL")

	cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	cfg.SMTPFrom = getEnv("SMTP_FROM", "billing@rentora.local")

	dueDay, err := strconv.Atoi(getEnv("INVOICE_DUE_DAY", defaultInvoiceDueDay))
	if err != nil || dueDay < 1 || dueDay > 28 {
		return nil, fmt.Errorf("INVOICE_DUE_DAY must be a day between 1 and 28")
	}
	cfg.InvoiceDueDay = dueDay

	return cfg, nil
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
