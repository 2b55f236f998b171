package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Asaas    AsaasConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret         string
	AccessExpiry   time.Duration
	RememberExpiry time.Duration
	Issuer         string
}

// AsaasConfig carries per-environment gateway credentials. A request is
// routed to sandbox or production by pkg/asaas.ResolveEnv; the matching key
// must be present or the client constructor fails.
type AsaasConfig struct {
	SandboxAPIKey    string
	ProductionAPIKey string
	// Hosts/origins that force the production environment.
	ProductionHosts []string
	// Accepted values for the asaas-webhook-token header. Each environment
	// configures its own token, so several may be valid at once.
	WebhookTokens []string
	Timeout       time.Duration
}

type PaymentConfig struct {
	// MinCharge is the smallest value the gateway accepts; discounts clamp
	// the net amount to this floor.
	MinCharge float64
	// RequireAddress gates order creation on a complete billing address.
	RequireAddress bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "3000"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "creditshop:creditshop@tcp(localhost:3306)/creditshop?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			Secret:         envOr("JWT_SECRET", "change-me-in-production"),
			AccessExpiry:   8 * time.Hour,
			RememberExpiry: 168 * time.Hour,
			Issuer:         "creditshop",
		},
		Asaas: AsaasConfig{
			SandboxAPIKey:    firstEnv("ASAAS_API_KEY_SANDBOX", "ASAAS_API_KEY"),
			ProductionAPIKey: firstEnv("ASAAS_API_KEY_PRODUCTION", "ASAAS_API_KEY"),
			ProductionHosts:  splitEnv("ASAAS_PRODUCTION_HOSTS", "cyberregistro.com.br,onrender.com"),
			WebhookTokens: nonEmpty(
				os.Getenv("ASAAS_WEBHOOK_TOKEN"),
				os.Getenv("ASAAS_WEBHOOK_TOKEN_PRODUCTION"),
				os.Getenv("ASAAS_WEBHOOK_TOKEN_SANDBOX"),
			),
			Timeout: 20 * time.Second,
		},
		Payment: PaymentConfig{
			MinCharge:      0.01,
			RequireAddress: envBool("APP_REQUIRE_ADDRESS"),
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitEnv(key, def string) []string {
	raw := envOr(key, def)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
