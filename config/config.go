package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port              string   // default: 8080
	CORSOrigins       []string // empty disables CORS
	TrustProxyHeaders bool     // honour X-Forwarded-For / X-Real-IP

	// Database
	PostgresDSN string // optional, enables the usage log

	// Cache
	RedisAddr string // optional, enables rate limiting

	// Model
	CompletionURL         string
	ModelConfigPath       string
	ModelKeyFilePath      string
	ConfigRefreshInterval time.Duration // default: 12h
	UpstreamTimeout       time.Duration // default: 60s

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
	LogLevel             string
	LogFormat            string // "json" or "console"

	// Rate Limiting
	DefaultRateLimitTPM int64 // tokens per minute, default: 100000
}

func Load() (*Config, error) {
	// Missing .env files are not an error.
	_ = godotenv.Load("./env/.env")
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		CORSOrigins:          splitList(os.Getenv("CORS_ORIGINS")),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		CompletionURL:        os.Getenv("COMPLETION_URL"),
		ModelConfigPath:      os.Getenv("MODEL_CONFIG_PATH"),
		ModelKeyFilePath:     os.Getenv("MODEL_KEY_FILE_PATH"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	// Rate Limiting Default
	tpm, err := strconv.ParseInt(getEnv("DEFAULT_RATE_LIMIT_TPM", "100000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATE_LIMIT_TPM: %w", err)
	}
	cfg.DefaultRateLimitTPM = tpm

	cfg.TrustProxyHeaders, err = strconv.ParseBool(getEnv("TRUST_PROXY_HEADERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY_HEADERS: %w", err)
	}

	cfg.ConfigRefreshInterval, err = time.ParseDuration(getEnv("CONFIG_REFRESH_INTERVAL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONFIG_REFRESH_INTERVAL: %w", err)
	}
	cfg.UpstreamTimeout, err = time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}

	// Validation
	if cfg.ConfigRefreshInterval <= 0 {
		return nil, fmt.Errorf("CONFIG_REFRESH_INTERVAL must be positive")
	}
	if (cfg.ModelConfigPath == "") != (cfg.ModelKeyFilePath == "") {
		return nil, fmt.Errorf("MODEL_CONFIG_PATH and MODEL_KEY_FILE_PATH must be set together")
	}
	switch cfg.OTELExporterType {
	case "stdout", "otlp", "none":
	default:
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_TYPE %q", cfg.OTELExporterType)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
