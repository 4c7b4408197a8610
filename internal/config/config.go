package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	BaseURL  string

	PaymentAPIURL        string
	PaymentClientID      string
	PaymentClientSecret  string
	PaymentWebhookSecret string
	PaymentTimeout       time.Duration
	PayerID              string
	PriceAmount          int64
	PriceCurrency        string

	GenerationAPIURL  string
	GenerationToken   string
	GenerationModel   string
	GenerationTimeout time.Duration
	GenerationWorkers int

	ShutdownGracePeriod time.Duration
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func Load() Config {
	return Config{
		HTTPAddr: getEnv("PIXPAGO_HTTP_ADDR", ":8080"),
		BaseURL:  getEnv("PIXPAGO_BASE_URL", "http://localhost:8080"),

		PaymentAPIURL:        getEnv("PIXPAGO_PAYMENT_API_URL", "https://api.payments.example.com/v1"),
		PaymentClientID:      getEnv("PIXPAGO_PAYMENT_CLIENT_ID", ""),
		PaymentClientSecret:  getEnv("PIXPAGO_PAYMENT_CLIENT_SECRET", ""),
		PaymentWebhookSecret: getEnv("PIXPAGO_PAYMENT_WEBHOOK_SECRET", ""),
		PaymentTimeout:       parseDuration("PIXPAGO_PAYMENT_TIMEOUT", 10*time.Second),
		PayerID:              getEnv("PIXPAGO_PAYMENT_USER_ID", ""),
		PriceAmount:          parseInt64("PIXPAGO_PRICE_AMOUNT", 100),
		PriceCurrency:        getEnv("PIXPAGO_PRICE_CURRENCY", "ARS"),

		GenerationAPIURL:  getEnv("PIXPAGO_GENERATION_API_URL", "https://api.generation.example.com/v1"),
		GenerationToken:   getEnv("PIXPAGO_GENERATION_TOKEN", ""),
		GenerationModel:   getEnv("PIXPAGO_GENERATION_MODEL", "black-forest-labs/flux-schnell"),
		GenerationTimeout: parseDuration("PIXPAGO_GENERATION_TIMEOUT", 2*time.Minute),
		GenerationWorkers: parseInt("PIXPAGO_GENERATION_WORKERS", 4),

		ShutdownGracePeriod: parseDuration("PIXPAGO_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func parseDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}

func parseInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	return def
}
