package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	FrontendURL string
	BackendURL  string

	DatabaseURL string
	JWTSecret   string

	TelegramBotToken      string
	TelegramWebhookSecret string
	TelegramBotUsername   string
	LoginCodeTTL          time.Duration

	RemindersEnabled bool

	MetricsUser string
	MetricsPass string
	PprofSecret string

	GeminiAPIKey string
	GeminiModel  string

	KafkaBroker string
	KafkaTopic  string

	S3Bucket        string
	AWSRegion       string
	S3PublicBaseURL string
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "3000"),
		Env:                   getEnv("ENV", "development"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		BackendURL:            os.Getenv("BACKEND_URL"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramBotUsername:   getEnv("TELEGRAM_BOT_USERNAME", "HabitHeroBot"),
		MetricsUser:           os.Getenv("METRICS_USER"),
		MetricsPass:           os.Getenv("METRICS_PASS"),
		PprofSecret:           os.Getenv("PPROF_SECRET"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		KafkaBroker:           os.Getenv("KAFKA_BROKER"),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "habit-hero.activity"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		S3PublicBaseURL:       os.Getenv("S3_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramWebhookSecret == "" {
		return nil, fmt.Errorf("TELEGRAM_WEBHOOK_SECRET must be set when TELEGRAM_BOT_TOKEN is set")
	}

	ttl, err := time.ParseDuration(getEnv("LOGIN_CODE_TTL", "5m"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid LOGIN_CODE_TTL: %q", os.Getenv("LOGIN_CODE_TTL"))
	}
	cfg.LoginCodeTTL = ttl

	cfg.RemindersEnabled, err = strconv.ParseBool(getEnv("REMINDERS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDERS_ENABLED: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
