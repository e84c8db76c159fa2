package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config carries every setting the server needs. It is built once in
// main and handed to each component; nothing reads the environment
// after startup.
type Config struct {
	Environment string // "development" or "production"
	Port        string
	DatabaseURL string

	// SecretKey peppers the voter fingerprint derivation. Rotating it
	// resets every pseudonymous identity.
	SecretKey  string
	AdminToken string

	CORSOrigin string

	// Per-fingerprint rate limits, requests per second.
	SubmitRPS float64
	VoteRPS   float64

	CaptchaEnabled bool
	CaptchaSecret  string
}

// Load builds a Config from the environment. Call godotenv.Load first
// if a .env file should be honored.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:    getenv("ENVIRONMENT", "development"),
		Port:           getenv("PORT", "8080"),
		DatabaseURL:    getenv("DATABASE_URL", "sqlite://ideahub.db"),
		SecretKey:      os.Getenv("SECRET_KEY"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		CORSOrigin:     getenv("CORS_ORIGIN", "*"),
		SubmitRPS:      getenvFloat("SUBMIT_RPS", 1.0/12.0), // 5 per minute
		VoteRPS:        getenvFloat("VOTE_RPS", 1.0),
		CaptchaEnabled: getenvBool("CAPTCHA_ENABLED", false),
		CaptchaSecret:  os.Getenv("CAPTCHA_SECRET"),
	}

	if cfg.SecretKey == "" {
		if cfg.Environment == "production" {
			return nil, errors.New("SECRET_KEY must be set in production")
		}
		cfg.SecretKey = "dev-secret-please-change-in-prod"
		log.Println("SECRET_KEY not set, using development default")
	}
	if cfg.AdminToken == "" {
		return nil, errors.New("ADMIN_TOKEN must be set")
	}
	if cfg.CaptchaEnabled && cfg.CaptchaSecret == "" {
		return nil, errors.New("CAPTCHA_SECRET must be set when CAPTCHA_ENABLED is true")
	}
	if cfg.Environment == "production" && strings.HasPrefix(cfg.DatabaseURL, "sqlite://") {
		log.Println("WARNING: running production on sqlite")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using default", key, v)
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default", key, v)
		return fallback
	}
	return b
}
