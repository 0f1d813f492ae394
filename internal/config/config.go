package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	// BaseURL is the externally visible address used when building
	// verification and password reset links.
	BaseURL string

	JWTSecret       string
	VerifyTokenTTL  time.Duration
	ResetTokenTTL   time.Duration
	SessionTokenTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	MailMaxAttempts int
	MailRetrySpec   string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=accounts sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", "no-reply@localhost"),
		MailRetrySpec: getEnv("MAIL_RETRY_SPEC", "@every 5m"),
	}

	var err error
	if cfg.VerifyTokenTTL, err = getDuration("VERIFY_TOKEN_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTokenTTL, err = getDuration("SESSION_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MailMaxAttempts, err = getInt("MAIL_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
