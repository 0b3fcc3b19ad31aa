// Package config provides configuration management for the formrelay service.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig holds configuration for the HTTP automation API.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	DatabaseURL    string

	// Delivery settings shared by all channels.
	DispatchTimeout time.Duration
	RatePerSecond   float64
	RateBurst       int

	Resend ResendSettings
	SMTP   SMTPSettings
}

// ResendSettings configures the hosted email API channel. The API key is
// environment-only and read separately via ResendAPIKey.
type ResendSettings struct {
	SenderEmail string
	SenderName  string
}

// SMTPSettings configures the SMTP fallback channel. The password is
// environment-only and read separately via SMTPPassword.
type SMTPSettings struct {
	Host        string
	Port        int
	Username    string
	SenderEmail string
	SenderName  string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		RequestTimeout:  30 * time.Second,
		DatabaseURL:     "sqlite://./formrelay.db",
		DispatchTimeout: 30 * time.Second,
		RatePerSecond:   10,
		RateBurst:       20,
		SMTP: SMTPSettings{
			Port: 587,
		},
	}
}

// ResendAPIKey returns the hosted API key from the environment. Empty means
// the channel is unconfigured and will be skipped at dispatch time.
func ResendAPIKey() string {
	return strings.TrimSpace(os.Getenv("FR_RESEND_API_KEY"))
}

// SMTPPassword returns the SMTP password from the environment.
func SMTPPassword() string {
	return os.Getenv("FR_SMTP_PASSWORD")
}

// HMACSecrets extracts API key HMAC secrets from environment variables.
// Supports FR_HMAC_SECRET (single) and FR_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("FR_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("FR_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets enable rotation: old and new keys stay valid while
	// clients migrate.
	for i := 1; ; i++ {
		key := fmt.Sprintf("FR_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check FR_HMAC_SECRET and FR_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}

	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}

	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
