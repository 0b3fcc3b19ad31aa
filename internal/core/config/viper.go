package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Defaults matching DefaultServerConfig
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.database_url", "sqlite://./formrelay.db")
	v.SetDefault("delivery.dispatch_timeout", "30s")
	v.SetDefault("delivery.rate_per_second", 10)
	v.SetDefault("delivery.rate_burst", 20)
	v.SetDefault("resend.sender_email", "")
	v.SetDefault("resend.sender_name", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.sender_email", "")
	v.SetDefault("smtp.sender_name", "")

	// Bind environment variables with FR_ prefix
	v.SetEnvPrefix("FR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		RequestTimeout:  v.GetDuration("server.request_timeout"),
		DatabaseURL:     v.GetString("server.database_url"),
		DispatchTimeout: v.GetDuration("delivery.dispatch_timeout"),
		RatePerSecond:   v.GetFloat64("delivery.rate_per_second"),
		RateBurst:       v.GetInt("delivery.rate_burst"),
		Resend: ResendSettings{
			SenderEmail: v.GetString("resend.sender_email"),
			SenderName:  v.GetString("resend.sender_name"),
		},
		SMTP: SMTPSettings{
			Host:        v.GetString("smtp.host"),
			Port:        v.GetInt("smtp.port"),
			Username:    v.GetString("smtp.username"),
			SenderEmail: v.GetString("smtp.sender_email"),
			SenderName:  v.GetString("smtp.sender_name"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive timeouts and rates.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must not be empty")
	}
	if cfg.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch_timeout must be positive, got %v", cfg.DispatchTimeout)
	}
	if cfg.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be positive, got %v", cfg.RatePerSecond)
	}
	if cfg.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive, got %d", cfg.RateBurst)
	}
	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535, got %d", cfg.SMTP.Port)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use FR_HMAC_SECRET environment variable)")
	}
	if v.IsSet("resend.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use FR_RESEND_API_KEY environment variable)")
	}
	if v.IsSet("smtp.password") {
		return fmt.Errorf("passwords not allowed in config files (use FR_SMTP_PASSWORD environment variable)")
	}
	return nil
}
