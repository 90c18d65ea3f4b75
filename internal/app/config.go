package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Invoria backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Google     GoogleConfig     `mapstructure:"google"`
	Invites    InviteConfig     `mapstructure:"invites"`
	Security   SecurityConfig   `mapstructure:"security"`
	Email      EmailConfig      `mapstructure:"email"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Path     string         `mapstructure:"path"`
	DSN      string         `mapstructure:"dsn"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig represents host based database parameters.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// AuthConfig captures authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// GoogleConfig holds the OAuth client registration used for both sign-in and
// mailbox connections.
type GoogleConfig struct {
	ClientID         string   `mapstructure:"client_id"`
	ClientSecret     string   `mapstructure:"client_secret"`
	RedirectURL      string   `mapstructure:"redirect_url"`
	GmailRedirectURL string   `mapstructure:"gmail_redirect_url"`
	GmailScopes      []string `mapstructure:"gmail_scopes"`
}

// InviteConfig tunes invite link generation.
type InviteConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	DefaultExpiry      time.Duration `mapstructure:"default_expiry"`
	TokenBytes         int           `mapstructure:"token_bytes"`
	SweepInterval      string        `mapstructure:"sweep_schedule"`
	SendEmailOnCreate  bool          `mapstructure:"send_email_on_create"`
}

// SecurityConfig holds encryption material for secrets at rest.
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("INVORIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		return errors.New("config: auth.jwt.secret is required")
	}
	if strings.TrimSpace(c.Google.ClientID) == "" {
		return errors.New("config: google.client_id is required")
	}
	if strings.TrimSpace(c.Google.ClientSecret) == "" {
		return errors.New("config: google.client_secret is required")
	}
	if length := len(c.Security.EncryptionKey); length != 16 && length != 24 && length != 32 {
		return fmt.Errorf("config: security.encryption_key must be 16, 24, or 32 bytes, got %d", length)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.frontend_url", "http://localhost:5173")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/invoria.sqlite")

	v.SetDefault("auth.jwt.issuer", "invoria")
	v.SetDefault("auth.jwt.access_token_ttl", "24h")

	v.SetDefault("google.gmail_scopes", []string{
		"https://www.googleapis.com/auth/gmail.readonly",
		"openid", "email", "profile",
	})

	v.SetDefault("invites.default_expiry", "168h") // 7 days
	v.SetDefault("invites.token_bytes", 48)
	v.SetDefault("invites.sweep_schedule", "@every 1h")
	v.SetDefault("invites.send_email_on_create", false)

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
