// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :3005).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production"). Production forces secure cookies.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the slog level name: debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxConns caps the pgx pool size.
	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	// DBConnectRetries is how many times startup tries to reach Postgres before giving up.
	DBConnectRetries int `mapstructure:"DB_CONNECT_RETRIES"`
	// DBConnectDelay is the wait between startup connection attempts (e.g. "2s").
	DBConnectDelay string `mapstructure:"DB_CONNECT_DELAY"`

	// JWTSecret signs access tokens. Inline value or file:<path>.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTRefreshSecret signs refresh tokens; must differ from JWTSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "10m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// CookieSecure sets the Secure attribute on auth cookies.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// CookieSameSite is lax, strict or none.
	CookieSameSite string `mapstructure:"COOKIE_SAMESITE"`
	// CookieDomain is the optional Domain attribute on auth cookies.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`

	// CORSAllowedOrigins is a comma-separated allow-list. Empty reflects the request Origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// OTLPEndpoint is the OTLP gRPC collector (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3005")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_CONNECT_DELAY", "2s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "filevault-auth")
	v.SetDefault("JWT_AUDIENCE", "filevault-api")
	v.SetDefault("JWT_ACCESS_TTL", "10m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_SAMESITE", "lax")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch strings.ToLower(cfg.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		return nil, errors.New("config: COOKIE_SAMESITE must be lax, strict or none")
	}
	if _, err := time.ParseDuration(cfg.DBConnectDelay); err != nil {
		return nil, errors.New("config: DB_CONNECT_DELAY must be a duration")
	}

	return &cfg, nil
}

// ValidateAuth checks the settings the HTTP server needs to issue tokens.
// Migrate and seed do not sign tokens, so Load leaves this to the server.
func (c *Config) ValidateAuth() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_REFRESH_SECRET must be set")
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ConnectDelay parses DBConnectDelay. Returns 2s if unset or invalid.
func (c *Config) ConnectDelay() time.Duration {
	d, err := time.ParseDuration(c.DBConnectDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SecureCookies reports whether auth cookies carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.CookieSecure || c.IsProduction()
}

// SameSite maps CookieSameSite to the net/http constant.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CORSOrigins returns the allow-list from the comma-separated config. Nil means reflect any origin.
func (c *Config) CORSOrigins() []string {
	if c == nil || c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
