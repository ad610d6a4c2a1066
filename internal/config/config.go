// Package config loads service settings from the environment, an optional
// .env file, and command line flags bound through viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Environment names.
const (
	Development = "development"
	Production  = "production"
)

// Keys understood by Load. Each maps to the upper-case environment variable.
const (
	KeyPort        = "port"
	KeyDatabase    = "db_connection_string"
	KeyJWTSecret   = "jwt_secret"
	KeyEnvironment = "environment"
	KeyCORSOrigins = "cors_origins"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyBcryptCost  = "bcrypt_cost"
)

// ErrMissingSecret is returned when JWT_SECRET is empty.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config holds the service settings.
type Config struct {
	Port        int
	Database    string
	JWTSecret   string
	Environment string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string
	BcryptCost  int
}

// NewViper returns a viper instance with defaults set and environment
// lookups enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, 5000)
	v.SetDefault(KeyDatabase, "pennytrail.db")
	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyEnvironment, Development)
	v.SetDefault(KeyCORSOrigins, "http://localhost:5173")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyBcryptCost, bcrypt.DefaultCost)
	v.AutomaticEnv()
	return v
}

// LoadEnvFile loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the settings from v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetInt(KeyPort),
		Database:    strings.TrimSpace(v.GetString(KeyDatabase)),
		JWTSecret:   v.GetString(KeyJWTSecret),
		Environment: strings.ToLower(strings.TrimSpace(v.GetString(KeyEnvironment))),
		CORSOrigins: splitList(v.GetString(KeyCORSOrigins)),
		LogLevel:    strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:   strings.ToLower(v.GetString(KeyLogFormat)),
		BcryptCost:  v.GetInt(KeyBcryptCost),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return ErrMissingSecret
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	case c.Database == "":
		return errors.New("DB_CONNECTION_STRING is required")
	case c.Environment != Development && c.Environment != Production:
		return fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", Development, Production, c.Environment)
	case c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost:
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	case c.LogFormat != "json" && c.LogFormat != "console":
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Production reports whether the service runs in production. It decides the
// session cookie's Secure and SameSite attributes.
func (c *Config) Production() bool {
	return c.Environment == Production
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
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
