package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seuros/amiri/internal/forecast"
)

// Data source selectors.
const (
	SourceAuto        = "auto"
	SourcePostgres    = "postgres"
	SourceSpreadsheet = "spreadsheet"
	SourceDemo        = "demo"
)

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	DataSource     string
	ForecastFile   string
	MetricsFile    string
	DefaultHorizon int
	CacheSize      int
	Timezone       string
	RetentionDays  int
	TrustedOrigins []string
}

// Overrides carries values set by command flags. Empty or zero fields are ignored.
type Overrides struct {
	DatabaseURL string
	Port        string
	DataSource  string
	Horizon     int
}

// Load loads configuration from multiple sources with priority:
// 1. Command flags (Overrides)
// 2. Config file (./amiri.toml or $XDG_CONFIG_HOME/amiri/amiri.toml)
// 3. Environment variables
// 4. Defaults
func Load() (*Config, error) {
	return LoadWithOverrides(Overrides{})
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(o Overrides) (*Config, error) {
	v := newBaseViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := buildConfig(v, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("amiri")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// XDG lookup done by hand so tests can point HOME/XDG_CONFIG_HOME at a temp dir
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "amiri"))
	}

	v.SetEnvPrefix("AMIRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"data_source", "forecast_file", "metrics_file", "default_horizon", "cache_size", "timezone", "retention_days"} {
		_ = v.BindEnv(key)
	}

	return v
}

func buildConfig(v *viper.Viper, o Overrides) *Config {
	cfg := &Config{
		Port:           "3000",
		DataSource:     SourceAuto,
		ForecastFile:   "forecast_data.xlsx",
		MetricsFile:    "model_metrics.xlsx",
		DefaultHorizon: forecast.DefaultHorizon,
		CacheSize:      128,
		Timezone:       "UTC",
		RetentionDays:  0,
		TrustedOrigins: []string{"localhost"},
	}

	// Config file values, then AMIRI_* env bound above
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("data_source") {
		cfg.DataSource = strings.ToLower(strings.TrimSpace(v.GetString("data_source")))
	}
	if v.IsSet("forecast_file") {
		cfg.ForecastFile = v.GetString("forecast_file")
	}
	if v.IsSet("metrics_file") {
		cfg.MetricsFile = v.GetString("metrics_file")
	}
	if v.IsSet("default_horizon") {
		cfg.DefaultHorizon = v.GetInt("default_horizon")
	}
	if v.IsSet("cache_size") {
		cfg.CacheSize = v.GetInt("cache_size")
	}
	if v.IsSet("timezone") {
		cfg.Timezone = v.GetString("timezone")
	}
	if v.IsSet("retention_days") {
		cfg.RetentionDays = v.GetInt("retention_days")
	}
	if v.IsSet("trusted_origins") {
		cfg.TrustedOrigins = parseTrustedOrigins(v.GetString("trusted_origins"))
	}

	// Unprefixed environment fallback (only if not configured)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("trusted_origins") {
		if envOrigins := os.Getenv("TRUSTED_ORIGINS"); envOrigins != "" {
			cfg.TrustedOrigins = parseTrustedOrigins(envOrigins)
		}
	}

	// Apply overrides (flags) last
	if o.DatabaseURL != "" {
		cfg.DatabaseURL = o.DatabaseURL
	}
	if o.Port != "" {
		cfg.Port = o.Port
	}
	if o.DataSource != "" {
		cfg.DataSource = strings.ToLower(o.DataSource)
	}
	if o.Horizon != 0 {
		cfg.DefaultHorizon = o.Horizon
	}

	cfg.DefaultHorizon = forecast.ClampHorizon(cfg.DefaultHorizon)
	return cfg
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourceAuto, SourcePostgres, SourceSpreadsheet, SourceDemo:
	default:
		return fmt.Errorf("data_source must be one of auto, postgres, spreadsheet, demo (got %q)", c.DataSource)
	}
	if c.DataSource == SourcePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("data_source postgres requires database_url")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive (got %d)", c.CacheSize)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative (got %d)", c.RetentionDays)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseTrustedOrigins parses a comma-separated string into a slice of trimmed, lowercased origins
func parseTrustedOrigins(originsStr string) []string {
	if originsStr == "" {
		return []string{}
	}

	parts := strings.Split(originsStr, ",")
	origins := make([]string, 0, len(parts))

	for _, part := range parts {
		origin, err := SanitizeTrustedDomain(part)
		if err != nil {
			continue
		}
		origins = append(origins, origin)
	}

	return origins
}
