// Package config loads ghatsafe's service settings from a JSON file and the
// environment. Unset fields fall back to the defaults returned by the Get*
// accessors, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

// DefaultConfigPath is the canonical defaults file shipped with the repo.
const DefaultConfigPath = "config/ghatsafe.defaults.json"

// EnvPrefix prefixes every environment override, e.g. GHATSAFE_LISTEN.
const EnvPrefix = "GHATSAFE_"

const maxFileSize = 1 * 1024 * 1024

// Config is the service configuration.
type Config struct {
	Listen       *string `json:"listen,omitempty"`
	DBPath       *string `json:"db_path,omitempty"`
	ArtifactsDir *string `json:"artifacts_dir,omitempty"`
	DatasetPath  *string `json:"dataset_path,omitempty"`

	// Prediction
	Schema         *string  `json:"schema,omitempty"`
	DefaultHour    *int     `json:"default_hour,omitempty"`
	MaxVehicles    *int     `json:"max_vehicles,omitempty"`
	FallbackSlope  *float64 `json:"fallback_slope,omitempty"`
	FallbackRadius *float64 `json:"fallback_radius,omitempty"`
	SimulationSeed *uint64  `json:"simulation_seed,omitempty"`

	// Weather lookup
	WeatherURL      *string `json:"weather_url,omitempty"`
	WeatherTimeout  *string `json:"weather_timeout,omitempty"` // duration string like "2s"
	WeatherFallback *string `json:"weather_fallback,omitempty"`

	// Accounts
	SessionTTL       *string `json:"session_ttl,omitempty"` // duration string like "24h"
	PasswordResetTTL *string `json:"password_reset_ttl,omitempty"`
	AdminUsername    *string `json:"admin_username,omitempty"`
	AdminPassword    *string `json:"admin_password,omitempty"`

	CORSOrigins []string `json:"cors_origins,omitempty"`
	AdminRoutes *bool    `json:"admin_routes,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// LoadConfig reads a JSON config file. The path must end in .json and the
// file must be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GHATSAFE_* variables found by lookup
// (normally os.LookupEnv). Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	strs := map[string]**string{
		"LISTEN":             &c.Listen,
		"DB_PATH":            &c.DBPath,
		"ARTIFACTS_DIR":      &c.ArtifactsDir,
		"DATASET_PATH":       &c.DatasetPath,
		"SCHEMA":             &c.Schema,
		"WEATHER_URL":        &c.WeatherURL,
		"WEATHER_TIMEOUT":    &c.WeatherTimeout,
		"WEATHER_FALLBACK":   &c.WeatherFallback,
		"SESSION_TTL":        &c.SessionTTL,
		"PASSWORD_RESET_TTL": &c.PasswordResetTTL,
		"ADMIN_USERNAME":     &c.AdminUsername,
		"ADMIN_PASSWORD":     &c.AdminPassword,
	}
	for key, field := range strs {
		if v, ok := get(key); ok {
			*field = ptrString(v)
		}
	}
	ints := map[string]**int{
		"DEFAULT_HOUR": &c.DefaultHour,
		"MAX_VEHICLES": &c.MaxVehicles,
	}
	for key, field := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*field = ptrInt(n)
		}
	}
	floats := map[string]**float64{
		"FALLBACK_SLOPE":  &c.FallbackSlope,
		"FALLBACK_RADIUS": &c.FallbackRadius,
	}
	for key, field := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*field = ptrFloat64(f)
		}
	}
	if v, ok := get("SIMULATION_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSIMULATION_SEED: %w", EnvPrefix, err)
		}
		c.SimulationSeed = ptrUint64(seed)
	}
	if v, ok := get("ADMIN_ROUTES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sADMIN_ROUTES: %w", EnvPrefix, err)
		}
		c.AdminRoutes = ptrBool(b)
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	return c.Validate()
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Schema != nil {
		if _, err := features.SchemaByName(*c.Schema); err != nil {
			return err
		}
	}
	if c.DefaultHour != nil && (*c.DefaultHour < 0 || *c.DefaultHour > 23) {
		return fmt.Errorf("default_hour must be between 0 and 23, got %d", *c.DefaultHour)
	}
	if c.MaxVehicles != nil && *c.MaxVehicles < 1 {
		return fmt.Errorf("max_vehicles must be at least 1, got %d", *c.MaxVehicles)
	}
	for name, v := range map[string]*float64{"fallback_slope": c.FallbackSlope, "fallback_radius": c.FallbackRadius} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
			return fmt.Errorf("%s must be a non-negative number, got %v", name, *v)
		}
	}
	for name, v := range map[string]*string{
		"weather_timeout":    c.WeatherTimeout,
		"session_ttl":        c.SessionTTL,
		"password_reset_ttl": c.PasswordResetTTL,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "ghatsafe.db"
	}
	return *c.DBPath
}

func (c *Config) GetArtifactsDir() string {
	if c.ArtifactsDir == nil || *c.ArtifactsDir == "" {
		return "artifacts"
	}
	return *c.ArtifactsDir
}

// GetDatasetPath returns the historical dataset path; empty disables the
// dashboard, road catalogue and geometry table.
func (c *Config) GetDatasetPath() string {
	if c.DatasetPath == nil {
		return ""
	}
	return *c.DatasetPath
}

// GetSchema returns the configured feature schema, Base by default.
func (c *Config) GetSchema() features.Schema {
	if c.Schema == nil {
		return features.Base
	}
	s, err := features.SchemaByName(*c.Schema)
	if err != nil {
		return features.Base
	}
	return s
}

// GetDefaultHour returns the hour used when a time string does not parse.
func (c *Config) GetDefaultHour() int {
	if c.DefaultHour == nil {
		return timeutil.DefaultHour
	}
	return *c.DefaultHour
}

func (c *Config) GetMaxVehicles() int {
	if c.MaxVehicles == nil {
		return features.DefaultMaxVehicles
	}
	return *c.MaxVehicles
}

// GetFallbackGeometry returns the geometry used when neither the location
// nor the dataset can supply one.
func (c *Config) GetFallbackGeometry() features.Geometry {
	g := features.DefaultGeometry
	if c.FallbackSlope != nil {
		g.Slope = *c.FallbackSlope
	}
	if c.FallbackRadius != nil {
		g.Radius = *c.FallbackRadius
	}
	return g
}

// GetSimulationSeed returns the seed for the demo simulator and whether the
// simulator is enabled at all.
func (c *Config) GetSimulationSeed() (uint64, bool) {
	if c.SimulationSeed == nil {
		return 0, false
	}
	return *c.SimulationSeed, true
}

func (c *Config) GetWeatherURL() string {
	if c.WeatherURL == nil {
		return ""
	}
	return *c.WeatherURL
}

func (c *Config) GetWeatherTimeout() time.Duration {
	return parseDurationOr(c.WeatherTimeout, 2*time.Second)
}

func (c *Config) GetWeatherFallback() string {
	if c.WeatherFallback == nil || *c.WeatherFallback == "" {
		return "Clear"
	}
	return *c.WeatherFallback
}

func (c *Config) GetSessionTTL() time.Duration {
	return parseDurationOr(c.SessionTTL, 24*time.Hour)
}

// GetPasswordResetTTL returns how long a password reset token stays valid.
func (c *Config) GetPasswordResetTTL() time.Duration {
	return parseDurationOr(c.PasswordResetTTL, time.Hour)
}

// GetAdmin returns the seeded admin credentials. An empty username disables
// seeding.
func (c *Config) GetAdmin() (username, password string) {
	if c.AdminUsername != nil {
		username = *c.AdminUsername
	}
	if c.AdminPassword != nil {
		password = *c.AdminPassword
	}
	return username, password
}

func (c *Config) GetCORSOrigins() []string {
	if len(c.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return c.CORSOrigins
}

func (c *Config) GetAdminRoutes() bool {
	return c.AdminRoutes != nil && *c.AdminRoutes
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
