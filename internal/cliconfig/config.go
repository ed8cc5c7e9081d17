package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/crashship/internal/domain"
)

// Config holds CLI configuration for crashship.
type Config struct {
	CrashDir string
	StateDir string

	ServiceURL     string
	ProductName    string
	ProductVersion string
	ClientID       string

	MaxTries  int
	MaxAge    time.Duration
	MaxGroups int

	SweepInterval  time.Duration
	UploadInterval time.Duration
	HTTPTimeout    time.Duration

	UploadEnabled bool
	SampleRate    float64

	MetricsAddr string
	LogLevel    string
	Watch       bool
	Once        bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ProductName:    "crashship",
		MaxTries:       3,
		MaxAge:         30 * 24 * time.Hour,
		MaxGroups:      10,
		SweepInterval:  24 * time.Hour,
		UploadInterval: time.Hour,
		HTTPTimeout:    60 * time.Second,
		UploadEnabled:  true,
		SampleRate:     1.0,
		LogLevel:       "info",
		StateDir:       "", // Derived from the home directory during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
// Every error wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.CrashDir == "" {
		return invalid("crash-dir is required")
	}
	c.CrashDir = filepath.Clean(c.CrashDir)

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}

	if c.ServiceURL != "" {
		u, err := url.Parse(c.ServiceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("service-url %q is not an http(s) url", c.ServiceURL)
		}
	}

	if c.MaxTries <= 0 {
		return invalid("max-tries must be positive")
	}
	if c.MaxGroups <= 0 {
		return invalid("max-groups must be positive")
	}
	if c.MaxAge <= 0 {
		return invalid("max-age must be positive")
	}
	if c.SweepInterval <= 0 {
		return invalid("sweep interval must be positive")
	}
	if c.UploadInterval <= 0 {
		return invalid("upload interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return invalid("timeout must be positive")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return invalid("sample-rate must be within [0, 1]")
	}

	return nil
}

// ValidateUpload checks the settings only uploading commands need.
func (c *Config) ValidateUpload() error {
	if c.ServiceURL == "" {
		return invalid("service-url is required to upload")
	}
	if c.ProductName == "" {
		return invalid("product is required to upload")
	}
	return nil
}

// DefaultStateDir returns ~/.crashship, or "" if the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".crashship")
	}
	return ""
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
