package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	CrashDir       string  `toml:"crash_dir"`
	StateDir       string  `toml:"state_dir"`
	ServiceURL     string  `toml:"service_url"`
	ProductName    string  `toml:"product"`
	ProductVersion string  `toml:"product_version"`
	ClientID       string  `toml:"client_id"`
	MaxTries       int     `toml:"max_tries"`
	MaxAge         string  `toml:"max_age"`
	MaxGroups      int     `toml:"max_groups"`
	SweepInterval  string  `toml:"sweep_interval"`
	UploadInterval string  `toml:"upload_interval"`
	HTTPTimeout    string  `toml:"http_timeout"`
	UploadEnabled  *bool   `toml:"upload_enabled"`
	SampleRate     float64 `toml:"sample_rate"`
	MetricsAddr    string  `toml:"metrics_addr"`
	LogLevel       string  `toml:"log_level"`
	Watch          *bool   `toml:"watch"`
	Once           *bool   `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.crashship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if dir := DefaultStateDir(); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("crash-dir", fc.CrashDir, &cfg.CrashDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("product", fc.ProductName, &cfg.ProductName)
	s.setString("product-version", fc.ProductVersion, &cfg.ProductVersion)
	s.setString("client-id", fc.ClientID, &cfg.ClientID)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"max-age", fc.MaxAge, &cfg.MaxAge},
		{"sweep-interval", fc.SweepInterval, &cfg.SweepInterval},
		{"upload-interval", fc.UploadInterval, &cfg.UploadInterval},
		{"timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("max-tries", fc.MaxTries, &cfg.MaxTries)
	s.setInt("max-groups", fc.MaxGroups, &cfg.MaxGroups)
	s.setFloat("sample-rate", fc.SampleRate, &cfg.SampleRate)

	s.setBool("upload-enabled", fc.UploadEnabled, &cfg.UploadEnabled)
	s.setBool("watch", fc.Watch, &cfg.Watch)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
