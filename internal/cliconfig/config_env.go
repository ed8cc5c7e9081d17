package cliconfig

import "os"

// EnvPrefix prefixes every environment variable crashship reads.
const EnvPrefix = "CRASHSHIP_"

// ApplyEnvConfig applies configuration from environment variables (CRASHSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("crash-dir", env("CRASH_DIR"), &cfg.CrashDir)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("service-url", env("SERVICE_URL"), &cfg.ServiceURL)
	s.setString("product", env("PRODUCT"), &cfg.ProductName)
	s.setString("product-version", env("PRODUCT_VERSION"), &cfg.ProductVersion)
	s.setString("client-id", env("CLIENT_ID"), &cfg.ClientID)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("max-age", env("MAX_AGE"), &cfg.MaxAge); err != nil {
		return err
	}
	if err := s.setDuration("sweep-interval", env("SWEEP_INTERVAL"), &cfg.SweepInterval); err != nil {
		return err
	}
	if err := s.setDuration("upload-interval", env("UPLOAD_INTERVAL"), &cfg.UploadInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-tries", env("MAX_TRIES"), &cfg.MaxTries); err != nil {
		return err
	}
	if err := s.setIntFromString("max-groups", env("MAX_GROUPS"), &cfg.MaxGroups); err != nil {
		return err
	}
	if err := s.setFloatFromString("sample-rate", env("SAMPLE_RATE"), &cfg.SampleRate); err != nil {
		return err
	}

	s.setBoolFromString("upload-enabled", env("UPLOAD_ENABLED"), &cfg.UploadEnabled)
	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)
	s.setBoolFromString("once", env("ONCE"), &cfg.Once)

	return nil
}
