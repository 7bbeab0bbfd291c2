// Package config handles CLI configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultProfileName is used when neither a flag nor the config file names
// a profile.
const DefaultProfileName = "default"

// Config represents the CLI configuration.
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds connection settings for one API deployment.
type Profile struct {
	BaseURL       string        `yaml:"base_url,omitempty"`
	TenantID      string        `yaml:"tenant_id,omitempty"`
	APIKeyRef     string        `yaml:"api_key_ref,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	StreamTimeout time.Duration `yaml:"stream_timeout,omitempty"`
	Retry         Retry         `yaml:"retry,omitempty"`
	RateLimit     float64       `yaml:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	LogLevel      string        `yaml:"log_level,omitempty"`
}

// Retry overrides the client retry policy. Zero values keep the defaults.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	BaseDelay   time.Duration `yaml:"base_delay,omitempty"`
}

// KeyName returns the keystore entry holding the profile's API key.
func (p Profile) KeyName(profile string) string {
	if p.APIKeyRef != "" {
		return p.APIKeyRef
	}
	return profile
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.showroom/config.yaml
// - Windows: %USERPROFILE%\.showroom\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".showroom", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Profiles: make(map[string]Profile),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return cfg, nil
}

// ProfileName resolves the effective profile name: the explicit name, then
// the configured default, then DefaultProfileName.
func (c *Config) ProfileName(name string) string {
	switch {
	case name != "":
		return name
	case c.DefaultProfile != "":
		return c.DefaultProfile
	default:
		return DefaultProfileName
	}
}

// Profile returns the named profile. An unknown profile is an error unless
// it is the implicit default, which yields an empty profile.
func (c *Config) Profile(name string) (Profile, error) {
	resolved := c.ProfileName(name)
	if p, ok := c.Profiles[resolved]; ok {
		return p, nil
	}
	if name == "" && c.DefaultProfile == "" {
		return Profile{}, nil
	}
	return Profile{}, fmt.Errorf("profile %q not found in config", resolved)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
