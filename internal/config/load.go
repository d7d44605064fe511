// internal/config/load.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration: defaults, then the YAML file at path
// (if any), then environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, env LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, env LookupFunc) error {
	if env == nil {
		return nil
	}
	k := &cfg.Keeper

	if v, ok := env("MAGMANODE_SERVER_URL"); ok && strings.TrimSpace(v) != "" {
		k.Target.URL = v
	}
	if v, ok := env("MAGMANODE_COOKIES_JSON"); ok && strings.TrimSpace(v) != "" {
		k.Credentials.CookiesJSON = v
	}
	if v, ok := env("MAGMANODE_UA"); ok && strings.TrimSpace(v) != "" {
		k.Browser.UserAgent = strings.TrimSpace(v)
	}
	if v, ok := env("CHROME_BIN"); ok && strings.TrimSpace(v) != "" {
		k.Browser.Bin = strings.TrimSpace(v)
	}
	if v, ok := env("LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		k.Telemetry.LogLevel = strings.TrimSpace(v)
	}

	if v, ok := env("CHECK_MIN_MINUTES"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: CHECK_MIN_MINUTES: %w", err)
		}
		k.Schedule.MinMinutes = f
	}
	if v, ok := env("CHECK_MAX_MINUTES"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: CHECK_MAX_MINUTES: %w", err)
		}
		k.Schedule.MaxMinutes = f
	}

	if v, ok := env("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("config: PORT %q is not a valid port", v)
		}
		k.API.Listen = ":" + strconv.Itoa(port)
	}

	return nil
}

// Cookies returns the raw cookie export, reading CookiesFile if needed.
func (c CredentialsConfig) Cookies() (string, error) {
	if strings.TrimSpace(c.CookiesJSON) != "" {
		return c.CookiesJSON, nil
	}
	if c.CookiesFile == "" {
		return "", nil
	}
	raw, err := os.ReadFile(c.CookiesFile)
	if err != nil {
		return "", fmt.Errorf("config: read cookies file: %w", err)
	}
	return string(raw), nil
}
