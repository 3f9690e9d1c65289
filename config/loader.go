// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// EnvFile is an optional .env file to load before resolving overrides.
	EnvFile string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load resolves a Config from, in increasing priority: an environment-
// specific file, defaults, ${VAR} substitution, and MESHNET_* environment
// overrides, then validates the result.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		if err := godotenv.Load(options.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load env file: %w", err)
		}
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFileCascade(options.ConfigDir, env)
	if err != nil {
		cfg = &Config{}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, e := range ValidateConfiguration(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("config: validation failed: %s: %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFileCascade tries, in order, <dir>/<env>.yaml, <dir>/default.yaml,
// and <dir>/config.yaml, and loads the first that exists. A parse error in
// that file is returned as is; the remaining candidates are not tried.
func loadConfigFileCascade(dir, env string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, env+".yaml"),
		filepath.Join(dir, "default.yaml"),
		filepath.Join(dir, "config.yaml"),
	}
	var lastErr error
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			lastErr = err
			continue
		}
		return LoadFromFile(path)
	}
	return nil, fmt.Errorf("config: no config file found under %s: %w", dir, lastErr)
}

// applyEnvironmentOverrides applies MESHNET_* environment variables over
// whatever the config file and ${VAR} substitution already produced; these
// take the highest priority.
func applyEnvironmentOverrides(cfg *Config) {
	if addr := os.Getenv("MESHNET_LISTEN_ADDR"); addr != "" {
		cfg.Node.ListenAddr = addr
	}
	if kt := os.Getenv("MESHNET_KEY_TYPE"); kt != "" {
		cfg.Node.KeyType = kt
	}
	if kf := os.Getenv("MESHNET_KEY_FILE"); kf != "" {
		cfg.Node.KeyFile = kf
	}

	if driver := os.Getenv("MESHNET_STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if dsn := os.Getenv("MESHNET_STORAGE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	if level := os.Getenv("MESHNET_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("MESHNET_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if v := os.Getenv("MESHNET_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("MESHNET_ADMIN_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Admin.Enabled = enabled
		}
	}
	if addr := os.Getenv("MESHNET_ADMIN_LISTEN_ADDR"); addr != "" {
		cfg.Admin.ListenAddr = addr
	}
}

// LoadForEnvironment loads the configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
