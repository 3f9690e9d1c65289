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
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig substitutes environment variables in a fixed set
// of cfg's string fields that plausibly carry ${...} references; other
// fields are left as loaded.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Storage != nil {
		cfg.Storage.DSN = SubstituteEnvVars(cfg.Storage.DSN)
	}
	if cfg.Node != nil {
		cfg.Node.KeyFile = SubstituteEnvVars(cfg.Node.KeyFile)
		cfg.Node.ListenAddr = SubstituteEnvVars(cfg.Node.ListenAddr)
	}
	if cfg.Bootstrap != nil {
		cfg.Bootstrap.PeersFile = SubstituteEnvVars(cfg.Bootstrap.PeersFile)
		for i, p := range cfg.Bootstrap.Peers {
			cfg.Bootstrap.Peers[i] = SubstituteEnvVars(p)
		}
	}
	if cfg.Admin != nil {
		cfg.Admin.ListenAddr = SubstituteEnvVars(cfg.Admin.ListenAddr)
		cfg.Admin.JWTSecretEnv = SubstituteEnvVars(cfg.Admin.JWTSecretEnv)
	}
	if cfg.Logging != nil {
		cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
		cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
		cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
	}
}

// GetEnvironment returns the current environment from MESHNET_ENV, falling
// back to ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	env := os.Getenv("MESHNET_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether the current environment is production.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether the current environment is development or
// local.
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
