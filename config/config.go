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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a meshnet node.
type Config struct {
	Environment string            `yaml:"environment" json:"environment"`
	Node        *NodeConfig       `yaml:"node" json:"node"`
	Storage     *StorageConfig    `yaml:"storage" json:"storage"`
	Sync        *SyncConfig       `yaml:"sync" json:"sync"`
	Bootstrap   *BootstrapConfig  `yaml:"bootstrap" json:"bootstrap"`
	Admin       *AdminConfig      `yaml:"admin" json:"admin"`
	Logging     *LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// NodeConfig identifies this node and its listening address.
type NodeConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	KeyType    string `yaml:"key_type" json:"key_type"` // ed25519 or secp256k1
	KeyFile    string `yaml:"key_file" json:"key_file"`
}

// StorageConfig selects and configures a store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"` // memory or postgres
	DSN    string `yaml:"dsn" json:"dsn"`
}

// SyncConfig tunes anti-entropy timing and thresholds.
type SyncConfig struct {
	IntroTimeout    time.Duration `yaml:"intro_timeout" json:"intro_timeout"`
	SigTimeout      time.Duration `yaml:"sig_timeout" json:"sig_timeout"`
	WalkInterval    time.Duration `yaml:"walk_interval" json:"walk_interval"`
	CandidateTTL    time.Duration `yaml:"candidate_ttl" json:"candidate_ttl"`
	RepairWindow    time.Duration `yaml:"repair_window" json:"repair_window"`
	RepairLimit     int           `yaml:"repair_limit" json:"repair_limit"`
}

// BootstrapConfig lists the seed peers used to join the overlay.
type BootstrapConfig struct {
	Peers         []string      `yaml:"peers" json:"peers"`
	PeersFile     string        `yaml:"peers_file" json:"peers_file"`
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
}

// AdminConfig configures the operator-facing HTTP server.
type AdminConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	ListenAddr   string `yaml:"listen_addr" json:"listen_addr"`
	JWTSecretEnv string `yaml:"jwt_secret_env" json:"jwt_secret_env"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile reads and parses a config file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing the format by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Node == nil {
		cfg.Node = &NodeConfig{}
	}
	if cfg.Node.ListenAddr == "" {
		cfg.Node.ListenAddr = ":7070"
	}
	if cfg.Node.KeyType == "" {
		cfg.Node.KeyType = "ed25519"
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}

	if cfg.Sync == nil {
		cfg.Sync = &SyncConfig{}
	}
	if cfg.Sync.IntroTimeout == 0 {
		cfg.Sync.IntroTimeout = 10500 * time.Millisecond
	}
	if cfg.Sync.SigTimeout == 0 {
		cfg.Sync.SigTimeout = 10 * time.Second
	}
	if cfg.Sync.WalkInterval == 0 {
		cfg.Sync.WalkInterval = 5 * time.Second
	}
	if cfg.Sync.CandidateTTL == 0 {
		cfg.Sync.CandidateTTL = 5 * time.Minute
	}
	if cfg.Sync.RepairWindow == 0 {
		cfg.Sync.RepairWindow = time.Minute
	}
	if cfg.Sync.RepairLimit == 0 {
		cfg.Sync.RepairLimit = 20
	}

	if cfg.Bootstrap == nil {
		cfg.Bootstrap = &BootstrapConfig{}
	}
	if cfg.Bootstrap.RetryInterval == 0 {
		cfg.Bootstrap.RetryInterval = 300 * time.Second
	}

	if cfg.Admin == nil {
		cfg.Admin = &AdminConfig{}
	}
	if cfg.Admin.ListenAddr == "" {
		cfg.Admin.ListenAddr = ":7071"
	}
	if cfg.Admin.JWTSecretEnv == "" {
		cfg.Admin.JWTSecretEnv = "MESHNET_ADMIN_JWT_SECRET"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
