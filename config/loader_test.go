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
	"path/filepath"
	"testing"
)

func TestLoadFallsBackToEmptyConfigWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Errorf("Environment = %q, want test", cfg.Environment)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver default = %q, want memory", cfg.Storage.Driver)
	}
}

func TestLoadPrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("environment: default\n"), 0644)
	os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("environment: staging\n"), 0644)

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("MESHNET_STORAGE_DRIVER", "postgres")
	os.Setenv("MESHNET_STORAGE_DSN", "postgres://override")
	defer os.Unsetenv("MESHNET_STORAGE_DRIVER")
	defer os.Unsetenv("MESHNET_STORAGE_DSN")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://override" {
		t.Errorf("Storage.DSN = %q, want postgres://override", cfg.Storage.DSN)
	}
}

func TestLoadFailsValidationOnUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.yaml"), []byte("storage:\n  driver: oracle\n"), 0644)

	if _, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test"}); err == nil {
		t.Error("Load() error = nil, want validation failure for unknown driver")
	}
}

func TestMustLoadPanicsOnError(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.yaml"), []byte("storage:\n  driver: oracle\n"), 0644)

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLoad did not panic on invalid config")
		}
	}()
	MustLoad(LoaderOptions{ConfigDir: dir, Environment: "test"})
}
