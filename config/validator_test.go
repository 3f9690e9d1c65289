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

import "testing"

func TestValidateConfigurationRequiresDSNForPostgres(t *testing.T) {
	cfg := &Config{Storage: &StorageConfig{Driver: "postgres"}}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "Storage.DSN" && e.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected an error-level issue for missing postgres DSN")
	}
}

func TestValidateConfigurationAcceptsMemoryDriver(t *testing.T) {
	cfg := &Config{Storage: &StorageConfig{Driver: "memory"}}
	errs := ValidateConfiguration(cfg)
	for _, e := range errs {
		if e.Level == "error" {
			t.Errorf("unexpected error-level issue for memory driver: %s: %s", e.Field, e.Message)
		}
	}
}

func TestValidateConfigurationFlagsUnthrottledRepair(t *testing.T) {
	cfg := &Config{Sync: &SyncConfig{IntroTimeout: 1, SigTimeout: 1, RepairLimit: 0}}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "Sync.RepairLimit" && e.Level == "warning" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning-level issue for zero RepairLimit")
	}
}
