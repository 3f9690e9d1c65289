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

import "fmt"

// ValidationError is one configuration problem found by ValidateConfiguration.
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error", "warning", "info"
}

// ValidateConfiguration checks cfg for problems, returning every issue found
// regardless of level; callers decide which levels are fatal.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Storage != nil {
		errs = append(errs, validateStorageConfig(cfg.Storage)...)
	}
	if cfg.Sync != nil {
		errs = append(errs, validateSyncConfig(cfg.Sync)...)
	}
	errs = append(errs, validateEnvironment(cfg.Environment)...)

	return errs
}

func validateStorageConfig(cfg *StorageConfig) []ValidationError {
	var errs []ValidationError
	switch cfg.Driver {
	case "memory":
	case "postgres":
		if cfg.DSN == "" {
			errs = append(errs, ValidationError{
				Field: "Storage.DSN", Message: "DSN is required for the postgres driver", Level: "error",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field: "Storage.Driver", Message: fmt.Sprintf("unknown driver %q", cfg.Driver), Level: "error",
		})
	}
	return errs
}

func validateSyncConfig(cfg *SyncConfig) []ValidationError {
	var errs []ValidationError
	if cfg.IntroTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field: "Sync.IntroTimeout", Message: "must be positive", Level: "error",
		})
	}
	if cfg.SigTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field: "Sync.SigTimeout", Message: "must be positive", Level: "error",
		})
	}
	if cfg.RepairLimit <= 0 {
		errs = append(errs, ValidationError{
			Field: "Sync.RepairLimit", Message: "must be positive, repair replies would be unthrottled", Level: "warning",
		})
	}
	return errs
}

func validateEnvironment(env string) []ValidationError {
	switch env {
	case "development", "staging", "production", "local", "":
		return nil
	default:
		return []ValidationError{{
			Field: "Environment", Message: fmt.Sprintf("unrecognized environment %q", env), Level: "warning",
		}}
	}
}
