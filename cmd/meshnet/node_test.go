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

package main

import (
	"path/filepath"
	"testing"

	"github.com/sage-x-project/meshnet/config"
)

func TestGenerateMemberRoundTripsThroughSeed(t *testing.T) {
	for _, keyType := range []string{"ed25519", "secp256k1"} {
		t.Run(keyType, func(t *testing.T) {
			m, seed, err := generateMember(keyType)
			if err != nil {
				t.Fatalf("generateMember(%q) = %v", keyType, err)
			}

			reloaded, err := memberFromSeed(keyType, seed)
			if err != nil {
				t.Fatalf("memberFromSeed(%q) = %v", keyType, err)
			}

			if reloaded.MID != m.MID {
				t.Errorf("reloaded member id = %s, want %s", reloaded.MID, m.MID)
			}
			if string(reloaded.PublicKey) != string(m.PublicKey) {
				t.Errorf("reloaded public key mismatch for %s", keyType)
			}
			if !reloaded.CanSign() {
				t.Errorf("reloaded %s member should be able to sign", keyType)
			}
		})
	}
}

func TestGenerateMemberRejectsUnknownKeyType(t *testing.T) {
	if _, _, err := generateMember("rot13"); err == nil {
		t.Fatal("expected an error for an unknown key type")
	}
}

func TestLoadOrGenerateMemberPersistsAndReloads(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "node.key")

	first, err := loadOrGenerateMember(keyFile, "ed25519")
	if err != nil {
		t.Fatalf("loadOrGenerateMember (generate) = %v", err)
	}

	second, err := loadOrGenerateMember(keyFile, "ed25519")
	if err != nil {
		t.Fatalf("loadOrGenerateMember (reload) = %v", err)
	}

	if first.MID != second.MID {
		t.Errorf("reloaded identity changed: %s != %s", first.MID, second.MID)
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := openStore(nil, &config.StorageConfig{Driver: "sqlite"})
	if err == nil {
		t.Fatal("expected an error for an unknown storage driver")
	}
}

func TestBuildLoggerDefaultsToInfo(t *testing.T) {
	log := buildLogger(&config.LoggingConfig{Level: "not-a-level", Output: "stdout"})
	if log.GetLevel().String() != "INFO" {
		t.Errorf("level = %s, want INFO", log.GetLevel())
	}
}
