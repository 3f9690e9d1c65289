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
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/sage-x-project/meshnet/config"
	"github.com/sage-x-project/meshnet/crypto/keys"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/store/memory"
	"github.com/sage-x-project/meshnet/store/postgres"
)

// buildLogger constructs a Logger from a node's logging configuration. The
// level name is matched case-insensitively; an unrecognized level falls
// back to info, matching setDefaults' own default.
func buildLogger(cfg *config.LoggingConfig) logger.Logger {
	level := logger.InfoLevel
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = logger.DebugLevel
	case "WARN":
		level = logger.WarnLevel
	case "ERROR":
		level = logger.ErrorLevel
	}

	output := os.Stdout
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			output = f
		}
	}

	return logger.NewLogger(output, level)
}

// openStore opens the store.Store backing a node, per its storage driver.
func openStore(ctx context.Context, cfg *config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "postgres", "postgresql":
		return postgres.NewStoreFromDSN(ctx, cfg.DSN, true)
	default:
		return nil, fmt.Errorf("meshnet: unknown storage driver %q", cfg.Driver)
	}
}

// loadOrGenerateMember loads a local member identity from keyFile, or
// generates and persists a fresh one there if it doesn't exist yet. An
// empty keyFile always generates an ephemeral identity.
func loadOrGenerateMember(keyFile, keyType string) (*member.Member, error) {
	if keyFile != "" {
		if data, err := os.ReadFile(keyFile); err == nil {
			return memberFromSeed(keyType, strings.TrimSpace(string(data)))
		}
	}

	m, seed, err := generateMember(keyType)
	if err != nil {
		return nil, err
	}
	if keyFile != "" {
		if err := writeKeyFile(keyFile, seed); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// writeKeyFile persists hex-encoded raw private key material, owner-only.
func writeKeyFile(path, seedHex string) error {
	if err := os.WriteFile(path, []byte(seedHex+"\n"), 0600); err != nil {
		return fmt.Errorf("meshnet: save key file: %w", err)
	}
	return nil
}

// generateMember creates a fresh member identity of the given key type and
// returns it alongside its hex-encoded raw private key material, the
// format loadOrGenerateMember and memberFromSeed round-trip through.
func generateMember(keyType string) (m *member.Member, seedHex string, err error) {
	switch strings.ToLower(keyType) {
	case "", "ed25519":
		kp, err := keys.GenerateEd25519KeyPair()
		if err != nil {
			return nil, "", err
		}
		pub, ok := kp.PublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, "", fmt.Errorf("meshnet: unexpected ed25519 public key type")
		}
		priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
		if !ok {
			return nil, "", fmt.Errorf("meshnet: unexpected ed25519 private key type")
		}
		return member.FromKeyPair(kp, []byte(pub)), hex.EncodeToString(priv), nil
	case "secp256k1":
		kp, err := keys.GenerateSecp256k1KeyPair()
		if err != nil {
			return nil, "", err
		}
		pub, ok := kp.PublicKey().(*ecdsa.PublicKey)
		if !ok {
			return nil, "", fmt.Errorf("meshnet: unexpected secp256k1 public key type")
		}
		priv, ok := kp.PrivateKey().(*ecdsa.PrivateKey)
		if !ok {
			return nil, "", fmt.Errorf("meshnet: unexpected secp256k1 private key type")
		}
		compressed := elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
		return member.FromKeyPair(kp, compressed), hex.EncodeToString(priv.D.FillBytes(make([]byte, 32))), nil
	default:
		return nil, "", fmt.Errorf("meshnet: unknown key type %q", keyType)
	}
}

// memberFromSeed reconstructs a member identity from the raw private key
// material saved by generateMember.
func memberFromSeed(keyType, seedHex string) (*member.Member, error) {
	raw, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("meshnet: decode key file: %w", err)
	}

	switch strings.ToLower(keyType) {
	case "", "ed25519":
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("meshnet: ed25519 key file has wrong length %d", len(raw))
		}
		kp, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(raw), "")
		if err != nil {
			return nil, err
		}
		pub, ok := kp.PublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("meshnet: unexpected ed25519 public key type")
		}
		return member.FromKeyPair(kp, []byte(pub)), nil
	case "secp256k1":
		priv := secp256k1.PrivKeyFromBytes(raw)
		kp, err := keys.NewSecp256k1KeyPair(priv, "")
		if err != nil {
			return nil, err
		}
		pub, ok := kp.PublicKey().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("meshnet: unexpected secp256k1 public key type")
		}
		compressed := elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
		return member.FromKeyPair(kp, compressed), nil
	default:
		return nil, fmt.Errorf("meshnet: unknown key type %q", keyType)
	}
}
