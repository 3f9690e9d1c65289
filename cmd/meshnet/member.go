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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage member identities",
}

var memberGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new member identity",
	RunE:  runMemberGenerate,
}

var (
	memberKeyType string
	memberKeyFile string
)

func init() {
	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberGenerateCmd)

	memberGenerateCmd.Flags().StringVar(&memberKeyType, "key-type", "ed25519", "key type to generate (ed25519, secp256k1)")
	memberGenerateCmd.Flags().StringVar(&memberKeyFile, "key-file", "", "write the private key material here; printed to stdout if empty")
}

func runMemberGenerate(cmd *cobra.Command, args []string) error {
	m, seed, err := generateMember(memberKeyType)
	if err != nil {
		return err
	}

	if memberKeyFile != "" {
		if err := writeKeyFile(memberKeyFile, seed); err != nil {
			return err
		}
		fmt.Printf("key file:   %s\n", memberKeyFile)
	} else {
		fmt.Printf("private key: %s\n", seed)
	}

	fmt.Printf("member id:  %s\n", m.MID)
	fmt.Printf("key type:   %s\n", m.KeyType)
	fmt.Printf("public key: %s\n", hex.EncodeToString(m.PublicKey))
	return nil
}
