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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/config"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/store/memory"
)

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "Create or inspect communities",
}

var communityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new community and print its id",
	RunE:  runCommunityCreate,
}

var communityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a community's state from its configured store",
	RunE:  runCommunityShow,
}

var (
	communityKeyFile        string
	communityKeyType        string
	communityClassification string
	communityConfigDir      string
)

func init() {
	rootCmd.AddCommand(communityCmd)
	communityCmd.AddCommand(communityCreateCmd)
	communityCmd.AddCommand(communityShowCmd)

	communityCreateCmd.Flags().StringVar(&communityKeyFile, "master-key-file", "", "key file for the new community's master identity; generated in memory if empty")
	communityCreateCmd.Flags().StringVar(&communityKeyType, "key-type", "ed25519", "master identity key type (ed25519, secp256k1)")
	communityCreateCmd.Flags().StringVar(&communityClassification, "classification", "OpenCommunity", "community classification")

	communityShowCmd.Flags().StringVar(&communityConfigDir, "config-dir", "config", "directory holding environment config files")
}

func runCommunityCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logger.NewDefaultLogger()

	master, err := loadOrGenerateMember(communityKeyFile, communityKeyType)
	if err != nil {
		return fmt.Errorf("meshnet: generate master identity: %w", err)
	}

	st := memory.New()
	cdc := codec.New()
	comm, err := community.Open(ctx, st, cdc, log, master, master, communityClassification, true)
	if err != nil {
		return fmt.Errorf("meshnet: open community: %w", err)
	}

	fmt.Printf("community id:     %s\n", comm.CID)
	fmt.Printf("master member id: %s\n", master.MID)
	fmt.Printf("classification:   %s\n", comm.Classification)
	return nil
}

func runCommunityShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: communityConfigDir, EnvFile: ".env"})
	if err != nil {
		return fmt.Errorf("meshnet: load config: %w", err)
	}

	log := buildLogger(cfg.Logging)
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("meshnet: open store: %w", err)
	}
	defer st.Close()

	local, err := loadOrGenerateMember(cfg.Node.KeyFile, cfg.Node.KeyType)
	if err != nil {
		return fmt.Errorf("meshnet: load node identity: %w", err)
	}

	cdc := codec.New()
	comm, err := community.Open(ctx, st, cdc, log, local, local, "OpenCommunity", true)
	if err != nil {
		return fmt.Errorf("meshnet: open community: %w", err)
	}

	fmt.Printf("community id:      %s\n", comm.CID)
	fmt.Printf("master member id:  %s\n", comm.Master)
	fmt.Printf("local member id:   %s\n", comm.Local)
	fmt.Printf("classification:    %s\n", comm.Classification)
	fmt.Printf("global time:       %d\n", comm.CurrentGlobalTime())
	fmt.Printf("registered metas:  %v\n", comm.Registry.Names())
	return nil
}
