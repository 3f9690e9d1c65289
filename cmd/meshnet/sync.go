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
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect anti-entropy state",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-meta message counts for the configured node's community",
	RunE:  runSyncStatus,
}

var syncConfigDir string

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd)

	syncStatusCmd.Flags().StringVar(&syncConfigDir, "config-dir", "config", "directory holding environment config files")
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: syncConfigDir, EnvFile: ".env"})
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

	fmt.Printf("community:    %s\n", comm.CID)
	fmt.Printf("global time:  %d\n", comm.CurrentGlobalTime())
	fmt.Println("meta                              count")
	for _, name := range comm.Registry.Names() {
		metaID, ok := comm.MetaRowID(name)
		if !ok {
			continue
		}
		count, err := st.Count(ctx, metaID)
		if err != nil {
			return fmt.Errorf("meshnet: count %s: %w", name, err)
		}
		fmt.Printf("%-34s%d\n", name, count)
	}
	return nil
}
