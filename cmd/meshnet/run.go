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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/meshnet/admin"
	"github.com/sage-x-project/meshnet/bootstrap"
	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/config"
	"github.com/sage-x-project/meshnet/dispatcher"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/pipeline"
	syncpkg "github.com/sage-x-project/meshnet/sync"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a meshnet node",
	Long: `run starts a node: it loads configuration, opens (or creates) the
node's master community, wires the dispatcher and candidate walker, and
serves the admin HTTP surface until interrupted.`,
	RunE: runRun,
}

var (
	runConfigDir      string
	runClassification string
	runMasterKeyFile  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "config", "directory holding environment config files")
	runCmd.Flags().StringVar(&runClassification, "classification", "OpenCommunity", "classification of the community to host")
	runCmd.Flags().StringVar(&runMasterKeyFile, "master-key-file", "", "overrides the node key file for the community's master identity")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: runConfigDir, EnvFile: ".env"})
	if err != nil {
		return fmt.Errorf("meshnet: load config: %w", err)
	}

	log := buildLogger(cfg.Logging)
	log.Info("starting node", logger.String("environment", cfg.Environment), logger.String("listen_addr", cfg.Node.ListenAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("meshnet: open store: %w", err)
	}
	defer st.Close()

	keyFile := runMasterKeyFile
	if keyFile == "" {
		keyFile = cfg.Node.KeyFile
	}
	local, err := loadOrGenerateMember(keyFile, cfg.Node.KeyType)
	if err != nil {
		return fmt.Errorf("meshnet: load node identity: %w", err)
	}
	log.Info("node identity ready", logger.String("mid", local.MID.String()), logger.String("key_type", string(local.KeyType)))

	cdc := codec.New()
	comm, err := community.Open(ctx, st, cdc, log, local, local, runClassification, true)
	if err != nil {
		return fmt.Errorf("meshnet: open community: %w", err)
	}
	log.Info("community loaded", logger.String("cid", comm.CID.String()))

	hooks := pipeline.Hooks{}
	pl := pipeline.New(comm, hooks, log)

	disp := dispatcher.New(nil, log)
	disp.Register(&dispatcher.Registration{Community: comm, Pipeline: pl})

	table := syncpkg.NewPeerTable()
	self := syncpkg.Candidate{WAN: cfg.Node.ListenAddr, ConnectionType: "unknown"}
	walker := dispatcher.NewCandidateWalker(table, self, func(ctx context.Context, peer syncpkg.Candidate) {
		log.Debug("would send introduction-request", logger.String("peer", peer.WAN))
	}, log,
		dispatcher.WithWalkInterval(cfg.Sync.WalkInterval),
		dispatcher.WithCandidateTTL(cfg.Sync.CandidateTTL),
	)
	walker.Start(ctx)
	defer walker.Stop()

	seeds := bootstrap.DefaultAddresses()
	if cfg.Bootstrap.PeersFile != "" {
		if fromFile := bootstrap.LoadAddressesFromFile(cfg.Bootstrap.PeersFile); len(fromFile) > 0 {
			seeds = fromFile
		}
	}
	boot := bootstrap.New(seeds, log)
	boot.Start(ctx, cfg.Bootstrap.RetryInterval)
	defer boot.Stop()

	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		secret := []byte(os.Getenv(cfg.Admin.JWTSecretEnv))
		adminServer = admin.New(cfg.Admin.ListenAddr, secret, log)
		go func() {
			if err := adminServer.Start(ctx); err != nil {
				log.Error("admin server stopped", logger.Error(err))
			}
		}()
		log.Info("admin server listening", logger.String("addr", cfg.Admin.ListenAddr))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	cancel()
	return nil
}
