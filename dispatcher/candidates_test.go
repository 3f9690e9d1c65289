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

package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/internal/logger"
	syncpkg "github.com/sage-x-project/meshnet/sync"
)

func TestCandidateWalkerSendsToKnownPeers(t *testing.T) {
	table := syncpkg.NewPeerTable()
	table.Observe(syncpkg.Candidate{WAN: "peer-a:1", ConnectionType: "udp"})
	table.Observe(syncpkg.Candidate{WAN: "peer-b:1", ConnectionType: "udp"})
	self := syncpkg.Candidate{WAN: "self:1"}

	var mu sync.Mutex
	var sent []string
	send := func(ctx context.Context, peer syncpkg.Candidate) {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, peer.WAN)
	}

	w := NewCandidateWalker(table, self, send, logger.NewDefaultLogger(),
		WithWalkInterval(10*time.Millisecond), WithFanout(5))
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, sent)
}

func TestCandidateWalkerEvictsStaleCandidates(t *testing.T) {
	table := syncpkg.NewPeerTable()
	table.Observe(syncpkg.Candidate{WAN: "peer-a:1"})
	require.Equal(t, 1, table.Len())

	send := func(ctx context.Context, peer syncpkg.Candidate) {}
	w := NewCandidateWalker(table, syncpkg.Candidate{WAN: "self:1"}, send, logger.NewDefaultLogger(),
		WithCandidateTTL(time.Millisecond), WithWalkInterval(5*time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	w.Stop()

	require.Equal(t, 0, table.Len())
}
