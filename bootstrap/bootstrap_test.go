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

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/internal/logger"
)

func TestResolveIPLiteralPassesThrough(t *testing.T) {
	b := New([]Address{{Host: "127.0.0.1", Port: 9000}}, logger.NewDefaultLogger())
	require.NoError(t, b.Resolve(context.Background()))
	require.True(t, b.AllResolved())

	candidates := b.Candidates()
	require.Len(t, candidates, 1)
	require.Equal(t, "127.0.0.1", candidates[0].IP)
	require.Equal(t, 9000, candidates[0].Port)
}

func TestResolveUnresolvableHostLeavesItUnresolved(t *testing.T) {
	b := New([]Address{{Host: "this-host-should-never-exist.invalid", Port: 9000}}, logger.NewDefaultLogger())
	require.NoError(t, b.Resolve(context.Background()))
	require.False(t, b.AllResolved())
	require.Empty(t, b.Candidates())
}

func TestResetClearsResolvedCandidates(t *testing.T) {
	b := New([]Address{{Host: "127.0.0.1", Port: 9000}}, logger.NewDefaultLogger())
	require.NoError(t, b.Resolve(context.Background()))
	require.True(t, b.AllResolved())

	b.Reset()
	require.False(t, b.AllResolved())
	require.Empty(t, b.Candidates())
}

func TestProgressReportsResolvedCount(t *testing.T) {
	b := New([]Address{{Host: "127.0.0.1", Port: 1}, {Host: "127.0.0.2", Port: 2}}, logger.NewDefaultLogger())
	resolved, total := b.Progress()
	require.Equal(t, 0, resolved)
	require.Equal(t, 2, total)

	require.NoError(t, b.Resolve(context.Background()))
	resolved, total = b.Progress()
	require.Equal(t, 2, resolved)
	require.Equal(t, 2, total)
}

func TestLoadAddressesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.txt")
	content := "# comment\n127.0.0.1 7070\n\nseed.example.com 7071\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	addrs := LoadAddressesFromFile(path)
	require.Equal(t, []Address{
		{Host: "127.0.0.1", Port: 7070},
		{Host: "seed.example.com", Port: 7071},
	}, addrs)
}

func TestLoadAddressesFromMissingFileReturnsEmpty(t *testing.T) {
	require.Empty(t, LoadAddressesFromFile("/does/not/exist"))
}

func TestStartStopDoesNotDeadlock(t *testing.T) {
	b := New([]Address{{Host: "127.0.0.1", Port: 9000}}, logger.NewDefaultLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	b.Stop()
	require.True(t, b.AllResolved())
}
