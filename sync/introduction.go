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

package sync

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sage-x-project/meshnet/internal/metrics"
)

// IntroTimeout is T_intro, the default lifetime of an outstanding
// introduction request's identifier reservation (spec §5 "Cancellation").
const IntroTimeout = 10500 * time.Millisecond

// identifierMask keeps Identifier values within the wire's 24-bit field.
const identifierMask = 1<<24 - 1

// PeerTable tracks the live candidates a community has observed, the
// source an introduction response picks from (spec §4.6 "Q picks one
// candidate from its live peer table").
type PeerTable struct {
	mu      sync.Mutex
	entries map[string]peerEntry
}

type peerEntry struct {
	candidate Candidate
	lastSeen  time.Time
}

// NewPeerTable creates an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{entries: make(map[string]peerEntry)}
}

// Observe records or refreshes a candidate, keyed by its WAN address.
func (t *PeerTable) Observe(c Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[c.WAN] = peerEntry{candidate: c, lastSeen: time.Now()}
}

// EvictStale removes candidates not observed within maxAge.
func (t *PeerTable) EvictStale(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for wan, e := range t.entries {
		if e.lastSeen.Before(cutoff) {
			delete(t.entries, wan)
		}
	}
}

// Len reports how many candidates the table currently holds.
func (t *PeerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Pick chooses one candidate to introduce requester to: it must never be
// requester itself, and it prefers a tunnel-flag match with requester's
// own flag when requester is not tunnelled (spec §4.6 "preferring a peer
// matching P's tunnel flag when P is not tunnelled... must never
// introduce P to itself"). Reports false when the table has no eligible
// candidate.
func (t *PeerTable) Pick(requester Candidate) (Candidate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var eligible []Candidate
	var tunnelMatch []Candidate
	for wan, e := range t.entries {
		if wan == requester.WAN {
			continue
		}
		eligible = append(eligible, e.candidate)
		if !requester.Tunnel && e.candidate.Tunnel == requester.Tunnel {
			tunnelMatch = append(tunnelMatch, e.candidate)
		}
	}

	pool := eligible
	if len(tunnelMatch) > 0 {
		pool = tunnelMatch
	}
	if len(pool) == 0 {
		return Candidate{}, false
	}
	return pool[rand.Intn(len(pool))], true
}

// RandomWalk returns up to n distinct candidates from the table, excluding
// self, for a periodic introduction-request driver to send to.
func (t *PeerTable) RandomWalk(self Candidate, n int) []Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make([]Candidate, 0, len(t.entries))
	for wan, e := range t.entries {
		if wan == self.WAN {
			continue
		}
		all = append(all, e.candidate)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// IdentifierCache reserves outstanding introduction-request identifiers and
// frees them after IntroTimeout (spec §5 "expired identifiers free their
// reservation in the candidate cache").
type IdentifierCache struct {
	mu      sync.Mutex
	next    uint32
	pending map[uint32]time.Time
}

// NewIdentifierCache creates an empty cache.
func NewIdentifierCache() *IdentifierCache {
	return &IdentifierCache{pending: make(map[uint32]time.Time)}
}

// Reserve allocates a fresh 24-bit identifier, skipping any still pending.
func (c *IdentifierCache) Reserve() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	for {
		id := c.next & identifierMask
		c.next++
		if _, busy := c.pending[id]; !busy {
			c.pending[id] = time.Now().Add(IntroTimeout)
			metrics.IntroductionRequestsTotal.WithLabelValues("request").Inc()
			return id
		}
	}
}

// Release frees id immediately, e.g. once its response has arrived.
func (c *IdentifierCache) Release(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		metrics.IntroductionRequestsTotal.WithLabelValues("response").Inc()
	}
	delete(c.pending, id)
}

// Pending reports whether id is still reserved and not yet expired.
func (c *IdentifierCache) Pending(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	_, ok := c.pending[id]
	return ok
}

func (c *IdentifierCache) sweepLocked() {
	now := time.Now()
	for id, deadline := range c.pending {
		if now.After(deadline) {
			delete(c.pending, id)
			metrics.IntroductionRequestsTotal.WithLabelValues("timeout").Inc()
		}
	}
}
