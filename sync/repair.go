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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/internal/metrics"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/timeline"
)

// maxSequenceReplay caps how many packets a single missing-sequence
// request can pull out of the store, per spec §4.6 "throttled to avoid
// amplification".
const maxSequenceReplay = 256

// Throttle limits how often this node answers repeated repair requests
// from the same member, so a misbehaving or merely eager peer can't turn
// repair traffic into an amplification vector.
type Throttle struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	counters map[member.MID][]time.Time
}

// NewThrottle allows at most limit repair replies to the same member
// within window.
func NewThrottle(window time.Duration, limit int) *Throttle {
	return &Throttle{window: window, limit: limit, counters: make(map[member.MID][]time.Time)}
}

// Allow reports whether a repair reply to m is currently permitted, and
// records the attempt if so.
func (t *Throttle) Allow(m member.MID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-t.window)
	kept := t.counters[m][:0]
	for _, at := range t.counters[m] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= t.limit {
		t.counters[m] = kept
		return false
	}
	t.counters[m] = append(kept, now)
	return true
}

// ResolveMissingIdentity answers dispersy-missing-identity: the stored
// dispersy-identity packet for req.Member, if any.
func ResolveMissingIdentity(ctx context.Context, c *community.Community, req MissingIdentityPayload) ([][]byte, error) {
	metrics.RepairRequestsTotal.WithLabelValues("identity").Inc()
	memberID, ok := c.LookupMemberRowID(req.Member)
	if !ok {
		return nil, nil
	}
	identityMetaID, ok := c.MetaRowID(meta.NameIdentity)
	if !ok {
		return nil, fmt.Errorf("sync: missing identity: identity meta not registered")
	}
	rows, err := c.Store.ByLastNKey(ctx, identityMetaID, memberID, 0)
	if err != nil {
		return nil, fmt.Errorf("sync: missing identity: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return [][]byte{rows[0].Packet}, nil
}

// ResolveMissingMessage answers dispersy-missing-message: every stored
// packet for req.Member at the requested global times, or, when
// GlobalTimes is empty, every packet known for that member across every
// registered meta.
func ResolveMissingMessage(ctx context.Context, c *community.Community, req MissingMessagePayload) ([][]byte, error) {
	metrics.RepairRequestsTotal.WithLabelValues("message").Inc()
	memberID, ok := c.LookupMemberRowID(req.Member)
	if !ok {
		return nil, nil
	}

	var out [][]byte
	if len(req.GlobalTimes) > 0 {
		for _, gt := range req.GlobalTimes {
			row, err := c.Store.GetByKey(ctx, c.RowID(), memberID, gt)
			if err != nil {
				continue
			}
			out = append(out, row.Packet)
		}
		return out, nil
	}
	for _, name := range c.Registry.Names() {
		metaID, ok := c.MetaRowID(name)
		if !ok {
			continue
		}
		rows, err := c.Store.Range(ctx, metaID, 0, ^uint64(0), 0, 0, store.DirectionASC)
		if err != nil {
			return nil, fmt.Errorf("sync: missing message: range: %w", err)
		}
		for _, r := range rows {
			if r.Member == memberID {
				out = append(out, r.Packet)
			}
		}
	}
	return out, nil
}

// ResolveMissingSequence answers dispersy-missing-sequence: every stored
// packet for req.Member/req.MetaName with a sequence number in
// [req.Low, req.High], capped at maxSequenceReplay.
func ResolveMissingSequence(ctx context.Context, c *community.Community, req MissingSequencePayload) ([][]byte, error) {
	metrics.RepairRequestsTotal.WithLabelValues("sequence").Inc()
	memberID, ok := c.LookupMemberRowID(req.Member)
	if !ok {
		return nil, nil
	}
	metaID, ok := c.MetaRowID(req.MetaName)
	if !ok {
		return nil, fmt.Errorf("sync: missing sequence: unknown meta %q", req.MetaName)
	}

	rows, err := c.Store.Range(ctx, metaID, 0, ^uint64(0), 0, 0, store.DirectionASC)
	if err != nil {
		return nil, fmt.Errorf("sync: missing sequence: range: %w", err)
	}

	var out [][]byte
	for _, r := range rows {
		if r.Member != memberID || !r.HasSequence {
			continue
		}
		if r.Sequence < req.Low || r.Sequence > req.High {
			continue
		}
		out = append(out, r.Packet)
		if len(out) >= maxSequenceReplay {
			break
		}
	}
	return out, nil
}

// ResolveMissingProof answers dispersy-missing-proof: the chain of
// authorize messages that grant req.Member permission to post req.MetaName
// as of req.GlobalTime, walked from the Timeline and translated back into
// stored packets.
func ResolveMissingProof(ctx context.Context, c *community.Community, req MissingProofPayload) ([][]byte, error) {
	metrics.RepairRequestsTotal.WithLabelValues("proof").Inc()
	ok, chain := c.Timeline.Check(req.Member, req.MetaName, timeline.ActionPermit, req.GlobalTime)
	if !ok || len(chain) == 0 {
		return nil, nil
	}

	out := make([][]byte, 0, len(chain))
	for _, p := range chain {
		row, err := c.Store.GetByID(ctx, p.GrantMessageID)
		if err != nil {
			continue
		}
		out = append(out, row.Packet)
	}
	return out, nil
}
