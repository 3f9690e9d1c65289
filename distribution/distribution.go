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

// Package distribution implements the accept/evict rules of spec §4.3:
// full-sync, full-sync-with-sequence, last-N and full-sync-with-pruning.
package distribution

import (
	"context"
	"fmt"

	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
)

// Outcome tells the pipeline what to do with an incoming message after it
// has passed duplicate, identity and permission checks (spec §4.5 stage 7).
type Outcome struct {
	// Accept is false when the message must be dropped without storing it
	// (a stale or superseded sequence/last-N arrival).
	Accept bool

	// Delay is true when the message cannot be judged yet (a sequence gap)
	// and must be queued pending a missing-sequence repair round-trip.
	Delay bool

	// EvictIDs lists store rows that must be removed once Accept commits,
	// e.g. the member the last-N slot pushed out, or pruned rows.
	EvictIDs []int64

	// SupersededByRowID signals that the dropped arrival should trigger a
	// proof-of-supersession reply carrying this existing row back to the
	// sender (spec §4.3 last-N "a proof message... may be sent back").
	SupersededByRowID int64

	Reason string
}

// Candidate is the minimal information distribution.Evaluate needs about an
// incoming message, expressed in store row ids so it never depends on the
// message or codec packages.
type Candidate struct {
	MetaID     int64
	Member1ID  int64 // creator, or first signer for double-member metas
	Member2ID  int64 // second signer; 0 for single-member metas
	GlobalTime uint64
	Sequence   uint64
	HasSequence bool
}

// Evaluate applies the Distribution policy attached to dist and returns what
// the pipeline should do with candidate. currentGT is the community's
// current global time, needed by full-sync-with-pruning.
func Evaluate(ctx context.Context, s store.Store, dist meta.Distribution, currentGT uint64, c Candidate) (Outcome, error) {
	dist = dist.Normalized()
	switch dist.Kind {
	case meta.DistributionFullSync:
		return Outcome{Accept: true}, nil
	case meta.DistributionFullSyncWithSequence:
		return evaluateSequence(ctx, s, c)
	case meta.DistributionLastN:
		return evaluateLastN(ctx, s, dist, c)
	case meta.DistributionFullSyncWithPruning:
		return evaluatePruning(dist, currentGT, c)
	default:
		return Outcome{}, fmt.Errorf("distribution: unknown kind %v", dist.Kind)
	}
}

func evaluateSequence(ctx context.Context, s store.Store, c Candidate) (Outcome, error) {
	last, _, found, err := s.LastSequence(ctx, c.MetaID, c.Member1ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("distribution: last sequence: %w", err)
	}

	if !found {
		if c.Sequence != 1 {
			// No prior messages: anything but the first sequence number is a
			// gap from the implicit baseline of 0.
			return Outcome{Delay: true, Reason: "sequence gap from baseline"}, nil
		}
		return Outcome{Accept: true}, nil
	}

	switch {
	case c.Sequence == last:
		// Same sequence number already known: either an exact duplicate
		// (handled earlier in the pipeline) or an equivocating conflict.
		// Keep whichever carries the lower global_time.
		existing, err := s.GetBySequence(ctx, c.MetaID, c.Member1ID, c.Sequence)
		if err != nil {
			return Outcome{}, fmt.Errorf("distribution: get by sequence: %w", err)
		}
		if c.GlobalTime < existing.GlobalTime {
			return Outcome{Accept: true, EvictIDs: []int64{existing.ID}, Reason: "equivocation resolved by lower global_time"}, nil
		}
		return Outcome{Accept: false, Reason: "superseded by earlier-dated equivocation"}, nil
	case c.Sequence < last:
		return Outcome{Accept: false, Reason: "stale sequence"}, nil
	case c.Sequence == last+1:
		return Outcome{Accept: true}, nil
	default:
		return Outcome{Delay: true, Reason: "sequence gap"}, nil
	}
}

func evaluateLastN(ctx context.Context, s store.Store, dist meta.Distribution, c Candidate) (Outcome, error) {
	n := dist.N
	if n < 1 {
		n = 1
	}

	rows, err := s.ByLastNKey(ctx, c.MetaID, c.Member1ID, c.Member2ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("distribution: by last-N key: %w", err)
	}
	// rows is newest global_time first.

	for _, r := range rows {
		if r.GlobalTime == c.GlobalTime {
			return Outcome{Accept: false, Reason: "duplicate global_time for last-N key"}, nil
		}
	}

	newest := int64(0)
	if len(rows) > 0 {
		newest = rows[0].ID
		if c.GlobalTime < rows[0].GlobalTime {
			return Outcome{Accept: false, SupersededByRowID: newest, Reason: "superseded by newer last-N entry"}, nil
		}
	}

	var evict []int64
	if len(rows) >= n {
		// Newer replaces the oldest retained entries down to N-1 survivors.
		for i := n - 1; i < len(rows); i++ {
			evict = append(evict, rows[i].ID)
		}
	}
	return Outcome{Accept: true, EvictIDs: evict}, nil
}

func evaluatePruning(dist meta.Distribution, currentGT uint64, c Candidate) (Outcome, error) {
	age := currentGT - c.GlobalTime
	if currentGT < c.GlobalTime {
		age = 0
	}
	if age >= dist.PruneThreshold {
		return Outcome{Accept: false, Reason: "outside pruning window at arrival"}, nil
	}
	return Outcome{Accept: true}, nil
}

// Classification reports where a stored row sits in a full-sync-with-pruning
// window (spec §4.3).
type Classification int

const (
	Active Classification = iota
	Inactive
	Pruned
)

func (c Classification) String() string {
	switch c {
	case Inactive:
		return "inactive"
	case Pruned:
		return "pruned"
	default:
		return "active"
	}
}

// Classify places a row's age (currentGT - globalTime) into the
// active/inactive/pruned window.
func Classify(dist meta.Distribution, currentGT, globalTime uint64) Classification {
	dist = dist.Normalized()
	if currentGT < globalTime {
		return Active
	}
	age := currentGT - globalTime
	switch {
	case age < dist.InactiveThreshold:
		return Active
	case age < dist.PruneThreshold:
		return Inactive
	default:
		return Pruned
	}
}

// PruneSweep scans every row of metaID and deletes the ones that have aged
// past PruneThreshold, returning how many were removed. Callers run this
// after advancing the community's global time (spec §4.3 "current_gt
// advances with each new accepted message").
func PruneSweep(ctx context.Context, s store.Store, metaID int64, dist meta.Distribution, currentGT uint64) (int, error) {
	dist = dist.Normalized()
	rows, err := s.Range(ctx, metaID, 0, currentGT, 0, 0, store.DirectionASC)
	if err != nil {
		return 0, fmt.Errorf("distribution: prune sweep range: %w", err)
	}

	removed := 0
	for _, r := range rows {
		if Classify(dist, currentGT, r.GlobalTime) != Pruned {
			continue
		}
		if err := s.DeleteByID(ctx, r.ID); err != nil {
			return removed, fmt.Errorf("distribution: prune delete %d: %w", r.ID, err)
		}
		removed++
	}
	return removed, nil
}
