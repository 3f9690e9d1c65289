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

	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/distribution"
	"github.com/sage-x-project/meshnet/internal/metrics"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
)

// Window carries the optional sync request an introduction can piggyback
// (spec §4.6 "an optional sync window (time_low, time_high, modulo,
// offset, bloom_filter)").
type Window struct {
	Low, High      uint64
	Modulo, Offset uint64
	Filter         *Filter
}

// storeDirection converts a Meta's Direction into store.Direction; the two
// enums are kept numerically identical so a plain conversion is exact, but
// spelling it out keeps the dependency direction (store never imports
// meta) honest at the call site.
func storeDirection(d meta.Direction) store.Direction {
	switch d {
	case meta.DirectionDESC:
		return store.DirectionDESC
	case meta.DirectionRANDOM:
		return store.DirectionRANDOM
	default:
		return store.DirectionASC
	}
}

// Resolve answers a Window request for one meta: rows within [Low, High]
// passing the modulo/offset partition, sorted per the meta's direction,
// restricted to rows the pruning window still classifies Active, and with
// anything the requester's bloom filter already claims to hold filtered
// out (spec §4.6 "Sync window semantics").
func Resolve(ctx context.Context, c *community.Community, metaName string, w Window) ([]store.SyncRow, error) {
	m, ok := c.Registry.Get(metaName)
	if !ok {
		return nil, fmt.Errorf("sync: resolve window: unknown meta %q", metaName)
	}
	metaID, ok := c.MetaRowID(metaName)
	if !ok {
		return nil, fmt.Errorf("sync: resolve window: meta %q not registered in store", metaName)
	}

	rows, err := c.Store.Range(ctx, metaID, w.Low, w.High, w.Modulo, w.Offset, storeDirection(m.Direction))
	if err != nil {
		return nil, fmt.Errorf("sync: resolve window: range: %w", err)
	}

	currentGT := c.CurrentGlobalTime()
	out := rows[:0]
	for _, r := range rows {
		if m.Distribution.Kind == meta.DistributionFullSyncWithPruning &&
			distribution.Classify(m.Distribution, currentGT, r.GlobalTime) != distribution.Active {
			continue
		}
		if w.Filter != nil && w.Filter.Test(r.Packet) {
			continue
		}
		out = append(out, r)
	}
	metrics.SyncRoundsTotal.WithLabelValues("response").Inc()
	return out, nil
}
