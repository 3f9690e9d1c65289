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

// Package dispatcher demultiplexes inbound wire packets to the community
// they belong to and drives the candidate walk that keeps the overlay
// connected. A packet's first MIDSize bytes are always its community id
// (codec.Encode writes them first, ahead of anything that needs a
// registry to interpret), so routing never requires decoding a packet
// whose community isn't loaded yet.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/internal/metrics"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/pipeline"
	syncpkg "github.com/sage-x-project/meshnet/sync"
)

// Registration binds one loaded community to its pipeline.
type Registration struct {
	Community *community.Community
	Pipeline  *pipeline.Pipeline
}

// Loader opens (or auto-loads) the community for a cid this Dispatcher does
// not currently hold a Registration for. It returns ok=false when the cid is
// genuinely unknown to this node.
type Loader func(ctx context.Context, cid member.MID) (*Registration, bool, error)

// delayedPacket is a packet received before its community finished loading.
type delayedPacket struct {
	packet   []byte
	queuedAt time.Time
}

// maxDelayedPerCID caps how many packets this node will hold for a single
// cid awaiting its community to load, per spec "throttled to avoid
// amplification" applied to the delay queue itself.
const maxDelayedPerCID = 64

// delayedTTL bounds how long a delayed packet is retained before it is
// dropped as stale.
const delayedTTL = 30 * time.Second

// Dispatcher routes inbound packets to the right community's pipeline.
type Dispatcher struct {
	log    logger.Logger
	loader Loader

	mu      sync.Mutex
	regs    map[member.MID]*Registration
	delayed map[member.MID][]delayedPacket
	unknown *syncpkg.Throttle
}

// New creates a Dispatcher with no loaded communities. loader may be nil, in
// which case an unregistered cid is always treated as unknown.
func New(loader Loader, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		log:     log,
		loader:  loader,
		regs:    make(map[member.MID]*Registration),
		delayed: make(map[member.MID][]delayedPacket),
		unknown: syncpkg.NewThrottle(time.Minute, 20),
	}
}

// Register attaches a loaded community/pipeline pair and flushes any packets
// that had been queued awaiting it.
func (d *Dispatcher) Register(reg *Registration) {
	d.mu.Lock()
	cid := reg.Community.CID
	d.regs[cid] = reg
	queued := d.delayed[cid]
	delete(d.delayed, cid)
	d.mu.Unlock()

	for _, dp := range queued {
		if time.Since(dp.queuedAt) > delayedTTL {
			continue
		}
		if _, err := reg.Pipeline.Ingest(context.Background(), dp.packet); err != nil {
			d.log.Warn("dispatch: replay of queued packet failed", logger.Error(err))
		}
	}
	metrics.DispatchDelayedQueueSize.Set(float64(d.delayedLen()))
}

// Unregister drops a community's registration, e.g. after a destroy.
func (d *Dispatcher) Unregister(cid member.MID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.regs, cid)
	delete(d.delayed, cid)
}

// Dispatch routes packet to its community's pipeline. When the community
// isn't registered yet, it consults the Loader; failing that, it queues the
// packet (bounded) for replay once the community registers, or drops it if
// the per-cid unknown-cid request rate is being abused.
func (d *Dispatcher) Dispatch(ctx context.Context, packet []byte) (pipeline.Result, error) {
	if len(packet) < member.MIDSize {
		return pipeline.Result{}, fmt.Errorf("dispatcher: packet too short for a community id: %d bytes", len(packet))
	}
	var cid member.MID
	copy(cid[:], packet[:member.MIDSize])

	d.mu.Lock()
	reg, ok := d.regs[cid]
	d.mu.Unlock()
	if ok {
		metrics.DispatchOutcomes.WithLabelValues("loaded").Inc()
		return reg.Pipeline.Ingest(ctx, packet)
	}

	if d.loader != nil {
		loaded, found, err := d.loader(ctx, cid)
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("dispatcher: auto-load: %w", err)
		}
		if found {
			d.Register(loaded)
			metrics.DispatchOutcomes.WithLabelValues("auto_loaded").Inc()
			return loaded.Pipeline.Ingest(ctx, packet)
		}
	}

	if !d.unknown.Allow(cid) {
		metrics.DispatchOutcomes.WithLabelValues("throttled").Inc()
		return pipeline.Result{}, fmt.Errorf("dispatcher: unknown community %s throttled", cid)
	}

	d.queue(cid, packet)
	metrics.DispatchOutcomes.WithLabelValues("queued").Inc()
	return pipeline.Result{Outcome: pipeline.OutcomePendingIdentity}, nil
}

func (d *Dispatcher) queue(cid member.MID, packet []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.delayed[cid]
	if len(q) >= maxDelayedPerCID {
		q = q[1:]
	}
	d.delayed[cid] = append(q, delayedPacket{packet: packet, queuedAt: time.Now()})
	metrics.DispatchDelayedQueueSize.Set(float64(d.delayedLenLocked()))
}

func (d *Dispatcher) delayedLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delayedLenLocked()
}

func (d *Dispatcher) delayedLenLocked() int {
	n := 0
	for _, q := range d.delayed {
		n += len(q)
	}
	return n
}
