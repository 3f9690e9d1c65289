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
	"time"

	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/internal/metrics"
	syncpkg "github.com/sage-x-project/meshnet/sync"
)

// defaultWalkInterval is the cadence the walker fires introduction requests
// on, absent an explicit WalkInterval.
const defaultWalkInterval = 5 * time.Second

// defaultCandidateTTL is how long a candidate may go unobserved before
// CandidateWalker's periodic sweep evicts it.
const defaultCandidateTTL = 5 * time.Minute

// defaultWalkFanout is how many candidates one walk tick targets.
const defaultWalkFanout = 3

// IntroductionSender sends one dispersy-introduction-request to peer and is
// supplied by the transport layer; CandidateWalker only decides who to send
// to and when.
type IntroductionSender func(ctx context.Context, peer syncpkg.Candidate)

// CandidateWalker drives the random-walk cadence that keeps a community's
// peer table alive: on each tick it picks a handful of known candidates and
// asks the caller to send them an introduction request, and periodically
// evicts candidates that have gone quiet (spec.md §4.6 wire messages, walk
// cadence and decay per SUPPLEMENTED FEATURES / original_source walker
// tests).
type CandidateWalker struct {
	table    *syncpkg.PeerTable
	self     syncpkg.Candidate
	send     IntroductionSender
	interval time.Duration
	ttl      time.Duration
	fanout   int
	log      logger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// WalkerOption configures a CandidateWalker's cadence.
type WalkerOption func(*CandidateWalker)

// WithWalkInterval overrides the default tick interval.
func WithWalkInterval(d time.Duration) WalkerOption {
	return func(w *CandidateWalker) { w.interval = d }
}

// WithCandidateTTL overrides how long an unobserved candidate survives.
func WithCandidateTTL(d time.Duration) WalkerOption {
	return func(w *CandidateWalker) { w.ttl = d }
}

// WithFanout overrides how many candidates one tick targets.
func WithFanout(n int) WalkerOption {
	return func(w *CandidateWalker) { w.fanout = n }
}

// NewCandidateWalker builds a walker over table, sending introduction
// requests as self to candidates table already knows about.
func NewCandidateWalker(table *syncpkg.PeerTable, self syncpkg.Candidate, send IntroductionSender, log logger.Logger, opts ...WalkerOption) *CandidateWalker {
	w := &CandidateWalker{
		table:    table,
		self:     self,
		send:     send,
		interval: defaultWalkInterval,
		ttl:      defaultCandidateTTL,
		fanout:   defaultWalkFanout,
		log:      log,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the walk and eviction loop until ctx is cancelled or Stop is
// called. It is safe to call once per CandidateWalker.
func (w *CandidateWalker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

// Stop halts the walk loop and waits for it to exit.
func (w *CandidateWalker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *CandidateWalker) tick(ctx context.Context) {
	w.table.EvictStale(w.ttl)
	metrics.CandidateTableSize.Set(float64(w.table.Len()))
	peers := w.table.RandomWalk(w.self, w.fanout)
	for _, p := range peers {
		w.send(ctx, p)
	}
	if w.log != nil {
		w.log.Debug("candidate walk tick", logger.Int("sent", len(peers)))
	}
}
