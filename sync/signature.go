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
	"bytes"
	"sync"
	"time"

	"github.com/sage-x-project/meshnet/internal/metrics"
)

// SigTimeout is T_sig, the default deadline an initiator waits for a
// dispersy-signature-response before giving up (spec §4.6).
const SigTimeout = 10 * time.Second

// SignatureHandler is invoked once per outstanding signature request,
// exactly once: with the responder's reply packet when one arrives before
// SigTimeout, with nil if it timed out, and modified reporting whether the
// responder's submessage differs from what was sent.
type SignatureHandler func(request []byte, response []byte, modified bool)

type pendingSignature struct {
	request   []byte
	handler   SignatureHandler
	timer     *time.Timer
	startedAt time.Time
}

// Exchange tracks outstanding double-member signature requests this node
// initiated, keyed by their 24-bit identifier, and fires each handler
// exactly once (spec §4.6 "the initiator timeouts after T_sig... and
// invokes the caller's response handler").
type Exchange struct {
	mu      sync.Mutex
	next    uint32
	pending map[uint32]*pendingSignature
}

// NewExchange creates an empty signature exchange tracker.
func NewExchange() *Exchange {
	return &Exchange{pending: make(map[uint32]*pendingSignature)}
}

// Request registers a new outstanding request and arms its timeout timer.
// It returns the identifier to embed in the outgoing
// dispersy-signature-request.
func (e *Exchange) Request(submessage []byte, handler SignatureHandler) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.next & identifierMask
	e.next++

	p := &pendingSignature{request: submessage, handler: handler, startedAt: time.Now()}
	p.timer = time.AfterFunc(SigTimeout, func() { e.complete(id, nil, false) })
	e.pending[id] = p
	return id
}

// Resolve delivers a dispersy-signature-response for identifier, invoking
// its handler with the response packet and whether it differs from the
// original request. A response for an unknown or already-resolved
// identifier (late, duplicate, or forged) is silently ignored.
func (e *Exchange) Resolve(identifier uint32, response []byte) {
	p, ok := e.take(identifier)
	if !ok {
		return
	}
	p.timer.Stop()
	metrics.SignatureRequestDuration.Observe(time.Since(p.startedAt).Seconds())
	p.handler(p.request, response, !bytes.Equal(p.request, response))
}

func (e *Exchange) complete(identifier uint32, response []byte, modified bool) {
	p, ok := e.take(identifier)
	if !ok {
		return
	}
	metrics.SignatureRequestDuration.Observe(time.Since(p.startedAt).Seconds())
	p.handler(p.request, response, modified)
}

func (e *Exchange) take(identifier uint32) (*pendingSignature, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[identifier]
	if ok {
		delete(e.pending, identifier)
	}
	return p, ok
}

// Outcome of a responder's decision on an incoming dispersy-signature-request.
type ResponderDecision int

const (
	// DecisionAccept signs submessage unchanged.
	DecisionAccept ResponderDecision = iota
	// DecisionRefuse declines to countersign; no response is sent.
	DecisionRefuse
	// DecisionModify countersigns a modified submessage, within the
	// request's declared split-payload boundaries.
	DecisionModify
)

// Responder is the caller-supplied policy a responder applies to incoming
// signature requests.
type Responder func(req SignatureRequestPayload) (decision ResponderDecision, modified []byte)
