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

// Package pipeline is the end-to-end ingress path for an incoming packet
// (spec §4.5): decode & verify, duplicate check, identity resolution,
// sequence handling, permission check, distribution accept/evict, persist,
// undo fold.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/distribution"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/internal/metrics"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/message"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/timeline"
)

// Outcome classifies how Ingest disposed of a packet, for callers that need
// to drive metrics or tests without inspecting error strings.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
	OutcomeRejectedBadSignature
	OutcomeRejectedPermission
	OutcomeRejectedDistribution
	OutcomePendingIdentity
	OutcomePendingSequence
	OutcomePendingProof
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejectedBadSignature:
		return "bad-signature"
	case OutcomeRejectedPermission:
		return "permission-denied"
	case OutcomeRejectedDistribution:
		return "distribution-reject"
	case OutcomePendingIdentity:
		return "pending-identity"
	case OutcomePendingSequence:
		return "pending-sequence"
	case OutcomePendingProof:
		return "pending-proof"
	default:
		return "accepted"
	}
}

// Result is what Ingest returns for a single packet.
type Result struct {
	Outcome Outcome
	Message *message.Message
	RowID   int64
}

// PendingIdentity is a message waiting on a missing creator identity
// (spec §9 "Deferred/inline-callbacks chains").
type PendingIdentity struct {
	Packet        []byte
	Creator       member.MID
	QueuedAt      time.Time
	LastRequested time.Time
}

// PendingSequence is a message waiting on a sequence-number gap to close.
type PendingSequence struct {
	Packet   []byte
	Member   member.MID
	MetaName string
	Low      uint64
	High     uint64
	QueuedAt time.Time
}

// PendingProof is a message suspended until the timeline can prove
// permission for it.
type PendingProof struct {
	Packet   []byte
	Member   member.MID
	MetaName string
	QueuedAt time.Time
}

// Hooks lets the sync/dispatcher layer react to pipeline events without the
// pipeline importing them back (avoids an import cycle and keeps the
// pipeline deaf to transport concerns).
type Hooks struct {
	OnMissingIdentity func(creator member.MID)
	OnMissingSequence func(m member.MID, metaName string, low, high uint64)
	OnMissingProof    func(m member.MID, metaName string, globalTime uint64)
	OnAccepted        func(msg *message.Message, rowID int64)
	OnSupersededReply func(rowID int64, toCandidate member.MID)
}

// Pipeline runs the nine ingress stages for one community.
type Pipeline struct {
	Community *community.Community
	Hooks     Hooks
	Log       logger.Logger

	mu              sync.Mutex
	pendingIdentity map[member.MID][]PendingIdentity
	pendingSequence map[sequenceGapKey][]PendingSequence
	pendingProof    map[proofKey][]PendingProof
}

type sequenceGapKey struct {
	member member.MID
	meta   string
}

type proofKey struct {
	member member.MID
	meta   string
}

// New creates a Pipeline over an already-open community.
func New(c *community.Community, hooks Hooks, log logger.Logger) *Pipeline {
	return &Pipeline{
		Community:       c,
		Hooks:           hooks,
		Log:             log,
		pendingIdentity: make(map[member.MID][]PendingIdentity),
		pendingSequence: make(map[sequenceGapKey][]PendingSequence),
		pendingProof:    make(map[proofKey][]PendingProof),
	}
}

// Ingest runs a single packet through every pipeline stage.
func (p *Pipeline) Ingest(ctx context.Context, packet []byte) (Result, error) {
	start := time.Now()
	res, err := p.ingest(ctx, packet)
	metrics.PipelineProcessingDuration.Observe(time.Since(start).Seconds())
	metrics.PipelineStageOutcomes.WithLabelValues("ingest", res.Outcome.String()).Inc()
	return res, err
}

func (p *Pipeline) ingest(ctx context.Context, packet []byte) (Result, error) {
	// Stage 2: decode & verify.
	msg, err := p.Community.Codec.Decode(p.Community.CID, p.Community.Registry, packet)
	if err != nil {
		metrics.PipelineDecodeErrors.WithLabelValues(decodeErrorKind(err)).Inc()
		if errors.Is(err, codec.ErrBadSignature) {
			return Result{Outcome: OutcomeRejectedBadSignature}, err
		}
		return Result{}, err
	}

	m, ok := p.Community.Registry.Get(msg.MetaName)
	if !ok {
		return Result{}, fmt.Errorf("pipeline: meta %q vanished from registry after decode", msg.MetaName)
	}

	creator := msg.Creator()
	creatorEntry := msg.Auth[0]
	creatorRowID, err := p.Community.ResolveMember(ctx, creator, creatorEntry.PublicKey, creatorEntry.KeyType)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: resolve creator: %w", err)
	}

	// Stage 3: duplicate check.
	if existing, err := p.Community.Store.GetByKey(ctx, p.communityRowID(), creatorRowID, msg.GlobalTime); err == nil {
		if string(existing.Packet) == string(packet) {
			return Result{Outcome: OutcomeDuplicate, Message: msg, RowID: existing.ID}, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("pipeline: duplicate check: %w", err)
	}

	p.Community.Observe(msg.GlobalTime)

	// Stage 4: identity resolution. Our codec always carries the creator's
	// public key inline, so the signature is already verified; what spec
	// §4.5 stage 4 additionally requires is a recorded dispersy-identity
	// message for the creator before anything else of theirs is accepted.
	if msg.MetaName != meta.NameIdentity {
		if !p.hasIdentity(ctx, creator, creatorRowID) {
			p.queueIdentity(creator, packet)
			return Result{Outcome: OutcomePendingIdentity, Message: msg}, nil
		}
	}

	metaID, ok := p.Community.MetaRowID(msg.MetaName)
	if !ok {
		return Result{}, fmt.Errorf("pipeline: meta %q has no store row", msg.MetaName)
	}

	// Stage 5: sequence handling (cheap precheck, final decision at stage 7).
	if msg.HasSequence && m.Distribution.Kind.UsesSequenceNumbers() {
		delay, low, high, err := distribution.PrecheckSequence(ctx, p.Community.Store, metaID, creatorRowID, msg.SequenceNumber)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: sequence precheck: %w", err)
		}
		if delay {
			p.queueSequence(creator, msg.MetaName, low, high, packet)
			return Result{Outcome: OutcomePendingSequence, Message: msg}, nil
		}
	}

	// Stage 6: permission check.
	allowed, proof, err := p.checkPermission(msg, m)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: permission check: %w", err)
	}
	if !allowed {
		p.queueProof(creator, msg.MetaName, packet)
		return Result{Outcome: OutcomePendingProof, Message: msg}, nil
	}

	// Stage 7: distribution accept/evict.
	candidate := distribution.Candidate{
		MetaID:      metaID,
		Member1ID:   creatorRowID,
		GlobalTime:  msg.GlobalTime,
		Sequence:    msg.SequenceNumber,
		HasSequence: msg.HasSequence,
	}
	if msg.DoubleSigned() {
		secondRowID, err := p.Community.ResolveMember(ctx, msg.Auth[1].MID, msg.Auth[1].PublicKey, msg.Auth[1].KeyType)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: resolve second signer: %w", err)
		}
		candidate.Member2ID = secondRowID
	}

	outcome, err := distribution.Evaluate(ctx, p.Community.Store, m.Distribution, p.Community.CurrentGlobalTime(), candidate)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: distribution evaluate: %w", err)
	}
	if outcome.Delay {
		p.queueSequence(creator, msg.MetaName, msg.SequenceNumber, msg.SequenceNumber, packet)
		return Result{Outcome: OutcomePendingSequence, Message: msg}, nil
	}
	if !outcome.Accept {
		metrics.PipelineStageOutcomes.WithLabelValues("distribution", "reject").Inc()
		if outcome.SupersededByRowID != 0 && p.Hooks.OnSupersededReply != nil {
			p.Hooks.OnSupersededReply(outcome.SupersededByRowID, creator)
		}
		return Result{Outcome: OutcomeRejectedDistribution, Message: msg}, nil
	}

	// Stage 8: persist.
	rowID, err := p.persist(ctx, msg, metaID, creatorRowID)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: persist: %w", err)
	}
	for _, evictID := range outcome.EvictIDs {
		if err := p.Community.Store.DeleteByID(ctx, evictID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("pipeline: evict %d: %w", evictID, err)
		}
	}
	msg.RowID = rowID

	if m.Distribution.Normalized().Kind == meta.DistributionFullSyncWithPruning {
		if _, err := distribution.PruneSweep(ctx, p.Community.Store, metaID, m.Distribution, p.Community.CurrentGlobalTime()); err != nil {
			return Result{}, fmt.Errorf("pipeline: prune sweep: %w", err)
		}
	}

	p.foldIntoTimeline(ctx, msg, rowID)

	// Stage 9: undo fold.
	if err := p.applyUndo(ctx, msg, rowID); err != nil {
		return Result{}, fmt.Errorf("pipeline: undo fold: %w", err)
	}

	if msg.MetaName == meta.NameDestroyCommunity {
		if err := p.applyDestroy(ctx, msg, rowID, proof); err != nil {
			return Result{}, fmt.Errorf("pipeline: destroy community: %w", err)
		}
	}

	if p.Hooks.OnAccepted != nil {
		p.Hooks.OnAccepted(msg, rowID)
	}
	metrics.PipelineStageOutcomes.WithLabelValues("persist", "accepted").Inc()

	p.retryPending(ctx, creator, msg.MetaName)
	return Result{Outcome: OutcomeAccepted, Message: msg, RowID: rowID}, nil
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, codec.ErrBadSignature):
		return "bad-signature"
	case errors.Is(err, codec.ErrUnknownMeta):
		return "unknown-meta"
	case errors.Is(err, codec.ErrTruncated):
		return "truncated"
	case errors.Is(err, codec.ErrCommunityMismatch):
		return "community-mismatch"
	default:
		return "other"
	}
}

func (p *Pipeline) communityRowID() int64 {
	return p.Community.RowID()
}

func (p *Pipeline) persist(ctx context.Context, msg *message.Message, metaID, creatorRowID int64) (int64, error) {
	row := store.SyncRow{
		Community:   p.communityRowID(),
		Member:      creatorRowID,
		GlobalTime:  msg.GlobalTime,
		MetaMessage: metaID,
		Packet:      msg.Packet,
		Sequence:    msg.SequenceNumber,
		HasSequence: msg.HasSequence,
	}

	var rowID int64
	err := p.Community.Store.WithTx(ctx, func(tx store.Store) error {
		id, err := tx.Put(ctx, row)
		if err != nil {
			return err
		}
		rowID = id

		if msg.DoubleSigned() {
			secondRowID, err := p.Community.ResolveMember(ctx, msg.Auth[1].MID, msg.Auth[1].PublicKey, msg.Auth[1].KeyType)
			if err != nil {
				return err
			}
			return tx.PutDoubleSigned(ctx, store.DoubleSignedRow{Sync: id, Member1: creatorRowID, Member2: secondRowID})
		}
		return nil
	})
	return rowID, err
}

func (p *Pipeline) hasIdentity(ctx context.Context, creator member.MID, creatorRowID int64) bool {
	identityMetaID, ok := p.Community.MetaRowID(meta.NameIdentity)
	if !ok {
		return true // identity meta not registered: nothing to wait on
	}
	rows, err := p.Community.Store.ByLastNKey(ctx, identityMetaID, creatorRowID, 0)
	if err != nil {
		return false
	}
	return len(rows) > 0
}

func (p *Pipeline) checkPermission(msg *message.Message, m meta.Meta) (bool, []timeline.Proof, error) {
	resolution := m.Resolution
	if resolution == meta.ResolutionDynamic {
		resolution = p.Community.Timeline.GetResolutionPolicy(msg.MetaName, msg.GlobalTime, m.Resolution)
	}
	if resolution == meta.ResolutionPublic {
		return true, nil, nil
	}

	creator := msg.Creator()
	switch msg.MetaName {
	case meta.NameAuthorize, meta.NameRevoke, meta.NameDynamicSettings:
		ok, proof := p.Community.Timeline.Check(creator, msg.MetaName, timeline.ActionAuthorize, msg.GlobalTime)
		return ok, proof, nil
	case meta.NameUndoOwn:
		return true, nil, nil
	case meta.NameUndoOther:
		ok, proof := p.Community.Timeline.Check(creator, msg.MetaName, timeline.ActionUndo, msg.GlobalTime)
		return ok, proof, nil
	default:
		ok, proof := p.Community.Timeline.Check(creator, msg.MetaName, timeline.ActionPermit, msg.GlobalTime)
		return ok, proof, nil
	}
}

func (p *Pipeline) foldIntoTimeline(ctx context.Context, msg *message.Message, rowID int64) {
	switch msg.MetaName {
	case meta.NameAuthorize, meta.NameRevoke:
		var payload message.AuthorizePayload
		if err := message.DecodePayload(msg.Payload, &payload); err != nil {
			p.Log.Error("pipeline: decode authorize payload", logger.Error(err))
			return
		}
		result := p.Community.Timeline.ApplyAuthorize(rowID, msg.Creator(), payload.Subject, payload.Meta,
			timeline.Action(payload.Action), msg.GlobalTime, msg.MetaName == meta.NameRevoke)
		if result.OutOfOrder {
			p.reevaluateDependents(ctx, payload.Meta, msg.GlobalTime, rowID)
		}
	case meta.NameDynamicSettings:
		var payload message.DynamicSettingsPayload
		if err := message.DecodePayload(msg.Payload, &payload); err != nil {
			p.Log.Error("pipeline: decode dynamic-settings payload", logger.Error(err))
			return
		}
		result := p.Community.Timeline.ApplyDynamicSettings(rowID, payload.Meta, meta.ResolutionPolicy(payload.Policy), msg.GlobalTime)
		if result.OutOfOrder {
			p.reevaluateDependents(ctx, payload.Meta, msg.GlobalTime, rowID)
		}
	}
}

// reevaluateDependents re-checks every stored message of metaName from
// fromGlobalTime+1 onward against the timeline's current state, undoing
// ones that have lost permission and redoing ones that have regained it
// (spec §4.2 "re-evaluation on out-of-order revocation"). causeRowID is
// attributed as the undoing message when a row newly loses permission.
func (p *Pipeline) reevaluateDependents(ctx context.Context, metaName string, fromGlobalTime uint64, causeRowID int64) {
	metaID, ok := p.Community.MetaRowID(metaName)
	if !ok {
		return
	}
	m, ok := p.Community.Registry.Get(metaName)
	if !ok {
		return
	}

	rows, err := p.Community.Store.Range(ctx, metaID, fromGlobalTime+1, math.MaxUint64, 0, 0, store.DirectionASC)
	if err != nil {
		p.Log.Error("pipeline: reevaluate dependents: range", logger.Error(err))
		return
	}

	for _, row := range rows {
		depMsg, err := p.Community.Codec.Decode(p.Community.CID, p.Community.Registry, row.Packet)
		if err != nil {
			continue
		}
		allowed, _, err := p.checkPermission(depMsg, m)
		if err != nil {
			p.Log.Error("pipeline: reevaluate dependents: check permission", logger.Error(err))
			continue
		}
		if allowed {
			p.Community.Timeline.Redo(row.ID)
			if row.Undone != 0 {
				if err := p.Community.Store.ClearUndone(ctx, row.ID); err != nil {
					p.Log.Error("pipeline: reevaluate dependents: clear undone", logger.Error(err))
				}
			}
		} else {
			p.Community.Timeline.Unapply(row.ID)
			if row.Undone == 0 {
				if err := p.Community.Store.MarkUndone(ctx, row.ID, causeRowID); err != nil {
					p.Log.Error("pipeline: reevaluate dependents: mark undone", logger.Error(err))
				}
			}
		}
	}
}

func (p *Pipeline) applyUndo(ctx context.Context, msg *message.Message, undoRowID int64) error {
	if msg.MetaName != meta.NameUndoOwn && msg.MetaName != meta.NameUndoOther {
		return nil
	}
	var payload message.UndoPayload
	if err := message.DecodePayload(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode undo payload: %w", err)
	}

	targetRowID, ok := p.Community.LookupMemberRowID(payload.TargetMember)
	if !ok {
		return nil // target member never observed; nothing to fold
	}
	target, err := p.Community.Store.GetByKey(ctx, p.communityRowID(), targetRowID, payload.TargetGlobalTime)
	if errors.Is(err, store.ErrNotFound) {
		return nil // target not seen yet; nothing to fold
	}
	if err != nil {
		return err
	}

	if target.Undone == 0 {
		if err := p.Community.Store.MarkUndone(ctx, target.ID, undoRowID); err != nil {
			return err
		}
		p.Community.Timeline.Unapply(target.ID)
		return nil
	}

	// The target already carries an undo; spec §8 scenario 4 resolves
	// concurrent undoes of the same target lexicographically by wire
	// packet, keeping whichever sorts lower as the target's undo and
	// marking the other undone by it.
	existing, err := p.Community.Store.GetByID(ctx, target.Undone)
	if err != nil {
		return fmt.Errorf("lookup existing undo %d: %w", target.Undone, err)
	}

	if string(msg.Packet) < string(existing.Packet) {
		if err := p.Community.Store.MarkUndone(ctx, target.ID, undoRowID); err != nil {
			return err
		}
		return p.Community.Store.MarkUndone(ctx, existing.ID, undoRowID)
	}
	return p.Community.Store.MarkUndone(ctx, undoRowID, existing.ID)
}

// applyDestroy implements the hard-kill half of spec §4.7: an accepted
// dispersy-destroy-community message wipes every stored message in the
// community except itself and the proof chain that authorized it.
func (p *Pipeline) applyDestroy(ctx context.Context, msg *message.Message, rowID int64, proof []timeline.Proof) error {
	var payload message.DestroyCommunityPayload
	if err := message.DecodePayload(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode destroy-community payload: %w", err)
	}
	if payload.Degree != message.DestroyHardKill {
		return nil
	}

	keep := make([]int64, 0, len(proof)+1)
	keep = append(keep, rowID)
	for _, pr := range proof {
		keep = append(keep, pr.GrantMessageID)
	}
	return p.Community.Destroy(ctx, keep)
}

func (p *Pipeline) queueIdentity(creator member.MID, packet []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.pendingIdentity[creator] = append(p.pendingIdentity[creator], PendingIdentity{Packet: packet, Creator: creator, QueuedAt: now, LastRequested: now})
	if p.Hooks.OnMissingIdentity != nil {
		p.Hooks.OnMissingIdentity(creator)
	}
}

func (p *Pipeline) queueSequence(m member.MID, metaName string, low, high uint64, packet []byte) {
	p.mu.Lock()
	key := sequenceGapKey{member: m, meta: metaName}
	p.pendingSequence[key] = append(p.pendingSequence[key], PendingSequence{Packet: packet, Member: m, MetaName: metaName, Low: low, High: high, QueuedAt: time.Now()})
	p.mu.Unlock()
	if p.Hooks.OnMissingSequence != nil {
		p.Hooks.OnMissingSequence(m, metaName, low, high)
	}
}

func (p *Pipeline) queueProof(m member.MID, metaName string, packet []byte) {
	p.mu.Lock()
	key := proofKey{member: m, meta: metaName}
	p.pendingProof[key] = append(p.pendingProof[key], PendingProof{Packet: packet, Member: m, MetaName: metaName, QueuedAt: time.Now()})
	p.mu.Unlock()
	if p.Hooks.OnMissingProof != nil {
		p.Hooks.OnMissingProof(m, metaName, 0)
	}
}

// retryPending re-ingests messages that were queued waiting on creator's
// identity or on a proof for metaName, now that an acceptance may have
// unblocked them.
func (p *Pipeline) retryPending(ctx context.Context, creator member.MID, metaName string) {
	p.mu.Lock()
	identityBatch := p.pendingIdentity[creator]
	delete(p.pendingIdentity, creator)

	var proofBatch []PendingProof
	for key, items := range p.pendingProof {
		if key.meta == metaName {
			proofBatch = append(proofBatch, items...)
			delete(p.pendingProof, key)
		}
	}
	p.mu.Unlock()

	for _, pending := range identityBatch {
		if _, err := p.ingest(ctx, pending.Packet); err != nil {
			p.Log.Error("pipeline: retry pending identity", logger.Error(err))
		}
	}
	for _, pending := range proofBatch {
		if _, err := p.ingest(ctx, pending.Packet); err != nil {
			p.Log.Error("pipeline: retry pending proof", logger.Error(err))
		}
	}
}

// DrainSequence retries every packet queued for (member, metaName) now that
// the gap [low, high] has been filled by a repair response.
func (p *Pipeline) DrainSequence(ctx context.Context, m member.MID, metaName string) {
	p.mu.Lock()
	key := sequenceGapKey{member: m, meta: metaName}
	batch := p.pendingSequence[key]
	delete(p.pendingSequence, key)
	p.mu.Unlock()

	for _, pending := range batch {
		if _, err := p.ingest(ctx, pending.Packet); err != nil {
			p.Log.Error("pipeline: drain pending sequence", logger.Error(err))
		}
	}
}
