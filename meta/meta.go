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

// Package meta describes the per-community message template (spec §3
// "Meta"): authentication, resolution, distribution and destination
// policies, plus the priority and synchronisation direction that the
// sync subsystem uses to order candidates.
package meta

import "time"

// AuthPolicy selects how many members must sign an instance of a Meta.
type AuthPolicy int

const (
	// AuthSingleMember requires exactly one signer.
	AuthSingleMember AuthPolicy = iota
	// AuthDoubleMember requires two signers, see codec's signature-slot rules.
	AuthDoubleMember
)

func (a AuthPolicy) String() string {
	if a == AuthDoubleMember {
		return "double-member"
	}
	return "single-member"
}

// ResolutionPolicy selects how the Timeline evaluates permission for a Meta.
type ResolutionPolicy int

const (
	// ResolutionPublic means every member may create this Meta; no timeline
	// lookup is performed.
	ResolutionPublic ResolutionPolicy = iota
	// ResolutionLinear means permission is governed by authorize/revoke
	// messages against per-triplet (member, meta, action) grants.
	ResolutionLinear
	// ResolutionDynamic means the effective policy itself can change over
	// time via dynamic-settings messages; the Timeline resolves the
	// currently effective policy at a given global time before applying it.
	ResolutionDynamic
)

func (r ResolutionPolicy) String() string {
	switch r {
	case ResolutionLinear:
		return "linear"
	case ResolutionDynamic:
		return "dynamic"
	default:
		return "public"
	}
}

// DistributionKind selects the storage/eviction policy for a Meta (spec §4.3).
type DistributionKind int

const (
	// DistributionFullSync keeps every accepted message, no eviction.
	DistributionFullSync DistributionKind = iota
	// DistributionFullSyncWithSequence additionally enforces the strict
	// successor property on (member, sequence_number).
	DistributionFullSyncWithSequence
	// DistributionLastN keeps at most N messages per distribution key.
	DistributionLastN
	// DistributionFullSyncWithPruning keeps a sliding active/inactive/pruned
	// window over global time.
	DistributionFullSyncWithPruning
)

func (d DistributionKind) String() string {
	switch d {
	case DistributionFullSyncWithSequence:
		return "full-sync-with-sequence"
	case DistributionLastN:
		return "last-N"
	case DistributionFullSyncWithPruning:
		return "full-sync-with-pruning"
	default:
		return "full-sync"
	}
}

// UsesSequenceNumbers reports whether messages of this kind carry a
// sequence number that the pipeline must gap-check (spec §4.5 stage 5).
func (d DistributionKind) UsesSequenceNumbers() bool {
	return d == DistributionFullSyncWithSequence
}

// Default pruning thresholds, spec §4.3.
const (
	DefaultInactiveThreshold uint64 = 10
	DefaultPruneThreshold    uint64 = 20
)

// Distribution fully parameterises a DistributionKind.
type Distribution struct {
	Kind DistributionKind

	// N is the retained-message count for DistributionLastN; must be >= 1.
	N int

	// InactiveThreshold and PruneThreshold parameterise
	// DistributionFullSyncWithPruning (spec §4.3). Zero means "use the
	// package default" when the kind requires it.
	InactiveThreshold uint64
	PruneThreshold    uint64
}

// Normalized returns a copy with pruning defaults filled in.
func (d Distribution) Normalized() Distribution {
	if d.Kind != DistributionFullSyncWithPruning {
		return d
	}
	if d.InactiveThreshold == 0 {
		d.InactiveThreshold = DefaultInactiveThreshold
	}
	if d.PruneThreshold == 0 {
		d.PruneThreshold = DefaultPruneThreshold
	}
	return d
}

// DestinationPolicy selects who a message is addressed to.
type DestinationPolicy int

const (
	// DestinationCommunity addresses every member of the community.
	DestinationCommunity DestinationPolicy = iota
	// DestinationTargeted addresses an explicit candidate subset.
	DestinationTargeted
)

// Direction controls the order Store.Range and sync windows return
// messages of this Meta in.
type Direction int

const (
	DirectionASC Direction = iota
	DirectionDESC
	DirectionRANDOM
)

func (d Direction) String() string {
	switch d {
	case DirectionDESC:
		return "DESC"
	case DirectionRANDOM:
		return "RANDOM"
	default:
		return "ASC"
	}
}

// DefaultPriority is the priority assigned to a Meta when unspecified.
const DefaultPriority uint8 = 128

// Meta is the schema entry describing a message kind (spec §3 "Meta").
type Meta struct {
	Name         string
	Auth         AuthPolicy
	Resolution   ResolutionPolicy
	Distribution Distribution
	Destination  DestinationPolicy
	Priority     uint8
	Direction    Direction

	// MaxBatchWindow bounds how long the pipeline may hold an accepted
	// instance of this Meta before committing it to the store (spec §4.5
	// "Batching").
	MaxBatchWindow time.Duration
}

// New builds a Meta with DefaultPriority; callers that need another
// priority set Priority on the returned value.
func New(name string, auth AuthPolicy, resolution ResolutionPolicy, dist Distribution, dest DestinationPolicy, direction Direction) Meta {
	return Meta{
		Name:         name,
		Auth:         auth,
		Resolution:   resolution,
		Distribution: dist.Normalized(),
		Destination:  dest,
		Priority:     DefaultPriority,
		Direction:    direction,
	}
}

// Registry maps meta names to their Meta within one community.
type Registry struct {
	byName map[string]Meta
}

// NewRegistry creates an empty meta registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Meta)}
}

// Register adds or replaces a Meta.
func (r *Registry) Register(m Meta) {
	r.byName[m.Name] = m
}

// Get looks up a Meta by name.
func (r *Registry) Get(name string) (Meta, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns every registered meta name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
