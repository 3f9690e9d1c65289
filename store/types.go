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

// Package store is the durable, queryable log backing every community
// (spec §4.4), implementing the mandatory schema of spec §6: member,
// community, meta_message, sync, double_signed_sync, option.
package store

import "github.com/sage-x-project/meshnet/member"

// MemberRow is one row of the member table.
type MemberRow struct {
	ID         int64
	MID        member.MID
	PublicKey  []byte
	PrivateKey []byte // nil unless this peer holds the private key
	KeyType    string
}

// CommunityRow is one row of the community table. Member is the local
// peer's own member id within this community (schema's community.member
// FK), distinct from Master which identifies the community's founder.
type CommunityRow struct {
	ID              int64
	Master          int64
	Member          int64
	Classification  string
	AutoLoad        bool
	DatabaseVersion int
}

// MetaMessageRow is one row of the meta_message table.
type MetaMessageRow struct {
	ID          int64
	Community   int64
	Name        string
	Priority    uint8
	Direction   int
}

// SyncRow is one row of the sync table: a stored message.
type SyncRow struct {
	ID          int64
	Community   int64
	Member      int64
	GlobalTime  uint64
	MetaMessage int64
	Undone      int64
	Packet      []byte
	Sequence    uint64
	HasSequence bool
}

// DoubleSignedRow is one row of the double_signed_sync table, the
// secondary index last-N distribution uses to key double-member messages
// by their unordered signer pair.
type DoubleSignedRow struct {
	Sync    int64
	Member1 int64
	Member2 int64
}

// Direction mirrors meta.Direction without importing the meta package,
// since store is meant to stay a leaf dependency any backend can import
// without pulling in policy types. Callers pass the int value of
// meta.Direction directly.
type Direction int

const (
	DirectionASC Direction = iota
	DirectionDESC
	DirectionRANDOM
)

// Well-known option keys (spec §6 "The option table holds
// database_version").
const (
	OptionDatabaseVersion = "database_version"
)

// SchemaVersion is the single schema version this implementation accepts
// (spec §6 "Schema versioning"). Databases at an older version must be
// migrated forward by store/migrate.go; a version above this is always
// fatal.
const SchemaVersion = 1
