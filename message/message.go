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

// Package message defines the instance of a Meta signed by one or two
// members (spec §3 "Message").
package message

import (
	"fmt"

	"github.com/sage-x-project/meshnet/crypto"
	"github.com/sage-x-project/meshnet/member"
)

// AuthEntry is one signer slot in a Message's authentication block. An
// unsigned double-member slot carries a nil Signature (encoded on the wire
// as an all-zero fixed-length slot, per spec §4.1).
type AuthEntry struct {
	MID       member.MID
	PublicKey []byte
	KeyType   crypto.KeyType
	Signature []byte // nil if this slot is not yet signed
}

// Signed reports whether this slot carries a signature.
func (a AuthEntry) Signed() bool { return len(a.Signature) > 0 }

// Destination selects who a Message is addressed to on the wire.
type Destination struct {
	Targeted bool
	Targets  []member.MID // only meaningful when Targeted
}

// Message is an instance of a Meta signed by one or two members (spec §3).
type Message struct {
	Community member.MID
	MetaName  string

	// GlobalTime is the per-community logical clock value this message was
	// stamped with, strictly positive.
	GlobalTime uint64

	// SequenceNumber is set only for metas using sequence numbers
	// (meta.DistributionKind.UsesSequenceNumbers()).
	SequenceNumber uint64
	HasSequence    bool

	Auth        []AuthEntry
	Destination Destination

	// Payload is the meta-specific body. Well-known metas encode/decode a
	// typed payload into/from this field via the helpers in payload.go.
	Payload []byte

	// Packet is the encoded wire form, cached after Codec.Encode or
	// Codec.Decode so re-transmission and duplicate checks never re-encode.
	Packet []byte

	// Undone is 0, or the store row id of the undo message that
	// invalidates this message (spec §3 "A message is undone iff...").
	Undone int64

	// RowID is the store-assigned id once persisted; 0 before Store.Put.
	RowID int64
}

// Creator returns the first signer, the message's author by convention
// (spec §3 "member (creator)").
func (m *Message) Creator() member.MID {
	if len(m.Auth) == 0 {
		return member.MID{}
	}
	return m.Auth[0].MID
}

// DoubleSigned reports whether this message uses double-member
// authentication.
func (m *Message) DoubleSigned() bool { return len(m.Auth) == 2 }

// FullySigned reports whether every authentication slot carries a
// signature. A double-member message with only the initiator's slot filled
// is a pending signature-request submessage, not yet fully signed.
func (m *Message) FullySigned() bool {
	for _, a := range m.Auth {
		if !a.Signed() {
			return false
		}
	}
	return len(m.Auth) > 0
}

// Key identifies at most one stored message, per spec §3's uniqueness
// invariant: (community, member, global_time).
type Key struct {
	Community member.MID
	Member    member.MID
	GlobalTim uint64
}

func (m *Message) Key() Key {
	return Key{Community: m.Community, Member: m.Creator(), GlobalTim: m.GlobalTime}
}

// SequenceKey identifies at most one stored message, per spec §3's
// uniqueness invariant on sequence numbers: (member, meta, sequence_number).
type SequenceKey struct {
	Member   member.MID
	MetaName string
	Sequence uint64
}

func (m *Message) SequenceKey() SequenceKey {
	return SequenceKey{Member: m.Creator(), MetaName: m.MetaName, Sequence: m.SequenceNumber}
}

// LastNKey identifies the distribution-policy key for last-N metas: the
// creating member for single-member authentication, or the sorted pair of
// signing members for double-member authentication (spec §3's "For last-N
// distributions with N=1 and double-member authentication...").
type LastNKey struct {
	A member.MID
	B member.MID // zero MID when this is a single-member key
}

func (m *Message) LastNKey() LastNKey {
	if !m.DoubleSigned() {
		return LastNKey{A: m.Creator()}
	}
	a, b := m.Auth[0].MID, m.Auth[1].MID
	if b.Less(a) {
		a, b = b, a
	}
	return LastNKey{A: a, B: b}
}

// String renders a Message for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s/%s@%d#%d", m.Community, m.MetaName, m.GlobalTime, m.SequenceNumber)
}
