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

import "github.com/sage-x-project/meshnet/member"

// Candidate is one peer address triple as carried on the wire (spec §4.6
// "LAN and WAN addresses, a tunnel flag, a connection-type tag").
type Candidate struct {
	LAN            string `json:"lan"`
	WAN            string `json:"wan"`
	Tunnel         bool   `json:"tunnel"`
	ConnectionType string `json:"connection_type"`
}

// IntroductionRequestPayload is dispersy-introduction-request's body.
type IntroductionRequestPayload struct {
	Candidate  Candidate `json:"candidate"`
	Identifier uint32    `json:"identifier"` // 24-bit, top byte always zero
	Window     *WindowPayload `json:"window,omitempty"`
}

// WindowPayload is Window's wire shape; Filter is nil when the requester
// has nothing yet to exclude.
type WindowPayload struct {
	Low    uint64 `json:"low"`
	High   uint64 `json:"high"`
	Modulo uint64 `json:"modulo"`
	Offset uint64 `json:"offset"`
	Filter []byte `json:"filter,omitempty"` // sync.WireSize bytes, see Filter.Encode
}

// IntroductionResponsePayload is dispersy-introduction-response's body: the
// addresses of one candidate the responder picked from its peer table.
type IntroductionResponsePayload struct {
	Identifier uint32    `json:"identifier"`
	Introduced Candidate `json:"introduced"`
}

// MissingIdentityPayload is dispersy-missing-identity's body.
type MissingIdentityPayload struct {
	Member member.MID `json:"member"`
}

// MissingMessagePayload is dispersy-missing-message's body. GlobalTimes is
// empty to mean "everything known for Member".
type MissingMessagePayload struct {
	Member      member.MID `json:"member"`
	GlobalTimes []uint64   `json:"global_times,omitempty"`
}

// MissingSequencePayload is dispersy-missing-sequence's body.
type MissingSequencePayload struct {
	Member   member.MID `json:"member"`
	MetaName string     `json:"meta"`
	Low      uint64     `json:"low"`
	High     uint64     `json:"high"`
}

// MissingProofPayload is dispersy-missing-proof's body: "prove that Member
// could create an instance of MetaName as of GlobalTime".
type MissingProofPayload struct {
	Member     member.MID `json:"member"`
	MetaName   string     `json:"meta"`
	GlobalTime uint64     `json:"global_time"`
}

// SignatureRequestPayload is dispersy-signature-request's body: the
// initiator's half-signed double-member packet awaiting the responder's
// signature, with the byte ranges the responder is allowed to modify
// before counter-signing (spec §4.6 "within declared split payload
// boundaries").
type SignatureRequestPayload struct {
	Identifier  uint32   `json:"identifier"`
	SubMessage  []byte   `json:"sub_message"`
	SplitLow    int      `json:"split_low"`
	SplitHigh   int      `json:"split_high"`
}

// SignatureResponsePayload is dispersy-signature-response's body.
type SignatureResponsePayload struct {
	Identifier uint32 `json:"identifier"`
	SubMessage []byte `json:"sub_message"`
	Modified   bool   `json:"modified"`
}
