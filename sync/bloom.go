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

// Package sync implements anti-entropy reconciliation between two
// community logs: introduction request/response, the salted bloom filter
// a sync window is framed with, the repair sub-protocol, and the
// double-signed signature request/response exchange (spec §4.6).
package sync

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

// Bloom parameters are fixed (spec §4.6): a 4096-bit (512-byte) filter
// with a false-positive rate no larger than 0.1%. FilterHashes is derived
// from those two constraints: the optimal hash count for an m-bit filter
// targeting false-positive rate p is k = ceil(log2(1/p)); for p=0.001
// that is 10, which in turn caps the filter's useful load at roughly
// m*ln(2)/k ≈ 284 packets before the false-positive rate starts to climb
// above the ceiling.
const (
	FilterBits   = 4096
	FilterBytes  = FilterBits / 8
	FilterHashes = 10

	// WireSize is the on-wire size of an encoded Filter: one salt byte
	// followed by the raw FilterBytes bit array.
	WireSize = 1 + FilterBytes
)

// ErrWireSize is returned by DecodeFilter when given a buffer that isn't
// exactly WireSize bytes long.
var ErrWireSize = errors.New("sync: bloom filter wire size mismatch")

// Filter is a salted bloom filter over packet bytes, used to tell a sync
// peer "don't bother sending me anything I can already test positive
// for" (spec §4.6 "hash(m.packet) is not in bloom_filter").
type Filter struct {
	salt byte
	bf   *bloom.BloomFilter
}

// NewFilter creates an empty filter salted with salt. Two filters built
// from the same salt and fed the same packets test identically; two
// filters with different salts over the same packets do not collide in
// the same way, which is the point of carrying the salt on the wire
// instead of fixing it as a protocol constant.
func NewFilter(salt byte) *Filter {
	return &Filter{salt: salt, bf: bloom.New(FilterBits, FilterHashes)}
}

// Salt returns the filter's salt byte.
func (f *Filter) Salt() byte { return f.salt }

func (f *Filter) key(packet []byte) []byte {
	buf := make([]byte, 0, len(packet)+1)
	buf = append(buf, f.salt)
	buf = append(buf, packet...)
	return buf
}

// Add records packet in the filter.
func (f *Filter) Add(packet []byte) {
	f.bf.Add(f.key(packet))
}

// Test reports whether packet has possibly been recorded; false means
// definitely not recorded, true means probably recorded.
func (f *Filter) Test(packet []byte) bool {
	return f.bf.Test(f.key(packet))
}

// Encode serialises the filter to its fixed WireSize representation.
func (f *Filter) Encode() []byte {
	out := make([]byte, WireSize)
	out[0] = f.salt
	words := f.bf.BitSet().Bytes()
	for i, w := range words {
		off := 1 + i*8
		if off+8 > WireSize {
			break
		}
		binary.LittleEndian.PutUint64(out[off:off+8], w)
	}
	return out
}

// DecodeFilter parses a filter previously produced by Encode.
func DecodeFilter(data []byte) (*Filter, error) {
	if len(data) != WireSize {
		return nil, fmt.Errorf("%w: got %d want %d", ErrWireSize, len(data), WireSize)
	}
	words := make([]uint64, FilterBytes/8)
	for i := range words {
		off := 1 + i*8
		words[i] = binary.LittleEndian.Uint64(data[off : off+8])
	}
	return &Filter{salt: data[0], bf: bloom.From(words, FilterHashes)}, nil
}
