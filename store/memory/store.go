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

// Package memory implements store.Store entirely in process memory. It
// backs the "null" storage profile the test harness and short-lived CLI
// invocations use (spec §6's mandatory schema, no durability).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
)

// Store implements store.Store with mutex-guarded maps. Pipelines and the
// dispatcher may call into it from many goroutines at once, so it needs
// real mutual exclusion.
type Store struct {
	mu sync.Mutex

	members     map[int64]*store.MemberRow
	membersByID map[member.MID]int64
	nextMember  int64

	communities     map[int64]*store.CommunityRow
	communitiesByID map[member.MID]int64
	nextCommunity   int64

	metas       map[int64]*store.MetaMessageRow
	metasByName map[int64]map[string]int64 // communityID -> name -> metaID
	nextMeta    int64

	sync        map[int64]*store.SyncRow
	syncByKey   map[syncKey]int64
	nextSync    int64

	doubleSigned map[int64]store.DoubleSignedRow // by sync id

	options map[string][]byte
}

type syncKey struct {
	community int64
	member    int64
	gt        uint64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		members:         make(map[int64]*store.MemberRow),
		membersByID:     make(map[member.MID]int64),
		communities:     make(map[int64]*store.CommunityRow),
		communitiesByID: make(map[member.MID]int64),
		metas:           make(map[int64]*store.MetaMessageRow),
		metasByName:     make(map[int64]map[string]int64),
		sync:            make(map[int64]*store.SyncRow),
		syncByKey:       make(map[syncKey]int64),
		doubleSigned:    make(map[int64]store.DoubleSignedRow),
		options:         make(map[string][]byte),
	}
}

func (s *Store) Close() error                        { return nil }
func (s *Store) Ping(ctx context.Context) error       { return nil }

func (s *Store) PutMember(ctx context.Context, row store.MemberRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.membersByID[row.MID]; ok {
		return id, nil
	}
	s.nextMember++
	id := s.nextMember
	row.ID = id
	s.members[id] = &row
	s.membersByID[row.MID] = id
	return id, nil
}

func (s *Store) GetMemberByMID(ctx context.Context, mid member.MID) (*store.MemberRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.membersByID[mid]
	if !ok {
		return nil, store.ErrNotFound
	}
	row := *s.members[id]
	return &row, nil
}

func (s *Store) GetMemberByID(ctx context.Context, id int64) (*store.MemberRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *Store) PutCommunity(ctx context.Context, row store.CommunityRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	masterRow, ok := s.members[row.Master]
	if !ok {
		return 0, fmt.Errorf("store: put community: unknown master member %d", row.Master)
	}
	if id, ok := s.communitiesByID[masterRow.MID]; ok {
		return id, nil
	}
	s.nextCommunity++
	id := s.nextCommunity
	row.ID = id
	s.communities[id] = &row
	s.communitiesByID[masterRow.MID] = id
	return id, nil
}

func (s *Store) GetCommunityByCID(ctx context.Context, cid member.MID) (*store.CommunityRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.communitiesByID[cid]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.communities[id]
	return &cp, nil
}

func (s *Store) GetCommunityByID(ctx context.Context, id int64) (*store.CommunityRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.communities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *Store) PutMeta(ctx context.Context, communityID int64, name string, priority uint8, direction int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName := s.metasByName[communityID]
	if byName == nil {
		byName = make(map[string]int64)
		s.metasByName[communityID] = byName
	}
	if id, ok := byName[name]; ok {
		return id, nil
	}

	s.nextMeta++
	id := s.nextMeta
	s.metas[id] = &store.MetaMessageRow{ID: id, Community: communityID, Name: name, Priority: priority, Direction: direction}
	byName[name] = id
	return id, nil
}

func (s *Store) GetMeta(ctx context.Context, communityID int64, name string) (*store.MetaMessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.metasByName[communityID][name]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.metas[id]
	return &cp, nil
}

func (s *Store) Put(ctx context.Context, row store.SyncRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := syncKey{community: row.Community, member: row.Member, gt: row.GlobalTime}
	if id, ok := s.syncByKey[key]; ok {
		return id, nil
	}

	s.nextSync++
	id := s.nextSync
	row.ID = id
	s.sync[id] = &row
	s.syncByKey[key] = id
	return id, nil
}

func (s *Store) GetByKey(ctx context.Context, communityID, memberID int64, globalTime uint64) (*store.SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.syncByKey[syncKey{community: communityID, member: memberID, gt: globalTime}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.sync[id]
	return &cp, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*store.SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sync[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *Store) Range(ctx context.Context, metaID int64, low, high uint64, modulo, offset uint64, direction store.Direction) ([]store.SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []store.SyncRow
	for _, row := range s.sync {
		if row.MetaMessage != metaID {
			continue
		}
		if row.GlobalTime < low || row.GlobalTime > high {
			continue
		}
		if modulo > 0 && (row.GlobalTime+offset)%modulo != 0 {
			continue
		}
		rows = append(rows, *row)
	}

	switch direction {
	case store.DirectionDESC:
		sort.Slice(rows, func(i, j int) bool { return rows[i].GlobalTime > rows[j].GlobalTime })
	case store.DirectionRANDOM:
		// Deterministic within a test run, unordered in spirit: callers
		// needing true randomisation shuffle after retrieval using their
		// own seeded source; store.Range only guarantees a stable order
		// here so results are reproducible.
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	default:
		sort.Slice(rows, func(i, j int) bool { return rows[i].GlobalTime < rows[j].GlobalTime })
	}
	return rows, nil
}

func (s *Store) MarkUndone(ctx context.Context, targetID, undoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sync[targetID]
	if !ok {
		return store.ErrNotFound
	}
	row.Undone = undoID
	return nil
}

func (s *Store) ClearUndone(ctx context.Context, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sync[targetID]
	if !ok {
		return store.ErrNotFound
	}
	row.Undone = 0
	return nil
}

func (s *Store) Count(ctx context.Context, metaID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.sync {
		if row.MetaMessage == metaID {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sync[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.sync, id)
	delete(s.syncByKey, syncKey{community: row.Community, member: row.Member, gt: row.GlobalTime})
	delete(s.doubleSigned, id)
	return nil
}

func (s *Store) LastSequence(ctx context.Context, metaID, memberID int64) (uint64, uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool
	var seq, gt uint64
	for _, row := range s.sync {
		if row.MetaMessage != metaID || row.Member != memberID || !row.HasSequence {
			continue
		}
		if !found || row.Sequence > seq {
			found = true
			seq = row.Sequence
			gt = row.GlobalTime
		}
	}
	return seq, gt, found, nil
}

func (s *Store) GetBySequence(ctx context.Context, metaID, memberID int64, sequence uint64) (*store.SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.sync {
		if row.MetaMessage == metaID && row.Member == memberID && row.HasSequence && row.Sequence == sequence {
			cp := *row
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ByLastNKey(ctx context.Context, metaID, member1ID, member2ID int64) ([]store.SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []store.SyncRow
	for _, row := range s.sync {
		if row.MetaMessage != metaID {
			continue
		}
		if member2ID == 0 {
			if row.Member == member1ID {
				if ds, ok := s.doubleSigned[row.ID]; !ok || (ds.Member1 == 0 && ds.Member2 == 0) {
					rows = append(rows, *row)
				}
			}
			continue
		}
		ds, ok := s.doubleSigned[row.ID]
		if !ok {
			continue
		}
		a, b := ds.Member1, ds.Member2
		if a > b {
			a, b = b, a
		}
		wantA, wantB := member1ID, member2ID
		if wantA > wantB {
			wantA, wantB = wantB, wantA
		}
		if a == wantA && b == wantB {
			rows = append(rows, *row)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].GlobalTime > rows[j].GlobalTime })
	return rows, nil
}

func (s *Store) PutDoubleSigned(ctx context.Context, row store.DoubleSignedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sync[row.Sync]; !ok {
		return fmt.Errorf("store: put double-signed: unknown sync row %d", row.Sync)
	}
	s.doubleSigned[row.Sync] = row
	return nil
}

func (s *Store) GetOption(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.options[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) SetOption(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options[key] = append([]byte(nil), value...)
	return nil
}

// WithTx runs fn against the same store: the in-memory backend has no real
// transactions, so this provides the interface's integrity contract by
// construction (every mutation is already atomic under s.mu) rather than
// by rollback.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}
