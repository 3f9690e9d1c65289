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

// Package community holds the per-group context spec §3 describes:
// members, meta registry, timeline, store handle and global time counter.
package community

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/crypto"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/timeline"
)

// Community is the per-group context a loaded community hosts: the Codec,
// Timeline, meta Registry, Store handle, and global time counter (spec §3
// "Community").
type Community struct {
	CID    member.MID // equals the master member's mid
	Master member.MID
	Local  member.MID // this peer's own member id within the community

	Classification string
	AutoLoad       bool

	Registry *meta.Registry
	Timeline *timeline.Timeline
	Store    store.Store
	Codec    *codec.Codec
	Log      logger.Logger

	rowID       int64
	masterRowID int64
	localRowID  int64

	mu         sync.Mutex
	globalTime uint64
	memberIDs  map[member.MID]int64
	metaIDs    map[string]int64
}

// Open creates or loads a community whose master member is master, with
// local acting as this peer's own member within it. Builtin metas (spec
// §4 "dispersy-*") are registered automatically; application metas are
// added afterward with RegisterMeta.
func Open(ctx context.Context, s store.Store, cdc *codec.Codec, log logger.Logger, master, local *member.Member, classification string, autoLoad bool) (*Community, error) {
	masterRowID, err := s.PutMember(ctx, store.MemberRow{
		MID: master.MID, PublicKey: master.PublicKey, KeyType: string(master.KeyType),
	})
	if err != nil {
		return nil, fmt.Errorf("community: put master member: %w", err)
	}

	localRowID := masterRowID
	if local.MID != master.MID {
		localRowID, err = s.PutMember(ctx, store.MemberRow{
			MID: local.MID, PublicKey: local.PublicKey, KeyType: string(local.KeyType),
		})
		if err != nil {
			return nil, fmt.Errorf("community: put local member: %w", err)
		}
	}

	communityRowID, err := s.PutCommunity(ctx, store.CommunityRow{
		Master: masterRowID, Member: localRowID,
		Classification: classification, AutoLoad: autoLoad,
		DatabaseVersion: store.SchemaVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("community: put community: %w", err)
	}

	c := &Community{
		CID:            master.MID,
		Master:         master.MID,
		Local:          local.MID,
		Classification: classification,
		AutoLoad:       autoLoad,
		Registry:       meta.NewRegistry(),
		Timeline:       timeline.New(master.MID),
		Store:          s,
		Codec:          cdc,
		Log:            log,
		rowID:          communityRowID,
		masterRowID:    masterRowID,
		localRowID:     localRowID,
		memberIDs:      map[member.MID]int64{master.MID: masterRowID, local.MID: localRowID},
		metaIDs:        make(map[string]int64),
	}

	for _, m := range meta.Builtins() {
		if err := c.RegisterMeta(ctx, m); err != nil {
			return nil, fmt.Errorf("community: register builtin meta %q: %w", m.Name, err)
		}
	}

	return c, nil
}

// RegisterMeta adds an application (or builtin) Meta to the community and
// persists its schema row.
func (c *Community) RegisterMeta(ctx context.Context, m meta.Meta) error {
	m.Distribution = m.Distribution.Normalized()
	id, err := c.Store.PutMeta(ctx, c.rowID, m.Name, m.Priority, int(m.Direction))
	if err != nil {
		return fmt.Errorf("community: put meta: %w", err)
	}
	c.Registry.Register(m)

	c.mu.Lock()
	c.metaIDs[m.Name] = id
	c.mu.Unlock()
	return nil
}

// MetaRowID returns the store row id of a registered meta.
func (c *Community) MetaRowID(name string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.metaIDs[name]
	return id, ok
}

// RowID returns the community's own store row id.
func (c *Community) RowID() int64 { return c.rowID }

// LookupMemberRowID returns a member's store row id without creating it,
// reporting false if this community has never observed mid.
func (c *Community) LookupMemberRowID(mid member.MID) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.memberIDs[mid]
	return id, ok
}

// ResolveMember returns the store row id for mid, creating the member row
// (keyed on its public key) on first observation (spec §3 "Member...
// created on first observation").
func (c *Community) ResolveMember(ctx context.Context, mid member.MID, publicKey []byte, keyType crypto.KeyType) (int64, error) {
	c.mu.Lock()
	if id, ok := c.memberIDs[mid]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.Store.PutMember(ctx, store.MemberRow{MID: mid, PublicKey: publicKey, KeyType: string(keyType)})
	if err != nil {
		return 0, fmt.Errorf("community: resolve member: %w", err)
	}

	c.mu.Lock()
	c.memberIDs[mid] = id
	c.mu.Unlock()
	return id, nil
}

// CurrentGlobalTime returns the community's local global time counter.
func (c *Community) CurrentGlobalTime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.globalTime
}

// NextGlobalTime advances and returns the strictly-positive local global
// time for a message this peer is about to author (spec §3 "Global time...
// advances monotonically for the local peer").
func (c *Community) NextGlobalTime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalTime++
	return c.globalTime
}

// Observe advances the local counter to max(local, observed), per incoming
// messages carrying any global time (spec §3).
func (c *Community) Observe(gt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gt > c.globalTime {
		c.globalTime = gt
	}
}

// Destroy implements hard-kill destroy-community semantics (spec §4.7):
// every stored message in the community is removed except the entries in
// keepRowIDs (the destroy-community message itself and its proof chain).
func (c *Community) Destroy(ctx context.Context, keepRowIDs []int64) error {
	keep := make(map[int64]bool, len(keepRowIDs))
	for _, id := range keepRowIDs {
		keep[id] = true
	}

	for _, name := range c.Registry.Names() {
		metaID, ok := c.MetaRowID(name)
		if !ok {
			continue
		}
		rows, err := c.Store.Range(ctx, metaID, 0, math.MaxUint64, 0, 0, store.DirectionASC)
		if err != nil {
			return fmt.Errorf("community: destroy: range %q: %w", name, err)
		}
		for _, r := range rows {
			if keep[r.ID] {
				continue
			}
			if err := c.Store.DeleteByID(ctx, r.ID); err != nil {
				return fmt.Errorf("community: destroy: delete %d: %w", r.ID, err)
			}
		}
	}
	c.Log.Info("community destroyed (hard-kill)", logger.String("cid", c.CID.String()))
	return nil
}
