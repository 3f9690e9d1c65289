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

// Package postgres implements store.Store against PostgreSQL via pgx,
// for long-lived production nodes (spec §6's persistent schema).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Durable, when false, sets synchronous_commit=off on the pool's
	// connections: the closest PostgreSQL analogue of the SQLite
	// "synchronous=NORMAL"/test profile spec §6 describes.
	Durable bool
}

func (c Config) connString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Store implements store.Store for PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool, runs the mandatory schema, and
// migrates to store.SchemaVersion.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	return newStore(ctx, cfg.connString(), cfg.Durable)
}

// NewStoreFromDSN is NewStore for callers that already hold a libpq-style
// connection string (operator configuration), rather than discrete fields.
func NewStoreFromDSN(ctx context.Context, dsn string, durable bool) (*Store, error) {
	return newStore(ctx, dsn, durable)
}

func newStore(ctx context.Context, dsn string, durable bool) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: parse config: %w", err)
	}
	if !durable {
		poolCfg.ConnConfig.RuntimeParams["synchronous_commit"] = "off"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store/postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store/postgres: apply schema: %w", err)
	}

	s := &Store{pool: pool}
	if err := store.Migrate(ctx, s); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { s.pool.Close(); return nil }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) querier(ctx context.Context) queryable {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type txCtxKey struct{}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx, ok
}

// WithTx runs fn inside a PostgreSQL transaction (spec §4.4 "Integrity":
// mutations spanning sync and double_signed_sync commit atomically).
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store/postgres: begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txCtxKey{}, tx)
	if err := fn(&txStore{Store: s, ctx: txCtx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store/postgres: commit tx: %w", err)
	}
	return nil
}

// txStore binds the ambient transaction context so callers inside WithTx
// can keep calling the ordinary Store methods without threading the
// context manually at every call site.
type txStore struct {
	*Store
	ctx context.Context
}

func (t *txStore) PutMember(ctx context.Context, row store.MemberRow) (int64, error) {
	return t.Store.PutMember(t.ctx, row)
}
func (t *txStore) GetMemberByMID(ctx context.Context, mid member.MID) (*store.MemberRow, error) {
	return t.Store.GetMemberByMID(t.ctx, mid)
}
func (t *txStore) GetMemberByID(ctx context.Context, id int64) (*store.MemberRow, error) {
	return t.Store.GetMemberByID(t.ctx, id)
}
func (t *txStore) PutCommunity(ctx context.Context, row store.CommunityRow) (int64, error) {
	return t.Store.PutCommunity(t.ctx, row)
}
func (t *txStore) GetCommunityByCID(ctx context.Context, cid member.MID) (*store.CommunityRow, error) {
	return t.Store.GetCommunityByCID(t.ctx, cid)
}
func (t *txStore) GetCommunityByID(ctx context.Context, id int64) (*store.CommunityRow, error) {
	return t.Store.GetCommunityByID(t.ctx, id)
}
func (t *txStore) PutMeta(ctx context.Context, communityID int64, name string, priority uint8, direction int) (int64, error) {
	return t.Store.PutMeta(t.ctx, communityID, name, priority, direction)
}
func (t *txStore) GetMeta(ctx context.Context, communityID int64, name string) (*store.MetaMessageRow, error) {
	return t.Store.GetMeta(t.ctx, communityID, name)
}
func (t *txStore) Put(ctx context.Context, row store.SyncRow) (int64, error) {
	return t.Store.Put(t.ctx, row)
}
func (t *txStore) GetByKey(ctx context.Context, communityID, memberID int64, gt uint64) (*store.SyncRow, error) {
	return t.Store.GetByKey(t.ctx, communityID, memberID, gt)
}
func (t *txStore) GetByID(ctx context.Context, id int64) (*store.SyncRow, error) {
	return t.Store.GetByID(t.ctx, id)
}
func (t *txStore) Range(ctx context.Context, metaID int64, low, high, modulo, offset uint64, dir store.Direction) ([]store.SyncRow, error) {
	return t.Store.Range(t.ctx, metaID, low, high, modulo, offset, dir)
}
func (t *txStore) MarkUndone(ctx context.Context, targetID, undoID int64) error {
	return t.Store.MarkUndone(t.ctx, targetID, undoID)
}
func (t *txStore) ClearUndone(ctx context.Context, targetID int64) error {
	return t.Store.ClearUndone(t.ctx, targetID)
}
func (t *txStore) Count(ctx context.Context, metaID int64) (int64, error) {
	return t.Store.Count(t.ctx, metaID)
}
func (t *txStore) DeleteByID(ctx context.Context, id int64) error {
	return t.Store.DeleteByID(t.ctx, id)
}
func (t *txStore) LastSequence(ctx context.Context, metaID, memberID int64) (uint64, uint64, bool, error) {
	return t.Store.LastSequence(t.ctx, metaID, memberID)
}
func (t *txStore) GetBySequence(ctx context.Context, metaID, memberID int64, sequence uint64) (*store.SyncRow, error) {
	return t.Store.GetBySequence(t.ctx, metaID, memberID, sequence)
}
func (t *txStore) ByLastNKey(ctx context.Context, metaID, member1ID, member2ID int64) ([]store.SyncRow, error) {
	return t.Store.ByLastNKey(t.ctx, metaID, member1ID, member2ID)
}
func (t *txStore) PutDoubleSigned(ctx context.Context, row store.DoubleSignedRow) error {
	return t.Store.PutDoubleSigned(t.ctx, row)
}
func (t *txStore) GetOption(ctx context.Context, key string) ([]byte, bool, error) {
	return t.Store.GetOption(t.ctx, key)
}
func (t *txStore) SetOption(ctx context.Context, key string, value []byte) error {
	return t.Store.SetOption(t.ctx, key, value)
}
func (t *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	// Nested transactions reuse the ambient one; spec §5's scoped-commit
	// guard (store.CommitGuard) is what models true nesting semantics.
	return fn(t)
}
