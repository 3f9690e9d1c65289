package store

import (
	"context"
	"errors"

	"github.com/sage-x-project/meshnet/member"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrSchemaVersionUnsupported is fatal (spec §6 "a version above the
// latest known is always fatal").
var ErrSchemaVersionUnsupported = errors.New("store: schema version unsupported")

// Store is the durable, queryable log every community reads and writes
// through (spec §4.4). Implementations: store/memory (tests, the "null"
// profile) and store/postgres (production).
type Store interface {
	PutMember(ctx context.Context, row MemberRow) (int64, error)
	GetMemberByMID(ctx context.Context, mid member.MID) (*MemberRow, error)
	GetMemberByID(ctx context.Context, id int64) (*MemberRow, error)

	PutCommunity(ctx context.Context, row CommunityRow) (int64, error)
	GetCommunityByCID(ctx context.Context, cid member.MID) (*CommunityRow, error)
	GetCommunityByID(ctx context.Context, id int64) (*CommunityRow, error)

	PutMeta(ctx context.Context, communityID int64, name string, priority uint8, direction int) (int64, error)
	GetMeta(ctx context.Context, communityID int64, name string) (*MetaMessageRow, error)

	// Put inserts a message idempotently, returning the chosen row id: a
	// second Put with the same (community, member, global_time) returns
	// the existing row's id without error (spec §4.4 "put").
	Put(ctx context.Context, row SyncRow) (int64, error)
	GetByKey(ctx context.Context, communityID, memberID int64, globalTime uint64) (*SyncRow, error)
	GetByID(ctx context.Context, id int64) (*SyncRow, error)

	// Range returns an ordered scan over one meta's rows within
	// [low, high], restricted to rows where (global_time+offset)%modulo==0
	// when modulo > 0, consistent with the meta's synchronisation
	// direction (spec §4.4 "range", spec §4.6 "Sync window semantics").
	Range(ctx context.Context, metaID int64, low, high uint64, modulo, offset uint64, direction Direction) ([]SyncRow, error)

	MarkUndone(ctx context.Context, targetID, undoID int64) error
	ClearUndone(ctx context.Context, targetID int64) error
	Count(ctx context.Context, metaID int64) (int64, error)
	DeleteByID(ctx context.Context, id int64) error

	// LastSequence returns the highest known sequence number (and its
	// global time) for (member, meta), used by the pipeline's sequence gap
	// check (spec §4.5 stage 5).
	LastSequence(ctx context.Context, metaID, memberID int64) (seq uint64, gt uint64, found bool, err error)

	// GetBySequence looks up the row already stored at a given (member,
	// meta, sequence), used to resolve equivocating same-sequence
	// conflicts by comparing global_time (spec §4.3 full-sync-with-sequence).
	GetBySequence(ctx context.Context, metaID, memberID int64, sequence uint64) (*SyncRow, error)

	// ByLastNKey returns every stored row for a last-N distribution key,
	// newest global_time first. member2ID == 0 selects the single-member
	// key; otherwise the unordered pair (member1ID, member2ID) (spec §3
	// "For last-N distributions with N=1 and double-member authentication").
	ByLastNKey(ctx context.Context, metaID, member1ID, member2ID int64) ([]SyncRow, error)
	PutDoubleSigned(ctx context.Context, row DoubleSignedRow) error

	GetOption(ctx context.Context, key string) ([]byte, bool, error)
	SetOption(ctx context.Context, key string, value []byte) error

	// WithTx wraps fn in a transaction, required whenever a mutation spans
	// both the sync and double_signed_sync tables (spec §4.4 "Integrity").
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
	Ping(ctx context.Context) error
}
