package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/store/memory"
)

func TestPutIsIdempotentOnCommunityMemberGlobalTime(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	memberID, err := s.PutMember(ctx, store.MemberRow{MID: m.MID, PublicKey: m.PublicKey})
	require.NoError(t, err)

	row := store.SyncRow{Community: 1, Member: memberID, GlobalTime: 10, Packet: []byte("a")}
	id1, err := s.Put(ctx, row)
	require.NoError(t, err)

	row.Packet = []byte("b") // a second Put for the same key must not overwrite
	id2, err := s.Put(ctx, row)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	stored, err := s.GetByID(ctx, id1)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), stored.Packet)
}

func TestRangeFiltersByWindowAndModulo(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	memberID, err := s.PutMember(ctx, store.MemberRow{MID: m.MID})
	require.NoError(t, err)

	for gt := uint64(10); gt <= 20; gt++ {
		_, err := s.Put(ctx, store.SyncRow{Community: 1, Member: memberID, GlobalTime: gt, MetaMessage: 7})
		require.NoError(t, err)
	}

	rows, err := s.Range(ctx, 7, 10, 20, 2, 0, store.DirectionASC)
	require.NoError(t, err)
	require.Len(t, rows, 6) // 10,12,14,16,18,20
	for _, r := range rows {
		require.Zero(t, r.GlobalTime%2)
	}
}

func TestByLastNKeySinglePairVsSingleMember(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	alice, err := member.GenerateEd25519()
	require.NoError(t, err)
	bob, err := member.GenerateEd25519()
	require.NoError(t, err)
	aliceID, _ := s.PutMember(ctx, store.MemberRow{MID: alice.MID})
	bobID, _ := s.PutMember(ctx, store.MemberRow{MID: bob.MID})

	pairRowID, err := s.Put(ctx, store.SyncRow{Community: 1, Member: aliceID, GlobalTime: 20, MetaMessage: 9})
	require.NoError(t, err)
	require.NoError(t, s.PutDoubleSigned(ctx, store.DoubleSignedRow{Sync: pairRowID, Member1: aliceID, Member2: bobID}))

	rows, err := s.ByLastNKey(ctx, 9, bobID, aliceID) // order shouldn't matter
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pairRowID, rows[0].ID)
}

func TestDeleteByIDRemovesSecondaryIndexes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	memberID, _ := s.PutMember(ctx, store.MemberRow{MID: m.MID})

	id, err := s.Put(ctx, store.SyncRow{Community: 1, Member: memberID, GlobalTime: 5})
	require.NoError(t, err)
	require.NoError(t, s.DeleteByID(ctx, id))

	_, err = s.GetByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetByKey(ctx, 1, memberID, 5)
	require.ErrorIs(t, err, store.ErrNotFound)
}
