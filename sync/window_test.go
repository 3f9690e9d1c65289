package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/store/memory"
)

func newWindowCommunity(t *testing.T) (*community.Community, int64) {
	t.Helper()
	master, err := member.GenerateEd25519()
	require.NoError(t, err)

	s := memory.New()
	c, err := community.Open(context.Background(), s, codec.New(), logger.NewDefaultLogger(), master, master, "test", true)
	require.NoError(t, err)
	require.NoError(t, c.RegisterMeta(context.Background(), meta.New("note", meta.AuthSingleMember, meta.ResolutionPublic,
		meta.Distribution{Kind: meta.DistributionFullSync}, meta.DestinationCommunity, meta.DirectionASC)))

	metaID, ok := c.MetaRowID("note")
	require.True(t, ok)
	return c, metaID
}

func TestResolveWindowFiltersByRangeAndBloom(t *testing.T) {
	c, metaID := newWindowCommunity(t)
	ctx := context.Background()

	masterID, ok := c.LookupMemberRowID(c.Master)
	require.True(t, ok)

	for gt := uint64(1); gt <= 5; gt++ {
		_, err := c.Store.Put(ctx, store.SyncRow{
			Community: c.RowID(), Member: masterID, MetaMessage: metaID,
			GlobalTime: gt, Packet: []byte{byte(gt)},
		})
		require.NoError(t, err)
	}

	f := NewFilter(1)
	f.Add([]byte{3})

	rows, err := Resolve(ctx, c, "note", Window{Low: 2, High: 4, Filter: f})
	require.NoError(t, err)

	var times []uint64
	for _, r := range rows {
		times = append(times, r.GlobalTime)
	}
	require.Equal(t, []uint64{2, 4}, times)
}

func TestResolveWindowUnknownMeta(t *testing.T) {
	c, _ := newWindowCommunity(t)
	_, err := Resolve(context.Background(), c, "does-not-exist", Window{High: 1})
	require.Error(t, err)
}
