package distribution_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/distribution"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/store"
	"github.com/sage-x-project/meshnet/store/memory"
)

func putRow(t *testing.T, s store.Store, metaID, memberID int64, gt, seq uint64, hasSeq bool) int64 {
	t.Helper()
	id, err := s.Put(context.Background(), store.SyncRow{
		Community: 1, Member: memberID, MetaMessage: metaID,
		GlobalTime: gt, Sequence: seq, HasSequence: hasSeq, Packet: []byte("x"),
	})
	require.NoError(t, err)
	return id
}

func TestEvaluateFullSyncAlwaysAccepts(t *testing.T) {
	s := memory.New()
	out, err := distribution.Evaluate(context.Background(), s, meta.Distribution{Kind: meta.DistributionFullSync}, 100,
		distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 5})
	require.NoError(t, err)
	require.True(t, out.Accept)
}

func TestEvaluateSequenceAcceptsStrictSuccessor(t *testing.T) {
	s := memory.New()
	dist := meta.Distribution{Kind: meta.DistributionFullSyncWithSequence}

	out, err := distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 1, Sequence: 1, HasSequence: true})
	require.NoError(t, err)
	require.True(t, out.Accept)
	putRow(t, s, 1, 1, 1, 1, true)

	out, err = distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 2, Sequence: 3, HasSequence: true})
	require.NoError(t, err)
	require.True(t, out.Delay)

	out, err = distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 2, Sequence: 2, HasSequence: true})
	require.NoError(t, err)
	require.True(t, out.Accept)
}

func TestEvaluateSequenceEquivocationKeepsLowerGlobalTime(t *testing.T) {
	s := memory.New()
	dist := meta.Distribution{Kind: meta.DistributionFullSyncWithSequence}

	existingID := putRow(t, s, 1, 1, 10, 5, true)

	out, err := distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 4, Sequence: 5, HasSequence: true})
	require.NoError(t, err)
	require.True(t, out.Accept)
	require.Equal(t, []int64{existingID}, out.EvictIDs)

	out, err = distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 20, Sequence: 5, HasSequence: true})
	require.NoError(t, err)
	require.False(t, out.Accept)
}

func TestEvaluateLastNEvictsOldest(t *testing.T) {
	s := memory.New()
	dist := meta.Distribution{Kind: meta.DistributionLastN, N: 2}

	putRow(t, s, 1, 1, 10, 0, false)
	old := putRow(t, s, 1, 1, 20, 0, false)

	out, err := distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 30})
	require.NoError(t, err)
	require.True(t, out.Accept)
	require.Contains(t, out.EvictIDs, old-1) // oldest of the three survivors is evicted
}

func TestEvaluateLastNRejectsStale(t *testing.T) {
	s := memory.New()
	dist := meta.Distribution{Kind: meta.DistributionLastN, N: 1}

	newest := putRow(t, s, 1, 1, 50, 0, false)

	out, err := distribution.Evaluate(context.Background(), s, dist, 0, distribution.Candidate{MetaID: 1, Member1ID: 1, GlobalTime: 10})
	require.NoError(t, err)
	require.False(t, out.Accept)
	require.Equal(t, newest, out.SupersededByRowID)
}

func TestClassifyPruningWindow(t *testing.T) {
	dist := meta.Distribution{Kind: meta.DistributionFullSyncWithPruning}.Normalized()

	require.Equal(t, distribution.Active, distribution.Classify(dist, 100, 95))
	require.Equal(t, distribution.Inactive, distribution.Classify(dist, 100, 85))
	require.Equal(t, distribution.Pruned, distribution.Classify(dist, 100, 70))
}

func TestPruneSweepRemovesOldRows(t *testing.T) {
	s := memory.New()
	dist := meta.Distribution{Kind: meta.DistributionFullSyncWithPruning}.Normalized()

	putRow(t, s, 1, 1, 95, 0, false) // active
	putRow(t, s, 1, 1, 70, 0, false) // pruned

	n, err := distribution.PruneSweep(context.Background(), s, 1, dist, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := s.Count(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
