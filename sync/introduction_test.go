package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeerTablePickExcludesSelf(t *testing.T) {
	table := NewPeerTable()
	self := Candidate{WAN: "1.1.1.1:1"}
	table.Observe(self)
	table.Observe(Candidate{WAN: "2.2.2.2:2"})

	picked, ok := table.Pick(self)
	require.True(t, ok)
	require.Equal(t, "2.2.2.2:2", picked.WAN)
}

func TestPeerTablePickReturnsFalseWhenEmpty(t *testing.T) {
	table := NewPeerTable()
	_, ok := table.Pick(Candidate{WAN: "1.1.1.1:1"})
	require.False(t, ok)
}

func TestPeerTablePrefersTunnelMatch(t *testing.T) {
	table := NewPeerTable()
	table.Observe(Candidate{WAN: "a", Tunnel: true})
	table.Observe(Candidate{WAN: "b", Tunnel: false})

	picked, ok := table.Pick(Candidate{WAN: "self", Tunnel: false})
	require.True(t, ok)
	require.Equal(t, "b", picked.WAN)
}

func TestPeerTableEvictStale(t *testing.T) {
	table := NewPeerTable()
	table.Observe(Candidate{WAN: "a"})
	table.EvictStale(-time.Second)
	_, ok := table.Pick(Candidate{WAN: "self"})
	require.False(t, ok)
}

func TestIdentifierCacheReserveUniqueAndRelease(t *testing.T) {
	c := NewIdentifierCache()
	first := c.Reserve()
	second := c.Reserve()
	require.NotEqual(t, first, second)
	require.True(t, c.Pending(first))

	c.Release(first)
	require.False(t, c.Pending(first))
}
