package timeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/timeline"
)

func randomMID(t *testing.T) member.MID {
	t.Helper()
	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	return m.MID
}

func TestMasterAlwaysPermitted(t *testing.T) {
	master := randomMID(t)
	tl := timeline.New(master)

	ok, proof := tl.Check(master, "protected-full-sync-text", timeline.ActionPermit, 1)
	require.True(t, ok)
	require.Empty(t, proof)
}

func TestAuthorizeGrantsPermissionFromNextGlobalTime(t *testing.T) {
	master := randomMID(t)
	alice := randomMID(t)
	tl := timeline.New(master)

	tl.ApplyAuthorize(1, master, alice, "protected-full-sync-text", timeline.ActionPermit, 10, false)

	ok, _ := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 9)
	require.False(t, ok, "permission must not be retroactive to before the grant")

	ok, _ = tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 10)
	require.False(t, ok, "a grant stamped at global_time=G is not yet effective at G itself")

	ok, proof := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.True(t, ok)
	require.Len(t, proof, 1)
	require.Equal(t, master, proof[0].Grantor)
	require.Equal(t, alice, proof[0].Grantee)
}

func TestRevokeEndsPermission(t *testing.T) {
	master := randomMID(t)
	alice := randomMID(t)
	tl := timeline.New(master)

	tl.ApplyAuthorize(1, master, alice, "protected-full-sync-text", timeline.ActionPermit, 10, false)
	tl.ApplyAuthorize(2, master, alice, "protected-full-sync-text", timeline.ActionPermit, 20, true)

	ok, _ := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 15)
	require.True(t, ok)

	ok, _ = tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 25)
	require.False(t, ok)
}

func TestChainOfGrantsRequiresGrantorAuthority(t *testing.T) {
	master := randomMID(t)
	alice := randomMID(t)
	bob := randomMID(t)
	tl := timeline.New(master)

	// Bob grants Alice permission, but Bob was never given authorize
	// authority over this meta, so the chain does not reach the master.
	tl.ApplyAuthorize(1, bob, alice, "protected-full-sync-text", timeline.ActionPermit, 10, false)
	ok, _ := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.False(t, ok)

	// Once the master grants Bob authorize-authority, Bob's earlier grant
	// to Alice becomes valid without needing to be re-applied.
	tl.ApplyAuthorize(2, master, bob, "protected-full-sync-text", timeline.ActionAuthorize, 5, false)
	ok, proof := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.True(t, ok)
	require.Len(t, proof, 2)
	require.Equal(t, master, proof[0].Grantor)
	require.Equal(t, bob, proof[1].Grantor)
}

func TestUnapplyAndRedo(t *testing.T) {
	master := randomMID(t)
	alice := randomMID(t)
	tl := timeline.New(master)

	tl.ApplyAuthorize(1, master, alice, "protected-full-sync-text", timeline.ActionPermit, 10, false)
	ok, _ := tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.True(t, ok)

	tl.Unapply(1)
	ok, _ = tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.False(t, ok)

	tl.Redo(1)
	ok, _ = tl.Check(alice, "protected-full-sync-text", timeline.ActionPermit, 11)
	require.True(t, ok)
}

func TestGetResolutionPolicyTakesEffectFromNextGlobalTime(t *testing.T) {
	master := randomMID(t)
	tl := timeline.New(master)

	tl.ApplyDynamicSettings(1, "dynamic-settings-meta", meta.ResolutionLinear, 11)

	require.Equal(t, meta.ResolutionPublic, tl.GetResolutionPolicy("dynamic-settings-meta", 11, meta.ResolutionPublic),
		"a settings change stamped at global_time=11 must not apply at 11 itself")
	require.Equal(t, meta.ResolutionLinear, tl.GetResolutionPolicy("dynamic-settings-meta", 12, meta.ResolutionPublic))
}

func TestApplyReportsOutOfOrderRevocation(t *testing.T) {
	master := randomMID(t)
	alice := randomMID(t)
	tl := timeline.New(master)

	r1 := tl.ApplyAuthorize(1, master, alice, "protected-full-sync-text", timeline.ActionPermit, 20, false)
	require.False(t, r1.OutOfOrder)

	// A revoke arriving with a lower global time than the existing grant
	// must be flagged so the pipeline re-evaluates dependents (spec §4.2).
	r2 := tl.ApplyAuthorize(2, master, alice, "protected-full-sync-text", timeline.ActionPermit, 15, true)
	require.True(t, r2.OutOfOrder)
}
