package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/community"
	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/message"
	"github.com/sage-x-project/meshnet/meta"
	"github.com/sage-x-project/meshnet/pipeline"
	"github.com/sage-x-project/meshnet/store/memory"
)

func signRepair(t *testing.T, c *codec.Codec, m *member.Member, cid member.MID, metaName string, gt, seq uint64, hasSeq bool) []byte {
	t.Helper()
	payload, err := message.EncodePayload(map[string]string{"x": "y"})
	require.NoError(t, err)
	return signRepairPayload(t, c, m, cid, metaName, gt, seq, hasSeq, payload)
}

func signRepairPayload(t *testing.T, c *codec.Codec, m *member.Member, cid member.MID, metaName string, gt, seq uint64, hasSeq bool, payload []byte) []byte {
	t.Helper()
	msg := &message.Message{
		Community: cid, MetaName: metaName, GlobalTime: gt,
		SequenceNumber: seq, HasSequence: hasSeq, Payload: payload,
		Auth: []message.AuthEntry{{MID: m.MID, PublicKey: m.PublicKey, KeyType: m.KeyType}},
	}
	unsigned, err := c.Encode(msg)
	require.NoError(t, err)
	sig, err := m.Sign(unsigned[:len(unsigned)-codec.SignatureSlotSize])
	require.NoError(t, err)
	msg.Auth[0].Signature = sig
	packet, err := c.Encode(msg)
	require.NoError(t, err)
	return packet
}

func newRepairFixture(t *testing.T) (*community.Community, *member.Member) {
	t.Helper()
	master, err := member.GenerateEd25519()
	require.NoError(t, err)

	s := memory.New()
	cdc := codec.New()
	c, err := community.Open(context.Background(), s, cdc, logger.NewDefaultLogger(), master, master, "test", true)
	require.NoError(t, err)
	require.NoError(t, c.RegisterMeta(context.Background(), meta.New("note-seq", meta.AuthSingleMember, meta.ResolutionPublic,
		meta.Distribution{Kind: meta.DistributionFullSyncWithSequence}, meta.DestinationCommunity, meta.DirectionASC)))

	p := pipeline.New(c, pipeline.Hooks{}, logger.NewDefaultLogger())
	identity := signRepair(t, cdc, master, c.CID, meta.NameIdentity, 1, 0, false)
	res, err := p.Ingest(context.Background(), identity)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeAccepted, res.Outcome)

	for i, gt := range []uint64{2, 3, 4} {
		packet := signRepair(t, cdc, master, c.CID, "note-seq", gt, uint64(i+1), true)
		res, err := p.Ingest(context.Background(), packet)
		require.NoError(t, err)
		require.Equal(t, pipeline.OutcomeAccepted, res.Outcome)
	}

	return c, master
}

func TestResolveMissingIdentity(t *testing.T) {
	c, master := newRepairFixture(t)
	packets, err := ResolveMissingIdentity(context.Background(), c, MissingIdentityPayload{Member: master.MID})
	require.NoError(t, err)
	require.Len(t, packets, 1)
}

func TestResolveMissingIdentityUnknownMember(t *testing.T) {
	c, _ := newRepairFixture(t)
	other, err := member.GenerateEd25519()
	require.NoError(t, err)
	packets, err := ResolveMissingIdentity(context.Background(), c, MissingIdentityPayload{Member: other.MID})
	require.NoError(t, err)
	require.Empty(t, packets)
}

func TestResolveMissingSequenceRange(t *testing.T) {
	c, master := newRepairFixture(t)
	packets, err := ResolveMissingSequence(context.Background(), c, MissingSequencePayload{
		Member: master.MID, MetaName: "note-seq", Low: 2, High: 3,
	})
	require.NoError(t, err)
	require.Len(t, packets, 2)
}

func TestResolveMissingMessageAllKnown(t *testing.T) {
	c, master := newRepairFixture(t)
	packets, err := ResolveMissingMessage(context.Background(), c, MissingMessagePayload{Member: master.MID})
	require.NoError(t, err)
	// identity + 3 note-seq messages
	require.Len(t, packets, 4)
}

func TestThrottleLimitsRepeatedReplies(t *testing.T) {
	th := NewThrottle(time.Minute, 2)
	m := member.MID{}
	require.True(t, th.Allow(m))
	require.True(t, th.Allow(m))
	require.False(t, th.Allow(m))
}

func TestResolveMissingProofWalksGrantChain(t *testing.T) {
	c, master := newRepairFixture(t)
	ctx := context.Background()
	cdc := c.Codec

	require.NoError(t, c.RegisterMeta(ctx, meta.New("restricted", meta.AuthSingleMember, meta.ResolutionLinear,
		meta.Distribution{Kind: meta.DistributionFullSync}, meta.DestinationCommunity, meta.DirectionASC)))

	grantee, err := member.GenerateEd25519()
	require.NoError(t, err)

	p := pipeline.New(c, pipeline.Hooks{}, logger.NewDefaultLogger())
	granteeIdentity := signRepair(t, cdc, grantee, c.CID, meta.NameIdentity, 5, 0, false)
	res, err := p.Ingest(ctx, granteeIdentity)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeAccepted, res.Outcome)

	authPayload, err := message.EncodePayload(message.AuthorizePayload{
		Subject: grantee.MID, Meta: "restricted", Action: message.ActionPermit,
	})
	require.NoError(t, err)
	authPacket := signRepairPayload(t, cdc, master, c.CID, meta.NameAuthorize, 6, 0, false, authPayload)
	res, err = p.Ingest(ctx, authPacket)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeAccepted, res.Outcome)

	packets, err := ResolveMissingProof(ctx, c, MissingProofPayload{
		Member: grantee.MID, MetaName: "restricted", GlobalTime: 7,
	})
	require.NoError(t, err)
	require.Len(t, packets, 1)
}
