package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/meshnet/codec"
	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/message"
	"github.com/sage-x-project/meshnet/meta"
)

func testRegistry(t *testing.T) *meta.Registry {
	t.Helper()
	reg := meta.NewRegistry()
	reg.Register(meta.New("batched-text", meta.AuthSingleMember, meta.ResolutionPublic,
		meta.Distribution{Kind: meta.DistributionFullSync}, meta.DestinationCommunity, meta.DirectionASC))
	reg.Register(meta.New("pair-meta", meta.AuthDoubleMember, meta.ResolutionPublic,
		meta.Distribution{Kind: meta.DistributionLastN, N: 1}, meta.DestinationCommunity, meta.DirectionASC))
	return reg
}

func signedMessage(t *testing.T, cid member.MID, metaName string, gt uint64, m *member.Member) *message.Message {
	t.Helper()
	payload, err := message.EncodePayload(map[string]string{"text": "hello"})
	require.NoError(t, err)

	msg := &message.Message{
		Community:  cid,
		MetaName:   metaName,
		GlobalTime: gt,
		Payload:    payload,
		Auth: []message.AuthEntry{
			{MID: m.MID, PublicKey: m.PublicKey, KeyType: m.KeyType},
		},
	}

	c := codec.New()
	unsigned, err := c.Encode(msg)
	require.NoError(t, err)

	sig, err := m.Sign(unsigned[:len(unsigned)-codec.SignatureSlotSize])
	require.NoError(t, err)
	msg.Auth[0].Signature = sig
	_, err = c.Encode(msg)
	require.NoError(t, err)
	return msg
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	cid := m.MID

	msg := signedMessage(t, cid, "batched-text", 42, m)

	reg := testRegistry(t)
	c := codec.New()
	decoded, err := c.Decode(cid, reg, msg.Packet)
	require.NoError(t, err)

	require.Equal(t, msg.Community, decoded.Community)
	require.Equal(t, msg.MetaName, decoded.MetaName)
	require.Equal(t, msg.GlobalTime, decoded.GlobalTime)
	require.Equal(t, msg.Payload, decoded.Payload)
	require.True(t, decoded.FullySigned())
	require.Equal(t, m.MID, decoded.Creator())
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	cid := m.MID

	msg := signedMessage(t, cid, "batched-text", 42, m)
	msg.Packet[len(msg.Packet)-1] ^= 0xFF // corrupt final signature byte

	reg := testRegistry(t)
	c := codec.New()
	_, err = c.Decode(cid, reg, msg.Packet)
	require.ErrorIs(t, err, codec.ErrBadSignature)
}

func TestDecodeRejectsCommunityMismatch(t *testing.T) {
	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	msg := signedMessage(t, m.MID, "batched-text", 1, m)

	other, err := member.GenerateEd25519()
	require.NoError(t, err)

	reg := testRegistry(t)
	c := codec.New()
	_, err = c.Decode(other.MID, reg, msg.Packet)
	require.ErrorIs(t, err, codec.ErrCommunityMismatch)
}

func TestDecodeRejectsUnknownMeta(t *testing.T) {
	m, err := member.GenerateEd25519()
	require.NoError(t, err)
	msg := signedMessage(t, m.MID, "does-not-exist", 1, m)

	reg := testRegistry(t)
	c := codec.New()
	_, err = c.Decode(m.MID, reg, msg.Packet)
	require.ErrorIs(t, err, codec.ErrUnknownMeta)
}

func TestEncodeDecodePendingDoubleSignature(t *testing.T) {
	initiator, err := member.GenerateEd25519()
	require.NoError(t, err)
	responder, err := member.GenerateEd25519()
	require.NoError(t, err)

	cid := initiator.MID
	msg := &message.Message{
		Community:  cid,
		MetaName:   "pair-meta",
		GlobalTime: 10,
		Payload:    []byte("split-payload"),
		Auth: []message.AuthEntry{
			{MID: initiator.MID, PublicKey: initiator.PublicKey, KeyType: initiator.KeyType},
			{MID: responder.MID, PublicKey: responder.PublicKey, KeyType: responder.KeyType},
		},
	}

	c := codec.New()
	unsigned, err := c.Encode(msg)
	require.NoError(t, err)

	sig, err := initiator.Sign(unsigned[:len(unsigned)-2*codec.SignatureSlotSize])
	require.NoError(t, err)
	msg.Auth[0].Signature = sig
	packet, err := c.Encode(msg)
	require.NoError(t, err)

	reg := testRegistry(t)
	decoded, err := c.Decode(cid, reg, packet)
	require.NoError(t, err)
	require.False(t, decoded.FullySigned())
	require.True(t, decoded.Auth[0].Signed())
	require.False(t, decoded.Auth[1].Signed())
}
