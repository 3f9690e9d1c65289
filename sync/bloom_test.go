package sync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterAddTest(t *testing.T) {
	f := NewFilter(0x42)
	held := []byte("packet-one")
	absent := []byte("packet-two")

	require.False(t, f.Test(held))
	f.Add(held)
	require.True(t, f.Test(held))
	require.False(t, f.Test(absent))
}

func TestFilterEncodeDecodeRoundTrip(t *testing.T) {
	f := NewFilter(0x07)
	for _, p := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		f.Add(p)
	}

	wire := f.Encode()
	require.Len(t, wire, WireSize)

	decoded, err := DecodeFilter(wire)
	require.NoError(t, err)
	require.Equal(t, byte(0x07), decoded.Salt())
	require.True(t, decoded.Test([]byte("a")))
	require.True(t, decoded.Test([]byte("b")))
	require.True(t, decoded.Test([]byte("c")))
}

func TestDecodeFilterRejectsWrongSize(t *testing.T) {
	_, err := DecodeFilter(make([]byte, WireSize-1))
	require.ErrorIs(t, err, ErrWireSize)
}
