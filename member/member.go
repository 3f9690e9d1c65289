// Package member implements the overlay's identity primitive: a public key
// and its derived 20-byte mid (spec §3).
package member

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	meshcrypto "github.com/sage-x-project/meshnet/crypto"
	"github.com/sage-x-project/meshnet/crypto/keys"
)

// MIDSize is the fixed length of a member identifier: SHA-1 of the public key.
const MIDSize = 20

// MID is a member identifier: SHA-1(public key).
type MID [MIDSize]byte

// String renders the mid as hex, used in logs and CLI output.
func (m MID) String() string {
	return hex.EncodeToString(m[:])
}

// Less provides the deterministic tie-break spec §4.2 requires when two
// timeline-affecting messages share a global time.
func (m MID) Less(other MID) bool {
	for i := range m {
		if m[i] != other[i] {
			return m[i] < other[i]
		}
	}
	return false
}

// Member is a public key and its derived mid, optionally carrying a
// private key when the local peer holds it. Members are never destroyed
// once observed; they live in a Community's member table for the process
// lifetime (spec §3 "Lifecycles").
type Member struct {
	MID       MID
	PublicKey []byte
	KeyType   meshcrypto.KeyType

	// keyPair is non-nil only for members whose private key this peer
	// holds, i.e. local identities capable of signing.
	keyPair meshcrypto.KeyPair
}

// ComputeMID derives the mid for a raw public key.
func ComputeMID(publicKey []byte) MID {
	return MID(sha1.Sum(publicKey))
}

// FromPublicKey constructs a Member that can only verify, not sign.
func FromPublicKey(keyType meshcrypto.KeyType, publicKey []byte) (*Member, error) {
	switch keyType {
	case meshcrypto.KeyTypeEd25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("member: invalid ed25519 public key length %d", len(publicKey))
		}
	case meshcrypto.KeyTypeSecp256k1:
		if len(publicKey) != 33 && len(publicKey) != 65 {
			return nil, fmt.Errorf("member: invalid secp256k1 public key length %d", len(publicKey))
		}
	default:
		return nil, meshcrypto.ErrInvalidKeyType
	}

	return &Member{
		MID:       ComputeMID(publicKey),
		PublicKey: publicKey,
		KeyType:   keyType,
	}, nil
}

// FromKeyPair constructs a Member backed by a local key pair, capable of
// signing messages it authors.
func FromKeyPair(kp meshcrypto.KeyPair, publicKeyBytes []byte) *Member {
	return &Member{
		MID:       ComputeMID(publicKeyBytes),
		PublicKey: publicKeyBytes,
		KeyType:   kp.Type(),
		keyPair:   kp,
	}
}

// GenerateEd25519 creates a new local member identity.
func GenerateEd25519() (*Member, error) {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, err
	}
	pub, ok := kp.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("member: unexpected ed25519 public key type")
	}
	return FromKeyPair(kp, []byte(pub)), nil
}

// GenerateSecp256k1 creates a new local member identity using the
// alternate secp256k1 key type.
func GenerateSecp256k1() (*Member, error) {
	kp, err := keys.GenerateSecp256k1KeyPair()
	if err != nil {
		return nil, err
	}
	pub, ok := kp.PublicKey().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("member: unexpected secp256k1 public key type")
	}
	compressed := elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
	return FromKeyPair(kp, compressed), nil
}

// CanSign reports whether this member holds a private key locally.
func (m *Member) CanSign() bool {
	return m.keyPair != nil
}

// Sign signs a message payload. Returns an error if the private key is not
// held locally.
func (m *Member) Sign(payload []byte) ([]byte, error) {
	if m.keyPair == nil {
		return nil, fmt.Errorf("member %s: no private key held", m.MID)
	}
	return m.keyPair.Sign(payload)
}

// Verify verifies a signature against this member's public key.
func (m *Member) Verify(payload, signature []byte) error {
	switch m.KeyType {
	case meshcrypto.KeyTypeEd25519:
		if !ed25519.Verify(ed25519.PublicKey(m.PublicKey), payload, signature) {
			return meshcrypto.ErrInvalidSignature
		}
		return nil
	case meshcrypto.KeyTypeSecp256k1:
		if m.keyPair != nil {
			return m.keyPair.Verify(payload, signature)
		}
		return verifySecp256k1(m.PublicKey, payload, signature)
	default:
		return meshcrypto.ErrInvalidKeyType
	}
}

// verifySecp256k1 verifies a 64-byte r||s signature against a compressed or
// uncompressed secp256k1 public key, matching crypto/keys.secp256k1KeyPair's
// signature encoding.
func verifySecp256k1(publicKey, payload, signature []byte) error {
	if len(signature) != 64 {
		return meshcrypto.ErrInvalidSignature
	}

	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return fmt.Errorf("member: parse secp256k1 public key: %w", err)
	}

	hash := sha256.Sum256(payload)
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])

	if !ecdsa.Verify(pub.ToECDSA(), hash[:], r, s) {
		return meshcrypto.ErrInvalidSignature
	}
	return nil
}
