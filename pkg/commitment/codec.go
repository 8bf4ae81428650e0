// Package commitment implements the commit-reveal codec binding hidden order
// parameters to an opaque 32-byte on-ledger commitment.
//
// The serialization order and the hash function are fixed and versioned
// together: any change to either invalidates every outstanding commitment,
// so the version byte is folded into the digest and checked at startup.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// CodecVersion identifies the serialization layout + hash pair below.
const CodecVersion byte = 1

// Side is the hidden order direction. Zero means unset so that a freshly
// created record carries no readable direction.
type Side uint8

const (
	SideLong  Side = 1
	SideShort Side = 2
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "unset"
	}
}

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// OrderParams are the sensitive order fields that stay hidden behind the
// commitment until execution. Immutable once committed.
type OrderParams struct {
	MarketIndex     uint16
	Side            Side
	BaseAssetAmount uint64
	ReduceOnly      bool
}

// SerializedLen is the fixed length of Serialize's output: u16 | u8 | u64 | u8.
const SerializedLen = 2 + 1 + 8 + 1

// Serialize produces the fixed-length, field-order-stable little-endian
// encoding of params. Both Commit and Verify go through this single path.
func Serialize(p OrderParams) [SerializedLen]byte {
	var out [SerializedLen]byte
	binary.LittleEndian.PutUint16(out[0:2], p.MarketIndex)
	out[2] = byte(p.Side)
	binary.LittleEndian.PutUint64(out[3:11], p.BaseAssetAmount)
	if p.ReduceOnly {
		out[11] = 1
	}
	return out
}

// Commit computes Keccak256(version || serialize(params) || nonce:u64LE).
func Commit(p OrderParams, nonce uint64) [32]byte {
	ser := Serialize(p)
	var nonceLE [8]byte
	binary.LittleEndian.PutUint64(nonceLE[:], nonce)

	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte{CodecVersion}, ser[:], nonceLE[:]))
	return out
}

// Verify recomputes the commitment and compares it to the stored one. It
// never panics and fails closed: any mismatch, including a wrong-length
// stored commitment, returns false. Callers must treat false as "do not
// execute".
func Verify(p OrderParams, nonce uint64, stored []byte) bool {
	if len(stored) != 32 {
		return false
	}
	want := Commit(p, nonce)
	return subtle.ConstantTimeCompare(want[:], stored) == 1
}

// GenerateNonce returns a cryptographically secure random nonce.
func GenerateNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// CheckVersion guards against running against records committed under a
// different codec. A version mismatch invalidates all outstanding
// commitments and must be fatal at startup, never silently tolerated.
func CheckVersion(v byte) error {
	if v != CodecVersion {
		return fmt.Errorf("commitment codec version mismatch: have %d, want %d", v, CodecVersion)
	}
	return nil
}
