// Package ledger models an account store with fixed 32-byte keys, each
// account owned by exactly one authority at a time. Two instances back the
// system: the permanent base layer and the delegated execution layer.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address is a 32-byte account key.
type Address [32]byte

var ZeroAddress Address

func (a Address) Hex() string { return hexutil.Encode(a[:]) }

func (a Address) IsZero() bool { return a == ZeroAddress }

// AddressFromHex parses a 0x-prefixed 64-char hex string.
func AddressFromHex(s string) (Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != 32 {
		return Address{}, fmt.Errorf("invalid address length: %d", len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != 32 {
		return Address{}, fmt.Errorf("invalid address length: %d", len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// DeriveAddress deterministically derives an account address from a program
// and an ordered list of seeds. Each seed is length-prefixed so that seed
// boundaries cannot be shifted to produce a colliding derivation.
func DeriveAddress(program Address, seeds ...[]byte) Address {
	chunks := make([][]byte, 0, 2*len(seeds)+1)
	for _, s := range seeds {
		chunks = append(chunks, []byte{byte(len(s))}, s)
	}
	chunks = append(chunks, program[:])

	var out Address
	copy(out[:], crypto.Keccak256(chunks...))
	return out
}

// FindDerivedAddress searches bump seeds from 255 downward and returns the
// first derived address whose last byte is nonzero, together with the bump.
// The nonzero-tail rule keeps derived addresses disjoint from raw key space
// reserved for signer accounts (which are zero-padded in tests).
func FindDerivedAddress(program Address, seeds ...[]byte) (Address, uint8) {
	for bump := 255; bump >= 0; bump-- {
		all := append(append([][]byte{}, seeds...), []byte{byte(bump)})
		addr := DeriveAddress(program, all...)
		if addr[31] != 0 {
			return addr, uint8(bump)
		}
	}
	// Keccak output with a zero tail for all 256 bumps does not happen in
	// practice; fall back to bump 0.
	all := append(append([][]byte{}, seeds...), []byte{0})
	return DeriveAddress(program, all...), 0
}
