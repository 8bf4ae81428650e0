package keeper

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// Signer holds the keeper's ed25519 key pair. The public key doubles as the
// keeper's ledger address (32 bytes), matching the account-addressing
// scheme of both layers.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr ledger.Address
}

// GenerateSigner creates a new random keeper key pair.
func GenerateSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keeper key: %w", err)
	}
	return newSigner(pub, priv), nil
}

// SignerFromSeedHex restores a signer from a 32-byte hex seed.
func SignerFromSeedHex(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse keeper seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keeper seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return newSigner(pub, priv), nil
}

func newSigner(pub ed25519.PublicKey, priv ed25519.PrivateKey) *Signer {
	var addr ledger.Address
	copy(addr[:], pub)
	return &Signer{priv: priv, pub: pub, addr: addr}
}

// Address returns the keeper's ledger address (its public key).
func (s *Signer) Address() ledger.Address { return s.addr }

// Sign signs an arbitrary message.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// Verify checks a signature against a 32-byte address interpreted as an
// ed25519 public key.
func Verify(addr ledger.Address, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(addr[:]), msg, sig)
}
