package txn

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/roach88/achievemint/internal/address"
)

// Keypair is an ed25519 signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// GenerateKeypair creates a keypair from r, or crypto/rand when r is nil.
func GenerateKeypair(r io.Reader) (Keypair, error) {
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{priv: priv}, nil
}

// KeypairFromSeed builds a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("keypair seed: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBytes builds a keypair from the 64-byte private key form
// (seed followed by public key).
func KeypairFromBytes(b []byte) (Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("keypair: want %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	kp, err := KeypairFromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return Keypair{}, err
	}
	if !kp.priv.Equal(ed25519.PrivateKey(b)) {
		return Keypair{}, fmt.Errorf("keypair: public half does not match seed")
	}
	return kp, nil
}

// Address returns the signer identity.
func (k Keypair) Address() address.Address {
	var a address.Address
	copy(a[:], k.priv.Public().(ed25519.PublicKey))
	return a
}

// Bytes returns the 64-byte private key form.
func (k Keypair) Bytes() []byte {
	out := make([]byte, len(k.priv))
	copy(out, k.priv)
	return out
}

// Sign signs msg.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// IsZero reports whether the keypair is uninitialised.
func (k Keypair) IsZero() bool {
	return len(k.priv) == 0
}
