package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds is the maximum number of seeds in one derivation.
	MaxSeeds = 16

	// MaxSeedLength is the maximum length of a single seed in bytes.
	MaxSeedLength = 64

	// pdaMarker is appended after the program ID so derived digests can
	// never collide with digests produced for another purpose.
	pdaMarker = "ProgramDerivedAddress"
)

var (
	// ErrTooManySeeds is returned when more than MaxSeeds seeds are given.
	ErrTooManySeeds = errors.New("too many seeds")

	// ErrMaxSeedLength is returned when a seed exceeds MaxSeedLength.
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")

	// ErrOnCurve is returned when a candidate address is a valid ed25519
	// point and could therefore have a private key.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump is returned when every bump yields an on-curve address.
	ErrNoViableBump = errors.New("unable to find a viable bump")
)

// Derivation is the result of a successful derivation.
type Derivation struct {
	Address Address
	Bump    uint8
}

// CreateProgramAddress computes the address for seeds and an explicit bump.
//
// Digest: SHA256(seed_0 || ... || seed_n || bump || programID || "ProgramDerivedAddress").
// Returns ErrOnCurve if the digest is a valid ed25519 point.
//
// Seeds are concatenated without length framing, matching the network's
// derivation. ["ab", "c"] and ["a", "bc"] therefore derive the same address;
// callers must choose seed layouts that stay unambiguous under
// concatenation, such as fixed-width seeds with at most one variable-length
// seed last.
func CreateProgramAddress(seeds [][]byte, bump uint8, programID Address) (Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, err
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var candidate Address
	copy(candidate[:], h.Sum(nil))

	if IsOnCurve(candidate) {
		return Zero, ErrOnCurve
	}
	return candidate, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, 0, err
	}

	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(seeds, uint8(bump), programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// Derive is FindProgramAddress returning a Derivation. The same framing
// rule as CreateProgramAddress applies to seeds.
func Derive(programID Address, seeds ...[]byte) (Derivation, error) {
	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{Address: addr, Bump: bump}, nil
}

// IsOnCurve reports whether a decodes as a point on the ed25519 curve.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(seed))
		}
	}
	return nil
}
