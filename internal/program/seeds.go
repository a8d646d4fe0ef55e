package program

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/achievemint/internal/address"
)

// Seed namespaces.
const (
	AuthoritySeed = "achievemint-authority"
	BadgeSeed     = "nft"
)

// Field bounds, in UTF-8 bytes after NFC normalisation.
const (
	MaxNameLength          = 32
	MaxDescriptionLength   = 200
	MaxRarityLength        = 20
	MaxAchievementIDLength = 50
	MaxUnlockPercentage    = 100
)

// DefaultProgramID is the deployed program address.
var DefaultProgramID = address.MustParse("5SMBZMjXcW3r8tX25cMANwsSq5nFCBYAuFr8xNagDnA1")

// BadgeRef locates a badge: the identity it was minted to plus its
// achievement ID. It stays valid across transfers.
type BadgeRef struct {
	Minter        address.Address
	AchievementID string
}

// Normalize returns s in Unicode NFC. All string inputs are normalised before
// they are measured, stored or used as seeds.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// AuthoritySeeds returns the singleton seed list.
func AuthoritySeeds() [][]byte {
	return [][]byte{[]byte(AuthoritySeed)}
}

// BadgeSeeds returns the seed list for a badge.
func BadgeSeeds(ref BadgeRef) [][]byte {
	return [][]byte{
		[]byte(BadgeSeed),
		ref.Minter.Bytes(),
		[]byte(Normalize(ref.AchievementID)),
	}
}

// DeriveAuthority returns the authority record address and bump.
func DeriveAuthority(programID address.Address) (address.Derivation, error) {
	d, err := address.Derive(programID, AuthoritySeeds()...)
	if err != nil {
		return address.Derivation{}, fmt.Errorf("derive authority: %w", err)
	}
	return d, nil
}

// DeriveBadge returns the badge record address and bump for ref.
func DeriveBadge(programID address.Address, ref BadgeRef) (address.Derivation, error) {
	d, err := address.Derive(programID, BadgeSeeds(ref)...)
	if err != nil {
		return address.Derivation{}, fmt.Errorf("derive badge %q: %w", ref.AchievementID, err)
	}
	return d, nil
}

// checkAchievementID enforces the achievement ID bound. It runs before any
// derivation so seed limits are never reached through the program.
func checkAchievementID(id string) error {
	if n := len(id); n > MaxAchievementIDLength {
		return failf(ErrAchievementIDTooLong, "achievement id is %d bytes, must be <= %d", n, MaxAchievementIDLength)
	}
	return nil
}

// MintFields are the caller-supplied badge fields.
type MintFields struct {
	Name             string
	Description      string
	Rarity           string
	UnlockPercentage int64
	AchievementID    string
}

// Normalized returns f with every string in NFC.
func (f MintFields) Normalized() MintFields {
	f.Name = Normalize(f.Name)
	f.Description = Normalize(f.Description)
	f.Rarity = Normalize(f.Rarity)
	f.AchievementID = Normalize(f.AchievementID)
	return f
}

// Validate checks the bounds in declaration order and returns the first
// violation. f must already be normalised.
//
// Lengths are UTF-8 byte counts of the NFC form, not character counts.
// U+00E9 counts as 2 bytes, so a name outside ASCII holds fewer than
// MaxNameLength characters.
func (f MintFields) Validate() error {
	if n := len(f.Name); n > MaxNameLength {
		return failf(ErrNameTooLong, "name is %d bytes, must be <= %d", n, MaxNameLength)
	}
	if n := len(f.Description); n > MaxDescriptionLength {
		return failf(ErrDescriptionTooLong, "description is %d bytes, must be <= %d", n, MaxDescriptionLength)
	}
	if n := len(f.Rarity); n > MaxRarityLength {
		return failf(ErrRarityTooLong, "rarity is %d bytes, must be <= %d", n, MaxRarityLength)
	}
	if p := f.UnlockPercentage; p < 0 || p > MaxUnlockPercentage {
		return failf(ErrInvalidUnlockPercentage, "unlock percentage %d not in 0..%d", p, MaxUnlockPercentage)
	}
	return checkAchievementID(f.AchievementID)
}
