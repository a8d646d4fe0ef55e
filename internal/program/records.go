package program

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/ledger"
)

// Record names. The type tag of each record is derived from its name.
const (
	AuthorityRecordName = "AuthorityRecord"
	BadgeRecordName     = "BadgeRecord"
)

// TagSize is the length of the type tag that prefixes every record.
const TagSize = 8

var (
	authorityTag = recordTag(AuthorityRecordName)
	badgeTag     = recordTag(BadgeRecordName)
)

// recordTag returns the first 8 bytes of sha256("account:" + name).
func recordTag(name string) [TagSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var tag [TagSize]byte
	copy(tag[:], sum[:TagSize])
	return tag
}

// AuthorityRecord binds the administrator to a deployment.
type AuthorityRecord struct {
	Administrator address.Address
	Bump          uint8
}

// BadgeRecord is one minted achievement.
type BadgeRecord struct {
	Owner address.Address
	// Minter is the owner at mint time and the address seed. It never changes.
	Minter           address.Address
	Name             string
	Description      string
	Rarity           string
	UnlockPercentage uint8
	AchievementID    string
	MintTimestamp    int64
	Bump             uint8
}

// Encode returns tag || canonical JSON.
func (r AuthorityRecord) Encode() ([]byte, error) {
	return encodeRecord(authorityTag, codec.Object{
		"administrator": codec.String(r.Administrator.Hex()),
		"bump":          codec.Int(r.Bump),
	})
}

// Encode returns tag || canonical JSON. Addresses are hex so the encoding
// has the same length for any owner, which lets transfer rewrite in place.
func (r BadgeRecord) Encode() ([]byte, error) {
	return encodeRecord(badgeTag, codec.Object{
		"owner":             codec.String(r.Owner.Hex()),
		"minter":            codec.String(r.Minter.Hex()),
		"name":              codec.String(r.Name),
		"description":       codec.String(r.Description),
		"rarity":            codec.String(r.Rarity),
		"unlock_percentage": codec.Int(r.UnlockPercentage),
		"achievement_id":    codec.String(r.AchievementID),
		"mint_timestamp":    codec.Int(r.MintTimestamp),
		"bump":              codec.Int(r.Bump),
	})
}

// DecodeAuthority checks the type tag and decodes an AuthorityRecord.
func DecodeAuthority(data []byte) (AuthorityRecord, error) {
	obj, err := decodeRecord(authorityTag, data)
	if err != nil {
		return AuthorityRecord{}, err
	}
	var (
		r  AuthorityRecord
		rd recordReader
	)
	r.Administrator = rd.address(obj, "administrator")
	r.Bump = rd.uint8(obj, "bump")
	if rd.err != nil {
		return AuthorityRecord{}, failf(ErrInvalidRecordData, "authority: %v", rd.err)
	}
	return r, nil
}

// DecodeBadge checks the type tag and decodes a BadgeRecord.
func DecodeBadge(data []byte) (BadgeRecord, error) {
	obj, err := decodeRecord(badgeTag, data)
	if err != nil {
		return BadgeRecord{}, err
	}
	var (
		r  BadgeRecord
		rd recordReader
	)
	r.Owner = rd.address(obj, "owner")
	r.Minter = rd.address(obj, "minter")
	r.Name = rd.string(obj, "name")
	r.Description = rd.string(obj, "description")
	r.Rarity = rd.string(obj, "rarity")
	r.UnlockPercentage = rd.uint8(obj, "unlock_percentage")
	r.AchievementID = rd.string(obj, "achievement_id")
	r.MintTimestamp = rd.int(obj, "mint_timestamp")
	r.Bump = rd.uint8(obj, "bump")
	if rd.err != nil {
		return BadgeRecord{}, failf(ErrInvalidRecordData, "badge: %v", rd.err)
	}
	return r, nil
}

func encodeRecord(tag [TagSize]byte, obj codec.Object) ([]byte, error) {
	body, err := codec.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(tag[:], body...), nil
}

// decodeRecord verifies the tag before interpreting the remaining bytes.
func decodeRecord(tag [TagSize]byte, data []byte) (codec.Object, error) {
	if len(data) < TagSize || !bytes.Equal(data[:TagSize], tag[:]) {
		return nil, ErrInvalidRecordTag
	}
	v, err := codec.Unmarshal(ledger.TrimData(data[TagSize:]))
	if err != nil {
		return nil, failf(ErrInvalidRecordData, "%v", err)
	}
	obj, ok := v.(codec.Object)
	if !ok {
		return nil, failf(ErrInvalidRecordData, "record body is not an object")
	}
	return obj, nil
}

// recordReader collects the first field error.
type recordReader struct {
	err error
}

func (rd *recordReader) string(obj codec.Object, key string) string {
	if rd.err != nil {
		return ""
	}
	s, err := obj.String(key)
	rd.err = err
	return s
}

func (rd *recordReader) int(obj codec.Object, key string) int64 {
	if rd.err != nil {
		return 0
	}
	n, err := obj.Int(key)
	rd.err = err
	return n
}

func (rd *recordReader) uint8(obj codec.Object, key string) uint8 {
	n := rd.int(obj, key)
	if rd.err == nil && (n < 0 || n > 255) {
		rd.err = fmt.Errorf("%s out of range: %d", key, n)
	}
	return uint8(n)
}

func (rd *recordReader) address(obj codec.Object, key string) address.Address {
	s := rd.string(obj, key)
	if rd.err != nil {
		return address.Address{}
	}
	a, err := address.ParseHex(s)
	rd.err = err
	return a
}
