package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
)

// Digest hashes account state into a hex string. Two ledgers with the same
// accounts produce the same digest regardless of input order.
func Digest(accounts []Account) string {
	sorted := slices.Clone(accounts)
	SortAccounts(sorted)

	h := sha256.New()
	var buf [8]byte
	for _, a := range sorted {
		h.Write(a.Address[:])
		h.Write(a.Owner[:])
		binary.BigEndian.PutUint64(buf[:], a.Lamports)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(len(a.Data)))
		h.Write(buf[:])
		h.Write(a.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SortAccounts orders accounts by address bytes.
func SortAccounts(accounts []Account) {
	slices.SortFunc(accounts, func(a, b Account) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
}

// TrimData strips zero-fill padding from account data.
func TrimData(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// PadData zero-fills data to space bytes. Returns ErrDataTooLarge if it
// does not fit.
func PadData(data []byte, space int) ([]byte, error) {
	if len(data) > space {
		return nil, ErrDataTooLarge
	}
	out := make([]byte, space)
	copy(out, data)
	return out, nil
}
