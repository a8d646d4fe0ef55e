package txn

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed IDs. The version suffix leaves room
// for a future algorithm change.
const (
	DomainTransaction = "achievemint/transaction/v1"
	DomainAirdrop     = "achievemint/airdrop/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null byte prevents ambiguity at the domain/data boundary.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
