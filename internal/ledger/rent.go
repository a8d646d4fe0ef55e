package ledger

// Rent parameters follow the network defaults: an account must hold
// two years of rent to be exempt.
const (
	// AccountStorageOverhead is the per-account metadata size charged on top of data.
	AccountStorageOverhead = 128

	// LamportsPerByte is the rent-exempt cost of one byte.
	LamportsPerByte = 6960
)

// RentExemptMinimum returns the lamports an account of the given data
// size must hold.
func RentExemptMinimum(space int) uint64 {
	if space < 0 {
		space = 0
	}
	return uint64(AccountStorageOverhead+space) * LamportsPerByte
}
