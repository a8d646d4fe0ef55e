// Package ledger defines the account ledger that programs execute against.
//
// A ledger holds accounts keyed by address. Every account has an owning
// program, a lamport balance, a fixed data capacity and the data itself.
// Wallets are accounts owned by the system program (the zero address) that
// hold only lamports.
//
// All mutation happens inside RunInTx. A transaction sees its own staged
// writes and either commits everything or nothing, which is what gives a
// failed instruction its "no state change" guarantee.
//
// The ledger also carries an append-only journal of submitted transactions.
// Journal entries are ordered by seq, never by wall-clock time.
//
// Two implementations exist: Memory in this package and the SQLite-backed
// store.Store.
package ledger
