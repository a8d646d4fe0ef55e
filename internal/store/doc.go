// Package store provides SQLite-backed durable storage for the account
// ledger and its transaction journal.
//
// The store implements ledger.Ledger with:
//   - Accounts: address, owning program, lamports, capacity and data
//   - Journal: append-only record of submitted transactions and airdrops
//
// # Ordering
//
//   - Journal ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Account listings are ordered by address bytes (ORDER BY address ASC)
//   - Both give identical results across replays
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Lamports are stored as INTEGER and capped at math.MaxInt64 by the ledger.
package store
