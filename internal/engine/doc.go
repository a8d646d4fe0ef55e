// Package engine is the host runtime that executes signed transactions
// against the ledger.
//
// EXECUTION MODEL:
//
// Submit handles one transaction at a time:
// 1. Route by program ID (unknown programs are rejected)
// 2. Verify every ed25519 signature over the message bytes
// 3. Reject a transaction ID that is already journaled
// 4. Stamp the transaction with the next slot and the current ledger time
// 5. Run the program inside ledger.RunInTx and journal the outcome
//
// A program error rolls back every write the instruction made. The failure is
// then journaled on its own so the journal records every accepted submission,
// successful or not. Pre-checks (steps 1-3) are not journaled.
//
// Errors are returned synchronously and never retried.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Slots come from a monotonic Clock. Journal order is seq order, NEVER
// wall-clock order. Wall time is read once per transaction and journaled so
// replay observes the same timestamp.
//
// Replay:
// Replay re-executes the journal against an empty ledger using the journaled
// slot and time. The resulting account digest must equal the live digest.
package engine
