// Package txn defines signed transactions: keypairs, instructions, message
// bytes, ed25519 signatures and content-addressed transaction IDs.
//
// A transaction carries exactly one instruction. The message that is signed
// is the canonical JSON encoding of the instruction plus a nonce, so two
// transactions with the same intent still have different IDs and a journaled
// transaction cannot be replayed.
package txn
