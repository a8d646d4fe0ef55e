// Package address defines ledger identities and the deterministic address
// deriver.
//
// An Address is 32 bytes. For a signer it is the ed25519 public key; for a
// program-owned record it is a program-derived address: a SHA-256 digest of
// the seeds, a one-byte bump and the program ID that does not decode as an
// ed25519 point. Because no private key exists for an off-curve address,
// only the owning program can ever authorise writes to it.
//
// Derivation is a pure function. The same seeds always produce the same
// (address, bump) pair, and the bump search walks from 255 down so the first
// off-curve candidate is canonical.
package address
