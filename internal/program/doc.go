// Package program implements the achievement badge program: record layouts,
// the address deriver seeds, the record validator, the authority registry and
// the badge lifecycle (mint, transfer, burn).
//
// # Records
//
// Two record shapes live in program-owned accounts, each prefixed with an
// 8-byte type tag:
//
//   - AuthorityRecord: singleton at the address derived from
//     ["achievemint-authority"]; binds the administrator.
//   - BadgeRecord: one per minted badge at the address derived from
//     ["nft", minter, achievement_id].
//
// A badge's address is fixed at mint time by the identity it was minted to.
// Transfer changes the owner field only, so a badge is always located by its
// minter, never by its current owner.
//
// # Check order
//
// Every handler checks, in order: account list shape, required signatures,
// field bounds, address derivation and record validation, state existence.
// Only then does it mutate. Any failure returns a *Error and the runtime
// discards every write the instruction made.
package program
