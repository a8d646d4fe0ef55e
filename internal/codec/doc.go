// Package codec provides the deterministic value model and canonical JSON
// encoding shared by on-ledger records and transaction messages.
//
// Values are restricted to strings, 64-bit integers, booleans, arrays and
// objects. Floats and null are rejected so the same logical value always
// encodes to the same bytes (RFC 8785 key ordering, NFC strings, no HTML
// escaping). Record layouts and message signing both depend on that
// property: a signature or a derived address computed on one machine must
// verify on every other.
package codec
