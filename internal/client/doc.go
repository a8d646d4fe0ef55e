// Package client builds, signs and submits badge transactions.
//
// A Client wraps an engine and a program ID. Each call derives the record
// addresses, assembles the instruction with the program builders, signs it
// with the supplied keypairs and submits it. Reads decode records straight
// from the engine's ledger.
package client
