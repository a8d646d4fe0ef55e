package program

import (
	"errors"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/ledger"
)

// validator checks stored records against their expected derivation.
type validator struct {
	programID address.Address
	tx        ledger.Tx
}

// load runs the address, existence and ownership checks shared by both
// record kinds and returns the raw account.
func (v validator) load(expected address.Derivation, supplied address.Address, missing *Error) (ledger.Account, error) {
	if supplied != expected.Address {
		return ledger.Account{}, failf(ErrAddressMismatch, "supplied %s, derived %s", supplied, expected.Address)
	}
	acct, err := v.tx.Account(supplied)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.Account{}, failf(missing, "no record at %s", supplied)
	}
	if err != nil {
		return ledger.Account{}, err
	}
	if acct.Owner != v.programID {
		return ledger.Account{}, failf(ErrWrongProgram, "%s is owned by %s", supplied, acct.Owner)
	}
	return acct, nil
}

// authority validates the singleton record.
func (v validator) authority(expected address.Derivation, supplied address.Address) (AuthorityRecord, error) {
	acct, err := v.load(expected, supplied, ErrNotInitialized)
	if err != nil {
		return AuthorityRecord{}, err
	}
	rec, err := DecodeAuthority(acct.Data)
	if err != nil {
		return AuthorityRecord{}, err
	}
	if rec.Bump != expected.Bump {
		return AuthorityRecord{}, failf(ErrProofMismatch, "authority bump %d, derived %d", rec.Bump, expected.Bump)
	}
	return rec, nil
}

// badge validates a badge record located by ref.
func (v validator) badge(ref BadgeRef, expected address.Derivation, supplied address.Address) (BadgeRecord, error) {
	acct, err := v.load(expected, supplied, ErrRecordNotFound)
	if err != nil {
		return BadgeRecord{}, err
	}
	rec, err := DecodeBadge(acct.Data)
	if err != nil {
		return BadgeRecord{}, err
	}
	if rec.Bump != expected.Bump {
		return BadgeRecord{}, failf(ErrProofMismatch, "badge bump %d, derived %d", rec.Bump, expected.Bump)
	}
	if rec.Minter != ref.Minter || rec.AchievementID != Normalize(ref.AchievementID) {
		return BadgeRecord{}, failf(ErrProofMismatch, "stored seeds do not match derivation")
	}
	return rec, nil
}

// requireOwner is the ownership gate for transfer and burn.
func requireOwner(rec BadgeRecord, signer address.Address) error {
	if rec.Owner != signer {
		return failf(ErrNotOwner, "badge %q is owned by %s, not %s", rec.AchievementID, rec.Owner, signer)
	}
	return nil
}

// occupied reports whether addr already holds state. A system account
// with no data is only a balance: lamports sent to an unused address do
// not claim it, and CreateAccount takes it over.
func occupied(tx ledger.Tx, addr address.Address) (bool, error) {
	acct, err := tx.Account(addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acct.Owner != ledger.SystemProgram || acct.Space > 0, nil
}

// mapLedgerError converts ledger rejections into program errors. Other
// errors pass through and abort the transaction as infrastructure failures.
func mapLedgerError(err error, exists *Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return failf(ErrInsufficientFunds, "%v", err)
	case errors.Is(err, ledger.ErrAccountExists):
		return failf(exists, "%v", err)
	default:
		return fmt.Errorf("ledger: %w", err)
	}
}
