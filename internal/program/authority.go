package program

import (
	"github.com/roach88/achievemint/internal/engine"
)

// bootstrap creates the singleton authority record.
//
// Accounts: [payer (signer), administrator (signer), authority record].
func (p *Program) bootstrap(inv engine.Invocation) error {
	accts, err := accounts(inv, 3)
	if err != nil {
		return err
	}
	payer, admin, authority := accts[0], accts[1], accts[2]

	if err := requireSigner(inv, payer, "payer"); err != nil {
		return err
	}
	if err := requireSigner(inv, admin, "administrator"); err != nil {
		return err
	}

	d, err := DeriveAuthority(p.cfg.ProgramID)
	if err != nil {
		return err
	}
	if authority != d.Address {
		return failf(ErrAddressMismatch, "supplied %s, derived %s", authority, d.Address)
	}

	taken, err := occupied(inv.Tx, authority)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyInitialized
	}

	data, err := AuthorityRecord{Administrator: admin, Bump: d.Bump}.Encode()
	if err != nil {
		return err
	}
	if _, err := inv.Tx.CreateAccount(authority, p.cfg.ProgramID, payer, data); err != nil {
		return mapLedgerError(err, ErrAlreadyInitialized)
	}

	inv.Logger.Debug("authority initialized", "administrator", admin.String())
	return nil
}
