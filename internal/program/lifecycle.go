package program

import (
	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/engine"
)

// mint creates a badge record owned by the owner account.
//
// Accounts: [payer (signer), authority record, badge record, owner].
func (p *Program) mint(inv engine.Invocation) error {
	accts, err := accounts(inv, 4)
	if err != nil {
		return err
	}
	payer, authority, badge, owner := accts[0], accts[1], accts[2], accts[3]

	if err := requireSigner(inv, payer, "payer"); err != nil {
		return err
	}

	fields, err := parseMintFields(inv.Args)
	if err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	v := p.validator(inv)
	authDerivation, err := DeriveAuthority(p.cfg.ProgramID)
	if err != nil {
		return err
	}
	auth, err := v.authority(authDerivation, authority)
	if err != nil {
		return err
	}
	if p.cfg.RestrictMint && auth.Administrator != payer {
		return failf(ErrUnauthorizedMinter, "payer %s is not administrator %s", payer, auth.Administrator)
	}

	ref := BadgeRef{Minter: owner, AchievementID: fields.AchievementID}
	d, err := DeriveBadge(p.cfg.ProgramID, ref)
	if err != nil {
		return badgeAddressError(err)
	}
	if badge != d.Address {
		return failf(ErrAddressMismatch, "supplied %s, derived %s", badge, d.Address)
	}

	taken, err := occupied(inv.Tx, badge)
	if err != nil {
		return err
	}
	if taken {
		return failf(ErrRecordAlreadyExists, "badge %q already minted to %s", fields.AchievementID, owner)
	}

	rec := BadgeRecord{
		Owner:            owner,
		Minter:           owner,
		Name:             fields.Name,
		Description:      fields.Description,
		Rarity:           fields.Rarity,
		UnlockPercentage: uint8(fields.UnlockPercentage),
		AchievementID:    fields.AchievementID,
		MintTimestamp:    inv.UnixTime,
		Bump:             d.Bump,
	}
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	if _, err := inv.Tx.CreateAccount(badge, p.cfg.ProgramID, payer, data); err != nil {
		return mapLedgerError(err, ErrRecordAlreadyExists)
	}

	inv.Logger.Debug("badge minted", "badge", badge.String(), "owner", owner.String())
	return nil
}

// transfer sets a badge's owner. Every other field is left untouched.
//
// Accounts: [current owner (signer), new owner, badge record].
func (p *Program) transfer(inv engine.Invocation) error {
	accts, err := accounts(inv, 3)
	if err != nil {
		return err
	}
	current, next, badge := accts[0], accts[1], accts[2]

	if err := requireSigner(inv, current, "current owner"); err != nil {
		return err
	}

	rec, err := p.loadOwnedBadge(inv, badge, current)
	if err != nil {
		return err
	}

	rec.Owner = next
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	if err := inv.Tx.WriteAccountData(badge, data); err != nil {
		return err
	}

	inv.Logger.Debug("badge transferred", "badge", badge.String(), "owner", next.String())
	return nil
}

// burn closes a badge record and refunds its lamports to the owner.
//
// Accounts: [owner (signer), badge record].
func (p *Program) burn(inv engine.Invocation) error {
	accts, err := accounts(inv, 2)
	if err != nil {
		return err
	}
	owner, badge := accts[0], accts[1]

	if err := requireSigner(inv, owner, "owner"); err != nil {
		return err
	}

	if _, err := p.loadOwnedBadge(inv, badge, owner); err != nil {
		return err
	}

	refund, err := inv.Tx.CloseAccount(badge, owner)
	if err != nil {
		return err
	}

	inv.Logger.Debug("badge burned", "badge", badge.String(), "refund", refund)
	return nil
}

// loadOwnedBadge re-derives the badge address from the caller's locator,
// validates the stored record against it and checks that signer owns it.
func (p *Program) loadOwnedBadge(inv engine.Invocation, badge, signer address.Address) (BadgeRecord, error) {
	ref, err := parseBadgeRef(inv.Args)
	if err != nil {
		return BadgeRecord{}, err
	}
	if err := checkAchievementID(ref.AchievementID); err != nil {
		return BadgeRecord{}, err
	}

	d, err := DeriveBadge(p.cfg.ProgramID, ref)
	if err != nil {
		return BadgeRecord{}, badgeAddressError(err)
	}
	rec, err := p.validator(inv).badge(ref, d, badge)
	if err != nil {
		return BadgeRecord{}, err
	}
	if err := requireOwner(rec, signer); err != nil {
		return BadgeRecord{}, err
	}
	return rec, nil
}
