package program

import (
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/txn"
)

// Instruction names.
const (
	InstructionBootstrap = "bootstrap"
	InstructionMint      = "mint"
	InstructionTransfer  = "transfer"
	InstructionBurn      = "burn"
)

// Argument keys.
const (
	argName             = "name"
	argDescription      = "description"
	argRarity           = "rarity"
	argUnlockPercentage = "unlock_percentage"
	argAchievementID    = "achievement_id"
	argMinter           = "minter"
)

// Bootstrap builds the instruction that creates the authority record.
// payer and administrator may be the same identity.
func Bootstrap(programID, payer, administrator address.Address) (txn.Instruction, error) {
	d, err := DeriveAuthority(programID)
	if err != nil {
		return txn.Instruction{}, err
	}
	return txn.Instruction{
		ProgramID: programID,
		Name:      InstructionBootstrap,
		Accounts: []txn.AccountMeta{
			{Address: payer, Signer: true, Writable: true},
			{Address: administrator, Signer: true},
			{Address: d.Address, Writable: true},
		},
		Args: codec.Object{},
	}, nil
}

// Mint builds the instruction that creates a badge owned by owner. The badge
// address is seeded with owner.
func Mint(programID, payer, owner address.Address, f MintFields) (txn.Instruction, error) {
	auth, err := DeriveAuthority(programID)
	if err != nil {
		return txn.Instruction{}, err
	}
	badge, err := DeriveBadge(programID, BadgeRef{Minter: owner, AchievementID: f.AchievementID})
	if err != nil {
		return txn.Instruction{}, badgeAddressError(err)
	}
	return txn.Instruction{
		ProgramID: programID,
		Name:      InstructionMint,
		Accounts: []txn.AccountMeta{
			{Address: payer, Signer: true, Writable: true},
			{Address: auth.Address},
			{Address: badge.Address, Writable: true},
			{Address: owner},
		},
		Args: codec.Object{
			argName:             codec.String(f.Name),
			argDescription:      codec.String(f.Description),
			argRarity:           codec.String(f.Rarity),
			argUnlockPercentage: codec.Int(f.UnlockPercentage),
			argAchievementID:    codec.String(f.AchievementID),
		},
	}, nil
}

// Transfer builds the instruction that moves a badge to newOwner.
func Transfer(programID, currentOwner, newOwner address.Address, ref BadgeRef) (txn.Instruction, error) {
	badge, err := DeriveBadge(programID, ref)
	if err != nil {
		return txn.Instruction{}, badgeAddressError(err)
	}
	return txn.Instruction{
		ProgramID: programID,
		Name:      InstructionTransfer,
		Accounts: []txn.AccountMeta{
			{Address: currentOwner, Signer: true},
			{Address: newOwner},
			{Address: badge.Address, Writable: true},
		},
		Args: refArgs(ref),
	}, nil
}

// Burn builds the instruction that destroys a badge and refunds its
// storage cost to owner.
func Burn(programID, owner address.Address, ref BadgeRef) (txn.Instruction, error) {
	badge, err := DeriveBadge(programID, ref)
	if err != nil {
		return txn.Instruction{}, badgeAddressError(err)
	}
	return txn.Instruction{
		ProgramID: programID,
		Name:      InstructionBurn,
		Accounts: []txn.AccountMeta{
			{Address: owner, Signer: true, Writable: true},
			{Address: badge.Address, Writable: true},
		},
		Args: refArgs(ref),
	}, nil
}

func refArgs(ref BadgeRef) codec.Object {
	return codec.Object{
		argMinter:        codec.String(ref.Minter.String()),
		argAchievementID: codec.String(ref.AchievementID),
	}
}

// parseMintFields reads and normalises mint arguments.
func parseMintFields(args codec.Object) (MintFields, error) {
	var (
		f   MintFields
		err error
	)
	if f.Name, err = args.String(argName); err != nil {
		return MintFields{}, failf(ErrInvalidInstruction, "%v", err)
	}
	if f.Description, err = args.String(argDescription); err != nil {
		return MintFields{}, failf(ErrInvalidInstruction, "%v", err)
	}
	if f.Rarity, err = args.String(argRarity); err != nil {
		return MintFields{}, failf(ErrInvalidInstruction, "%v", err)
	}
	if f.UnlockPercentage, err = args.Int(argUnlockPercentage); err != nil {
		return MintFields{}, failf(ErrInvalidInstruction, "%v", err)
	}
	if f.AchievementID, err = args.String(argAchievementID); err != nil {
		return MintFields{}, failf(ErrInvalidInstruction, "%v", err)
	}
	return f.Normalized(), nil
}

// parseBadgeRef reads the locator arguments of transfer and burn.
func parseBadgeRef(args codec.Object) (BadgeRef, error) {
	minterText, err := args.String(argMinter)
	if err != nil {
		return BadgeRef{}, failf(ErrInvalidInstruction, "%v", err)
	}
	minter, err := address.Parse(minterText)
	if err != nil {
		return BadgeRef{}, failf(ErrInvalidInstruction, "minter: %v", err)
	}
	id, err := args.String(argAchievementID)
	if err != nil {
		return BadgeRef{}, failf(ErrInvalidInstruction, "%v", err)
	}
	return BadgeRef{Minter: minter, AchievementID: Normalize(id)}, nil
}

// badgeAddressError turns a derivation failure into a bound violation. Inside
// the program the achievement ID check runs first, so there this only fires
// for unusual inputs; builders hit it for IDs longer than a seed.
func badgeAddressError(err error) error {
	return failf(ErrAchievementIDTooLong, "%v", fmt.Errorf("derive: %w", err))
}
