package program

import (
	"log/slog"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/engine"
)

// Config selects the deployment and its mint policy.
type Config struct {
	ProgramID address.Address

	// RestrictMint requires the mint payer to be the authority's
	// administrator. When false any payer may mint once the authority exists.
	RestrictMint bool
}

// DefaultConfig returns the deployed program ID with unrestricted minting.
func DefaultConfig() Config {
	return Config{ProgramID: DefaultProgramID}
}

// Program executes badge instructions. It holds no mutable state; every
// invocation works only through the ledger transaction it is given.
type Program struct {
	cfg Config
}

// New creates a Program. A zero ProgramID uses DefaultProgramID.
func New(cfg Config) *Program {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = DefaultProgramID
	}
	return &Program{cfg: cfg}
}

// ProgramID implements engine.Processor.
func (p *Program) ProgramID() address.Address {
	return p.cfg.ProgramID
}

// Config returns the program configuration.
func (p *Program) Config() Config {
	return p.cfg
}

// Process implements engine.Processor.
func (p *Program) Process(inv engine.Invocation) error {
	if inv.Logger == nil {
		inv.Logger = slog.Default()
	}
	switch inv.Instruction {
	case InstructionBootstrap:
		return p.bootstrap(inv)
	case InstructionMint:
		return p.mint(inv)
	case InstructionTransfer:
		return p.transfer(inv)
	case InstructionBurn:
		return p.burn(inv)
	default:
		return failf(ErrInvalidInstruction, "unknown instruction %q", inv.Instruction)
	}
}

func (p *Program) validator(inv engine.Invocation) validator {
	return validator{programID: p.cfg.ProgramID, tx: inv.Tx}
}

// accounts checks the account list length and returns the addresses.
func accounts(inv engine.Invocation, want int) ([]address.Address, error) {
	if len(inv.Accounts) != want {
		return nil, failf(ErrInvalidInstruction, "%s expects %d accounts, got %d", inv.Instruction, want, len(inv.Accounts))
	}
	out := make([]address.Address, want)
	for i, meta := range inv.Accounts {
		out[i] = meta.Address
	}
	return out, nil
}

func requireSigner(inv engine.Invocation, who address.Address, role string) error {
	if !inv.Signers.Has(who) {
		return failf(ErrMissingSignature, "%s %s did not sign", role, who)
	}
	return nil
}

var _ engine.Processor = (*Program)(nil)
