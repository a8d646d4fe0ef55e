package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/engine"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/txn"
)

// ErrBadgeNotFound is returned by Badge when no record exists for a ref.
var ErrBadgeNotFound = errors.New("badge not found")

// ErrNotBootstrapped is returned by Authority before bootstrap has run.
var ErrNotBootstrapped = errors.New("authority not bootstrapped")

// Client submits badge instructions to an engine.
type Client struct {
	engine    *engine.Engine
	programID address.Address
	nonces    txn.NonceGenerator
}

// Option configures a Client.
type Option func(*Client)

// WithNonceGenerator sets the nonce source for new transactions.
func WithNonceGenerator(g txn.NonceGenerator) Option {
	return func(c *Client) {
		c.nonces = g
	}
}

// New creates a Client. A zero programID uses program.DefaultProgramID.
func New(e *engine.Engine, programID address.Address, opts ...Option) *Client {
	if programID.IsZero() {
		programID = program.DefaultProgramID
	}
	c := &Client{
		engine:    e,
		programID: programID,
		nonces:    txn.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProgramID returns the program the client targets.
func (c *Client) ProgramID() address.Address {
	return c.programID
}

// Bootstrap creates the authority record with admin as administrator.
func (c *Client) Bootstrap(ctx context.Context, payer, admin txn.Keypair) (engine.Receipt, error) {
	ix, err := program.Bootstrap(c.programID, payer.Address(), admin.Address())
	if err != nil {
		return engine.Receipt{}, err
	}
	signers := []txn.Keypair{payer}
	if admin.Address() != payer.Address() {
		signers = append(signers, admin)
	}
	return c.submit(ctx, ix, signers...)
}

// Mint creates a badge owned by owner, paid for by payer. The returned ref
// locates the badge for later transfers and burns.
func (c *Client) Mint(ctx context.Context, payer txn.Keypair, owner address.Address, f program.MintFields) (program.BadgeRef, engine.Receipt, error) {
	ref := program.BadgeRef{Minter: owner, AchievementID: program.Normalize(f.AchievementID)}
	ix, err := program.Mint(c.programID, payer.Address(), owner, f)
	if err != nil {
		return ref, engine.Receipt{}, err
	}
	r, err := c.submit(ctx, ix, payer)
	return ref, r, err
}

// Transfer moves the badge at ref from owner to newOwner.
func (c *Client) Transfer(ctx context.Context, owner txn.Keypair, newOwner address.Address, ref program.BadgeRef) (engine.Receipt, error) {
	ix, err := program.Transfer(c.programID, owner.Address(), newOwner, ref)
	if err != nil {
		return engine.Receipt{}, err
	}
	return c.submit(ctx, ix, owner)
}

// Burn destroys the badge at ref. Its storage deposit is refunded to owner.
func (c *Client) Burn(ctx context.Context, owner txn.Keypair, ref program.BadgeRef) (engine.Receipt, error) {
	ix, err := program.Burn(c.programID, owner.Address(), ref)
	if err != nil {
		return engine.Receipt{}, err
	}
	return c.submit(ctx, ix, owner)
}

// Airdrop credits lamports to an identity.
func (c *Client) Airdrop(ctx context.Context, to address.Address, lamports uint64) (engine.Receipt, error) {
	return c.engine.Airdrop(ctx, to, lamports)
}

// Balance returns the lamports held at addr. Unknown addresses hold zero.
func (c *Client) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	return c.engine.Ledger().Balance(ctx, addr)
}

// Badge reads and decodes the badge at ref.
func (c *Client) Badge(ctx context.Context, ref program.BadgeRef) (program.BadgeRecord, address.Address, error) {
	d, err := program.DeriveBadge(c.programID, ref)
	if err != nil {
		return program.BadgeRecord{}, address.Zero, err
	}
	acct, err := c.engine.Ledger().Account(ctx, d.Address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return program.BadgeRecord{}, d.Address, fmt.Errorf("%w: %s", ErrBadgeNotFound, d.Address)
	}
	if err != nil {
		return program.BadgeRecord{}, d.Address, err
	}
	if acct.Owner != c.programID {
		return program.BadgeRecord{}, d.Address, fmt.Errorf("badge %s: owned by %s", d.Address, acct.Owner)
	}
	rec, err := program.DecodeBadge(ledger.TrimData(acct.Data))
	if err != nil {
		return program.BadgeRecord{}, d.Address, fmt.Errorf("badge %s: %w", d.Address, err)
	}
	return rec, d.Address, nil
}

// Authority reads and decodes the authority record.
func (c *Client) Authority(ctx context.Context) (program.AuthorityRecord, address.Address, error) {
	d, err := program.DeriveAuthority(c.programID)
	if err != nil {
		return program.AuthorityRecord{}, address.Zero, err
	}
	acct, err := c.engine.Ledger().Account(ctx, d.Address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return program.AuthorityRecord{}, d.Address, ErrNotBootstrapped
	}
	if err != nil {
		return program.AuthorityRecord{}, d.Address, err
	}
	rec, err := program.DecodeAuthority(ledger.TrimData(acct.Data))
	if err != nil {
		return program.AuthorityRecord{}, d.Address, fmt.Errorf("authority %s: %w", d.Address, err)
	}
	return rec, d.Address, nil
}

func (c *Client) submit(ctx context.Context, ix txn.Instruction, signers ...txn.Keypair) (engine.Receipt, error) {
	tx := txn.New(ix, c.nonces.Generate())
	if err := tx.Sign(signers...); err != nil {
		return engine.Receipt{}, fmt.Errorf("sign %s: %w", ix.Name, err)
	}
	return c.engine.Submit(ctx, tx)
}
