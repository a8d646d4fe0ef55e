package cli

import (
	"context"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/client"
	"github.com/roach88/achievemint/internal/engine"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/store"
	"github.com/roach88/achievemint/internal/txn"
	"github.com/roach88/achievemint/internal/wallet"
)

// session is an open ledger with an engine and client over it.
type session struct {
	store  *store.Store
	engine *engine.Engine
	client *client.Client
}

// openSession opens the configured ledger, resumes the slot clock and
// builds a client for the configured program.
func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	cfg, err := o.Config.ProgramConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(o.Config.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", o.Config.Ledger.Path, err)
	}

	engineOpts := []engine.Option{engine.WithLogger(o.Logger)}
	if o.metrics != nil {
		engineOpts = append(engineOpts, engine.WithObserver(o.metrics))
	}
	eng := engine.New(st, []engine.Processor{program.New(cfg)}, engineOpts...)
	if err := eng.Resume(ctx); err != nil {
		st.Close()
		return nil, err
	}

	o.Logger.Debug("ledger opened",
		"path", o.Config.Ledger.Path,
		"program_id", cfg.ProgramID.String(),
		"restrict_mint", cfg.RestrictMint)

	return &session{
		store:  st,
		engine: eng,
		client: client.New(eng, cfg.ProgramID),
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// keypair loads the keypair at path, falling back to the configured
// wallet keypair.
func (o *RootOptions) keypair(path string) (txn.Keypair, error) {
	if path == "" {
		path = o.Config.Wallet.Keypair
	}
	if path == "" {
		return txn.Keypair{}, fmt.Errorf("no keypair: pass --keypair or set wallet.keypair")
	}
	return wallet.Load(path)
}

// parseAddress parses a base58 address flag. An empty value yields
// fallback.
func parseAddress(flag, value string, fallback address.Address) (address.Address, error) {
	if value == "" {
		return fallback, nil
	}
	a, err := address.Parse(value)
	if err != nil {
		return address.Zero, fmt.Errorf("--%s: %w", flag, err)
	}
	return a, nil
}
