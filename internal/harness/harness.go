package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/client"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/engine"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/store"
	"github.com/roach88/achievemint/internal/testutil"
	"github.com/roach88/achievemint/internal/wallet"
)

// Harness executes one scenario.
type Harness struct {
	ledger  ledger.Ledger
	engine  *engine.Engine
	client  *client.Client
	wallets *wallet.Book
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	ledger   ledger.Ledger
	logger   *slog.Logger
	observer engine.Observer
}

// WithLedger runs the scenario on l instead of a fresh in-memory SQLite
// store. The caller owns l.
func WithLedger(l ledger.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithLogger sets the engine logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver forwards submission outcomes, for example to metrics.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation unless
// WithLedger is given. Step mismatches and failed assertions are reported
// in the Result; the error is reserved for infrastructure failures.
//
// Execution flow:
//  1. Open the ledger and build the engine with deterministic helpers
//  2. Fund wallets from the airdrop table in name order
//  3. Execute steps, checking each against its expect clause
//  4. Evaluate assertions against the final ledger
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	l := o.ledger
	if l == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		l = st
	}

	cfg := program.Config{
		ProgramID:    program.DefaultProgramID,
		RestrictMint: scenario.Config.RestrictMint,
	}
	engineOpts := []engine.Option{
		engine.WithTimeSource(testutil.NewFixedTime(testutil.DefaultEpoch)),
		engine.WithTraceGenerator(testutil.NewSequentialGenerator("trace")),
		engine.WithNonceGenerator(testutil.NewSequentialGenerator(scenario.Name + "-airdrop")),
		engine.WithLogger(o.logger),
	}
	if o.observer != nil {
		engineOpts = append(engineOpts, engine.WithObserver(o.observer))
	}
	eng := engine.New(l, []engine.Processor{program.New(cfg)}, engineOpts...)

	h := &Harness{
		ledger:  l,
		engine:  eng,
		client:  client.New(eng, cfg.ProgramID, client.WithNonceGenerator(testutil.NewSequentialGenerator(scenario.Name))),
		wallets: wallet.NewBook(scenario.Wallets...),
		logger:  o.logger,
	}

	if err := h.fund(ctx, scenario.Airdrop); err != nil {
		return nil, fmt.Errorf("failed to fund wallets: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.executeStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		result.AddTrace(event)
		if msg := checkExpect(step, event); msg != "" {
			result.AddError(msg)
		}
	}

	actx := &AssertionContext{Ctx: ctx, Client: h.client, Wallets: h.wallets, Trace: result.Trace}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	accounts, err := l.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.Digest = ledger.Digest(accounts)
	return result, nil
}

func (h *Harness) fund(ctx context.Context, airdrop map[string]uint64) error {
	names := make([]string, 0, len(airdrop))
	for n := range airdrop {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, err := h.client.Airdrop(ctx, h.addr(n), airdrop[n]); err != nil {
			return err
		}
	}
	return nil
}

// executeStep submits one step. Coded failures become trace events;
// anything else aborts the run.
func (h *Harness) executeStep(ctx context.Context, i int, s Step) (TraceEvent, error) {
	event := TraceEvent{Step: i, Op: s.Op}

	receipt, err := h.dispatch(ctx, s)
	event.TxID = receipt.TxID
	if err == nil {
		event.Status = StatusOK
		return event, nil
	}

	code, ok := engine.CodeOf(err)
	if !ok {
		return event, err
	}
	event.Code = code
	if receipt.Seq == 0 {
		event.Status = StatusRejected
	} else {
		event.Status = StatusFailed
	}
	h.logger.Debug("step failed", "step", i, "op", s.Op, "code", code)
	return event, nil
}

func (h *Harness) dispatch(ctx context.Context, s Step) (engine.Receipt, error) {
	args, err := stepArgs(s.Args)
	if err != nil {
		return engine.Receipt{}, err
	}

	switch s.Op {
	case OpBootstrap:
		admin := h.wallets.Get(s.Signer)
		payer := admin
		if s.Payer != "" {
			payer = h.wallets.Get(s.Payer)
		}
		return h.client.Bootstrap(ctx, payer, admin)

	case OpMint:
		payer := h.wallets.Get(first(s.Payer, s.Signer))
		owner := payer.Address()
		if s.Owner != "" {
			owner = h.addr(s.Owner)
		}
		f, err := mintFields(args)
		if err != nil {
			return engine.Receipt{}, err
		}
		_, r, err := h.client.Mint(ctx, payer, owner, f)
		return r, err

	case OpTransfer:
		signer := h.wallets.Get(s.Signer)
		ref, err := h.badgeRef(first(s.Minter, s.Signer), args)
		if err != nil {
			return engine.Receipt{}, err
		}
		return h.client.Transfer(ctx, signer, h.addr(s.NewOwner), ref)

	case OpBurn:
		signer := h.wallets.Get(s.Signer)
		ref, err := h.badgeRef(first(s.Minter, s.Signer), args)
		if err != nil {
			return engine.Receipt{}, err
		}
		return h.client.Burn(ctx, signer, ref)

	case OpAirdrop:
		lamports, err := args.Int("lamports")
		if err != nil {
			return engine.Receipt{}, err
		}
		if lamports <= 0 {
			return engine.Receipt{}, fmt.Errorf("lamports must be positive, got %d", lamports)
		}
		return h.client.Airdrop(ctx, h.addr(s.Owner), uint64(lamports))

	default:
		return engine.Receipt{}, fmt.Errorf("unknown op %q", s.Op)
	}
}

func (h *Harness) addr(name string) address.Address {
	return h.wallets.Get(name).Address()
}

func (h *Harness) badgeRef(minter string, args codec.Object) (program.BadgeRef, error) {
	id, err := args.String("achievement_id")
	if err != nil {
		return program.BadgeRef{}, err
	}
	return program.BadgeRef{Minter: h.addr(minter), AchievementID: id}, nil
}

func stepArgs(raw map[string]any) (codec.Object, error) {
	if raw == nil {
		return codec.Object{}, nil
	}
	v, err := codec.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	obj, ok := v.(codec.Object)
	if !ok {
		return nil, fmt.Errorf("args: expected object, got %T", v)
	}
	return obj, nil
}

// mintFields reads mint arguments. Missing strings default to empty and a
// missing unlock percentage to zero.
func mintFields(args codec.Object) (program.MintFields, error) {
	var f program.MintFields
	for key, dst := range map[string]*string{
		"name":           &f.Name,
		"description":    &f.Description,
		"rarity":         &f.Rarity,
		"achievement_id": &f.AchievementID,
	} {
		if _, ok := args[key]; !ok {
			continue
		}
		s, err := args.String(key)
		if err != nil {
			return program.MintFields{}, err
		}
		*dst = s
	}
	if _, ok := args["unlock_percentage"]; ok {
		n, err := args.Int("unlock_percentage")
		if err != nil {
			return program.MintFields{}, err
		}
		f.UnlockPercentage = n
	}
	return f, nil
}

// checkExpect returns a failure message when a step outcome differs from
// its expect clause.
func checkExpect(s Step, e TraceEvent) string {
	want := ExpectOK
	if s.Expect != nil {
		want = s.Expect.Code
	}
	got := ExpectOK
	if e.Status != StatusOK {
		got = e.Code
	}
	if got == want {
		return ""
	}
	return fmt.Sprintf("step %d (%s): expected %s, got %s", e.Step, e.Op, want, got)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
