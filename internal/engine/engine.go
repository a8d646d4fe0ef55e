package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/txn"
)

// Invocation is a single instruction as seen by a program.
type Invocation struct {
	ProgramID   address.Address
	Instruction string
	Accounts    []txn.AccountMeta
	Args        codec.Object
	Signers     txn.SignerSet
	Slot        uint64
	UnixTime    int64

	// Tx is the ledger transaction the instruction runs in. Any error returned
	// by Process discards every write made through it.
	Tx ledger.Tx

	Logger *slog.Logger
}

// Processor executes instructions for one program.
type Processor interface {
	ProgramID() address.Address
	Process(inv Invocation) error
}

// Observer is notified of every completed submission.
type Observer interface {
	ObserveSubmission(instruction, status, code string, elapsed time.Duration)
}

// Receipt describes the outcome of a submission.
type Receipt struct {
	TxID        string
	TraceID     string
	Instruction string
	Seq         int64
	Slot        uint64
	UnixTime    int64
	Status      string
	Code        string
}

// OK reports whether the transaction succeeded.
func (r Receipt) OK() bool {
	return r.Status == ledger.StatusOK
}

// Engine executes transactions against a ledger.
//
// Thread-safety model:
//   - Submit() and Airdrop(): safe from any goroutine; executions are serialised
//     so slot order equals journal order
//   - Replay(): safe from any goroutine; uses its own engine on the target
type Engine struct {
	ledger   ledger.Ledger
	programs map[address.Address]Processor
	slots    *Clock
	now      TimeSource
	traceGen IDGenerator
	nonceGen txn.NonceGenerator
	logger   *slog.Logger
	observer Observer

	mu sync.Mutex
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the slot clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.slots = c
	}
}

// WithTimeSource sets the ledger time source.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.now = ts
	}
}

// WithTraceGenerator sets the trace ID generator.
func WithTraceGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.traceGen = g
	}
}

// WithNonceGenerator sets the nonce generator used for airdrops.
func WithNonceGenerator(g txn.NonceGenerator) Option {
	return func(e *Engine) {
		e.nonceGen = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver registers a submission observer such as program metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an Engine over l that routes instructions to programs.
func New(l ledger.Ledger, programs []Processor, opts ...Option) *Engine {
	e := &Engine{
		ledger:   l,
		programs: make(map[address.Address]Processor, len(programs)),
		slots:    NewClock(),
		now:      SystemTime{},
		traceGen: UUIDv7Generator{},
		nonceGen: txn.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, p := range programs {
		e.programs[p.ProgramID()] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the ledger the engine executes against.
func (e *Engine) Ledger() ledger.Ledger {
	return e.ledger
}

// Resume advances the slot clock past the last journaled slot.
func (e *Engine) Resume(ctx context.Context) error {
	entries, err := e.ledger.Journal(ctx)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	for _, entry := range entries {
		e.slots.Advance(int64(entry.Slot))
	}
	return nil
}

// Submit verifies and executes tx.
//
// A program failure returns a failed Receipt together with the program's
// error. Runtime rejections return a Receipt with the rejection code and an
// *Error; they are not journaled. Ledger failures return a zero Receipt.
func (e *Engine) Submit(ctx context.Context, tx *txn.Transaction) (Receipt, error) {
	start := time.Now()
	receipt := Receipt{
		TraceID:     e.traceGen.Generate(),
		Instruction: tx.Instruction.Name,
		Status:      ledger.StatusFailed,
	}

	txID, err := tx.ID()
	if err != nil {
		return e.reject(receipt, start, newError(ErrCodeMalformedTransaction, "", "%v", err))
	}
	receipt.TxID = txID

	proc, ok := e.programs[tx.Instruction.ProgramID]
	if !ok {
		return e.reject(receipt, start, newError(ErrCodeUnknownProgram, txID, "no program %s", tx.Instruction.ProgramID))
	}

	signers, err := tx.Verify()
	if err != nil {
		return e.reject(receipt, start, newError(ErrCodeInvalidSignature, txID, "%v", err))
	}

	payload, err := tx.Encode()
	if err != nil {
		return e.reject(receipt, start, newError(ErrCodeMalformedTransaction, txID, "%v", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	dup, err := e.ledger.HasTransaction(ctx, txID)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit %s: %w", txID, err)
	}
	if dup {
		return e.reject(receipt, start, newError(ErrCodeDuplicateTransaction, txID, "already processed"))
	}

	entry := ledger.Entry{
		TxID:     txID,
		TraceID:  receipt.TraceID,
		Kind:     ledger.KindTransaction,
		Slot:     uint64(e.slots.Next()),
		UnixTime: e.now.Now().Unix(),
		Payload:  payload,
	}
	receipt, err = e.execute(ctx, proc, tx.Instruction, signers, entry)
	e.observe(receipt, start)
	return receipt, err
}

// execute runs one instruction and journals the outcome.
func (e *Engine) execute(ctx context.Context, proc Processor, ix txn.Instruction, signers txn.SignerSet, entry ledger.Entry) (Receipt, error) {
	logger := e.logger.With(
		"trace_id", entry.TraceID,
		"tx_id", entry.TxID,
		"instruction", ix.Name,
		"slot", entry.Slot,
	)
	receipt := Receipt{
		TxID:        entry.TxID,
		TraceID:     entry.TraceID,
		Instruction: ix.Name,
		Slot:        entry.Slot,
		UnixTime:    entry.UnixTime,
	}

	var committed ledger.Entry
	execErr := e.ledger.RunInTx(ctx, func(ltx ledger.Tx) error {
		inv := Invocation{
			ProgramID:   ix.ProgramID,
			Instruction: ix.Name,
			Accounts:    ix.Accounts,
			Args:        ix.Args,
			Signers:     signers,
			Slot:        entry.Slot,
			UnixTime:    entry.UnixTime,
			Tx:          ltx,
			Logger:      logger,
		}
		if err := proc.Process(inv); err != nil {
			return err
		}
		ok := entry
		ok.Status = ledger.StatusOK
		var err error
		committed, err = ltx.AppendJournal(ok)
		return err
	})
	if execErr == nil {
		receipt.Seq = committed.Seq
		receipt.Status = ledger.StatusOK
		logger.Info("transaction executed", "seq", committed.Seq)
		return receipt, nil
	}

	code, ok := CodeOf(execErr)
	if !ok {
		logger.Error("transaction aborted", "error", execErr)
		return Receipt{}, fmt.Errorf("execute %s: %w", entry.TxID, execErr)
	}

	failed := entry
	failed.Status = ledger.StatusFailed
	failed.Code = code
	err := e.ledger.RunInTx(ctx, func(ltx ledger.Tx) error {
		var err error
		committed, err = ltx.AppendJournal(failed)
		return err
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("journal failure of %s: %w", entry.TxID, err)
	}

	receipt.Seq = committed.Seq
	receipt.Status = ledger.StatusFailed
	receipt.Code = code
	logger.Info("transaction failed", "seq", committed.Seq, "code", code)
	return receipt, execErr
}

// reject records a pre-execution rejection.
func (e *Engine) reject(receipt Receipt, start time.Time, err *Error) (Receipt, error) {
	receipt.Code = string(err.Code)
	e.logger.Warn("transaction rejected",
		"trace_id", receipt.TraceID,
		"tx_id", receipt.TxID,
		"code", receipt.Code,
	)
	e.observe(receipt, start)
	return receipt, err
}

func (e *Engine) observe(r Receipt, start time.Time) {
	if e.observer == nil || r.Status == "" {
		return
	}
	e.observer.ObserveSubmission(r.Instruction, r.Status, r.Code, time.Since(start))
}

// Airdrop credits lamports to an identity. Airdrops are journaled so that
// replay reproduces balances.
func (e *Engine) Airdrop(ctx context.Context, to address.Address, lamports uint64) (Receipt, error) {
	if lamports == 0 || lamports > math.MaxInt64 {
		return Receipt{}, fmt.Errorf("airdrop: lamports must be in 1..%d", int64(math.MaxInt64))
	}
	payload, err := codec.Marshal(codec.Object{
		"to":       codec.String(to.String()),
		"lamports": codec.Int(int64(lamports)),
		"nonce":    codec.String(e.nonceGen.Generate()),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("airdrop: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry := ledger.Entry{
		TxID:     txn.HashWithDomain(txn.DomainAirdrop, payload),
		TraceID:  e.traceGen.Generate(),
		Kind:     ledger.KindAirdrop,
		Slot:     uint64(e.slots.Next()),
		UnixTime: e.now.Now().Unix(),
		Status:   ledger.StatusOK,
		Payload:  payload,
	}
	return e.applyAirdrop(ctx, to, lamports, entry)
}

func (e *Engine) applyAirdrop(ctx context.Context, to address.Address, lamports uint64, entry ledger.Entry) (Receipt, error) {
	var committed ledger.Entry
	err := e.ledger.RunInTx(ctx, func(ltx ledger.Tx) error {
		if err := ltx.Credit(to, lamports); err != nil {
			return err
		}
		var err error
		committed, err = ltx.AppendJournal(entry)
		return err
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("airdrop to %s: %w", to, err)
	}
	e.logger.Info("airdrop", "trace_id", entry.TraceID, "to", to.String(), "lamports", lamports)
	return Receipt{
		TxID:        entry.TxID,
		TraceID:     entry.TraceID,
		Instruction: ledger.KindAirdrop,
		Seq:         committed.Seq,
		Slot:        entry.Slot,
		UnixTime:    entry.UnixTime,
		Status:      ledger.StatusOK,
	}, nil
}
