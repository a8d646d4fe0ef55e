package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/store"
	"github.com/roach88/achievemint/internal/testutil"
	"github.com/roach88/achievemint/internal/txn"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var counterProgramID = address.Address(sha256.Sum256([]byte("counter-program")))

// codedError is a program failure with a journaled code.
type codedError string

func (e codedError) Error() string     { return string(e) }
func (e codedError) ErrorCode() string { return string(e) }

// counterProgram is a minimal program for exercising the runtime.
//
//   - "put": create account[1] (paid by account[0]) holding args.value
//   - "fail": write to account[1], then fail with code "NOPE"
//   - "boom": fail with an uncoded error
type counterProgram struct{}

func (counterProgram) ProgramID() address.Address { return counterProgramID }

func (counterProgram) Process(inv Invocation) error {
	switch inv.Instruction {
	case "put":
		if !inv.Signers.Has(inv.Accounts[0].Address) {
			return codedError("MISSING_SIGNATURE")
		}
		value, err := inv.Args.String("value")
		if err != nil {
			return codedError("BAD_ARGS")
		}
		_, err = inv.Tx.CreateAccount(inv.Accounts[1].Address, counterProgramID, inv.Accounts[0].Address, []byte(value))
		if errors.Is(err, ledger.ErrAccountExists) {
			return codedError("EXISTS")
		}
		return err
	case "fail":
		if err := inv.Tx.Credit(inv.Accounts[1].Address, 1); err != nil {
			return err
		}
		return codedError("NOPE")
	case "boom":
		return errors.New("disk on fire")
	}
	return codedError("UNKNOWN_INSTRUCTION")
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveSubmission(instruction, status, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, instruction+"/"+status+"/"+code)
}

func testKey(t *testing.T, name string) txn.Keypair {
	t.Helper()
	seed := sha256.Sum256([]byte(name))
	kp, err := txn.KeypairFromSeed(seed[:])
	require.NoError(t, err)
	return kp
}

func newTestEngine(t *testing.T, l ledger.Ledger, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithTimeSource(testutil.NewFixedTime(time.Time{})),
		WithTraceGenerator(testutil.NewSequentialGenerator("trace")),
		WithNonceGenerator(testutil.NewSequentialGenerator("airdrop")),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	return New(l, []Processor{counterProgram{}}, append(base, opts...)...)
}

func putTx(t *testing.T, payer txn.Keypair, target address.Address, value, nonce string) *txn.Transaction {
	t.Helper()
	tx := txn.New(txn.Instruction{
		ProgramID: counterProgramID,
		Name:      "put",
		Accounts: []txn.AccountMeta{
			{Address: payer.Address(), Signer: true, Writable: true},
			{Address: target, Writable: true},
		},
		Args: codec.Object{"value": codec.String(value)},
	}, nonce)
	require.NoError(t, tx.Sign(payer))
	return tx
}

func TestEngine_SubmitSuccess(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	obs := &recordingObserver{}
	e := newTestEngine(t, l, WithObserver(obs))
	alice := testKey(t, "alice")
	target := address.Address(sha256.Sum256([]byte("target")))

	_, err := e.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)

	tx := putTx(t, alice, target, "hello", "n-1")
	receipt, err := e.Submit(ctx, tx)
	require.NoError(t, err)

	wantID, err := tx.ID()
	require.NoError(t, err)
	assert.Equal(t, wantID, receipt.TxID)
	assert.True(t, receipt.OK())
	assert.Equal(t, uint64(2), receipt.Slot)
	assert.Equal(t, int64(2), receipt.Seq)
	assert.Equal(t, "trace-2", receipt.TraceID)
	assert.Equal(t, testutil.DefaultEpoch.Unix(), receipt.UnixTime)

	acct, err := l.Account(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), acct.Data)
	assert.Equal(t, []string{"put/ok/"}, obs.calls)
}

func TestEngine_ProgramFailureRollsBackAndJournals(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	e := newTestEngine(t, l)
	alice := testKey(t, "alice")
	victim := address.Address(sha256.Sum256([]byte("victim")))

	tx := txn.New(txn.Instruction{
		ProgramID: counterProgramID,
		Name:      "fail",
		Accounts: []txn.AccountMeta{
			{Address: alice.Address(), Signer: true},
			{Address: victim, Writable: true},
		},
	}, "n-1")
	require.NoError(t, tx.Sign(alice))

	receipt, err := e.Submit(ctx, tx)
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, "NOPE", code)
	assert.Equal(t, ledger.StatusFailed, receipt.Status)
	assert.Equal(t, "NOPE", receipt.Code)

	bal, err := l.Balance(ctx, victim)
	require.NoError(t, err)
	assert.Zero(t, bal, "failed instruction must not change state")

	entries, err := l.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.StatusFailed, entries[0].Status)
	assert.Equal(t, "NOPE", entries[0].Code)
}

func TestEngine_UncodedFailureIsHardError(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	e := newTestEngine(t, l)
	alice := testKey(t, "alice")

	tx := txn.New(txn.Instruction{
		ProgramID: counterProgramID,
		Name:      "boom",
		Accounts:  []txn.AccountMeta{{Address: alice.Address(), Signer: true}},
	}, "n-1")
	require.NoError(t, tx.Sign(alice))

	receipt, err := e.Submit(ctx, tx)
	require.Error(t, err)
	assert.Empty(t, receipt.Status)

	entries, err := l.Journal(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_Rejections(t *testing.T) {
	ctx := context.Background()
	alice := testKey(t, "alice")
	mallory := testKey(t, "mallory")
	target := address.Address(sha256.Sum256([]byte("target")))

	t.Run("unknown program", func(t *testing.T) {
		e := newTestEngine(t, ledger.NewMemory())
		tx := putTx(t, alice, target, "x", "n-1")
		tx.Instruction.ProgramID = address.Address(sha256.Sum256([]byte("other")))
		require.NoError(t, tx.Sign(alice))

		receipt, err := e.Submit(ctx, tx)
		assert.True(t, IsUnknownProgram(err))
		assert.Equal(t, string(ErrCodeUnknownProgram), receipt.Code)
	})

	t.Run("invalid signature", func(t *testing.T) {
		e := newTestEngine(t, ledger.NewMemory())
		tx := putTx(t, alice, target, "x", "n-1")
		tx.Signatures[0].Bytes = mallory.Sign([]byte("something else"))

		_, err := e.Submit(ctx, tx)
		assert.True(t, IsInvalidSignature(err))
	})

	t.Run("duplicate", func(t *testing.T) {
		l := ledger.NewMemory()
		e := newTestEngine(t, l)
		_, err := e.Airdrop(ctx, alice.Address(), 1_000_000_000)
		require.NoError(t, err)

		tx := putTx(t, alice, target, "x", "n-1")
		_, err = e.Submit(ctx, tx)
		require.NoError(t, err)

		receipt, err := e.Submit(ctx, tx)
		assert.True(t, IsDuplicateTransaction(err))
		assert.Equal(t, string(ErrCodeDuplicateTransaction), receipt.Code)

		entries, err := l.Journal(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "rejections are not journaled")
	})
}

func TestEngine_AirdropValidation(t *testing.T) {
	e := newTestEngine(t, ledger.NewMemory())
	_, err := e.Airdrop(context.Background(), testKey(t, "alice").Address(), 0)
	assert.Error(t, err)
}

func TestEngine_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	e := newTestEngine(t, l)
	alice := testKey(t, "alice")
	_, err := e.Airdrop(ctx, alice.Address(), 10_000_000_000)
	require.NoError(t, err)

	const n = 16
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		target := address.Address(sha256.Sum256([]byte{byte(i)}))
		tx := putTx(t, alice, target, "v", string(rune('a'+i)))
		g.Go(func() error {
			_, err := e.Submit(gctx, tx)
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := l.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, entries, n+1)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Seq)
		assert.Equal(t, uint64(i+1), entry.Slot, "slot order must equal journal order")
	}
}

func TestEngine_ReplayReproducesState(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	e := newTestEngine(t, l)
	alice := testKey(t, "alice")
	target := address.Address(sha256.Sum256([]byte("target")))

	_, err := e.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)
	_, err = e.Submit(ctx, putTx(t, alice, target, "first", "n-1"))
	require.NoError(t, err)
	_, err = e.Submit(ctx, putTx(t, alice, target, "second", "n-2"))
	require.Error(t, err, "second put collides")

	report, err := e.Replay(ctx, ledger.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Entries)
	assert.Empty(t, report.Divergences)
	assert.Equal(t, report.LiveDigest, report.ReplayDigest)
	assert.True(t, report.Deterministic())
}

func TestEngine_ReplayDetectsTampering(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	e := newTestEngine(t, l)
	alice := testKey(t, "alice")

	_, err := e.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)

	// Mutate live state outside the engine.
	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.Credit(alice.Address(), 1)
	}))

	report, err := e.Replay(ctx, ledger.NewMemory())
	require.NoError(t, err)
	assert.False(t, report.Deterministic())
}

func TestEngine_ResumeContinuesSlots(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(t.TempDir() + "/ledger.db")
	require.NoError(t, err)
	defer s.Close()

	alice := testKey(t, "alice")
	first := newTestEngine(t, s)
	_, err = first.Airdrop(ctx, alice.Address(), 5)
	require.NoError(t, err)
	_, err = first.Airdrop(ctx, alice.Address(), 5)
	require.NoError(t, err)

	second := New(s, []Processor{counterProgram{}}, WithNonceGenerator(testutil.NewSequentialGenerator("again")))
	require.NoError(t, second.Resume(ctx))
	receipt, err := second.Airdrop(ctx, alice.Address(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), receipt.Slot)

	bal, err := s.Balance(ctx, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(15), bal)
}

func TestFixedGenerator_Exhaustion(t *testing.T) {
	gen := NewFixedGenerator("a")
	assert.Equal(t, "a", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
