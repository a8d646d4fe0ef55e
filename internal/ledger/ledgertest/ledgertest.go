// Package ledgertest provides a behavioural test suite that every
// ledger.Ledger implementation must pass.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/ledger"
)

// Factory returns a fresh, empty ledger. The suite closes it.
type Factory func(t *testing.T) ledger.Ledger

// Addr returns a deterministic address for name.
func Addr(name string) address.Address {
	return address.Address(sha256.Sum256([]byte(name)))
}

var errAbort = errors.New("abort")

// Run executes the suite against ledgers from newLedger.
func Run(t *testing.T, newLedger Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, l ledger.Ledger)
	}{
		{"CreditCreatesWallet", testCreditCreatesWallet},
		{"CreateAccountChargesRent", testCreateAccountChargesRent},
		{"CreateAccountInsufficientFunds", testCreateAccountInsufficientFunds},
		{"CreateAccountExists", testCreateAccountExists},
		{"WriteAccountDataPads", testWriteAccountDataPads},
		{"WriteAccountDataTooLarge", testWriteAccountDataTooLarge},
		{"CloseAccountRefunds", testCloseAccountRefunds},
		{"RollbackOnError", testRollbackOnError},
		{"ReadYourWrites", testReadYourWrites},
		{"JournalOrdering", testJournalOrdering},
		{"JournalDuplicate", testJournalDuplicate},
		{"DigestTracksState", testDigestTracksState},
		{"ConcurrentCredits", testConcurrentCredits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			t.Cleanup(func() { l.Close() })
			tt.fn(t, l)
		})
	}
}

func fund(t *testing.T, l ledger.Ledger, addr address.Address, lamports uint64) {
	t.Helper()
	require.NoError(t, l.RunInTx(context.Background(), func(tx ledger.Tx) error {
		return tx.Credit(addr, lamports)
	}))
}

func testCreditCreatesWallet(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	alice := Addr("alice")

	fund(t, l, alice, 500)
	fund(t, l, alice, 250)

	bal, err := l.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), bal)

	acct, err := l.Account(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.SystemProgram, acct.Owner)
	assert.Equal(t, 0, acct.Space)

	bal, err = l.Balance(ctx, Addr("nobody"))
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func testCreateAccountChargesRent(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer, pda, program := Addr("payer"), Addr("pda"), Addr("program")
	data := []byte("record-bytes")
	rent := ledger.RentExemptMinimum(len(data))

	fund(t, l, payer, rent+1000)
	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		acct, err := tx.CreateAccount(pda, program, payer, data)
		if err != nil {
			return err
		}
		assert.Equal(t, rent, acct.Lamports)
		return nil
	}))

	acct, err := l.Account(ctx, pda)
	require.NoError(t, err)
	assert.Equal(t, program, acct.Owner)
	assert.Equal(t, rent, acct.Lamports)
	assert.Equal(t, len(data), acct.Space)
	assert.Equal(t, data, acct.Data)

	bal, err := l.Balance(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
}

func testCreateAccountInsufficientFunds(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer := Addr("payer")
	fund(t, l, payer, 10)

	err := l.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.CreateAccount(Addr("pda"), Addr("program"), payer, []byte("x"))
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = l.Account(ctx, Addr("pda"))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testCreateAccountExists(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer := Addr("payer")
	fund(t, l, payer, 10_000_000)

	create := func(tx ledger.Tx) error {
		_, err := tx.CreateAccount(Addr("pda"), Addr("program"), payer, []byte("x"))
		return err
	}
	require.NoError(t, l.RunInTx(ctx, create))
	assert.ErrorIs(t, l.RunInTx(ctx, create), ledger.ErrAccountExists)
}

func testWriteAccountDataPads(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer, pda := Addr("payer"), Addr("pda")
	fund(t, l, payer, 10_000_000)

	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.CreateAccount(pda, Addr("program"), payer, []byte("abcdef")); err != nil {
			return err
		}
		return tx.WriteAccountData(pda, []byte("xyz"))
	}))

	acct, err := l.Account(ctx, pda)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz\x00\x00\x00"), acct.Data)
	assert.Equal(t, []byte("xyz"), ledger.TrimData(acct.Data))
}

func testWriteAccountDataTooLarge(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer, pda := Addr("payer"), Addr("pda")
	fund(t, l, payer, 10_000_000)

	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.CreateAccount(pda, Addr("program"), payer, []byte("abc"))
		return err
	}))
	err := l.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.WriteAccountData(pda, []byte("abcd"))
	})
	assert.ErrorIs(t, err, ledger.ErrDataTooLarge)

	err = l.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.WriteAccountData(Addr("missing"), []byte("a"))
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testCloseAccountRefunds(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer, owner, pda := Addr("payer"), Addr("owner"), Addr("pda")
	rent := ledger.RentExemptMinimum(3)
	fund(t, l, payer, rent)

	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.CreateAccount(pda, Addr("program"), payer, []byte("abc"))
		return err
	}))
	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		refund, err := tx.CloseAccount(pda, owner)
		assert.Equal(t, rent, refund)
		return err
	}))

	_, err := l.Account(ctx, pda)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	bal, err := l.Balance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, rent, bal)

	err = l.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.CloseAccount(pda, owner)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testRollbackOnError(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer := Addr("payer")
	fund(t, l, payer, 10_000_000)
	before, err := l.Accounts(ctx)
	require.NoError(t, err)

	err = l.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.CreateAccount(Addr("pda"), Addr("program"), payer, []byte("abc")); err != nil {
			return err
		}
		if err := tx.Credit(Addr("bob"), 5); err != nil {
			return err
		}
		if _, err := tx.AppendJournal(ledger.Entry{TxID: "rolled-back", Kind: ledger.KindTransaction, Status: ledger.StatusOK}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	after, err := l.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Digest(before), ledger.Digest(after))

	has, err := l.HasTransaction(ctx, "rolled-back")
	require.NoError(t, err)
	assert.False(t, has)
}

func testReadYourWrites(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	payer, pda := Addr("payer"), Addr("pda")
	fund(t, l, payer, 10_000_000)

	require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.CreateAccount(pda, Addr("program"), payer, []byte("abc")); err != nil {
			return err
		}
		acct, err := tx.Account(pda)
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("abc"), acct.Data)

		if _, err := tx.CloseAccount(pda, payer); err != nil {
			return err
		}
		_, err = tx.Account(pda)
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

		bal, err := tx.Balance(payer)
		assert.Equal(t, uint64(10_000_000), bal)
		return err
	}))
}

func testJournalOrdering(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, l.RunInTx(ctx, func(tx ledger.Tx) error {
			e, err := tx.AppendJournal(ledger.Entry{
				TxID:     fmt.Sprintf("tx-%d", i),
				TraceID:  fmt.Sprintf("trace-%d", i),
				Kind:     ledger.KindTransaction,
				Slot:     uint64(i),
				UnixTime: int64(1_700_000_000 + i),
				Status:   ledger.StatusOK,
				Payload:  []byte(`{"n":1}`),
			})
			assert.Equal(t, int64(i), e.Seq)
			return err
		}))
	}

	entries, err := l.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, fmt.Sprintf("tx-%d", i+1), e.TxID)
		assert.Equal(t, uint64(i+1), e.Slot)
		assert.Equal(t, []byte(`{"n":1}`), e.Payload)
	}

	has, err := l.HasTransaction(ctx, "tx-2")
	require.NoError(t, err)
	assert.True(t, has)
}

func testJournalDuplicate(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	appendEntry := func(tx ledger.Tx) error {
		_, err := tx.AppendJournal(ledger.Entry{TxID: "same", Kind: ledger.KindTransaction, Status: ledger.StatusFailed, Code: "X"})
		return err
	}
	require.NoError(t, l.RunInTx(ctx, appendEntry))
	assert.ErrorIs(t, l.RunInTx(ctx, appendEntry), ledger.ErrDuplicateEntry)
}

func testDigestTracksState(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	empty, err := l.Accounts(ctx)
	require.NoError(t, err)

	fund(t, l, Addr("alice"), 1)
	funded, err := l.Accounts(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, ledger.Digest(empty), ledger.Digest(funded))
}

func testConcurrentCredits(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	alice := Addr("alice")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return l.RunInTx(gctx, func(tx ledger.Tx) error {
				return tx.Credit(alice, 10)
			})
		})
	}
	require.NoError(t, g.Wait())

	bal, err := l.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal)
}
