package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/ledger"
)

// storeTx implements ledger.Tx over a database transaction.
type storeTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *storeTx) Account(addr address.Address) (ledger.Account, error) {
	return readAccount(t.ctx, t.tx, addr)
}

func (t *storeTx) Balance(addr address.Address) (uint64, error) {
	acct, err := readAccount(t.ctx, t.tx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// upsert writes the full account row.
func (t *storeTx) upsert(acct ledger.Account) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, owner, lamports, space, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			space = excluded.space,
			data = excluded.data
	`,
		acct.Address[:],
		acct.Owner[:],
		int64(acct.Lamports),
		acct.Space,
		acct.Data,
	)
	if err != nil {
		return fmt.Errorf("write account %s: %w", acct.Address, err)
	}
	return nil
}

func (t *storeTx) CreateAccount(addr, owner, payer address.Address, data []byte) (ledger.Account, error) {
	existing, err := readAccount(t.ctx, t.tx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		existing = ledger.Account{}
	case err != nil:
		return ledger.Account{}, err
	case existing.Owner != ledger.SystemProgram || existing.Space > 0:
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountExists, addr)
	}

	var funding uint64
	if rent := ledger.RentExemptMinimum(len(data)); existing.Lamports < rent {
		funding = rent - existing.Lamports
	}

	if funding > 0 {
		payerAcct, err := readAccount(t.ctx, t.tx, payer)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.Account{}, fmt.Errorf("%w: %s has 0 lamports, needs %d", ledger.ErrInsufficientFunds, payer, funding)
		}
		if err != nil {
			return ledger.Account{}, err
		}
		if payerAcct.Lamports < funding {
			return ledger.Account{}, fmt.Errorf("%w: %s has %d lamports, needs %d", ledger.ErrInsufficientFunds, payer, payerAcct.Lamports, funding)
		}
		payerAcct.Lamports -= funding
		if err := t.upsert(payerAcct); err != nil {
			return ledger.Account{}, err
		}
	}

	acct := ledger.Account{
		Address:  addr,
		Owner:    owner,
		Lamports: existing.Lamports + funding,
		Space:    len(data),
		Data:     append([]byte{}, data...),
	}
	if err := t.upsert(acct); err != nil {
		return ledger.Account{}, err
	}
	return acct, nil
}

func (t *storeTx) WriteAccountData(addr address.Address, data []byte) error {
	acct, err := readAccount(t.ctx, t.tx, addr)
	if err != nil {
		return err
	}
	padded, err := ledger.PadData(data, acct.Space)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", err, addr, acct.Space, len(data))
	}
	acct.Data = padded
	return t.upsert(acct)
}

func (t *storeTx) CloseAccount(addr, refundTo address.Address) (uint64, error) {
	acct, err := readAccount(t.ctx, t.tx, addr)
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM accounts WHERE address = ?`, addr[:]); err != nil {
		return 0, fmt.Errorf("close account %s: %w", addr, err)
	}
	if err := t.Credit(refundTo, acct.Lamports); err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

func (t *storeTx) Credit(addr address.Address, lamports uint64) error {
	acct, err := readAccount(t.ctx, t.tx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		acct = ledger.Account{Address: addr, Owner: ledger.SystemProgram, Data: []byte{}}
	} else if err != nil {
		return err
	}
	if lamports > math.MaxInt64 || acct.Lamports > math.MaxInt64-lamports {
		return fmt.Errorf("credit %s: balance overflow", addr)
	}
	acct.Lamports += lamports
	return t.upsert(acct)
}

// AppendJournal inserts an entry. Uses ON CONFLICT(tx_id) DO NOTHING and
// reports a skipped insert as ledger.ErrDuplicateEntry.
func (t *storeTx) AppendJournal(e ledger.Entry) (ledger.Entry, error) {
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}
	result, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO journal
		(tx_id, trace_id, kind, slot, unix_time, status, code, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id) DO NOTHING
	`,
		e.TxID,
		e.TraceID,
		e.Kind,
		int64(e.Slot),
		e.UnixTime,
		e.Status,
		e.Code,
		payload,
	)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append journal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append journal: rows affected: %w", err)
	}
	if rows == 0 {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateEntry, e.TxID)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append journal: last insert id: %w", err)
	}
	e.Seq = seq
	return e, nil
}
