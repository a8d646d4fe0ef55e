package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/ledger"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func readAccount(ctx context.Context, q querier, addr address.Address) (ledger.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT address, owner, lamports, space, data
		FROM accounts
		WHERE address = ?
	`, addr[:])
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("read account %s: %w", addr, err)
	}
	return acct, nil
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		addrBytes, ownerBytes, data []byte
		lamports                    int64
		space                       int
	)
	if err := row.Scan(&addrBytes, &ownerBytes, &lamports, &space, &data); err != nil {
		return ledger.Account{}, err
	}
	addr, err := address.FromBytes(addrBytes)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("scan address: %w", err)
	}
	owner, err := address.FromBytes(ownerBytes)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("scan owner: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return ledger.Account{
		Address:  addr,
		Owner:    owner,
		Lamports: uint64(lamports),
		Space:    space,
		Data:     data,
	}, nil
}

// Accounts returns every account ordered by address bytes.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, lamports, space, data
		FROM accounts
		ORDER BY address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Journal returns every entry ordered by seq.
func (s *Store) Journal(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tx_id, trace_id, kind, slot, unix_time, status, code, payload
		FROM journal
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var (
			e    ledger.Entry
			slot int64
		)
		if err := rows.Scan(&e.Seq, &e.TxID, &e.TraceID, &e.Kind, &slot, &e.UnixTime, &e.Status, &e.Code, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Slot = uint64(slot)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
