package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/roach88/achievemint/internal/address"
)

// Memory is an in-process Ledger. Transactions are serialised by a mutex and
// staged in an overlay that is merged on commit.
//
// Thread-safety: safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	accounts map[address.Address]Account
	journal  []Entry
	txIDs    map[string]struct{}
	closed   bool
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[address.Address]Account),
		txIDs:    make(map[string]struct{}),
	}
}

// RunInTx executes fn with exclusive access. Staged writes are applied only
// when fn returns nil.
func (m *Memory) RunInTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("ledger closed")
	}

	tx := &memTx{
		base:   m,
		writes: make(map[address.Address]*Account),
		seq:    int64(len(m.journal)),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for addr, acct := range tx.writes {
		if acct == nil {
			delete(m.accounts, addr)
			continue
		}
		m.accounts[addr] = *acct
	}
	for _, e := range tx.journal {
		m.journal = append(m.journal, e)
		m.txIDs[e.TxID] = struct{}{}
	}
	return nil
}

// Account returns the committed account at addr.
func (m *Memory) Account(_ context.Context, addr address.Address) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[addr]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acct.Clone(), nil
}

// Balance returns the committed lamports at addr.
func (m *Memory) Balance(_ context.Context, addr address.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[addr].Lamports, nil
}

// Accounts returns every account ordered by address.
func (m *Memory) Accounts(_ context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		out = append(out, acct.Clone())
	}
	SortAccounts(out)
	return out, nil
}

// Journal returns every entry in seq order.
func (m *Memory) Journal(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.journal))
	copy(out, m.journal)
	return out, nil
}

// HasTransaction reports whether txID has been journaled.
func (m *Memory) HasTransaction(_ context.Context, txID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txIDs[txID]
	return ok, nil
}

// Close marks the ledger closed. Later transactions fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// memTx stages writes over a locked Memory. A nil entry in writes marks a
// deleted account.
type memTx struct {
	base    *Memory
	writes  map[address.Address]*Account
	journal []Entry
	seq     int64
}

func (t *memTx) lookup(addr address.Address) (Account, bool) {
	if staged, ok := t.writes[addr]; ok {
		if staged == nil {
			return Account{}, false
		}
		return *staged, true
	}
	acct, ok := t.base.accounts[addr]
	return acct, ok
}

func (t *memTx) put(acct Account) {
	t.writes[acct.Address] = &acct
}

func (t *memTx) Account(addr address.Address) (Account, error) {
	acct, ok := t.lookup(addr)
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acct.Clone(), nil
}

func (t *memTx) Balance(addr address.Address) (uint64, error) {
	acct, _ := t.lookup(addr)
	return acct.Lamports, nil
}

func (t *memTx) CreateAccount(addr, owner, payer address.Address, data []byte) (Account, error) {
	existing, exists := t.lookup(addr)
	if exists && (existing.Owner != SystemProgram || existing.Space > 0) {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	var funding uint64
	if rent := RentExemptMinimum(len(data)); existing.Lamports < rent {
		funding = rent - existing.Lamports
	}

	payerAcct, _ := t.lookup(payer)
	if payerAcct.Lamports < funding {
		return Account{}, fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, payer, payerAcct.Lamports, funding)
	}
	if funding > 0 {
		payerAcct.Lamports -= funding
		t.put(payerAcct)
	}

	acct := Account{
		Address:  addr,
		Owner:    owner,
		Lamports: existing.Lamports + funding,
		Space:    len(data),
		Data:     append([]byte(nil), data...),
	}
	t.put(acct)
	return acct.Clone(), nil
}

func (t *memTx) WriteAccountData(addr address.Address, data []byte) error {
	acct, ok := t.lookup(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	padded, err := PadData(data, acct.Space)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", err, addr, acct.Space, len(data))
	}
	acct.Data = padded
	t.put(acct)
	return nil
}

func (t *memTx) CloseAccount(addr, refundTo address.Address) (uint64, error) {
	acct, ok := t.lookup(addr)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	refund := acct.Lamports
	t.writes[addr] = nil
	if err := t.Credit(refundTo, refund); err != nil {
		return 0, err
	}
	return refund, nil
}

func (t *memTx) Credit(addr address.Address, lamports uint64) error {
	acct, ok := t.lookup(addr)
	if !ok {
		acct = Account{Address: addr, Owner: SystemProgram}
	}
	if lamports > math.MaxInt64 || acct.Lamports > math.MaxInt64-lamports {
		return fmt.Errorf("credit %s: balance overflow", addr)
	}
	acct.Lamports += lamports
	t.put(acct)
	return nil
}

func (t *memTx) AppendJournal(e Entry) (Entry, error) {
	if _, ok := t.base.txIDs[e.TxID]; ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.TxID)
	}
	for _, staged := range t.journal {
		if staged.TxID == e.TxID {
			return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.TxID)
		}
	}
	t.seq++
	e.Seq = t.seq
	t.journal = append(t.journal, e)
	return e, nil
}

var _ Ledger = (*Memory)(nil)
