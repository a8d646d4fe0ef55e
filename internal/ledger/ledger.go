package ledger

import (
	"context"
	"errors"

	"github.com/roach88/achievemint/internal/address"
)

var (
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account that already exists.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a payer cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDataTooLarge is returned when data exceeds an account's capacity.
	ErrDataTooLarge = errors.New("data exceeds account capacity")

	// ErrDuplicateEntry is returned when a journal entry reuses a transaction ID.
	ErrDuplicateEntry = errors.New("duplicate journal entry")
)

// SystemProgram owns wallet accounts.
var SystemProgram = address.Zero

// Account is a single ledger account.
type Account struct {
	Address  address.Address
	Owner    address.Address
	Lamports uint64
	// Space is the fixed data capacity, set at creation.
	Space int
	// Data is always exactly Space bytes; unused capacity is zero-filled.
	Data []byte
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

// Tx is a ledger transaction. Writes are visible to later reads in the same
// Tx and are discarded unless the function passed to RunInTx returns nil.
type Tx interface {
	// Account returns the account at addr or ErrAccountNotFound.
	Account(addr address.Address) (Account, error)

	// Balance returns the lamports held at addr, or 0 if absent.
	Balance(addr address.Address) (uint64, error)

	// CreateAccount allocates a program-owned account sized to data and funds
	// it to the rent-exempt minimum from payer.
	CreateAccount(addr, owner, payer address.Address, data []byte) (Account, error)

	// WriteAccountData replaces an account's data. Data shorter than the
	// account's capacity is zero-filled.
	WriteAccountData(addr address.Address, data []byte) error

	// CloseAccount deletes an account and credits its lamports to refundTo.
	// Returns the amount refunded.
	CloseAccount(addr, refundTo address.Address) (uint64, error)

	// Credit adds lamports to addr, creating a wallet if needed.
	Credit(addr address.Address, lamports uint64) error

	// AppendJournal appends an entry and returns it with Seq assigned.
	AppendJournal(e Entry) (Entry, error)
}

// Ledger is the durable account state plus its journal.
type Ledger interface {
	// RunInTx executes fn atomically.
	RunInTx(ctx context.Context, fn func(Tx) error) error

	// Account returns the committed account at addr or ErrAccountNotFound.
	Account(ctx context.Context, addr address.Address) (Account, error)

	// Balance returns the committed lamports at addr, or 0 if absent.
	Balance(ctx context.Context, addr address.Address) (uint64, error)

	// Accounts returns every account ordered by address bytes.
	Accounts(ctx context.Context) ([]Account, error)

	// Journal returns every entry in seq order.
	Journal(ctx context.Context) ([]Entry, error)

	// HasTransaction reports whether txID has been journaled.
	HasTransaction(ctx context.Context, txID string) (bool, error)

	Close() error
}
