// Package wallet stores signing keys on disk and derives named test wallets.
//
// Keypair files hold a JSON array of the 64 private key bytes (seed then
// public key), the format used by common ledger tooling.
package wallet

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/txn"
)

// ErrExists is returned by Save when the target file already exists.
var ErrExists = errors.New("keypair file already exists")

// Load reads a keypair file.
func Load(path string) (txn.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return txn.Keypair{}, fmt.Errorf("read keypair: %w", err)
	}
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return txn.Keypair{}, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	b := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return txn.Keypair{}, fmt.Errorf("parse keypair %s: byte %d out of range", path, i)
		}
		b[i] = byte(v)
	}
	kp, err := txn.KeypairFromBytes(b)
	if err != nil {
		return txn.Keypair{}, fmt.Errorf("load %s: %w", path, err)
	}
	return kp, nil
}

// Save writes kp to path with owner-only permissions. It refuses to
// overwrite an existing file unless force is set.
func Save(path string, kp txn.Keypair, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair directory: %w", err)
	}
	b := kp.Bytes()
	raw := make([]int, len(b))
	for i, v := range b {
		raw[i] = int(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	return nil
}

// Named returns the deterministic keypair for name. The seed is
// sha256(name), so the same name always yields the same identity.
func Named(name string) txn.Keypair {
	seed := sha256.Sum256([]byte(name))
	kp, err := txn.KeypairFromSeed(seed[:])
	if err != nil {
		// A 32-byte digest is always a valid seed.
		panic(err)
	}
	return kp
}

// Book is a set of named wallets.
//
// Thread-safety: safe for concurrent use.
type Book struct {
	mu   sync.Mutex
	keys map[string]txn.Keypair
}

// NewBook creates a Book holding the named wallets.
func NewBook(names ...string) *Book {
	b := &Book{keys: make(map[string]txn.Keypair, len(names))}
	for _, n := range names {
		b.keys[n] = Named(n)
	}
	return b
}

// Get returns the keypair for name, creating it on first use.
func (b *Book) Get(name string) txn.Keypair {
	b.mu.Lock()
	defer b.mu.Unlock()
	kp, ok := b.keys[name]
	if !ok {
		kp = Named(name)
		b.keys[name] = kp
	}
	return kp
}

// Lookup returns the keypair for a known name.
func (b *Book) Lookup(name string) (txn.Keypair, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kp, ok := b.keys[name]
	return kp, ok
}

// Address returns the identity of a known name.
func (b *Book) Address(name string) (address.Address, bool) {
	kp, ok := b.Lookup(name)
	if !ok {
		return address.Zero, false
	}
	return kp.Address(), true
}

// Names returns the wallet names in sorted order.
func (b *Book) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.keys))
	for n := range b.keys {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
