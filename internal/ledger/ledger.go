// Package ledger is the authoritative record store of the settlement engine.
// Records are opaque encoded bytes addressed by the registry; writes happen
// only inside transactions so an aborted instruction leaves no trace.
package ledger

import (
	"fmt"
	"sync"

	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/registry"
)

// Record is one stored account: its entity kind plus the encoded payload.
type Record struct {
	Kind domain.EntityKind
	Data []byte
}

// Entry pairs a record with the address it lives at, for scans.
type Entry struct {
	Address registry.Address
	Record  Record
}

// Ledger is an in-memory account store with serialized transactional updates.
// The zero value is not usable; construct with New.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[registry.Address]Record
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[registry.Address]Record)}
}

// Get returns a copy of the record at addr, or domain.ErrNotFound.
func (l *Ledger) Get(addr registry.Address) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.accounts[addr]
	if !ok {
		return Record{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List returns every record of the given kind, address order unspecified.
func (l *Ledger) List(kind domain.EntityKind) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for addr, rec := range l.accounts {
		if rec.Kind != kind {
			continue
		}
		out = append(out, Entry{Address: addr, Record: cloneRecord(rec)})
	}
	return out
}

// Update runs fn inside a transaction. Writes are buffered in the transaction
// and applied atomically only when fn returns nil; any error discards them
// all. Transactions are serialized, so fn observes a consistent snapshot.
func (l *Ledger) Update(fn func(tx *Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Txn{base: l.accounts, writes: make(map[registry.Address]Record)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, rec := range tx.writes {
		l.accounts[addr] = rec
	}
	return nil
}

// Txn is a buffered write set over the ledger. It is valid only for the
// duration of the Update callback that created it.
type Txn struct {
	base   map[registry.Address]Record
	writes map[registry.Address]Record
}

func (tx *Txn) lookup(addr registry.Address) (Record, bool) {
	if rec, ok := tx.writes[addr]; ok {
		return rec, true
	}
	rec, ok := tx.base[addr]
	return rec, ok
}

// Get returns a copy of the record at addr, seeing the transaction's own
// pending writes, or domain.ErrNotFound.
func (tx *Txn) Get(addr registry.Address) (Record, error) {
	rec, ok := tx.lookup(addr)
	if !ok {
		return Record{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Create stores a new record at addr. It fails with domain.ErrAlreadyExists
// when the address is occupied.
func (tx *Txn) Create(addr registry.Address, kind domain.EntityKind, data []byte) error {
	if _, ok := tx.lookup(addr); ok {
		return fmt.Errorf("ledger: create %s at %s: %w", kind, addr, domain.ErrAlreadyExists)
	}
	tx.writes[addr] = Record{Kind: kind, Data: cloneBytes(data)}
	return nil
}

// Put overwrites the record at addr. The address must already hold a record
// of the same kind; Put never creates.
func (tx *Txn) Put(addr registry.Address, kind domain.EntityKind, data []byte) error {
	rec, ok := tx.lookup(addr)
	if !ok {
		return fmt.Errorf("ledger: put %s at %s: %w", kind, addr, domain.ErrNotFound)
	}
	if rec.Kind != kind {
		return fmt.Errorf("ledger: put %s at %s: address holds %s", kind, addr, rec.Kind)
	}
	tx.writes[addr] = Record{Kind: kind, Data: cloneBytes(data)}
	return nil
}

func cloneRecord(rec Record) Record {
	return Record{Kind: rec.Kind, Data: cloneBytes(rec.Data)}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
