// Package engine executes settlement instructions against the ledger. Each
// exported method is one instruction: it reads wall-clock time once, checks
// every precondition, and applies its balance transitions inside a single
// ledger transaction, so an abort leaves no partial state behind.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
)

// Lifecycle windows, in wall-clock time relative to an event's end date.
const (
	// CompletionGrace is how long the organizer has after the end date to
	// post a result before any participant may cancel the event.
	CompletionGrace = 24 * time.Hour

	// AppealWindow is how long after the completion grace losing
	// participants may appeal or burn trust. Reward claims open once it
	// closes.
	AppealWindow = 24 * time.Hour
)

// Clock supplies the wall-clock time an instruction executes at.
type Clock func() time.Time

// Credit is a transfer out of the engine to an external account, reported on
// the receipt for the surrounding runtime to execute.
type Credit struct {
	To     domain.PublicKey `json:"to"`
	Amount uint64           `json:"amount"`
}

// Receipt describes one applied instruction: what ran, when, which ledger
// addresses it wrote, and any external transfers it produced.
type Receipt struct {
	Instruction string             `json:"instruction"`
	UnixTime    int64              `json:"unix_time"`
	EventID     *domain.EventID    `json:"event_id,omitempty"`
	Touched     []registry.Address `json:"touched"`
	Credits     []Credit           `json:"credits,omitempty"`
}

func (r *Receipt) touch(addrs ...registry.Address) {
	r.Touched = append(r.Touched, addrs...)
}

func (r *Receipt) credit(to domain.PublicKey, amount uint64) {
	r.Credits = append(r.Credits, Credit{To: to, Amount: amount})
}

// Engine is the settlement state machine. All methods are safe for concurrent
// use; the ledger serializes transactions.
type Engine struct {
	ledger *ledger.Ledger
	clock  Clock
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall-clock source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine over the given ledger.
func New(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		clock:  time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the underlying store for read-side projections.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Now returns the engine's current clock reading.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// run wraps one instruction: reads the clock once, opens a transaction, and
// returns the receipt only when the transaction committed.
func (e *Engine) run(instruction string, id *domain.EventID, fn func(tx *ledger.Txn, now int64, rcp *Receipt) error) (*Receipt, error) {
	rcp := &Receipt{
		Instruction: instruction,
		UnixTime:    e.clock().Unix(),
		EventID:     id,
	}
	err := e.ledger.Update(func(tx *ledger.Txn) error {
		return fn(tx, rcp.UnixTime, rcp)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", instruction, err)
	}

	attrs := []any{slog.String("instruction", instruction), slog.Int64("time", rcp.UnixTime)}
	if id != nil {
		attrs = append(attrs, slog.String("event_id", id.String()))
	}
	e.log.Info("instruction applied", attrs...)
	return rcp, nil
}

// --- typed ledger accessors ---

func getState(tx *ledger.Txn) (domain.ContractState, error) {
	rec, err := tx.Get(registry.State())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ContractState{}, domain.NewError(domain.KindStateConflict, "contract state not initialized")
	}
	if err != nil {
		return domain.ContractState{}, err
	}
	return codec.DecodeContractState(rec.Data)
}

func putState(tx *ledger.Txn, s domain.ContractState) error {
	return tx.Put(registry.State(), domain.KindContractState, codec.EncodeContractState(s))
}

func getUser(tx *ledger.Txn, owner domain.PublicKey) (domain.User, error) {
	rec, err := tx.Get(registry.User(owner))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrUserMissing
	}
	if err != nil {
		return domain.User{}, err
	}
	return codec.DecodeUser(rec.Data)
}

func putUser(tx *ledger.Txn, u domain.User) error {
	return tx.Put(registry.User(u.Owner), domain.KindUser, codec.EncodeUser(u))
}

func getEvent(tx *ledger.Txn, id domain.EventID) (domain.Event, error) {
	rec, err := tx.Get(registry.Event(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Event{}, domain.ErrEventMissing
	}
	if err != nil {
		return domain.Event{}, err
	}
	return codec.DecodeEvent(rec.Data)
}

func putEvent(tx *ledger.Txn, ev domain.Event) error {
	return tx.Put(registry.Event(ev.ID), domain.KindEvent, codec.EncodeEvent(ev))
}

func getMeta(tx *ledger.Txn, id domain.EventID) (domain.EventMeta, error) {
	rec, err := tx.Get(registry.EventMeta(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EventMeta{}, domain.ErrEventMissing
	}
	if err != nil {
		return domain.EventMeta{}, err
	}
	return codec.DecodeEventMeta(rec.Data)
}

func putMeta(tx *ledger.Txn, m domain.EventMeta) error {
	return tx.Put(registry.EventMeta(m.EventID), domain.KindEventMeta, codec.EncodeEventMeta(m))
}

func getOption(tx *ledger.Txn, id domain.EventID, index uint8) (domain.EventOption, error) {
	rec, err := tx.Get(registry.Option(id, index))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EventOption{}, domain.ErrOptionMissing
	}
	if err != nil {
		return domain.EventOption{}, err
	}
	return codec.DecodeEventOption(rec.Data)
}

func putOption(tx *ledger.Txn, o domain.EventOption) error {
	return tx.Put(registry.Option(o.EventID, o.Index), domain.KindEventOption, codec.EncodeEventOption(o))
}

func getParticipation(tx *ledger.Txn, id domain.EventID, payer domain.PublicKey) (domain.Participation, error) {
	rec, err := tx.Get(registry.Participation(id, payer))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Participation{}, domain.ErrNoParticipation
	}
	if err != nil {
		return domain.Participation{}, err
	}
	return codec.DecodeParticipation(rec.Data)
}

func putParticipation(tx *ledger.Txn, p domain.Participation) error {
	return tx.Put(registry.Participation(p.EventID, p.Payer), domain.KindParticipation, codec.EncodeParticipation(p))
}
