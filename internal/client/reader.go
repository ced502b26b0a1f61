package client

import (
	"fmt"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
)

// Reader decodes stored records out of the ledger. All methods return copies;
// mutating a returned value never touches stored state.
type Reader struct {
	ledger *ledger.Ledger
}

// NewReader wraps a ledger for read access.
func NewReader(l *ledger.Ledger) *Reader {
	return &Reader{ledger: l}
}

// Account fetches and decodes the record at an arbitrary address. The dynamic
// type of the result matches the stored entity kind.
func (r *Reader) Account(addr registry.Address) (any, error) {
	rec, err := r.ledger.Get(addr)
	if err != nil {
		return nil, err
	}
	switch rec.Kind {
	case domain.KindContractState:
		return codec.DecodeContractState(rec.Data)
	case domain.KindUser:
		return codec.DecodeUser(rec.Data)
	case domain.KindEvent:
		return codec.DecodeEvent(rec.Data)
	case domain.KindEventMeta:
		return codec.DecodeEventMeta(rec.Data)
	case domain.KindEventOption:
		return codec.DecodeEventOption(rec.Data)
	case domain.KindParticipation:
		return codec.DecodeParticipation(rec.Data)
	case domain.KindAppellation:
		return codec.DecodeAppellation(rec.Data)
	default:
		return nil, fmt.Errorf("client: account %s: unknown kind %d", addr, rec.Kind)
	}
}

// ContractState fetches the configuration singleton.
func (r *Reader) ContractState() (domain.ContractState, error) {
	rec, err := r.ledger.Get(registry.State())
	if err != nil {
		return domain.ContractState{}, err
	}
	return codec.DecodeContractState(rec.Data)
}

// User fetches the record of a wallet.
func (r *Reader) User(owner domain.PublicKey) (domain.User, error) {
	rec, err := r.ledger.Get(registry.User(owner))
	if err != nil {
		return domain.User{}, err
	}
	return codec.DecodeUser(rec.Data)
}

// Event fetches an event.
func (r *Reader) Event(id domain.EventID) (domain.Event, error) {
	rec, err := r.ledger.Get(registry.Event(id))
	if err != nil {
		return domain.Event{}, err
	}
	return codec.DecodeEvent(rec.Data)
}

// EventMeta fetches the metadata of an event.
func (r *Reader) EventMeta(id domain.EventID) (domain.EventMeta, error) {
	rec, err := r.ledger.Get(registry.EventMeta(id))
	if err != nil {
		return domain.EventMeta{}, err
	}
	return codec.DecodeEventMeta(rec.Data)
}

// Option fetches one outcome option of an event.
func (r *Reader) Option(id domain.EventID, index uint8) (domain.EventOption, error) {
	rec, err := r.ledger.Get(registry.Option(id, index))
	if err != nil {
		return domain.EventOption{}, err
	}
	return codec.DecodeEventOption(rec.Data)
}

// Options fetches every option of an event in index order.
func (r *Reader) Options(id domain.EventID) ([]domain.EventOption, error) {
	ev, err := r.Event(id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventOption, 0, ev.OptionCount)
	for i := uint8(0); i < ev.OptionCount; i++ {
		opt, err := r.Option(id, i)
		if err != nil {
			return nil, err
		}
		out = append(out, opt)
	}
	return out, nil
}

// Participation fetches a user's commitment to an event.
func (r *Reader) Participation(id domain.EventID, payer domain.PublicKey) (domain.Participation, error) {
	rec, err := r.ledger.Get(registry.Participation(id, payer))
	if err != nil {
		return domain.Participation{}, err
	}
	return codec.DecodeParticipation(rec.Data)
}

// Appeal fetches the dispute aggregate of an event.
func (r *Reader) Appeal(id domain.EventID) (domain.Appellation, error) {
	rec, err := r.ledger.Get(registry.Appeal(id))
	if err != nil {
		return domain.Appellation{}, err
	}
	return codec.DecodeAppellation(rec.Data)
}

// Users fetches every user record.
func (r *Reader) Users() ([]domain.User, error) {
	return listKind(r, domain.KindUser, codec.DecodeUser)
}

// Events fetches every event record.
func (r *Reader) Events() ([]domain.Event, error) {
	return listKind(r, domain.KindEvent, codec.DecodeEvent)
}

// EventMetas fetches every metadata record.
func (r *Reader) EventMetas() ([]domain.EventMeta, error) {
	return listKind(r, domain.KindEventMeta, codec.DecodeEventMeta)
}

// AllOptions fetches every option record across all events.
func (r *Reader) AllOptions() ([]domain.EventOption, error) {
	return listKind(r, domain.KindEventOption, codec.DecodeEventOption)
}

// Participations fetches every participation record across all events.
func (r *Reader) Participations() ([]domain.Participation, error) {
	return listKind(r, domain.KindParticipation, codec.DecodeParticipation)
}

// Appeals fetches every dispute aggregate.
func (r *Reader) Appeals() ([]domain.Appellation, error) {
	return listKind(r, domain.KindAppellation, codec.DecodeAppellation)
}

func listKind[T any](r *Reader, kind domain.EntityKind, decode func([]byte) (T, error)) ([]T, error) {
	entries := r.ledger.List(kind)
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		v, err := decode(entry.Record.Data)
		if err != nil {
			return nil, fmt.Errorf("client: list %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}
