package client

import (
	"errors"

	"github.com/predictory-labs/predictory/internal/domain"
)

// EventSnapshot is the full read-model of one event: the event record, its
// metadata, every option, every open or settled position, and the dispute
// aggregate when one exists.
type EventSnapshot struct {
	Event          domain.Event           `json:"event"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	IsPrivate      bool                   `json:"is_private"`
	Options        []OptionView           `json:"options"`
	Participations []domain.Participation `json:"participations"`
	Appeal         *domain.Appellation    `json:"appeal,omitempty"`
}

// OptionView is an outcome option with its description unpacked to a string.
type OptionView struct {
	Index        uint8  `json:"index"`
	Description  string `json:"description"`
	Votes        uint64 `json:"votes"`
	VaultBalance uint64 `json:"vault_balance"`
}

// Snapshot assembles the full read-model of an event from the ledger.
func (r *Reader) Snapshot(id domain.EventID) (EventSnapshot, error) {
	var snap EventSnapshot

	ev, err := r.Event(id)
	if err != nil {
		return snap, err
	}
	meta, err := r.EventMeta(id)
	if err != nil {
		return snap, err
	}
	opts, err := r.Options(id)
	if err != nil {
		return snap, err
	}

	snap.Event = ev
	snap.Name = domain.TrimText(meta.Name[:])
	snap.Description = domain.TrimText(meta.Description[:])
	snap.IsPrivate = meta.IsPrivate
	snap.Options = make([]OptionView, 0, len(opts))
	for _, opt := range opts {
		snap.Options = append(snap.Options, OptionView{
			Index:        opt.Index,
			Description:  domain.TrimText(opt.Description[:]),
			Votes:        opt.Votes,
			VaultBalance: opt.VaultBalance,
		})
	}

	all, err := r.Participations()
	if err != nil {
		return snap, err
	}
	for _, p := range all {
		if p.EventID == id {
			snap.Participations = append(snap.Participations, p)
		}
	}

	appeal, err := r.Appeal(id)
	switch {
	case err == nil:
		snap.Appeal = &appeal
	case errors.Is(err, domain.ErrNotFound):
		// no dispute recorded
	default:
		return snap, err
	}

	return snap, nil
}
