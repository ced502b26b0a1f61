package engine

import (
	"errors"
	"time"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
	"github.com/predictory-labs/predictory/internal/status"
)

// CreateEventArgs carries the caller-supplied fields of a new event.
type CreateEventArgs struct {
	Name                  string
	Description           string
	IsPrivate             bool
	StartDate             int64
	EndDate               int64
	ParticipationDeadline *int64
}

func phaseOf(ev domain.Event, now int64) status.Phase {
	return status.Of(now, ev.StartDate, ev.EndDate, ev.ParticipationDeadline, ev.Canceled, ev.Result)
}

// CreateEvent escrows the creation fee from the organizer's stake and creates
// the Event and EventMeta records atomically. The event id must be a fresh
// version-4 identifier.
func (e *Engine) CreateEvent(authority domain.PublicKey, id domain.EventID, args CreateEventArgs) (*Receipt, error) {
	return e.run("createEvent", &id, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		if !id.Valid() {
			return domain.ErrInvalidEventID
		}
		if args.EndDate <= args.StartDate {
			return domain.ErrInvalidEndDate
		}
		if d := args.ParticipationDeadline; d != nil && (*d < args.StartDate || *d > args.EndDate) {
			return domain.ErrInvalidEndDate
		}
		name, err := domain.Name32(args.Name)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}
		description, err := domain.Description256(args.Description)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}

		state, err := getState(tx)
		if err != nil {
			return err
		}
		organizer, err := getUser(tx, authority)
		if err != nil {
			return err
		}
		if organizer.Stake < state.EventPrice {
			return domain.ErrInsufficientStake
		}

		organizer.Stake -= state.EventPrice
		organizer.LockedStake += state.EventPrice
		if err := putUser(tx, organizer); err != nil {
			return err
		}

		ev := domain.Event{
			Version:               domain.EventVersion,
			ID:                    id,
			Authority:             authority,
			Stake:                 state.EventPrice,
			StartDate:             args.StartDate,
			EndDate:               args.EndDate,
			ParticipationDeadline: args.ParticipationDeadline,
		}
		eventAddr := registry.Event(id)
		if err := tx.Create(eventAddr, domain.KindEvent, codec.EncodeEvent(ev)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrEventExists
			}
			return err
		}

		meta := domain.EventMeta{
			Version:     domain.EventMetaVersion,
			EventID:     id,
			IsPrivate:   args.IsPrivate,
			Name:        name,
			Description: description,
		}
		metaAddr := registry.EventMeta(id)
		if err := tx.Create(metaAddr, domain.KindEventMeta, codec.EncodeEventMeta(meta)); err != nil {
			return err
		}

		rcp.touch(registry.User(authority), eventAddr, metaAddr)
		return nil
	})
}

// CreateEventOption appends the next outcome option to an event. Indices are
// strictly sequential and capped at MaxOptionCount; options can only be added
// before the event starts.
func (e *Engine) CreateEventOption(authority domain.PublicKey, id domain.EventID, index uint8, description string) (*Receipt, error) {
	return e.run("createEventOption", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Authority != authority {
			return domain.ErrAuthorityMismatch
		}
		if phaseOf(ev, now) != status.NotStarted {
			return domain.ErrEventAlreadyStarted
		}
		if index != ev.OptionCount {
			return domain.ErrNonSequentialIndex
		}
		if int(ev.OptionCount)+1 > domain.MaxOptionCount {
			return domain.ErrTooManyOptions
		}
		fixed, err := domain.Description256(description)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}

		opt := domain.EventOption{
			Version:     domain.EventOptionVersion,
			EventID:     id,
			Index:       index,
			Description: fixed,
		}
		optAddr := registry.Option(id, index)
		if err := tx.Create(optAddr, domain.KindEventOption, codec.EncodeEventOption(opt)); err != nil {
			return err
		}

		ev.OptionCount++
		if err := putEvent(tx, ev); err != nil {
			return err
		}
		rcp.touch(registry.Event(id), optAddr)
		return nil
	})
}

// guardUpdate loads the event and enforces the shared update preconditions:
// only the authority may edit, and only before the event starts.
func guardUpdate(tx *ledger.Txn, authority domain.PublicKey, id domain.EventID, now int64) (domain.Event, error) {
	ev, err := getEvent(tx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.Authority != authority {
		return domain.Event{}, domain.ErrAuthorityMismatch
	}
	if phaseOf(ev, now) != status.NotStarted {
		return domain.Event{}, domain.ErrEventAlreadyStarted
	}
	return ev, nil
}

// UpdateEventName replaces the display name of an unstarted event.
func (e *Engine) UpdateEventName(authority domain.PublicKey, id domain.EventID, name string) (*Receipt, error) {
	return e.run("updateEventName", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		if _, err := guardUpdate(tx, authority, id, now); err != nil {
			return err
		}
		fixed, err := domain.Name32(name)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}
		meta, err := getMeta(tx, id)
		if err != nil {
			return err
		}
		meta.Name = fixed
		if err := putMeta(tx, meta); err != nil {
			return err
		}
		rcp.touch(registry.EventMeta(id))
		return nil
	})
}

// UpdateEventDescription replaces the description of an unstarted event.
func (e *Engine) UpdateEventDescription(authority domain.PublicKey, id domain.EventID, description string) (*Receipt, error) {
	return e.run("updateEventDescription", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		if _, err := guardUpdate(tx, authority, id, now); err != nil {
			return err
		}
		fixed, err := domain.Description256(description)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}
		meta, err := getMeta(tx, id)
		if err != nil {
			return err
		}
		meta.Description = fixed
		if err := putMeta(tx, meta); err != nil {
			return err
		}
		rcp.touch(registry.EventMeta(id))
		return nil
	})
}

// UpdateEventEndDate moves the end date of an unstarted event. The new end
// must still follow the start.
func (e *Engine) UpdateEventEndDate(authority domain.PublicKey, id domain.EventID, endDate int64) (*Receipt, error) {
	return e.run("updateEventEndDate", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := guardUpdate(tx, authority, id, now)
		if err != nil {
			return err
		}
		if endDate <= ev.StartDate {
			return domain.ErrInvalidEndDate
		}
		ev.EndDate = endDate
		if err := putEvent(tx, ev); err != nil {
			return err
		}
		rcp.touch(registry.Event(id))
		return nil
	})
}

// UpdateEventParticipationDeadline sets or clears the participation deadline
// of an unstarted event. A non-nil deadline must fall within the event window.
func (e *Engine) UpdateEventParticipationDeadline(authority domain.PublicKey, id domain.EventID, deadline *int64) (*Receipt, error) {
	return e.run("updateEventParticipationDeadline", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := guardUpdate(tx, authority, id, now)
		if err != nil {
			return err
		}
		if deadline != nil && (*deadline < ev.StartDate || *deadline > ev.EndDate) {
			return domain.ErrInvalidEndDate
		}
		ev.ParticipationDeadline = deadline
		if err := putEvent(tx, ev); err != nil {
			return err
		}
		rcp.touch(registry.Event(id))
		return nil
	})
}

// UpdateEventOption rewrites an option's description. Allowed before the
// event starts, or while it is active with no participation recorded yet.
func (e *Engine) UpdateEventOption(authority domain.PublicKey, id domain.EventID, index uint8, description string) (*Receipt, error) {
	return e.run("updateEventOption", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Authority != authority {
			return domain.ErrAuthorityMismatch
		}
		switch phaseOf(ev, now) {
		case status.NotStarted:
		case status.Active:
			if ev.ParticipationCount > 0 {
				return domain.ErrEventAlreadyStarted
			}
		default:
			return domain.ErrEventAlreadyStarted
		}
		fixed, err := domain.Description256(description)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}
		opt, err := getOption(tx, id, index)
		if err != nil {
			return err
		}
		opt.Description = fixed
		if err := putOption(tx, opt); err != nil {
			return err
		}
		rcp.touch(registry.Option(id, index))
		return nil
	})
}

// CompleteEvent posts the winning option index. Only the organizer may post,
// only after the end date, and only once.
func (e *Engine) CompleteEvent(authority domain.PublicKey, id domain.EventID, resultIndex uint8) (*Receipt, error) {
	return e.run("completeEvent", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Authority != authority {
			return domain.ErrAuthorityMismatch
		}
		if ev.Canceled {
			return domain.ErrAlreadyCanceled
		}
		if ev.Result != nil {
			return domain.ErrAlreadyCompleted
		}
		if now < ev.EndDate {
			return domain.ErrEventNotOver
		}
		if resultIndex >= ev.OptionCount {
			return domain.ErrInvalidOptionIndex
		}
		ev.Result = &resultIndex
		if err := putEvent(tx, ev); err != nil {
			return err
		}
		rcp.touch(registry.Event(id))
		return nil
	})
}

// CancelEvent aborts an event before a result is posted. The organizer may
// cancel at any time; anyone holding a participation may cancel once the
// completion grace after the end date has lapsed with no result. The
// organizer's escrow is refunded only when cancellation lands before the
// start date; afterwards it is forfeited to the protocol authority.
func (e *Engine) CancelEvent(sender domain.PublicKey, id domain.EventID) (*Receipt, error) {
	return e.run("cancelEvent", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Canceled {
			return domain.ErrAlreadyCanceled
		}
		if ev.Result != nil {
			return domain.ErrAlreadyCompleted
		}

		if ev.Authority != sender {
			if _, err := getParticipation(tx, id, sender); err != nil {
				return domain.ErrAuthorityMismatch
			}
			if now <= ev.EndDate+int64(CompletionGrace/time.Second) {
				return domain.ErrCompletionPending
			}
		}

		state, err := getState(tx)
		if err != nil {
			return err
		}
		organizer, err := getUser(tx, ev.Authority)
		if err != nil {
			return err
		}

		escrow := ev.Stake
		organizer.LockedStake -= escrow
		if now < ev.StartDate {
			organizer.Stake += escrow
		} else if escrow > 0 {
			// Forfeited once the event has begun. The fee leaves the
			// organizer for good; the runtime pays it to the protocol
			// authority.
			rcp.credit(state.Authority, escrow)
		}
		if err := putUser(tx, organizer); err != nil {
			return err
		}

		ev.Canceled = true
		ev.Stake = 0
		if err := putEvent(tx, ev); err != nil {
			return err
		}
		rcp.touch(registry.Event(id), registry.User(ev.Authority))
		return nil
	})
}
