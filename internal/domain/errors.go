package domain

import "errors"

// ErrorKind classifies instruction failures. Every precondition violation
// aborts the whole instruction; the kind only tells the client whether a
// retry can ever succeed (timing) or never will (the rest).
type ErrorKind uint8

const (
	KindAuthorization ErrorKind = iota + 1
	KindTiming
	KindStateConflict
	KindArithmetic
)

// String returns the taxonomy label of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindTiming:
		return "timing"
	case KindStateConflict:
		return "state_conflict"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is an instruction abort reason with its taxonomy kind attached.
type Error struct {
	Kind ErrorKind
	msg  string
}

// NewError creates a classified instruction error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// KindOf extracts the ErrorKind from err, unwrapping as needed. It returns
// zero when err is not an instruction error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// Store-level sentinels, used by the ledger and the read-side stores.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)

// Instruction abort reasons.
var (
	// Authorization.
	ErrAuthorityMismatch = NewError(KindAuthorization, "authority mismatched")

	// Timing.
	ErrEventAlreadyStarted = NewError(KindTiming, "event has already started")
	ErrEventNotOver        = NewError(KindTiming, "event is not over")
	ErrInactiveEvent       = NewError(KindTiming, "event is not accepting participation")
	ErrEventNotEnded       = NewError(KindTiming, "event result is not final")
	ErrEventNotCanceled    = NewError(KindTiming, "event is not canceled")
	ErrAppealWindowClosed  = NewError(KindTiming, "appeal window has closed")
	ErrAppealWindowOpen    = NewError(KindTiming, "appeal window still open")
	ErrCompletionPending   = NewError(KindTiming, "organizer completion window still open")

	// State conflict.
	ErrStateInitialized   = NewError(KindStateConflict, "contract state already initialized")
	ErrUserExists         = NewError(KindStateConflict, "user record already exists")
	ErrUserMissing        = NewError(KindStateConflict, "user record missing")
	ErrEventExists        = NewError(KindStateConflict, "event already exists")
	ErrEventMissing       = NewError(KindStateConflict, "event missing")
	ErrOptionMissing      = NewError(KindStateConflict, "event option missing")
	ErrAlreadyParticipant = NewError(KindStateConflict, "already participating in this event")
	ErrNoParticipation    = NewError(KindStateConflict, "no participation for this event")
	ErrAlreadyClaimed     = NewError(KindStateConflict, "participation already claimed")
	ErrAlreadyAppealed    = NewError(KindStateConflict, "participation already appealed")
	ErrAlreadyCompleted   = NewError(KindStateConflict, "event result already posted")
	ErrAlreadyCanceled    = NewError(KindStateConflict, "event already canceled")
	ErrNonSequentialIndex = NewError(KindStateConflict, "option index must be sequential")
	ErrLosingOption       = NewError(KindStateConflict, "participation did not back the winning option")
	ErrWinningOption      = NewError(KindStateConflict, "participation backed the winning option")

	// Arithmetic / capacity.
	ErrInvalidEventID     = NewError(KindArithmetic, "event id is not a valid version-4 identifier")
	ErrInvalidEndDate     = NewError(KindArithmetic, "invalid event end date")
	ErrInvalidOptionIndex = NewError(KindArithmetic, "option index out of range")
	ErrTooManyOptions     = NewError(KindArithmetic, "event has too many options")
	ErrInsufficientStake  = NewError(KindArithmetic, "insufficient unlocked stake")
	ErrInsufficientTrust  = NewError(KindArithmetic, "insufficient trust level")
	ErrInvalidAmount      = NewError(KindArithmetic, "amount must be positive")
)
