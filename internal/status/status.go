// Package status derives the lifecycle phase of an event. The derivation is a
// pure function of its inputs so the engine's guards and any read-side
// projection evaluate it identically.
package status

// Phase is the lifecycle state of an event. The zero-based ordering matches
// lifecycle order; Canceled is an absorbing state reachable from any phase.
type Phase uint8

const (
	NotStarted Phase = iota
	Active
	ParticipationClosed
	WaitingForResult
	Ended
	Canceled
)

// String returns the wire label of the phase.
func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case ParticipationClosed:
		return "participation_closed"
	case WaitingForResult:
		return "waiting_for_result"
	case Ended:
		return "ended"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Of evaluates the phase at the given wall-clock second. First match wins:
//
//  1. canceled
//  2. before start
//  3. participation deadline passed, event still running
//  4. past end, result not posted
//  5. past end, result posted
//  6. otherwise active
func Of(now, startDate, endDate int64, participationDeadline *int64, canceled bool, result *uint8) Phase {
	switch {
	case canceled:
		return Canceled
	case now < startDate:
		return NotStarted
	case participationDeadline != nil && *participationDeadline < now && now < endDate:
		return ParticipationClosed
	case now >= endDate && result == nil:
		return WaitingForResult
	case now >= endDate:
		return Ended
	default:
		return Active
	}
}
