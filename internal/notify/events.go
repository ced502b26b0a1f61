package notify

import (
	"fmt"

	"github.com/predictory-labs/predictory/internal/engine"
)

// Notification event types emitted by the settlement pipeline.
const (
	EventCompleted = "event_completed"
	EventCanceled  = "event_canceled"
	RewardClaimed  = "reward_claimed"
	Appeal         = "appeal"
)

// instructionEvents maps engine instructions to the notification event types
// operators can subscribe to. Instructions absent from the map produce no
// notification.
var instructionEvents = map[string]string{
	"completeEvent":    EventCompleted,
	"cancelEvent":      EventCanceled,
	"claimEventReward": RewardClaimed,
	"appeal":           Appeal,
}

// FromReceipt turns an applied instruction receipt into a notification. The
// second return value is false when the instruction is not notification
// worthy.
func FromReceipt(rcp *engine.Receipt) (event, title, message string, ok bool) {
	event, ok = instructionEvents[rcp.Instruction]
	if !ok {
		return "", "", "", false
	}

	switch event {
	case EventCompleted:
		title = "Event completed"
	case EventCanceled:
		title = "Event canceled"
	case RewardClaimed:
		title = "Reward claimed"
	case Appeal:
		title = "Result appealed"
	}

	if rcp.EventID != nil {
		message = fmt.Sprintf("event %s at %d", rcp.EventID, rcp.UnixTime)
	} else {
		message = fmt.Sprintf("at %d", rcp.UnixTime)
	}
	for _, c := range rcp.Credits {
		message += fmt.Sprintf("\ncredit %d to %s", c.Amount, c.To)
	}
	return event, title, message, true
}
