// Package domain defines the persisted record types of the settlement ledger
// and the error taxonomy shared by the engine and its read-side projections.
package domain

import (
	"fmt"
	"strings"
)

// Monetary amounts are denominated in the smallest indivisible unit of the
// native token. UnitsPerToken is the conversion used by trust accounting.
const UnitsPerToken uint64 = 1_000_000_000

const (
	// MaxOptionCount caps the number of outcome options per event.
	MaxOptionCount = 20

	// InitialTrust is the trust level granted to a newly created user.
	InitialTrust uint64 = 5

	// NameLen and DescriptionLen are the fixed widths of stored text fields.
	NameLen        = 32
	DescriptionLen = 256
)

// EntityKind tags each stored record with its type so fetch-all-of-type reads
// can scan the ledger without decoding every layout.
type EntityKind uint8

const (
	KindContractState EntityKind = iota + 1
	KindUser
	KindEvent
	KindEventMeta
	KindEventOption
	KindParticipation
	KindAppellation
)

// String returns the registry namespace literal for the kind.
func (k EntityKind) String() string {
	switch k {
	case KindContractState:
		return "state"
	case KindUser:
		return "user"
	case KindEvent:
		return "event"
	case KindEventMeta:
		return "event_meta"
	case KindEventOption:
		return "option"
	case KindParticipation:
		return "participation"
	case KindAppellation:
		return "appeal"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Current account layout versions.
const (
	ContractStateVersion uint8 = 1
	UserVersion          uint8 = 1
	EventVersion         uint8 = 1
	EventMetaVersion     uint8 = 1
	EventOptionVersion   uint8 = 1
	ParticipationVersion uint8 = 1
	AppellationVersion   uint8 = 1
)

// ContractState is the protocol configuration singleton. Only its own
// authority may change its fields.
type ContractState struct {
	Version     uint8     `json:"version"`
	Authority   PublicKey `json:"authority"`
	Multiplier  uint64    `json:"multiplier"`   // trust units accrued per token of winning payout
	EventPrice  uint64    `json:"event_price"`  // escrowed event creation fee
	PlatformFee uint64    `json:"platform_fee"` // flat fee skimmed to the protocol authority on settlement
	OrgReward   uint64    `json:"org_reward"`   // organizer share of the pool, in percent
}

// User tracks a wallet's staked balance. Stake holds only unlocked funds;
// amounts committed to open positions move to LockedStake and return through
// claim, recharge, or burn paths.
type User struct {
	Version     uint8         `json:"version"`
	Owner       PublicKey     `json:"owner"`
	Stake       uint64        `json:"stake"`
	LockedStake uint64        `json:"locked_stake"`
	TrustLevel  uint64        `json:"trust_level"`
	Name        [NameLen]byte `json:"-"`
}

// Event is a prediction market. Stake is the organizer's escrowed creation
// fee; it transitions to zero exactly once, on settlement or cancellation.
type Event struct {
	Version               uint8     `json:"version"`
	ID                    EventID   `json:"id"`
	Authority             PublicKey `json:"authority"`
	Stake                 uint64    `json:"stake"`
	StartDate             int64     `json:"start_date"`
	EndDate               int64     `json:"end_date"`
	ParticipationDeadline *int64    `json:"participation_deadline,omitempty"`
	OptionCount           uint8     `json:"option_count"`
	ParticipationCount    uint64    `json:"participation_count"`
	TotalAmount           uint64    `json:"total_amount"`
	TotalTrust            uint64    `json:"total_trust"`
	Canceled              bool      `json:"canceled"`
	Result                *uint8    `json:"result,omitempty"`
}

// EventMeta carries the display fields of an event, created atomically with it.
type EventMeta struct {
	Version     uint8                `json:"version"`
	EventID     EventID              `json:"event_id"`
	IsPrivate   bool                 `json:"is_private"`
	Name        [NameLen]byte        `json:"-"`
	Description [DescriptionLen]byte `json:"-"`
}

// EventOption is one outcome of an event. VaultBalance is the sum of deposits
// committed to this option.
type EventOption struct {
	Version      uint8                `json:"version"`
	EventID      EventID              `json:"event_id"`
	Index        uint8                `json:"index"`
	Description  [DescriptionLen]byte `json:"-"`
	Votes        uint64               `json:"votes"`
	VaultBalance uint64               `json:"vault_balance"`
}

// Participation records a user's single commitment to one option of an event.
// IsClaimed is the sole guard against double payout or refund.
type Participation struct {
	Version         uint8     `json:"version"`
	EventID         EventID   `json:"event_id"`
	Payer           PublicKey `json:"payer"`
	Option          uint8     `json:"option"`
	DepositedAmount uint64    `json:"deposited_amount"`
	IsClaimed       bool      `json:"is_claimed"`
	Appealed        bool      `json:"appealed"`
}

// Appellation aggregates dispute signals recorded against a posted result.
type Appellation struct {
	Version            uint8   `json:"version"`
	EventID            EventID `json:"event_id"`
	DisagreeCount      uint64  `json:"disagree_count"`
	DisagreeTrustLevel uint64  `json:"disagree_trust_level"`
	DisagreeVolume     uint64  `json:"disagree_volume"`
}

// FixedText pads s into a fixed-width byte array. It fails when the UTF-8
// encoding does not fit, mirroring the wire contract's hard field widths.
func FixedText(s string, size int) ([]byte, error) {
	raw := []byte(s)
	if len(raw) > size {
		return nil, fmt.Errorf("domain: text %d bytes exceeds fixed width %d", len(raw), size)
	}
	out := make([]byte, size)
	copy(out, raw)
	return out, nil
}

// Name32 encodes s into the fixed 32-byte name field.
func Name32(s string) ([NameLen]byte, error) {
	var out [NameLen]byte
	raw, err := FixedText(s, NameLen)
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

// Description256 encodes s into the fixed 256-byte description field.
func Description256(s string) ([DescriptionLen]byte, error) {
	var out [DescriptionLen]byte
	raw, err := FixedText(s, DescriptionLen)
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

// TrimText recovers the textual value of a fixed-width field by stripping the
// trailing zero padding.
func TrimText(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
