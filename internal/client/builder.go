// Package client is the SDK boundary of the settlement engine: instruction
// builders that produce unsigned, unsubmitted operations, and decoded read
// access to every stored entity. Builders perform no precondition checks; the
// engine is the sole authority on whether an operation applies.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
	"github.com/predictory-labs/predictory/internal/registry"
)

// Operation is one unsigned instruction: its name, the addresses it declares,
// and its JSON-encoded arguments.
type Operation struct {
	Instruction string          `json:"instruction"`
	Accounts    []string        `json:"accounts"`
	Args        json.RawMessage `json:"args"`
}

// Per-instruction argument payloads. Field names are part of the operation
// encoding consumed by the instruction endpoint.

type InitializeContractStateArgs struct {
	Authority   string `json:"authority"`
	Multiplier  uint64 `json:"multiplier"`
	EventPrice  uint64 `json:"event_price"`
	PlatformFee uint64 `json:"platform_fee"`
	OrgReward   uint64 `json:"org_reward"`
}

type SetContractAuthorityArgs struct {
	Authority    string `json:"authority"`
	NewAuthority string `json:"new_authority"`
}

type SetContractMultiplierArgs struct {
	Authority  string `json:"authority"`
	Multiplier uint64 `json:"multiplier"`
}

type SetEventPriceArgs struct {
	Authority  string `json:"authority"`
	EventPrice uint64 `json:"event_price"`
}

type CreateUserArgs struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

type TransferStakeArgs struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

type WithdrawStakeArgs struct {
	Owner  string  `json:"owner"`
	Amount *uint64 `json:"amount,omitempty"`
}

type CreateEventArgs struct {
	Authority             string `json:"authority"`
	EventID               string `json:"event_id"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	IsPrivate             bool   `json:"is_private"`
	StartDate             int64  `json:"start_date"`
	EndDate               int64  `json:"end_date"`
	ParticipationDeadline *int64 `json:"participation_deadline,omitempty"`
}

type CreateEventOptionArgs struct {
	Authority   string `json:"authority"`
	EventID     string `json:"event_id"`
	Index       uint8  `json:"index"`
	Description string `json:"description"`
}

type UpdateEventNameArgs struct {
	Authority string `json:"authority"`
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
}

type UpdateEventDescriptionArgs struct {
	Authority   string `json:"authority"`
	EventID     string `json:"event_id"`
	Description string `json:"description"`
}

type UpdateEventEndDateArgs struct {
	Authority string `json:"authority"`
	EventID   string `json:"event_id"`
	EndDate   int64  `json:"end_date"`
}

type UpdateEventParticipationDeadlineArgs struct {
	Authority             string `json:"authority"`
	EventID               string `json:"event_id"`
	ParticipationDeadline *int64 `json:"participation_deadline,omitempty"`
}

type UpdateEventOptionArgs struct {
	Authority   string `json:"authority"`
	EventID     string `json:"event_id"`
	Index       uint8  `json:"index"`
	Description string `json:"description"`
}

type VoteArgs struct {
	Sender      string `json:"sender"`
	EventID     string `json:"event_id"`
	OptionIndex uint8  `json:"option_index"`
	Amount      uint64 `json:"amount"`
}

type CompleteEventArgs struct {
	Authority   string `json:"authority"`
	EventID     string `json:"event_id"`
	ResultIndex uint8  `json:"result_index"`
}

type CancelEventArgs struct {
	Sender  string `json:"sender"`
	EventID string `json:"event_id"`
}

type ClaimEventRewardArgs struct {
	Sender  string `json:"sender"`
	EventID string `json:"event_id"`
}

type RechargeArgs struct {
	Sender  string `json:"sender"`
	EventID string `json:"event_id"`
}

type AppealArgs struct {
	Sender  string `json:"sender"`
	EventID string `json:"event_id"`
}

type BurnTrustArgs struct {
	Sender  string `json:"sender"`
	EventID string `json:"event_id"`
	Amount  uint64 `json:"amount"`
}

func build(instruction string, args any, accounts ...registry.Address) (Operation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Operation{}, fmt.Errorf("client: build %s: %w", instruction, err)
	}
	encoded := make([]string, len(accounts))
	for i, a := range accounts {
		encoded[i] = a.String()
	}
	return Operation{Instruction: instruction, Accounts: encoded, Args: raw}, nil
}

// InitializeContractState builds the configuration bootstrap operation.
func InitializeContractState(authority domain.PublicKey, multiplier, eventPrice, platformFee, orgReward uint64) (Operation, error) {
	return build("initializeContractState", InitializeContractStateArgs{
		Authority:   authority.String(),
		Multiplier:  multiplier,
		EventPrice:  eventPrice,
		PlatformFee: platformFee,
		OrgReward:   orgReward,
	}, registry.State())
}

// SetContractAuthority builds the authority handover operation.
func SetContractAuthority(authority, newAuthority domain.PublicKey) (Operation, error) {
	return build("setContractAuthority", SetContractAuthorityArgs{
		Authority:    authority.String(),
		NewAuthority: newAuthority.String(),
	}, registry.State())
}

// SetContractMultiplier builds the trust rate update operation.
func SetContractMultiplier(authority domain.PublicKey, multiplier uint64) (Operation, error) {
	return build("setContractMultiplier", SetContractMultiplierArgs{
		Authority:  authority.String(),
		Multiplier: multiplier,
	}, registry.State())
}

// SetEventPrice builds the creation fee update operation.
func SetEventPrice(authority domain.PublicKey, eventPrice uint64) (Operation, error) {
	return build("setEventPrice", SetEventPriceArgs{
		Authority:  authority.String(),
		EventPrice: eventPrice,
	}, registry.State())
}

// CreateUser builds the wallet registration operation.
func CreateUser(owner domain.PublicKey, name string) (Operation, error) {
	return build("createUser", CreateUserArgs{Owner: owner.String(), Name: name},
		registry.User(owner))
}

// TransferStake builds the stake deposit operation.
func TransferStake(owner domain.PublicKey, amount uint64) (Operation, error) {
	return build("transferStake", TransferStakeArgs{Owner: owner.String(), Amount: amount},
		registry.User(owner))
}

// WithdrawStake builds the stake withdrawal operation. A nil amount withdraws
// the full unlocked stake.
func WithdrawStake(owner domain.PublicKey, amount *uint64) (Operation, error) {
	return build("withdrawStake", WithdrawStakeArgs{Owner: owner.String(), Amount: amount},
		registry.User(owner))
}

// CreateEvent builds the market creation operation.
func CreateEvent(authority domain.PublicKey, id domain.EventID, args engine.CreateEventArgs) (Operation, error) {
	return build("createEvent", CreateEventArgs{
		Authority:             authority.String(),
		EventID:               id.String(),
		Name:                  args.Name,
		Description:           args.Description,
		IsPrivate:             args.IsPrivate,
		StartDate:             args.StartDate,
		EndDate:               args.EndDate,
		ParticipationDeadline: args.ParticipationDeadline,
	}, registry.User(authority), registry.Event(id), registry.EventMeta(id))
}

// CreateEventOption builds the option creation operation.
func CreateEventOption(authority domain.PublicKey, id domain.EventID, index uint8, description string) (Operation, error) {
	return build("createEventOption", CreateEventOptionArgs{
		Authority:   authority.String(),
		EventID:     id.String(),
		Index:       index,
		Description: description,
	}, registry.Event(id), registry.Option(id, index))
}

// UpdateEventName builds the name update operation.
func UpdateEventName(authority domain.PublicKey, id domain.EventID, name string) (Operation, error) {
	return build("updateEventName", UpdateEventNameArgs{
		Authority: authority.String(),
		EventID:   id.String(),
		Name:      name,
	}, registry.Event(id), registry.EventMeta(id))
}

// UpdateEventDescription builds the description update operation.
func UpdateEventDescription(authority domain.PublicKey, id domain.EventID, description string) (Operation, error) {
	return build("updateEventDescription", UpdateEventDescriptionArgs{
		Authority:   authority.String(),
		EventID:     id.String(),
		Description: description,
	}, registry.Event(id), registry.EventMeta(id))
}

// UpdateEventEndDate builds the end date update operation.
func UpdateEventEndDate(authority domain.PublicKey, id domain.EventID, endDate int64) (Operation, error) {
	return build("updateEventEndDate", UpdateEventEndDateArgs{
		Authority: authority.String(),
		EventID:   id.String(),
		EndDate:   endDate,
	}, registry.Event(id))
}

// UpdateEventParticipationDeadline builds the deadline update operation.
func UpdateEventParticipationDeadline(authority domain.PublicKey, id domain.EventID, deadline *int64) (Operation, error) {
	return build("updateEventParticipationDeadline", UpdateEventParticipationDeadlineArgs{
		Authority:             authority.String(),
		EventID:               id.String(),
		ParticipationDeadline: deadline,
	}, registry.Event(id))
}

// UpdateEventOption builds the option description update operation.
func UpdateEventOption(authority domain.PublicKey, id domain.EventID, index uint8, description string) (Operation, error) {
	return build("updateEventOption", UpdateEventOptionArgs{
		Authority:   authority.String(),
		EventID:     id.String(),
		Index:       index,
		Description: description,
	}, registry.Event(id), registry.Option(id, index))
}

// Vote builds the participation operation.
func Vote(sender domain.PublicKey, id domain.EventID, optionIndex uint8, amount uint64) (Operation, error) {
	return build("vote", VoteArgs{
		Sender:      sender.String(),
		EventID:     id.String(),
		OptionIndex: optionIndex,
		Amount:      amount,
	}, registry.User(sender), registry.Event(id), registry.Option(id, optionIndex), registry.Participation(id, sender))
}

// CompleteEvent builds the result posting operation.
func CompleteEvent(authority domain.PublicKey, id domain.EventID, resultIndex uint8) (Operation, error) {
	return build("completeEvent", CompleteEventArgs{
		Authority:   authority.String(),
		EventID:     id.String(),
		ResultIndex: resultIndex,
	}, registry.Event(id))
}

// CancelEvent builds the cancellation operation.
func CancelEvent(sender domain.PublicKey, id domain.EventID) (Operation, error) {
	return build("cancelEvent", CancelEventArgs{
		Sender:  sender.String(),
		EventID: id.String(),
	}, registry.Event(id))
}

// ClaimEventReward builds the winner payout operation.
func ClaimEventReward(sender domain.PublicKey, id domain.EventID) (Operation, error) {
	return build("claimEventReward", ClaimEventRewardArgs{
		Sender:  sender.String(),
		EventID: id.String(),
	}, registry.State(), registry.User(sender), registry.Event(id), registry.Participation(id, sender))
}

// Recharge builds the cancellation refund operation.
func Recharge(sender domain.PublicKey, id domain.EventID) (Operation, error) {
	return build("recharge", RechargeArgs{
		Sender:  sender.String(),
		EventID: id.String(),
	}, registry.User(sender), registry.Event(id), registry.Participation(id, sender))
}

// Appeal builds the dispute operation.
func Appeal(sender domain.PublicKey, id domain.EventID) (Operation, error) {
	return build("appeal", AppealArgs{
		Sender:  sender.String(),
		EventID: id.String(),
	}, registry.Event(id), registry.Appeal(id), registry.Participation(id, sender))
}

// BurnTrust builds the trust burn operation.
func BurnTrust(sender domain.PublicKey, id domain.EventID, amount uint64) (Operation, error) {
	return build("burnTrust", BurnTrustArgs{
		Sender:  sender.String(),
		EventID: id.String(),
		Amount:  amount,
	}, registry.User(sender), registry.Event(id), registry.Participation(id, sender))
}
