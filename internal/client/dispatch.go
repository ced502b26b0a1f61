package client

import (
	"encoding/json"
	"fmt"

	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
)

// Execute decodes an operation and runs it against the engine. It is the
// inverse of the builders: every instruction a builder can produce dispatches
// here. Unknown instruction names fail before touching the ledger.
func Execute(e *engine.Engine, op Operation) (*engine.Receipt, error) {
	switch op.Instruction {
	case "initializeContractState":
		var a InitializeContractStateArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, err := domain.ParsePublicKey(a.Authority)
		if err != nil {
			return nil, err
		}
		return e.InitializeContractState(authority, a.Multiplier, a.EventPrice, a.PlatformFee, a.OrgReward)

	case "setContractAuthority":
		var a SetContractAuthorityArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, err := domain.ParsePublicKey(a.Authority)
		if err != nil {
			return nil, err
		}
		next, err := domain.ParsePublicKey(a.NewAuthority)
		if err != nil {
			return nil, err
		}
		return e.SetContractAuthority(authority, next)

	case "setContractMultiplier":
		var a SetContractMultiplierArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, err := domain.ParsePublicKey(a.Authority)
		if err != nil {
			return nil, err
		}
		return e.SetContractMultiplier(authority, a.Multiplier)

	case "setEventPrice":
		var a SetEventPriceArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, err := domain.ParsePublicKey(a.Authority)
		if err != nil {
			return nil, err
		}
		return e.SetEventPrice(authority, a.EventPrice)

	case "createUser":
		var a CreateUserArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		owner, err := domain.ParsePublicKey(a.Owner)
		if err != nil {
			return nil, err
		}
		return e.CreateUser(owner, a.Name)

	case "transferStake":
		var a TransferStakeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		owner, err := domain.ParsePublicKey(a.Owner)
		if err != nil {
			return nil, err
		}
		return e.TransferStake(owner, a.Amount)

	case "withdrawStake":
		var a WithdrawStakeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		owner, err := domain.ParsePublicKey(a.Owner)
		if err != nil {
			return nil, err
		}
		return e.WithdrawStake(owner, a.Amount)

	case "createEvent":
		var a CreateEventArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.CreateEvent(authority, id, engine.CreateEventArgs{
			Name:                  a.Name,
			Description:           a.Description,
			IsPrivate:             a.IsPrivate,
			StartDate:             a.StartDate,
			EndDate:               a.EndDate,
			ParticipationDeadline: a.ParticipationDeadline,
		})

	case "createEventOption":
		var a CreateEventOptionArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.CreateEventOption(authority, id, a.Index, a.Description)

	case "updateEventName":
		var a UpdateEventNameArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.UpdateEventName(authority, id, a.Name)

	case "updateEventDescription":
		var a UpdateEventDescriptionArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.UpdateEventDescription(authority, id, a.Description)

	case "updateEventEndDate":
		var a UpdateEventEndDateArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.UpdateEventEndDate(authority, id, a.EndDate)

	case "updateEventParticipationDeadline":
		var a UpdateEventParticipationDeadlineArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.UpdateEventParticipationDeadline(authority, id, a.ParticipationDeadline)

	case "updateEventOption":
		var a UpdateEventOptionArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.UpdateEventOption(authority, id, a.Index, a.Description)

	case "vote":
		var a VoteArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.Vote(sender, id, a.OptionIndex, a.Amount)

	case "completeEvent":
		var a CompleteEventArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		authority, id, err := parseActor(a.Authority, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.CompleteEvent(authority, id, a.ResultIndex)

	case "cancelEvent":
		var a CancelEventArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.CancelEvent(sender, id)

	case "claimEventReward":
		var a ClaimEventRewardArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.ClaimEventReward(sender, id)

	case "recharge":
		var a RechargeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.Recharge(sender, id)

	case "appeal":
		var a AppealArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.Appeal(sender, id)

	case "burnTrust":
		var a BurnTrustArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		sender, id, err := parseActor(a.Sender, a.EventID)
		if err != nil {
			return nil, err
		}
		return e.BurnTrust(sender, id, a.Amount)

	default:
		return nil, fmt.Errorf("client: unknown instruction %q", op.Instruction)
	}
}

func decodeArgs(op Operation, dst any) error {
	if err := json.Unmarshal(op.Args, dst); err != nil {
		return fmt.Errorf("client: decode %s args: %w", op.Instruction, err)
	}
	return nil
}

func parseActor(actor, eventID string) (domain.PublicKey, domain.EventID, error) {
	pk, err := domain.ParsePublicKey(actor)
	if err != nil {
		return domain.PublicKey{}, domain.EventID{}, err
	}
	id, err := domain.ParseEventID(eventID)
	if err != nil {
		return domain.PublicKey{}, domain.EventID{}, err
	}
	return pk, id, nil
}
