package engine

import (
	"errors"
	"math/bits"
	"time"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
	"github.com/predictory-labs/predictory/internal/status"
)

// appealDeadline is the last second at which appeals and trust burns are
// accepted. Reward claims open strictly after it.
func appealDeadline(ev domain.Event) int64 {
	return ev.EndDate + int64(CompletionGrace/time.Second) + int64(AppealWindow/time.Second)
}

// mulDiv computes a*b/c without intermediate overflow. c must be non-zero and
// the callers guarantee a <= c, so the quotient always fits.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}

// Vote commits amount of the sender's unlocked stake to one option of an
// active event. A user holds at most one participation per event.
func (e *Engine) Vote(sender domain.PublicKey, id domain.EventID, optionIndex uint8, amount uint64) (*Receipt, error) {
	return e.run("vote", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if phaseOf(ev, now) != status.Active {
			return domain.ErrInactiveEvent
		}
		if optionIndex >= ev.OptionCount {
			return domain.ErrInvalidOptionIndex
		}
		if amount == 0 {
			return domain.ErrInvalidAmount
		}
		user, err := getUser(tx, sender)
		if err != nil {
			return err
		}
		if user.Stake < amount {
			return domain.ErrInsufficientStake
		}
		opt, err := getOption(tx, id, optionIndex)
		if err != nil {
			return err
		}

		participation := domain.Participation{
			Version:         domain.ParticipationVersion,
			EventID:         id,
			Payer:           sender,
			Option:          optionIndex,
			DepositedAmount: amount,
		}
		partAddr := registry.Participation(id, sender)
		if err := tx.Create(partAddr, domain.KindParticipation, codec.EncodeParticipation(participation)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrAlreadyParticipant
			}
			return err
		}

		user.Stake -= amount
		user.LockedStake += amount
		if err := putUser(tx, user); err != nil {
			return err
		}

		opt.Votes++
		opt.VaultBalance += amount
		if err := putOption(tx, opt); err != nil {
			return err
		}

		ev.ParticipationCount++
		ev.TotalAmount += amount
		ev.TotalTrust += user.TrustLevel
		if err := putEvent(tx, ev); err != nil {
			return err
		}

		rcp.touch(registry.User(sender), registry.Event(id), registry.Option(id, optionIndex), partAddr)
		return nil
	})
}

// ClaimEventReward pays a winning participant their proportional share of the
// settled pool. The first claim on an event additionally performs the one-time
// settlement split: the organizer's escrow plus reward, and the protocol fee.
// Claims open only once the appeal window has closed.
func (e *Engine) ClaimEventReward(sender domain.PublicKey, id domain.EventID) (*Receipt, error) {
	return e.run("claimEventReward", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Result == nil {
			return domain.ErrEventNotEnded
		}
		participation, err := getParticipation(tx, id, sender)
		if err != nil {
			return err
		}
		if participation.IsClaimed {
			return domain.ErrAlreadyClaimed
		}
		if participation.Appealed {
			return domain.ErrAlreadyAppealed
		}
		if participation.Option != *ev.Result {
			return domain.ErrLosingOption
		}
		if now <= appealDeadline(ev) {
			return domain.ErrAppealWindowOpen
		}

		state, err := getState(tx)
		if err != nil {
			return err
		}
		claimant, err := getUser(tx, sender)
		if err != nil {
			return err
		}

		adminReward := ev.TotalAmount * state.OrgReward / 100
		availableForWinners := ev.TotalAmount
		skimmed := ev.TotalAmount >= state.PlatformFee+adminReward
		if skimmed {
			availableForWinners = ev.TotalAmount - state.PlatformFee - adminReward
		}

		// One-time settlement split, gated by the escrow draining to zero.
		if ev.Stake != 0 {
			payout := ev.Stake
			if skimmed {
				payout += adminReward
				rcp.credit(state.Authority, state.PlatformFee)
			}
			if ev.Authority == sender {
				claimant.LockedStake -= ev.Stake
				claimant.Stake += payout
			} else {
				organizer, err := getUser(tx, ev.Authority)
				if err != nil {
					return err
				}
				organizer.LockedStake -= ev.Stake
				organizer.Stake += payout
				if err := putUser(tx, organizer); err != nil {
					return err
				}
				rcp.touch(registry.User(ev.Authority))
			}
			ev.Stake = 0
			if err := putEvent(tx, ev); err != nil {
				return err
			}
			rcp.touch(registry.Event(id))
		}

		winning, err := getOption(tx, id, *ev.Result)
		if err != nil {
			return err
		}
		claim := mulDiv(participation.DepositedAmount, availableForWinners, winning.VaultBalance)

		claimant.Stake += claim
		claimant.LockedStake -= participation.DepositedAmount
		if state.Multiplier > 0 {
			claimant.TrustLevel += mulDiv(claim%domain.UnitsPerToken, state.Multiplier, domain.UnitsPerToken) +
				claim/domain.UnitsPerToken*state.Multiplier
		}
		if err := putUser(tx, claimant); err != nil {
			return err
		}

		participation.IsClaimed = true
		if err := putParticipation(tx, participation); err != nil {
			return err
		}

		rcp.touch(registry.User(sender), registry.Participation(id, sender))
		return nil
	})
}

// Recharge refunds a participant's full deposit after cancellation. It shares
// the isClaimed guard with ClaimEventReward, so a deposit can never be both
// refunded and paid out.
func (e *Engine) Recharge(sender domain.PublicKey, id domain.EventID) (*Receipt, error) {
	return e.run("recharge", &id, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if !ev.Canceled {
			return domain.ErrEventNotCanceled
		}
		participation, err := getParticipation(tx, id, sender)
		if err != nil {
			return err
		}
		if participation.IsClaimed {
			return domain.ErrAlreadyClaimed
		}
		user, err := getUser(tx, sender)
		if err != nil {
			return err
		}

		user.Stake += participation.DepositedAmount
		user.LockedStake -= participation.DepositedAmount
		if err := putUser(tx, user); err != nil {
			return err
		}

		participation.IsClaimed = true
		if err := putParticipation(tx, participation); err != nil {
			return err
		}

		rcp.touch(registry.User(sender), registry.Participation(id, sender))
		return nil
	})
}

// Appeal records a losing participant's disagreement with the posted result.
// It only aggregates the dispute signal for off-engine adjudication; it never
// reverses settlement.
func (e *Engine) Appeal(sender domain.PublicKey, id domain.EventID) (*Receipt, error) {
	return e.run("appeal", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Result == nil {
			return domain.ErrEventNotEnded
		}
		participation, err := getParticipation(tx, id, sender)
		if err != nil {
			return err
		}
		if participation.IsClaimed {
			return domain.ErrAlreadyClaimed
		}
		if participation.Appealed {
			return domain.ErrAlreadyAppealed
		}
		if participation.Option == *ev.Result {
			return domain.ErrWinningOption
		}
		if now > appealDeadline(ev) {
			return domain.ErrAppealWindowClosed
		}
		user, err := getUser(tx, sender)
		if err != nil {
			return err
		}

		appealAddr := registry.Appeal(id)
		appellation := domain.Appellation{Version: domain.AppellationVersion, EventID: id}
		rec, err := tx.Get(appealAddr)
		found := err == nil
		if found {
			if appellation, err = codec.DecodeAppellation(rec.Data); err != nil {
				return err
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		appellation.DisagreeCount++
		appellation.DisagreeTrustLevel += user.TrustLevel
		appellation.DisagreeVolume += participation.DepositedAmount

		if found {
			err = tx.Put(appealAddr, domain.KindAppellation, codec.EncodeAppellation(appellation))
		} else {
			err = tx.Create(appealAddr, domain.KindAppellation, codec.EncodeAppellation(appellation))
		}
		if err != nil {
			return err
		}

		participation.Appealed = true
		if err := putParticipation(tx, participation); err != nil {
			return err
		}

		rcp.touch(appealAddr, registry.Participation(id, sender))
		return nil
	})
}

// BurnTrust lets a losing participant convert trust into a partial refund of
// their locked deposit instead of appealing. The exchange rate is the
// contract multiplier; the reclaim is capped at the remaining deposit. A
// fully drained deposit closes the participation.
func (e *Engine) BurnTrust(sender domain.PublicKey, id domain.EventID, trustAmount uint64) (*Receipt, error) {
	return e.run("burnTrust", &id, func(tx *ledger.Txn, now int64, rcp *Receipt) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		if ev.Result == nil {
			return domain.ErrEventNotEnded
		}
		participation, err := getParticipation(tx, id, sender)
		if err != nil {
			return err
		}
		if participation.IsClaimed {
			return domain.ErrAlreadyClaimed
		}
		if participation.Appealed {
			return domain.ErrAlreadyAppealed
		}
		if participation.Option == *ev.Result {
			return domain.ErrWinningOption
		}
		if now > appealDeadline(ev) {
			return domain.ErrAppealWindowClosed
		}

		state, err := getState(tx)
		if err != nil {
			return err
		}
		if trustAmount == 0 || state.Multiplier == 0 {
			return domain.ErrInvalidAmount
		}
		user, err := getUser(tx, sender)
		if err != nil {
			return err
		}

		reclaim := trustAmount / state.Multiplier * domain.UnitsPerToken
		if reclaim > participation.DepositedAmount {
			reclaim = participation.DepositedAmount
		}
		burned := mulDiv(reclaim%domain.UnitsPerToken, state.Multiplier, domain.UnitsPerToken) +
			reclaim/domain.UnitsPerToken*state.Multiplier
		if reclaim == 0 || burned == 0 {
			return domain.ErrInvalidAmount
		}
		if user.TrustLevel < burned {
			return domain.ErrInsufficientTrust
		}

		user.Stake += reclaim
		user.LockedStake -= reclaim
		user.TrustLevel -= burned
		if err := putUser(tx, user); err != nil {
			return err
		}

		participation.DepositedAmount -= reclaim
		if participation.DepositedAmount == 0 {
			participation.IsClaimed = true
		}
		if err := putParticipation(tx, participation); err != nil {
			return err
		}

		rcp.touch(registry.User(sender), registry.Participation(id, sender))
		return nil
	})
}
