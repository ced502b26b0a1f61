package engine_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
	"github.com/predictory-labs/predictory/internal/ledger"
)

const (
	multiplier  = uint64(2)
	eventPrice  = domain.UnitsPerToken     // 1 token escrow
	platformFee = uint64(300_000_000)      // 0.3 token
	orgReward   = uint64(5)                // percent of the pool
	deposit     = 2 * domain.UnitsPerToken // default vote size
)

var (
	admin     = key(1)
	organizer = key(2)
	alice     = key(3)
	bob       = key(4)
	carol     = key(5)
	dave      = key(6)
)

func key(b byte) domain.PublicKey {
	var pk domain.PublicKey
	pk[0] = b
	return pk
}

// fixture drives the engine with a controllable clock.
type fixture struct {
	t      *testing.T
	eng    *engine.Engine
	reader *client.Reader
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, now: 100}
	l := ledger.New()
	f.eng = engine.New(l,
		engine.WithClock(func() time.Time { return time.Unix(f.now, 0) }),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	f.reader = client.NewReader(l)

	_, err := f.eng.InitializeContractState(admin, multiplier, eventPrice, platformFee, orgReward)
	require.NoError(t, err)
	return f
}

func (f *fixture) fund(owner domain.PublicKey, amount uint64) {
	f.t.Helper()
	_, err := f.eng.CreateUser(owner, "user")
	require.NoError(f.t, err)
	if amount > 0 {
		_, err = f.eng.TransferStake(owner, amount)
		require.NoError(f.t, err)
	}
}

// market creates an event with two options, running from t=1000 to t=2000.
func (f *fixture) market() domain.EventID {
	f.t.Helper()
	id := domain.NewEventID()
	_, err := f.eng.CreateEvent(organizer, id, engine.CreateEventArgs{
		Name:        "finals",
		Description: "who takes the finals",
		StartDate:   1_000,
		EndDate:     2_000,
	})
	require.NoError(f.t, err)
	for i := uint8(0); i < 2; i++ {
		_, err := f.eng.CreateEventOption(organizer, id, i, "outcome")
		require.NoError(f.t, err)
	}
	return id
}

func (f *fixture) user(owner domain.PublicKey) domain.User {
	f.t.Helper()
	u, err := f.reader.User(owner)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) event(id domain.EventID) domain.Event {
	f.t.Helper()
	ev, err := f.reader.Event(id)
	require.NoError(f.t, err)
	return ev
}

// settledMarket runs the standard scenario: alice and bob back option 0 with
// 2 tokens each, carol and dave back option 1 with 1 token each, option 0
// wins, and the clock moves past the appeal window.
func (f *fixture) settledMarket() domain.EventID {
	f.t.Helper()
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, 3*domain.UnitsPerToken)
	f.fund(bob, 3*domain.UnitsPerToken)
	f.fund(carol, domain.UnitsPerToken)
	f.fund(dave, domain.UnitsPerToken)

	id := f.market()
	f.now = 1_500
	for _, vote := range []struct {
		who    domain.PublicKey
		option uint8
		amount uint64
	}{
		{alice, 0, deposit},
		{bob, 0, deposit},
		{carol, 1, domain.UnitsPerToken},
		{dave, 1, domain.UnitsPerToken},
	} {
		_, err := f.eng.Vote(vote.who, id, vote.option, vote.amount)
		require.NoError(f.t, err)
	}

	f.now = 2_100
	_, err := f.eng.CompleteEvent(organizer, id, 0)
	require.NoError(f.t, err)

	f.now = 2_000 + 2*86_400 + 1 // past completion grace + appeal window
	return id
}

func TestInitializeContractStateOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.InitializeContractState(admin, 1, 1, 1, 1)
	assert.ErrorIs(t, err, domain.ErrStateInitialized)

	state, err := f.reader.ContractState()
	require.NoError(t, err)
	assert.Equal(t, admin, state.Authority)
	assert.Equal(t, multiplier, state.Multiplier)
}

func TestContractStateAuthorityOnlyWriter(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.SetEventPrice(alice, 5)
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)

	_, err = f.eng.SetContractAuthority(admin, alice)
	require.NoError(t, err)

	// The old authority lost its powers with the handover.
	_, err = f.eng.SetContractMultiplier(admin, 9)
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)

	_, err = f.eng.SetContractMultiplier(alice, 9)
	require.NoError(t, err)
	state, err := f.reader.ContractState()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), state.Multiplier)
}

func TestCreateUserOncePerOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 0)

	u := f.user(alice)
	assert.Equal(t, uint64(0), u.Stake)
	assert.Equal(t, domain.InitialTrust, u.TrustLevel)

	_, err := f.eng.CreateUser(alice, "again")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestStakeTransferAndWithdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 10)

	part := uint64(4)
	rcp, err := f.eng.WithdrawStake(alice, &part)
	require.NoError(t, err)
	require.Len(t, rcp.Credits, 1)
	assert.Equal(t, engine.Credit{To: alice, Amount: 4}, rcp.Credits[0])
	assert.Equal(t, uint64(6), f.user(alice).Stake)

	// nil amount drains the unlocked remainder
	rcp, err = f.eng.WithdrawStake(alice, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), rcp.Credits[0].Amount)
	assert.Equal(t, uint64(0), f.user(alice).Stake)

	_, err = f.eng.WithdrawStake(alice, &part)
	assert.ErrorIs(t, err, domain.ErrInsufficientStake)
}

func TestWithdrawNeverTouchesLockedStake(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.market()

	u := f.user(organizer)
	assert.Equal(t, domain.UnitsPerToken, u.Stake)
	assert.Equal(t, eventPrice, u.LockedStake)

	over := u.Stake + 1
	_, err := f.eng.WithdrawStake(organizer, &over)
	assert.ErrorIs(t, err, domain.ErrInsufficientStake)
}

func TestCreateEventEscrowsCreationFee(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)

	id := f.market()
	ev := f.event(id)
	assert.Equal(t, eventPrice, ev.Stake)
	assert.Equal(t, uint8(2), ev.OptionCount)
	assert.False(t, ev.Canceled)
	assert.Nil(t, ev.Result)

	meta, err := f.reader.EventMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "finals", domain.TrimText(meta.Name[:]))
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)

	args := engine.CreateEventArgs{StartDate: 1_000, EndDate: 2_000}

	var notV4 domain.EventID // all-zero id has version 0
	_, err := f.eng.CreateEvent(organizer, notV4, args)
	assert.ErrorIs(t, err, domain.ErrInvalidEventID)

	_, err = f.eng.CreateEvent(organizer, domain.NewEventID(), engine.CreateEventArgs{StartDate: 2_000, EndDate: 1_000})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	outside := int64(2_500)
	_, err = f.eng.CreateEvent(organizer, domain.NewEventID(), engine.CreateEventArgs{
		StartDate: 1_000, EndDate: 2_000, ParticipationDeadline: &outside,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	id := f.market()
	_, err = f.eng.CreateEvent(organizer, id, args)
	assert.ErrorIs(t, err, domain.ErrEventExists)

	f.market() // consumes the remaining creation fee
	_, err = f.eng.CreateEvent(organizer, domain.NewEventID(), args)
	assert.ErrorIs(t, err, domain.ErrInsufficientStake)
}

func TestOptionIndicesAreSequential(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := domain.NewEventID()
	_, err := f.eng.CreateEvent(organizer, id, engine.CreateEventArgs{StartDate: 1_000, EndDate: 2_000})
	require.NoError(t, err)

	_, err = f.eng.CreateEventOption(organizer, id, 1, "skipping zero")
	assert.ErrorIs(t, err, domain.ErrNonSequentialIndex)

	_, err = f.eng.CreateEventOption(organizer, id, 0, "first")
	require.NoError(t, err)

	_, err = f.eng.CreateEventOption(organizer, id, 2, "gap")
	assert.ErrorIs(t, err, domain.ErrNonSequentialIndex)

	_, err = f.eng.CreateEventOption(alice, id, 1, "not the organizer")
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)
}

func TestOptionCountCapped(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := domain.NewEventID()
	_, err := f.eng.CreateEvent(organizer, id, engine.CreateEventArgs{StartDate: 1_000, EndDate: 2_000})
	require.NoError(t, err)

	for i := 0; i < domain.MaxOptionCount; i++ {
		_, err := f.eng.CreateEventOption(organizer, id, uint8(i), "outcome")
		require.NoError(t, err)
	}
	_, err = f.eng.CreateEventOption(organizer, id, domain.MaxOptionCount, "one too many")
	assert.ErrorIs(t, err, domain.ErrTooManyOptions)
}

func TestUpdatesLockedAfterStart(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()

	_, err := f.eng.UpdateEventName(organizer, id, "renamed")
	require.NoError(t, err)
	_, err = f.eng.UpdateEventEndDate(organizer, id, 3_000)
	require.NoError(t, err)
	_, err = f.eng.UpdateEventEndDate(organizer, id, 500)
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	_, err = f.eng.UpdateEventName(alice, id, "hijack")
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)

	f.now = 1_200 // event running
	_, err = f.eng.UpdateEventName(organizer, id, "too late")
	assert.ErrorIs(t, err, domain.ErrEventAlreadyStarted)
	_, err = f.eng.UpdateEventDescription(organizer, id, "too late")
	assert.ErrorIs(t, err, domain.ErrEventAlreadyStarted)

	// Options stay editable while active until someone participates.
	_, err = f.eng.UpdateEventOption(organizer, id, 0, "still editable")
	require.NoError(t, err)

	f.fund(alice, deposit)
	_, err = f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)
	_, err = f.eng.UpdateEventOption(organizer, id, 0, "frozen now")
	assert.ErrorIs(t, err, domain.ErrEventAlreadyStarted)
}

func TestVoteBalanceMovements(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, 3*domain.UnitsPerToken)
	id := f.market()

	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	u := f.user(alice)
	assert.Equal(t, domain.UnitsPerToken, u.Stake)
	assert.Equal(t, deposit, u.LockedStake)

	ev := f.event(id)
	assert.Equal(t, uint64(1), ev.ParticipationCount)
	assert.Equal(t, deposit, ev.TotalAmount)
	assert.Equal(t, domain.InitialTrust, ev.TotalTrust)

	opt, err := f.reader.Option(id, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), opt.Votes)
	assert.Equal(t, deposit, opt.VaultBalance)

	p, err := f.reader.Participation(id, alice)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), p.Option)
	assert.False(t, p.IsClaimed)
}

func TestVoteGuards(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, 3*domain.UnitsPerToken)
	id := f.market()

	// not started yet
	_, err := f.eng.Vote(alice, id, 0, deposit)
	assert.ErrorIs(t, err, domain.ErrInactiveEvent)

	f.now = 1_500
	_, err = f.eng.Vote(alice, id, 5, deposit)
	assert.ErrorIs(t, err, domain.ErrInvalidOptionIndex)
	_, err = f.eng.Vote(alice, id, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.eng.Vote(alice, id, 0, 10*domain.UnitsPerToken)
	assert.ErrorIs(t, err, domain.ErrInsufficientStake)

	_, err = f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	// one commitment per user per event, even on the other option
	_, err = f.eng.Vote(alice, id, 1, domain.UnitsPerToken)
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipant)

	f.now = 2_500 // after end
	f.fund(bob, deposit)
	_, err = f.eng.Vote(bob, id, 0, deposit)
	assert.ErrorIs(t, err, domain.ErrInactiveEvent)
}

func TestVoteRespectsParticipationDeadline(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, deposit)

	deadline := int64(1_400)
	id := domain.NewEventID()
	_, err := f.eng.CreateEvent(organizer, id, engine.CreateEventArgs{
		StartDate: 1_000, EndDate: 2_000, ParticipationDeadline: &deadline,
	})
	require.NoError(t, err)
	_, err = f.eng.CreateEventOption(organizer, id, 0, "outcome")
	require.NoError(t, err)

	f.now = 1_600
	_, err = f.eng.Vote(alice, id, 0, deposit)
	assert.ErrorIs(t, err, domain.ErrInactiveEvent)
}

func TestCompleteEventGuards(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()

	f.now = 1_500
	_, err := f.eng.CompleteEvent(organizer, id, 0)
	assert.ErrorIs(t, err, domain.ErrEventNotOver)

	f.now = 2_100
	_, err = f.eng.CompleteEvent(alice, id, 0)
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)
	_, err = f.eng.CompleteEvent(organizer, id, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidOptionIndex)

	_, err = f.eng.CompleteEvent(organizer, id, 1)
	require.NoError(t, err)

	// result is write-once
	_, err = f.eng.CompleteEvent(organizer, id, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)

	ev := f.event(id)
	require.NotNil(t, ev.Result)
	assert.Equal(t, uint8(1), *ev.Result)
}

func TestSettlementSplitAndProportionalPayout(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()

	total := 6 * domain.UnitsPerToken
	adminReward := total * orgReward / 100
	available := total - adminReward - platformFee

	// First claim triggers the one-time split.
	rcp, err := f.eng.ClaimEventReward(alice, id)
	require.NoError(t, err)
	require.Len(t, rcp.Credits, 1)
	assert.Equal(t, engine.Credit{To: admin, Amount: platformFee}, rcp.Credits[0])

	org := f.user(organizer)
	assert.Equal(t, uint64(0), org.LockedStake)
	assert.Equal(t, domain.UnitsPerToken+eventPrice+adminReward, org.Stake)
	assert.Equal(t, uint64(0), f.event(id).Stake, "escrow drained exactly once")

	// alice deposited 2 of the 4-token winning vault: half the pool.
	expected := available / 2
	a := f.user(alice)
	assert.Equal(t, domain.UnitsPerToken+expected, a.Stake)
	assert.Equal(t, uint64(0), a.LockedStake)
	assert.Equal(t, domain.InitialTrust+expected*multiplier/domain.UnitsPerToken, a.TrustLevel)

	// Second claimant gets the same payout but no split.
	rcp, err = f.eng.ClaimEventReward(bob, id)
	require.NoError(t, err)
	assert.Empty(t, rcp.Credits)
	assert.Equal(t, domain.UnitsPerToken+expected, f.user(bob).Stake)

	// Winners split exactly the available pool.
	assert.Equal(t, available, expected*2)
}

func TestClaimGuards(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()

	// losing participation cannot claim
	_, err := f.eng.ClaimEventReward(carol, id)
	assert.ErrorIs(t, err, domain.ErrLosingOption)

	// double claim is rejected by the stored flag
	_, err = f.eng.ClaimEventReward(alice, id)
	require.NoError(t, err)
	_, err = f.eng.ClaimEventReward(alice, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// no participation at all
	f.fund(key(9), 0)
	_, err = f.eng.ClaimEventReward(key(9), id)
	assert.ErrorIs(t, err, domain.ErrNoParticipation)
}

func TestClaimWaitsForAppealWindow(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()

	f.now = 2_000 + 86_400 // inside the appeal window
	_, err := f.eng.ClaimEventReward(alice, id)
	assert.ErrorIs(t, err, domain.ErrAppealWindowOpen)

	f.now = 2_000 + 2*86_400 + 1
	_, err = f.eng.ClaimEventReward(alice, id)
	require.NoError(t, err)
}

func TestClaimBeforeResult(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, deposit)
	id := f.market()
	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	f.now = 2_100
	_, err = f.eng.ClaimEventReward(alice, id)
	assert.ErrorIs(t, err, domain.ErrEventNotEnded)
}

func TestDustPoolSkipsSkim(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, 100)
	id := f.market()

	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, 100) // pool smaller than the fees
	require.NoError(t, err)
	f.now = 2_100
	_, err = f.eng.CompleteEvent(organizer, id, 0)
	require.NoError(t, err)
	f.now = 2_000 + 2*86_400 + 1

	rcp, err := f.eng.ClaimEventReward(alice, id)
	require.NoError(t, err)
	assert.Empty(t, rcp.Credits, "no platform fee on a dust pool")

	// organizer recovers the escrow but earns no reward
	org := f.user(organizer)
	assert.Equal(t, 2*domain.UnitsPerToken, org.Stake)
	assert.Equal(t, uint64(0), org.LockedStake)

	// sole winner takes the whole pool back
	assert.Equal(t, uint64(100), f.user(alice).Stake)
}

func TestCancelBeforeStartRefundsEscrow(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()

	rcp, err := f.eng.CancelEvent(organizer, id)
	require.NoError(t, err)
	assert.Empty(t, rcp.Credits)

	org := f.user(organizer)
	assert.Equal(t, 2*domain.UnitsPerToken, org.Stake)
	assert.Equal(t, uint64(0), org.LockedStake)

	ev := f.event(id)
	assert.True(t, ev.Canceled)
	assert.Equal(t, uint64(0), ev.Stake)

	_, err = f.eng.CancelEvent(organizer, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyCanceled)
}

func TestCancelAfterStartForfeitsEscrow(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()

	f.now = 1_500
	rcp, err := f.eng.CancelEvent(organizer, id)
	require.NoError(t, err)
	require.Len(t, rcp.Credits, 1)
	assert.Equal(t, engine.Credit{To: admin, Amount: eventPrice}, rcp.Credits[0])

	org := f.user(organizer)
	assert.Equal(t, domain.UnitsPerToken, org.Stake, "creation fee is gone for good")
	assert.Equal(t, uint64(0), org.LockedStake)
}

func TestParticipantCancelAfterGrace(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, deposit)
	id := f.market()
	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	// strangers can never cancel
	f.fund(bob, 0)
	_, err = f.eng.CancelEvent(bob, id)
	assert.ErrorIs(t, err, domain.ErrAuthorityMismatch)

	// participants must wait out the organizer's grace
	f.now = 2_100
	_, err = f.eng.CancelEvent(alice, id)
	assert.ErrorIs(t, err, domain.ErrCompletionPending)

	f.now = 2_000 + 86_400 + 1
	_, err = f.eng.CancelEvent(alice, id)
	require.NoError(t, err)
	assert.True(t, f.event(id).Canceled)
}

func TestCancelBlockedOnceResultPosted(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()
	f.now = 2_100
	_, err := f.eng.CompleteEvent(organizer, id, 0)
	require.NoError(t, err)

	_, err = f.eng.CancelEvent(organizer, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

func TestRechargeRefundsCanceledDeposit(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, deposit)
	id := f.market()
	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	_, err = f.eng.Recharge(alice, id)
	assert.ErrorIs(t, err, domain.ErrEventNotCanceled)

	_, err = f.eng.CancelEvent(organizer, id)
	require.NoError(t, err)

	_, err = f.eng.Recharge(alice, id)
	require.NoError(t, err)
	u := f.user(alice)
	assert.Equal(t, deposit, u.Stake)
	assert.Equal(t, uint64(0), u.LockedStake)

	_, err = f.eng.Recharge(alice, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestAppealRecordsDisputeSignal(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()

	f.now = 2_000 + 86_400 // inside the window
	_, err := f.eng.Appeal(carol, id)
	require.NoError(t, err)
	_, err = f.eng.Appeal(dave, id)
	require.NoError(t, err)

	a, err := f.reader.Appeal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), a.DisagreeCount)
	assert.Equal(t, 2*domain.InitialTrust, a.DisagreeTrustLevel)
	assert.Equal(t, 2*domain.UnitsPerToken, a.DisagreeVolume)

	p, err := f.reader.Participation(id, carol)
	require.NoError(t, err)
	assert.True(t, p.Appealed)

	// once per participant
	_, err = f.eng.Appeal(carol, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyAppealed)

	// winners have nothing to dispute
	_, err = f.eng.Appeal(alice, id)
	assert.ErrorIs(t, err, domain.ErrWinningOption)

	// appealed entries are shut out of claims permanently
	f.now = 2_000 + 2*86_400 + 1
	_, err = f.eng.ClaimEventReward(carol, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyAppealed)
}

func TestAppealWindowCloses(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket() // clock already past the window

	_, err := f.eng.Appeal(carol, id)
	assert.ErrorIs(t, err, domain.ErrAppealWindowClosed)
}

func TestBurnTrustReclaimsDeposit(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()
	f.now = 2_000 + 86_400 // inside the window

	// 2 trust units buy back 1 token at multiplier 2; carol deposited exactly 1.
	_, err := f.eng.BurnTrust(carol, id, 2)
	require.NoError(t, err)

	u := f.user(carol)
	assert.Equal(t, domain.UnitsPerToken, u.Stake)
	assert.Equal(t, uint64(0), u.LockedStake)
	assert.Equal(t, domain.InitialTrust-2, u.TrustLevel)

	p, err := f.reader.Participation(id, carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.DepositedAmount)
	assert.True(t, p.IsClaimed, "drained deposit closes the participation")

	_, err = f.eng.BurnTrust(carol, id, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestBurnTrustGuards(t *testing.T) {
	f := newFixture(t)
	id := f.settledMarket()
	f.now = 2_000 + 86_400

	_, err := f.eng.BurnTrust(alice, id, 2)
	assert.ErrorIs(t, err, domain.ErrWinningOption)

	_, err = f.eng.BurnTrust(carol, id, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// 1 trust unit is below one whole token at multiplier 2
	_, err = f.eng.BurnTrust(carol, id, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.eng.Appeal(dave, id)
	require.NoError(t, err)
	_, err = f.eng.BurnTrust(dave, id, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyAppealed)

	f.now = 2_000 + 2*86_400 + 1
	_, err = f.eng.BurnTrust(carol, id, 2)
	assert.ErrorIs(t, err, domain.ErrAppealWindowClosed)
}

// On the cancellation path every unit that entered the system is accounted
// for exactly once: final stakes plus external credits equal the deposits.
func TestConservationAcrossCancellation(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, 3*domain.UnitsPerToken)
	f.fund(bob, 2*domain.UnitsPerToken)
	deposited := (2 + 3 + 2) * domain.UnitsPerToken

	id := f.market()
	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)
	_, err = f.eng.Vote(bob, id, 1, domain.UnitsPerToken)
	require.NoError(t, err)

	var credits uint64
	track := func(rcp *engine.Receipt, err error) {
		require.NoError(t, err)
		for _, c := range rcp.Credits {
			credits += c.Amount
		}
	}
	track(f.eng.CancelEvent(organizer, id)) // escrow forfeited after start
	track(f.eng.Recharge(alice, id))
	track(f.eng.Recharge(bob, id))

	users, err := f.reader.Users()
	require.NoError(t, err)
	var held uint64
	for _, u := range users {
		held += u.Stake + u.LockedStake
		assert.Equal(t, uint64(0), u.LockedStake)
	}
	assert.Equal(t, deposited, held+credits)
}

func TestAbortLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	f.fund(alice, deposit)
	id := f.market()
	f.now = 1_500
	_, err := f.eng.Vote(alice, id, 0, deposit)
	require.NoError(t, err)

	before := f.event(id)

	// aborts at the last precondition (already participant) after the event
	// and option records were already read
	_, err = f.eng.Vote(alice, id, 1, domain.UnitsPerToken)
	require.ErrorIs(t, err, domain.ErrAlreadyParticipant)

	assert.Equal(t, before, f.event(id))
	assert.Equal(t, domain.UnitsPerToken, f.user(alice).Stake)
}

func TestErrorKinds(t *testing.T) {
	f := newFixture(t)
	f.fund(organizer, 2*domain.UnitsPerToken)
	id := f.market()

	_, err := f.eng.CompleteEvent(alice, id, 0)
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	f.now = 1_500
	_, err = f.eng.UpdateEventName(organizer, id, "late")
	assert.Equal(t, domain.KindTiming, domain.KindOf(err))

	_, err = f.eng.CreateUser(organizer, "again")
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
}
