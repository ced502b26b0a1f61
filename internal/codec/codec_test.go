package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictory-labs/predictory/internal/domain"
)

func TestEventRoundTrip(t *testing.T) {
	deadline := int64(1_500)
	winner := uint8(2)
	var authority domain.PublicKey
	authority[5] = 9

	ev := domain.Event{
		Version:               domain.EventVersion,
		ID:                    domain.NewEventID(),
		Authority:             authority,
		Stake:                 1_000_000_000,
		StartDate:             1_000,
		EndDate:               2_000,
		ParticipationDeadline: &deadline,
		OptionCount:           3,
		ParticipationCount:    7,
		TotalAmount:           5_500_000_000,
		TotalTrust:            35,
		Canceled:              false,
		Result:                &winner,
	}

	raw := EncodeEvent(ev)
	require.Len(t, raw, EventSize)

	got, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestEventRoundTripAbsentOptionals(t *testing.T) {
	ev := domain.Event{
		Version:   domain.EventVersion,
		ID:        domain.NewEventID(),
		StartDate: -100, // dates before the epoch survive the trip
		EndDate:   2_000,
	}

	raw := EncodeEvent(ev)
	require.Len(t, raw, EventSize)

	got, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Nil(t, got.ParticipationDeadline)
	assert.Nil(t, got.Result)
	assert.Equal(t, ev, got)
}

func TestUserRoundTrip(t *testing.T) {
	name, err := domain.Name32("alice")
	require.NoError(t, err)

	u := domain.User{
		Version:     domain.UserVersion,
		Stake:       42,
		LockedStake: 7,
		TrustLevel:  domain.InitialTrust,
		Name:        name,
	}
	u.Owner[0] = 1

	raw := EncodeUser(u)
	require.Len(t, raw, UserSize)

	got, err := DecodeUser(raw)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Equal(t, "alice", domain.TrimText(got.Name[:]))
}

func TestMetaAndOptionRoundTrip(t *testing.T) {
	id := domain.NewEventID()
	name, _ := domain.Name32("finals")
	description, _ := domain.Description256("who wins the finals")

	meta := domain.EventMeta{
		Version:     domain.EventMetaVersion,
		EventID:     id,
		IsPrivate:   true,
		Name:        name,
		Description: description,
	}
	rawMeta := EncodeEventMeta(meta)
	require.Len(t, rawMeta, EventMetaSize)
	gotMeta, err := DecodeEventMeta(rawMeta)
	require.NoError(t, err)
	assert.Equal(t, meta, gotMeta)

	opt := domain.EventOption{
		Version:      domain.EventOptionVersion,
		EventID:      id,
		Index:        4,
		Description:  description,
		Votes:        12,
		VaultBalance: 9_000,
	}
	rawOpt := EncodeEventOption(opt)
	require.Len(t, rawOpt, EventOptionSize)
	gotOpt, err := DecodeEventOption(rawOpt)
	require.NoError(t, err)
	assert.Equal(t, opt, gotOpt)
}

func TestParticipationAndAppealRoundTrip(t *testing.T) {
	id := domain.NewEventID()

	p := domain.Participation{
		Version:         domain.ParticipationVersion,
		EventID:         id,
		Option:          1,
		DepositedAmount: 2_000_000_000,
		IsClaimed:       true,
	}
	p.Payer[3] = 8

	rawP := EncodeParticipation(p)
	require.Len(t, rawP, ParticipationSize)
	gotP, err := DecodeParticipation(rawP)
	require.NoError(t, err)
	assert.Equal(t, p, gotP)

	a := domain.Appellation{
		Version:            domain.AppellationVersion,
		EventID:            id,
		DisagreeCount:      3,
		DisagreeTrustLevel: 15,
		DisagreeVolume:     4_000_000_000,
	}
	rawA := EncodeAppellation(a)
	require.Len(t, rawA, AppellationSize)
	gotA, err := DecodeAppellation(rawA)
	require.NoError(t, err)
	assert.Equal(t, a, gotA)
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	raw := EncodeContractState(domain.ContractState{Version: 1})

	_, err := DecodeContractState(raw[:len(raw)-1])
	assert.Error(t, err)

	_, err = DecodeContractState(append(raw, 0))
	assert.Error(t, err)

	_, err = DecodeEvent(nil)
	assert.Error(t, err)
}

// The stored form of the event id is its little-endian 128-bit value, not the
// big-endian UUID byte order.
func TestEventIDStoredLittleEndian(t *testing.T) {
	id := domain.NewEventID()
	raw := EncodeEvent(domain.Event{ID: id})

	seed := id.SeedBytes()
	assert.Equal(t, seed[:], raw[1:17])
}
