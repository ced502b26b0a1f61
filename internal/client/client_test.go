package client_test

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
	"github.com/predictory-labs/predictory/internal/registry"
)

func key(b byte) domain.PublicKey {
	var pk domain.PublicKey
	pk[0] = b
	return pk
}

func newEngine(now *int64) *engine.Engine {
	return engine.New(ledger.New(),
		engine.WithClock(func() time.Time { return time.Unix(*now, 0) }),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// Builders and Execute are inverses: a full market lifecycle driven purely
// through built operations lands in the same state direct engine calls would.
func TestBuiltOperationsExecute(t *testing.T) {
	now := int64(100)
	eng := newEngine(&now)
	reader := client.NewReader(eng.Ledger())

	admin, org, voter := key(1), key(2), key(3)
	id := domain.NewEventID()

	ops := []func() (client.Operation, error){
		func() (client.Operation, error) {
			return client.InitializeContractState(admin, 2, domain.UnitsPerToken, 0, 0)
		},
		func() (client.Operation, error) { return client.CreateUser(org, "organizer") },
		func() (client.Operation, error) { return client.TransferStake(org, 2*domain.UnitsPerToken) },
		func() (client.Operation, error) { return client.CreateUser(voter, "voter") },
		func() (client.Operation, error) { return client.TransferStake(voter, domain.UnitsPerToken) },
		func() (client.Operation, error) {
			return client.CreateEvent(org, id, engine.CreateEventArgs{
				Name: "finals", Description: "d", StartDate: 1_000, EndDate: 2_000,
			})
		},
		func() (client.Operation, error) { return client.CreateEventOption(org, id, 0, "yes") },
		func() (client.Operation, error) { return client.CreateEventOption(org, id, 1, "no") },
	}
	for _, build := range ops {
		op, err := build()
		require.NoError(t, err)
		_, err = client.Execute(eng, op)
		require.NoError(t, err)
	}

	now = 1_500
	op, err := client.Vote(voter, id, 1, domain.UnitsPerToken)
	require.NoError(t, err)
	rcp, err := client.Execute(eng, op)
	require.NoError(t, err)
	assert.Equal(t, "vote", rcp.Instruction)
	require.NotNil(t, rcp.EventID)
	assert.Equal(t, id, *rcp.EventID)

	ev, err := reader.Event(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.ParticipationCount)

	now = 2_100
	op, err = client.CompleteEvent(org, id, 1)
	require.NoError(t, err)
	_, err = client.Execute(eng, op)
	require.NoError(t, err)

	ev, err = reader.Event(id)
	require.NoError(t, err)
	require.NotNil(t, ev.Result)
	assert.Equal(t, uint8(1), *ev.Result)
}

func TestOperationDeclaresDerivedAccounts(t *testing.T) {
	sender := key(9)
	id := domain.NewEventID()

	op, err := client.Vote(sender, id, 3, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{
		registry.User(sender).String(),
		registry.Event(id).String(),
		registry.Option(id, 3).String(),
		registry.Participation(id, sender).String(),
	}, op.Accounts)
}

func TestExecuteRejectsUnknownInstruction(t *testing.T) {
	now := int64(0)
	eng := newEngine(&now)

	_, err := client.Execute(eng, client.Operation{Instruction: "mintUnlimitedTokens", Args: []byte("{}")})
	assert.Error(t, err)
}

func TestExecuteRejectsMalformedArgs(t *testing.T) {
	now := int64(0)
	eng := newEngine(&now)

	_, err := client.Execute(eng, client.Operation{Instruction: "vote", Args: []byte(`{"sender": 5}`)})
	assert.Error(t, err)

	_, err = client.Execute(eng, client.Operation{
		Instruction: "vote",
		Args:        []byte(`{"sender":"zzz","event_id":"nope","option_index":0,"amount":1}`),
	})
	assert.Error(t, err)
}

func TestReaderAccountDecodesByKind(t *testing.T) {
	now := int64(100)
	eng := newEngine(&now)
	reader := client.NewReader(eng.Ledger())

	owner := key(4)
	_, err := eng.InitializeContractState(key(1), 1, 1, 1, 1)
	require.NoError(t, err)
	_, err = eng.CreateUser(owner, "somebody")
	require.NoError(t, err)

	got, err := reader.Account(registry.User(owner))
	require.NoError(t, err)
	user, ok := got.(domain.User)
	require.True(t, ok)
	assert.Equal(t, owner, user.Owner)

	got, err = reader.Account(registry.State())
	require.NoError(t, err)
	_, ok = got.(domain.ContractState)
	assert.True(t, ok)

	_, err = reader.Account(registry.Event(domain.NewEventID()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReaderListsByType(t *testing.T) {
	now := int64(100)
	eng := newEngine(&now)
	reader := client.NewReader(eng.Ledger())

	_, err := eng.InitializeContractState(key(1), 2, 0, 0, 0)
	require.NoError(t, err)
	for b := byte(10); b < 13; b++ {
		_, err := eng.CreateUser(key(b), "u")
		require.NoError(t, err)
	}
	id := domain.NewEventID()
	_, err = eng.CreateEvent(key(10), id, engine.CreateEventArgs{StartDate: 1_000, EndDate: 2_000})
	require.NoError(t, err)

	users, err := reader.Users()
	require.NoError(t, err)
	assert.Len(t, users, 3)

	events, err := reader.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)

	metas, err := reader.EventMetas()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}
