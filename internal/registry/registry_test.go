package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictory-labs/predictory/internal/domain"
)

func TestLocateDeterministic(t *testing.T) {
	id := domain.NewEventID()
	assert.Equal(t, Event(id), Event(id))
	assert.Equal(t, State(), State())

	var owner domain.PublicKey
	owner[0] = 7
	assert.Equal(t, Participation(id, owner), Participation(id, owner))
}

func TestLocateDistinctAcrossNamespaces(t *testing.T) {
	id := domain.NewEventID()

	// Same key material, different namespaces.
	addrs := []Address{Event(id), EventMeta(id), Appeal(id)}
	seen := make(map[Address]bool)
	for _, a := range addrs {
		assert.False(t, seen[a], "namespace collision at %s", a)
		seen[a] = true
	}
}

func TestLocateDistinctAcrossKeys(t *testing.T) {
	a := domain.NewEventID()
	b := domain.NewEventID()
	require.NotEqual(t, a, b)

	assert.NotEqual(t, Event(a), Event(b))
	assert.NotEqual(t, Option(a, 0), Option(a, 1))
	assert.NotEqual(t, Option(a, 0), Option(b, 0))
}

// Length prefixing means shifting bytes between adjacent fields changes the
// derived address.
func TestLocateFieldBoundaries(t *testing.T) {
	one := Locate("x", []byte{1, 2}, []byte{3})
	two := Locate("x", []byte{1}, []byte{2, 3})
	assert.NotEqual(t, one, two)
}

func TestAddressTextRoundTrip(t *testing.T) {
	addr := State()
	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("not base58 0OIl")
	assert.Error(t, err)

	_, err = ParseAddress("abc")
	assert.Error(t, err)
}
