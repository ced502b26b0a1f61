// Package registry derives the storage address of every ledger entity from a
// namespace tag and its key fields. The derivation is the only way addresses
// come into existence: instructions never construct them by hand, which rules
// out address-confusion between entity types that share key material.
package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/predictory-labs/predictory/internal/domain"
)

// Address is a 32-byte storage location, rendered as base58 text.
type Address [32]byte

// String returns the base58 encoding of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// ParseAddress decodes a base58-encoded address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("registry: parse address %q: %w", s, err)
	}
	if len(raw) != len(Address{}) {
		return Address{}, fmt.Errorf("registry: parse address %q: got %d bytes, want 32", s, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Locate derives the address for a namespace and its key fields. The
// namespace and every field are length-prefixed before hashing so that
// distinct (namespace, fields) tuples can never collide by concatenation.
func Locate(namespace string, fields ...[]byte) Address {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for oversized keys; we pass none.
		panic(err)
	}

	var prefix [2]byte
	binary.LittleEndian.PutUint16(prefix[:], uint16(len(namespace)))
	h.Write(prefix[:])
	h.Write([]byte(namespace))

	for _, f := range fields {
		binary.LittleEndian.PutUint16(prefix[:], uint16(len(f)))
		h.Write(prefix[:])
		h.Write(f)
	}

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// State locates the contract-state singleton.
func State() Address {
	return Locate(domain.KindContractState.String())
}

// User locates the user record of a wallet.
func User(owner domain.PublicKey) Address {
	return Locate(domain.KindUser.String(), owner[:])
}

// Event locates an event record.
func Event(id domain.EventID) Address {
	seed := id.SeedBytes()
	return Locate(domain.KindEvent.String(), seed[:])
}

// EventMeta locates the metadata record paired with an event.
func EventMeta(id domain.EventID) Address {
	seed := id.SeedBytes()
	return Locate(domain.KindEventMeta.String(), seed[:])
}

// Option locates one outcome option of an event.
func Option(id domain.EventID, index uint8) Address {
	seed := id.SeedBytes()
	return Locate(domain.KindEventOption.String(), seed[:], []byte{index})
}

// Participation locates a user's commitment to an event.
func Participation(id domain.EventID, payer domain.PublicKey) Address {
	seed := id.SeedBytes()
	return Locate(domain.KindParticipation.String(), seed[:], payer[:])
}

// Appeal locates the dispute aggregate of an event.
func Appeal(id domain.EventID) Address {
	seed := id.SeedBytes()
	return Locate(domain.KindAppellation.String(), seed[:])
}
