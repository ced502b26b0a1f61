package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// PublicKey identifies a wallet on the underlying ledger. Keys are opaque
// 32-byte values rendered as base58 text on every external surface.
type PublicKey [32]byte

// String returns the base58 encoding of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether the key is the all-zero value.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Bytes returns the raw 32-byte key.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, len(pk))
	copy(out, pk[:])
	return out
}

// MarshalJSON renders the key as base58 text.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

// UnmarshalJSON parses the base58 text form.
func (pk *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// ParsePublicKey decodes a base58-encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("domain: parse public key %q: %w", s, err)
	}
	if len(raw) != len(PublicKey{}) {
		return PublicKey{}, fmt.Errorf("domain: parse public key %q: got %d bytes, want 32", s, len(raw))
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// EventID is the 128-bit market identifier. IDs must be version-4 UUIDs so
// they carry enough entropy to make address derivation collision-free.
type EventID uuid.UUID

// NewEventID generates a fresh random event identifier.
func NewEventID() EventID {
	return EventID(uuid.New())
}

// ParseEventID parses the canonical textual UUID form.
func ParseEventID(s string) (EventID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, fmt.Errorf("domain: parse event id %q: %w", s, err)
	}
	return EventID(id), nil
}

// MarshalJSON renders the identifier in canonical UUID text form.
func (id EventID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses the canonical UUID text form.
func (id *EventID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseEventID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// EventIDFromBytes reconstructs an EventID from its 16 raw bytes.
func EventIDFromBytes(b []byte) (EventID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return EventID{}, fmt.Errorf("domain: event id from bytes: %w", err)
	}
	return EventID(id), nil
}

// String returns the canonical UUID text form.
func (id EventID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID is the all-zero value.
func (id EventID) IsZero() bool {
	return id == EventID{}
}

// Valid reports whether the identifier is a well-formed random (version 4)
// UUID. All other versions are rejected at event creation.
func (id EventID) Valid() bool {
	return uuid.UUID(id).Version() == 4
}

// SeedBytes returns the 16-byte little-endian encoding of the identifier's
// 128-bit value, the form used for address derivation and stored layouts.
// UUID text/raw bytes are big-endian, so this is the reversed byte order.
func (id EventID) SeedBytes() [16]byte {
	var le [16]byte
	for i := range le {
		le[i] = id[len(id)-1-i]
	}
	return le
}

// EventIDFromSeedBytes is the inverse of SeedBytes.
func EventIDFromSeedBytes(le [16]byte) EventID {
	var id EventID
	for i := range id {
		id[i] = le[len(le)-1-i]
	}
	return id
}
