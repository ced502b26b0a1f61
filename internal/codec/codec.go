// Package codec implements the fixed binary account layouts of the ledger.
// Every record starts with a version byte followed by its fields in
// declaration order: little-endian integers, 16-byte little-endian event IDs,
// 32-byte public keys, fixed-width text, and optional values as a tag byte
// followed by a full-width (zeroed when absent) payload. The widths are part
// of the wire contract and must not change within a layout version.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/predictory-labs/predictory/internal/domain"
)

// Encoded record sizes in bytes.
const (
	ContractStateSize = 1 + 32 + 8 + 8 + 8 + 8
	UserSize          = 1 + 32 + 8 + 8 + 8 + domain.NameLen
	EventSize         = 1 + 16 + 32 + 8 + 8 + 8 + 9 + 1 + 8 + 8 + 8 + 1 + 2
	EventMetaSize     = 1 + 16 + 1 + domain.NameLen + domain.DescriptionLen
	EventOptionSize   = 1 + 16 + 1 + domain.DescriptionLen + 8 + 8
	ParticipationSize = 1 + 16 + 32 + 1 + 8 + 1 + 1
	AppellationSize   = 1 + 16 + 8 + 8 + 8
)

type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)  { w.u64(uint64(v)) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) eventID(id domain.EventID) {
	seed := id.SeedBytes()
	w.bytes(seed[:])
}

func (w *writer) optI64(v *int64) {
	if v == nil {
		w.u8(0)
		w.i64(0)
		return
	}
	w.u8(1)
	w.i64(*v)
}

func (w *writer) optU8(v *uint8) {
	if v == nil {
		w.u8(0)
		w.u8(0)
		return
	}
	w.u8(1)
	w.u8(*v)
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("codec: truncated record at offset %d", r.off)
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8   { return r.take(1)[0] }
func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *reader) i64() int64  { return int64(r.u64()) }
func (r *reader) bool() bool  { return r.u8() != 0 }

func (r *reader) eventID() domain.EventID {
	var le [16]byte
	copy(le[:], r.take(16))
	return domain.EventIDFromSeedBytes(le)
}

func (r *reader) pubkey() domain.PublicKey {
	var pk domain.PublicKey
	copy(pk[:], r.take(32))
	return pk
}

func (r *reader) optI64() *int64 {
	tag := r.u8()
	v := r.i64()
	if tag == 0 {
		return nil
	}
	return &v
}

func (r *reader) optU8() *uint8 {
	tag := r.u8()
	v := r.u8()
	if tag == 0 {
		return nil
	}
	return &v
}

func (r *reader) finish(want int) error {
	if r.err != nil {
		return r.err
	}
	if len(r.buf) != want {
		return fmt.Errorf("codec: record is %d bytes, want %d", len(r.buf), want)
	}
	return nil
}

// EncodeContractState serializes the configuration singleton.
func EncodeContractState(s domain.ContractState) []byte {
	w := newWriter(ContractStateSize)
	w.u8(s.Version)
	w.bytes(s.Authority[:])
	w.u64(s.Multiplier)
	w.u64(s.EventPrice)
	w.u64(s.PlatformFee)
	w.u64(s.OrgReward)
	return w.buf
}

// DecodeContractState deserializes the configuration singleton.
func DecodeContractState(b []byte) (domain.ContractState, error) {
	r := &reader{buf: b}
	s := domain.ContractState{
		Version:   r.u8(),
		Authority: r.pubkey(),
	}
	s.Multiplier = r.u64()
	s.EventPrice = r.u64()
	s.PlatformFee = r.u64()
	s.OrgReward = r.u64()
	return s, r.finish(ContractStateSize)
}

// EncodeUser serializes a user record.
func EncodeUser(u domain.User) []byte {
	w := newWriter(UserSize)
	w.u8(u.Version)
	w.bytes(u.Owner[:])
	w.u64(u.Stake)
	w.u64(u.LockedStake)
	w.u64(u.TrustLevel)
	w.bytes(u.Name[:])
	return w.buf
}

// DecodeUser deserializes a user record.
func DecodeUser(b []byte) (domain.User, error) {
	r := &reader{buf: b}
	u := domain.User{
		Version: r.u8(),
		Owner:   r.pubkey(),
	}
	u.Stake = r.u64()
	u.LockedStake = r.u64()
	u.TrustLevel = r.u64()
	copy(u.Name[:], r.take(domain.NameLen))
	return u, r.finish(UserSize)
}

// EncodeEvent serializes an event record.
func EncodeEvent(e domain.Event) []byte {
	w := newWriter(EventSize)
	w.u8(e.Version)
	w.eventID(e.ID)
	w.bytes(e.Authority[:])
	w.u64(e.Stake)
	w.i64(e.StartDate)
	w.i64(e.EndDate)
	w.optI64(e.ParticipationDeadline)
	w.u8(e.OptionCount)
	w.u64(e.ParticipationCount)
	w.u64(e.TotalAmount)
	w.u64(e.TotalTrust)
	w.bool(e.Canceled)
	w.optU8(e.Result)
	return w.buf
}

// DecodeEvent deserializes an event record.
func DecodeEvent(b []byte) (domain.Event, error) {
	r := &reader{buf: b}
	e := domain.Event{
		Version:   r.u8(),
		ID:        r.eventID(),
		Authority: r.pubkey(),
	}
	e.Stake = r.u64()
	e.StartDate = r.i64()
	e.EndDate = r.i64()
	e.ParticipationDeadline = r.optI64()
	e.OptionCount = r.u8()
	e.ParticipationCount = r.u64()
	e.TotalAmount = r.u64()
	e.TotalTrust = r.u64()
	e.Canceled = r.bool()
	e.Result = r.optU8()
	return e, r.finish(EventSize)
}

// EncodeEventMeta serializes an event metadata record.
func EncodeEventMeta(m domain.EventMeta) []byte {
	w := newWriter(EventMetaSize)
	w.u8(m.Version)
	w.eventID(m.EventID)
	w.bool(m.IsPrivate)
	w.bytes(m.Name[:])
	w.bytes(m.Description[:])
	return w.buf
}

// DecodeEventMeta deserializes an event metadata record.
func DecodeEventMeta(b []byte) (domain.EventMeta, error) {
	r := &reader{buf: b}
	m := domain.EventMeta{
		Version: r.u8(),
		EventID: r.eventID(),
	}
	m.IsPrivate = r.bool()
	copy(m.Name[:], r.take(domain.NameLen))
	copy(m.Description[:], r.take(domain.DescriptionLen))
	return m, r.finish(EventMetaSize)
}

// EncodeEventOption serializes an outcome option record.
func EncodeEventOption(o domain.EventOption) []byte {
	w := newWriter(EventOptionSize)
	w.u8(o.Version)
	w.eventID(o.EventID)
	w.u8(o.Index)
	w.bytes(o.Description[:])
	w.u64(o.Votes)
	w.u64(o.VaultBalance)
	return w.buf
}

// DecodeEventOption deserializes an outcome option record.
func DecodeEventOption(b []byte) (domain.EventOption, error) {
	r := &reader{buf: b}
	o := domain.EventOption{
		Version: r.u8(),
		EventID: r.eventID(),
	}
	o.Index = r.u8()
	copy(o.Description[:], r.take(domain.DescriptionLen))
	o.Votes = r.u64()
	o.VaultBalance = r.u64()
	return o, r.finish(EventOptionSize)
}

// EncodeParticipation serializes a participation record.
func EncodeParticipation(p domain.Participation) []byte {
	w := newWriter(ParticipationSize)
	w.u8(p.Version)
	w.eventID(p.EventID)
	w.bytes(p.Payer[:])
	w.u8(p.Option)
	w.u64(p.DepositedAmount)
	w.bool(p.IsClaimed)
	w.bool(p.Appealed)
	return w.buf
}

// DecodeParticipation deserializes a participation record.
func DecodeParticipation(b []byte) (domain.Participation, error) {
	r := &reader{buf: b}
	p := domain.Participation{
		Version: r.u8(),
		EventID: r.eventID(),
		Payer:   r.pubkey(),
	}
	p.Option = r.u8()
	p.DepositedAmount = r.u64()
	p.IsClaimed = r.bool()
	p.Appealed = r.bool()
	return p, r.finish(ParticipationSize)
}

// EncodeAppellation serializes a dispute aggregate record.
func EncodeAppellation(a domain.Appellation) []byte {
	w := newWriter(AppellationSize)
	w.u8(a.Version)
	w.eventID(a.EventID)
	w.u64(a.DisagreeCount)
	w.u64(a.DisagreeTrustLevel)
	w.u64(a.DisagreeVolume)
	return w.buf
}

// DecodeAppellation deserializes a dispute aggregate record.
func DecodeAppellation(b []byte) (domain.Appellation, error) {
	r := &reader{buf: b}
	a := domain.Appellation{
		Version: r.u8(),
		EventID: r.eventID(),
	}
	a.DisagreeCount = r.u64()
	a.DisagreeTrustLevel = r.u64()
	a.DisagreeVolume = r.u64()
	return a, r.finish(AppellationSize)
}
