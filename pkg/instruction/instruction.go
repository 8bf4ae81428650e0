// Package instruction defines the wire form of program instructions: an
// 8-byte discriminator derived from the instruction name, followed by
// little-endian arguments.
package instruction

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// Instruction names. The discriminator convention is
// keccak("global:" + name)[0:8]; names are part of the wire format.
const (
	NameCreateGhostOrder     = "create_ghost_order"
	NameActivateOrder        = "activate_order"
	NameCheckTrigger         = "check_trigger"
	NameExecuteTrigger       = "execute_trigger"
	NameCancelOrder          = "cancel_order"
	NameDelegateGhostOrder   = "delegate_ghost_order"
	NameCommitAndUndelegate  = "commit_and_undelegate"
	NameTopUpEscrow          = "top_up_escrow"
)

// AccountMeta names one account an instruction touches.
type AccountMeta struct {
	Pubkey     ledger.Address
	IsSigner   bool
	IsWritable bool
}

// Instruction is one program invocation.
type Instruction struct {
	ProgramID ledger.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Discriminator returns the first 8 bytes of keccak("global:" + name).
func Discriminator(name string) [8]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("global:" + name))
	var out [8]byte
	copy(out[:], h.Sum(nil)[:8])
	return out
}

// HasDiscriminator reports whether data starts with the named discriminator.
func HasDiscriminator(data []byte, name string) bool {
	if len(data) < 8 {
		return false
	}
	d := Discriminator(name)
	return string(data[:8]) == string(d[:])
}

// Builder accumulates instruction data after the discriminator.
type Builder struct {
	data []byte
}

func NewBuilder(name string) *Builder {
	d := Discriminator(name)
	return &Builder{data: append([]byte{}, d[:]...)}
}

func (b *Builder) U8(v uint8) *Builder {
	b.data = append(b.data, v)
	return b
}

func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.U8(1)
	}
	return b.U8(0)
}

func (b *Builder) U16(v uint16) *Builder {
	var le [2]byte
	binary.LittleEndian.PutUint16(le[:], v)
	b.data = append(b.data, le[:]...)
	return b
}

func (b *Builder) U64(v uint64) *Builder {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], v)
	b.data = append(b.data, le[:]...)
	return b
}

func (b *Builder) I64(v int64) *Builder {
	return b.U64(uint64(v))
}

func (b *Builder) Bytes(p []byte) *Builder {
	b.data = append(b.data, p...)
	return b
}

func (b *Builder) Address(a ledger.Address) *Builder {
	return b.Bytes(a[:])
}

// Params appends the fixed serialization of revealed order parameters.
func (b *Builder) Params(p commitment.OrderParams) *Builder {
	ser := commitment.Serialize(p)
	return b.Bytes(ser[:])
}

func (b *Builder) Data() []byte {
	return b.data
}

// Reader walks instruction data after the discriminator. Out-of-bounds
// reads flip an error flag instead of panicking; callers check Err once.
type Reader struct {
	data []byte
	off  int
	bad  bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 8, bad: len(data) < 8}
}

func (r *Reader) take(n int) []byte {
	if r.bad || r.off+n > len(r.data) {
		r.bad = true
		return make([]byte, n)
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *Reader) U8() uint8   { return r.take(1)[0] }
func (r *Reader) Bool() bool  { return r.U8() == 1 }
func (r *Reader) U16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *Reader) U64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *Reader) I64() int64  { return int64(r.U64()) }

func (r *Reader) Address() ledger.Address {
	var a ledger.Address
	copy(a[:], r.take(32))
	return a
}

func (r *Reader) Params() commitment.OrderParams {
	return commitment.OrderParams{
		MarketIndex:     r.U16(),
		Side:            commitment.Side(r.U8()),
		BaseAssetAmount: r.U64(),
		ReduceOnly:      r.Bool(),
	}
}

// Err reports whether any read ran past the end of the data.
func (r *Reader) Err() bool { return r.bad }
