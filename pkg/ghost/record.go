// Package ghost defines the persisted ghost-order record: a conditional
// derivatives order whose direction, size, and reduce-only flag are hidden
// behind a commitment until execution, while the trigger fields stay in
// plaintext for on-record evaluation on the execution layer.
package ghost

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
)

// Status is the lifecycle state of a ghost order.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusTriggered
	StatusExecuted
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusTriggered:
		return "triggered"
	case StatusExecuted:
		return "executed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusCancelled || s == StatusExpired
}

// GhostOrderRecord is the canonical persisted entity, one per (owner, orderId).
//
// OrderSide, BaseAssetAmount and ReduceOnly are zero until the reveal at
// execution; before that the only binding copy of those fields is
// ParamsCommitment. Nonce is likewise written only post-reveal.
type GhostOrderRecord struct {
	Owner            ledger.Address
	OrderID          uint64
	MarketIndex      uint16
	TriggerPrice     uint64
	TriggerCondition trigger.Condition
	OrderSide        commitment.Side
	BaseAssetAmount  uint64
	ReduceOnly       bool
	Status           Status
	CreatedAt        int64
	TriggeredAt      int64
	ExecutedAt       int64
	Expiry           int64
	FeedID           [32]byte
	CrankTaskID      uint64
	ExecutionPrice   uint64
	Bump             uint8
	ParamsCommitment [32]byte
	Nonce            uint64
	ReadyExpiresAt   int64
	DelegatePda      ledger.Address
	DelegateBump     uint8
	DriftUser        ledger.Address
}

// The binary layout is declared once, as an ordered list of field widths.
// Offsets are derived from this single table so the encoder and decoder can
// never drift apart. All integers are little-endian.
type layoutField struct {
	name  string
	width int
}

var recordLayout = []layoutField{
	{"discriminator", 8},
	{"owner", 32},
	{"orderId", 8},
	{"marketIndex", 2},
	{"triggerPrice", 8},
	{"triggerCondition", 1},
	{"orderSide", 1},
	{"baseAssetAmount", 8},
	{"reduceOnly", 1},
	{"status", 1},
	{"createdAt", 8},
	{"triggeredAt", 8},
	{"executedAt", 8},
	{"expiry", 8},
	{"feedId", 32},
	{"crankTaskId", 8},
	{"executionPrice", 8},
	{"bump", 1},
	{"paramsCommitment", 32},
	{"nonce", 8},
	{"readyExpiresAt", 8},
	{"delegatePda", 32},
	{"delegateBump", 1},
	{"driftUser", 32},
}

var (
	fieldOffsets = map[string]int{}

	// RecordSize is the exact encoded size; shorter buffers are not
	// parseable and are rejected without raising.
	RecordSize int
)

func init() {
	off := 0
	for _, f := range recordLayout {
		fieldOffsets[f.name] = off
		off += f.width
	}
	RecordSize = off
}

// RecordDiscriminator tags account data as a ghost-order record.
var RecordDiscriminator = accountDiscriminator("GhostOrderRecord")

func accountDiscriminator(name string) [8]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("account:" + name))
	var out [8]byte
	copy(out[:], h.Sum(nil)[:8])
	return out
}

func slot(buf []byte, name string) []byte {
	off := fieldOffsets[name]
	return buf[off:]
}

// Encode serializes the record into the fixed layout.
func (r *GhostOrderRecord) Encode() []byte {
	buf := make([]byte, RecordSize)

	copy(slot(buf, "discriminator"), RecordDiscriminator[:])
	copy(slot(buf, "owner"), r.Owner[:])
	binary.LittleEndian.PutUint64(slot(buf, "orderId"), r.OrderID)
	binary.LittleEndian.PutUint16(slot(buf, "marketIndex"), r.MarketIndex)
	binary.LittleEndian.PutUint64(slot(buf, "triggerPrice"), r.TriggerPrice)
	slot(buf, "triggerCondition")[0] = byte(r.TriggerCondition)
	slot(buf, "orderSide")[0] = byte(r.OrderSide)
	binary.LittleEndian.PutUint64(slot(buf, "baseAssetAmount"), r.BaseAssetAmount)
	if r.ReduceOnly {
		slot(buf, "reduceOnly")[0] = 1
	}
	slot(buf, "status")[0] = byte(r.Status)
	binary.LittleEndian.PutUint64(slot(buf, "createdAt"), uint64(r.CreatedAt))
	binary.LittleEndian.PutUint64(slot(buf, "triggeredAt"), uint64(r.TriggeredAt))
	binary.LittleEndian.PutUint64(slot(buf, "executedAt"), uint64(r.ExecutedAt))
	binary.LittleEndian.PutUint64(slot(buf, "expiry"), uint64(r.Expiry))
	copy(slot(buf, "feedId"), r.FeedID[:])
	binary.LittleEndian.PutUint64(slot(buf, "crankTaskId"), r.CrankTaskID)
	binary.LittleEndian.PutUint64(slot(buf, "executionPrice"), r.ExecutionPrice)
	slot(buf, "bump")[0] = r.Bump
	copy(slot(buf, "paramsCommitment"), r.ParamsCommitment[:])
	binary.LittleEndian.PutUint64(slot(buf, "nonce"), r.Nonce)
	binary.LittleEndian.PutUint64(slot(buf, "readyExpiresAt"), uint64(r.ReadyExpiresAt))
	copy(slot(buf, "delegatePda"), r.DelegatePda[:])
	slot(buf, "delegateBump")[0] = r.DelegateBump
	copy(slot(buf, "driftUser"), r.DriftUser[:])

	return buf
}

// Decode parses account data into a record. A short buffer or a foreign
// discriminator means "not our record format": Decode returns (nil, false)
// and never an error, so scanners skip silently.
func Decode(data []byte) (*GhostOrderRecord, bool) {
	if len(data) < RecordSize {
		return nil, false
	}
	if string(data[:8]) != string(RecordDiscriminator[:]) {
		return nil, false
	}

	r := &GhostOrderRecord{}
	copy(r.Owner[:], slot(data, "owner"))
	r.OrderID = binary.LittleEndian.Uint64(slot(data, "orderId"))
	r.MarketIndex = binary.LittleEndian.Uint16(slot(data, "marketIndex"))
	r.TriggerPrice = binary.LittleEndian.Uint64(slot(data, "triggerPrice"))
	r.TriggerCondition = trigger.Condition(slot(data, "triggerCondition")[0])
	r.OrderSide = commitment.Side(slot(data, "orderSide")[0])
	r.BaseAssetAmount = binary.LittleEndian.Uint64(slot(data, "baseAssetAmount"))
	r.ReduceOnly = slot(data, "reduceOnly")[0] == 1
	r.Status = Status(slot(data, "status")[0])
	r.CreatedAt = int64(binary.LittleEndian.Uint64(slot(data, "createdAt")))
	r.TriggeredAt = int64(binary.LittleEndian.Uint64(slot(data, "triggeredAt")))
	r.ExecutedAt = int64(binary.LittleEndian.Uint64(slot(data, "executedAt")))
	r.Expiry = int64(binary.LittleEndian.Uint64(slot(data, "expiry")))
	copy(r.FeedID[:], slot(data, "feedId"))
	r.CrankTaskID = binary.LittleEndian.Uint64(slot(data, "crankTaskId"))
	r.ExecutionPrice = binary.LittleEndian.Uint64(slot(data, "executionPrice"))
	r.Bump = slot(data, "bump")[0]
	copy(r.ParamsCommitment[:], slot(data, "paramsCommitment"))
	r.Nonce = binary.LittleEndian.Uint64(slot(data, "nonce"))
	r.ReadyExpiresAt = int64(binary.LittleEndian.Uint64(slot(data, "readyExpiresAt")))
	copy(r.DelegatePda[:], slot(data, "delegatePda"))
	r.DelegateBump = slot(data, "delegateBump")[0]
	copy(r.DriftUser[:], slot(data, "driftUser"))

	return r, true
}

// StatusOf peeks at the status byte without decoding the whole record.
// Returns false for buffers that are not ghost-order records.
func StatusOf(data []byte) (Status, bool) {
	if len(data) < RecordSize {
		return 0, false
	}
	if string(data[:8]) != string(RecordDiscriminator[:]) {
		return 0, false
	}
	return Status(slot(data, "status")[0]), true
}
