// Package privacy is a read-only diagnostic over ghost-order records. It
// reports which sensitive fields an observer of the permanent ledger can
// currently read, and which of them are actually protected, and by what.
// It depends on the record layout only and never mutates state.
package privacy

import (
	"fmt"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// Field names a sensitive field of the ghost-order record.
type Field string

const (
	FieldOrderSide        Field = "orderSide"
	FieldBaseAssetAmount  Field = "baseAssetAmount"
	FieldReduceOnly       Field = "reduceOnly"
	FieldTriggerPrice     Field = "triggerPrice"
	FieldTriggerCondition Field = "triggerCondition"
	FieldFeedID           Field = "feedId"
	FieldExpiry           Field = "expiry"
)

// DefaultSensitiveFields is every field a front-runner could profit from:
// the commitment-hidden trio plus the trigger fields that necessarily live
// in plaintext for on-record evaluation.
var DefaultSensitiveFields = []Field{
	FieldOrderSide,
	FieldBaseAssetAmount,
	FieldReduceOnly,
	FieldTriggerPrice,
	FieldTriggerCondition,
	FieldFeedID,
	FieldExpiry,
}

// Protection says what, if anything, keeps a field unreadable.
type Protection string

const (
	// ProtectionCommitment: the field rides inside paramsCommitment and
	// stays unreadable until the reveal at execution.
	ProtectionCommitment Protection = "commitment"
	// ProtectionNone: the field is stored in plaintext on the record.
	// Delegation does not hide it; only the reveal-at-execution design
	// narrows how long the hidden fields stay useful to a racer.
	ProtectionNone Protection = "none"
)

// FieldExposure is the per-field verdict.
type FieldExposure struct {
	Field      Field      `json:"field"`
	Plaintext  bool       `json:"plaintext"`
	Protection Protection `json:"protection"`
}

// Rating is the qualitative summary.
type Rating string

const (
	RatingNone    Rating = "none"
	RatingFull    Rating = "full"
	RatingPartial Rating = "partial"
	RatingMinimal Rating = "minimal"
)

// Report is the assessment of one order at one observation instant.
type Report struct {
	DelegationVerified         bool            `json:"delegation_verified"`
	StatusDiffersBetweenLayers bool            `json:"status_differs_between_layers"`
	BaseStatus                 ghost.Status    `json:"base_status"`
	ExecStatus                 ghost.Status    `json:"exec_status,omitempty"`
	Fields                     []FieldExposure `json:"fields"`
	HiddenFraction             float64         `json:"hidden_fraction"`
	Rating                     Rating          `json:"rating"`
}

// Assess inspects the same order as observed on the permanent ledger
// (base) and, when delegated, on the execution layer (exec may be nil).
// The fields slice selects which sensitive fields to grade; nil means
// DefaultSensitiveFields.
func Assess(base, exec *ledger.Account, delegationAuthority ledger.Address, fields []Field) (Report, error) {
	if base == nil {
		return Report{Rating: RatingNone}, fmt.Errorf("no base-layer account to assess")
	}
	baseRec, ok := ghost.Decode(base.Data)
	if !ok {
		return Report{Rating: RatingNone}, fmt.Errorf("base-layer account %s is not a ghost-order record", base.Key.Hex())
	}
	if fields == nil {
		fields = DefaultSensitiveFields
	}

	rep := Report{
		BaseStatus: baseRec.Status,
	}

	// Delegation is verified only when the base-layer authority has been
	// handed to the delegation authority AND a live record exists on the
	// execution layer.
	var execRec *ghost.GhostOrderRecord
	if exec != nil {
		execRec, _ = ghost.Decode(exec.Data)
	}
	rep.DelegationVerified = base.Authority == delegationAuthority && execRec != nil

	if execRec != nil {
		rep.ExecStatus = execRec.Status
		rep.StatusDiffersBetweenLayers = execRec.Status != baseRec.Status
	}

	hidden := 0
	for _, f := range fields {
		exp := exposure(f, baseRec)
		if !exp.Plaintext {
			hidden++
		}
		rep.Fields = append(rep.Fields, exp)
	}
	if len(fields) > 0 {
		rep.HiddenFraction = float64(hidden) / float64(len(fields))
	}

	rep.Rating = rate(rep)
	return rep, nil
}

// exposure grades one field against the base-layer record. The trio behind
// paramsCommitment is considered revealed once the record carries a
// nonzero side, which only the execute reveal writes.
func exposure(f Field, rec *ghost.GhostOrderRecord) FieldExposure {
	switch f {
	case FieldOrderSide, FieldBaseAssetAmount, FieldReduceOnly:
		revealed := rec.OrderSide != 0 || rec.Nonce != 0
		return FieldExposure{Field: f, Plaintext: revealed, Protection: ProtectionCommitment}
	default:
		// Trigger fields are plaintext on every layer at every status.
		// Reported honestly: delegation alone protects nothing here.
		return FieldExposure{Field: f, Plaintext: true, Protection: ProtectionNone}
	}
}

func rate(rep Report) Rating {
	switch {
	case !rep.DelegationVerified:
		return RatingNone
	case rep.HiddenFraction > 0.8:
		return RatingFull
	case rep.HiddenFraction > 0.4 || rep.StatusDiffersBetweenLayers:
		return RatingPartial
	default:
		return RatingMinimal
	}
}
