package privacy

import (
	"testing"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

var (
	programID  = mkAddr(0x11)
	delegateTo = mkAddr(0x33)
	recordKey  = mkAddr(0xAA)
)

func mkAddr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

func record(status ghost.Status) *ghost.GhostOrderRecord {
	return &ghost.GhostOrderRecord{
		Owner:        mkAddr(0x01),
		OrderID:      7,
		MarketIndex:  4,
		TriggerPrice: 180_000_000,
		Status:       status,
		Expiry:       1_700_003_600,
	}
}

func account(rec *ghost.GhostOrderRecord, authority ledger.Address) *ledger.Account {
	return &ledger.Account{Key: recordKey, Authority: authority, Data: rec.Encode()}
}

func TestAssessNotDelegated(t *testing.T) {
	base := account(record(ghost.StatusPending), programID)

	rep, err := Assess(base, nil, delegateTo, nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if rep.DelegationVerified {
		t.Error("delegation verified without exec-layer record")
	}
	if rep.Rating != RatingNone {
		t.Errorf("rating = %s, want none", rep.Rating)
	}
}

// Authority handed over but no record on the execution layer is still
// not verified delegation.
func TestAssessAuthorityWithoutExecRecord(t *testing.T) {
	base := account(record(ghost.StatusPending), delegateTo)

	rep, err := Assess(base, nil, delegateTo, nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if rep.DelegationVerified || rep.Rating != RatingNone {
		t.Errorf("report = %+v, want unverified/none", rep)
	}
}

func TestAssessDelegatedPreReveal(t *testing.T) {
	base := account(record(ghost.StatusPending), delegateTo)
	exec := account(record(ghost.StatusActive), delegateTo)

	rep, err := Assess(base, exec, delegateTo, nil)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !rep.DelegationVerified {
		t.Fatal("delegation not verified")
	}
	if !rep.StatusDiffersBetweenLayers {
		t.Error("status pending/active reported as equal")
	}

	// Of the seven default fields only the commitment trio is hidden.
	hidden := map[Field]bool{}
	for _, f := range rep.Fields {
		if !f.Plaintext {
			hidden[f.Field] = true
		}
	}
	for _, want := range []Field{FieldOrderSide, FieldBaseAssetAmount, FieldReduceOnly} {
		if !hidden[want] {
			t.Errorf("field %s reported plaintext pre-reveal", want)
		}
	}
	if len(hidden) != 3 {
		t.Errorf("hidden fields = %d, want 3", len(hidden))
	}
	// 3/7 hidden plus differing status: partial, never full.
	if rep.Rating != RatingPartial {
		t.Errorf("rating = %s, want partial", rep.Rating)
	}
}

// Grading only the commitment-hidden fields yields a full rating while
// they remain unrevealed.
func TestAssessCommitmentFieldsOnly(t *testing.T) {
	base := account(record(ghost.StatusPending), delegateTo)
	exec := account(record(ghost.StatusPending), delegateTo)

	rep, err := Assess(base, exec, delegateTo,
		[]Field{FieldOrderSide, FieldBaseAssetAmount, FieldReduceOnly})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if rep.HiddenFraction != 1 {
		t.Errorf("hiddenFraction = %v, want 1", rep.HiddenFraction)
	}
	if rep.Rating != RatingFull {
		t.Errorf("rating = %s, want full", rep.Rating)
	}
}

func TestAssessPostReveal(t *testing.T) {
	rec := record(ghost.StatusExecuted)
	rec.OrderSide = commitment.SideLong
	rec.BaseAssetAmount = 1_000_000_000
	rec.Nonce = 777
	base := account(rec, delegateTo)
	exec := account(rec, delegateTo)

	rep, err := Assess(base, exec, delegateTo,
		[]Field{FieldOrderSide, FieldBaseAssetAmount, FieldReduceOnly})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if rep.HiddenFraction != 0 {
		t.Errorf("hiddenFraction = %v after reveal, want 0", rep.HiddenFraction)
	}
	if rep.Rating != RatingMinimal {
		t.Errorf("rating = %s, want minimal", rep.Rating)
	}
}

// Plaintext trigger fields must never be reported as protected by
// delegation, whatever the delegation state.
func TestAssessTriggerFieldsUnprotected(t *testing.T) {
	base := account(record(ghost.StatusActive), delegateTo)
	exec := account(record(ghost.StatusActive), delegateTo)

	rep, err := Assess(base, exec, delegateTo,
		[]Field{FieldTriggerPrice, FieldTriggerCondition, FieldFeedID, FieldExpiry})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	for _, f := range rep.Fields {
		if !f.Plaintext {
			t.Errorf("field %s reported hidden", f.Field)
		}
		if f.Protection != ProtectionNone {
			t.Errorf("field %s protection = %s, want none", f.Field, f.Protection)
		}
	}
	// All plaintext and same status on both layers: minimal exposure cover.
	if rep.Rating != RatingMinimal {
		t.Errorf("rating = %s, want minimal", rep.Rating)
	}
}

// A differing cross-layer status alone upgrades the rating to partial,
// even when every graded field is plaintext.
func TestAssessStatusDivergenceUpgrades(t *testing.T) {
	base := account(record(ghost.StatusPending), delegateTo)
	exec := account(record(ghost.StatusTriggered), delegateTo)

	rep, err := Assess(base, exec, delegateTo, []Field{FieldTriggerPrice})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !rep.StatusDiffersBetweenLayers {
		t.Fatal("status divergence not detected")
	}
	if rep.Rating != RatingPartial {
		t.Errorf("rating = %s, want partial", rep.Rating)
	}
}

func TestAssessRejectsForeignAccount(t *testing.T) {
	junk := &ledger.Account{Key: recordKey, Data: []byte{1, 2, 3}}
	if _, err := Assess(junk, nil, delegateTo, nil); err == nil {
		t.Error("foreign account accepted")
	}
	if _, err := Assess(nil, nil, delegateTo, nil); err == nil {
		t.Error("nil account accepted")
	}
}
