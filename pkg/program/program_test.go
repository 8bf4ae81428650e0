package program

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/util"
)

func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

type fixture struct {
	prog  *Program
	rt    *Runtime
	clock *util.FakeClock
	owner ledger.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base, err := ledger.NewStore(filepath.Join(t.TempDir(), "base.db"))
	if err != nil {
		t.Fatalf("base store: %v", err)
	}
	exec, err := ledger.NewStore(filepath.Join(t.TempDir(), "exec.db"))
	if err != nil {
		t.Fatalf("exec store: %v", err)
	}
	t.Cleanup(func() { base.Close(); exec.Close() })

	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))
	return &fixture{
		prog: &Program{
			ID:                  addr(0x11),
			DelegationProgram:   addr(0x22),
			DelegationAuthority: addr(0x33),
			GracePeriod:         60 * time.Second,
			Clock:               clock,
		},
		rt:    &Runtime{Base: base, Exec: exec},
		clock: clock,
		owner: addr(0xAA),
	}
}

func (f *fixture) params() (commitment.OrderParams, uint64) {
	return commitment.OrderParams{
		MarketIndex:     4,
		Side:            commitment.SideLong,
		BaseAssetAmount: 1_000_000_000,
	}, uint64(777)
}

// create writes a Pending order triggering below $180.
func (f *fixture) create(t *testing.T) ledger.Address {
	t.Helper()
	params, nonce := f.params()
	rec, err := f.prog.CreateGhostOrder(f.rt, CreateArgs{
		Owner:            f.owner,
		OrderID:          1,
		MarketIndex:      4,
		TriggerPrice:     180_000_000,
		TriggerCondition: trigger.Below,
		Expiry:           f.clock.Now().Add(time.Hour).Unix(),
		ParamsCommitment: commitment.Commit(params, nonce),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func (f *fixture) delegate(t *testing.T, rec ledger.Address) {
	t.Helper()
	if err := f.prog.Delegate(f.rt, rec); err != nil {
		t.Fatalf("delegate: %v", err)
	}
}

func (f *fixture) recordOn(t *testing.T, st *ledger.Store, addr ledger.Address) *ghost.GhostOrderRecord {
	t.Helper()
	acc, err := st.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc == nil {
		t.Fatalf("record %s missing", addr.Hex())
	}
	rec, ok := ghost.Decode(acc.Data)
	if !ok {
		t.Fatalf("record %s undecodable", addr.Hex())
	}
	return rec
}

func TestCreatePendingHidesParams(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)

	r := f.recordOn(t, f.rt.Base, rec)
	if r.Status != ghost.StatusPending {
		t.Errorf("status = %s, want pending", r.Status)
	}
	// The sensitive fields must not be readable before reveal.
	if r.OrderSide != 0 || r.BaseAssetAmount != 0 || r.ReduceOnly || r.Nonce != 0 {
		t.Errorf("sensitive fields leaked on create: side=%d amount=%d reduceOnly=%v nonce=%d",
			r.OrderSide, r.BaseAssetAmount, r.ReduceOnly, r.Nonce)
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	params, nonce := f.params()
	_, err := f.prog.CreateGhostOrder(f.rt, CreateArgs{
		Owner:            f.owner,
		OrderID:          1,
		TriggerPrice:     1,
		TriggerCondition: trigger.Above,
		ParamsCommitment: commitment.Commit(params, nonce),
	})
	if !errors.Is(err, ErrRecordExists) {
		t.Errorf("duplicate create: err = %v, want ErrRecordExists", err)
	}
}

func TestActivateRequiresDelegation(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)

	if err := f.prog.Activate(f.rt, rec, 1); !errors.Is(err, ErrNotDelegated) {
		t.Errorf("activate before delegate: err = %v, want ErrNotDelegated", err)
	}

	f.delegate(t, rec)
	if err := f.prog.Activate(f.rt, rec, 1); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// Idempotent: re-activation is a no-op, not an error.
	if err := f.prog.Activate(f.rt, rec, 2); err != nil {
		t.Errorf("re-activate: %v", err)
	}

	if r := f.recordOn(t, f.rt.Exec, rec); r.Status != ghost.StatusActive {
		t.Errorf("status = %s, want active", r.Status)
	}
}

func TestDelegateFlipsAuthorityBothLayers(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)

	baseAcc, _ := f.rt.Base.Get(rec)
	if baseAcc.Authority != f.prog.DelegationAuthority {
		t.Errorf("base authority = %s, want delegation authority", baseAcc.Authority.Hex())
	}
	execAcc, _ := f.rt.Exec.Get(rec)
	if execAcc == nil || execAcc.Authority != f.prog.DelegationAuthority {
		t.Error("record not mirrored to execution layer under delegation authority")
	}
}

func TestCheckTriggerTransitions(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)

	// 181 > 180: Below not satisfied.
	st, err := f.prog.CheckTrigger(f.rt, rec, 181_000_000)
	if !errors.Is(err, ErrNotTriggered) || st != ghost.StatusActive {
		t.Errorf("price above level: status=%s err=%v", st, err)
	}

	// 179 <= 180: triggered, stamps triggeredAt and readyExpiresAt.
	st, err = f.prog.CheckTrigger(f.rt, rec, 179_000_000)
	if err != nil || st != ghost.StatusTriggered {
		t.Fatalf("trigger: status=%s err=%v", st, err)
	}

	r := f.recordOn(t, f.rt.Exec, rec)
	if r.TriggeredAt != f.clock.Now().Unix() {
		t.Errorf("triggeredAt = %d, want %d", r.TriggeredAt, f.clock.Now().Unix())
	}
	if want := f.clock.Now().Add(60 * time.Second).Unix(); r.ReadyExpiresAt != want {
		t.Errorf("readyExpiresAt = %d, want %d", r.ReadyExpiresAt, want)
	}
}

func TestCheckTriggerSweepsExpired(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)

	f.clock.Advance(2 * time.Hour) // past overall expiry

	st, err := f.prog.CheckTrigger(f.rt, rec, 1) // price would trigger, but expiry wins
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if st != ghost.StatusExpired {
		t.Errorf("status = %s, want expired", st)
	}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)
	f.prog.CheckTrigger(f.rt, rec, 179_000_000)

	params, nonce := f.params()
	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 179_500_000, false); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Undelegated back to base in terminal state, reveal persisted.
	r := f.recordOn(t, f.rt.Base, rec)
	if r.Status != ghost.StatusExecuted {
		t.Errorf("status = %s, want executed", r.Status)
	}
	if r.ExecutionPrice != 179_500_000 {
		t.Errorf("executionPrice = %d", r.ExecutionPrice)
	}
	if r.OrderSide != commitment.SideLong || r.BaseAssetAmount != params.BaseAssetAmount || r.Nonce != nonce {
		t.Error("revealed plaintext not persisted post-execution")
	}

	baseAcc, _ := f.rt.Base.Get(rec)
	if baseAcc.Authority != f.prog.ID {
		t.Errorf("base authority = %s, want program", baseAcc.Authority.Hex())
	}
	if execAcc, _ := f.rt.Exec.Get(rec); execAcc != nil {
		t.Error("execution-layer copy not cleaned up after undelegation")
	}
}

func TestExecuteRejectsBadReveal(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)
	f.prog.CheckTrigger(f.rt, rec, 179_000_000)

	params, nonce := f.params()
	params.BaseAssetAmount++ // wrong reveal

	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 179_000_000, false); !errors.Is(err, ErrBadReveal) {
		t.Errorf("bad reveal: err = %v, want ErrBadReveal", err)
	}

	// Record must remain Triggered and unexecuted.
	if r := f.recordOn(t, f.rt.Exec, rec); r.Status != ghost.StatusTriggered {
		t.Errorf("status after bad reveal = %s, want triggered", r.Status)
	}
}

// A verified execution attempt one second past the grace window must be
// rejected, and the record must end Expired rather than Executed.
func TestExecuteRejectsAfterGraceWindow(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)
	f.prog.CheckTrigger(f.rt, rec, 179_000_000) // t0, readyExpiresAt = t0+60s

	f.clock.Advance(61 * time.Second)

	params, nonce := f.params()
	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 179_000_000, false); !errors.Is(err, ErrGraceExpired) {
		t.Fatalf("late execute: err = %v, want ErrGraceExpired", err)
	}

	if r := f.recordOn(t, f.rt.Exec, rec); r.Status != ghost.StatusExpired {
		t.Errorf("status = %s, want expired", r.Status)
	}
}

// No path reaches Executed without passing through Triggered.
func TestNoExecutionWithoutTrigger(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	params, nonce := f.params()

	// Pending, not delegated.
	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 1, false); err == nil {
		t.Fatal("executed a pending undelegated record")
	}

	f.delegate(t, rec)
	// Pending, delegated.
	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 1, false); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("pending execute: err = %v, want ErrWrongStatus", err)
	}

	f.prog.Activate(f.rt, rec, 1)
	// Active, delegated, but never triggered.
	if err := f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 1, false); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("active execute: err = %v, want ErrWrongStatus", err)
	}
}

// Racing executors on the same Triggered record: exactly one wins, the
// other observes a terminal status.
func TestExecuteAtMostOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)
	f.prog.CheckTrigger(f.rt, rec, 179_000_000)

	params, nonce := f.params()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- f.prog.ExecuteTrigger(f.rt, rec, params, nonce, 179_000_000, true)
		}()
	}

	var wins, losses int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			wins++
		} else if errors.Is(err, ErrWrongStatus) {
			losses++
		} else {
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins=%d losses=%d, want exactly one of each", wins, losses)
	}
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)

	// Non-owner cannot cancel.
	if err := f.prog.Cancel(f.rt, rec, addr(0xBB)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger cancel: err = %v, want ErrUnauthorized", err)
	}

	// Owner cancels a Pending record on the base layer.
	if err := f.prog.Cancel(f.rt, rec, f.owner); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r := f.recordOn(t, f.rt.Base, rec); r.Status != ghost.StatusCancelled {
		t.Errorf("status = %s, want cancelled", r.Status)
	}

	// Terminal: cancelling again fails.
	if err := f.prog.Cancel(f.rt, rec, f.owner); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("double cancel: err = %v, want ErrWrongStatus", err)
	}
}

func TestCancelRejectedAfterTrigger(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)
	f.prog.Activate(f.rt, rec, 1)
	f.prog.CheckTrigger(f.rt, rec, 179_000_000)

	if err := f.prog.Cancel(f.rt, rec, f.owner); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("cancel after trigger: err = %v, want ErrWrongStatus", err)
	}
}

func TestTopUpEscrow(t *testing.T) {
	f := newFixture(t)
	escrow := addr(0xE5)

	if err := f.prog.TopUpEscrow(f.rt, escrow, f.owner, 1_000); err != nil {
		t.Fatalf("top up: %v", err)
	}
	if err := f.prog.TopUpEscrow(f.rt, escrow, f.owner, 500); err != nil {
		t.Fatalf("top up: %v", err)
	}

	acc, _ := f.rt.Base.Get(escrow)
	if acc == nil || acc.Lamports != 1_500 {
		t.Errorf("escrow balance = %+v, want 1500 lamports", acc)
	}
}

func TestApplyDispatch(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t)
	f.delegate(t, rec)

	crank := addr(0xC0)

	if err := f.prog.Apply(f.rt, BuildActivate(f.prog.ID, rec, crank, 7)); err != nil {
		t.Fatalf("apply activate: %v", err)
	}
	if err := f.prog.Apply(f.rt, BuildCheckTrigger(f.prog.ID, rec, crank, 179_000_000)); err != nil {
		t.Fatalf("apply check_trigger: %v", err)
	}

	params, nonce := f.params()
	ins := BuildExecuteTrigger(f.prog.ID, rec, crank, ledger.Address{}, params, nonce, 179_000_000, false)
	if err := f.prog.Apply(f.rt, ins); err != nil {
		t.Fatalf("apply execute_trigger: %v", err)
	}

	if r := f.recordOn(t, f.rt.Base, rec); r.Status != ghost.StatusExecuted {
		t.Errorf("status = %s, want executed", r.Status)
	}

	// Unknown discriminator rejected.
	bad := ins
	bad.Data = append([]byte{9, 9, 9, 9, 9, 9, 9, 9}, bad.Data[8:]...)
	if err := f.prog.Apply(f.rt, bad); err == nil {
		t.Error("unknown discriminator accepted")
	}
}
