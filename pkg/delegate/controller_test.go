package delegate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

func testController() *Controller {
	var ghostProg, delegProg, delegAuth ledger.Address
	ghostProg[0] = 1
	delegProg[0] = 2
	delegAuth[0] = 3
	return &Controller{
		GhostProgram:        ghostProg,
		DelegationProgram:   delegProg,
		DelegationAuthority: delegAuth,
	}
}

func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

func TestBuildDelegate(t *testing.T) {
	c := testController()

	ins := c.BuildDelegate(addr(10), addr(11), 30*time.Second)

	if ins.ProgramID != c.GhostProgram {
		t.Errorf("program = %s, want ghost program", ins.ProgramID.Hex())
	}
	if !instruction.HasDiscriminator(ins.Data, instruction.NameDelegateGhostOrder) {
		t.Error("wrong discriminator")
	}
	if len(ins.Accounts) != 6 {
		t.Fatalf("accounts = %d, want 6", len(ins.Accounts))
	}
	if !ins.Accounts[0].IsSigner {
		t.Error("payer must sign")
	}

	r := instruction.NewReader(ins.Data)
	if freq := r.U64(); freq != 30_000 {
		t.Errorf("commit frequency = %d ms, want 30000", freq)
	}
}

func TestBuildCommitAndUndelegateBatch(t *testing.T) {
	c := testController()

	ins, err := c.BuildCommitAndUndelegate(addr(10), []ledger.Address{addr(11), addr(12), addr(13)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ins.ProgramID != c.DelegationProgram {
		t.Errorf("program = %s, want delegation program", ins.ProgramID.Hex())
	}
	if !instruction.HasDiscriminator(ins.Data, instruction.NameCommitAndUndelegate) {
		t.Error("wrong discriminator")
	}
	if len(ins.Accounts) != 4 {
		t.Errorf("accounts = %d, want payer + 3 records", len(ins.Accounts))
	}

	if _, err := c.BuildCommitAndUndelegate(addr(10), nil); err == nil {
		t.Error("empty batch accepted")
	}

	// The count byte caps a batch at 255 records.
	oversize := make([]ledger.Address, 256)
	for i := range oversize {
		oversize[i] = addr(byte(i))
	}
	if _, err := c.BuildCommitAndUndelegate(addr(10), oversize); err == nil {
		t.Error("oversize batch accepted")
	}
}

func TestBuildTopUpEscrow(t *testing.T) {
	c := testController()

	ins := c.BuildTopUpEscrow(addr(20), addr(21), addr(22), 5_000_000)
	if !instruction.HasDiscriminator(ins.Data, instruction.NameTopUpEscrow) {
		t.Error("wrong discriminator")
	}
	r := instruction.NewReader(ins.Data)
	if amount := r.U64(); amount != 5_000_000 {
		t.Errorf("amount = %d, want 5000000", amount)
	}
}

func TestIsDelegated(t *testing.T) {
	c := testController()

	st, err := ledger.NewStore(filepath.Join(t.TempDir(), "base.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	rec := addr(30)

	// Missing record: not delegated, no error.
	ok, err := c.IsDelegated(st, rec)
	if err != nil || ok {
		t.Errorf("missing record: delegated=%v err=%v", ok, err)
	}

	// Owned by the ghost program: not delegated.
	if err := st.Put(&ledger.Account{Key: rec, Authority: c.GhostProgram}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, _ = c.IsDelegated(st, rec)
	if ok {
		t.Error("record owned by ghost program reported delegated")
	}

	// Owned by the delegation authority: delegated.
	if err := st.SetAuthority(rec, c.DelegationAuthority); err != nil {
		t.Fatalf("set authority: %v", err)
	}
	ok, _ = c.IsDelegated(st, rec)
	if !ok {
		t.Error("delegated record not detected")
	}
}
