package instruction

import (
	"testing"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

func TestDiscriminatorStable(t *testing.T) {
	a := Discriminator(NameExecuteTrigger)
	b := Discriminator(NameExecuteTrigger)
	if a != b {
		t.Fatal("discriminator not deterministic")
	}
	if a == Discriminator(NameCheckTrigger) {
		t.Fatal("different names produced the same discriminator")
	}
}

func TestHasDiscriminator(t *testing.T) {
	data := NewBuilder(NameActivateOrder).Data()

	if !HasDiscriminator(data, NameActivateOrder) {
		t.Error("own discriminator not recognized")
	}
	if HasDiscriminator(data, NameCancelOrder) {
		t.Error("foreign discriminator matched")
	}
	if HasDiscriminator(data[:4], NameActivateOrder) {
		t.Error("short data matched")
	}
}

func TestBuilderReaderRoundTrip(t *testing.T) {
	params := commitment.OrderParams{
		MarketIndex:     7,
		Side:            commitment.SideShort,
		BaseAssetAmount: 5_000_000,
		ReduceOnly:      true,
	}
	var addr ledger.Address
	addr[3] = 0x42

	data := NewBuilder(NameExecuteTrigger).
		Params(params).
		U64(999).        // nonce
		U64(181_000_000). // price
		Bool(true).      // re-delegate
		Address(addr).
		Data()

	r := NewReader(data)
	gotParams := r.Params()
	gotNonce := r.U64()
	gotPrice := r.U64()
	gotFlag := r.Bool()
	gotAddr := r.Address()

	if r.Err() {
		t.Fatal("reader flagged error on valid data")
	}
	if gotParams != params {
		t.Errorf("params = %+v, want %+v", gotParams, params)
	}
	if gotNonce != 999 || gotPrice != 181_000_000 || !gotFlag || gotAddr != addr {
		t.Errorf("decoded nonce=%d price=%d flag=%v addr=%s", gotNonce, gotPrice, gotFlag, gotAddr.Hex())
	}
}

func TestReaderOverrun(t *testing.T) {
	data := NewBuilder(NameCheckTrigger).U64(1).Data()

	r := NewReader(data)
	r.U64()
	r.U64() // past the end
	if !r.Err() {
		t.Error("overrun not flagged")
	}

	short := NewReader([]byte{1, 2})
	if !short.Err() {
		t.Error("sub-discriminator data not flagged")
	}
}
