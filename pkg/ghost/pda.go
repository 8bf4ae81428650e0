package ghost

import (
	"encoding/binary"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// Seed strings for derived addresses. These are part of the wire format:
// changing one orphans every outstanding record.
const (
	orderSeed              = "ghost_order"
	delegationBufferSeed   = "buffer"
	delegationRecordSeed   = "delegation"
	delegationMetadataSeed = "delegation-metadata"
)

// DeriveOrderAddress returns the record address for (owner, orderId) under
// the owning program, plus the bump used.
func DeriveOrderAddress(program ledger.Address, owner ledger.Address, orderID uint64) (ledger.Address, uint8) {
	var idLE [8]byte
	binary.LittleEndian.PutUint64(idLE[:], orderID)
	return ledger.FindDerivedAddress(program, []byte(orderSeed), owner[:], idLE[:])
}

// DelegationPDAs are the three derived addresses the delegation authority
// operates on for one record. They exist only as addresses: no independent
// lifecycle beyond the delegation window.
type DelegationPDAs struct {
	Buffer   ledger.Address
	Record   ledger.Address
	Metadata ledger.Address
}

// DeriveDelegationPDAs derives the buffer/record/metadata addresses for a
// ghost-order record under the delegation program.
func DeriveDelegationPDAs(delegationProgram ledger.Address, record ledger.Address) DelegationPDAs {
	buffer, _ := ledger.FindDerivedAddress(delegationProgram, []byte(delegationBufferSeed), record[:])
	rec, _ := ledger.FindDerivedAddress(delegationProgram, []byte(delegationRecordSeed), record[:])
	meta, _ := ledger.FindDerivedAddress(delegationProgram, []byte(delegationMetadataSeed), record[:])
	return DelegationPDAs{Buffer: buffer, Record: rec, Metadata: meta}
}

// DeriveEscrowAddress returns the fee/rent escrow a delegated session
// consumes while operating on the execution layer.
func DeriveEscrowAddress(delegationProgram ledger.Address, authority ledger.Address) (ledger.Address, uint8) {
	return ledger.FindDerivedAddress(delegationProgram, []byte("escrow"), authority[:])
}
