// Package delegate builds the instructions that move a ghost-order record's
// authority between the base layer and the delegated execution layer, and
// funds the escrow a delegated session consumes.
//
// Building an instruction never mutates state; a failed submission leaves
// the prior state unchanged and callers must re-check delegation status
// before assuming success.
package delegate

import (
	"fmt"
	"time"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// Controller holds the fixed program and authority addresses delegation
// operates under.
type Controller struct {
	// GhostProgram owns ghost-order records on the base layer.
	GhostProgram ledger.Address

	// DelegationProgram derives the buffer/record/metadata PDAs.
	DelegationProgram ledger.Address

	// DelegationAuthority owns records while they are delegated. A record
	// is delegated iff its owning authority equals this address.
	DelegationAuthority ledger.Address
}

// BuildDelegate transfers authority of the record to the delegation
// authority. commitFrequency bounds the maximum staleness between
// execution-layer state and a forced reconciliation. Delegation is
// all-or-nothing at the instruction level.
func (c *Controller) BuildDelegate(payer, recordAddr ledger.Address, commitFrequency time.Duration) instruction.Instruction {
	pdas := ghost.DeriveDelegationPDAs(c.DelegationProgram, recordAddr)

	data := instruction.NewBuilder(instruction.NameDelegateGhostOrder).
		U64(uint64(commitFrequency.Milliseconds())).
		Data()

	return instruction.Instruction{
		ProgramID: c.GhostProgram,
		Accounts: []instruction.AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: recordAddr, IsWritable: true},
			{Pubkey: pdas.Buffer, IsWritable: true},
			{Pubkey: pdas.Record, IsWritable: true},
			{Pubkey: pdas.Metadata, IsWritable: true},
			{Pubkey: c.DelegationProgram},
		},
		Data: data,
	}
}

// BuildCommitAndUndelegate synchronizes execution-layer state back to the
// base layer and restores prior ownership for each record in the batch.
func (c *Controller) BuildCommitAndUndelegate(payer ledger.Address, records []ledger.Address) (instruction.Instruction, error) {
	if len(records) == 0 {
		return instruction.Instruction{}, fmt.Errorf("empty undelegation batch")
	}
	// The count rides in a single byte.
	if len(records) > 255 {
		return instruction.Instruction{}, fmt.Errorf("undelegation batch of %d exceeds 255 records", len(records))
	}

	accounts := make([]instruction.AccountMeta, 0, len(records)+1)
	accounts = append(accounts, instruction.AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true})
	for _, rec := range records {
		accounts = append(accounts, instruction.AccountMeta{Pubkey: rec, IsWritable: true})
	}

	data := instruction.NewBuilder(instruction.NameCommitAndUndelegate).
		U8(uint8(len(records))).
		Data()

	return instruction.Instruction{
		ProgramID: c.DelegationProgram,
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// BuildTopUpEscrow funds the fee/rent escrow for a delegated session.
func (c *Controller) BuildTopUpEscrow(escrow, authority, payer ledger.Address, amount uint64) instruction.Instruction {
	data := instruction.NewBuilder(instruction.NameTopUpEscrow).
		U64(amount).
		Data()

	return instruction.Instruction{
		ProgramID: c.DelegationProgram,
		Accounts: []instruction.AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: escrow, IsWritable: true},
			{Pubkey: authority},
		},
		Data: data,
	}
}

// IsDelegated is the external success check: true iff the record's owning
// authority on the given layer equals the delegation authority.
func (c *Controller) IsDelegated(r ledger.Reader, recordAddr ledger.Address) (bool, error) {
	acc, err := r.Get(recordAddr)
	if err != nil {
		return false, fmt.Errorf("failed to read record: %w", err)
	}
	if acc == nil {
		return false, nil
	}
	return acc.Authority == c.DelegationAuthority, nil
}
