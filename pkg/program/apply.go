package program

import (
	"fmt"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
)

// Account index conventions, shared by the builders below and Apply.
// Keeping builder and dispatcher in one package prevents the two sides of
// the wire format from drifting.

// BuildCreate encodes a create_ghost_order instruction.
func BuildCreate(programID ledger.Address, args CreateArgs) instruction.Instruction {
	data := instruction.NewBuilder(instruction.NameCreateGhostOrder).
		U64(args.OrderID).
		U16(args.MarketIndex).
		U64(args.TriggerPrice).
		U8(uint8(args.TriggerCondition)).
		I64(args.Expiry).
		Bytes(args.FeedID[:]).
		Bytes(args.ParamsCommitment[:]).
		Address(args.DriftUser).
		Data()

	return instruction.Instruction{
		ProgramID: programID,
		Accounts: []instruction.AccountMeta{
			{Pubkey: args.Owner, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// BuildActivate encodes an activate_order instruction.
func BuildActivate(programID, record, crank ledger.Address, crankTaskID uint64) instruction.Instruction {
	return instruction.Instruction{
		ProgramID: programID,
		Accounts: []instruction.AccountMeta{
			{Pubkey: record, IsWritable: true},
			{Pubkey: crank, IsSigner: true},
		},
		Data: instruction.NewBuilder(instruction.NameActivateOrder).U64(crankTaskID).Data(),
	}
}

// BuildCheckTrigger encodes a check_trigger instruction carrying the
// observed oracle price.
func BuildCheckTrigger(programID, record, crank ledger.Address, price uint64) instruction.Instruction {
	return instruction.Instruction{
		ProgramID: programID,
		Accounts: []instruction.AccountMeta{
			{Pubkey: record, IsWritable: true},
			{Pubkey: crank, IsSigner: true},
		},
		Data: instruction.NewBuilder(instruction.NameCheckTrigger).U64(price).Data(),
	}
}

// BuildExecuteTrigger encodes an execute_trigger instruction. This is the
// only point where the plaintext parameters and nonce appear on the wire.
func BuildExecuteTrigger(programID, record, crank, driftUser ledger.Address, params commitment.OrderParams, nonce, price uint64, redelegate bool) instruction.Instruction {
	data := instruction.NewBuilder(instruction.NameExecuteTrigger).
		Params(params).
		U64(nonce).
		U64(price).
		Bool(redelegate).
		Data()

	return instruction.Instruction{
		ProgramID: programID,
		Accounts: []instruction.AccountMeta{
			{Pubkey: record, IsWritable: true},
			{Pubkey: crank, IsSigner: true},
			{Pubkey: driftUser, IsWritable: true},
		},
		Data: data,
	}
}

// BuildCancel encodes a cancel_order instruction.
func BuildCancel(programID, record, owner ledger.Address) instruction.Instruction {
	return instruction.Instruction{
		ProgramID: programID,
		Accounts: []instruction.AccountMeta{
			{Pubkey: record, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: instruction.NewBuilder(instruction.NameCancelOrder).Data(),
	}
}

// Apply dispatches one instruction against the runtime. It is the local
// equivalent of the execution-layer program entrypoint; the in-process
// bundle submitter feeds it.
func (p *Program) Apply(rt *Runtime, ins instruction.Instruction) error {
	data := ins.Data

	switch {
	case instruction.HasDiscriminator(data, instruction.NameCreateGhostOrder):
		if len(ins.Accounts) < 1 {
			return fmt.Errorf("create_ghost_order: missing owner account")
		}
		r := instruction.NewReader(data)
		args := CreateArgs{
			Owner:            ins.Accounts[0].Pubkey,
			OrderID:          r.U64(),
			MarketIndex:      r.U16(),
			TriggerPrice:     r.U64(),
			TriggerCondition: trigger.Condition(r.U8()),
			Expiry:           r.I64(),
		}
		feed := r.Address()
		copy(args.FeedID[:], feed[:])
		comm := r.Address()
		copy(args.ParamsCommitment[:], comm[:])
		args.DriftUser = r.Address()
		if r.Err() {
			return fmt.Errorf("create_ghost_order: truncated data")
		}
		_, err := p.CreateGhostOrder(rt, args)
		return err

	case instruction.HasDiscriminator(data, instruction.NameActivateOrder):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("activate_order: missing accounts")
		}
		r := instruction.NewReader(data)
		taskID := r.U64()
		if r.Err() {
			return fmt.Errorf("activate_order: truncated data")
		}
		return p.Activate(rt, ins.Accounts[0].Pubkey, taskID)

	case instruction.HasDiscriminator(data, instruction.NameCheckTrigger):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("check_trigger: missing accounts")
		}
		r := instruction.NewReader(data)
		price := r.U64()
		if r.Err() {
			return fmt.Errorf("check_trigger: truncated data")
		}
		_, err := p.CheckTrigger(rt, ins.Accounts[0].Pubkey, price)
		return err

	case instruction.HasDiscriminator(data, instruction.NameExecuteTrigger):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("execute_trigger: missing accounts")
		}
		r := instruction.NewReader(data)
		params := r.Params()
		nonce := r.U64()
		price := r.U64()
		redelegate := r.Bool()
		if r.Err() {
			return fmt.Errorf("execute_trigger: truncated data")
		}
		return p.ExecuteTrigger(rt, ins.Accounts[0].Pubkey, params, nonce, price, redelegate)

	case instruction.HasDiscriminator(data, instruction.NameCancelOrder):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("cancel_order: missing accounts")
		}
		return p.Cancel(rt, ins.Accounts[0].Pubkey, ins.Accounts[1].Pubkey)

	case instruction.HasDiscriminator(data, instruction.NameDelegateGhostOrder):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("delegate_ghost_order: missing accounts")
		}
		return p.Delegate(rt, ins.Accounts[1].Pubkey)

	case instruction.HasDiscriminator(data, instruction.NameCommitAndUndelegate):
		if len(ins.Accounts) < 2 {
			return fmt.Errorf("commit_and_undelegate: missing accounts")
		}
		records := make([]ledger.Address, 0, len(ins.Accounts)-1)
		for _, m := range ins.Accounts[1:] {
			records = append(records, m.Pubkey)
		}
		return p.CommitAndUndelegate(rt, records...)

	case instruction.HasDiscriminator(data, instruction.NameTopUpEscrow):
		if len(ins.Accounts) < 3 {
			return fmt.Errorf("top_up_escrow: missing accounts")
		}
		r := instruction.NewReader(data)
		amount := r.U64()
		if r.Err() {
			return fmt.Errorf("top_up_escrow: truncated data")
		}
		return p.TopUpEscrow(rt, ins.Accounts[1].Pubkey, ins.Accounts[2].Pubkey, amount)

	default:
		return fmt.Errorf("unknown instruction discriminator")
	}
}
