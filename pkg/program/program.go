// Package program implements the transition validator for ghost-order
// records. Every status change flows through here, atomically per record,
// so the ledger itself is the at-most-once source of truth: a keeper's
// local bookkeeping is never what prevents a double execution.
package program

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/util"
)

var (
	ErrRecordNotFound = errors.New("ghost order record not found")
	ErrRecordExists   = errors.New("ghost order record already exists")
	ErrWrongStatus    = errors.New("transition not allowed from current status")
	ErrNotDelegated   = errors.New("record is not delegated to the execution layer")
	ErrUnauthorized   = errors.New("caller is not the record owner")
	ErrBadReveal      = errors.New("revealed parameters do not match commitment")
	ErrGraceExpired   = errors.New("ready window expired before execution")
	ErrOrderExpired   = errors.New("order expired")
	ErrNotTriggered   = errors.New("trigger condition not satisfied")
)

// Runtime is the pair of ledger layers a program instance operates on.
type Runtime struct {
	// Base is the permanent ledger where final, binding state is recorded.
	Base *ledger.Store

	// Exec is the delegated execution layer where intermediate transitions
	// happen before being reconciled back to Base.
	Exec *ledger.Store
}

// Program validates and applies ghost-order transitions.
type Program struct {
	// ID owns record accounts while they are not delegated.
	ID ledger.Address

	DelegationProgram   ledger.Address
	DelegationAuthority ledger.Address

	// GracePeriod is the keeper's window between Triggered and forced
	// expiry: readyExpiresAt = triggeredAt + GracePeriod.
	GracePeriod time.Duration

	Clock util.Clock

	// mu makes each transition a single atomic read-modify-write. Two
	// racing execution attempts on the same record serialize here; the
	// loser observes Executed and fails with ErrWrongStatus.
	mu sync.Mutex
}

// CreateArgs are the owner-supplied fields of a new ghost order. The
// sensitive parameters arrive only as their commitment.
type CreateArgs struct {
	Owner            ledger.Address
	OrderID          uint64
	MarketIndex      uint16
	TriggerPrice     uint64
	TriggerCondition trigger.Condition
	Expiry           int64
	FeedID           [32]byte
	DriftUser        ledger.Address
	ParamsCommitment [32]byte
}

// CreateGhostOrder writes a Pending record to the base layer, owned by the
// program. Returns the derived record address.
func (p *Program) CreateGhostOrder(rt *Runtime, args CreateArgs) (ledger.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !args.TriggerCondition.Valid() {
		return ledger.Address{}, fmt.Errorf("invalid trigger condition %d", args.TriggerCondition)
	}

	addr, bump := ghost.DeriveOrderAddress(p.ID, args.Owner, args.OrderID)
	existing, err := rt.Base.Get(addr)
	if err != nil {
		return ledger.Address{}, err
	}
	if existing != nil {
		return ledger.Address{}, fmt.Errorf("%w: %s", ErrRecordExists, addr.Hex())
	}

	delegatePda, delegateBump := ledger.FindDerivedAddress(p.DelegationProgram, []byte("delegate"), addr[:])

	rec := &ghost.GhostOrderRecord{
		Owner:            args.Owner,
		OrderID:          args.OrderID,
		MarketIndex:      args.MarketIndex,
		TriggerPrice:     args.TriggerPrice,
		TriggerCondition: args.TriggerCondition,
		Status:           ghost.StatusPending,
		CreatedAt:        p.Clock.Now().Unix(),
		Expiry:           args.Expiry,
		FeedID:           args.FeedID,
		Bump:             bump,
		ParamsCommitment: args.ParamsCommitment,
		DelegatePda:      delegatePda,
		DelegateBump:     delegateBump,
		DriftUser:        args.DriftUser,
	}

	acc := &ledger.Account{Key: addr, Authority: p.ID, Data: rec.Encode()}
	if err := rt.Base.Put(acc); err != nil {
		return ledger.Address{}, err
	}
	return addr, nil
}

// Delegate transfers record authority to the delegation authority and
// mirrors the account onto the execution layer. All-or-nothing: a failure
// at any step leaves the base-layer record untouched until the final
// authority flip.
func (p *Program) Delegate(rt *Runtime, recordAddr ledger.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, err := rt.Base.Get(recordAddr)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordAddr.Hex())
	}
	rec, ok := ghost.Decode(acc.Data)
	if !ok {
		return fmt.Errorf("account %s is not a ghost order record", recordAddr.Hex())
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: status %s", ErrWrongStatus, rec.Status)
	}

	mirror := &ledger.Account{Key: recordAddr, Authority: p.DelegationAuthority, Data: acc.Data}
	if err := rt.Exec.Put(mirror); err != nil {
		return err
	}
	return rt.Base.SetAuthority(recordAddr, p.DelegationAuthority)
}

// CommitAndUndelegate reconciles execution-layer state back to the base
// layer and restores program ownership, for each record in the batch.
func (p *Program) CommitAndUndelegate(rt *Runtime, records ...ledger.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, addr := range records {
		if err := p.undelegateLocked(rt, addr); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) undelegateLocked(rt *Runtime, addr ledger.Address) error {
	acc, err := rt.Exec.Get(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w on execution layer: %s", ErrRecordNotFound, addr.Hex())
	}

	base := &ledger.Account{Key: addr, Authority: p.ID, Data: acc.Data, Lamports: acc.Lamports}
	if err := rt.Base.Put(base); err != nil {
		return err
	}
	return rt.Exec.Delete(addr)
}

// Activate moves a delegated Pending record to Active on the execution
// layer. Re-activating an already-Active record is a no-op, not an error.
func (p *Program) Activate(rt *Runtime, recordAddr ledger.Address, crankTaskID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, rec, err := p.delegatedRecord(rt, recordAddr)
	if err != nil {
		return err
	}

	switch rec.Status {
	case ghost.StatusActive:
		return nil
	case ghost.StatusPending:
		rec.Status = ghost.StatusActive
		rec.CrankTaskID = crankTaskID
		acc.Data = rec.Encode()
		return rt.Exec.Put(acc)
	default:
		return fmt.Errorf("%w: activate from %s", ErrWrongStatus, rec.Status)
	}
}

// CheckTrigger evaluates an oracle price against an Active record. On
// trigger it stamps triggeredAt and computes readyExpiresAt. Records whose
// overall expiry has passed are swept to Expired here, whichever of
// Pending/Active they were stuck in.
func (p *Program) CheckTrigger(rt *Runtime, recordAddr ledger.Address, price uint64) (ghost.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, rec, err := p.delegatedRecord(rt, recordAddr)
	if err != nil {
		return 0, err
	}

	now := p.Clock.Now()

	if rec.Status == ghost.StatusPending || rec.Status == ghost.StatusActive {
		if now.Unix() > rec.Expiry {
			rec.Status = ghost.StatusExpired
			acc.Data = rec.Encode()
			if err := rt.Exec.Put(acc); err != nil {
				return 0, err
			}
			return ghost.StatusExpired, nil
		}
	}

	if rec.Status != ghost.StatusActive {
		return rec.Status, fmt.Errorf("%w: check_trigger from %s", ErrWrongStatus, rec.Status)
	}

	if !trigger.ShouldTrigger(price, rec.TriggerPrice, rec.TriggerCondition) {
		return ghost.StatusActive, ErrNotTriggered
	}

	rec.Status = ghost.StatusTriggered
	rec.TriggeredAt = now.Unix()
	rec.ReadyExpiresAt = now.Add(p.GracePeriod).Unix()
	acc.Data = rec.Encode()
	if err := rt.Exec.Put(acc); err != nil {
		return 0, err
	}
	return ghost.StatusTriggered, nil
}

// ExecuteTrigger consumes a Triggered record. It succeeds only if the
// revealed parameters verify against the stored commitment and the ready
// window has not lapsed. On success the revealed plaintext is persisted
// (the record is post-reveal from here on) and, unless redelegate is set,
// the record is committed back to the base layer in its terminal state.
func (p *Program) ExecuteTrigger(rt *Runtime, recordAddr ledger.Address, params commitment.OrderParams, nonce uint64, price uint64, redelegate bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, rec, err := p.delegatedRecord(rt, recordAddr)
	if err != nil {
		return err
	}

	if rec.Status != ghost.StatusTriggered {
		return fmt.Errorf("%w: execute from %s", ErrWrongStatus, rec.Status)
	}

	now := p.Clock.Now().Unix()
	if now > rec.ReadyExpiresAt {
		rec.Status = ghost.StatusExpired
		acc.Data = rec.Encode()
		if err := rt.Exec.Put(acc); err != nil {
			return err
		}
		return ErrGraceExpired
	}

	if !commitment.Verify(params, nonce, rec.ParamsCommitment[:]) {
		return ErrBadReveal
	}

	rec.Status = ghost.StatusExecuted
	rec.ExecutedAt = now
	rec.ExecutionPrice = price
	rec.OrderSide = params.Side
	rec.BaseAssetAmount = params.BaseAssetAmount
	rec.ReduceOnly = params.ReduceOnly
	rec.MarketIndex = params.MarketIndex
	rec.Nonce = nonce
	acc.Data = rec.Encode()
	if err := rt.Exec.Put(acc); err != nil {
		return err
	}

	if !redelegate {
		return p.undelegateLocked(rt, recordAddr)
	}
	return nil
}

// Cancel is owner-initiated only and allowed any time before Triggered.
// It acts on whichever layer currently holds the live record.
func (p *Program) Cancel(rt *Runtime, recordAddr, caller ledger.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := rt.Exec
	acc, err := st.Get(recordAddr)
	if err != nil {
		return err
	}
	if acc == nil {
		st = rt.Base
		acc, err = st.Get(recordAddr)
		if err != nil {
			return err
		}
	}
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordAddr.Hex())
	}

	rec, ok := ghost.Decode(acc.Data)
	if !ok {
		return fmt.Errorf("account %s is not a ghost order record", recordAddr.Hex())
	}
	if rec.Owner != caller {
		return ErrUnauthorized
	}
	if rec.Status != ghost.StatusPending && rec.Status != ghost.StatusActive {
		return fmt.Errorf("%w: cancel from %s", ErrWrongStatus, rec.Status)
	}

	rec.Status = ghost.StatusCancelled
	acc.Data = rec.Encode()
	return st.Put(acc)
}

// TopUpEscrow credits the session escrow on the base layer, creating the
// escrow account on first use.
func (p *Program) TopUpEscrow(rt *Runtime, escrow, authority ledger.Address, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, err := rt.Base.Get(escrow)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &ledger.Account{Key: escrow, Authority: authority}
	}
	acc.Lamports += amount
	return rt.Base.Put(acc)
}

// delegatedRecord loads a record from the execution layer and checks it is
// actually delegated. Callers hold p.mu.
func (p *Program) delegatedRecord(rt *Runtime, addr ledger.Address) (*ledger.Account, *ghost.GhostOrderRecord, error) {
	acc, err := rt.Exec.Get(addr)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotDelegated, addr.Hex())
	}
	if acc.Authority != p.DelegationAuthority {
		return nil, nil, fmt.Errorf("%w: authority %s", ErrNotDelegated, acc.Authority.Hex())
	}
	rec, ok := ghost.Decode(acc.Data)
	if !ok {
		return nil, nil, fmt.Errorf("account %s is not a ghost order record", addr.Hex())
	}
	return acc, rec, nil
}
