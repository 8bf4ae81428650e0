package keeper

import (
	"context"
	"time"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// PriceFeed supplies the latest price for a feed identifier along with its
// observation time. Staleness is the keeper's problem, not the feed's: the
// keeper drops prices older than its configured bound before evaluating
// anything with them.
type PriceFeed interface {
	Price(ctx context.Context, feedID [32]byte) (price uint64, observedAt time.Time, err error)
}

// ExecutionResult is published once per execution attempt within a poll
// cycle. Err == nil means the bundle was accepted; the vault/UI layer
// reacts to these instead of being called back.
type ExecutionResult struct {
	Address  ledger.Address
	Record   *ghost.GhostOrderRecord
	BundleID string

	// ExecutionPrice is the oracle price the order settled at. Record is
	// the pre-submission snapshot and never carries it.
	ExecutionPrice uint64

	Err error
	At  time.Time
}

func (r ExecutionResult) Succeeded() bool { return r.Err == nil }
