// Package keeper turns Triggered ghost-order records into Executed ones,
// exactly once, without ever revealing parameters for an order it cannot
// verify. It also cranks activation and trigger checks for delegated
// records, so one keeper instance drives the whole execution-layer
// lifecycle.
package keeper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/program"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/util"
)

// Config are the keeper's operating knobs.
type Config struct {
	PollInterval   time.Duration
	PriceStaleness time.Duration
	TipLamports    uint64

	// RedelegateAfterExecute keeps the record on the execution layer after
	// a successful execution instead of committing it straight back.
	RedelegateAfterExecute bool

	// CodecVersion pins the commitment codec this deployment was built
	// for. Zero means "current binary's version"; anything else must match
	// exactly or construction fails, because a changed serialization
	// silently invalidates every outstanding commitment.
	CodecVersion byte
}

// Options are the injected collaborators.
type Options struct {
	Exec      ledger.Reader
	ProgramID ledger.Address
	Signer    *Signer
	Cache     *ParamsCache
	Submitter BundleSubmitter
	Feed      PriceFeed
	Clock     util.Clock
	Logger    *zap.SugaredLogger
	Metrics   *Metrics
}

// Keeper is a single long-lived polling loop. Poll cycles never overlap:
// each cycle finishes all per-order submissions before the next one is
// scheduled.
type Keeper struct {
	cfg       Config
	exec      ledger.Reader
	programID ledger.Address
	crank     *Signer
	cache     *ParamsCache
	submitter BundleSubmitter
	feed      PriceFeed
	clock     util.Clock
	log       *zap.SugaredLogger
	metrics   *Metrics

	events   chan ExecutionResult
	stopCh   chan struct{}
	stopOnce sync.Once

	taskSeq  atomic.Uint64
	cycles   atomic.Uint64
	executed atomic.Uint64
}

func New(cfg Config, opts Options) (*Keeper, error) {
	if cfg.CodecVersion == 0 {
		cfg.CodecVersion = commitment.CodecVersion
	}
	if err := commitment.CheckVersion(cfg.CodecVersion); err != nil {
		return nil, err
	}
	if opts.Exec == nil || opts.Submitter == nil || opts.Feed == nil {
		return nil, fmt.Errorf("keeper requires a ledger reader, a submitter and a price feed")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("keeper requires a signer")
	}
	if opts.Cache == nil {
		opts.Cache = NewParamsCache()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	return &Keeper{
		cfg:       cfg,
		exec:      opts.Exec,
		programID: opts.ProgramID,
		crank:     opts.Signer,
		cache:     opts.Cache,
		submitter: opts.Submitter,
		feed:      opts.Feed,
		clock:     opts.Clock,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		events:    make(chan ExecutionResult, 256),
		stopCh:    make(chan struct{}),
	}, nil
}

// RegisterOrderParams hands the keeper the plaintext cache entry for a
// record, out-of-band at order-creation time. Losing this entry before
// execution makes the order permanently unexecutable by this instance.
func (k *Keeper) RegisterOrderParams(addr ledger.Address, params commitment.OrderParams, nonce uint64) {
	k.cache.Put(addr, params, nonce)
	if k.metrics != nil {
		k.metrics.CacheSize.Set(float64(k.cache.Len()))
	}
	k.log.Infow("order_params_registered", "record", addr.Hex())
}

// Events streams one ExecutionResult per execution attempt.
func (k *Keeper) Events() <-chan ExecutionResult { return k.events }

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	Cycles       uint64 `json:"cycles"`
	Executed     uint64 `json:"executed"`
	CacheEntries int    `json:"cache_entries"`
}

func (k *Keeper) Stats() Stats {
	return Stats{
		Cycles:       k.cycles.Load(),
		Executed:     k.executed.Load(),
		CacheEntries: k.cache.Len(),
	}
}

// Run drives the poll loop until the context is cancelled or Stop is
// called. Stop halts scheduling but never interrupts an in-flight cycle.
func (k *Keeper) Run(ctx context.Context) error {
	k.log.Infow("keeper_started",
		"poll_interval", k.cfg.PollInterval,
		"tip_lamports", k.cfg.TipLamports,
		"crank", k.crank.Address().Hex(),
	)

	for {
		for _, res := range k.runCycle(ctx) {
			k.publish(res)
		}

		select {
		case <-ctx.Done():
			k.log.Infow("keeper_stopped", "reason", "context", "cycles", k.cycles.Load())
			return ctx.Err()
		case <-k.stopCh:
			k.log.Infow("keeper_stopped", "reason", "stop", "cycles", k.cycles.Load())
			return nil
		case <-k.clock.After(k.cfg.PollInterval):
		}
	}
}

// Stop halts loop scheduling. Safe to call multiple times.
func (k *Keeper) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}

func (k *Keeper) publish(res ExecutionResult) {
	select {
	case k.events <- res:
	default:
		// Nobody draining; the ledger still holds the authoritative
		// outcome, so dropping an event loses nothing binding.
		k.log.Warnw("event_dropped", "record", res.Address.Hex())
	}
}

type candidate struct {
	addr ledger.Address
	rec  *ghost.GhostOrderRecord
}

// runCycle executes one poll cycle and returns the execution results to
// publish. Within a cycle, verification and instruction building are
// synchronous; only submissions block.
func (k *Keeper) runCycle(ctx context.Context) []ExecutionResult {
	start := time.Now()
	k.cycles.Add(1)
	if k.metrics != nil {
		defer func() {
			k.metrics.Cycles.Inc()
			k.metrics.CycleDuration.Observe(time.Since(start).Seconds())
			k.metrics.CacheSize.Set(float64(k.cache.Len()))
		}()
	}

	var pending, active, triggered []candidate
	err := k.exec.Scan(func(acc *ledger.Account) bool {
		rec, ok := ghost.Decode(acc.Data)
		if !ok {
			// Not our record format. Skip silently.
			return true
		}
		c := candidate{addr: acc.Key, rec: rec}
		switch rec.Status {
		case ghost.StatusPending:
			pending = append(pending, c)
		case ghost.StatusActive:
			active = append(active, c)
		case ghost.StatusTriggered:
			triggered = append(triggered, c)
		}
		return true
	})
	if err != nil {
		// Transient RPC-class failure: retry whole cycle next interval.
		k.log.Warnw("scan_failed", "err", err)
		return nil
	}

	for _, c := range pending {
		k.activate(ctx, c)
	}
	for _, c := range active {
		k.checkTrigger(ctx, c)
	}

	results := make([]ExecutionResult, 0, len(triggered))
	for _, c := range triggered {
		if k.metrics != nil {
			k.metrics.Candidates.Inc()
		}
		if res := k.execute(ctx, c); res != nil {
			results = append(results, *res)
		}
	}
	return results
}

func (k *Keeper) activate(ctx context.Context, c candidate) {
	ins := program.BuildActivate(k.programID, c.addr, k.crank.Address(), k.taskSeq.Add(1))
	if _, err := k.submitter.Submit(ctx, []instruction.Instruction{ins}, k.crank, 0); err != nil {
		k.log.Warnw("activate_failed", "record", c.addr.Hex(), "err", err)
		return
	}
	k.log.Infow("order_activated", "record", c.addr.Hex(), "order_id", c.rec.OrderID)
}

func (k *Keeper) checkTrigger(ctx context.Context, c candidate) {
	now := k.clock.Now()

	// Stuck past overall expiry: crank the sweep regardless of price.
	sweep := now.Unix() > c.rec.Expiry

	var price uint64
	if !sweep {
		p, ok := k.freshPrice(ctx, c.rec.FeedID)
		if !ok {
			return
		}
		if !trigger.ShouldTrigger(p, c.rec.TriggerPrice, c.rec.TriggerCondition) {
			return
		}
		price = p
	}

	ins := program.BuildCheckTrigger(k.programID, c.addr, k.crank.Address(), price)
	if _, err := k.submitter.Submit(ctx, []instruction.Instruction{ins}, k.crank, 0); err != nil {
		k.log.Warnw("check_trigger_failed", "record", c.addr.Hex(), "err", err)
		return
	}
	k.log.Infow("trigger_checked", "record", c.addr.Hex(), "price", price, "sweep", sweep)
}

// execute attempts the reveal-and-execute path for one Triggered
// candidate. A nil return means the candidate was skipped without a
// submission attempt.
func (k *Keeper) execute(ctx context.Context, c candidate) *ExecutionResult {
	// Missing cache entry is expected for orders registered with a
	// different keeper instance.
	entry, ok := k.cache.Get(c.addr)
	if !ok {
		k.log.Infow("skip_no_cache_entry", "record", c.addr.Hex())
		k.skip(skipNoCache)
		return nil
	}

	// Verify the cached plaintext against the on-record commitment. A
	// mismatch is a tamper/staleness signal, never executed.
	if !commitment.Verify(entry.Params, entry.Nonce, c.rec.ParamsCommitment[:]) {
		k.log.Warnw("skip_commitment_mismatch", "record", c.addr.Hex(), "order_id", c.rec.OrderID)
		k.skip(skipBadCommitment)
		return nil
	}

	price, ok := k.freshPrice(ctx, c.rec.FeedID)
	if !ok {
		return nil
	}

	// The revealed params and nonce ride in the instruction data. This is
	// the only point they leave the keeper.
	ins := program.BuildExecuteTrigger(
		k.programID, c.addr, k.crank.Address(), c.rec.DriftUser,
		entry.Params, entry.Nonce, price, k.cfg.RedelegateAfterExecute,
	)

	// Atomic tip-prioritized bundle, shrinking the window between reveal
	// and settlement.
	bundleID, err := k.submitter.Submit(ctx, []instruction.Instruction{ins}, k.crank, k.cfg.TipLamports)
	now := k.clock.Now()

	if err != nil {
		// Keep the cache entry; a future cycle retries while the
		// record is still Triggered and unexpired. Once the record leaves
		// Triggered the next scan stops selecting it.
		if k.metrics != nil {
			k.metrics.SubmitFailed.Inc()
		}
		k.log.Warnw("execute_failed", "record", c.addr.Hex(), "err", err)
		return &ExecutionResult{Address: c.addr, Record: c.rec, Err: err, At: now}
	}

	// Executed-once bookkeeping.
	k.cache.Delete(c.addr)
	k.executed.Add(1)
	if k.metrics != nil {
		k.metrics.Executed.Inc()
	}
	k.log.Infow("order_executed", "record", c.addr.Hex(), "order_id", c.rec.OrderID, "bundle", bundleID, "price", price)
	return &ExecutionResult{Address: c.addr, Record: c.rec, BundleID: bundleID, ExecutionPrice: price, At: now}
}

// freshPrice fetches the feed price and enforces the staleness bound. A
// price older than the bound is never passed to the evaluator.
func (k *Keeper) freshPrice(ctx context.Context, feedID [32]byte) (uint64, bool) {
	price, observedAt, err := k.feed.Price(ctx, feedID)
	if err != nil {
		k.log.Warnw("price_feed_error", "err", err)
		k.skip(skipFeedError)
		return 0, false
	}
	if k.clock.Now().Sub(observedAt) > k.cfg.PriceStaleness {
		k.log.Warnw("skip_stale_price", "observed_at", observedAt)
		k.skip(skipStalePrice)
		return 0, false
	}
	return price, true
}

func (k *Keeper) skip(reason string) {
	if k.metrics != nil {
		k.metrics.Skipped.WithLabelValues(reason).Inc()
	}
}
