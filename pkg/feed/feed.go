// Package feed supplies (price, observedAt) per feed id to the keeper.
// The NATS feed mirrors a price-stream subsystem; the static feed is for
// development and tests.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/util"
)

// ErrNoPrice is returned while no observation for the feed id has arrived.
var ErrNoPrice = fmt.Errorf("no price observed for feed")

// Static returns one fixed price, observed "now", for every feed id.
type Static struct {
	FixedPrice uint64
	Clock      util.Clock
}

func (s Static) Price(context.Context, [32]byte) (uint64, time.Time, error) {
	clock := s.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return s.FixedPrice, clock.Now(), nil
}

// SubjectPrices is the wildcard subject price updates arrive on.
const SubjectPrices = "prices.>"

// PriceUpdate is the wire format of one observation.
type PriceUpdate struct {
	FeedID string `json:"feed_id"` // 32-byte hex
	Price  uint64 `json:"price"`
	At     int64  `json:"at"` // unix seconds
}

type observation struct {
	price uint64
	at    time.Time
}

// NATSFeed caches the latest observation per feed id from a NATS price
// stream. Price never blocks on the network; it serves the cache.
type NATSFeed struct {
	conn *nats.Conn
	sub  *nats.Subscription
	log  *zap.SugaredLogger

	mu     sync.RWMutex
	latest map[[32]byte]observation
}

func ConnectNATS(url string, log *zap.SugaredLogger) (*NATSFeed, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	f := &NATSFeed{
		conn:   conn,
		log:    log,
		latest: map[[32]byte]observation{},
	}
	f.sub, err = conn.Subscribe(SubjectPrices, func(msg *nats.Msg) {
		if err := f.apply(msg.Data); err != nil {
			log.Warnw("price_update_rejected", "subject", msg.Subject, "err", err)
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", SubjectPrices, err)
	}
	return f, nil
}

// apply folds one wire update into the cache.
func (f *NATSFeed) apply(data []byte) error {
	var upd PriceUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return fmt.Errorf("failed to decode price update: %w", err)
	}
	raw, err := hexutil.Decode(upd.FeedID)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("invalid feed id %q", upd.FeedID)
	}
	var id [32]byte
	copy(id[:], raw)

	f.mu.Lock()
	defer f.mu.Unlock()
	// Out-of-order delivery: never let an older observation win.
	if prev, ok := f.latest[id]; ok && prev.at.Unix() > upd.At {
		return nil
	}
	f.latest[id] = observation{price: upd.Price, at: time.Unix(upd.At, 0)}
	return nil
}

func (f *NATSFeed) Price(_ context.Context, feedID [32]byte) (uint64, time.Time, error) {
	f.mu.RLock()
	obs, ok := f.latest[feedID]
	f.mu.RUnlock()
	if !ok {
		return 0, time.Time{}, fmt.Errorf("%w %s", ErrNoPrice, hexutil.Encode(feedID[:]))
	}
	return obs.price, obs.at, nil
}

func (f *NATSFeed) Close() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
	f.conn.Close()
}
