// Package events fans settlement outcomes out to NATS so vault/UI layers
// can react without polling the ledger. Messages are advisory: the ledger
// record stays the authoritative outcome.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/keeper"
)

const (
	SubjectOrderExecuted = "ghost.orders.executed"
	SubjectOrderFailed   = "ghost.orders.failed"
)

// OrderEvent is the wire payload for both subjects.
type OrderEvent struct {
	Record         string    `json:"record"`
	Owner          string    `json:"owner"`
	OrderID        uint64    `json:"order_id"`
	MarketIndex    uint16    `json:"market_index"`
	BundleID       string    `json:"bundle_id,omitempty"`
	ExecutionPrice uint64    `json:"execution_price,omitempty"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers one message per execution attempt.
type Publisher interface {
	PublishResult(res keeper.ExecutionResult) error
	Close()
}

// NATSPublisher publishes JSON order events over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// NewOrderEvent maps an execution result to its subject and payload.
func NewOrderEvent(res keeper.ExecutionResult) (string, OrderEvent) {
	ev := OrderEvent{
		Record: res.Address.Hex(),
		At:     res.At,
	}
	if res.Record != nil {
		ev.Owner = res.Record.Owner.Hex()
		ev.OrderID = res.Record.OrderID
		ev.MarketIndex = res.Record.MarketIndex
	}

	if res.Succeeded() {
		ev.BundleID = res.BundleID
		ev.ExecutionPrice = res.ExecutionPrice
		return SubjectOrderExecuted, ev
	}
	ev.Error = res.Err.Error()
	return SubjectOrderFailed, ev
}

func (p *NATSPublisher) PublishResult(res keeper.ExecutionResult) error {
	subject, ev := NewOrderEvent(res)
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Nop drops every event. Used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishResult(keeper.ExecutionResult) error { return nil }
func (Nop) Close()                                     {}

// Pump drains keeper results into a publisher until the context ends or
// the channel closes. Publish failures are logged and dropped.
func Pump(ctx context.Context, ch <-chan keeper.ExecutionResult, pub Publisher, log *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-ch:
			if !ok {
				return
			}
			if err := pub.PublishResult(res); err != nil {
				log.Warnw("event_publish_failed", "record", res.Address.Hex(), "err", err)
			}
		}
	}
}
