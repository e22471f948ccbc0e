package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Wait window for Return / Confirm after a publish.
const publishWait = 300 * time.Millisecond

// Publisher publishes outbox payloads to the topic exchange with
// publisher confirms and mandatory returns enabled. A nil confirm or a
// NO_ROUTE return is surfaced as an error so the outbox pump can retry.
type Publisher struct {
	url         string
	routingKeys []string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url string, routingKeys ...string) (*Publisher, error) {
	p := &Publisher{
		url:         strings.TrimSpace(url),
		routingKeys: routingKeys,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := DeclareTopology(ch, p.routingKeys...); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	return nil
}

// closeLocked drops the connection and channel. Callers hold p.mu.
func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.confirmCh = nil
	p.returnCh = nil
}

// Healthy reports whether the broker connection is open. Used by /health.
func (p *Publisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

// Publish sends a payload to the topic exchange. messageID MUST be stable
// across retries (derived from the outbox row id).
func (p *Publisher) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	return p.publish(ctx, Exchange, routingKey, messageID, body, nil)
}

// PublishDLQ routes an exhausted payload to the dead letter exchange,
// recording the last publish error in the x-death-reason header.
func (p *Publisher) PublishDLQ(ctx context.Context, routingKey, messageID string, body []byte, reason string) error {
	headers := amqp.Table{"x-death-reason": reason}
	return p.publish(ctx, DLXExchange, DLQName(routingKey), messageID, body, headers)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey, messageID string, body []byte, headers amqp.Table) error {
	if routingKey == "" {
		return errors.New("missing routingKey")
	}
	if strings.TrimSpace(messageID) == "" {
		return errors.New("missing messageID")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	seq := p.ch.GetNextPublishSeqNo()

	err := p.ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    messageID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	if err := awaitConfirm(ctx, p.confirmCh, p.returnCh, seq, publishWait); err != nil {
		// The confirm for this publish may still arrive later. Drop the
		// channel so a stale confirmation cannot be read as the ack of a
		// newer publish; the next publish reconnects.
		p.closeLocked()
		return err
	}
	return nil
}

// awaitConfirm waits for the broker's verdict on the publish with the
// given sequence number. Confirmations for earlier publishes (left over
// from a timed-out wait) are discarded instead of being miscounted as
// this publish's ack.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, returns <-chan amqp.Return, seq uint64, wait time.Duration) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		select {
		case ret := <-returns:
			return errors.New("NO_ROUTE: " + ret.RoutingKey)
		case conf := <-confirms:
			if conf.DeliveryTag < seq {
				continue // stale confirm from a previous publish
			}
			if !conf.Ack {
				return errors.New("publish nack")
			}
			return nil
		case <-deadline.C:
			return errors.New("confirm timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
