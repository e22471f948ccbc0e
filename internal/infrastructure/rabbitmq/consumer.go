package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrBadMessage marks a delivery as poison: it is nacked without requeue
// so the queue's DLX binding routes it to the DLQ.
var ErrBadMessage = errors.New("bad message")

// Handler applies one delivery body. The consumer is bound to a single
// routing key, so the handler knows which payload shape to expect.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

type HandlerFunc func(ctx context.Context, body []byte) error

func (f HandlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }

type ConsumerConfig struct {
	BrokerURL  string
	RoutingKey string
	Prefetch   int
	Tag        string

	// MaxRetries bounds redeliveries tracked via the x-retry-count
	// header; once reached the message is dead-lettered.
	MaxRetries int

	DrainTimeout time.Duration
}

// republisher is the slice of *amqp.Channel the retry path needs.
type republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer subscribes one durable queue and feeds deliveries to a handler
// with bounded retries. Up to Prefetch messages are in flight at once.
type Consumer struct {
	cfg     ConsumerConfig
	handler Handler
	lg      zerolog.Logger

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}

	conn       *amqp.Connection
	ch         *amqp.Channel
	pub        republisher
	deliveries <-chan amqp.Delivery
}

func NewConsumer(cfg ConsumerConfig, h Handler, lg zerolog.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.Tag == "" {
		cfg.Tag = QueueName(cfg.RoutingKey)
	}
	return &Consumer{
		cfg:     cfg,
		handler: h,
		lg: lg.With().
			Str("component", "rabbitmq_consumer").
			Str("routing_key", cfg.RoutingKey).
			Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if c.handler == nil {
		return fmt.Errorf("nil handler")
	}

	c.doneCh = make(chan struct{})
	c.running = true
	go c.run(ctx)
	return nil
}

// Stop closes the broker connection and waits for in-flight handlers.
// Unacked deliveries are requeued by the broker when the channel closes.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	doneCh := c.doneCh
	c.running = false
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		doneCh := c.doneCh
		c.doneCh = nil
		c.running = false
		c.mu.Unlock()

		if doneCh != nil {
			close(doneCh)
		}
	}()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consumer supervisor exiting (ctx cancelled)")
			return
		default:
		}

		if !c.isRunning() {
			c.lg.Info().Msg("consumer supervisor exiting (stopped)")
			return
		}

		if err := c.connectAndDeclare(); err != nil {
			c.lg.Error().Err(err).Dur("backoff", backoff).Msg("connect failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 1 * time.Second
		c.consumeLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if !c.isRunning() {
			return
		}

		c.lg.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		c.closeConn()

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) connectAndDeclare() error {
	c.closeConn()

	conn, err := amqp.Dial(c.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	if err := DeclareTopology(ch, c.cfg.RoutingKey); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("qos: %w", err)
	}

	queue := QueueName(c.cfg.RoutingKey)
	dlv, err := ch.Consume(queue, c.cfg.Tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("consume: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.pub = ch
	c.deliveries = dlv
	c.mu.Unlock()

	c.lg.Info().
		Str("queue", queue).
		Int("prefetch", c.cfg.Prefetch).
		Msg("consumer ready")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.cfg.Prefetch)

	defer func() {
		// Drain: wait for in-flight handlers to commit or roll back.
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(c.cfg.DrainTimeout):
			c.lg.Warn().Msg("drain timeout; unacked deliveries will be requeued")
		}
	}()

	c.mu.Lock()
	deliveries := c.deliveries
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consume loop context cancelled")
			return

		case d, ok := <-deliveries:
			if !ok {
				return
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				c.handleDelivery(ctx, d)
			}(d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	err := c.handler.Handle(ctx, d.Body)

	if err == nil {
		_ = d.Ack(false)
		c.lg.Debug().Dur("took", time.Since(start)).Msg("message processed")
		return
	}

	if errors.Is(err, ErrBadMessage) {
		// Poison: DLX binding routes it to the DLQ.
		_ = d.Nack(false, false)
		c.lg.Error().Err(err).Msg("poison message; dead-lettered")
		return
	}

	attempt := retryCountFrom(d.Headers) + 1
	if attempt >= c.cfg.MaxRetries {
		_ = d.Nack(false, false)
		c.lg.Error().Err(err).Int("attempt", attempt).Msg("retries exhausted; dead-lettered")
		return
	}

	if repubErr := c.republish(ctx, d, attempt); repubErr != nil {
		// Could not schedule a retry; hand the message back to the broker.
		_ = d.Nack(false, true)
		c.lg.Warn().Err(repubErr).Msg("republish failed; requeued")
		return
	}
	_ = d.Ack(false)
	c.lg.Warn().Err(err).Int("attempt", attempt).Msg("handle failed; retry scheduled")
}

// republish puts the delivery back on its own queue with an incremented
// x-retry-count header, which is how attempts survive restarts.
func (c *Consumer) republish(ctx context.Context, d amqp.Delivery, attempt int) error {
	c.mu.Lock()
	pub := c.pub
	c.mu.Unlock()
	if pub == nil {
		return errors.New("channel not ready")
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int64(attempt)

	return pub.PublishWithContext(
		ctx,
		"", // default exchange routes straight to the queue
		QueueName(c.cfg.RoutingKey),
		false,
		false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			MessageId:    d.MessageId,
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         d.Body,
		},
	)
}

func retryCountFrom(h amqp.Table) int {
	if h == nil {
		return 0
	}
	v, ok := h["x-retry-count"]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	default:
		return 0
	}
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.pub = nil
	c.deliveries = nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
