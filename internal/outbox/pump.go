// Package outbox implements the background pump that drains the outbox
// table to the broker. The pump never loses a row: rows are marked
// published only after the broker acknowledged the publish, so a crash in
// between produces a duplicate that the consumer-side inbox absorbs.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"order-pipeline/internal/metrics"
)

// Row is one claimed outbox row.
type Row struct {
	ID         int64
	EventType  string
	Payload    []byte
	RetryCount int
}

// MessageID derives the stable broker message id from the row id.
func (r Row) MessageID() string { return fmt.Sprintf("outbox-%d", r.ID) }

type Store interface {
	ClaimPending(ctx context.Context, limit int) ([]Row, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastErr string) error
	MarkDead(ctx context.Context, id int64, lastErr string) error

	// RecordError notes lastErr without touching retry_count, for
	// failures past the retry bound that must leave the row claimable.
	RecordError(ctx context.Context, id int64, lastErr string) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
	PublishDLQ(ctx context.Context, routingKey, messageID string, body []byte, reason string) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

type Pump struct {
	store Store
	pub   Publisher
	cfg   Config
	lg    zerolog.Logger
}

func NewPump(store Store, pub Publisher, cfg Config, lg zerolog.Logger) *Pump {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Pump{
		store: store,
		pub:   pub,
		cfg:   cfg,
		lg:    lg.With().Str("component", "outbox_pump").Logger(),
	}
}

// Run polls until ctx is cancelled. A full batch loops immediately; an
// empty or partial batch sleeps for the poll interval. Transient store or
// broker failures are swallowed and retried on the next cycle.
func (p *Pump) Run(ctx context.Context) {
	var lastErr string
	var lastAt time.Time

	for {
		n, err := p.ProcessBatch(ctx)
		if err != nil {
			if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
				p.lg.Warn().Err(err).Msg("outbox batch failed")
				lastErr = err.Error()
				lastAt = time.Now()
			}
		} else {
			lastErr = ""
		}

		if n == p.cfg.BatchSize {
			// backlog: keep draining without sleeping
			continue
		}

		t := time.NewTimer(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			p.lg.Info().Msg("stopped")
			return
		case <-t.C:
		}
	}
}

// ProcessBatch claims and publishes one batch, returning how many rows
// were claimed.
func (p *Pump) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := p.store.ClaimPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, row := range batch {
		p.publishRow(ctx, row)
	}
	return len(batch), nil
}

func (p *Pump) publishRow(ctx context.Context, row Row) {
	err := p.pub.Publish(ctx, row.EventType, row.MessageID(), row.Payload)
	if err == nil {
		if markErr := p.store.MarkPublished(ctx, row.ID); markErr != nil {
			// Row stays pending; the next cycle republishes and the
			// consumer inbox deduplicates.
			p.lg.Warn().Err(markErr).Int64("outbox_id", row.ID).Msg("mark published failed")
			return
		}
		metrics.RecordEventPublished()
		p.lg.Info().
			Int64("outbox_id", row.ID).
			Str("event_type", row.EventType).
			Msg("published")
		return
	}

	metrics.RecordEventFailed()
	attempt := row.RetryCount + 1

	if attempt >= p.cfg.MaxRetries {
		if dlqErr := p.pub.PublishDLQ(ctx, row.EventType, row.MessageID(), row.Payload, err.Error()); dlqErr != nil {
			// DLQ unreachable too; leave the row claimable without
			// pushing retry_count past the bound.
			_ = p.store.RecordError(ctx, row.ID, err.Error())
			p.lg.Error().Err(dlqErr).Int64("outbox_id", row.ID).Msg("dlq publish failed")
			return
		}
		_ = p.store.MarkDead(ctx, row.ID, err.Error())
		metrics.RecordEventMovedToDLQ()
		p.lg.Error().
			Int64("outbox_id", row.ID).
			Str("event_type", row.EventType).
			Int("attempt", attempt).
			Msg("outbox moved to DLQ")
		return
	}

	_ = p.store.MarkFailed(ctx, row.ID, err.Error())
	p.lg.Warn().
		Err(err).
		Int64("outbox_id", row.ID).
		Str("event_type", row.EventType).
		Int("attempt", attempt).
		Msg("publish failed; will retry")
}
