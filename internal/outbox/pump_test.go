package outbox

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pending []Row

	published []int64
	failed    map[int64]string
	dead      map[int64]string
	noted     map[int64]string

	claimErr error
}

func newFakeStore(rows ...Row) *fakeStore {
	return &fakeStore{
		pending: rows,
		failed:  map[int64]string{},
		dead:    map[int64]string{},
		noted:   map[int64]string{},
	}
}

func (s *fakeStore) ClaimPending(_ context.Context, limit int) ([]Row, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if len(s.pending) <= limit {
		out := s.pending
		s.pending = nil
		return out, nil
	}
	out := s.pending[:limit]
	s.pending = s.pending[limit:]
	return out, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, lastErr string) error {
	s.failed[id] = lastErr
	return nil
}

func (s *fakeStore) MarkDead(_ context.Context, id int64, lastErr string) error {
	s.dead[id] = lastErr
	return nil
}

func (s *fakeStore) RecordError(_ context.Context, id int64, lastErr string) error {
	s.noted[id] = lastErr
	return nil
}

type published struct {
	routingKey string
	messageID  string
	reason     string
}

type fakePublisher struct {
	err    error
	dlqErr error

	sent []published
	dlq  []published
}

func (p *fakePublisher) Publish(_ context.Context, routingKey, messageID string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{routingKey: routingKey, messageID: messageID})
	return nil
}

func (p *fakePublisher) PublishDLQ(_ context.Context, routingKey, messageID string, _ []byte, reason string) error {
	if p.dlqErr != nil {
		return p.dlqErr
	}
	p.dlq = append(p.dlq, published{routingKey: routingKey, messageID: messageID, reason: reason})
	return nil
}

func newTestPump(store Store, pub Publisher, cfg Config) *Pump {
	return NewPump(store, pub, cfg, zerolog.New(io.Discard))
}

func TestProcessBatchPublishes(t *testing.T) {
	store := newFakeStore(
		Row{ID: 1, EventType: "order.created", Payload: []byte(`{}`)},
		Row{ID: 2, EventType: "order.processed", Payload: []byte(`{}`)},
	)
	pub := &fakePublisher{}
	pump := newTestPump(store, pub, Config{})

	n, err := pump.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []int64{1, 2}, store.published)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "order.created", pub.sent[0].routingKey)
	assert.Equal(t, "outbox-1", pub.sent[0].messageID)
	assert.Empty(t, store.failed)
	assert.Empty(t, store.dead)
}

func TestProcessBatchMarksFailed(t *testing.T) {
	store := newFakeStore(Row{ID: 7, EventType: "order.created", Payload: []byte(`{}`)})
	pub := &fakePublisher{err: errors.New("broker gone")}
	pump := newTestPump(store, pub, Config{MaxRetries: 3})

	n, err := pump.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Empty(t, store.published)
	assert.Empty(t, store.dead)
	assert.Equal(t, "broker gone", store.failed[7])
}

func TestProcessBatchMovesToDLQAtMaxRetries(t *testing.T) {
	store := newFakeStore(Row{ID: 7, EventType: "order.created", Payload: []byte(`{}`), RetryCount: 2})
	pub := &fakePublisher{err: errors.New("broker gone")}
	pump := newTestPump(store, pub, Config{MaxRetries: 3})

	_, err := pump.ProcessBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.dlq, 1)
	assert.Equal(t, "order.created", pub.dlq[0].routingKey)
	assert.Equal(t, "broker gone", pub.dlq[0].reason)
	assert.Equal(t, "broker gone", store.dead[7])
	assert.Empty(t, store.failed)
}

func TestProcessBatchDLQUnreachableLeavesRowRetryable(t *testing.T) {
	store := newFakeStore(Row{ID: 7, EventType: "order.created", Payload: []byte(`{}`), RetryCount: 2})
	pub := &fakePublisher{err: errors.New("broker gone"), dlqErr: errors.New("dlq gone")}
	pump := newTestPump(store, pub, Config{MaxRetries: 3})

	_, err := pump.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.dead)
	// retry_count already sits at the bound; only the error is recorded
	// so the row stays claimable without breaching it.
	assert.Empty(t, store.failed)
	assert.Equal(t, "broker gone", store.noted[7])
}

func TestProcessBatchClaimError(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("db down")
	pump := newTestPump(store, &fakePublisher{}, Config{})

	n, err := pump.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRespectsBatchSize(t *testing.T) {
	store := newFakeStore(
		Row{ID: 1, EventType: "order.created"},
		Row{ID: 2, EventType: "order.created"},
		Row{ID: 3, EventType: "order.created"},
	)
	pump := newTestPump(store, &fakePublisher{}, Config{BatchSize: 2})

	n, err := pump.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = pump.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1, 2, 3}, store.published)
}
