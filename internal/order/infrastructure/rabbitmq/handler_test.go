package rabbitmq

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mq "order-pipeline/internal/infrastructure/rabbitmq"
	"order-pipeline/internal/order/application"
)

type stubApplier struct {
	calls []application.ApplyProcessedCommand
	err   error
}

func (s *stubApplier) ApplyProcessed(_ context.Context, cmd application.ApplyProcessedCommand) error {
	s.calls = append(s.calls, cmd)
	return s.err
}

func TestHandlerAppliesEvent(t *testing.T) {
	applier := &stubApplier{}
	h := NewOrderProcessedHandler(applier, zerolog.New(io.Discard))

	body := []byte(`{"order_id":"ord-1","status":"failed","fail_reason":"embargo:teapot","version":1}`)
	require.NoError(t, h.Handle(context.Background(), body))

	require.Len(t, applier.calls, 1)
	cmd := applier.calls[0]
	assert.Equal(t, "ord-1", cmd.OrderID)
	assert.Equal(t, "failed", cmd.Status)
	assert.Equal(t, "embargo:teapot", cmd.FailReason)
	assert.Equal(t, int64(1), cmd.Version)
}

func TestHandlerNullFailReason(t *testing.T) {
	applier := &stubApplier{}
	h := NewOrderProcessedHandler(applier, zerolog.New(io.Discard))

	body := []byte(`{"order_id":"ord-1","status":"success","fail_reason":null,"version":1}`)
	require.NoError(t, h.Handle(context.Background(), body))

	require.Len(t, applier.calls, 1)
	assert.Empty(t, applier.calls[0].FailReason)
}

func TestHandlerPoisonMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not-json{{`},
		{"missing order_id", `{"status":"success","version":1}`},
		{"unknown status", `{"order_id":"o","status":"maybe","version":1}`},
		{"negative version", `{"order_id":"o","status":"success","version":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &stubApplier{}
			h := NewOrderProcessedHandler(applier, zerolog.New(io.Discard))

			err := h.Handle(context.Background(), []byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, mq.ErrBadMessage))
			assert.Empty(t, applier.calls)
		})
	}
}

func TestHandlerPropagatesUseCaseError(t *testing.T) {
	applier := &stubApplier{err: errors.New("db down")}
	h := NewOrderProcessedHandler(applier, zerolog.New(io.Discard))

	err := h.Handle(context.Background(), []byte(`{"order_id":"o","status":"success","version":1}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, mq.ErrBadMessage))
}
