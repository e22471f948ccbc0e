package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessingState(t *testing.T) {
	s := NewProcessingState("ord-1")

	assert.Equal(t, "ord-1", s.OrderID)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, int64(-1), s.Version)
	assert.Zero(t, s.AttemptCount)
}

func TestApplySuccess(t *testing.T) {
	s := NewProcessingState("ord-1")

	require.True(t, s.Apply(Outcome{Success: true}, 0))

	assert.Equal(t, StatusSuccess, s.Status)
	assert.Equal(t, int64(0), s.Version)
	assert.Equal(t, 1, s.AttemptCount)
	assert.Empty(t, s.LastError)
}

func TestApplyFailureRecordsReason(t *testing.T) {
	s := NewProcessingState("ord-1")

	require.True(t, s.Apply(Outcome{Success: false, Reason: "embargo:teapot"}, 0))

	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "embargo:teapot", s.LastError)
}

func TestApplyVersionGate(t *testing.T) {
	s := NewProcessingState("ord-1")
	require.True(t, s.Apply(Outcome{Success: false, Reason: "processing_error"}, 2))

	// Stale and equal versions are rejected without touching the state.
	assert.False(t, s.Apply(Outcome{Success: true}, 2))
	assert.False(t, s.Apply(Outcome{Success: true}, 1))
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, 1, s.AttemptCount)

	// A newer version clears the previous error.
	require.True(t, s.Apply(Outcome{Success: true}, 3))
	assert.Equal(t, StatusSuccess, s.Status)
	assert.Empty(t, s.LastError)
	assert.Equal(t, 2, s.AttemptCount)
}

func TestPolicyEmbargo(t *testing.T) {
	p := NewRandomPolicy(1.0, []string{"pineapple_pizza", " teapot "})

	out := p.Evaluate("ord-1", []string{"laptop", "teapot", "pineapple_pizza"})
	require.False(t, out.Success)
	// The first offending sku in item order names the reason.
	assert.Equal(t, "embargo:teapot", out.Reason)
}

func TestPolicyAlwaysSucceeds(t *testing.T) {
	p := NewRandomPolicy(1.0, nil)

	for _, id := range []string{"a", "b", "c", "ord-42"} {
		out := p.Evaluate(id, []string{"laptop"})
		assert.True(t, out.Success, "order %s", id)
	}
}

func TestPolicyAlwaysFails(t *testing.T) {
	p := NewRandomPolicy(0.0, nil)

	out := p.Evaluate("ord-1", []string{"laptop"})
	require.False(t, out.Success)
	assert.Equal(t, "processing_error", out.Reason)
}

func TestPolicyDeterministicPerOrder(t *testing.T) {
	p := NewRandomPolicy(0.5, nil)

	first := p.Evaluate("ord-1", []string{"laptop"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Evaluate("ord-1", []string{"laptop"}))
	}
}

func TestPolicyApproximatesSuccessProb(t *testing.T) {
	p := NewRandomPolicy(0.8, nil)

	success := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if p.Evaluate(randomishID(i), nil).Success {
			success++
		}
	}

	ratio := float64(success) / n
	assert.InDelta(t, 0.8, ratio, 0.05)
}

func randomishID(i int) string {
	return string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('0'+i%10))
}
