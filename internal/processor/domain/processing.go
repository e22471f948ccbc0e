// Package domain holds the processing-state aggregate and the decision
// policy for incoming orders.
package domain

import "errors"

// ErrNotFound is returned by repositories when no processing state exists
// for an order.
var ErrNotFound = errors.New("processing state not found")

type ProcessingStatus string

const (
	StatusPending ProcessingStatus = "pending"
	StatusSuccess ProcessingStatus = "success"
	StatusFailed  ProcessingStatus = "failed"
)

// ProcessingState tracks the processor's view of one order. Version is the
// version of the last order.created event applied; a state only moves
// forward, stale versions are rejected by the caller via the version gate.
type ProcessingState struct {
	OrderID      string
	Status       ProcessingStatus
	Version      int64
	AttemptCount int
	LastError    string
}

// NewProcessingState starts a pending state for an order not seen before.
func NewProcessingState(orderID string) *ProcessingState {
	return &ProcessingState{
		OrderID: orderID,
		Status:  StatusPending,
		Version: -1,
	}
}

// Apply records the outcome of one processing attempt at the given version.
// It returns false when version does not advance the state, leaving the
// aggregate untouched.
func (s *ProcessingState) Apply(outcome Outcome, version int64) bool {
	if version <= s.Version {
		return false
	}

	s.AttemptCount++
	s.Version = version
	if outcome.Success {
		s.Status = StatusSuccess
		s.LastError = ""
	} else {
		s.Status = StatusFailed
		s.LastError = outcome.Reason
	}
	return true
}
