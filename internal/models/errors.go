// internal/models/errors.go

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors consumed by handlers to select response codes.
var (
	ErrInvalidTransition = errors.New("invalid alert state transition")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrNoSnapshot        = errors.New("no snapshot available")
)

// ValidationError marks one malformed entity or signal in the inbound
// feed. The offending record is excluded from the next snapshot; the
// cycle itself continues.
type ValidationError struct {
	EntityID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s %s", e.EntityID, e.Field, e.Reason)
}

// ContractViolation marks a predictor result outside its declared bounds.
// Only the offending prediction is discarded, never the whole batch.
type ContractViolation struct {
	PairID string
	Field  string
	Value  float64
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("predictor contract violation for pair %s: %s=%v", e.PairID, e.Field, e.Value)
}
