package transaction

import (
	"errors"
	"fmt"
)

var (
	ErrMissingExternalOperationID = errors.New("external operation id is required")
	ErrMissingOperationType       = errors.New("operation type is required")
	ErrNoMovements                = errors.New("at least one movement is required")
)

// Request is the saga's input: the ordered set of movements to apply plus
// the identifiers the saga id is derived from.
type Request struct {
	ProfileID           int64      `json:"profile_id"`
	ExternalOperationID string     `json:"external_operation_id"`
	OperationType       string     `json:"operation_type"`
	AppCaller           string     `json:"app_caller,omitempty"`
	CallbackURL         string     `json:"callback_url,omitempty"`
	Movements           []Movement `json:"movements"`
}

// Validate checks the request is well formed. Validation failures are
// surfaced synchronously at saga start and are never retried.
func (r *Request) Validate() error {
	if r.ExternalOperationID == "" {
		return ErrMissingExternalOperationID
	}
	if r.OperationType == "" {
		return ErrMissingOperationType
	}
	if len(r.Movements) == 0 {
		return ErrNoMovements
	}
	for i, m := range r.Movements {
		if m.Order < 1 {
			return fmt.Errorf("movement %d: order must be >= 1, got %d", i, m.Order)
		}
		if m.SubOrder < 1 {
			return fmt.Errorf("movement %d: sub_order must be >= 1, got %d", i, m.SubOrder)
		}
		if m.Destination == "" {
			return fmt.Errorf("movement %d: destination is required", i)
		}
		if m.Type == "" {
			return fmt.Errorf("movement %d: type is required", i)
		}
	}
	return nil
}

// SortedMovements returns a copy of the request's movements in execution
// order. The request itself is never mutated.
func (r *Request) SortedMovements() []Movement {
	out := make([]Movement, len(r.Movements))
	copy(out, r.Movements)
	SortMovements(out)
	return out
}
