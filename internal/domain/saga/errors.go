package saga

import "errors"

// ErrInstanceNotFound indicates no saga was ever created under the id
var ErrInstanceNotFound = errors.New("saga instance not found")

// ErrDuplicateInstance indicates a reuse-policy violation: an instance
// already exists under the id and the policy forbids starting another one.
type ErrDuplicateInstance struct {
	ID string
}

func (e ErrDuplicateInstance) Error() string {
	return "saga instance already exists: " + e.ID
}
