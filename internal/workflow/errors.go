package workflow

import "errors"

// Engine error taxonomy. Callers match with errors.Is; the HTTP layer maps
// each to a status code.
var (
	// ErrNotFound means the workflow ID is unknown
	ErrNotFound = errors.New("workflow not found")

	// ErrInvalidState means the operation is not legal in the workflow's
	// current phase/status, for example resuming outside the service
	// pending boundary
	ErrInvalidState = errors.New("workflow in invalid state for operation")

	// ErrCollaboratorUnavailable means a downstream collaborator call
	// failed or timed out
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrValidation means the input at a phase boundary is malformed
	ErrValidation = errors.New("validation failed")
)
