// Package cache provides the fast read tier for workflow state. It is
// written through on every store write and read preferentially; a miss is
// always recoverable from the durable store.
package cache

import (
	"context"

	"github.com/masterlinc/orchestrator/internal/models"
)

// WorkflowCache is a short-TTL key/value cache of workflow state
type WorkflowCache interface {
	// Get returns the cached workflow, or nil without error on a miss
	Get(ctx context.Context, workflowID string) (*models.Workflow, error)

	// Set stores the workflow under its ID with the cache's TTL
	Set(ctx context.Context, wf *models.Workflow) error

	// Delete evicts the workflow from the cache
	Delete(ctx context.Context, workflowID string) error
}
