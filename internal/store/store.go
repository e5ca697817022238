// Package store persists workflow state durably. The store is the source
// of truth across restarts; in-memory registry and cache layers sit above
// it and are never authoritative.
package store

import (
	"context"
	"time"

	"github.com/masterlinc/orchestrator/internal/models"
)

// WorkflowStore is the durable workflow state table, keyed by workflow ID.
// Upsert races against no one else: the engine guarantees a single writer
// per workflow, so no optimistic locking is required.
type WorkflowStore interface {
	// Upsert inserts or replaces the stored state for the workflow ID
	Upsert(ctx context.Context, wf *models.Workflow) error

	// GetByID returns the workflow, or nil without error when unknown
	GetByID(ctx context.Context, workflowID string) (*models.Workflow, error)

	// ListByPatient returns all workflows for a patient, newest first
	ListByPatient(ctx context.Context, patientID string) ([]*models.Workflow, error)

	// ListPendingOlderThan returns workflows parked in (service, pending)
	// whose last update is older than the cutoff. Used by the reaper.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Workflow, error)

	// CountSince aggregates phase and status counts for workflows updated
	// after the given time
	CountSince(ctx context.Context, since time.Time) (byPhase map[models.Phase]int, byStatus map[models.Status]int, err error)
}
