package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// PostgresStore implements WorkflowStore on postgres
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a postgres-backed workflow store
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Upsert inserts or replaces the stored state for the workflow ID
func (s *PostgresStore) Upsert(ctx context.Context, wf *models.Workflow) error {
	data, transitions, err := marshalWorkflow(wf)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_states (
			workflow_id, patient_id, patient_identifier, current_phase,
			status, data, transitions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (workflow_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			patient_identifier = EXCLUDED.patient_identifier,
			current_phase = EXCLUDED.current_phase,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			transitions = EXCLUDED.transitions,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		wf.WorkflowID,
		wf.PatientID,
		wf.PatientIdentifier,
		wf.CurrentPhase.String(),
		wf.Status.String(),
		data,
		transitions,
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to upsert workflow",
			zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}
	return nil
}

// GetByID returns the workflow, or nil without error when unknown
func (s *PostgresStore) GetByID(ctx context.Context, workflowID string) (*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states WHERE workflow_id = $1`
	row := s.db.QueryRowContext(ctx, query, workflowID)

	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to get workflow",
			zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// ListByPatient returns all workflows for a patient, newest first
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states WHERE patient_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, patientID)
}

// ListPendingOlderThan returns workflows parked in (service, pending) whose
// last update is older than the cutoff
func (s *PostgresStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states
		WHERE current_phase = $1 AND status = $2 AND updated_at < $3`
	return s.list(ctx, query, models.PhaseService.String(), models.StatusPending.String(), cutoff)
}

// CountSince aggregates phase and status counts for workflows updated after
// the given time
func (s *PostgresStore) CountSince(ctx context.Context, since time.Time) (map[models.Phase]int, map[models.Status]int, error) {
	query := `SELECT current_phase, status, COUNT(*) FROM workflow_states
		WHERE updated_at >= $1 GROUP BY current_phase, status`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}
