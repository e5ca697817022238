package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// SQLiteStore implements WorkflowStore on sqlite
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a sqlite-backed workflow store
func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

// Upsert inserts or replaces the stored state for the workflow ID
func (s *SQLiteStore) Upsert(ctx context.Context, wf *models.Workflow) error {
	data, transitions, err := marshalWorkflow(wf)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_states (
			workflow_id, patient_id, patient_identifier, current_phase,
			status, data, transitions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET
			patient_id = excluded.patient_id,
			patient_identifier = excluded.patient_identifier,
			current_phase = excluded.current_phase,
			status = excluded.status,
			data = excluded.data,
			transitions = excluded.transitions,
			updated_at = excluded.updated_at
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
func (s *SQLiteStore) GetByID(ctx context.Context, workflowID string) (*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states WHERE workflow_id = ?`
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
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string) ([]*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states WHERE patient_id = ? ORDER BY created_at DESC`
	return s.list(ctx, query, patientID)
}

// ListPendingOlderThan returns workflows parked in (service, pending) whose
// last update is older than the cutoff
func (s *SQLiteStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Workflow, error) {
	query := selectColumns + ` FROM workflow_states
		WHERE current_phase = ? AND status = ? AND updated_at < ?`
	return s.list(ctx, query, models.PhaseService.String(), models.StatusPending.String(), cutoff)
}

// CountSince aggregates phase and status counts for workflows updated after
// the given time
func (s *SQLiteStore) CountSince(ctx context.Context, since time.Time) (map[models.Phase]int, map[models.Status]int, error) {
	query := `SELECT current_phase, status, COUNT(*) FROM workflow_states
		WHERE updated_at >= ? GROUP BY current_phase, status`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

const selectColumns = `SELECT workflow_id, patient_id, patient_identifier,
	current_phase, status, data, transitions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalWorkflow(wf *models.Workflow) (data, transitions []byte, err error) {
	data, err = json.Marshal(wf.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal workflow data: %w", err)
	}
	transitions, err = json.Marshal(wf.Transitions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal transitions: %w", err)
	}
	return data, transitions, nil
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		wf                models.Workflow
		phase, status     string
		data, transitions []byte
	)

	err := row.Scan(
		&wf.WorkflowID,
		&wf.PatientID,
		&wf.PatientIdentifier,
		&phase,
		&status,
		&data,
		&transitions,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.CurrentPhase = models.Phase(phase)
	wf.Status = models.Status(status)

	if len(data) > 0 {
		if err := json.Unmarshal(data, &wf.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow data: %w", err)
		}
	}
	if len(transitions) > 0 {
		if err := json.Unmarshal(transitions, &wf.Transitions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transitions: %w", err)
		}
	}

	return &wf, nil
}

func collectWorkflows(rows *sql.Rows) ([]*models.Workflow, error) {
	var result []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

func scanCounts(rows *sql.Rows) (map[models.Phase]int, map[models.Status]int, error) {
	byPhase := make(map[models.Phase]int)
	byStatus := make(map[models.Status]int)

	for rows.Next() {
		var phase, status string
		var n int
		if err := rows.Scan(&phase, &status, &n); err != nil {
			return nil, nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		byPhase[models.Phase(phase)] += n
		byStatus[models.Status(status)] += n
	}
	return byPhase, byStatus, rows.Err()
}
