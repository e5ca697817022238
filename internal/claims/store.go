package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/pkg/database"
)

// Store errors
var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrInvalidTransition = errors.New("invalid claim transition")
)

// Store persists claims and their service lines. Every status move is one
// targeted UPDATE guarded by the legal source states, so a concurrent
// writer cannot push a claim through an illegal transition.
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

// NewStore creates a claim store
func NewStore(db *database.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Insert stores a new draft claim and its service lines in one transaction
func (s *Store) Insert(ctx context.Context, claim *models.Claim) error {
	return s.db.WithTransaction(func(tx *sql.Tx) error {
		query := s.rebind(`
			INSERT INTO claims (
				claim_id, patient_identifier, provider_identifier,
				facility_identifier, total_amount, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		_, err := tx.ExecContext(ctx, query,
			claim.ClaimID,
			claim.PatientIdentifier,
			claim.ProviderIdentifier,
			claim.FacilityIdentifier,
			claim.TotalAmount,
			claim.Status.String(),
			claim.CreatedAt,
			claim.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert claim: %w", err)
		}

		// Line numbers are assigned here rather than by the database so
		// the insert is identical on sqlite and postgres
		lineQuery := s.rebind(`
			INSERT INTO claim_services (
				claim_id, line_no, code, description, quantity, unit_price,
				total_price, provider_id, service_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		for i, line := range claim.Services {
			_, err := tx.ExecContext(ctx, lineQuery,
				claim.ClaimID,
				i+1,
				line.Code,
				line.Description,
				line.Quantity,
				line.UnitPrice,
				line.TotalPrice,
				line.ProviderID,
				line.Date,
			)
			if err != nil {
				return fmt.Errorf("failed to insert claim service: %w", err)
			}
		}
		return nil
	})
}

// GetByID returns the claim with its service lines
func (s *Store) GetByID(ctx context.Context, claimID string) (*models.Claim, error) {
	query := s.rebind(`
		SELECT claim_id, patient_identifier, provider_identifier,
			facility_identifier, total_amount, status, external_id,
			rejection_reason, submitted_at, reviewed_at, paid_at,
			created_at, updated_at
		FROM claims WHERE claim_id = ?
	`)

	var (
		claim              models.Claim
		status             string
		externalID, reason sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, claimID).Scan(
		&claim.ClaimID,
		&claim.PatientIdentifier,
		&claim.ProviderIdentifier,
		&claim.FacilityIdentifier,
		&claim.TotalAmount,
		&status,
		&externalID,
		&reason,
		&claim.SubmittedAt,
		&claim.ReviewedAt,
		&claim.PaidAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	claim.Status = models.ClaimStatus(status)
	claim.ExternalID = externalID.String
	claim.RejectionReason = reason.String

	lines, err := s.listServices(ctx, claimID)
	if err != nil {
		return nil, err
	}
	claim.Services = lines
	return &claim, nil
}

func (s *Store) listServices(ctx context.Context, claimID string) ([]models.ServiceLine, error) {
	query := s.rebind(`
		SELECT code, description, quantity, unit_price, total_price,
			provider_id, service_date
		FROM claim_services WHERE claim_id = ? ORDER BY line_no
	`)
	rows, err := s.db.QueryContext(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim services: %w", err)
	}
	defer rows.Close()

	var lines []models.ServiceLine
	for rows.Next() {
		var line models.ServiceLine
		if err := rows.Scan(
			&line.Code,
			&line.Description,
			&line.Quantity,
			&line.UnitPrice,
			&line.TotalPrice,
			&line.ProviderID,
			&line.Date,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claim service: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// MarkSubmitted moves a draft claim to submitted, recording the external
// processor ID and submission time
func (s *Store) MarkSubmitted(ctx context.Context, claimID, externalID string, at time.Time) error {
	query := `UPDATE claims SET status = ?, external_id = ?, submitted_at = ?, updated_at = ?
		WHERE claim_id = ? AND status IN ` + s.statusSet(models.ClaimSubmitted)
	return s.exec(ctx, claimID, query,
		models.ClaimSubmitted.String(), externalID, at, at, claimID)
}

// MarkUnderReview moves a submitted claim into review
func (s *Store) MarkUnderReview(ctx context.Context, claimID string, at time.Time) error {
	query := `UPDATE claims SET status = ?, updated_at = ?
		WHERE claim_id = ? AND status IN ` + s.statusSet(models.ClaimUnderReview)
	return s.exec(ctx, claimID, query,
		models.ClaimUnderReview.String(), at, claimID)
}

// MarkApproved records a full approval
func (s *Store) MarkApproved(ctx context.Context, claimID string, at time.Time) error {
	return s.markReviewed(ctx, claimID, models.ClaimApproved, at)
}

// MarkPartiallyApproved records a partial approval
func (s *Store) MarkPartiallyApproved(ctx context.Context, claimID string, at time.Time) error {
	return s.markReviewed(ctx, claimID, models.ClaimPartiallyApproved, at)
}

func (s *Store) markReviewed(ctx context.Context, claimID string, to models.ClaimStatus, at time.Time) error {
	query := `UPDATE claims SET status = ?, reviewed_at = ?, updated_at = ?
		WHERE claim_id = ? AND status IN ` + s.statusSet(to)
	return s.exec(ctx, claimID, query, to.String(), at, at, claimID)
}

// MarkRejected records a rejection. The rejection reason is written only
// here; no other transition touches it.
func (s *Store) MarkRejected(ctx context.Context, claimID, reason string, at time.Time) error {
	query := `UPDATE claims SET status = ?, rejection_reason = ?, reviewed_at = ?, updated_at = ?
		WHERE claim_id = ? AND status IN ` + s.statusSet(models.ClaimRejected)
	return s.exec(ctx, claimID, query,
		models.ClaimRejected.String(), reason, at, at, claimID)
}

// MarkPaid records payment of an approved claim
func (s *Store) MarkPaid(ctx context.Context, claimID string, at time.Time) error {
	query := `UPDATE claims SET status = ?, paid_at = ?, updated_at = ?
		WHERE claim_id = ? AND status IN ` + s.statusSet(models.ClaimPaid)
	return s.exec(ctx, claimID, query,
		models.ClaimPaid.String(), at, at, claimID)
}

// exec runs a guarded status update; zero rows affected means the claim
// is missing or not in a legal source state
func (s *Store) exec(ctx context.Context, claimID, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		s.logger.Error("Failed to update claim",
			zap.String("claim_id", claimID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check claim update: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetByID(ctx, claimID); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

// statusSet renders the legal source states of a destination as a SQL IN
// list of quoted literals
func (s *Store) statusSet(to models.ClaimStatus) string {
	from := AllowedFrom(to)
	quoted := make([]string, len(from))
	for i, st := range from {
		quoted[i] = "'" + st.String() + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// rebind converts ? placeholders to $n when running on postgres
func (s *Store) rebind(query string) string {
	if s.db.Driver() != database.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
