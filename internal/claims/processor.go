package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/collaborators"
	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

// EmbeddedProcessor handles claims inside this service instead of calling
// a remote processor. It satisfies the same collaborator contract, so the
// workflow engine cannot tell the difference.
type EmbeddedProcessor struct {
	store  *Store
	logger *zap.Logger
}

// NewEmbeddedProcessor creates an embedded claims processor
func NewEmbeddedProcessor(store *Store, logger *zap.Logger) *EmbeddedProcessor {
	return &EmbeddedProcessor{store: store, logger: logger}
}

var _ collaborators.ClaimsProcessor = (*EmbeddedProcessor)(nil)

// CreateClaim validates the service lines, computes line and claim totals
// and stores a draft claim
func (p *EmbeddedProcessor) CreateClaim(ctx context.Context, req collaborators.CreateClaimRequest) (*models.Claim, error) {
	if req.PatientIdentifier == "" {
		return nil, fmt.Errorf("patient identifier is required")
	}
	if len(req.Services) == 0 {
		return nil, fmt.Errorf("claim requires at least one service line")
	}

	now := time.Now().UTC()
	var total float64
	services := make([]models.ServiceLine, len(req.Services))
	for i, line := range req.Services {
		if err := utils.ValidateServiceLine(line.Code, line.Quantity, line.UnitPrice); err != nil {
			return nil, fmt.Errorf("service line %d: %w", i, err)
		}
		line.TotalPrice = float64(line.Quantity) * line.UnitPrice
		if line.Date.IsZero() {
			line.Date = now
		}
		services[i] = line
		total += line.TotalPrice
	}

	claim := &models.Claim{
		ClaimID:            "clm-" + uuid.NewString(),
		PatientIdentifier:  req.PatientIdentifier,
		ProviderIdentifier: req.ProviderIdentifier,
		FacilityIdentifier: req.FacilityIdentifier,
		Services:           services,
		TotalAmount:        total,
		Status:             models.ClaimDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := p.store.Insert(ctx, claim); err != nil {
		return nil, err
	}

	p.logger.Info("Claim created",
		zap.String("claim_id", claim.ClaimID),
		zap.Int("services", len(services)),
		zap.Float64("total_amount", total))

	return claim, nil
}

// SubmitClaimExternally moves a draft claim to submitted, assigning it a
// payer-side identifier
func (p *EmbeddedProcessor) SubmitClaimExternally(ctx context.Context, claimID string) (*collaborators.SubmissionResult, error) {
	claim, err := p.store.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	externalID := fmt.Sprintf("NPH-%d", time.Now().UnixMilli())
	if err := ValidateTransition(claim.Status, models.ClaimSubmitted, map[string]string{
		"external_id": externalID,
	}); err != nil {
		return nil, err
	}

	if err := p.store.MarkSubmitted(ctx, claimID, externalID, time.Now().UTC()); err != nil {
		return nil, err
	}

	p.logger.Info("Claim submitted",
		zap.String("claim_id", claimID),
		zap.String("external_id", externalID))

	return &collaborators.SubmissionResult{
		Success:    true,
		ExternalID: externalID,
		Message:    "claim accepted for processing",
	}, nil
}

// GenerateInvoice issues an invoice for a claim
func (p *EmbeddedProcessor) GenerateInvoice(ctx context.Context, claimID string) (*models.Invoice, error) {
	claim, err := p.store.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status == models.ClaimDraft {
		return nil, fmt.Errorf("cannot invoice a draft claim")
	}

	now := time.Now().UTC()
	return &models.Invoice{
		InvoiceNumber: fmt.Sprintf("INV-%d", now.UnixMilli()),
		ClaimID:       claimID,
		Amount:        claim.TotalAmount,
		IssuedAt:      now,
	}, nil
}

// ReviewClaim applies a payer decision to a submitted or under-review
// claim. decision must be a legal destination; rejections carry a reason.
func (p *EmbeddedProcessor) ReviewClaim(ctx context.Context, claimID string, decision models.ClaimStatus, reason string) error {
	claim, err := p.store.GetByID(ctx, claimID)
	if err != nil {
		return err
	}

	fields := map[string]string{"rejection_reason": reason}
	if err := ValidateTransition(claim.Status, decision, fields); err != nil {
		return err
	}

	now := time.Now().UTC()
	switch decision {
	case models.ClaimUnderReview:
		err = p.store.MarkUnderReview(ctx, claimID, now)
	case models.ClaimApproved:
		err = p.store.MarkApproved(ctx, claimID, now)
	case models.ClaimPartiallyApproved:
		err = p.store.MarkPartiallyApproved(ctx, claimID, now)
	case models.ClaimRejected:
		err = p.store.MarkRejected(ctx, claimID, reason, now)
	case models.ClaimPaid:
		err = p.store.MarkPaid(ctx, claimID, now)
	default:
		return fmt.Errorf("unsupported review decision %q", decision)
	}
	if err != nil {
		return err
	}

	p.logger.Info("Claim reviewed",
		zap.String("claim_id", claimID),
		zap.String("decision", decision.String()))
	return nil
}

// GetClaim returns the stored claim
func (p *EmbeddedProcessor) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	return p.store.GetByID(ctx, claimID)
}
