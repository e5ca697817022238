package collaborators

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// ClaimsProcessorClient talks to a remote claims processing service over
// HTTP. When the engine runs with embedded claims handling this client is
// not used; see the claims package.
type ClaimsProcessorClient struct {
	httpClient
}

// NewClaimsProcessorClient creates a remote claims processor client
func NewClaimsProcessorClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ClaimsProcessorClient {
	return &ClaimsProcessorClient{newHTTPClient(baseURL, timeout, logger)}
}

// CreateClaim creates a draft claim for the given services
func (c *ClaimsProcessorClient) CreateClaim(ctx context.Context, req CreateClaimRequest) (*models.Claim, error) {
	var resp models.Claim
	if err := c.doJSON(ctx, http.MethodPost, "/api/claims", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("Claim created",
		zap.String("claim_id", resp.ClaimID),
		zap.Float64("total_amount", resp.TotalAmount))
	return &resp, nil
}

// SubmitClaimExternally submits a draft claim to the downstream payer
func (c *ClaimsProcessorClient) SubmitClaimExternally(ctx context.Context, claimID string) (*SubmissionResult, error) {
	var resp SubmissionResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/claims/"+claimID+"/submit", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateInvoice generates an invoice for a claim
func (c *ClaimsProcessorClient) GenerateInvoice(ctx context.Context, claimID string) (*models.Invoice, error) {
	var resp models.Invoice
	if err := c.doJSON(ctx, http.MethodPost, "/api/claims/"+claimID+"/invoice", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
