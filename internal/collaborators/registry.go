package collaborators

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// IdentifierRegistryClient talks to the identifier registry over HTTP
type IdentifierRegistryClient struct {
	httpClient
}

// NewIdentifierRegistryClient creates an identifier registry client
func NewIdentifierRegistryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *IdentifierRegistryClient {
	return &IdentifierRegistryClient{newHTTPClient(baseURL, timeout, logger)}
}

// GenerateIdentifier issues a stable external identifier for an entity
func (c *IdentifierRegistryClient) GenerateIdentifier(ctx context.Context, entityType, entityID string, metadata map[string]string) (*models.IdentifierRecord, error) {
	req := map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"metadata":    metadata,
	}
	var resp models.IdentifierRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/identifiers", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("Identifier generated",
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID))
	return &resp, nil
}
