package claims

import (
	"testing"

	"github.com/masterlinc/orchestrator/internal/models"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.ClaimStatus
		to      models.ClaimStatus
		fields  map[string]string
		wantErr bool
	}{
		{
			name:   "draft to submitted with external id",
			from:   models.ClaimDraft,
			to:     models.ClaimSubmitted,
			fields: map[string]string{"external_id": "NPH-1"},
		},
		{
			name:    "draft to submitted without external id",
			from:    models.ClaimDraft,
			to:      models.ClaimSubmitted,
			wantErr: true,
		},
		{
			name: "submitted to under review",
			from: models.ClaimSubmitted,
			to:   models.ClaimUnderReview,
		},
		{
			name: "under review to approved",
			from: models.ClaimUnderReview,
			to:   models.ClaimApproved,
		},
		{
			name: "submitted straight to partially approved",
			from: models.ClaimSubmitted,
			to:   models.ClaimPartiallyApproved,
		},
		{
			name:   "under review to rejected with reason",
			from:   models.ClaimUnderReview,
			to:     models.ClaimRejected,
			fields: map[string]string{"rejection_reason": "not covered"},
		},
		{
			name:    "rejection requires a reason",
			from:    models.ClaimUnderReview,
			to:      models.ClaimRejected,
			wantErr: true,
		},
		{
			name: "approved to paid",
			from: models.ClaimApproved,
			to:   models.ClaimPaid,
		},
		{
			name:    "draft cannot skip to paid",
			from:    models.ClaimDraft,
			to:      models.ClaimPaid,
			wantErr: true,
		},
		{
			name:    "rejected is terminal",
			from:    models.ClaimRejected,
			to:      models.ClaimPaid,
			wantErr: true,
		},
		{
			name:    "draft is not a destination",
			from:    models.ClaimSubmitted,
			to:      models.ClaimDraft,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.fields)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%s, %s) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}
