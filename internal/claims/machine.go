// Package claims implements the claim lifecycle: a nested state machine
// over billing records, a SQL-backed claim store, and an embedded
// processor that satisfies the claims collaborator contract when no
// external processor is deployed.
package claims

import (
	"fmt"

	"github.com/masterlinc/orchestrator/internal/models"
)

// transitionRule describes one legal move in the claim lifecycle
type transitionRule struct {
	fromStates     []models.ClaimStatus
	requiredFields []string
}

// transitions is keyed by destination status. A destination absent from
// the table is unreachable.
var transitions = map[models.ClaimStatus]transitionRule{
	models.ClaimSubmitted: {
		fromStates:     []models.ClaimStatus{models.ClaimDraft},
		requiredFields: []string{"external_id"},
	},
	models.ClaimUnderReview: {
		fromStates: []models.ClaimStatus{models.ClaimSubmitted},
	},
	models.ClaimApproved: {
		fromStates: []models.ClaimStatus{models.ClaimSubmitted, models.ClaimUnderReview},
	},
	models.ClaimPartiallyApproved: {
		fromStates: []models.ClaimStatus{models.ClaimSubmitted, models.ClaimUnderReview},
	},
	models.ClaimRejected: {
		fromStates:     []models.ClaimStatus{models.ClaimSubmitted, models.ClaimUnderReview},
		requiredFields: []string{"rejection_reason"},
	},
	models.ClaimPaid: {
		fromStates: []models.ClaimStatus{models.ClaimApproved, models.ClaimPartiallyApproved},
	},
}

// ValidateTransition checks that moving from one claim status to another
// is legal and that the caller supplied every field the destination
// requires. fields holds the destination-specific values (external_id,
// rejection_reason) by name.
func ValidateTransition(from, to models.ClaimStatus, fields map[string]string) error {
	rule, ok := transitions[to]
	if !ok {
		return fmt.Errorf("claim status %q is not a reachable destination", to)
	}

	legal := false
	for _, f := range rule.fromStates {
		if f == from {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("claim cannot move from %q to %q", from, to)
	}

	for _, name := range rule.requiredFields {
		if fields[name] == "" {
			return fmt.Errorf("claim transition to %q requires %s", to, name)
		}
	}
	return nil
}

// AllowedFrom returns the source statuses from which the destination is
// reachable. Used by the store to guard its targeted updates.
func AllowedFrom(to models.ClaimStatus) []models.ClaimStatus {
	return transitions[to].fromStates
}
