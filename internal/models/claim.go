package models

import "time"

// ClaimStatus represents a state in the claim lifecycle. Transitions are
// one-directional; rejected and paid are terminal.
type ClaimStatus string

const (
	ClaimDraft             ClaimStatus = "draft"
	ClaimSubmitted         ClaimStatus = "submitted"
	ClaimUnderReview       ClaimStatus = "under_review"
	ClaimApproved          ClaimStatus = "approved"
	ClaimPartiallyApproved ClaimStatus = "partially_approved"
	ClaimRejected          ClaimStatus = "rejected"
	ClaimPaid              ClaimStatus = "paid"
)

var terminalClaimStatuses = map[ClaimStatus]bool{
	ClaimRejected: true,
	ClaimPaid:     true,
}

// String returns the string representation of the claim status
func (s ClaimStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the claim allows no further transitions
func (s ClaimStatus) IsTerminal() bool {
	return terminalClaimStatuses[s]
}

// ServiceLine is a single billable service on a claim
type ServiceLine struct {
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	TotalPrice  float64   `json:"total_price"`
	ProviderID  string    `json:"provider_id,omitempty"`
	Date        time.Time `json:"date"`
}

// Claim is an insurance billing record with its own nested state machine,
// created during the claims phase of a workflow.
type Claim struct {
	ClaimID            string        `json:"claim_id"`
	PatientIdentifier  string        `json:"patient_identifier"`
	ProviderIdentifier string        `json:"provider_identifier"`
	FacilityIdentifier string        `json:"facility_identifier"`
	Services           []ServiceLine `json:"services"`
	TotalAmount        float64       `json:"total_amount"`
	Status             ClaimStatus   `json:"status"`
	ExternalID         string        `json:"external_id,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	SubmittedAt        *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt         *time.Time    `json:"reviewed_at,omitempty"`
	PaidAt             *time.Time    `json:"paid_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Invoice is the billing artifact generated after a successful submission
type Invoice struct {
	InvoiceNumber string    `json:"invoice_number"`
	ClaimID       string    `json:"claim_id"`
	Amount        float64   `json:"amount"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Patient is the patient-records representation consumed by the engine
type Patient struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier,omitempty"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
}
