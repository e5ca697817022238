// Package collaborators defines the contracts of the external systems the
// workflow engine coordinates across, and HTTP clients for each. Only the
// operations the engine calls are modeled; the collaborators' internals
// belong to their own services.
package collaborators

import (
	"context"
	"time"

	"github.com/masterlinc/orchestrator/internal/models"
)

// IntentAnalysis is the structured result of intent classification on a
// call transcript
type IntentAnalysis struct {
	Intent  string `json:"intent"`
	Summary string `json:"summary,omitempty"`
}

// RouteContext carries the context the call gateway needs to route a call
type RouteContext struct {
	Intent    string `json:"intent"`
	PatientID string `json:"patient_id"`
}

// CallGateway is the voice/call collaborator: transcripts, intent
// analysis, call routing and SMS-style notifications
type CallGateway interface {
	GetTranscript(ctx context.Context, callID string) (string, error)
	AnalyzeIntent(ctx context.Context, text string) (*IntentAnalysis, error)
	RouteCall(ctx context.Context, callID string, routing RouteContext) error
	SendNotification(ctx context.Context, to, message string) error
}

// TriageRequest asks the patient-records system for a triage assessment
type TriageRequest struct {
	PatientID      string   `json:"patient_id"`
	Symptoms       []string `json:"symptoms"`
	ChiefComplaint string   `json:"chief_complaint"`
}

// AvailabilityRequest queries open appointment slots
type AvailabilityRequest struct {
	Department string    `json:"department"`
	Date       time.Time `json:"date"`
	Duration   int       `json:"duration"`
}

// BookingRequest books an appointment slot
type BookingRequest struct {
	PatientID  string    `json:"patient_id"`
	DoctorID   string    `json:"doctor_id"`
	Datetime   time.Time `json:"datetime"`
	Type       string    `json:"type"`
	Department string    `json:"department"`
	Notes      string    `json:"notes,omitempty"`
}

// PatientRecords is the patient-records collaborator
type PatientRecords interface {
	// GetPatientByPhone returns nil without error when no patient matches
	GetPatientByPhone(ctx context.Context, phone string) (*models.Patient, error)
	UpsertPatient(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	PerformTriage(ctx context.Context, req TriageRequest) (*models.TriageResult, error)
	CheckAvailability(ctx context.Context, req AvailabilityRequest) ([]time.Time, error)
	BookAppointment(ctx context.Context, req BookingRequest) (*models.Appointment, error)
}

// IdentifierRegistry issues stable external identifiers for entities
type IdentifierRegistry interface {
	GenerateIdentifier(ctx context.Context, entityType, entityID string, metadata map[string]string) (*models.IdentifierRecord, error)
}

// CreateClaimRequest creates a claim for a set of billable services
type CreateClaimRequest struct {
	PatientIdentifier  string               `json:"patient_identifier"`
	ProviderIdentifier string               `json:"provider_identifier"`
	FacilityIdentifier string               `json:"facility_identifier"`
	Services           []models.ServiceLine `json:"services"`
}

// SubmissionResult reports the outcome of submitting a claim to the
// downstream processor
type SubmissionResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ClaimsProcessor is the insurance claims collaborator
type ClaimsProcessor interface {
	CreateClaim(ctx context.Context, req CreateClaimRequest) (*models.Claim, error)
	SubmitClaimExternally(ctx context.Context, claimID string) (*SubmissionResult, error)
	GenerateInvoice(ctx context.Context, claimID string) (*models.Invoice, error)
}
