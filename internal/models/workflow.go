package models

import "time"

// Phase represents a stage of the patient journey
type Phase string

const (
	PhaseIntake    Phase = "intake"
	PhaseTriage    Phase = "triage"
	PhaseBooking   Phase = "booking"
	PhaseService   Phase = "service"
	PhaseClaims    Phase = "claims"
	PhaseCompleted Phase = "completed"
)

var validPhases = map[Phase]bool{
	PhaseIntake:    true,
	PhaseTriage:    true,
	PhaseBooking:   true,
	PhaseService:   true,
	PhaseClaims:    true,
	PhaseCompleted: true,
}

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// IsValid returns true if the phase is a known workflow phase
func (p Phase) IsValid() bool {
	return validPhases[p]
}

// Status represents the execution status of a workflow
type Status string

const (
	// StatusPending means the workflow is durably parked awaiting an
	// external completion signal. Only used at the service phase boundary.
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further mutation of the workflow is allowed
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// Transition is one recorded phase change. The transitions log is
// append-only and never truncated.
type Transition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
}

// CallInfo holds inbound call details captured during intake
type CallInfo struct {
	CallID     string `json:"call_id"`
	From       string `json:"from"`
	Transcript string `json:"transcript,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// TriageResult holds the symptom assessment produced by the triage phase
type TriageResult struct {
	Symptoms          []string `json:"symptoms"`
	Severity          string   `json:"severity"`
	Assessment        string   `json:"assessment"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
}

// Appointment holds the booking made during the booking phase
type Appointment struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	Datetime      time.Time `json:"datetime"`
	Department    string    `json:"department"`
	Type          string    `json:"type,omitempty"`
}

// IdentifierRecord holds the registry-issued identifier created during intake
type IdentifierRecord struct {
	Identifier   string `json:"identifier"`
	CredentialID string `json:"credential_id,omitempty"`
}

// ClaimInfo is the claim summary recorded on the workflow during the
// claims phase. The full claim lives in the claims processor; this is the
// slice of it the journey keeps.
type ClaimInfo struct {
	ClaimID       string  `json:"claim_id"`
	ExternalID    string  `json:"external_id,omitempty"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
}

// WorkflowData is the phase-scoped bag of sub-records. Each sub-record is
// filled by exactly the phase handler that owns it and is never mutated by
// a later phase.
type WorkflowData struct {
	Call        *CallInfo         `json:"call,omitempty"`
	Triage      *TriageResult     `json:"triage,omitempty"`
	Appointment *Appointment      `json:"appointment,omitempty"`
	Identifier  *IdentifierRecord `json:"identifier,omitempty"`
	Services    []ServiceLine     `json:"services,omitempty"`
	Claim       *ClaimInfo        `json:"claim,omitempty"`
}

// Workflow is one end-to-end instance of the patient-journey process
type Workflow struct {
	WorkflowID        string       `json:"workflow_id"`
	PatientID         string       `json:"patient_id,omitempty"`
	PatientIdentifier string       `json:"patient_identifier,omitempty"`
	CurrentPhase      Phase        `json:"current_phase"`
	Status            Status       `json:"status"`
	Data              WorkflowData `json:"data"`
	Transitions       []Transition `json:"transitions"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of the workflow so callers holding a cached or
// registry copy cannot mutate engine state.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	cp := *w
	cp.Transitions = append([]Transition(nil), w.Transitions...)

	if w.Data.Call != nil {
		call := *w.Data.Call
		cp.Data.Call = &call
	}
	if w.Data.Triage != nil {
		triage := *w.Data.Triage
		triage.Symptoms = append([]string(nil), w.Data.Triage.Symptoms...)
		cp.Data.Triage = &triage
	}
	if w.Data.Appointment != nil {
		appt := *w.Data.Appointment
		cp.Data.Appointment = &appt
	}
	if w.Data.Identifier != nil {
		ident := *w.Data.Identifier
		cp.Data.Identifier = &ident
	}
	if w.Data.Services != nil {
		cp.Data.Services = append([]ServiceLine(nil), w.Data.Services...)
	}
	if w.Data.Claim != nil {
		claim := *w.Data.Claim
		cp.Data.Claim = &claim
	}

	return &cp
}

// Statistics summarises workflow activity over a trailing window
type Statistics struct {
	Window       time.Duration  `json:"-"`
	Total        int            `json:"total"`
	ByPhase      map[Phase]int  `json:"by_phase"`
	ByStatus     map[Status]int `json:"by_status"`
	ActiveInMem  int            `json:"active_in_memory"`
	WindowedFrom time.Time      `json:"windowed_from"`
}
