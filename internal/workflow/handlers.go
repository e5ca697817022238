package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/collaborators"
	"github.com/masterlinc/orchestrator/internal/models"
)

// handleIntake fetches the call transcript, classifies intent, resolves
// the patient record by phone (creating one for a first-time caller),
// ensures the patient carries a registry identifier and routes the call.
func (e *Engine) handleIntake(ctx context.Context, wf *models.Workflow) (models.Phase, bool, error) {
	call := wf.Data.Call

	transcript, err := e.gateway.GetTranscript(ctx, call.CallID)
	if err != nil {
		return "", false, fmt.Errorf("%w: get transcript: %v", ErrCollaboratorUnavailable, err)
	}
	call.Transcript = transcript

	intent, err := e.gateway.AnalyzeIntent(ctx, transcript)
	if err != nil {
		return "", false, fmt.Errorf("%w: analyze intent: %v", ErrCollaboratorUnavailable, err)
	}
	call.Intent = intent.Intent
	call.Summary = intent.Summary

	patient, err := e.records.GetPatientByPhone(ctx, call.From)
	if err != nil {
		return "", false, fmt.Errorf("%w: patient lookup: %v", ErrCollaboratorUnavailable, err)
	}
	if patient == nil {
		patient, err = e.records.UpsertPatient(ctx, &models.Patient{Phone: call.From})
		if err != nil {
			return "", false, fmt.Errorf("%w: create patient: %v", ErrCollaboratorUnavailable, err)
		}
		e.logger.Info("New patient created",
			zap.String("workflow_id", wf.WorkflowID),
			zap.String("patient_id", patient.ID))
	}
	wf.PatientID = patient.ID

	// Registry identifiers are created lazily on first contact and then
	// persisted back to the patient record
	if patient.Identifier == "" {
		record, err := e.identifiers.GenerateIdentifier(ctx, "patient", patient.ID,
			map[string]string{"phone": call.From})
		if err != nil {
			return "", false, fmt.Errorf("%w: generate identifier: %v", ErrCollaboratorUnavailable, err)
		}
		patient.Identifier = record.Identifier
		if _, err := e.records.UpsertPatient(ctx, patient); err != nil {
			return "", false, fmt.Errorf("%w: persist identifier: %v", ErrCollaboratorUnavailable, err)
		}
		wf.Data.Identifier = record
	} else {
		wf.Data.Identifier = &models.IdentifierRecord{Identifier: patient.Identifier}
	}
	wf.PatientIdentifier = patient.Identifier

	err = e.gateway.RouteCall(ctx, call.CallID, collaborators.RouteContext{
		Intent:    call.Intent,
		PatientID: patient.ID,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: route call: %v", ErrCollaboratorUnavailable, err)
	}

	return models.PhaseTriage, false, nil
}

// handleTriage extracts symptoms from the transcript with the
// deterministic keyword matcher, classifies severity locally and enriches
// the result with the patient-records assessment, then notifies the
// caller.
func (e *Engine) handleTriage(ctx context.Context, wf *models.Workflow) (models.Phase, bool, error) {
	transcript := ""
	if wf.Data.Call != nil {
		transcript = wf.Data.Call.Transcript
	}

	symptoms := e.triager.ExtractSymptoms(transcript)
	severity := e.triager.ClassifySeverity(symptoms)

	assessment, err := e.records.PerformTriage(ctx, collaborators.TriageRequest{
		PatientID:      wf.PatientID,
		Symptoms:       symptoms,
		ChiefComplaint: transcript,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: perform triage: %v", ErrCollaboratorUnavailable, err)
	}

	// Severity stays deterministic: the local classifier decides, the
	// collaborator contributes the narrative fields
	wf.Data.Triage = &models.TriageResult{
		Symptoms:          symptoms,
		Severity:          severity,
		Assessment:        assessment.Assessment,
		RecommendedAction: assessment.RecommendedAction,
	}

	msg := fmt.Sprintf("Triage assessment complete. Severity: %s.", severity)
	if err := e.gateway.SendNotification(ctx, wf.Data.Call.From, msg); err != nil {
		return "", false, fmt.Errorf("%w: send triage notification: %v", ErrCollaboratorUnavailable, err)
	}

	return models.PhaseBooking, false, nil
}

// handleBooking picks a department from the triaged symptoms, books the
// earliest open slot and parks the workflow pending the service
// completion signal. Zero availability fails the workflow.
func (e *Engine) handleBooking(ctx context.Context, wf *models.Workflow) (models.Phase, bool, error) {
	department := e.triager.RecommendDepartment(wf.Data.Triage.Symptoms)

	slots, err := e.records.CheckAvailability(ctx, collaborators.AvailabilityRequest{
		Department: department,
		Date:       e.now().UTC(),
		Duration:   30,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: check availability: %v", ErrCollaboratorUnavailable, err)
	}
	if len(slots) == 0 {
		return "", false, fmt.Errorf("no available slots for department %s", department)
	}

	earliest := slots[0]
	for _, slot := range slots[1:] {
		if slot.Before(earliest) {
			earliest = slot
		}
	}

	apptType := "routine"
	if s := wf.Data.Triage.Severity; s != "routine" {
		apptType = s
	}

	appt, err := e.records.BookAppointment(ctx, collaborators.BookingRequest{
		PatientID:  wf.PatientID,
		Datetime:   earliest,
		Type:       apptType,
		Department: department,
		Notes:      wf.Data.Triage.RecommendedAction,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: book appointment: %v", ErrCollaboratorUnavailable, err)
	}
	if appt.Department == "" {
		appt.Department = department
	}
	wf.Data.Appointment = appt

	msg := fmt.Sprintf("Appointment confirmed with %s on %s.",
		appt.Department, appt.Datetime.Format(time.RFC1123))
	if err := e.gateway.SendNotification(ctx, wf.Data.Call.From, msg); err != nil {
		return "", false, fmt.Errorf("%w: send booking confirmation: %v", ErrCollaboratorUnavailable, err)
	}

	return models.PhaseService, true, nil
}

// handleService has no logic of its own: the service line items were
// recorded by CompleteServicePhase, so it hands straight off to claims
func (e *Engine) handleService(ctx context.Context, wf *models.Workflow) (models.Phase, bool, error) {
	return models.PhaseClaims, false, nil
}

// handleClaims creates a claim from the recorded service lines, submits
// it downstream and records the outcome on the workflow. The journey
// completes regardless of whether the payer accepted the submission; a
// failed submission lives in the claim's own state, not the workflow's.
func (e *Engine) handleClaims(ctx context.Context, wf *models.Workflow) (models.Phase, bool, error) {
	claim, err := e.claims.CreateClaim(ctx, collaborators.CreateClaimRequest{
		PatientIdentifier:  wf.PatientIdentifier,
		ProviderIdentifier: e.cfg.ProviderIdentifier,
		FacilityIdentifier: e.cfg.FacilityIdentifier,
		Services:           wf.Data.Services,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: create claim: %v", ErrCollaboratorUnavailable, err)
	}

	info := &models.ClaimInfo{
		ClaimID: claim.ClaimID,
		Amount:  claim.TotalAmount,
		Status:  claim.Status.String(),
	}
	wf.Data.Claim = info

	result, err := e.claims.SubmitClaimExternally(ctx, claim.ClaimID)
	switch {
	case err != nil:
		e.logger.Warn("Claim submission failed",
			zap.String("workflow_id", wf.WorkflowID),
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
	case !result.Success:
		e.logger.Warn("Claim submission rejected",
			zap.String("workflow_id", wf.WorkflowID),
			zap.String("claim_id", claim.ClaimID),
			zap.String("message", result.Message))
	default:
		info.ExternalID = result.ExternalID
		info.Status = models.ClaimSubmitted.String()

		invoice, err := e.claims.GenerateInvoice(ctx, claim.ClaimID)
		if err != nil {
			e.logger.Warn("Invoice generation failed",
				zap.String("claim_id", claim.ClaimID), zap.Error(err))
		} else {
			info.InvoiceNumber = invoice.InvoiceNumber
			msg := fmt.Sprintf("Invoice %s issued for %.2f.", invoice.InvoiceNumber, invoice.Amount)
			if err := e.gateway.SendNotification(ctx, wf.Data.Call.From, msg); err != nil {
				e.logger.Warn("Invoice notification failed",
					zap.String("claim_id", claim.ClaimID), zap.Error(err))
			}
		}
	}

	return models.PhaseCompleted, false, nil
}
