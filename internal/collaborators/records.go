package collaborators

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// PatientRecordsClient talks to the patient-records system over HTTP
type PatientRecordsClient struct {
	httpClient
}

// NewPatientRecordsClient creates a patient-records client
func NewPatientRecordsClient(baseURL string, timeout time.Duration, logger *zap.Logger) *PatientRecordsClient {
	return &PatientRecordsClient{newHTTPClient(baseURL, timeout, logger)}
}

// GetPatientByPhone looks a patient up by phone number. Returns nil
// without error when no patient matches.
func (c *PatientRecordsClient) GetPatientByPhone(ctx context.Context, phone string) (*models.Patient, error) {
	var resp struct {
		Patient *models.Patient `json:"patient"`
	}
	path := "/api/patients/by-phone?phone=" + url.QueryEscape(phone)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patient, nil
}

// UpsertPatient creates or updates a patient record
func (c *PatientRecordsClient) UpsertPatient(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	var resp models.Patient
	if err := c.doJSON(ctx, http.MethodPut, "/api/patients", patient, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PerformTriage requests a triage assessment for the patient
func (c *PatientRecordsClient) PerformTriage(ctx context.Context, req TriageRequest) (*models.TriageResult, error) {
	var resp models.TriageResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/triage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckAvailability returns open slots for a department
func (c *PatientRecordsClient) CheckAvailability(ctx context.Context, req AvailabilityRequest) ([]time.Time, error) {
	var resp struct {
		Slots []time.Time `json:"slots"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/availability", req, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// BookAppointment books a slot for the patient
func (c *PatientRecordsClient) BookAppointment(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	var resp models.Appointment
	c.logger.Debug("Booking appointment",
		zap.String("patient_id", req.PatientID),
		zap.String("department", req.Department))
	if err := c.doJSON(ctx, http.MethodPost, "/api/appointments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
