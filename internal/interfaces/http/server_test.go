package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masterlinc/orchestrator/internal/cache"
	"github.com/masterlinc/orchestrator/internal/collaborators"
	"github.com/masterlinc/orchestrator/internal/config"
	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/internal/nlp"
	"github.com/masterlinc/orchestrator/internal/notifier"
	"github.com/masterlinc/orchestrator/internal/store"
	"github.com/masterlinc/orchestrator/internal/workflow"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

// Stub collaborators: the happy path of a new urgent patient

type stubGateway struct{}

func (stubGateway) GetTranscript(context.Context, string) (string, error) {
	return "severe chest pain", nil
}
func (stubGateway) AnalyzeIntent(context.Context, string) (*collaborators.IntentAnalysis, error) {
	return &collaborators.IntentAnalysis{Intent: "appointment"}, nil
}
func (stubGateway) RouteCall(context.Context, string, collaborators.RouteContext) error {
	return nil
}
func (stubGateway) SendNotification(context.Context, string, string) error { return nil }

type stubRecords struct{}

func (stubRecords) GetPatientByPhone(context.Context, string) (*models.Patient, error) {
	return nil, nil
}
func (stubRecords) UpsertPatient(_ context.Context, p *models.Patient) (*models.Patient, error) {
	cp := *p
	if cp.ID == "" {
		cp.ID = "pat-1"
	}
	return &cp, nil
}
func (stubRecords) PerformTriage(context.Context, collaborators.TriageRequest) (*models.TriageResult, error) {
	return &models.TriageResult{Assessment: "specialist review"}, nil
}
func (stubRecords) CheckAvailability(context.Context, collaborators.AvailabilityRequest) ([]time.Time, error) {
	return []time.Time{time.Now().Add(24 * time.Hour)}, nil
}
func (stubRecords) BookAppointment(_ context.Context, req collaborators.BookingRequest) (*models.Appointment, error) {
	return &models.Appointment{AppointmentID: "appt-1", Datetime: req.Datetime, Department: req.Department}, nil
}

type stubRegistry struct{}

func (stubRegistry) GenerateIdentifier(_ context.Context, _, entityID string, _ map[string]string) (*models.IdentifierRecord, error) {
	return &models.IdentifierRecord{Identifier: "EXT-" + entityID}, nil
}

type stubClaims struct{}

func (stubClaims) CreateClaim(_ context.Context, req collaborators.CreateClaimRequest) (*models.Claim, error) {
	total := 0.0
	for _, line := range req.Services {
		total += float64(line.Quantity) * line.UnitPrice
	}
	return &models.Claim{ClaimID: "clm-1", TotalAmount: total, Status: models.ClaimDraft}, nil
}
func (stubClaims) SubmitClaimExternally(context.Context, string) (*collaborators.SubmissionResult, error) {
	return &collaborators.SubmissionResult{Success: true, ExternalID: "NPH-1"}, nil
}
func (stubClaims) GenerateInvoice(_ context.Context, claimID string) (*models.Invoice, error) {
	return &models.Invoice{InvoiceNumber: "INV-1", ClaimID: claimID, Amount: 100}, nil
}

type memWorkflowStore struct {
	rows map[string]*models.Workflow
}

func (s *memWorkflowStore) Upsert(_ context.Context, wf *models.Workflow) error {
	s.rows[wf.WorkflowID] = wf.Clone()
	return nil
}
func (s *memWorkflowStore) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	return s.rows[id].Clone(), nil
}
func (s *memWorkflowStore) ListByPatient(_ context.Context, patientID string) ([]*models.Workflow, error) {
	var out []*models.Workflow
	for _, wf := range s.rows {
		if wf.PatientID == patientID {
			out = append(out, wf.Clone())
		}
	}
	return out, nil
}
func (s *memWorkflowStore) ListPendingOlderThan(context.Context, time.Time) ([]*models.Workflow, error) {
	return nil, nil
}
func (s *memWorkflowStore) CountSince(context.Context, time.Time) (map[models.Phase]int, map[models.Status]int, error) {
	byPhase := make(map[models.Phase]int)
	byStatus := make(map[models.Status]int)
	for _, wf := range s.rows {
		byPhase[wf.CurrentPhase]++
		byStatus[wf.Status]++
	}
	return byPhase, byStatus, nil
}

var _ store.WorkflowStore = (*memWorkflowStore)(nil)

func newTestServer() *Server {
	logger := utils.NewNopLogger()
	triager := nlp.NewTriager(config.TriageConfig{
		UrgentKeywords:  []string{"chest pain", "chest"},
		RoutineKeywords: []string{"cough"},
	}, logger)

	engine := workflow.NewEngine(workflow.Config{
		ProviderIdentifier: "provider-001",
		FacilityIdentifier: "facility-001",
	}, workflow.Deps{
		Store:       &memWorkflowStore{rows: make(map[string]*models.Workflow)},
		Cache:       cache.NewMemoryCache(time.Hour),
		Notifier:    notifier.NewLocalNotifier(logger),
		Gateway:     stubGateway{},
		Records:     stubRecords{},
		Identifiers: stubRegistry{},
		Claims:      stubClaims{},
		Triager:     triager,
		Logger:      logger,
	})

	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, engine, logger)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer()

	w, resp := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer()

	w, resp := doJSON(t, srv, http.MethodPost, "/api/workflows",
		jsonBody{"call_id": "c1", "from": "+100"})
	require.Equal(t, http.StatusCreated, w.Code)

	var wf models.Workflow
	remarshal(t, resp.Data, &wf)
	assert.Equal(t, models.PhaseService, wf.CurrentPhase)
	assert.Equal(t, models.StatusPending, wf.Status)

	w, resp = doJSON(t, srv, http.MethodPost, "/api/workflows/"+wf.WorkflowID+"/service-complete",
		ServiceCompleteRequest{Services: []ServiceLineRequest{
			{Code: "99213", Quantity: 1, UnitPrice: 100},
		}})
	require.Equal(t, http.StatusOK, w.Code)

	remarshal(t, resp.Data, &wf)
	assert.Equal(t, models.PhaseCompleted, wf.CurrentPhase)
	assert.Equal(t, models.StatusCompleted, wf.Status)
	require.NotNil(t, wf.Data.Claim)
	assert.Equal(t, 100.0, wf.Data.Claim.Amount)

	w, _ = doJSON(t, srv, http.MethodGet, "/api/workflows/"+wf.WorkflowID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, srv, http.MethodGet, "/api/patients/"+wf.PatientID+"/workflows", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, srv, http.MethodGet, "/api/statistics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer()

	// Unknown workflow
	w, _ := doJSON(t, srv, http.MethodGet, "/api/workflows/wf-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Missing body fields
	w, _ = doJSON(t, srv, http.MethodPost, "/api/workflows", jsonBody{"call_id": "c1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Resume of unknown workflow
	w, _ = doJSON(t, srv, http.MethodPost, "/api/workflows/wf-missing/service-complete",
		ServiceCompleteRequest{Services: []ServiceLineRequest{
			{Code: "99213", Quantity: 1, UnitPrice: 100},
		}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Resume outside the pending boundary
	_, resp := doJSON(t, srv, http.MethodPost, "/api/workflows", jsonBody{"call_id": "c1", "from": "+100"})
	var wf models.Workflow
	remarshal(t, resp.Data, &wf)
	doJSON(t, srv, http.MethodPost, "/api/workflows/"+wf.WorkflowID+"/service-complete",
		ServiceCompleteRequest{Services: []ServiceLineRequest{
			{Code: "99213", Quantity: 1, UnitPrice: 100},
		}})
	w, _ = doJSON(t, srv, http.MethodPost, "/api/workflows/"+wf.WorkflowID+"/service-complete",
		ServiceCompleteRequest{Services: []ServiceLineRequest{
			{Code: "99213", Quantity: 1, UnitPrice: 100},
		}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelWorkflowOverHTTP(t *testing.T) {
	srv := newTestServer()

	_, resp := doJSON(t, srv, http.MethodPost, "/api/workflows", jsonBody{"call_id": "c1", "from": "+100"})
	var wf models.Workflow
	remarshal(t, resp.Data, &wf)

	w, _ := doJSON(t, srv, http.MethodPost, "/api/workflows/"+wf.WorkflowID+"/cancel",
		CancelRequest{Reason: "patient withdrew"})
	assert.Equal(t, http.StatusOK, w.Code)

	_, resp = doJSON(t, srv, http.MethodGet, "/api/workflows/"+wf.WorkflowID, nil)
	remarshal(t, resp.Data, &wf)
	assert.Equal(t, models.StatusCancelled, wf.Status)
}

type jsonBody map[string]interface{}

// remarshal converts the untyped response payload into a concrete type
func remarshal(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
