// Package workflow implements the orchestration engine: the phase state
// machine that drives a patient journey from creation to terminal state,
// persists every transition durably and announces it to subscribers.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/cache"
	"github.com/masterlinc/orchestrator/internal/collaborators"
	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/internal/nlp"
	"github.com/masterlinc/orchestrator/internal/notifier"
	"github.com/masterlinc/orchestrator/internal/store"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

// Config holds engine policy settings
type Config struct {
	ProviderIdentifier string
	FacilityIdentifier string
	StatisticsWindow   time.Duration
}

// Deps bundles the engine's collaborators and infrastructure
type Deps struct {
	Store       store.WorkflowStore
	Cache       cache.WorkflowCache
	Notifier    notifier.Notifier
	Gateway     collaborators.CallGateway
	Records     collaborators.PatientRecords
	Identifiers collaborators.IdentifierRegistry
	Claims      collaborators.ClaimsProcessor
	Triager     *nlp.Triager
	Logger      *zap.Logger
}

// StartRequest is the external trigger that creates a workflow
type StartRequest struct {
	CallID string `json:"call_id" binding:"required"`
	From   string `json:"from" binding:"required"`
}

// phaseHandler runs one phase. It mutates the workflow's data bag and
// returns the next phase; parked means the engine must stop chaining and
// durably wait for an external completion signal.
type phaseHandler func(ctx context.Context, wf *models.Workflow) (next models.Phase, parked bool, err error)

// entry is one slot in the in-memory registry. Its mutex is the
// per-workflow mutual exclusion: at most one phase handler runs for a
// given workflow ID at any time.
type entry struct {
	mu sync.Mutex
	wf *models.Workflow
}

// Engine coordinates phase sequencing, persistence and event publication
// for all workflow instances. The in-memory registry is a performance
// optimization only; the durable store remains the source of truth and a
// restart with an empty registry works via store fallback.
type Engine struct {
	cfg      Config
	store    store.WorkflowStore
	cache    cache.WorkflowCache
	notifier notifier.Notifier

	gateway     collaborators.CallGateway
	records     collaborators.PatientRecords
	identifiers collaborators.IdentifierRegistry
	claims      collaborators.ClaimsProcessor
	triager     *nlp.Triager

	handlers map[models.Phase]phaseHandler

	mu       sync.Mutex
	registry map[string]*entry

	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates the workflow engine
func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.StatisticsWindow <= 0 {
		cfg.StatisticsWindow = 24 * time.Hour
	}

	e := &Engine{
		cfg:         cfg,
		store:       deps.Store,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		gateway:     deps.Gateway,
		records:     deps.Records,
		identifiers: deps.Identifiers,
		claims:      deps.Claims,
		triager:     deps.Triager,
		registry:    make(map[string]*entry),
		logger:      deps.Logger,
		now:         time.Now,
	}

	e.handlers = map[models.Phase]phaseHandler{
		models.PhaseIntake:  e.handleIntake,
		models.PhaseTriage:  e.handleTriage,
		models.PhaseBooking: e.handleBooking,
		models.PhaseService: e.handleService,
		models.PhaseClaims:  e.handleClaims,
	}

	return e
}

// StartWorkflow creates a new journey from an inbound call and
// synchronously runs its phase chain as far as it can go. Collaborator
// failures are not returned: the workflow is marked failed and the state
// is returned for the caller to inspect.
func (e *Engine) StartWorkflow(ctx context.Context, req StartRequest) (*models.Workflow, error) {
	if req.CallID == "" {
		return nil, fmt.Errorf("%w: call_id is required", ErrValidation)
	}
	if err := utils.ValidatePhone(req.From); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := e.now().UTC()
	wf := &models.Workflow{
		WorkflowID:   "wf-" + uuid.NewString(),
		CurrentPhase: models.PhaseIntake,
		Status:       models.StatusInProgress,
		Data: models.WorkflowData{
			Call: &models.CallInfo{CallID: req.CallID, From: req.From},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ent := e.entry(wf.WorkflowID)
	ent.mu.Lock()
	defer ent.mu.Unlock()
	ent.wf = wf

	if err := e.persist(ctx, wf); err != nil {
		e.removeEntry(wf.WorkflowID)
		return nil, err
	}

	e.logger.Info("Workflow started",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("call_id", req.CallID))

	e.runChain(ctx, wf)
	e.evictIfTerminal(wf)

	return wf.Clone(), nil
}

// CompleteServicePhase is the single external re-entry point. It resumes
// a workflow parked at (service, pending) with the delivered service line
// items and runs the claims phase. Precondition failures return typed
// errors before any mutation; collaborator failures during the claims
// phase mark the workflow failed instead of being returned.
func (e *Engine) CompleteServicePhase(ctx context.Context, workflowID string, services []models.ServiceLine) error {
	if len(services) == 0 {
		return fmt.Errorf("%w: at least one service line is required", ErrValidation)
	}
	for i, line := range services {
		if err := utils.ValidateServiceLine(line.Code, line.Quantity, line.UnitPrice); err != nil {
			return fmt.Errorf("%w: service line %d: %v", ErrValidation, i, err)
		}
	}

	ent := e.entry(workflowID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.wf == nil {
		wf, err := e.store.GetByID(ctx, workflowID)
		if err != nil {
			return err
		}
		if wf == nil {
			e.removeEntry(workflowID)
			return fmt.Errorf("%w: %s", ErrNotFound, workflowID)
		}
		ent.wf = wf
	}
	wf := ent.wf

	// Re-checked under the entry lock so two concurrent completions
	// cannot both pass. A back-filled terminal workflow is evicted again
	// so rejected probes cannot grow the registry.
	if wf.CurrentPhase != models.PhaseService || wf.Status != models.StatusPending {
		e.evictIfTerminal(wf)
		return fmt.Errorf("%w: workflow %s is at phase %s with status %s",
			ErrInvalidState, workflowID, wf.CurrentPhase, wf.Status)
	}

	now := e.now().UTC()
	lines := make([]models.ServiceLine, len(services))
	for i, line := range services {
		line.TotalPrice = float64(line.Quantity) * line.UnitPrice
		if line.Date.IsZero() {
			line.Date = now
		}
		lines[i] = line
	}

	wf.Status = models.StatusInProgress
	wf.Data.Services = lines

	e.logger.Info("Service phase completed",
		zap.String("workflow_id", workflowID),
		zap.Int("service_lines", len(lines)))

	e.runChain(ctx, wf)
	e.evictIfTerminal(wf)
	return nil
}

// GetWorkflow reads a workflow: cache first, then in-memory registry,
// then durable store. A cache miss served from the store is back-filled.
// Returns nil without error when the ID is unknown.
func (e *Engine) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	if wf, err := e.cache.Get(ctx, workflowID); err != nil {
		e.logger.Warn("Cache read failed, falling through",
			zap.String("workflow_id", workflowID), zap.Error(err))
	} else if wf != nil {
		return wf, nil
	}

	if wf := e.registryLookup(workflowID); wf != nil {
		return wf, nil
	}

	wf, err := e.store.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, nil
	}

	if err := e.cache.Set(ctx, wf); err != nil {
		e.logger.Warn("Cache backfill failed",
			zap.String("workflow_id", workflowID), zap.Error(err))
	}
	return wf, nil
}

// GetWorkflowsForPatient returns every workflow for a patient, newest
// first. Multi-row reads always go to the durable store.
func (e *Engine) GetWorkflowsForPatient(ctx context.Context, patientID string) ([]*models.Workflow, error) {
	return e.store.ListByPatient(ctx, patientID)
}

// GetStatistics aggregates phase and status counts over the trailing
// statistics window
func (e *Engine) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	since := e.now().UTC().Add(-e.cfg.StatisticsWindow)
	byPhase, byStatus, err := e.store.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	e.mu.Lock()
	active := len(e.registry)
	e.mu.Unlock()

	return &models.Statistics{
		Window:       e.cfg.StatisticsWindow,
		Total:        total,
		ByPhase:      byPhase,
		ByStatus:     byStatus,
		ActiveInMem:  active,
		WindowedFrom: since,
	}, nil
}

// CancelWorkflow marks a non-terminal workflow cancelled. Used by the
// pending-workflow reaper and by operators.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID, reason string) error {
	ent := e.entry(workflowID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.wf == nil {
		wf, err := e.store.GetByID(ctx, workflowID)
		if err != nil {
			return err
		}
		if wf == nil {
			e.removeEntry(workflowID)
			return fmt.Errorf("%w: %s", ErrNotFound, workflowID)
		}
		ent.wf = wf
	}
	wf := ent.wf

	if wf.Status.IsTerminal() {
		e.evictIfTerminal(wf)
		return fmt.Errorf("%w: workflow %s already %s", ErrInvalidState, workflowID, wf.Status)
	}

	wf.Status = models.StatusCancelled
	wf.UpdatedAt = e.now().UTC()
	if err := e.persist(ctx, wf); err != nil {
		return err
	}

	e.logger.Info("Workflow cancelled",
		zap.String("workflow_id", workflowID),
		zap.String("reason", reason))

	e.publishPhaseEvent(ctx, wf, map[string]interface{}{"reason": reason})
	e.evictIfTerminal(wf)
	return nil
}

// runChain executes phase handlers until the workflow parks, terminates
// or fails. The caller must hold the workflow's entry lock.
func (e *Engine) runChain(ctx context.Context, wf *models.Workflow) {
	for wf.Status == models.StatusInProgress {
		handler, ok := e.handlers[wf.CurrentPhase]
		if !ok {
			return
		}

		next, parked, err := handler(ctx, wf)
		if err != nil {
			e.markFailed(ctx, wf, err)
			return
		}

		trigger := wf.CurrentPhase.String() + "_completed"
		if parked {
			wf.Status = models.StatusPending
		}
		if next == models.PhaseCompleted {
			wf.Status = models.StatusCompleted
		}

		if err := e.transitionPhase(ctx, wf, next, trigger); err != nil {
			e.markFailed(ctx, wf, err)
			return
		}
		if parked {
			return
		}
	}
}

// transitionPhase appends a transition record, updates the current phase,
// persists to store and cache and publishes the change event, in that
// order. Subscribers therefore only ever observe state that is already
// durable.
func (e *Engine) transitionPhase(ctx context.Context, wf *models.Workflow, next models.Phase, trigger string) error {
	now := e.now().UTC()
	wf.Transitions = append(wf.Transitions, models.Transition{
		From:      wf.CurrentPhase,
		To:        next,
		Timestamp: now,
		Trigger:   trigger,
	})
	wf.CurrentPhase = next
	wf.UpdatedAt = now

	if err := e.persist(ctx, wf); err != nil {
		return err
	}

	e.logger.Info("Phase transition",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("phase", next.String()),
		zap.String("status", wf.Status.String()),
		zap.String("trigger", trigger))

	e.publishPhaseEvent(ctx, wf, nil)
	return nil
}

// markFailed is the terminal marker for handler failures. Partial
// progress is never rolled back; the workflow keeps its transition history
// and captured data for manual remediation.
func (e *Engine) markFailed(ctx context.Context, wf *models.Workflow, cause error) {
	e.logger.Error("Workflow failed",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("phase", wf.CurrentPhase.String()),
		zap.Error(cause))

	wf.Status = models.StatusFailed
	wf.UpdatedAt = e.now().UTC()

	// Subscribers must never observe state the store does not hold, so a
	// failed persist suppresses the event as well
	if err := e.persist(ctx, wf); err != nil {
		e.logger.Error("Failed to persist failure marker, event suppressed",
			zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
		return
	}

	e.publishPhaseEvent(ctx, wf, map[string]interface{}{"error": cause.Error()})
}

// persist writes through: durable store first, then cache. A cache write
// failure degrades read performance, never correctness, so it only logs.
func (e *Engine) persist(ctx context.Context, wf *models.Workflow) error {
	if err := e.store.Upsert(ctx, wf); err != nil {
		return err
	}
	if err := e.cache.Set(ctx, wf); err != nil {
		e.logger.Warn("Cache write failed",
			zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
	}
	return nil
}

func (e *Engine) publishPhaseEvent(ctx context.Context, wf *models.Workflow, extra map[string]interface{}) {
	data := map[string]interface{}{
		"patient_id": wf.PatientID,
	}
	for k, v := range extra {
		data[k] = v
	}
	evt := notifier.NewWorkflowPhaseEvent(
		wf.WorkflowID, wf.CurrentPhase.String(), wf.Status.String(), data)
	e.notifier.Publish(ctx, evt)
}

// entry returns the registry slot for the ID, creating it if absent
func (e *Engine) entry(workflowID string) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.registry[workflowID]
	if !ok {
		ent = &entry{}
		e.registry[workflowID] = ent
	}
	return ent
}

func (e *Engine) removeEntry(workflowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.registry, workflowID)
}

// evictIfTerminal drops a finished workflow from the registry. It stays
// retrievable from the cache and the durable store.
func (e *Engine) evictIfTerminal(wf *models.Workflow) {
	if wf.Status.IsTerminal() {
		e.removeEntry(wf.WorkflowID)
	}
}

// registryLookup returns a clone of the registry copy, or nil. TryLock
// keeps reads from blocking behind an in-flight phase chain; callers fall
// through to the durable store instead.
func (e *Engine) registryLookup(workflowID string) *models.Workflow {
	e.mu.Lock()
	ent, ok := e.registry[workflowID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	if !ent.mu.TryLock() {
		return nil
	}
	defer ent.mu.Unlock()
	return ent.wf.Clone()
}
