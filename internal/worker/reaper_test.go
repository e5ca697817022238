package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

type stubStore struct {
	pending []*models.Workflow
}

func (s *stubStore) Upsert(context.Context, *models.Workflow) error { return nil }
func (s *stubStore) GetByID(context.Context, string) (*models.Workflow, error) {
	return nil, nil
}
func (s *stubStore) ListByPatient(context.Context, string) ([]*models.Workflow, error) {
	return nil, nil
}
func (s *stubStore) ListPendingOlderThan(context.Context, time.Time) ([]*models.Workflow, error) {
	return s.pending, nil
}
func (s *stubStore) CountSince(context.Context, time.Time) (map[models.Phase]int, map[models.Status]int, error) {
	return nil, nil, nil
}

type stubCanceller struct {
	mu        sync.Mutex
	cancelled []string
}

func (c *stubCanceller) CancelWorkflow(_ context.Context, workflowID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, workflowID)
	return nil
}

func TestReaper_SweepCancelsStalePending(t *testing.T) {
	st := &stubStore{pending: []*models.Workflow{
		{WorkflowID: "wf-old-1", CurrentPhase: models.PhaseService, Status: models.StatusPending},
		{WorkflowID: "wf-old-2", CurrentPhase: models.PhaseService, Status: models.StatusPending},
	}}
	canceller := &stubCanceller{}

	r := NewReaper(st, canceller, 72*time.Hour, time.Minute, utils.NewNopLogger())
	r.sweep(context.Background())

	assert.Equal(t, []string{"wf-old-1", "wf-old-2"}, canceller.cancelled)
}

func TestReaper_StartStop(t *testing.T) {
	r := NewReaper(&stubStore{}, &stubCanceller{}, time.Hour, 10*time.Millisecond, utils.NewNopLogger())

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	r.Stop()
}

func TestManager_RegistersAndStopsInReverse(t *testing.T) {
	m := NewManager(utils.NewNopLogger())
	r := NewReaper(&stubStore{}, &stubCanceller{}, time.Hour, time.Hour, utils.NewNopLogger())

	m.Register(r)
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
}
