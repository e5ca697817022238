package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/store"
)

// Canceller is the slice of the engine the reaper needs
type Canceller interface {
	CancelWorkflow(ctx context.Context, workflowID, reason string) error
}

// Reaper periodically cancels workflows that have sat parked at
// (service, pending) longer than the configured timeout. The engine
// itself never expires a pending workflow; this policy is opt-in.
type Reaper struct {
	store    store.WorkflowStore
	engine   Canceller
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper creates a pending-workflow reaper
func NewReaper(st store.WorkflowStore, engine Canceller, timeout, interval time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		store:    st,
		engine:   engine,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name
func (r *Reaper) Name() string {
	return "pending-workflow-reaper"
}

// Start begins the periodic sweep
func (r *Reaper) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)
	return nil
}

// Stop halts the sweep loop and waits for it to finish
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep cancels every workflow whose pending wait exceeded the timeout
func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.timeout)
	stale, err := r.store.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("Reaper sweep failed", zap.Error(err))
		return
	}

	for _, wf := range stale {
		err := r.engine.CancelWorkflow(ctx, wf.WorkflowID, "pending timeout exceeded")
		if err != nil {
			// Someone may have completed it between the scan and the
			// cancel; that is not a problem
			r.logger.Warn("Failed to cancel stale workflow",
				zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
			continue
		}
		r.logger.Info("Stale pending workflow cancelled",
			zap.String("workflow_id", wf.WorkflowID),
			zap.Time("parked_since", wf.UpdatedAt))
	}
}
