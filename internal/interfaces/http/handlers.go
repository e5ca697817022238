package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
	"github.com/masterlinc/orchestrator/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine *workflow.Engine, logger *zap.Logger) *Handlers {
	return &Handlers{engine: engine, logger: logger}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServiceCompleteRequest carries the delivered service line items
type ServiceCompleteRequest struct {
	Services []ServiceLineRequest `json:"services" binding:"required"`
}

// ServiceLineRequest is one billable service in the completion request
type ServiceLineRequest struct {
	Code        string  `json:"code" binding:"required"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price" binding:"required"`
	ProviderID  string  `json:"provider_id"`
}

// CancelRequest carries the operator's cancellation reason
type CancelRequest struct {
	Reason string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// StartWorkflow handles POST /api/workflows
func (h *Handlers) StartWorkflow(c *gin.Context) {
	var req workflow.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	wf, err := h.engine.StartWorkflow(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.engine.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, Response{Error: "workflow not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// CompleteServicePhase handles POST /api/workflows/:id/service-complete
func (h *Handlers) CompleteServicePhase(c *gin.Context) {
	var req ServiceCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	lines := make([]models.ServiceLine, len(req.Services))
	for i, svc := range req.Services {
		lines[i] = models.ServiceLine{
			Code:        svc.Code,
			Description: svc.Description,
			Quantity:    svc.Quantity,
			UnitPrice:   svc.UnitPrice,
			ProviderID:  svc.ProviderID,
		}
	}

	workflowID := c.Param("id")
	if err := h.engine.CompleteServicePhase(c.Request.Context(), workflowID, lines); err != nil {
		h.renderError(c, err)
		return
	}

	wf, err := h.engine.GetWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// CancelWorkflow handles POST /api/workflows/:id/cancel
func (h *Handlers) CancelWorkflow(c *gin.Context) {
	var req CancelRequest
	// Body is optional
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}

	if err := h.engine.CancelWorkflow(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetWorkflowsForPatient handles GET /api/patients/:id/workflows
func (h *Handlers) GetWorkflowsForPatient(c *gin.Context) {
	workflows, err := h.engine.GetWorkflowsForPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: workflows})
}

// GetStatistics handles GET /api/statistics
func (h *Handlers) GetStatistics(c *gin.Context) {
	stats, err := h.engine.GetStatistics(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// renderError maps engine errors to status codes
func (h *Handlers) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrCollaboratorUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	c.JSON(status, Response{Error: err.Error()})
}
