package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/identity"
	"github.com/avionyx/farmhand/internal/service/workflow"
)

// WorkflowHandler exposes workflow start, step input and cancel over HTTP.
type WorkflowHandler struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewWorkflowHandler constructs the HTTP handler adapter.
func NewWorkflowHandler(engine *workflow.Engine, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{engine: engine, logger: logger}
}

type startRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// Start begins a workflow for the operator in the path.
func (h *WorkflowHandler) Start(c *gin.Context) {
	operatorID := c.Param("id")

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	prompt, err := h.engine.Start(c.Request.Context(), operatorID, workflow.Kind(req.Kind))
	if err != nil {
		h.respondError(c, operatorID, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// Input feeds one operator response into the in-flight workflow.
func (h *WorkflowHandler) Input(c *gin.Context) {
	operatorID := c.Param("id")

	var in workflow.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	prompt, err := h.engine.HandleInput(c.Request.Context(), operatorID, in)
	if err != nil {
		h.respondError(c, operatorID, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// Cancel discards the operator's in-flight workflow.
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	operatorID := c.Param("id")
	if !h.engine.Cancel(operatorID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no workflow in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (h *WorkflowHandler) respondError(c *gin.Context, operatorID string, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotPermitted), errors.Is(err, identity.ErrUnknownOperator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrNoSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "no workflow in progress"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("workflow request failed",
			zap.String("operator", operatorID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
