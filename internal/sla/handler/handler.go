// Package handler exposes the SLA module's HTTP endpoints.
package handler

import (
	"net/http"

	"leadflow_backend/internal/sla/service"
	"leadflow_backend/internal/sla/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles SLA HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// New creates an SLA handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, log: log}
}

// ComputeFirstResponse handles POST /sla/first-response.
func (h *Handler) ComputeFirstResponse(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	var req transport.FirstResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}
	// A human interaction reported without an actor defaults to the caller.
	if !req.IsAutomation && req.ActorUserID == nil {
		userID := identity.UserID()
		req.ActorUserID = &userID
	}

	result, err := h.service.ComputeFirstResponse(c.Request.Context(), *orgID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunSweep handles POST /admin/sla/sweep. The scheduler normally drives the
// sweep; this endpoint exists for operators.
func (h *Handler) RunSweep(c *gin.Context) {
	result, err := h.service.RunSweep(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpsertPolicy handles PUT /admin/pipelines/:id/sla-policy.
func (h *Handler) UpsertPolicy(c *gin.Context) {
	orgID, pipelineID, ok := h.scope(c)
	if !ok {
		return
	}

	var req transport.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	policy, err := h.service.UpsertPolicy(c.Request.Context(), orgID, pipelineID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// GetPolicy handles GET /admin/pipelines/:id/sla-policy.
func (h *Handler) GetPolicy(c *gin.Context) {
	orgID, pipelineID, ok := h.scope(c)
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(c.Request.Context(), orgID, pipelineID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// DeactivatePolicy handles DELETE /admin/pipelines/:id/sla-policy.
func (h *Handler) DeactivatePolicy(c *gin.Context) {
	orgID, pipelineID, ok := h.scope(c)
	if !ok {
		return
	}

	if err := h.service.DeactivatePolicy(c.Request.Context(), orgID, pipelineID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, uuid.Nil, false
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return uuid.Nil, uuid.Nil, false
	}
	pipelineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid pipeline id"))
		return uuid.Nil, uuid.Nil, false
	}
	return *orgID, pipelineID, true
}
