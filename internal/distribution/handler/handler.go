// Package handler exposes the distribution module's HTTP endpoints.
package handler

import (
	"net/http"

	"leadflow_backend/internal/distribution/service"
	"leadflow_backend/internal/distribution/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles distribution HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// New creates a distribution handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, log: log}
}

func orgScope(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return uuid.Nil, false
	}
	return *orgID, true
}

// Run handles POST /distribution/run.
func (h *Handler) Run(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	var req transport.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	outcome, err := h.service.Run(c.Request.Context(), req.LeadID, orgID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Test handles POST /distribution/test. Nothing is persisted.
func (h *Handler) Test(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	var req transport.TestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	outcome, err := h.service.Test(c.Request.Context(), orgID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// CreateQueue handles POST /admin/distribution/queues.
func (h *Handler) CreateQueue(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	var req transport.CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	queue, err := h.service.CreateQueue(c.Request.Context(), orgID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, queue)
}

// ListQueues handles GET /admin/distribution/queues.
func (h *Handler) ListQueues(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	queues, err := h.service.ListQueues(c.Request.Context(), orgID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

// AddMember handles POST /admin/distribution/queues/:id/members.
func (h *Handler) AddMember(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}
	queueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid queue id"))
		return
	}

	var req transport.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	member, err := h.service.AddMember(c.Request.Context(), orgID, queueID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// RemoveMember handles DELETE /admin/distribution/queues/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}
	queueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid queue id"))
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid user id"))
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), orgID, queueID, userID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetCounter handles POST /admin/distribution/queues/:id/reset-counter.
func (h *Handler) ResetCounter(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}
	queueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid queue id"))
		return
	}

	if err := h.service.ResetCounter(c.Request.Context(), orgID, queueID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /admin/distribution/queues/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}
	queueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid queue id"))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), orgID, queueID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateRule handles POST /admin/distribution/rules.
func (h *Handler) CreateRule(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	var req transport.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), orgID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ListRules handles GET /admin/distribution/rules.
func (h *Handler) ListRules(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(c.Request.Context(), orgID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// DeleteRule handles DELETE /admin/distribution/rules/:id.
func (h *Handler) DeleteRule(c *gin.Context) {
	orgID, ok := orgScope(c)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid rule id"))
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), orgID, ruleID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
