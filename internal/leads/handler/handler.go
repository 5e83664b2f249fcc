// Package handler exposes the leads module's HTTP endpoints.
package handler

import (
	"net/http"
	"strconv"

	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles lead HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// New creates a leads handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, log: log}
}

// CreateLead handles POST /leads.
func (h *Handler) CreateLead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	userID := identity.UserID()
	lead, err := h.service.CreateLead(c.Request.Context(), *orgID, &userID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// GetLead handles GET /leads/:id.
func (h *Handler) GetLead(c *gin.Context) {
	orgID, leadID, ok := h.scope(c)
	if !ok {
		return
	}

	lead, err := h.service.GetLead(c.Request.Context(), leadID, orgID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// GetTimeline handles GET /leads/:id/timeline.
func (h *Handler) GetTimeline(c *gin.Context) {
	orgID, leadID, ok := h.scope(c)
	if !ok {
		return
	}

	entries, err := h.service.GetTimeline(c.Request.Context(), leadID, orgID, queryLimit(c))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

// GetActivities handles GET /leads/:id/activities.
func (h *Handler) GetActivities(c *gin.Context) {
	orgID, leadID, ok := h.scope(c)
	if !ok {
		return
	}

	activities, err := h.service.GetActivities(c.Request.Context(), leadID, orgID, queryLimit(c))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// ChangeDealStatus handles POST /leads/:id/deal-status.
func (h *Handler) ChangeDealStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid lead id"))
		return
	}

	var req transport.DealStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	result, err := h.service.ChangeDealStatus(c.Request.Context(), *orgID, identity.UserID(), leadID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
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
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid lead id"))
		return uuid.Nil, uuid.Nil, false
	}
	return *orgID, leadID, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		return 100
	}
	return limit
}
