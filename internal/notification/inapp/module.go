package inapp

import (
	"net/http"
	"strconv"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module bundles the in-app notification feature.
type Module struct {
	Repository *Repository
	Service    *Service
	log        *logger.Logger
}

// NewModule assembles the notification module.
func NewModule(repo *Repository, svc *Service, log *logger.Logger) *Module {
	return &Module{Repository: repo, Service: svc, log: log}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "notifications" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	{
		notifications.GET("", m.list)
		notifications.GET("/unread-count", m.countUnread)
		notifications.POST("/:id/read", m.markRead)
		notifications.POST("/read-all", m.markAllRead)
	}
}

func (m *Module) list(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := m.Service.List(c.Request.Context(), *orgID, identity.UserID(), limit)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (m *Module) countUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	count, err := m.Service.CountUnread(c.Request.Context(), *orgID, identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (m *Module) markRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid notification id"))
		return
	}

	if err := m.Service.MarkRead(c.Request.Context(), notificationID, identity.UserID()); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) markAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	updated, err := m.Service.MarkAllRead(c.Request.Context(), *orgID, identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
