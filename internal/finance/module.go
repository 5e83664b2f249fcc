// Package finance exposes the commission and receivable records generated by
// won deals.
package finance

import (
	"net/http"
	"strconv"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/finance/repository"
	"leadflow_backend/internal/finance/service"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module bundles the finance bounded context.
type Module struct {
	Repository *repository.Repository
	Service    *service.Service
	log        *logger.Logger
}

// NewModule assembles the finance module.
func NewModule(repo *repository.Repository, svc *service.Service, log *logger.Logger) *Module {
	return &Module{Repository: repo, Service: svc, log: log}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "finance" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/commissions", m.listCommissions)
	ctx.Protected.GET("/receivables", m.listReceivables)
}

func (m *Module) listCommissions(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	commissions, err := m.Service.ListCommissions(c.Request.Context(), *orgID, queryLimit(c))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": commissions})
}

func (m *Module) listReceivables(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	receivables, err := m.Service.ListReceivables(c.Request.Context(), *orgID, queryLimit(c))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receivables": receivables})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		return 100
	}
	return limit
}
