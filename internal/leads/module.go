// Package leads wires the lead intake, timeline and deal status workflow.
package leads

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
)

// Module bundles the leads bounded context.
type Module struct {
	Repository *repository.Repository
	Service    *service.Service
	handler    *handler.Handler
}

// NewModule assembles the leads module from its layers.
func NewModule(repo *repository.Repository, svc *service.Service, h *handler.Handler) *Module {
	return &Module{Repository: repo, Service: svc, handler: h}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "leads" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.Protected.Group("/leads")
	{
		leads.POST("", m.handler.CreateLead)
		leads.GET("/:id", m.handler.GetLead)
		leads.GET("/:id/timeline", m.handler.GetTimeline)
		leads.GET("/:id/activities", m.handler.GetActivities)
		leads.POST("/:id/deal-status", m.handler.ChangeDealStatus)
	}
}
