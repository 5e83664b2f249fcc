// Package sla wires the first-response calculator and SLA checker.
package sla

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/sla/handler"
	"leadflow_backend/internal/sla/repository"
	"leadflow_backend/internal/sla/service"
)

// Module bundles the SLA bounded context.
type Module struct {
	Repository *repository.Repository
	Service    *service.Service
	handler    *handler.Handler
}

// NewModule assembles the SLA module from its layers.
func NewModule(repo *repository.Repository, svc *service.Service, h *handler.Handler) *Module {
	return &Module{Repository: repo, Service: svc, handler: h}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "sla" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/sla/first-response", m.handler.ComputeFirstResponse)

	ctx.Admin.POST("/sla/sweep", m.handler.RunSweep)
	ctx.Admin.GET("/pipelines/:id/sla-policy", m.handler.GetPolicy)
	ctx.Admin.PUT("/pipelines/:id/sla-policy", m.handler.UpsertPolicy)
	ctx.Admin.DELETE("/pipelines/:id/sla-policy", m.handler.DeactivatePolicy)
}
