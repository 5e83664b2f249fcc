// Package distribution wires the weighted round-robin lead routing engine.
package distribution

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/distribution/handler"
	"leadflow_backend/internal/distribution/repository"
	"leadflow_backend/internal/distribution/service"
)

// Module bundles the distribution bounded context.
type Module struct {
	Repository *repository.Repository
	Service    *service.Service
	handler    *handler.Handler
}

// NewModule assembles the distribution module from its layers.
func NewModule(repo *repository.Repository, svc *service.Service, h *handler.Handler) *Module {
	return &Module{Repository: repo, Service: svc, handler: h}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "distribution" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/distribution/run", m.handler.Run)
	ctx.Protected.POST("/distribution/test", m.handler.Test)

	queues := ctx.Admin.Group("/distribution/queues")
	{
		queues.POST("", m.handler.CreateQueue)
		queues.GET("", m.handler.ListQueues)
		queues.POST("/:id/members", m.handler.AddMember)
		queues.DELETE("/:id/members/:userId", m.handler.RemoveMember)
		queues.POST("/:id/reset-counter", m.handler.ResetCounter)
		queues.GET("/:id/stats", m.handler.Stats)
	}

	rules := ctx.Admin.Group("/distribution/rules")
	{
		rules.POST("", m.handler.CreateRule)
		rules.GET("", m.handler.ListRules)
		rules.DELETE("/:id", m.handler.DeleteRule)
	}
}
