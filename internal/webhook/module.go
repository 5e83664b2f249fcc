package webhook

import (
	"context"
	"net/http"

	apphttp "leadflow_backend/internal/http"
	leadstransport "leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadCreator is the leads service port the webhook feeds into.
type LeadCreator interface {
	CreateLead(ctx context.Context, organizationID uuid.UUID, actorUserID *uuid.UUID, req leadstransport.CreateLeadRequest) (leadstransport.LeadResponse, error)
}

// InboundLead is the payload external forms post. Field names follow the
// common ad-platform export shape.
type InboundLead struct {
	Name                 string     `json:"name" binding:"required,min=1,max=255"`
	Phone                *string    `json:"phone,omitempty"`
	Email                *string    `json:"email,omitempty" binding:"omitempty,email"`
	Source               *string    `json:"source,omitempty"`
	CampaignName         *string    `json:"campaign_name,omitempty"`
	City                 *string    `json:"city,omitempty"`
	Tags                 []string   `json:"tags,omitempty"`
	PipelineID           *uuid.UUID `json:"pipeline_id,omitempty"`
	ValorInteresse       *float64   `json:"valor_interesse,omitempty" binding:"omitempty,gte=0"`
	CommissionPercentage *float64   `json:"commission_percentage,omitempty" binding:"omitempty,gte=0,lte=100"`
	PropertyID           *uuid.UUID `json:"property_id,omitempty"`
}

// Module bundles the webhook intake feature.
type Module struct {
	Repository *Repository
	leads      LeadCreator
	log        *logger.Logger
}

// NewModule assembles the webhook module.
func NewModule(repo *Repository, leads LeadCreator, log *logger.Logger) *Module {
	return &Module{Repository: repo, leads: leads, log: log}
}

// Name implements apphttp.Module.
func (m *Module) Name() string { return "webhook" }

// RegisterRoutes implements apphttp.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Lead intake is authenticated by API key, not JWT.
	ctx.V1.POST("/webhook/leads", m.apiKeyAuth(), m.receiveLead)

	keys := ctx.Admin.Group("/webhook/keys")
	{
		keys.POST("", m.createKey)
		keys.GET("", m.listKeys)
		keys.DELETE("/:id", m.revokeKey)
	}
}

// apiKeyAuth resolves the X-Api-Key header to an organization.
func (m *Module) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}
		resolved, err := m.Repository.ResolveKey(c.Request.Context(), key)
		if err != nil {
			if apperr.GetKind(err) == apperr.KindUnauthorized {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			m.log.Error("api key lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set("webhookOrganizationID", resolved.OrganizationID)
		c.Next()
	}
}

func (m *Module) receiveLead(c *gin.Context) {
	raw, ok := c.Get("webhookOrganizationID")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	orgID := raw.(uuid.UUID)

	var payload InboundLead
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	source := payload.Source
	if source == nil {
		s := "webhook"
		source = &s
	}

	lead, err := m.leads.CreateLead(c.Request.Context(), orgID, nil, leadstransport.CreateLeadRequest{
		Name:                 payload.Name,
		Phone:                payload.Phone,
		Email:                payload.Email,
		Source:               source,
		CampaignName:         payload.CampaignName,
		City:                 payload.City,
		Tags:                 payload.Tags,
		PipelineID:           payload.PipelineID,
		ValorInteresse:       payload.ValorInteresse,
		CommissionPercentage: payload.CommissionPercentage,
		PropertyID:           payload.PropertyID,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead_id": lead.ID, "assigned_user_id": lead.AssignedUserID})
}

func (m *Module) createKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,min=1,max=120"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	key, plaintext, err := m.Repository.CreateKey(c.Request.Context(), *orgID, req.Name)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "plaintext": plaintext})
}

func (m *Module) listKeys(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}

	keys, err := m.Repository.ListKeys(c.Request.Context(), *orgID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if keys == nil {
		keys = []APIKey{}
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (m *Module) revokeKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.HandleError(c, apperr.Forbidden("no organization in token"))
		return
	}
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid key id"))
		return
	}

	if err := m.Repository.RevokeKey(c.Request.Context(), keyID, *orgID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
