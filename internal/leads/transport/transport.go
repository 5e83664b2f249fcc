// Package transport defines the HTTP request and response shapes for the
// leads module.
package transport

import (
	"encoding/json"
	"time"

	"leadflow_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the intake payload for a new lead (manual entry or
// webhook).
type CreateLeadRequest struct {
	Name                 string     `json:"name" binding:"required,min=1,max=255"`
	Phone                *string    `json:"phone,omitempty"`
	Email                *string    `json:"email,omitempty" binding:"omitempty,email"`
	Source               *string    `json:"source,omitempty"`
	CampaignName         *string    `json:"campaign_name,omitempty"`
	City                 *string    `json:"city,omitempty"`
	Tags                 []string   `json:"tags,omitempty"`
	PipelineID           *uuid.UUID `json:"pipeline_id,omitempty"`
	StageID              *uuid.UUID `json:"stage_id,omitempty"`
	ValorInteresse       *float64   `json:"valor_interesse,omitempty" binding:"omitempty,gte=0"`
	CommissionPercentage *float64   `json:"commission_percentage,omitempty" binding:"omitempty,gte=0,lte=100"`
	PropertyID           *uuid.UUID `json:"property_id,omitempty"`
}

// DealStatusRequest changes a lead's deal status.
type DealStatusRequest struct {
	NewStatus            string     `json:"new_status" binding:"required,oneof=open won lost"`
	PropertyID           *uuid.UUID `json:"property_id,omitempty"`
	ValorInteresse       *float64   `json:"valor_interesse,omitempty" binding:"omitempty,gte=0"`
	CommissionPercentage *float64   `json:"commission_percentage,omitempty" binding:"omitempty,gte=0,lte=100"`
}

// DealStatusResponse reports the transition outcome.
type DealStatusResponse struct {
	Lead                    LeadResponse `json:"lead"`
	FinancialRecordsCreated bool         `json:"financial_records_created"`
	Warning                 string       `json:"warning,omitempty"`
}

// LeadResponse is the API projection of a lead.
type LeadResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	Phone          *string    `json:"phone,omitempty"`
	Email          *string    `json:"email,omitempty"`
	Source         *string    `json:"source,omitempty"`
	CampaignName   *string    `json:"campaign_name,omitempty"`
	City           *string    `json:"city,omitempty"`
	Tags           []string   `json:"tags"`
	PipelineID     *uuid.UUID `json:"pipeline_id,omitempty"`
	StageID        *uuid.UUID `json:"stage_id,omitempty"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	DistributedAt  *time.Time `json:"distributed_at,omitempty"`

	DealStatus string     `json:"deal_status"`
	WonAt      *time.Time `json:"won_at,omitempty"`
	LostAt     *time.Time `json:"lost_at,omitempty"`
	LostReason *string    `json:"lost_reason,omitempty"`

	ValorInteresse       *float64   `json:"valor_interesse,omitempty"`
	CommissionPercentage *float64   `json:"commission_percentage,omitempty"`
	PropertyID           *uuid.UUID `json:"property_id,omitempty"`

	SLAStatus         string `json:"sla_status"`
	SLASecondsElapsed int64  `json:"sla_seconds_elapsed"`

	FirstResponseAt      *time.Time `json:"first_response_at,omitempty"`
	FirstResponseSeconds *int64     `json:"first_response_seconds,omitempty"`
	FirstResponseChannel *string    `json:"first_response_channel,omitempty"`

	FirstTouchAt      *time.Time `json:"first_touch_at,omitempty"`
	FirstTouchSeconds *int64     `json:"first_touch_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToLeadResponse maps the repository entity to its API shape.
func ToLeadResponse(l repository.Lead) LeadResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return LeadResponse{
		ID:                   l.ID,
		OrganizationID:       l.OrganizationID,
		Name:                 l.Name,
		Phone:                l.Phone,
		Email:                l.Email,
		Source:               l.Source,
		CampaignName:         l.CampaignName,
		City:                 l.City,
		Tags:                 tags,
		PipelineID:           l.PipelineID,
		StageID:              l.StageID,
		AssignedUserID:       l.AssignedUserID,
		DistributedAt:        l.DistributedAt,
		DealStatus:           l.DealStatus,
		WonAt:                l.WonAt,
		LostAt:               l.LostAt,
		LostReason:           l.LostReason,
		ValorInteresse:       l.ValorInteresse,
		CommissionPercentage: l.CommissionPercentage,
		PropertyID:           l.PropertyID,
		SLAStatus:            l.SLAStatus,
		SLASecondsElapsed:    l.SLASecondsElapsed,
		FirstResponseAt:      l.FirstResponseAt,
		FirstResponseSeconds: l.FirstResponseSeconds,
		FirstResponseChannel: l.FirstResponseChannel,
		FirstTouchAt:         l.FirstTouchAt,
		FirstTouchSeconds:    l.FirstTouchSeconds,
		CreatedAt:            l.CreatedAt,
		UpdatedAt:            l.UpdatedAt,
	}
}

// TimelineEventResponse is the API projection of a timeline entry. Detail is
// rendered from the typed metadata payload, see TimelineDetail.
type TimelineEventResponse struct {
	ID           uuid.UUID       `json:"id"`
	EventType    string          `json:"event_type"`
	Title        string          `json:"title"`
	Detail       string          `json:"detail"`
	ActorUserID  *uuid.UUID      `json:"actor_user_id,omitempty"`
	ActorType    string          `json:"actor_type"`
	Channel      *string         `json:"channel,omitempty"`
	IsAutomation bool            `json:"is_automation"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToTimelineResponses maps timeline entries to their API shape.
func ToTimelineResponses(events []repository.TimelineEvent) []TimelineEventResponse {
	out := make([]TimelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEventResponse{
			ID:           e.ID,
			EventType:    e.EventType,
			Title:        e.Title,
			Detail:       TimelineDetail(e),
			ActorUserID:  e.ActorUserID,
			ActorType:    e.ActorType,
			Channel:      e.Channel,
			IsAutomation: e.IsAutomation,
			Metadata:     e.Metadata,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

// ActivityResponse is the API projection of an activity entry.
type ActivityResponse struct {
	ID           uuid.UUID  `json:"id"`
	ActivityType string     `json:"activity_type"`
	Description  string     `json:"description"`
	ActorUserID  *uuid.UUID `json:"actor_user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToActivityResponses maps activities to their API shape.
func ToActivityResponses(activities []repository.Activity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, ActivityResponse{
			ID:           a.ID,
			ActivityType: a.ActivityType,
			Description:  a.Description,
			ActorUserID:  a.ActorUserID,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}
