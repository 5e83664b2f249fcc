// Package transport defines the HTTP request and response shapes for the SLA
// module.
package transport

import (
	"time"

	"leadflow_backend/internal/sla/repository"

	"github.com/google/uuid"
)

// First response computation outcomes.
const (
	ResultCalculated         = "calculated"
	ResultAlreadyCalculated  = "already_calculated"
	ResultAutomationExcluded = "automation_excluded"
)

// FirstResponseRequest reports an outbound interaction with a lead.
type FirstResponseRequest struct {
	LeadID       uuid.UUID  `json:"lead_id" binding:"required"`
	Channel      string     `json:"channel" binding:"required,oneof=whatsapp call email sms meeting note manual"`
	ActorUserID  *uuid.UUID `json:"actor_user_id,omitempty"`
	IsAutomation bool       `json:"is_automation"`
}

// FirstResponseResult reports whether the interaction was stamped as the
// lead's first response.
type FirstResponseResult struct {
	Status          string     `json:"status"`
	LeadID          uuid.UUID  `json:"lead_id"`
	Seconds         *int64     `json:"seconds,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	FirstTouch      bool       `json:"first_touch"`
}

// SweepResult summarizes one SLA checker run.
type SweepResult struct {
	Checked    int   `json:"checked"`
	Warnings   int   `json:"warnings"`
	Overdue    int   `json:"overdue"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// PolicyRequest creates or replaces a pipeline's SLA policy.
type PolicyRequest struct {
	FirstResponseStart               string `json:"first_response_start" binding:"required,oneof=lead_created lead_assigned first_inbound_message"`
	IncludeAutomationInFirstResponse bool   `json:"include_automation_in_first_response"`
	WarnAfterSeconds                 int64  `json:"warn_after_seconds" binding:"required,gt=0"`
	OverdueAfterSeconds              int64  `json:"overdue_after_seconds" binding:"required,gt=0,gtfield=WarnAfterSeconds"`
	NotifyAssignee                   bool   `json:"notify_assignee"`
	NotifyManager                    bool   `json:"notify_manager"`
}

// PolicyResponse is the API projection of an SLA policy.
type PolicyResponse struct {
	ID                               uuid.UUID `json:"id"`
	PipelineID                       uuid.UUID `json:"pipeline_id"`
	FirstResponseStart               string    `json:"first_response_start"`
	IncludeAutomationInFirstResponse bool      `json:"include_automation_in_first_response"`
	WarnAfterSeconds                 int64     `json:"warn_after_seconds"`
	OverdueAfterSeconds              int64     `json:"overdue_after_seconds"`
	NotifyAssignee                   bool      `json:"notify_assignee"`
	NotifyManager                    bool      `json:"notify_manager"`
	IsActive                         bool      `json:"is_active"`
	CreatedAt                        time.Time `json:"created_at"`
	UpdatedAt                        time.Time `json:"updated_at"`
}

// ToPolicyResponse maps a policy entity to its API shape.
func ToPolicyResponse(p repository.Policy) PolicyResponse {
	return PolicyResponse{
		ID:                               p.ID,
		PipelineID:                       p.PipelineID,
		FirstResponseStart:               p.FirstResponseStart,
		IncludeAutomationInFirstResponse: p.IncludeAutomationInFirstResponse,
		WarnAfterSeconds:                 p.WarnAfterSeconds,
		OverdueAfterSeconds:              p.OverdueAfterSeconds,
		NotifyAssignee:                   p.NotifyAssignee,
		NotifyManager:                    p.NotifyManager,
		IsActive:                         p.IsActive,
		CreatedAt:                        p.CreatedAt,
		UpdatedAt:                        p.UpdatedAt,
	}
}
