// Package transport defines the HTTP request and response shapes for the
// distribution module.
package transport

import (
	"time"

	"leadflow_backend/internal/distribution/repository"

	"github.com/google/uuid"
)

// RunRequest distributes an existing lead.
type RunRequest struct {
	LeadID uuid.UUID `json:"lead_id" binding:"required"`
}

// TestRequest dry-runs the engine against hypothetical lead attributes.
type TestRequest struct {
	Source       *string    `json:"source,omitempty"`
	CampaignName *string    `json:"campaign_name,omitempty"`
	City         *string    `json:"city,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	PipelineID   *uuid.UUID `json:"pipeline_id,omitempty"`
}

// Outcome reports where the engine routed (or would route) a lead.
type Outcome struct {
	Matched        bool       `json:"matched"`
	Via            string     `json:"via,omitempty"`
	RuleID         *uuid.UUID `json:"rule_id,omitempty"`
	RuleName       string     `json:"rule_name,omitempty"`
	QueueID        *uuid.UUID `json:"queue_id,omitempty"`
	QueueName      string     `json:"queue_name,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	UserName       string     `json:"user_name,omitempty"`
	UserEmail      string     `json:"user_email,omitempty"`
	PipelineID     *uuid.UUID `json:"pipeline_id,omitempty"`
	StageID        *uuid.UUID `json:"stage_id,omitempty"`
	Redistribution bool       `json:"redistribution"`
	Persisted      bool       `json:"persisted"`
}

// CreateQueueRequest creates a round-robin queue.
type CreateQueueRequest struct {
	Name             string     `json:"name" binding:"required,min=1,max=120"`
	TargetPipelineID *uuid.UUID `json:"target_pipeline_id,omitempty"`
	TargetStageID    *uuid.UUID `json:"target_stage_id,omitempty"`
	IsFallback       bool       `json:"is_fallback"`
}

// AddMemberRequest adds a user to a queue. A zero weight falls back to the
// configured default.
type AddMemberRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	Weight   int       `json:"weight" binding:"omitempty,gte=1,lte=1000"`
	Position int       `json:"position" binding:"gte=0"`
}

// CreateRuleRequest creates a distribution rule. Omitted predicates match any
// lead.
type CreateRuleRequest struct {
	Name             string     `json:"name" binding:"required,min=1,max=120"`
	Priority         int        `json:"priority" binding:"gte=0"`
	QueueID          uuid.UUID  `json:"queue_id" binding:"required"`
	Source           *string    `json:"source,omitempty"`
	CampaignContains *string    `json:"campaign_contains,omitempty"`
	City             *string    `json:"city,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	PipelineID       *uuid.UUID `json:"pipeline_id,omitempty"`
}

// QueueResponse is the API projection of a queue.
type QueueResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	TargetPipelineID *uuid.UUID `json:"target_pipeline_id,omitempty"`
	TargetStageID    *uuid.UUID `json:"target_stage_id,omitempty"`
	IsFallback       bool       `json:"is_fallback"`
	CounterResetAt   *time.Time `json:"counter_reset_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToQueueResponse maps a queue entity to its API shape.
func ToQueueResponse(q repository.Queue) QueueResponse {
	return QueueResponse{
		ID:               q.ID,
		Name:             q.Name,
		TargetPipelineID: q.TargetPipelineID,
		TargetStageID:    q.TargetStageID,
		IsFallback:       q.IsFallback,
		CounterResetAt:   q.CounterResetAt,
		CreatedAt:        q.CreatedAt,
	}
}

// MemberStat is one member's standing in a queue's current counting window.
type MemberStat struct {
	UserID      uuid.UUID `json:"user_id"`
	UserName    string    `json:"user_name"`
	Weight      int       `json:"weight"`
	Position    int       `json:"position"`
	Assignments int64     `json:"assignments"`
}

// QueueStats reports a queue's distribution state.
type QueueStats struct {
	QueueID        uuid.UUID    `json:"queue_id"`
	QueueName      string       `json:"queue_name"`
	CounterResetAt *time.Time   `json:"counter_reset_at,omitempty"`
	Total          int64        `json:"total"`
	Members        []MemberStat `json:"members"`
}

// RuleResponse is the API projection of a rule.
type RuleResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Priority         int        `json:"priority"`
	QueueID          uuid.UUID  `json:"queue_id"`
	Source           *string    `json:"source,omitempty"`
	CampaignContains *string    `json:"campaign_contains,omitempty"`
	City             *string    `json:"city,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	PipelineID       *uuid.UUID `json:"pipeline_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToRuleResponse maps a rule entity to its API shape.
func ToRuleResponse(r repository.Rule) RuleResponse {
	return RuleResponse{
		ID:               r.ID,
		Name:             r.Name,
		Priority:         r.Priority,
		QueueID:          r.QueueID,
		Source:           r.Source,
		CampaignContains: r.CampaignContains,
		City:             r.City,
		Tags:             r.Tags,
		PipelineID:       r.PipelineID,
		CreatedAt:        r.CreatedAt,
	}
}
