// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the system (webhook, manual
// entry or import).
type LeadCreated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Source         string    `json:"source,omitempty"`
	CampaignName   string    `json:"campaignName,omitempty"`
	City           string    `json:"city,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadDistributed is published when the round-robin engine assigns a lead.
type LeadDistributed struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	QueueID        uuid.UUID `json:"queueId"`
	UserID         uuid.UUID `json:"userId"`
	Via            string    `json:"via"`
	Redistribution bool      `json:"redistribution"`
}

func (e LeadDistributed) EventName() string { return "leads.distributed" }

// DealStatusChanged is published on every deal status transition.
type DealStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	OldStatus      string    `json:"oldStatus"`
	NewStatus      string    `json:"newStatus"`
	ChangedByID    uuid.UUID `json:"changedById"`
}

func (e DealStatusChanged) EventName() string { return "leads.deal_status.changed" }

// =============================================================================
// SLA Domain Events
// =============================================================================

// FirstResponseRecorded is published when a lead's first response is stamped.
type FirstResponseRecorded struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Channel        string     `json:"channel"`
	Seconds        int64      `json:"seconds"`
	ActorUserID    *uuid.UUID `json:"actorUserId,omitempty"`
	IsAutomation   bool       `json:"isAutomation"`
}

func (e FirstResponseRecorded) EventName() string { return "sla.first_response.recorded" }

// SLAStatusEscalated is published when the checker moves a lead to warning or
// overdue. Notifications are written synchronously by the checker; this event
// is informational for decoupled consumers.
type SLAStatusEscalated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	NewStatus      string    `json:"newStatus"`
	SecondsElapsed int64     `json:"secondsElapsed"`
}

func (e SLAStatusEscalated) EventName() string { return "sla.status.escalated" }

// =============================================================================
// Finance Domain Events
// =============================================================================

// CommissionCreated is published when a won deal generates a commission row.
type CommissionCreated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	UserID         uuid.UUID `json:"userId"`
	Amount         float64   `json:"amount"`
}

func (e CommissionCreated) EventName() string { return "finance.commission.created" }
