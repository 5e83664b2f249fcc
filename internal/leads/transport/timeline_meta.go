package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Typed metadata payloads, one variant per timeline event type. Writers
// marshal these shapes; TimelineDetail is the single place they are
// interpreted.

// LeadCreatedMeta is the payload of a lead_created event.
type LeadCreatedMeta struct {
	Source       string `json:"source"`
	CampaignName string `json:"campaign_name"`
}

// LeadAssignedMeta is the payload of a lead_assigned event.
type LeadAssignedMeta struct {
	QueueID        uuid.UUID `json:"queue_id"`
	QueueName      string    `json:"queue_name"`
	UserID         uuid.UUID `json:"user_id"`
	Via            string    `json:"via"`
	Redistribution bool      `json:"redistribution"`
}

// FirstResponseMeta is the payload of a first_response event.
type FirstResponseMeta struct {
	Seconds int64  `json:"seconds"`
	Channel string `json:"channel"`
}

// SLAEscalationMeta is the payload of sla_warning and sla_overdue events.
type SLAEscalationMeta struct {
	Status         string `json:"status"`
	SecondsElapsed int64  `json:"seconds_elapsed"`
}

// DealStatusMeta is the payload of a deal_status_changed event.
type DealStatusMeta struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// TimelineDetail renders the human-readable detail line for a timeline entry
// from its typed metadata. Unknown event types and entries without usable
// metadata fall back to the stored title, so old rows keep rendering.
func TimelineDetail(e repository.TimelineEvent) string {
	switch e.EventType {
	case repository.TimelineLeadCreated:
		var m LeadCreatedMeta
		if unmarshalMeta(e.Metadata, &m) && m.Source != "" {
			if m.CampaignName != "" {
				return fmt.Sprintf("Lead captured from %s (%s)", m.Source, m.CampaignName)
			}
			return fmt.Sprintf("Lead captured from %s", m.Source)
		}

	case repository.TimelineLeadAssigned:
		var m LeadAssignedMeta
		if unmarshalMeta(e.Metadata, &m) && m.QueueName != "" {
			if m.Redistribution {
				return fmt.Sprintf("Redistributed to queue %q via %s", m.QueueName, m.Via)
			}
			return fmt.Sprintf("Assigned from queue %q via %s", m.QueueName, m.Via)
		}

	case repository.TimelineFirstResponse:
		var m FirstResponseMeta
		if unmarshalMeta(e.Metadata, &m) && m.Channel != "" {
			return fmt.Sprintf("First response via %s after %s", m.Channel, humanDuration(m.Seconds))
		}

	case repository.TimelineSLAWarning, repository.TimelineSLAOverdue:
		var m SLAEscalationMeta
		if unmarshalMeta(e.Metadata, &m) && m.SecondsElapsed > 0 {
			return fmt.Sprintf("No response for %s", humanDuration(m.SecondsElapsed))
		}

	case repository.TimelineDealStatusChanged:
		var m DealStatusMeta
		if unmarshalMeta(e.Metadata, &m) && m.NewStatus != "" {
			return fmt.Sprintf("Deal moved from %s to %s", m.OldStatus, m.NewStatus)
		}

	case repository.TimelineWhatsAppMessageSent,
		repository.TimelineWhatsAppMessageReceived,
		repository.TimelineNoteAdded,
		repository.TimelineCallLogged:
		// Title-only events, no structured payload.
	}
	return e.Title
}

func unmarshalMeta(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func humanDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return (time.Duration(seconds) * time.Second).String()
}
