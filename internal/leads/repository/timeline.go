package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Timeline event types. The timeline is append-only; rows are never updated
// or deleted.
const (
	TimelineLeadCreated             = "lead_created"
	TimelineLeadAssigned            = "lead_assigned"
	TimelineFirstResponse           = "first_response"
	TimelineSLAWarning              = "sla_warning"
	TimelineSLAOverdue              = "sla_overdue"
	TimelineDealStatusChanged       = "deal_status_changed"
	TimelineWhatsAppMessageSent     = "whatsapp_message_sent"
	TimelineWhatsAppMessageReceived = "whatsapp_message_received"
	TimelineNoteAdded               = "note_added"
	TimelineCallLogged              = "call_logged"
)

// Timeline actor types.
const (
	ActorTypeUser       = "user"
	ActorTypeSystem     = "system"
	ActorTypeAutomation = "automation"
)

// TimelineEvent is one immutable entry in a lead's history.
type TimelineEvent struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	EventType      string
	Title          string
	ActorUserID    *uuid.UUID
	ActorType      string
	Channel        *string
	IsAutomation   bool
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

// AppendTimelineParams holds the fields for a new timeline entry.
type AppendTimelineParams struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	EventType      string
	Title          string
	ActorUserID    *uuid.UUID
	ActorType      string
	Channel        *string
	IsAutomation   bool
	Metadata       any
}

// AppendTimeline inserts a timeline entry. Metadata is marshalled to JSONB;
// a nil Metadata stores an empty object.
func (r *Repository) AppendTimeline(ctx context.Context, params AppendTimelineParams) (TimelineEvent, error) {
	metadata := []byte("{}")
	if params.Metadata != nil {
		b, err := json.Marshal(params.Metadata)
		if err != nil {
			return TimelineEvent{}, fmt.Errorf("marshal timeline metadata: %w", err)
		}
		metadata = b
	}

	actorType := params.ActorType
	if actorType == "" {
		actorType = ActorTypeSystem
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_timeline_events (
			lead_id, organization_id, event_type, title,
			actor_user_id, actor_type, channel, is_automation, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, lead_id, organization_id, event_type, title,
		          actor_user_id, actor_type, channel, is_automation, metadata, created_at
	`, params.LeadID, params.OrganizationID, params.EventType, params.Title,
		params.ActorUserID, actorType, params.Channel, params.IsAutomation, metadata)

	var e TimelineEvent
	err := row.Scan(&e.ID, &e.LeadID, &e.OrganizationID, &e.EventType, &e.Title,
		&e.ActorUserID, &e.ActorType, &e.Channel, &e.IsAutomation, &e.Metadata, &e.CreatedAt)
	if err != nil {
		return TimelineEvent{}, fmt.Errorf("append timeline event: %w", err)
	}
	return e, nil
}

// ListTimeline returns a lead's timeline, newest first.
func (r *Repository) ListTimeline(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]TimelineEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, organization_id, event_type, title,
		       actor_user_id, actor_type, channel, is_automation, metadata, created_at
		FROM lead_timeline_events
		WHERE lead_id = $1 AND organization_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, leadID, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.LeadID, &e.OrganizationID, &e.EventType, &e.Title,
			&e.ActorUserID, &e.ActorType, &e.Channel, &e.IsAutomation, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}

// EarliestTimelineAt returns the created_at of the oldest timeline entry of
// the given type for a lead, or nil when no such entry exists.
func (r *Repository) EarliestTimelineAt(ctx context.Context, leadID uuid.UUID, eventType string) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at
		FROM lead_timeline_events
		WHERE lead_id = $1 AND event_type = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, leadID, eventType).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("earliest timeline event: %w", err)
	}
	return &at, nil
}
