package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Activity types recorded against a lead.
const (
	ActivityDistribution = "distribution"
	ActivitySLA          = "sla"
	ActivityDealStatus   = "deal_status"
	ActivityNote         = "note"
)

// Activity is a lightweight audit entry shown in the lead's activity feed.
type Activity struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	ActivityType   string
	Description    string
	ActorUserID    *uuid.UUID
	CreatedAt      time.Time
}

// CreateActivityParams holds the fields for a new activity entry.
type CreateActivityParams struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	ActivityType   string
	Description    string
	ActorUserID    *uuid.UUID
}

// CreateActivity inserts an activity row.
func (r *Repository) CreateActivity(ctx context.Context, params CreateActivityParams) (Activity, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_activities (lead_id, organization_id, activity_type, description, actor_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, organization_id, activity_type, description, actor_user_id, created_at
	`, params.LeadID, params.OrganizationID, params.ActivityType, params.Description, params.ActorUserID)

	var a Activity
	err := row.Scan(&a.ID, &a.LeadID, &a.OrganizationID, &a.ActivityType, &a.Description, &a.ActorUserID, &a.CreatedAt)
	if err != nil {
		return Activity{}, fmt.Errorf("create activity: %w", err)
	}
	return a, nil
}

// ListActivities returns a lead's activities, newest first.
func (r *Repository) ListActivities(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, organization_id, activity_type, description, actor_user_id, created_at
		FROM lead_activities
		WHERE lead_id = $1 AND organization_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, leadID, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.OrganizationID, &a.ActivityType, &a.Description, &a.ActorUserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return activities, nil
}
