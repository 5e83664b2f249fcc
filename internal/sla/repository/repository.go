// Package repository provides PostgreSQL persistence for SLA policies and the
// SLA columns tracked on leads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// First response start anchors.
const (
	StartLeadCreated  = "lead_created"
	StartLeadAssigned = "lead_assigned"
	StartFirstInbound = "first_inbound_message"
)

// Policy is the per-pipeline SLA configuration.
type Policy struct {
	ID                               uuid.UUID
	OrganizationID                   uuid.UUID
	PipelineID                       uuid.UUID
	FirstResponseStart               string
	IncludeAutomationInFirstResponse bool
	WarnAfterSeconds                 int64
	OverdueAfterSeconds              int64
	NotifyAssignee                   bool
	NotifyManager                    bool
	IsActive                         bool
	CreatedAt                        time.Time
	UpdatedAt                        time.Time
}

// Repository implements SLA persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates an SLA repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const policyCols = `
	id, organization_id, pipeline_id, first_response_start,
	include_automation_in_first_response, warn_after_seconds, overdue_after_seconds,
	notify_assignee, notify_manager, is_active, created_at, updated_at`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.OrganizationID, &p.PipelineID, &p.FirstResponseStart,
		&p.IncludeAutomationInFirstResponse, &p.WarnAfterSeconds, &p.OverdueAfterSeconds,
		&p.NotifyAssignee, &p.NotifyManager, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPolicyByPipeline returns the active policy of a pipeline.
func (r *Repository) GetPolicyByPipeline(ctx context.Context, organizationID, pipelineID uuid.UUID) (Policy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+policyCols+`
		FROM pipeline_sla_policies
		WHERE organization_id = $1 AND pipeline_id = $2 AND is_active = true
	`, organizationID, pipelineID)

	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, apperr.NotFound("sla policy not found")
		}
		return Policy{}, fmt.Errorf("get sla policy: %w", err)
	}
	return policy, nil
}

// UpsertPolicyParams holds the fields for creating or replacing a pipeline's
// SLA policy.
type UpsertPolicyParams struct {
	OrganizationID                   uuid.UUID
	PipelineID                       uuid.UUID
	FirstResponseStart               string
	IncludeAutomationInFirstResponse bool
	WarnAfterSeconds                 int64
	OverdueAfterSeconds              int64
	NotifyAssignee                   bool
	NotifyManager                    bool
}

// UpsertPolicy creates or replaces the policy for a pipeline. One policy per
// pipeline is enforced by the unique constraint.
func (r *Repository) UpsertPolicy(ctx context.Context, params UpsertPolicyParams) (Policy, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_sla_policies (
			organization_id, pipeline_id, first_response_start,
			include_automation_in_first_response, warn_after_seconds, overdue_after_seconds,
			notify_assignee, notify_manager, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		ON CONFLICT (pipeline_id) DO UPDATE SET
			first_response_start = EXCLUDED.first_response_start,
			include_automation_in_first_response = EXCLUDED.include_automation_in_first_response,
			warn_after_seconds = EXCLUDED.warn_after_seconds,
			overdue_after_seconds = EXCLUDED.overdue_after_seconds,
			notify_assignee = EXCLUDED.notify_assignee,
			notify_manager = EXCLUDED.notify_manager,
			is_active = true,
			updated_at = now()
		RETURNING`+policyCols+`
	`, params.OrganizationID, params.PipelineID, params.FirstResponseStart,
		params.IncludeAutomationInFirstResponse, params.WarnAfterSeconds, params.OverdueAfterSeconds,
		params.NotifyAssignee, params.NotifyManager)

	policy, err := scanPolicy(row)
	if err != nil {
		return Policy{}, fmt.Errorf("upsert sla policy: %w", err)
	}
	return policy, nil
}

// DeactivatePolicy disables a pipeline's policy without deleting it.
func (r *Repository) DeactivatePolicy(ctx context.Context, organizationID, pipelineID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_sla_policies
		SET is_active = false, updated_at = now()
		WHERE organization_id = $1 AND pipeline_id = $2
	`, organizationID, pipelineID)
	if err != nil {
		return fmt.Errorf("deactivate sla policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("sla policy not found")
	}
	return nil
}

// LeadView is the slim lead projection the first-response calculator needs.
type LeadView struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	Name            string
	PipelineID      *uuid.UUID
	AssignedUserID  *uuid.UUID
	CreatedAt       time.Time
	FirstResponseAt *time.Time
	FirstTouchAt    *time.Time
	DealStatus      string
}

// GetLeadView fetches the SLA-relevant lead columns.
func (r *Repository) GetLeadView(ctx context.Context, leadID, organizationID uuid.UUID) (LeadView, error) {
	var v LeadView
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, pipeline_id, assigned_user_id,
		       created_at, first_response_at, first_touch_at, deal_status
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, leadID, organizationID).Scan(&v.ID, &v.OrganizationID, &v.Name, &v.PipelineID, &v.AssignedUserID,
		&v.CreatedAt, &v.FirstResponseAt, &v.FirstTouchAt, &v.DealStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeadView{}, apperr.NotFound("lead not found")
		}
		return LeadView{}, fmt.Errorf("get lead sla view: %w", err)
	}
	return v, nil
}

// StampFirstResponseParams holds the first response facts to persist.
type StampFirstResponseParams struct {
	LeadID       uuid.UUID
	At           time.Time
	Seconds      int64
	Channel      string
	ActorUserID  *uuid.UUID
	IsAutomation bool
}

// StampFirstResponse records the first response on a lead. The write is
// conditional on first_response_at still being NULL, which makes the stamp
// write-once under concurrent callers. Stamping also settles sla_status back
// to ok. Returns false when another caller already won.
func (r *Repository) StampFirstResponse(ctx context.Context, params StampFirstResponseParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET first_response_at = $2,
		    first_response_seconds = $3,
		    first_response_channel = $4,
		    first_response_actor_user_id = $5,
		    first_response_is_automation = $6,
		    sla_status = 'ok',
		    updated_at = now()
		WHERE id = $1 AND first_response_at IS NULL
	`, params.LeadID, params.At, params.Seconds, params.Channel, params.ActorUserID, params.IsAutomation)
	if err != nil {
		return false, fmt.Errorf("stamp first response: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// StampFirstTouch records the first human touch on a lead, write-once.
func (r *Repository) StampFirstTouch(ctx context.Context, leadID uuid.UUID, at time.Time, seconds int64, actorUserID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET first_touch_at = $2,
		    first_touch_seconds = $3,
		    first_touch_actor_user_id = $4,
		    updated_at = now()
		WHERE id = $1 AND first_touch_at IS NULL
	`, leadID, at, seconds, actorUserID)
	if err != nil {
		return false, fmt.Errorf("stamp first touch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PendingLead is a sweep candidate: an open lead without a first response,
// carrying its pipeline's policy columns when an active policy exists.
type PendingLead struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	PipelineID     *uuid.UUID
	AssignedUserID *uuid.UUID
	CreatedAt      time.Time
	SLAStatus      string

	PolicyFirstResponseStart  *string
	PolicyIncludeAutomation   *bool
	PolicyWarnAfterSeconds    *int64
	PolicyOverdueAfterSeconds *int64
	PolicyNotifyAssignee      *bool
	PolicyNotifyManager       *bool
}

// ListPending returns every sweep candidate across all organizations, oldest
// first so the most at-risk leads are processed before any interruption.
func (r *Repository) ListPending(ctx context.Context) ([]PendingLead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.organization_id, l.name, l.pipeline_id, l.assigned_user_id,
		       l.created_at, l.sla_status,
		       p.first_response_start, p.include_automation_in_first_response,
		       p.warn_after_seconds, p.overdue_after_seconds,
		       p.notify_assignee, p.notify_manager
		FROM leads l
		LEFT JOIN pipeline_sla_policies p
		       ON p.pipeline_id = l.pipeline_id AND p.is_active = true
		WHERE l.first_response_at IS NULL AND l.deal_status = 'open'
		ORDER BY l.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sla pending leads: %w", err)
	}
	defer rows.Close()

	var pending []PendingLead
	for rows.Next() {
		var p PendingLead
		if err := rows.Scan(&p.LeadID, &p.OrganizationID, &p.Name, &p.PipelineID, &p.AssignedUserID,
			&p.CreatedAt, &p.SLAStatus,
			&p.PolicyFirstResponseStart, &p.PolicyIncludeAutomation,
			&p.PolicyWarnAfterSeconds, &p.PolicyOverdueAfterSeconds,
			&p.PolicyNotifyAssignee, &p.PolicyNotifyManager); err != nil {
			return nil, fmt.Errorf("scan sla pending lead: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sla pending leads: %w", err)
	}
	return pending, nil
}

// UpdateSLACheck persists the latest sweep observation for a lead.
func (r *Repository) UpdateSLACheck(ctx context.Context, leadID uuid.UUID, status string, secondsElapsed int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET sla_status = $2, sla_seconds_elapsed = $3, sla_last_checked_at = now(), updated_at = now()
		WHERE id = $1
	`, leadID, status, secondsElapsed)
	if err != nil {
		return fmt.Errorf("update sla check: %w", err)
	}
	return nil
}

// ClaimWarningNotification atomically claims the right to send the warning
// notification for a lead. Only one sweep across all instances ever wins.
func (r *Repository) ClaimWarningNotification(ctx context.Context, leadID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET sla_notified_warning_at = now(), updated_at = now()
		WHERE id = $1 AND sla_notified_warning_at IS NULL
	`, leadID)
	if err != nil {
		return false, fmt.Errorf("claim sla warning notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimOverdueNotification atomically claims the right to send the overdue
// notification for a lead.
func (r *Repository) ClaimOverdueNotification(ctx context.Context, leadID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET sla_notified_overdue_at = now(), updated_at = now()
		WHERE id = $1 AND sla_notified_overdue_at IS NULL
	`, leadID)
	if err != nil {
		return false, fmt.Errorf("claim sla overdue notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
