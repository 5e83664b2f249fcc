// Package repository provides PostgreSQL persistence for the leads bounded context.
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

const leadNotFoundMessage = "lead not found"

// DealStatus values for a lead's sales opportunity.
const (
	DealStatusOpen = "open"
	DealStatusWon  = "won"
	DealStatusLost = "lost"
)

// SLAStatus values tracked on a lead awaiting first response.
const (
	SLAStatusOK      = "ok"
	SLAStatusWarning = "warning"
	SLAStatusOverdue = "overdue"
)

// Lead is the mutable lead entity.
type Lead struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Phone          *string
	Email          *string
	Source         *string
	CampaignName   *string
	City           *string
	Tags           []string

	PipelineID     *uuid.UUID
	StageID        *uuid.UUID
	AssignedUserID *uuid.UUID
	DistributedAt  *time.Time

	DealStatus string
	WonAt      *time.Time
	LostAt     *time.Time
	LostReason *string

	ValorInteresse       *float64
	CommissionPercentage *float64
	PropertyID           *uuid.UUID

	SLAStatus            string
	SLASecondsElapsed    int64
	SLALastCheckedAt     *time.Time
	SLANotifiedWarningAt *time.Time
	SLANotifiedOverdueAt *time.Time

	FirstResponseAt           *time.Time
	FirstResponseSeconds      *int64
	FirstResponseChannel      *string
	FirstResponseActorUserID  *uuid.UUID
	FirstResponseIsAutomation *bool

	FirstTouchAt          *time.Time
	FirstTouchSeconds     *int64
	FirstTouchActorUserID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateLeadParams holds the intake attributes for a new lead.
type CreateLeadParams struct {
	OrganizationID       uuid.UUID
	Name                 string
	Phone                *string
	Email                *string
	Source               *string
	CampaignName         *string
	City                 *string
	Tags                 []string
	PipelineID           *uuid.UUID
	StageID              *uuid.UUID
	ValorInteresse       *float64
	CommissionPercentage *float64
	PropertyID           *uuid.UUID
}

// Repository implements lead persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadSelectCols = `
	id, organization_id, name, phone, email, source, campaign_name, city, tags,
	pipeline_id, stage_id, assigned_user_id, distributed_at,
	deal_status, won_at, lost_at, lost_reason,
	valor_interesse, commission_percentage, property_id,
	sla_status, sla_seconds_elapsed, sla_last_checked_at, sla_notified_warning_at, sla_notified_overdue_at,
	first_response_at, first_response_seconds, first_response_channel, first_response_actor_user_id, first_response_is_automation,
	first_touch_at, first_touch_seconds, first_touch_actor_user_id,
	created_at, updated_at`

// leadRowScanner is satisfied by pgx.Rows and pgx.Row so that scanLead can be
// shared between single-row and multi-row queries.
type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s leadRowScanner) (Lead, error) {
	var l Lead
	err := s.Scan(
		&l.ID, &l.OrganizationID, &l.Name, &l.Phone, &l.Email, &l.Source, &l.CampaignName, &l.City, &l.Tags,
		&l.PipelineID, &l.StageID, &l.AssignedUserID, &l.DistributedAt,
		&l.DealStatus, &l.WonAt, &l.LostAt, &l.LostReason,
		&l.ValorInteresse, &l.CommissionPercentage, &l.PropertyID,
		&l.SLAStatus, &l.SLASecondsElapsed, &l.SLALastCheckedAt, &l.SLANotifiedWarningAt, &l.SLANotifiedOverdueAt,
		&l.FirstResponseAt, &l.FirstResponseSeconds, &l.FirstResponseChannel, &l.FirstResponseActorUserID, &l.FirstResponseIsAutomation,
		&l.FirstTouchAt, &l.FirstTouchSeconds, &l.FirstTouchActorUserID,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

// Create inserts a new lead and returns the stored row.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			organization_id, name, phone, email, source, campaign_name, city, tags,
			pipeline_id, stage_id, valor_interesse, commission_percentage, property_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING`+leadSelectCols+`
	`, params.OrganizationID, params.Name, params.Phone, params.Email, params.Source,
		params.CampaignName, params.City, params.Tags,
		params.PipelineID, params.StageID, params.ValorInteresse, params.CommissionPercentage, params.PropertyID)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID retrieves a lead scoped to its organization.
func (r *Repository) GetByID(ctx context.Context, leadID, organizationID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// Assign sets the distribution target fields on a lead and stamps distributed_at.
func (r *Repository) Assign(ctx context.Context, leadID, organizationID, userID uuid.UUID, pipelineID, stageID *uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET assigned_user_id = $3,
		    pipeline_id = COALESCE($4, pipeline_id),
		    stage_id = COALESCE($5, stage_id),
		    distributed_at = now(),
		    updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING`+leadSelectCols+`
	`, leadID, organizationID, userID, pipelineID, stageID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("assign lead: %w", err)
	}
	return lead, nil
}

// UpdateDealValue refreshes the financial inputs supplied with a status change.
// Nil params leave the stored values untouched.
func (r *Repository) UpdateDealValue(ctx context.Context, leadID, organizationID uuid.UUID, valorInteresse, commissionPercentage *float64, propertyID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET valor_interesse = COALESCE($3, valor_interesse),
		    commission_percentage = COALESCE($4, commission_percentage),
		    property_id = COALESCE($5, property_id),
		    updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, leadID, organizationID, valorInteresse, commissionPercentage, propertyID)
	if err != nil {
		return fmt.Errorf("update deal value: %w", err)
	}
	return nil
}

// MarkWon transitions a lead to won: stamps won_at and clears the lost fields.
func (r *Repository) MarkWon(ctx context.Context, leadID, organizationID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET deal_status = 'won', won_at = now(), lost_at = NULL, lost_reason = NULL, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING`+leadSelectCols+`
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("mark lead won: %w", err)
	}
	return lead, nil
}

// MarkLost transitions a lead to lost. The reason starts empty; callers may
// fill it in afterwards.
func (r *Repository) MarkLost(ctx context.Context, leadID, organizationID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET deal_status = 'lost', lost_at = now(), won_at = NULL, lost_reason = '', updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING`+leadSelectCols+`
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("mark lead lost: %w", err)
	}
	return lead, nil
}

// Reopen returns a lead to open, clearing the terminal-state stamps. Financial
// records created while the lead was won are intentionally left in place.
func (r *Repository) Reopen(ctx context.Context, leadID, organizationID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET deal_status = 'open', won_at = NULL, lost_at = NULL, lost_reason = NULL, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING`+leadSelectCols+`
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("reopen lead: %w", err)
	}
	return lead, nil
}
