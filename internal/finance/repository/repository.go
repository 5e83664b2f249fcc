// Package repository provides PostgreSQL persistence for commissions and
// receivables.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Commission is a pending payout for the user who won a deal.
type Commission struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	UserID         uuid.UUID
	Amount         float64
	Percentage     float64
	BaseValue      float64
	Status         string
	CreatedAt      time.Time
}

// Receivable is the amount the organization expects to collect for a won deal.
type Receivable struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	Description    string
	Amount         float64
	Status         string
	DueDate        *time.Time
	CreatedAt      time.Time
}

// Repository implements finance persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a finance repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertCommissionParams holds the fields for a commission row.
type InsertCommissionParams struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	UserID         uuid.UUID
	Amount         float64
	Percentage     float64
	BaseValue      float64
}

// InsertCommission creates the commission for a lead. The unique index on
// lead_id makes the insert idempotent; the bool reports whether a new row was
// actually written.
func (r *Repository) InsertCommission(ctx context.Context, params InsertCommissionParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO commissions (organization_id, lead_id, user_id, amount, percentage, base_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id) DO NOTHING
	`, params.OrganizationID, params.LeadID, params.UserID, params.Amount, params.Percentage, params.BaseValue)
	if err != nil {
		return false, fmt.Errorf("insert commission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertReceivableParams holds the fields for a receivable row.
type InsertReceivableParams struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	Description    string
	Amount         float64
}

// InsertReceivable creates the receivable for a lead, idempotent per lead.
func (r *Repository) InsertReceivable(ctx context.Context, params InsertReceivableParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO receivables (organization_id, lead_id, description, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lead_id) DO NOTHING
	`, params.OrganizationID, params.LeadID, params.Description, params.Amount)
	if err != nil {
		return false, fmt.Errorf("insert receivable: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListCommissions returns an organization's commissions, newest first.
func (r *Repository) ListCommissions(ctx context.Context, organizationID uuid.UUID, limit int) ([]Commission, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, lead_id, user_id, amount, percentage, base_value, status, created_at
		FROM commissions
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var commissions []Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.LeadID, &c.UserID, &c.Amount, &c.Percentage, &c.BaseValue, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		commissions = append(commissions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commissions: %w", err)
	}
	return commissions, nil
}

// ListReceivables returns an organization's receivables, newest first.
func (r *Repository) ListReceivables(ctx context.Context, organizationID uuid.UUID, limit int) ([]Receivable, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, lead_id, description, amount, status, due_date, created_at
		FROM receivables
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list receivables: %w", err)
	}
	defer rows.Close()

	var receivables []Receivable
	for rows.Next() {
		var rec Receivable
		if err := rows.Scan(&rec.ID, &rec.OrganizationID, &rec.LeadID, &rec.Description, &rec.Amount, &rec.Status, &rec.DueDate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan receivable: %w", err)
		}
		receivables = append(receivables, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receivables: %w", err)
	}
	return receivables, nil
}
