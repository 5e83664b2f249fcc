package repository

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrgUser is the slim user projection the lead workflows need.
type OrgUser struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Email          string
	Role           string
	IsActive       bool
}

// GetUser fetches a single user scoped to an organization.
func (r *Repository) GetUser(ctx context.Context, userID, organizationID uuid.UUID) (OrgUser, error) {
	var u OrgUser
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, email, role, is_active
		FROM users
		WHERE id = $1 AND organization_id = $2
	`, userID, organizationID).Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrgUser{}, apperr.NotFound("user not found")
		}
		return OrgUser{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListActiveAdmins returns the organization's active admin users. Used to
// fan out manager notifications.
func (r *Repository) ListActiveAdmins(ctx context.Context, organizationID uuid.UUID) ([]OrgUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, email, role, is_active
		FROM users
		WHERE organization_id = $1 AND role = 'admin' AND is_active = true
		ORDER BY created_at ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list active admins: %w", err)
	}
	defer rows.Close()

	var users []OrgUser
	for rows.Next() {
		var u OrgUser
		if err := rows.Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.Role, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan admin user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin users: %w", err)
	}
	return users, nil
}
