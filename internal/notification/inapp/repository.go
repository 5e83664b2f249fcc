// Package inapp implements in-app notifications delivered to users' bells.
package inapp

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	UserID           uuid.UUID  `json:"user_id"`
	NotificationType string     `json:"notification_type"`
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	LeadID           *uuid.UUID `json:"lead_id,omitempty"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Repository implements notification persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const (
	opCreate      = "inapp.Create"
	opList        = "inapp.List"
	opCountUnread = "inapp.CountUnread"
	opMarkRead    = "inapp.MarkRead"
	opMarkAllRead = "inapp.MarkAllRead"
)

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, organizationID, userID uuid.UUID, notificationType, title, body string, leadID *uuid.UUID) (Notification, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO in_app_notifications (organization_id, user_id, notification_type, title, body, lead_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, organization_id, user_id, notification_type, title, body, lead_id, read_at, created_at
	`, organizationID, userID, notificationType, title, body, leadID)

	var n Notification
	err := row.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.NotificationType, &n.Title, &n.Body, &n.LeadID, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("%s: %w", opCreate, err)
	}
	return n, nil
}

// List returns a user's notifications, newest first.
func (r *Repository) List(ctx context.Context, organizationID, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, user_id, notification_type, title, body, lead_id, read_at, created_at
		FROM in_app_notifications
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, organizationID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opList, err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.NotificationType, &n.Title, &n.Body, &n.LeadID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", opList, err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", opList, err)
	}
	return notifications, nil
}

// CountUnread returns the user's unread notification count.
func (r *Repository) CountUnread(ctx context.Context, organizationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM in_app_notifications
		WHERE organization_id = $1 AND user_id = $2 AND read_at IS NULL
	`, organizationID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opCountUnread, err)
	}
	return count, nil
}

// MarkRead stamps a single notification as read.
func (r *Repository) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE in_app_notifications
		SET read_at = now()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", opMarkRead, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found or already read")
	}
	return nil
}

// MarkAllRead stamps every unread notification of a user as read.
func (r *Repository) MarkAllRead(ctx context.Context, organizationID, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE in_app_notifications
		SET read_at = now()
		WHERE organization_id = $1 AND user_id = $2 AND read_at IS NULL
	`, organizationID, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opMarkAllRead, err)
	}
	return tag.RowsAffected(), nil
}
