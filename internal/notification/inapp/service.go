package inapp

import (
	"context"

	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the notification service needs.
type Store interface {
	Create(ctx context.Context, organizationID, userID uuid.UUID, notificationType, title, body string, leadID *uuid.UUID) (Notification, error)
	List(ctx context.Context, organizationID, userID uuid.UUID, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, organizationID, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, organizationID, userID uuid.UUID) (int64, error)
}

// Service creates and serves in-app notifications. It satisfies the Notifier
// ports of the SLA and distribution services.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates a notification service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Notify writes a notification for a user.
func (s *Service) Notify(ctx context.Context, organizationID, userID uuid.UUID, notificationType, title, body string, leadID *uuid.UUID) error {
	_, err := s.store.Create(ctx, organizationID, userID, notificationType, title, body, leadID)
	return err
}

// List returns a user's notifications.
func (s *Service) List(ctx context.Context, organizationID, userID uuid.UUID, limit int) ([]Notification, error) {
	return s.store.List(ctx, organizationID, userID, limit)
}

// CountUnread returns a user's unread count.
func (s *Service) CountUnread(ctx context.Context, organizationID, userID uuid.UUID) (int64, error) {
	return s.store.CountUnread(ctx, organizationID, userID)
}

// MarkRead stamps one notification as read.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.store.MarkRead(ctx, notificationID, userID)
}

// MarkAllRead stamps all of a user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, organizationID, userID uuid.UUID) (int64, error) {
	return s.store.MarkAllRead(ctx, organizationID, userID)
}
