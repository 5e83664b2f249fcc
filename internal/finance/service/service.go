// Package service implements the financial records created when a deal is won.
package service

import (
	"context"
	"fmt"
	"math"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/finance/repository"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the finance workflows need.
type Store interface {
	InsertCommission(ctx context.Context, params repository.InsertCommissionParams) (bool, error)
	InsertReceivable(ctx context.Context, params repository.InsertReceivableParams) (bool, error)
	ListCommissions(ctx context.Context, organizationID uuid.UUID, limit int) ([]repository.Commission, error)
	ListReceivables(ctx context.Context, organizationID uuid.UUID, limit int) ([]repository.Receivable, error)
}

// Service creates and lists financial records.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// New creates a finance service.
func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// RecordWonDeal creates the receivable and, when a positive commission
// percentage is configured, the commission for a won lead. Both inserts are
// idempotent per lead, so re-winning a reopened lead never duplicates rows.
// Returns true when at least one new row was written.
func (s *Service) RecordWonDeal(ctx context.Context, organizationID, leadID, userID uuid.UUID, baseValue, percentage float64) (bool, error) {
	if baseValue <= 0 {
		return false, nil
	}

	receivableCreated, err := s.store.InsertReceivable(ctx, repository.InsertReceivableParams{
		OrganizationID: organizationID,
		LeadID:         leadID,
		Description:    "Won deal receivable",
		Amount:         roundCents(baseValue),
	})
	if err != nil {
		return false, fmt.Errorf("record won deal receivable: %w", err)
	}

	commissionCreated := false
	if percentage > 0 {
		amount := roundCents(baseValue * percentage / 100)
		commissionCreated, err = s.store.InsertCommission(ctx, repository.InsertCommissionParams{
			OrganizationID: organizationID,
			LeadID:         leadID,
			UserID:         userID,
			Amount:         amount,
			Percentage:     percentage,
			BaseValue:      baseValue,
		})
		if err != nil {
			return receivableCreated, fmt.Errorf("record won deal commission: %w", err)
		}
		if commissionCreated {
			s.bus.Publish(ctx, events.CommissionCreated{
				BaseEvent:      events.NewBaseEvent(),
				LeadID:         leadID,
				OrganizationID: organizationID,
				UserID:         userID,
				Amount:         amount,
			})
		}
	} else {
		s.log.Info("commission skipped, no positive percentage", "lead_id", leadID)
	}

	return receivableCreated || commissionCreated, nil
}

// ListCommissions returns an organization's commissions.
func (s *Service) ListCommissions(ctx context.Context, organizationID uuid.UUID, limit int) ([]repository.Commission, error) {
	return s.store.ListCommissions(ctx, organizationID, limit)
}

// ListReceivables returns an organization's receivables.
func (s *Service) ListReceivables(ctx context.Context, organizationID uuid.UUID, limit int) ([]repository.Receivable, error) {
	return s.store.ListReceivables(ctx, organizationID, limit)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
