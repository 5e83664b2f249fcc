// Package service implements lead intake and the deal status workflow.
package service

import (
	"context"
	"fmt"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the lead workflows need. Implemented by
// *repository.Repository; narrowed to an interface for testability.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Lead, error)
	UpdateDealValue(ctx context.Context, leadID, organizationID uuid.UUID, valorInteresse, commissionPercentage *float64, propertyID *uuid.UUID) error
	MarkWon(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Lead, error)
	MarkLost(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Lead, error)
	Reopen(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Lead, error)
	AppendTimeline(ctx context.Context, params repository.AppendTimelineParams) (repository.TimelineEvent, error)
	CreateActivity(ctx context.Context, params repository.CreateActivityParams) (repository.Activity, error)
	ListTimeline(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]repository.TimelineEvent, error)
	ListActivities(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]repository.Activity, error)
}

// FinancialRecorder creates the financial records for a won deal. It must be
// idempotent per lead. Implemented by the finance service.
type FinancialRecorder interface {
	RecordWonDeal(ctx context.Context, organizationID, leadID, userID uuid.UUID, baseValue, percentage float64) (bool, error)
}

// Distributor routes a newly created lead to a queue member. Implemented by
// the distribution service; wired after construction to break the module cycle.
type Distributor interface {
	DistributeLead(ctx context.Context, leadID, organizationID uuid.UUID) error
}

// Service orchestrates lead intake and deal status transitions.
type Service struct {
	store       Store
	finance     FinancialRecorder
	distributor Distributor
	bus         events.Bus
	log         *logger.Logger
}

// New creates a leads service. The distributor is attached later via
// SetDistributor.
func New(store Store, finance FinancialRecorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, finance: finance, bus: bus, log: log}
}

// SetDistributor attaches the distribution engine. Called once during wiring.
func (s *Service) SetDistributor(d Distributor) {
	s.distributor = d
}

// CreateLead registers a new lead, records its creation on the timeline and
// hands it to the distributor. Distribution failures do not fail intake.
func (s *Service) CreateLead(ctx context.Context, organizationID uuid.UUID, actorUserID *uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	phoneValue := req.Phone
	if phoneValue != nil && *phoneValue != "" {
		normalized := phone.NormalizeE164(*phoneValue)
		phoneValue = &normalized
	}

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		OrganizationID:       organizationID,
		Name:                 req.Name,
		Phone:                phoneValue,
		Email:                req.Email,
		Source:               req.Source,
		CampaignName:         req.CampaignName,
		City:                 req.City,
		Tags:                 req.Tags,
		PipelineID:           req.PipelineID,
		StageID:              req.StageID,
		ValorInteresse:       req.ValorInteresse,
		CommissionPercentage: req.CommissionPercentage,
		PropertyID:           req.PropertyID,
	})
	if err != nil {
		return transport.LeadResponse{}, fmt.Errorf("create lead: %w", err)
	}

	actorType := repository.ActorTypeSystem
	if actorUserID != nil {
		actorType = repository.ActorTypeUser
	}
	if _, err := s.store.AppendTimeline(ctx, repository.AppendTimelineParams{
		LeadID:         lead.ID,
		OrganizationID: organizationID,
		EventType:      repository.TimelineLeadCreated,
		Title:          "Lead created",
		ActorUserID:    actorUserID,
		ActorType:      actorType,
		Metadata: map[string]any{
			"source":        deref(lead.Source),
			"campaign_name": deref(lead.CampaignName),
		},
	}); err != nil {
		s.log.Error("failed to record lead creation on timeline", "lead_id", lead.ID, "error", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: organizationID,
		Source:         deref(lead.Source),
		CampaignName:   deref(lead.CampaignName),
		City:           deref(lead.City),
	})

	if s.distributor != nil {
		if err := s.distributor.DistributeLead(ctx, lead.ID, organizationID); err != nil {
			s.log.Error("lead distribution failed", "lead_id", lead.ID, "error", err)
		} else {
			// Reload to pick up the assignment written by the distributor.
			if updated, err := s.store.GetByID(ctx, lead.ID, organizationID); err == nil {
				lead = updated
			}
		}
	}

	return transport.ToLeadResponse(lead), nil
}

// GetLead returns a single lead.
func (s *Service) GetLead(ctx context.Context, leadID, organizationID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.store.GetByID(ctx, leadID, organizationID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// GetTimeline returns a lead's timeline, newest first.
func (s *Service) GetTimeline(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]transport.TimelineEventResponse, error) {
	if _, err := s.store.GetByID(ctx, leadID, organizationID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeline(ctx, leadID, organizationID, limit)
	if err != nil {
		return nil, err
	}
	return transport.ToTimelineResponses(entries), nil
}

// GetActivities returns a lead's activity feed, newest first.
func (s *Service) GetActivities(ctx context.Context, leadID, organizationID uuid.UUID, limit int) ([]transport.ActivityResponse, error) {
	if _, err := s.store.GetByID(ctx, leadID, organizationID); err != nil {
		return nil, err
	}
	activities, err := s.store.ListActivities(ctx, leadID, organizationID, limit)
	if err != nil {
		return nil, err
	}
	return transport.ToActivityResponses(activities), nil
}

// ChangeDealStatus applies a deal status transition. Transitioning to won
// creates the financial records exactly once per lead; repeating the same
// status is a no-op; reopening never deletes financial records.
func (s *Service) ChangeDealStatus(ctx context.Context, organizationID, actorUserID, leadID uuid.UUID, req transport.DealStatusRequest) (transport.DealStatusResponse, error) {
	lead, err := s.store.GetByID(ctx, leadID, organizationID)
	if err != nil {
		return transport.DealStatusResponse{}, err
	}
	oldStatus := lead.DealStatus

	if oldStatus == req.NewStatus {
		return transport.DealStatusResponse{Lead: transport.ToLeadResponse(lead)}, nil
	}

	if req.ValorInteresse != nil || req.CommissionPercentage != nil || req.PropertyID != nil {
		if err := s.store.UpdateDealValue(ctx, leadID, organizationID, req.ValorInteresse, req.CommissionPercentage, req.PropertyID); err != nil {
			return transport.DealStatusResponse{}, err
		}
	}

	var warning string
	financialCreated := false

	switch req.NewStatus {
	case repository.DealStatusWon:
		lead, err = s.store.MarkWon(ctx, leadID, organizationID)
		if err != nil {
			return transport.DealStatusResponse{}, err
		}
		financialCreated, warning = s.recordFinancials(ctx, lead)

	case repository.DealStatusLost:
		lead, err = s.store.MarkLost(ctx, leadID, organizationID)
		if err != nil {
			return transport.DealStatusResponse{}, err
		}

	case repository.DealStatusOpen:
		lead, err = s.store.Reopen(ctx, leadID, organizationID)
		if err != nil {
			return transport.DealStatusResponse{}, err
		}

	default:
		return transport.DealStatusResponse{}, apperr.BadRequest("unknown deal status")
	}

	description := fmt.Sprintf("Deal status changed from %s to %s", oldStatus, req.NewStatus)
	if _, err := s.store.CreateActivity(ctx, repository.CreateActivityParams{
		LeadID:         leadID,
		OrganizationID: organizationID,
		ActivityType:   repository.ActivityDealStatus,
		Description:    description,
		ActorUserID:    &actorUserID,
	}); err != nil {
		s.log.Error("failed to record deal status activity", "lead_id", leadID, "error", err)
	}
	if _, err := s.store.AppendTimeline(ctx, repository.AppendTimelineParams{
		LeadID:         leadID,
		OrganizationID: organizationID,
		EventType:      repository.TimelineDealStatusChanged,
		Title:          description,
		ActorUserID:    &actorUserID,
		ActorType:      repository.ActorTypeUser,
		Metadata: map[string]any{
			"old_status": oldStatus,
			"new_status": req.NewStatus,
		},
	}); err != nil {
		s.log.Error("failed to record deal status on timeline", "lead_id", leadID, "error", err)
	}

	s.bus.Publish(ctx, events.DealStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		OrganizationID: organizationID,
		OldStatus:      oldStatus,
		NewStatus:      req.NewStatus,
		ChangedByID:    actorUserID,
	})

	return transport.DealStatusResponse{
		Lead:                    transport.ToLeadResponse(lead),
		FinancialRecordsCreated: financialCreated,
		Warning:                 warning,
	}, nil
}

// recordFinancials creates commission and receivable rows for a won lead.
// Returns whether anything was created plus a human-readable warning when the
// lead's data prevents record creation.
func (s *Service) recordFinancials(ctx context.Context, lead repository.Lead) (bool, string) {
	if lead.AssignedUserID == nil {
		return false, "lead has no assigned user; financial records were not created"
	}
	if lead.ValorInteresse == nil || *lead.ValorInteresse <= 0 {
		return false, "lead has no deal value; financial records were not created"
	}

	percentage := 0.0
	if lead.CommissionPercentage != nil {
		percentage = *lead.CommissionPercentage
	}

	created, err := s.finance.RecordWonDeal(ctx, lead.OrganizationID, lead.ID, *lead.AssignedUserID, *lead.ValorInteresse, percentage)
	if err != nil {
		s.log.Error("failed to create financial records for won deal", "lead_id", lead.ID, "error", err)
		return false, "financial record creation failed; it will not be retried automatically"
	}
	return created, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
