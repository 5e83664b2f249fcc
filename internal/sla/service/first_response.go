package service

import (
	"context"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sla/repository"
	"leadflow_backend/internal/sla/transport"

	"github.com/google/uuid"
)

// ComputeFirstResponse evaluates an outbound interaction against the lead's
// SLA policy and stamps it as the first response when it qualifies. The stamp
// is write-once: concurrent or repeated calls for the same lead settle on a
// single winner and every other call reports already_calculated.
func (s *Service) ComputeFirstResponse(ctx context.Context, organizationID uuid.UUID, req transport.FirstResponseRequest) (transport.FirstResponseResult, error) {
	lead, err := s.store.GetLeadView(ctx, req.LeadID, organizationID)
	if err != nil {
		return transport.FirstResponseResult{}, err
	}

	if lead.FirstResponseAt != nil {
		result := transport.FirstResponseResult{
			Status:          transport.ResultAlreadyCalculated,
			LeadID:          lead.ID,
			FirstResponseAt: lead.FirstResponseAt,
		}
		// A later human interaction can still settle first touch.
		result.FirstTouch = s.maybeStampFirstTouch(ctx, lead, req)
		return result, nil
	}

	policy := s.resolvePolicy(ctx, organizationID, lead.PipelineID)

	if req.IsAutomation && !policy.IncludeAutomation {
		return transport.FirstResponseResult{
			Status: transport.ResultAutomationExcluded,
			LeadID: lead.ID,
		}, nil
	}

	now := s.now()
	start := s.startAnchor(ctx, lead.ID, lead.CreatedAt, policy.FirstResponseStart)
	seconds := s.elapsedSince(lead.ID, start, now)

	claimed, err := s.store.StampFirstResponse(ctx, repository.StampFirstResponseParams{
		LeadID:       lead.ID,
		At:           now,
		Seconds:      seconds,
		Channel:      req.Channel,
		ActorUserID:  req.ActorUserID,
		IsAutomation: req.IsAutomation,
	})
	if err != nil {
		return transport.FirstResponseResult{}, err
	}
	if !claimed {
		// Lost the race to a concurrent interaction.
		return transport.FirstResponseResult{
			Status: transport.ResultAlreadyCalculated,
			LeadID: lead.ID,
		}, nil
	}

	firstTouch := s.maybeStampFirstTouch(ctx, lead, req)

	actorType := leadsrepo.ActorTypeSystem
	if req.IsAutomation {
		actorType = leadsrepo.ActorTypeAutomation
	} else if req.ActorUserID != nil {
		actorType = leadsrepo.ActorTypeUser
	}
	if _, err := s.leads.AppendTimeline(ctx, leadsrepo.AppendTimelineParams{
		LeadID:         lead.ID,
		OrganizationID: organizationID,
		EventType:      leadsrepo.TimelineFirstResponse,
		Title:          "First response recorded",
		ActorUserID:    req.ActorUserID,
		ActorType:      actorType,
		Channel:        &req.Channel,
		IsAutomation:   req.IsAutomation,
		Metadata: map[string]any{
			"seconds": seconds,
			"channel": req.Channel,
		},
	}); err != nil {
		s.log.Error("failed to record first response on timeline", "lead_id", lead.ID, "error", err)
	}

	if req.Channel == "whatsapp" {
		if _, err := s.leads.AppendTimeline(ctx, leadsrepo.AppendTimelineParams{
			LeadID:         lead.ID,
			OrganizationID: organizationID,
			EventType:      leadsrepo.TimelineWhatsAppMessageSent,
			Title:          "WhatsApp message sent",
			ActorUserID:    req.ActorUserID,
			ActorType:      actorType,
			Channel:        &req.Channel,
			IsAutomation:   req.IsAutomation,
		}); err != nil {
			s.log.Error("failed to record whatsapp message on timeline", "lead_id", lead.ID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.FirstResponseRecorded{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: organizationID,
		Channel:        req.Channel,
		Seconds:        seconds,
		ActorUserID:    req.ActorUserID,
		IsAutomation:   req.IsAutomation,
	})

	return transport.FirstResponseResult{
		Status:          transport.ResultCalculated,
		LeadID:          lead.ID,
		Seconds:         &seconds,
		Channel:         req.Channel,
		FirstResponseAt: &now,
		FirstTouch:      firstTouch,
	}, nil
}

// maybeStampFirstTouch records the first human interaction with a lead. It is
// independent of first response: automation can win first response while the
// first touch waits for a person.
func (s *Service) maybeStampFirstTouch(ctx context.Context, lead repository.LeadView, req transport.FirstResponseRequest) bool {
	if req.IsAutomation || req.ActorUserID == nil {
		return false
	}
	if lead.FirstTouchAt != nil {
		return false
	}

	now := s.now()
	seconds := s.elapsedSince(lead.ID, lead.CreatedAt, now)
	claimed, err := s.store.StampFirstTouch(ctx, lead.ID, now, seconds, *req.ActorUserID)
	if err != nil {
		s.log.Error("failed to stamp first touch", "lead_id", lead.ID, "error", err)
		return false
	}
	return claimed
}
