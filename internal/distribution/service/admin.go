package service

import (
	"context"

	"leadflow_backend/internal/distribution/repository"
	"leadflow_backend/internal/distribution/transport"

	"github.com/google/uuid"
)

// CreateQueue creates a round-robin queue.
func (s *Service) CreateQueue(ctx context.Context, organizationID uuid.UUID, req transport.CreateQueueRequest) (transport.QueueResponse, error) {
	queue, err := s.store.CreateQueue(ctx, repository.CreateQueueParams{
		OrganizationID:   organizationID,
		Name:             req.Name,
		TargetPipelineID: req.TargetPipelineID,
		TargetStageID:    req.TargetStageID,
		IsFallback:       req.IsFallback,
	})
	if err != nil {
		return transport.QueueResponse{}, err
	}
	return transport.ToQueueResponse(queue), nil
}

// ListQueues returns an organization's queues.
func (s *Service) ListQueues(ctx context.Context, organizationID uuid.UUID) ([]transport.QueueResponse, error) {
	queues, err := s.store.ListQueues(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.QueueResponse, 0, len(queues))
	for _, q := range queues {
		out = append(out, transport.ToQueueResponse(q))
	}
	return out, nil
}

// AddMember adds or updates a queue member. A zero weight uses the configured
// default.
func (s *Service) AddMember(ctx context.Context, organizationID, queueID uuid.UUID, req transport.AddMemberRequest) (repository.Member, error) {
	if _, err := s.store.GetQueue(ctx, queueID, organizationID); err != nil {
		return repository.Member{}, err
	}
	weight := req.Weight
	if weight < 1 {
		weight = s.defaultWeight
	}
	return s.store.AddMember(ctx, repository.AddMemberParams{
		QueueID:  queueID,
		UserID:   req.UserID,
		Weight:   weight,
		Position: req.Position,
	})
}

// RemoveMember deactivates a queue member.
func (s *Service) RemoveMember(ctx context.Context, organizationID, queueID, userID uuid.UUID) error {
	if _, err := s.store.GetQueue(ctx, queueID, organizationID); err != nil {
		return err
	}
	return s.store.RemoveMember(ctx, queueID, userID)
}

// CreateRule creates a distribution rule, validating the target queue exists.
func (s *Service) CreateRule(ctx context.Context, organizationID uuid.UUID, req transport.CreateRuleRequest) (transport.RuleResponse, error) {
	if _, err := s.store.GetQueue(ctx, req.QueueID, organizationID); err != nil {
		return transport.RuleResponse{}, err
	}
	rule, err := s.store.CreateRule(ctx, repository.CreateRuleParams{
		OrganizationID:   organizationID,
		Name:             req.Name,
		Priority:         req.Priority,
		QueueID:          req.QueueID,
		Source:           req.Source,
		CampaignContains: req.CampaignContains,
		City:             req.City,
		Tags:             req.Tags,
		PipelineID:       req.PipelineID,
	})
	if err != nil {
		return transport.RuleResponse{}, err
	}
	return transport.ToRuleResponse(rule), nil
}

// ListRules returns an organization's active rules in evaluation order.
func (s *Service) ListRules(ctx context.Context, organizationID uuid.UUID) ([]transport.RuleResponse, error) {
	rules, err := s.store.ListActiveRules(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, transport.ToRuleResponse(r))
	}
	return out, nil
}

// DeleteRule deactivates a rule.
func (s *Service) DeleteRule(ctx context.Context, organizationID, ruleID uuid.UUID) error {
	return s.store.DeleteRule(ctx, ruleID, organizationID)
}

// ResetCounter starts a fresh counting window for a queue.
func (s *Service) ResetCounter(ctx context.Context, organizationID, queueID uuid.UUID) error {
	return s.store.ResetCounter(ctx, queueID, organizationID)
}

// Stats reports a queue's members and their assignment counts in the current
// counting window.
func (s *Service) Stats(ctx context.Context, organizationID, queueID uuid.UUID) (transport.QueueStats, error) {
	queue, err := s.store.GetQueue(ctx, queueID, organizationID)
	if err != nil {
		return transport.QueueStats{}, err
	}
	members, err := s.store.ListActiveMembers(ctx, queueID)
	if err != nil {
		return transport.QueueStats{}, err
	}
	counts, err := s.store.CountAssignmentsSince(ctx, queueID, queue.CounterResetAt)
	if err != nil {
		return transport.QueueStats{}, err
	}

	stats := transport.QueueStats{
		QueueID:        queue.ID,
		QueueName:      queue.Name,
		CounterResetAt: queue.CounterResetAt,
		Members:        make([]transport.MemberStat, 0, len(members)),
	}
	for _, m := range members {
		count := counts[m.UserID]
		stats.Total += count
		stats.Members = append(stats.Members, transport.MemberStat{
			UserID:      m.UserID,
			UserName:    m.UserName,
			Weight:      m.Weight,
			Position:    m.Position,
			Assignments: count,
		})
	}
	return stats, nil
}
