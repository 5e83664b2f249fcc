// Package service implements the weighted round-robin lead distribution
// engine.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/distribution/repository"
	"leadflow_backend/internal/distribution/transport"
	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the distribution persistence surface. Implemented by
// *repository.Repository.
type Store interface {
	CreateQueue(ctx context.Context, params repository.CreateQueueParams) (repository.Queue, error)
	GetQueue(ctx context.Context, queueID, organizationID uuid.UUID) (repository.Queue, error)
	ListQueues(ctx context.Context, organizationID uuid.UUID) ([]repository.Queue, error)
	GetFallbackQueue(ctx context.Context, organizationID uuid.UUID) (repository.Queue, error)
	GetPipelineDefaultQueue(ctx context.Context, pipelineID, organizationID uuid.UUID) (repository.Queue, error)
	ResetCounter(ctx context.Context, queueID, organizationID uuid.UUID) error
	AddMember(ctx context.Context, params repository.AddMemberParams) (repository.Member, error)
	RemoveMember(ctx context.Context, queueID, userID uuid.UUID) error
	ListActiveMembers(ctx context.Context, queueID uuid.UUID) ([]repository.Member, error)
	CreateRule(ctx context.Context, params repository.CreateRuleParams) (repository.Rule, error)
	ListActiveRules(ctx context.Context, organizationID uuid.UUID) ([]repository.Rule, error)
	DeleteRule(ctx context.Context, ruleID, organizationID uuid.UUID) error
	InsertAssignment(ctx context.Context, params repository.InsertAssignmentParams) error
	CountAssignmentsSince(ctx context.Context, queueID uuid.UUID, since *time.Time) (map[uuid.UUID]int64, error)
}

// LeadStore is the slice of the leads repository the engine needs: reading
// the lead's routing attributes, writing the assignment and its history.
type LeadStore interface {
	GetByID(ctx context.Context, leadID, organizationID uuid.UUID) (leadsrepo.Lead, error)
	Assign(ctx context.Context, leadID, organizationID, userID uuid.UUID, pipelineID, stageID *uuid.UUID) (leadsrepo.Lead, error)
	AppendTimeline(ctx context.Context, params leadsrepo.AppendTimelineParams) (leadsrepo.TimelineEvent, error)
	CreateActivity(ctx context.Context, params leadsrepo.CreateActivityParams) (leadsrepo.Activity, error)
}

// Notifier tells a user they received a lead.
type Notifier interface {
	Notify(ctx context.Context, organizationID, userID uuid.UUID, notificationType, title, body string, leadID *uuid.UUID) error
}

// NotificationLeadAssigned is the in-app notification type for assignments.
const NotificationLeadAssigned = "lead_assigned"

// Attributes are the lead fields the rule matcher inspects.
type Attributes struct {
	Source       string
	CampaignName string
	City         string
	Tags         []string
	PipelineID   *uuid.UUID
}

// Service runs the distribution engine.
type Service struct {
	store         Store
	leads         LeadStore
	notifier      Notifier
	bus           events.Bus
	defaultWeight int
	log           *logger.Logger
}

// New creates a distribution service.
func New(store Store, leads LeadStore, notifier Notifier, bus events.Bus, defaultWeight int, log *logger.Logger) *Service {
	if defaultWeight < 1 {
		defaultWeight = 10
	}
	return &Service{
		store:         store,
		leads:         leads,
		notifier:      notifier,
		bus:           bus,
		defaultWeight: defaultWeight,
		log:           log,
	}
}

// DistributeLead routes a lead and persists the assignment. Satisfies the
// leads service's Distributor port.
func (s *Service) DistributeLead(ctx context.Context, leadID, organizationID uuid.UUID) error {
	outcome, err := s.Run(ctx, leadID, organizationID)
	if err != nil {
		return err
	}
	if !outcome.Matched {
		s.log.Info("lead not distributed, no queue with active members", "lead_id", leadID)
	}
	return nil
}

// Run routes a lead through rules, pipeline default and fallback, assigns the
// selected member and records the assignment. An unmatched lead is left
// unassigned and reported as such.
func (s *Service) Run(ctx context.Context, leadID, organizationID uuid.UUID) (transport.Outcome, error) {
	lead, err := s.leads.GetByID(ctx, leadID, organizationID)
	if err != nil {
		return transport.Outcome{}, err
	}

	attrs := Attributes{
		Source:       deref(lead.Source),
		CampaignName: deref(lead.CampaignName),
		City:         deref(lead.City),
		Tags:         lead.Tags,
		PipelineID:   lead.PipelineID,
	}

	outcome, selection, err := s.decide(ctx, organizationID, attrs)
	if err != nil {
		return transport.Outcome{}, err
	}
	outcome.Redistribution = lead.DistributedAt != nil
	if !outcome.Matched {
		return outcome, nil
	}

	if _, err := s.leads.Assign(ctx, leadID, organizationID, selection.member.UserID,
		selection.queue.TargetPipelineID, selection.queue.TargetStageID); err != nil {
		return transport.Outcome{}, err
	}

	if err := s.store.InsertAssignment(ctx, repository.InsertAssignmentParams{
		OrganizationID: organizationID,
		QueueID:        selection.queue.ID,
		UserID:         selection.member.UserID,
		LeadID:         leadID,
		RuleID:         outcome.RuleID,
		Via:            outcome.Via,
	}); err != nil {
		return transport.Outcome{}, err
	}

	title := fmt.Sprintf("Lead assigned to %s", selection.member.UserName)
	if _, err := s.leads.AppendTimeline(ctx, leadsrepo.AppendTimelineParams{
		LeadID:         leadID,
		OrganizationID: organizationID,
		EventType:      leadsrepo.TimelineLeadAssigned,
		Title:          title,
		ActorType:      leadsrepo.ActorTypeSystem,
		Metadata: map[string]any{
			"queue_id":       selection.queue.ID,
			"queue_name":     selection.queue.Name,
			"user_id":        selection.member.UserID,
			"via":            outcome.Via,
			"redistribution": outcome.Redistribution,
		},
	}); err != nil {
		s.log.Error("failed to record assignment on timeline", "lead_id", leadID, "error", err)
	}

	description := fmt.Sprintf("Distributed to %s via %s (queue %s)", selection.member.UserName, outcome.Via, selection.queue.Name)
	if outcome.Redistribution {
		description = "Redistributed: " + description
	}
	if _, err := s.leads.CreateActivity(ctx, leadsrepo.CreateActivityParams{
		LeadID:         leadID,
		OrganizationID: organizationID,
		ActivityType:   leadsrepo.ActivityDistribution,
		Description:    description,
	}); err != nil {
		s.log.Error("failed to record assignment activity", "lead_id", leadID, "error", err)
	}

	if err := s.notifier.Notify(ctx, organizationID, selection.member.UserID,
		NotificationLeadAssigned, fmt.Sprintf("New lead: %s", lead.Name), "", &leadID); err != nil {
		s.log.Error("failed to notify assignee", "lead_id", leadID, "error", err)
	}

	s.bus.Publish(ctx, events.LeadDistributed{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		OrganizationID: organizationID,
		QueueID:        selection.queue.ID,
		UserID:         selection.member.UserID,
		Via:            outcome.Via,
		Redistribution: outcome.Redistribution,
	})

	outcome.Persisted = true
	return outcome, nil
}

// Test dry-runs the engine against hypothetical attributes. Nothing is
// written, including the assignment counters.
func (s *Service) Test(ctx context.Context, organizationID uuid.UUID, req transport.TestRequest) (transport.Outcome, error) {
	attrs := Attributes{
		Source:       deref(req.Source),
		CampaignName: deref(req.CampaignName),
		City:         deref(req.City),
		Tags:         req.Tags,
		PipelineID:   req.PipelineID,
	}
	outcome, _, err := s.decide(ctx, organizationID, attrs)
	return outcome, err
}

type selection struct {
	queue  repository.Queue
	member repository.Member
}

// decide walks the queue tiers in order and picks the member inside the first
// queue that has someone available.
func (s *Service) decide(ctx context.Context, organizationID uuid.UUID, attrs Attributes) (transport.Outcome, selection, error) {
	type candidate struct {
		queue repository.Queue
		via   string
		rule  *repository.Rule
	}
	var candidates []candidate

	rules, err := s.store.ListActiveRules(ctx, organizationID)
	if err != nil {
		return transport.Outcome{}, selection{}, err
	}
	for i := range rules {
		if !ruleMatches(rules[i], attrs) {
			continue
		}
		queue, err := s.store.GetQueue(ctx, rules[i].QueueID, organizationID)
		if err != nil {
			s.log.Error("matched rule points at missing queue", "rule_id", rules[i].ID, "error", err)
			continue
		}
		candidates = append(candidates, candidate{queue: queue, via: repository.ViaRule, rule: &rules[i]})
		// First matching rule wins; the remaining tiers are only fallbacks.
		break
	}

	if attrs.PipelineID != nil {
		if queue, err := s.store.GetPipelineDefaultQueue(ctx, *attrs.PipelineID, organizationID); err == nil {
			candidates = append(candidates, candidate{queue: queue, via: repository.ViaPipelineDefault})
		}
	}
	if queue, err := s.store.GetFallbackQueue(ctx, organizationID); err == nil {
		candidates = append(candidates, candidate{queue: queue, via: repository.ViaFallback})
	}

	for _, cand := range candidates {
		members, err := s.store.ListActiveMembers(ctx, cand.queue.ID)
		if err != nil {
			return transport.Outcome{}, selection{}, err
		}
		if len(members) == 0 {
			continue
		}

		counts, err := s.store.CountAssignmentsSince(ctx, cand.queue.ID, cand.queue.CounterResetAt)
		if err != nil {
			return transport.Outcome{}, selection{}, err
		}

		member := selectMember(members, counts, s.defaultWeight)
		outcome := transport.Outcome{
			Matched:   true,
			Via:       cand.via,
			QueueID:   &cand.queue.ID,
			QueueName: cand.queue.Name,
			UserID:    &member.UserID,
			UserName:  member.UserName,
			UserEmail: member.UserEmail,
		}
		if cand.rule != nil {
			outcome.RuleID = &cand.rule.ID
			outcome.RuleName = cand.rule.Name
		}
		if cand.queue.TargetPipelineID != nil {
			outcome.PipelineID = cand.queue.TargetPipelineID
		}
		if cand.queue.TargetStageID != nil {
			outcome.StageID = cand.queue.TargetStageID
		}
		return outcome, selection{queue: cand.queue, member: member}, nil
	}

	return transport.Outcome{Matched: false}, selection{}, nil
}

// ruleMatches reports whether a lead's attributes satisfy every predicate the
// rule defines. Nil predicates are wildcards; string comparisons ignore case.
func ruleMatches(rule repository.Rule, attrs Attributes) bool {
	if rule.Source != nil && !strings.EqualFold(*rule.Source, attrs.Source) {
		return false
	}
	if rule.CampaignContains != nil &&
		!strings.Contains(strings.ToLower(attrs.CampaignName), strings.ToLower(*rule.CampaignContains)) {
		return false
	}
	if rule.City != nil && !strings.EqualFold(*rule.City, attrs.City) {
		return false
	}
	if rule.PipelineID != nil {
		if attrs.PipelineID == nil || *rule.PipelineID != *attrs.PipelineID {
			return false
		}
	}
	if len(rule.Tags) > 0 {
		leadTags := make(map[string]bool, len(attrs.Tags))
		for _, t := range attrs.Tags {
			leadTags[strings.ToLower(t)] = true
		}
		for _, required := range rule.Tags {
			if !leadTags[strings.ToLower(required)] {
				return false
			}
		}
	}
	return true
}

// selectMember picks the member with the largest weighted deficit: the gap
// between the share its weight entitles it to after the next assignment and
// what it has already received. Ties go to the lowest position so the choice
// is deterministic. Members are expected sorted by position.
func selectMember(members []repository.Member, counts map[uuid.UUID]int64, defaultWeight int) repository.Member {
	var total int64
	var totalWeight int64
	weights := make([]int64, len(members))
	for i, m := range members {
		w := int64(m.Weight)
		if w < 1 {
			w = int64(defaultWeight)
		}
		weights[i] = w
		totalWeight += w
		total += counts[m.UserID]
	}

	best := 0
	bestDeficit := deficit(weights[0], totalWeight, total, counts[members[0].UserID])
	for i := 1; i < len(members); i++ {
		d := deficit(weights[i], totalWeight, total, counts[members[i].UserID])
		if d > bestDeficit {
			best = i
			bestDeficit = d
		}
	}
	return members[best]
}

// deficit is the member's target share of the log after one more assignment
// minus its current count.
func deficit(weight, totalWeight, total, count int64) float64 {
	return float64(weight)/float64(totalWeight)*float64(total+1) - float64(count)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
