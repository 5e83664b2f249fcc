// Package service implements the first-response calculator and the SLA
// checker.
package service

import (
	"context"
	"time"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sla/repository"
	"leadflow_backend/internal/sla/transport"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the SLA persistence surface. Implemented by *repository.Repository.
type Store interface {
	GetPolicyByPipeline(ctx context.Context, organizationID, pipelineID uuid.UUID) (repository.Policy, error)
	UpsertPolicy(ctx context.Context, params repository.UpsertPolicyParams) (repository.Policy, error)
	DeactivatePolicy(ctx context.Context, organizationID, pipelineID uuid.UUID) error
	GetLeadView(ctx context.Context, leadID, organizationID uuid.UUID) (repository.LeadView, error)
	StampFirstResponse(ctx context.Context, params repository.StampFirstResponseParams) (bool, error)
	StampFirstTouch(ctx context.Context, leadID uuid.UUID, at time.Time, seconds int64, actorUserID uuid.UUID) (bool, error)
	ListPending(ctx context.Context) ([]repository.PendingLead, error)
	UpdateSLACheck(ctx context.Context, leadID uuid.UUID, status string, secondsElapsed int64) error
	ClaimWarningNotification(ctx context.Context, leadID uuid.UUID) (bool, error)
	ClaimOverdueNotification(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// LeadLog is the slice of the leads repository the SLA workflows write to:
// timeline entries, activities and the admin lookup for manager fan-out.
type LeadLog interface {
	AppendTimeline(ctx context.Context, params leadsrepo.AppendTimelineParams) (leadsrepo.TimelineEvent, error)
	CreateActivity(ctx context.Context, params leadsrepo.CreateActivityParams) (leadsrepo.Activity, error)
	EarliestTimelineAt(ctx context.Context, leadID uuid.UUID, eventType string) (*time.Time, error)
	ListActiveAdmins(ctx context.Context, organizationID uuid.UUID) ([]leadsrepo.OrgUser, error)
}

// Notifier delivers in-app notifications. Implemented by the notification
// service.
type Notifier interface {
	Notify(ctx context.Context, organizationID, userID uuid.UUID, notificationType, title, body string, leadID *uuid.UUID) error
}

// Service runs the SLA workflows.
type Service struct {
	store    Store
	leads    LeadLog
	notifier Notifier
	bus      events.Bus
	defaults config.SLADefaults
	log      *logger.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New creates an SLA service.
func New(store Store, leads LeadLog, notifier Notifier, bus events.Bus, defaults config.SLADefaults, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		leads:    leads,
		notifier: notifier,
		bus:      bus,
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

// effectivePolicy is the policy after falling back to configured defaults.
type effectivePolicy struct {
	FirstResponseStart  string
	IncludeAutomation   bool
	WarnAfterSeconds    int64
	OverdueAfterSeconds int64
	NotifyAssignee      bool
	NotifyManager       bool
}

func (s *Service) defaultPolicy() effectivePolicy {
	return effectivePolicy{
		FirstResponseStart:  s.defaults.FirstResponseStart,
		IncludeAutomation:   s.defaults.IncludeAutomationInFirstResponse,
		WarnAfterSeconds:    s.defaults.WarnAfterSeconds,
		OverdueAfterSeconds: s.defaults.OverdueAfterSeconds,
		NotifyAssignee:      s.defaults.NotifyAssignee,
		NotifyManager:       s.defaults.NotifyManager,
	}
}

// resolvePolicy loads the pipeline policy, falling back to defaults when the
// lead has no pipeline or the pipeline has no active policy.
func (s *Service) resolvePolicy(ctx context.Context, organizationID uuid.UUID, pipelineID *uuid.UUID) effectivePolicy {
	if pipelineID == nil {
		return s.defaultPolicy()
	}
	policy, err := s.store.GetPolicyByPipeline(ctx, organizationID, *pipelineID)
	if err != nil {
		return s.defaultPolicy()
	}
	return effectivePolicy{
		FirstResponseStart:  policy.FirstResponseStart,
		IncludeAutomation:   policy.IncludeAutomationInFirstResponse,
		WarnAfterSeconds:    policy.WarnAfterSeconds,
		OverdueAfterSeconds: policy.OverdueAfterSeconds,
		NotifyAssignee:      policy.NotifyAssignee,
		NotifyManager:       policy.NotifyManager,
	}
}

// startAnchor resolves the instant the SLA clock starts for a lead. Policies
// anchored on timeline events fall back to the lead's creation when no such
// event exists yet.
func (s *Service) startAnchor(ctx context.Context, leadID uuid.UUID, createdAt time.Time, anchor string) time.Time {
	var eventType string
	switch anchor {
	case repository.StartLeadAssigned:
		eventType = leadsrepo.TimelineLeadAssigned
	case repository.StartFirstInbound:
		eventType = leadsrepo.TimelineWhatsAppMessageReceived
	default:
		return createdAt
	}

	at, err := s.leads.EarliestTimelineAt(ctx, leadID, eventType)
	if err != nil {
		s.log.Error("failed to resolve sla start anchor", "lead_id", leadID, "anchor", anchor, "error", err)
		return createdAt
	}
	if at == nil {
		return createdAt
	}
	return *at
}

// elapsedSince returns whole seconds between start and now, clamped at zero.
// Negative values mean clock skew between writers and are logged.
func (s *Service) elapsedSince(leadID uuid.UUID, start, now time.Time) int64 {
	seconds := int64(now.Sub(start) / time.Second)
	if seconds < 0 {
		s.log.ClockSkew(leadID.String(), seconds)
		return 0
	}
	return seconds
}

// UpsertPolicy creates or replaces a pipeline's SLA policy.
func (s *Service) UpsertPolicy(ctx context.Context, organizationID, pipelineID uuid.UUID, req transport.PolicyRequest) (transport.PolicyResponse, error) {
	policy, err := s.store.UpsertPolicy(ctx, repository.UpsertPolicyParams{
		OrganizationID:                   organizationID,
		PipelineID:                       pipelineID,
		FirstResponseStart:               req.FirstResponseStart,
		IncludeAutomationInFirstResponse: req.IncludeAutomationInFirstResponse,
		WarnAfterSeconds:                 req.WarnAfterSeconds,
		OverdueAfterSeconds:              req.OverdueAfterSeconds,
		NotifyAssignee:                   req.NotifyAssignee,
		NotifyManager:                    req.NotifyManager,
	})
	if err != nil {
		return transport.PolicyResponse{}, err
	}
	return transport.ToPolicyResponse(policy), nil
}

// GetPolicy returns a pipeline's active SLA policy.
func (s *Service) GetPolicy(ctx context.Context, organizationID, pipelineID uuid.UUID) (transport.PolicyResponse, error) {
	policy, err := s.store.GetPolicyByPipeline(ctx, organizationID, pipelineID)
	if err != nil {
		return transport.PolicyResponse{}, err
	}
	return transport.ToPolicyResponse(policy), nil
}

// DeactivatePolicy disables a pipeline's SLA policy.
func (s *Service) DeactivatePolicy(ctx context.Context, organizationID, pipelineID uuid.UUID) error {
	return s.store.DeactivatePolicy(ctx, organizationID, pipelineID)
}
