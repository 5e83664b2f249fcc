package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sla/repository"
	"leadflow_backend/internal/sla/transport"

	"golang.org/x/sync/errgroup"
)

// sweepConcurrency bounds the per-lead fan-out of one sweep.
const sweepConcurrency = 8

// Notification types emitted by the checker.
const (
	NotificationSLAWarning = "sla_warning"
	NotificationSLAOverdue = "sla_overdue"
)

// RunSweep evaluates every open lead still waiting for its first response and
// escalates the ones that crossed their policy thresholds. Leads are processed
// independently; one lead's failure never aborts the sweep.
func (s *Service) RunSweep(ctx context.Context) (transport.SweepResult, error) {
	started := s.now()

	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return transport.SweepResult{}, fmt.Errorf("sla sweep: %w", err)
	}

	var warnings, overdue, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(sweepConcurrency)
	for _, lead := range pending {
		g.Go(func() error {
			w, o, err := s.checkLead(ctx, lead)
			if err != nil {
				failed.Add(1)
				s.log.SweepLeadError(lead.LeadID.String(), err)
				return nil
			}
			if w {
				warnings.Add(1)
			}
			if o {
				overdue.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := transport.SweepResult{
		Checked:    len(pending),
		Warnings:   int(warnings.Load()),
		Overdue:    int(overdue.Load()),
		Failed:     int(failed.Load()),
		DurationMs: time.Since(started).Milliseconds(),
	}
	s.log.Info("sla sweep finished",
		"checked", result.Checked,
		"warnings", result.Warnings,
		"overdue", result.Overdue,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// policyFor merges the candidate's joined policy columns with defaults.
func (s *Service) policyFor(lead repository.PendingLead) effectivePolicy {
	policy := s.defaultPolicy()
	if lead.PolicyFirstResponseStart != nil {
		policy.FirstResponseStart = *lead.PolicyFirstResponseStart
	}
	if lead.PolicyIncludeAutomation != nil {
		policy.IncludeAutomation = *lead.PolicyIncludeAutomation
	}
	if lead.PolicyWarnAfterSeconds != nil {
		policy.WarnAfterSeconds = *lead.PolicyWarnAfterSeconds
	}
	if lead.PolicyOverdueAfterSeconds != nil {
		policy.OverdueAfterSeconds = *lead.PolicyOverdueAfterSeconds
	}
	if lead.PolicyNotifyAssignee != nil {
		policy.NotifyAssignee = *lead.PolicyNotifyAssignee
	}
	if lead.PolicyNotifyManager != nil {
		policy.NotifyManager = *lead.PolicyNotifyManager
	}
	return policy
}

// checkLead evaluates one candidate. Returns whether the warning and overdue
// escalations fired for this lead on this run.
func (s *Service) checkLead(ctx context.Context, lead repository.PendingLead) (warned, escalatedOverdue bool, err error) {
	policy := s.policyFor(lead)

	start := s.startAnchor(ctx, lead.LeadID, lead.CreatedAt, policy.FirstResponseStart)
	elapsed := s.elapsedSince(lead.LeadID, start, s.now())

	newStatus := leadsrepo.SLAStatusOK
	switch {
	case elapsed >= policy.OverdueAfterSeconds:
		newStatus = leadsrepo.SLAStatusOverdue
	case elapsed >= policy.WarnAfterSeconds:
		newStatus = leadsrepo.SLAStatusWarning
	}

	if err := s.store.UpdateSLACheck(ctx, lead.LeadID, newStatus, elapsed); err != nil {
		return false, false, err
	}

	if newStatus == leadsrepo.SLAStatusWarning && lead.SLAStatus != leadsrepo.SLAStatusWarning {
		claimed, err := s.store.ClaimWarningNotification(ctx, lead.LeadID)
		if err != nil {
			return false, false, err
		}
		if claimed {
			warned = true
			s.escalate(ctx, lead, policy, leadsrepo.SLAStatusWarning, elapsed)
		}
	}

	if newStatus == leadsrepo.SLAStatusOverdue {
		claimed, err := s.store.ClaimOverdueNotification(ctx, lead.LeadID)
		if err != nil {
			return warned, false, err
		}
		if claimed {
			escalatedOverdue = true
			s.escalate(ctx, lead, policy, leadsrepo.SLAStatusOverdue, elapsed)
		}
	}

	return warned, escalatedOverdue, nil
}

// escalate records the escalation on the lead's history and fans out the
// notifications. Failures here are logged, never retried: the claim already
// happened and the sweep result must not double-notify on a retry.
func (s *Service) escalate(ctx context.Context, lead repository.PendingLead, policy effectivePolicy, status string, elapsed int64) {
	eventType := leadsrepo.TimelineSLAWarning
	notificationType := NotificationSLAWarning
	title := fmt.Sprintf("SLA warning: %s has waited %d seconds for a first response", lead.Name, elapsed)
	if status == leadsrepo.SLAStatusOverdue {
		eventType = leadsrepo.TimelineSLAOverdue
		notificationType = NotificationSLAOverdue
		title = fmt.Sprintf("SLA overdue: %s has waited %d seconds for a first response", lead.Name, elapsed)
	}

	if _, err := s.leads.AppendTimeline(ctx, leadsrepo.AppendTimelineParams{
		LeadID:         lead.LeadID,
		OrganizationID: lead.OrganizationID,
		EventType:      eventType,
		Title:          title,
		ActorType:      leadsrepo.ActorTypeSystem,
		Metadata: map[string]any{
			"status":          status,
			"seconds_elapsed": elapsed,
		},
	}); err != nil {
		s.log.Error("failed to record sla escalation on timeline", "lead_id", lead.LeadID, "error", err)
	}
	if _, err := s.leads.CreateActivity(ctx, leadsrepo.CreateActivityParams{
		LeadID:         lead.LeadID,
		OrganizationID: lead.OrganizationID,
		ActivityType:   leadsrepo.ActivitySLA,
		Description:    title,
	}); err != nil {
		s.log.Error("failed to record sla escalation activity", "lead_id", lead.LeadID, "error", err)
	}

	if policy.NotifyAssignee && lead.AssignedUserID != nil {
		if err := s.notifier.Notify(ctx, lead.OrganizationID, *lead.AssignedUserID, notificationType, title, "", &lead.LeadID); err != nil {
			s.log.Error("failed to notify assignee", "lead_id", lead.LeadID, "error", err)
		}
	}

	// Managers are only pulled in once the lead is overdue; a warning stays
	// between the system and the assignee.
	if policy.NotifyManager && status == leadsrepo.SLAStatusOverdue {
		admins, err := s.leads.ListActiveAdmins(ctx, lead.OrganizationID)
		if err != nil {
			s.log.Error("failed to list admins for sla escalation", "lead_id", lead.LeadID, "error", err)
		}
		for _, admin := range admins {
			if lead.AssignedUserID != nil && admin.ID == *lead.AssignedUserID {
				continue
			}
			if err := s.notifier.Notify(ctx, lead.OrganizationID, admin.ID, notificationType, title, "", &lead.LeadID); err != nil {
				s.log.Error("failed to notify manager", "lead_id", lead.LeadID, "user_id", admin.ID, "error", err)
			}
		}
	}

	s.bus.Publish(ctx, events.SLAStatusEscalated{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.LeadID,
		OrganizationID: lead.OrganizationID,
		NewStatus:      status,
		SecondsElapsed: elapsed,
	})
}
