package service

import (
	"context"
	"testing"
	"time"

	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sla/repository"

	"github.com/google/uuid"
)

func pendingLead(orgID uuid.UUID, createdAt time.Time, assignee *uuid.UUID) (repository.PendingLead, repository.LeadView) {
	leadID := uuid.New()
	view := repository.LeadView{
		ID:             leadID,
		OrganizationID: orgID,
		Name:           "Joao Lima",
		AssignedUserID: assignee,
		CreatedAt:      createdAt,
		DealStatus:     leadsrepo.DealStatusOpen,
	}
	pending := repository.PendingLead{
		LeadID:         leadID,
		OrganizationID: orgID,
		Name:           view.Name,
		AssignedUserID: assignee,
		CreatedAt:      createdAt,
		SLAStatus:      leadsrepo.SLAStatusOK,
	}
	return pending, view
}

func TestRunSweepEscalationLifecycle(t *testing.T) {
	orgID := uuid.New()
	assignee := uuid.New()
	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, &assignee)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	leadLog := newFakeLeadLog()
	notifier := &fakeNotifier{}
	bus := &fakeBus{}
	svc := newTestService(store, leadLog, notifier, bus, testDefaults())

	// Below the warning threshold: nothing escalates.
	svc.now = func() time.Time { return t0.Add(500 * time.Second) }
	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Checked != 1 || result.Warnings != 0 || result.Overdue != 0 {
		t.Fatalf("early sweep = %+v, want checked 1 and no escalations", result)
	}
	if store.leads[view.ID].slaStatus != leadsrepo.SLAStatusOK {
		t.Fatalf("sla status = %s, want ok", store.leads[view.ID].slaStatus)
	}

	// Past the warning threshold (600s): warning fires exactly once.
	svc.now = func() time.Time { return t0.Add(650 * time.Second) }
	result, err = svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 1 {
		t.Fatalf("warning sweep warnings = %d, want 1", result.Warnings)
	}
	if store.leads[view.ID].slaStatus != leadsrepo.SLAStatusWarning {
		t.Fatalf("sla status = %s, want warning", store.leads[view.ID].slaStatus)
	}
	if sent := notifier.sentTo(assignee); len(sent) != 1 || sent[0].notificationType != NotificationSLAWarning {
		t.Fatalf("assignee notifications = %+v, want one sla_warning", sent)
	}

	// A repeat sweep in the warning band must not re-notify.
	svc.now = func() time.Time { return t0.Add(700 * time.Second) }
	result, err = svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 0 {
		t.Fatalf("repeat warning sweep warnings = %d, want 0", result.Warnings)
	}
	if sent := notifier.sentTo(assignee); len(sent) != 1 {
		t.Fatalf("assignee notifications after repeat = %d, want still 1", len(sent))
	}

	// Past the overdue threshold (1200s): overdue fires exactly once.
	svc.now = func() time.Time { return t0.Add(1250 * time.Second) }
	result, err = svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Overdue != 1 {
		t.Fatalf("overdue sweep overdue = %d, want 1", result.Overdue)
	}
	if store.leads[view.ID].slaStatus != leadsrepo.SLAStatusOverdue {
		t.Fatalf("sla status = %s, want overdue", store.leads[view.ID].slaStatus)
	}
	sent := notifier.sentTo(assignee)
	if len(sent) != 2 || sent[1].notificationType != NotificationSLAOverdue {
		t.Fatalf("assignee notifications = %+v, want sla_warning then sla_overdue", sent)
	}

	// Any further sweep is quiet.
	svc.now = func() time.Time { return t0.Add(2000 * time.Second) }
	result, err = svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 0 || result.Overdue != 0 {
		t.Fatalf("late sweep = %+v, want no new escalations", result)
	}
	if len(notifier.sentTo(assignee)) != 2 {
		t.Fatalf("assignee notifications after late sweep = %d, want 2", len(notifier.sentTo(assignee)))
	}

	warnings := leadLog.timelineByType(leadsrepo.TimelineSLAWarning)
	overdues := leadLog.timelineByType(leadsrepo.TimelineSLAOverdue)
	if len(warnings) != 1 || len(overdues) != 1 {
		t.Errorf("timeline entries warning=%d overdue=%d, want 1 and 1", len(warnings), len(overdues))
	}
}

func TestRunSweepJumpsStraightToOverdue(t *testing.T) {
	// A lead discovered long after creation goes directly to overdue; the
	// warning for the skipped band must not fire.
	orgID := uuid.New()
	assignee := uuid.New()
	t0 := time.Now().Add(-2 * time.Hour)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, &assignee)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	notifier := &fakeNotifier{}
	svc := newTestService(store, newFakeLeadLog(), notifier, &fakeBus{}, testDefaults())

	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Overdue != 1 || result.Warnings != 0 {
		t.Fatalf("sweep = %+v, want direct overdue with no warning", result)
	}
	sent := notifier.sentTo(assignee)
	if len(sent) != 1 || sent[0].notificationType != NotificationSLAOverdue {
		t.Fatalf("notifications = %+v, want a single sla_overdue", sent)
	}
}

func TestRunSweepPipelinePolicyOverridesDefaults(t *testing.T) {
	orgID := uuid.New()
	assignee := uuid.New()
	t0 := time.Now().Add(-400 * time.Second)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, &assignee)
	// Pipeline policy warns much earlier than the defaults.
	warn := int64(300)
	overdueAfter := int64(3600)
	notifyAssignee := true
	pending.PolicyWarnAfterSeconds = &warn
	pending.PolicyOverdueAfterSeconds = &overdueAfter
	pending.PolicyNotifyAssignee = &notifyAssignee
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	notifier := &fakeNotifier{}
	svc := newTestService(store, newFakeLeadLog(), notifier, &fakeBus{}, testDefaults())

	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1 under the stricter pipeline policy", result.Warnings)
	}
}

func TestRunSweepManagerFanOutSkipsAssignee(t *testing.T) {
	orgID := uuid.New()
	assignee := uuid.New()
	admin := uuid.New()
	t0 := time.Now().Add(-2 * time.Hour)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, &assignee)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	leadLog := newFakeLeadLog()
	leadLog.admins = []leadsrepo.OrgUser{
		{ID: admin, OrganizationID: orgID, Name: "Admin", Role: "admin", IsActive: true},
		{ID: assignee, OrganizationID: orgID, Name: "Assignee Admin", Role: "admin", IsActive: true},
	}

	defaults := testDefaults()
	defaults.NotifyManager = true

	notifier := &fakeNotifier{}
	svc := newTestService(store, leadLog, notifier, &fakeBus{}, defaults)

	if _, err := svc.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}

	if sent := notifier.sentTo(admin); len(sent) != 1 {
		t.Errorf("admin notifications = %d, want 1", len(sent))
	}
	// The assignee already got the direct notification; the admin fan-out
	// must not duplicate it.
	if sent := notifier.sentTo(assignee); len(sent) != 1 {
		t.Errorf("assignee notifications = %d, want exactly 1", len(sent))
	}
}

func TestRunSweepWarningNeverNotifiesManagers(t *testing.T) {
	// The admin fan-out only happens on overdue; a warning notifies the
	// assignee alone even when the policy asks for manager notifications.
	orgID := uuid.New()
	assignee := uuid.New()
	admin := uuid.New()
	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, &assignee)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	leadLog := newFakeLeadLog()
	leadLog.admins = []leadsrepo.OrgUser{
		{ID: admin, OrganizationID: orgID, Name: "Admin", Role: "admin", IsActive: true},
	}

	defaults := testDefaults()
	defaults.NotifyManager = true

	notifier := &fakeNotifier{}
	svc := newTestService(store, leadLog, notifier, &fakeBus{}, defaults)

	// Inside the warning band (warn 600, overdue 1200).
	svc.now = func() time.Time { return t0.Add(700 * time.Second) }
	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1", result.Warnings)
	}
	if sent := notifier.sentTo(assignee); len(sent) != 1 || sent[0].notificationType != NotificationSLAWarning {
		t.Fatalf("assignee notifications = %+v, want one sla_warning", sent)
	}
	if sent := notifier.sentTo(admin); len(sent) != 0 {
		t.Fatalf("admin notifications on warning = %d, want 0", len(sent))
	}

	// Crossing into overdue pulls the admin in.
	svc.now = func() time.Time { return t0.Add(1300 * time.Second) }
	if _, err := svc.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	sent := notifier.sentTo(admin)
	if len(sent) != 1 || sent[0].notificationType != NotificationSLAOverdue {
		t.Fatalf("admin notifications after overdue = %+v, want one sla_overdue", sent)
	}
}

func TestRunSweepUnassignedLeadEscalatesWithoutNotification(t *testing.T) {
	orgID := uuid.New()
	t0 := time.Now().Add(-2 * time.Hour)

	store := newFakeStore()
	pending, view := pendingLead(orgID, t0, nil)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	notifier := &fakeNotifier{}
	svc := newTestService(store, newFakeLeadLog(), notifier, &fakeBus{}, testDefaults())

	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Overdue != 1 {
		t.Fatalf("overdue = %d, want 1", result.Overdue)
	}
	if store.leads[view.ID].slaStatus != leadsrepo.SLAStatusOverdue {
		t.Fatalf("sla status = %s, want overdue", store.leads[view.ID].slaStatus)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %d, want 0 for an unassigned lead with manager fan-out off", len(notifier.sent))
	}
}

func TestRunSweepClampsFutureCreatedAt(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	pending, view := pendingLead(orgID, time.Now().Add(10*time.Minute), nil)
	store.addLead(view)
	store.pending = []repository.PendingLead{pending}

	svc := newTestService(store, newFakeLeadLog(), &fakeNotifier{}, &fakeBus{}, testDefaults())

	result, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if result.Warnings != 0 || result.Overdue != 0 {
		t.Fatalf("sweep = %+v, want no escalation for clamped elapsed", result)
	}
	if store.leads[view.ID].slaSeconds != 0 {
		t.Errorf("sla seconds = %d, want 0", store.leads[view.ID].slaSeconds)
	}
}
