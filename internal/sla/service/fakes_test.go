package service

import (
	"context"
	"sync"
	"time"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sla/repository"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store tracking the conditional stamps the way the
// SQL does.
type fakeStore struct {
	mu sync.Mutex

	policies map[uuid.UUID]repository.Policy
	leads    map[uuid.UUID]*fakeLeadRow
	pending  []repository.PendingLead

	stampCalls int
}

type fakeLeadRow struct {
	view repository.LeadView

	slaStatus         string
	slaSeconds        int64
	notifiedWarning   bool
	notifiedOverdue   bool
	firstResponseAt   *time.Time
	firstResponseSecs int64
	firstTouchAt      *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		policies: make(map[uuid.UUID]repository.Policy),
		leads:    make(map[uuid.UUID]*fakeLeadRow),
	}
}

func (f *fakeStore) addLead(view repository.LeadView) *fakeLeadRow {
	row := &fakeLeadRow{view: view, slaStatus: leadsrepo.SLAStatusOK}
	f.leads[view.ID] = row
	return row
}

func (f *fakeStore) GetPolicyByPipeline(_ context.Context, _, pipelineID uuid.UUID) (repository.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.policies[pipelineID]; ok {
		return p, nil
	}
	return repository.Policy{}, errNotFound
}

func (f *fakeStore) UpsertPolicy(_ context.Context, params repository.UpsertPolicyParams) (repository.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := repository.Policy{
		ID:                               uuid.New(),
		OrganizationID:                   params.OrganizationID,
		PipelineID:                       params.PipelineID,
		FirstResponseStart:               params.FirstResponseStart,
		IncludeAutomationInFirstResponse: params.IncludeAutomationInFirstResponse,
		WarnAfterSeconds:                 params.WarnAfterSeconds,
		OverdueAfterSeconds:              params.OverdueAfterSeconds,
		NotifyAssignee:                   params.NotifyAssignee,
		NotifyManager:                    params.NotifyManager,
		IsActive:                         true,
	}
	f.policies[params.PipelineID] = p
	return p, nil
}

func (f *fakeStore) DeactivatePolicy(_ context.Context, _, pipelineID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.policies, pipelineID)
	return nil
}

func (f *fakeStore) GetLeadView(_ context.Context, leadID, _ uuid.UUID) (repository.LeadView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.leads[leadID]
	if !ok {
		return repository.LeadView{}, errNotFound
	}
	view := row.view
	view.FirstResponseAt = row.firstResponseAt
	view.FirstTouchAt = row.firstTouchAt
	return view, nil
}

func (f *fakeStore) StampFirstResponse(_ context.Context, params repository.StampFirstResponseParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stampCalls++
	row := f.leads[params.LeadID]
	if row.firstResponseAt != nil {
		return false, nil
	}
	at := params.At
	row.firstResponseAt = &at
	row.firstResponseSecs = params.Seconds
	row.slaStatus = leadsrepo.SLAStatusOK
	return true, nil
}

func (f *fakeStore) StampFirstTouch(_ context.Context, leadID uuid.UUID, at time.Time, _ int64, _ uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.leads[leadID]
	if row.firstTouchAt != nil {
		return false, nil
	}
	row.firstTouchAt = &at
	return true, nil
}

func (f *fakeStore) ListPending(_ context.Context) ([]repository.PendingLead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.PendingLead, len(f.pending))
	copy(out, f.pending)
	for i := range out {
		if row, ok := f.leads[out[i].LeadID]; ok {
			out[i].SLAStatus = row.slaStatus
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSLACheck(_ context.Context, leadID uuid.UUID, status string, secondsElapsed int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.leads[leadID]
	row.slaStatus = status
	row.slaSeconds = secondsElapsed
	return nil
}

func (f *fakeStore) ClaimWarningNotification(_ context.Context, leadID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.leads[leadID]
	if row.notifiedWarning {
		return false, nil
	}
	row.notifiedWarning = true
	return true, nil
}

func (f *fakeStore) ClaimOverdueNotification(_ context.Context, leadID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.leads[leadID]
	if row.notifiedOverdue {
		return false, nil
	}
	row.notifiedOverdue = true
	return true, nil
}

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// fakeLeadLog records timeline and activity writes.
type fakeLeadLog struct {
	mu         sync.Mutex
	timeline   []leadsrepo.AppendTimelineParams
	activities []leadsrepo.CreateActivityParams
	earliest   map[string]*time.Time
	admins     []leadsrepo.OrgUser
}

func newFakeLeadLog() *fakeLeadLog {
	return &fakeLeadLog{earliest: make(map[string]*time.Time)}
}

func (f *fakeLeadLog) AppendTimeline(_ context.Context, params leadsrepo.AppendTimelineParams) (leadsrepo.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeline = append(f.timeline, params)
	return leadsrepo.TimelineEvent{ID: uuid.New(), EventType: params.EventType}, nil
}

func (f *fakeLeadLog) CreateActivity(_ context.Context, params leadsrepo.CreateActivityParams) (leadsrepo.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, params)
	return leadsrepo.Activity{ID: uuid.New()}, nil
}

func (f *fakeLeadLog) EarliestTimelineAt(_ context.Context, _ uuid.UUID, eventType string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.earliest[eventType], nil
}

func (f *fakeLeadLog) ListActiveAdmins(_ context.Context, _ uuid.UUID) ([]leadsrepo.OrgUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins, nil
}

func (f *fakeLeadLog) timelineByType(eventType string) []leadsrepo.AppendTimelineParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leadsrepo.AppendTimelineParams
	for _, e := range f.timeline {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeNotifier records notification fan-out.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	userID           uuid.UUID
	notificationType string
}

func (f *fakeNotifier) Notify(_ context.Context, _, userID uuid.UUID, notificationType, _, _ string, _ *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{userID: userID, notificationType: notificationType})
	return nil
}

func (f *fakeNotifier) sentTo(userID uuid.UUID) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, s := range f.sent {
		if s.userID == userID {
			out = append(out, s)
		}
	}
	return out
}

// fakeBus records published events synchronously.
type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventName())
	}
	return out
}

func testDefaults() config.SLADefaults {
	return config.SLADefaults{
		FirstResponseStart:               repository.StartLeadCreated,
		IncludeAutomationInFirstResponse: true,
		WarnAfterSeconds:                 600,
		OverdueAfterSeconds:              1200,
		NotifyAssignee:                   true,
		NotifyManager:                    false,
	}
}

func newTestService(store *fakeStore, log *fakeLeadLog, notifier *fakeNotifier, bus *fakeBus, defaults config.SLADefaults) *Service {
	return New(store, log, notifier, bus, defaults, logger.New("development"))
}
