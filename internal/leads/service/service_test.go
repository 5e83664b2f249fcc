package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*repository.Lead

	timeline   []repository.AppendTimelineParams
	activities []repository.CreateActivityParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]*repository.Lead)}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := repository.Lead{
		ID:                   uuid.New(),
		OrganizationID:       params.OrganizationID,
		Name:                 params.Name,
		Phone:                params.Phone,
		Source:               params.Source,
		CampaignName:         params.CampaignName,
		City:                 params.City,
		Tags:                 params.Tags,
		PipelineID:           params.PipelineID,
		ValorInteresse:       params.ValorInteresse,
		CommissionPercentage: params.CommissionPercentage,
		DealStatus:           repository.DealStatusOpen,
		SLAStatus:            repository.SLAStatusOK,
		CreatedAt:            time.Now(),
	}
	f.leads[lead.ID] = &lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, leadID, _ uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return *lead, nil
}

func (f *fakeStore) UpdateDealValue(_ context.Context, leadID, _ uuid.UUID, valor, pct *float64, propertyID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[leadID]
	if valor != nil {
		lead.ValorInteresse = valor
	}
	if pct != nil {
		lead.CommissionPercentage = pct
	}
	if propertyID != nil {
		lead.PropertyID = propertyID
	}
	return nil
}

func (f *fakeStore) MarkWon(_ context.Context, leadID, _ uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[leadID]
	now := time.Now()
	lead.DealStatus = repository.DealStatusWon
	lead.WonAt = &now
	lead.LostAt = nil
	lead.LostReason = nil
	return *lead, nil
}

func (f *fakeStore) MarkLost(_ context.Context, leadID, _ uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[leadID]
	now := time.Now()
	empty := ""
	lead.DealStatus = repository.DealStatusLost
	lead.LostAt = &now
	lead.WonAt = nil
	lead.LostReason = &empty
	return *lead, nil
}

func (f *fakeStore) Reopen(_ context.Context, leadID, _ uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[leadID]
	lead.DealStatus = repository.DealStatusOpen
	lead.WonAt = nil
	lead.LostAt = nil
	lead.LostReason = nil
	return *lead, nil
}

func (f *fakeStore) AppendTimeline(_ context.Context, params repository.AppendTimelineParams) (repository.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeline = append(f.timeline, params)
	return repository.TimelineEvent{ID: uuid.New(), EventType: params.EventType}, nil
}

func (f *fakeStore) CreateActivity(_ context.Context, params repository.CreateActivityParams) (repository.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, params)
	return repository.Activity{ID: uuid.New()}, nil
}

func (f *fakeStore) ListTimeline(_ context.Context, _, _ uuid.UUID, _ int) ([]repository.TimelineEvent, error) {
	return nil, nil
}

func (f *fakeStore) ListActivities(_ context.Context, _, _ uuid.UUID, _ int) ([]repository.Activity, error) {
	return nil, nil
}

// fakeFinance mimics the idempotent won-deal recorder: the first call per
// lead creates rows, repeats do not.
type fakeFinance struct {
	mu       sync.Mutex
	recorded map[uuid.UUID]int
}

func newFakeFinance() *fakeFinance {
	return &fakeFinance{recorded: make(map[uuid.UUID]int)}
}

func (f *fakeFinance) RecordWonDeal(_ context.Context, _, leadID, _ uuid.UUID, _, _ float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[leadID]++
	return f.recorded[leadID] == 1, nil
}

type fakeBus struct{}

func (fakeBus) Publish(context.Context, events.Event)          {}
func (fakeBus) PublishSync(context.Context, events.Event) error { return nil }
func (fakeBus) Subscribe(string, events.Handler)               {}

type fakeDistributor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDistributor) DistributeLead(context.Context, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestService(store *fakeStore, finance *fakeFinance) *Service {
	return New(store, finance, fakeBus{}, logger.New("development"))
}

func wonLead(store *fakeStore, orgID uuid.UUID, valor, pct *float64, assignee *uuid.UUID) repository.Lead {
	lead, _ := store.Create(context.Background(), repository.CreateLeadParams{
		OrganizationID:       orgID,
		Name:                 "Carlos",
		ValorInteresse:       valor,
		CommissionPercentage: pct,
	})
	store.leads[lead.ID].AssignedUserID = assignee
	return *store.leads[lead.ID]
}

func TestCreateLeadDistributesAndRecordsTimeline(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeFinance())
	dist := &fakeDistributor{}
	svc.SetDistributor(dist)

	orgID := uuid.New()
	lead, err := svc.CreateLead(context.Background(), orgID, nil, transport.CreateLeadRequest{
		Name:   "Ana",
		Source: strPtr("meta_ads"),
	})
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	if lead.Name != "Ana" {
		t.Errorf("lead name = %s, want Ana", lead.Name)
	}
	if dist.calls != 1 {
		t.Errorf("distributor calls = %d, want 1", dist.calls)
	}
	if len(store.timeline) != 1 || store.timeline[0].EventType != repository.TimelineLeadCreated {
		t.Errorf("timeline = %+v, want one lead_created entry", store.timeline)
	}
}

func TestChangeDealStatusWonCreatesFinancialsOnce(t *testing.T) {
	store := newFakeStore()
	finance := newFakeFinance()
	svc := newTestService(store, finance)

	orgID := uuid.New()
	assignee := uuid.New()
	lead := wonLead(store, orgID, floatPtr(500000), floatPtr(5), &assignee)

	actor := uuid.New()
	result, err := svc.ChangeDealStatus(context.Background(), orgID, actor, lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusWon,
	})
	if err != nil {
		t.Fatalf("ChangeDealStatus() error = %v", err)
	}
	if !result.FinancialRecordsCreated {
		t.Fatal("expected financial records on first win")
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning: %s", result.Warning)
	}
	if result.Lead.DealStatus != repository.DealStatusWon {
		t.Fatalf("deal status = %s, want won", result.Lead.DealStatus)
	}

	// Same-status transition is a no-op.
	repeat, err := svc.ChangeDealStatus(context.Background(), orgID, actor, lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusWon,
	})
	if err != nil {
		t.Fatalf("repeat ChangeDealStatus() error = %v", err)
	}
	if repeat.FinancialRecordsCreated {
		t.Error("repeat win must not create financial records")
	}
	if finance.recorded[lead.ID] != 1 {
		t.Errorf("finance calls = %d, want 1", finance.recorded[lead.ID])
	}
}

func TestChangeDealStatusReopenAndRewinIsIdempotent(t *testing.T) {
	store := newFakeStore()
	finance := newFakeFinance()
	svc := newTestService(store, finance)

	orgID := uuid.New()
	assignee := uuid.New()
	lead := wonLead(store, orgID, floatPtr(300000), floatPtr(4), &assignee)
	actor := uuid.New()

	for _, status := range []string{repository.DealStatusWon, repository.DealStatusOpen, repository.DealStatusWon} {
		if _, err := svc.ChangeDealStatus(context.Background(), orgID, actor, lead.ID, transport.DealStatusRequest{
			NewStatus: status,
		}); err != nil {
			t.Fatalf("ChangeDealStatus(%s) error = %v", status, err)
		}
	}

	if finance.recorded[lead.ID] != 2 {
		t.Fatalf("finance calls = %d, want 2 (second call is a no-op internally)", finance.recorded[lead.ID])
	}
	if store.leads[lead.ID].DealStatus != repository.DealStatusWon {
		t.Fatalf("final status = %s, want won", store.leads[lead.ID].DealStatus)
	}
}

func TestChangeDealStatusWonWithoutAssigneeWarns(t *testing.T) {
	store := newFakeStore()
	finance := newFakeFinance()
	svc := newTestService(store, finance)

	orgID := uuid.New()
	lead := wonLead(store, orgID, floatPtr(500000), floatPtr(5), nil)

	result, err := svc.ChangeDealStatus(context.Background(), orgID, uuid.New(), lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusWon,
	})
	if err != nil {
		t.Fatalf("ChangeDealStatus() error = %v", err)
	}
	if result.FinancialRecordsCreated {
		t.Error("no records should exist without an assignee")
	}
	if result.Warning == "" {
		t.Error("expected a warning explaining the skipped financial records")
	}
	if len(finance.recorded) != 0 {
		t.Errorf("finance calls = %d, want 0", len(finance.recorded))
	}
}

func TestChangeDealStatusWonWithoutValueWarns(t *testing.T) {
	store := newFakeStore()
	finance := newFakeFinance()
	svc := newTestService(store, finance)

	orgID := uuid.New()
	assignee := uuid.New()
	lead := wonLead(store, orgID, nil, floatPtr(5), &assignee)

	result, err := svc.ChangeDealStatus(context.Background(), orgID, uuid.New(), lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusWon,
	})
	if err != nil {
		t.Fatalf("ChangeDealStatus() error = %v", err)
	}
	if result.FinancialRecordsCreated || result.Warning == "" {
		t.Errorf("result = created=%v warning=%q, want skipped with warning", result.FinancialRecordsCreated, result.Warning)
	}
}

func TestChangeDealStatusLostClearsWonStamp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeFinance())

	orgID := uuid.New()
	assignee := uuid.New()
	lead := wonLead(store, orgID, floatPtr(100000), floatPtr(5), &assignee)
	actor := uuid.New()

	if _, err := svc.ChangeDealStatus(context.Background(), orgID, actor, lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusWon,
	}); err != nil {
		t.Fatalf("win error = %v", err)
	}
	result, err := svc.ChangeDealStatus(context.Background(), orgID, actor, lead.ID, transport.DealStatusRequest{
		NewStatus: repository.DealStatusLost,
	})
	if err != nil {
		t.Fatalf("lose error = %v", err)
	}
	if result.Lead.DealStatus != repository.DealStatusLost {
		t.Fatalf("status = %s, want lost", result.Lead.DealStatus)
	}
	if result.Lead.WonAt != nil {
		t.Error("won_at must be cleared on lost")
	}
	if result.Lead.LostAt == nil {
		t.Error("lost_at must be stamped")
	}
}

func TestChangeDealStatusUpdatesValueBeforeRecording(t *testing.T) {
	store := newFakeStore()
	finance := newFakeFinance()
	svc := newTestService(store, finance)

	orgID := uuid.New()
	assignee := uuid.New()
	lead := wonLead(store, orgID, nil, nil, &assignee)

	result, err := svc.ChangeDealStatus(context.Background(), orgID, uuid.New(), lead.ID, transport.DealStatusRequest{
		NewStatus:            repository.DealStatusWon,
		ValorInteresse:       floatPtr(450000),
		CommissionPercentage: floatPtr(6),
	})
	if err != nil {
		t.Fatalf("ChangeDealStatus() error = %v", err)
	}
	if !result.FinancialRecordsCreated {
		t.Fatal("expected financial records using the value supplied with the transition")
	}
}

func strPtr(s string) *string { return &s }
