package service

import (
	"context"
	"sync"
	"testing"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/finance/repository"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore keys rows by lead, mirroring the unique index on lead_id.
type fakeStore struct {
	mu          sync.Mutex
	commissions map[uuid.UUID]repository.InsertCommissionParams
	receivables map[uuid.UUID]repository.InsertReceivableParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		commissions: make(map[uuid.UUID]repository.InsertCommissionParams),
		receivables: make(map[uuid.UUID]repository.InsertReceivableParams),
	}
}

func (f *fakeStore) InsertCommission(_ context.Context, params repository.InsertCommissionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.commissions[params.LeadID]; ok {
		return false, nil
	}
	f.commissions[params.LeadID] = params
	return true, nil
}

func (f *fakeStore) InsertReceivable(_ context.Context, params repository.InsertReceivableParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.receivables[params.LeadID]; ok {
		return false, nil
	}
	f.receivables[params.LeadID] = params
	return true, nil
}

func (f *fakeStore) ListCommissions(context.Context, uuid.UUID, int) ([]repository.Commission, error) {
	return nil, nil
}

func (f *fakeStore) ListReceivables(context.Context, uuid.UUID, int) ([]repository.Receivable, error) {
	return nil, nil
}

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

func (f *fakeBus) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func newTestService(store *fakeStore, bus *fakeBus) *Service {
	return New(store, bus, logger.New("development"))
}

func TestRecordWonDealCreatesBothRecords(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	orgID := uuid.New()
	leadID := uuid.New()
	userID := uuid.New()

	created, err := svc.RecordWonDeal(context.Background(), orgID, leadID, userID, 500000, 5)
	if err != nil {
		t.Fatalf("RecordWonDeal() error = %v", err)
	}
	if !created {
		t.Fatal("expected records to be created on first win")
	}

	commission, ok := store.commissions[leadID]
	if !ok {
		t.Fatal("commission row missing")
	}
	if commission.Amount != 25000 {
		t.Errorf("commission amount = %v, want 25000 (5%% of 500000)", commission.Amount)
	}
	if commission.UserID != userID || commission.BaseValue != 500000 || commission.Percentage != 5 {
		t.Errorf("commission = %+v, want assignee, base 500000, pct 5", commission)
	}

	receivable, ok := store.receivables[leadID]
	if !ok {
		t.Fatal("receivable row missing")
	}
	if receivable.Amount != 500000 {
		t.Errorf("receivable amount = %v, want the full deal value", receivable.Amount)
	}

	if got := bus.count("finance.commission.created"); got != 1 {
		t.Errorf("commission events = %d, want 1", got)
	}
}

func TestRecordWonDealRoundsToCents(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	leadID := uuid.New()
	// 3.33% of 333333.33 = 11099.999889; rounds to 11100.00.
	if _, err := svc.RecordWonDeal(context.Background(), uuid.New(), leadID, uuid.New(), 333333.33, 3.33); err != nil {
		t.Fatalf("RecordWonDeal() error = %v", err)
	}
	if got := store.commissions[leadID].Amount; got != 11100 {
		t.Errorf("commission amount = %v, want 11100.00", got)
	}
	if got := store.receivables[leadID].Amount; got != 333333.33 {
		t.Errorf("receivable amount = %v, want 333333.33", got)
	}
}

func TestRecordWonDealZeroPercentageSkipsCommission(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	leadID := uuid.New()
	created, err := svc.RecordWonDeal(context.Background(), uuid.New(), leadID, uuid.New(), 200000, 0)
	if err != nil {
		t.Fatalf("RecordWonDeal() error = %v", err)
	}
	if !created {
		t.Fatal("receivable alone still counts as created")
	}
	if len(store.commissions) != 0 {
		t.Errorf("commissions = %d, want 0 for zero percentage", len(store.commissions))
	}
	if _, ok := store.receivables[leadID]; !ok {
		t.Error("receivable must be created even without a commission")
	}
	if got := bus.count("finance.commission.created"); got != 0 {
		t.Errorf("commission events = %d, want 0", got)
	}
}

func TestRecordWonDealNonPositiveValueIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	for _, baseValue := range []float64{0, -100} {
		created, err := svc.RecordWonDeal(context.Background(), uuid.New(), uuid.New(), uuid.New(), baseValue, 5)
		if err != nil {
			t.Fatalf("RecordWonDeal(%v) error = %v", baseValue, err)
		}
		if created {
			t.Errorf("RecordWonDeal(%v) created records, want no-op", baseValue)
		}
	}
	if len(store.commissions)+len(store.receivables) != 0 {
		t.Errorf("rows written = %d, want 0", len(store.commissions)+len(store.receivables))
	}
}

func TestRecordWonDealIsIdempotentPerLead(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	orgID := uuid.New()
	leadID := uuid.New()
	userID := uuid.New()

	first, err := svc.RecordWonDeal(context.Background(), orgID, leadID, userID, 500000, 5)
	if err != nil {
		t.Fatalf("first RecordWonDeal() error = %v", err)
	}
	second, err := svc.RecordWonDeal(context.Background(), orgID, leadID, userID, 500000, 5)
	if err != nil {
		t.Fatalf("second RecordWonDeal() error = %v", err)
	}
	if !first || second {
		t.Fatalf("created = %v then %v, want true then false", first, second)
	}
	if len(store.commissions) != 1 || len(store.receivables) != 1 {
		t.Errorf("rows = %d commissions, %d receivables, want 1 and 1", len(store.commissions), len(store.receivables))
	}
	if got := bus.count("finance.commission.created"); got != 1 {
		t.Errorf("commission events = %d, want exactly 1", got)
	}
}
