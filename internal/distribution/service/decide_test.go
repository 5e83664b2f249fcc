package service

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/distribution/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore holds queues, members and rules in memory. Rules are returned in
// the order they were added, mirroring the repository's priority ordering.
type fakeStore struct {
	rules           []repository.Rule
	queues          map[uuid.UUID]repository.Queue
	members         map[uuid.UUID][]repository.Member
	pipelineQueues  map[uuid.UUID]uuid.UUID
	fallbackQueueID *uuid.UUID

	assignments []repository.InsertAssignmentParams
}

func newDecideStore() *fakeStore {
	return &fakeStore{
		queues:         make(map[uuid.UUID]repository.Queue),
		members:        make(map[uuid.UUID][]repository.Member),
		pipelineQueues: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeStore) addQueue(name string, memberCount int) repository.Queue {
	queue := repository.Queue{ID: uuid.New(), Name: name, IsActive: true}
	f.queues[queue.ID] = queue
	for i := 0; i < memberCount; i++ {
		f.members[queue.ID] = append(f.members[queue.ID], repository.Member{
			ID:       uuid.New(),
			QueueID:  queue.ID,
			UserID:   uuid.New(),
			Weight:   10,
			Position: i,
			IsActive: true,
		})
	}
	return queue
}

func (f *fakeStore) addRule(name string, queueID uuid.UUID, source *string) repository.Rule {
	rule := repository.Rule{
		ID:       uuid.New(),
		Name:     name,
		Priority: len(f.rules) + 1,
		QueueID:  queueID,
		Source:   source,
		IsActive: true,
	}
	f.rules = append(f.rules, rule)
	return rule
}

func (f *fakeStore) ListActiveRules(context.Context, uuid.UUID) ([]repository.Rule, error) {
	out := make([]repository.Rule, len(f.rules))
	copy(out, f.rules)
	return out, nil
}

func (f *fakeStore) GetQueue(_ context.Context, queueID, _ uuid.UUID) (repository.Queue, error) {
	if q, ok := f.queues[queueID]; ok {
		return q, nil
	}
	return repository.Queue{}, apperr.NotFound("queue not found")
}

func (f *fakeStore) GetPipelineDefaultQueue(_ context.Context, pipelineID, _ uuid.UUID) (repository.Queue, error) {
	if queueID, ok := f.pipelineQueues[pipelineID]; ok {
		return f.queues[queueID], nil
	}
	return repository.Queue{}, apperr.NotFound("pipeline has no default queue")
}

func (f *fakeStore) GetFallbackQueue(_ context.Context, _ uuid.UUID) (repository.Queue, error) {
	if f.fallbackQueueID != nil {
		return f.queues[*f.fallbackQueueID], nil
	}
	return repository.Queue{}, apperr.NotFound("no fallback queue")
}

func (f *fakeStore) ListActiveMembers(_ context.Context, queueID uuid.UUID) ([]repository.Member, error) {
	return f.members[queueID], nil
}

func (f *fakeStore) CountAssignmentsSince(_ context.Context, queueID uuid.UUID, since *time.Time) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	for _, a := range f.assignments {
		if a.QueueID == queueID {
			counts[a.UserID]++
		}
	}
	return counts, nil
}

func (f *fakeStore) InsertAssignment(_ context.Context, params repository.InsertAssignmentParams) error {
	f.assignments = append(f.assignments, params)
	return nil
}

func (f *fakeStore) CreateQueue(context.Context, repository.CreateQueueParams) (repository.Queue, error) {
	return repository.Queue{}, nil
}

func (f *fakeStore) ListQueues(context.Context, uuid.UUID) ([]repository.Queue, error) {
	return nil, nil
}

func (f *fakeStore) ResetCounter(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeStore) AddMember(context.Context, repository.AddMemberParams) (repository.Member, error) {
	return repository.Member{}, nil
}

func (f *fakeStore) RemoveMember(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeStore) CreateRule(context.Context, repository.CreateRuleParams) (repository.Rule, error) {
	return repository.Rule{}, nil
}

func (f *fakeStore) DeleteRule(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// newDecideService wires only what decide touches.
func newDecideService(store *fakeStore) *Service {
	return New(store, nil, nil, nil, 10, logger.New("development"))
}

func TestDecideFirstPriorityRuleWins(t *testing.T) {
	store := newDecideStore()
	first := store.addQueue("Priority Desk", 1)
	second := store.addQueue("Overflow Desk", 1)
	firstRule := store.addRule("meta first", first.ID, strPtr("meta_ads"))
	store.addRule("meta second", second.ID, strPtr("meta_ads"))

	svc := newDecideService(store)
	outcome, sel, err := svc.decide(context.Background(), uuid.New(), Attributes{Source: "meta_ads"})
	if err != nil {
		t.Fatalf("decide() error = %v", err)
	}
	if !outcome.Matched || outcome.Via != repository.ViaRule {
		t.Fatalf("outcome = %+v, want a rule match", outcome)
	}
	if outcome.RuleID == nil || *outcome.RuleID != firstRule.ID {
		t.Fatalf("rule = %v, want the first-priority rule %s", outcome.RuleID, firstRule.ID)
	}
	if sel.queue.ID != first.ID {
		t.Fatalf("queue = %s, want the first rule's queue %s", sel.queue.ID, first.ID)
	}
}

func TestDecideTiers(t *testing.T) {
	pipelineID := uuid.New()

	tests := []struct {
		name        string
		setup       func(store *fakeStore)
		attrs       Attributes
		wantMatched bool
		wantVia     string
	}{
		{
			name: "matching rule with members wins",
			setup: func(store *fakeStore) {
				queue := store.addQueue("Meta Desk", 2)
				store.addRule("meta", queue.ID, strPtr("meta_ads"))
				fallback := store.addQueue("Fallback", 1)
				store.fallbackQueueID = &fallback.ID
			},
			attrs:       Attributes{Source: "meta_ads"},
			wantMatched: true,
			wantVia:     repository.ViaRule,
		},
		{
			name: "empty rule queue falls through to pipeline default",
			setup: func(store *fakeStore) {
				empty := store.addQueue("Empty Desk", 0)
				store.addRule("meta", empty.ID, strPtr("meta_ads"))
				def := store.addQueue("Pipeline Desk", 1)
				store.pipelineQueues[pipelineID] = def.ID
			},
			attrs:       Attributes{Source: "meta_ads", PipelineID: &pipelineID},
			wantMatched: true,
			wantVia:     repository.ViaPipelineDefault,
		},
		{
			name: "no matching rule uses pipeline default",
			setup: func(store *fakeStore) {
				queue := store.addQueue("Google Desk", 1)
				store.addRule("google", queue.ID, strPtr("google_ads"))
				def := store.addQueue("Pipeline Desk", 1)
				store.pipelineQueues[pipelineID] = def.ID
			},
			attrs:       Attributes{Source: "meta_ads", PipelineID: &pipelineID},
			wantMatched: true,
			wantVia:     repository.ViaPipelineDefault,
		},
		{
			name: "no rule and no pipeline uses the fallback queue",
			setup: func(store *fakeStore) {
				fallback := store.addQueue("Fallback", 1)
				store.fallbackQueueID = &fallback.ID
			},
			attrs:       Attributes{Source: "meta_ads"},
			wantMatched: true,
			wantVia:     repository.ViaFallback,
		},
		{
			name: "empty pipeline default falls through to fallback",
			setup: func(store *fakeStore) {
				def := store.addQueue("Pipeline Desk", 0)
				store.pipelineQueues[pipelineID] = def.ID
				fallback := store.addQueue("Fallback", 1)
				store.fallbackQueueID = &fallback.ID
			},
			attrs:       Attributes{PipelineID: &pipelineID},
			wantMatched: true,
			wantVia:     repository.ViaFallback,
		},
		{
			name: "no queue with members leaves the lead unmatched",
			setup: func(store *fakeStore) {
				empty := store.addQueue("Empty Desk", 0)
				store.addRule("meta", empty.ID, strPtr("meta_ads"))
				fallback := store.addQueue("Empty Fallback", 0)
				store.fallbackQueueID = &fallback.ID
			},
			attrs:       Attributes{Source: "meta_ads"},
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newDecideStore()
			tt.setup(store)
			svc := newDecideService(store)

			outcome, _, err := svc.decide(context.Background(), uuid.New(), tt.attrs)
			if err != nil {
				t.Fatalf("decide() error = %v", err)
			}
			if outcome.Matched != tt.wantMatched {
				t.Fatalf("matched = %v, want %v", outcome.Matched, tt.wantMatched)
			}
			if tt.wantMatched && outcome.Via != tt.wantVia {
				t.Errorf("via = %s, want %s", outcome.Via, tt.wantVia)
			}
		})
	}
}
