package service

import (
	"math"
	"testing"

	"leadflow_backend/internal/distribution/repository"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func member(userID uuid.UUID, weight, position int) repository.Member {
	return repository.Member{
		ID:       uuid.New(),
		QueueID:  uuid.New(),
		UserID:   userID,
		Weight:   weight,
		Position: position,
		IsActive: true,
	}
}

func TestSelectMemberWeightedConvergence(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	members := []repository.Member{
		member(userA, 3, 0),
		member(userB, 1, 1),
	}

	counts := map[uuid.UUID]int64{}
	const picks = 4000
	for i := 0; i < picks; i++ {
		selected := selectMember(members, counts, 10)
		counts[selected.UserID]++
	}

	shareA := float64(counts[userA]) / picks
	if math.Abs(shareA-0.75) > 0.05 {
		t.Fatalf("user A share = %.3f, want 0.75 +/- 0.05 (counts: A=%d B=%d)", shareA, counts[userA], counts[userB])
	}
	if counts[userA]+counts[userB] != picks {
		t.Fatalf("total assignments = %d, want %d", counts[userA]+counts[userB], picks)
	}
}

func TestSelectMemberEqualWeightsRoundRobin(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	userC := uuid.New()
	members := []repository.Member{
		member(userA, 10, 0),
		member(userB, 10, 1),
		member(userC, 10, 2),
	}

	counts := map[uuid.UUID]int64{}
	for i := 0; i < 300; i++ {
		selected := selectMember(members, counts, 10)
		counts[selected.UserID]++
	}

	for _, userID := range []uuid.UUID{userA, userB, userC} {
		if counts[userID] != 100 {
			t.Errorf("user %s got %d assignments, want 100", userID, counts[userID])
		}
	}
}

func TestSelectMemberTieGoesToLowestPosition(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	members := []repository.Member{
		member(userB, 10, 1),
		member(userA, 10, 0),
	}
	// ListActiveMembers returns position order; mirror that here.
	members[0], members[1] = members[1], members[0]

	selected := selectMember(members, map[uuid.UUID]int64{}, 10)
	if selected.UserID != userA {
		t.Fatalf("fresh queue pick = %s, want the position-0 member %s", selected.UserID, userA)
	}
}

func TestSelectMemberZeroWeightUsesDefault(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	members := []repository.Member{
		member(userA, 0, 0),
		member(userB, 10, 1),
	}

	counts := map[uuid.UUID]int64{}
	for i := 0; i < 200; i++ {
		selected := selectMember(members, counts, 10)
		counts[selected.UserID]++
	}
	if counts[userA] != 100 || counts[userB] != 100 {
		t.Fatalf("counts A=%d B=%d, want an even 100/100 split with the default weight applied", counts[userA], counts[userB])
	}
}

func TestSelectMemberCatchUpAfterReset(t *testing.T) {
	// After a counter reset the counts map starts empty, so a member that was
	// far behind before the reset is not owed anything.
	userA := uuid.New()
	userB := uuid.New()
	members := []repository.Member{
		member(userA, 1, 0),
		member(userB, 1, 1),
	}

	counts := map[uuid.UUID]int64{}
	first := selectMember(members, counts, 10)
	if first.UserID != userA {
		t.Fatalf("first pick after reset = %s, want position-0 member", first.UserID)
	}
	counts[first.UserID]++
	second := selectMember(members, counts, 10)
	if second.UserID != userB {
		t.Fatalf("second pick after reset = %s, want the other member", second.UserID)
	}
}

func TestRuleMatches(t *testing.T) {
	pipelineID := uuid.New()
	otherPipeline := uuid.New()

	tests := []struct {
		name  string
		rule  repository.Rule
		attrs Attributes
		want  bool
	}{
		{
			name:  "empty rule matches anything",
			rule:  repository.Rule{},
			attrs: Attributes{Source: "meta_ads", City: "Recife"},
			want:  true,
		},
		{
			name:  "source match is case insensitive",
			rule:  repository.Rule{Source: strPtr("Meta_Ads")},
			attrs: Attributes{Source: "meta_ads"},
			want:  true,
		},
		{
			name:  "source mismatch",
			rule:  repository.Rule{Source: strPtr("google_ads")},
			attrs: Attributes{Source: "meta_ads"},
			want:  false,
		},
		{
			name:  "campaign substring",
			rule:  repository.Rule{CampaignContains: strPtr("beira-mar")},
			attrs: Attributes{CampaignName: "Lancamento Beira-Mar Junho"},
			want:  true,
		},
		{
			name:  "campaign substring absent",
			rule:  repository.Rule{CampaignContains: strPtr("centro")},
			attrs: Attributes{CampaignName: "Lancamento Beira-Mar Junho"},
			want:  false,
		},
		{
			name:  "city equality",
			rule:  repository.Rule{City: strPtr("recife")},
			attrs: Attributes{City: "Recife"},
			want:  true,
		},
		{
			name:  "pipeline predicate requires lead pipeline",
			rule:  repository.Rule{PipelineID: &pipelineID},
			attrs: Attributes{},
			want:  false,
		},
		{
			name:  "pipeline mismatch",
			rule:  repository.Rule{PipelineID: &pipelineID},
			attrs: Attributes{PipelineID: &otherPipeline},
			want:  false,
		},
		{
			name:  "all rule tags must be on the lead",
			rule:  repository.Rule{Tags: []string{"vip", "investor"}},
			attrs: Attributes{Tags: []string{"Investor", "VIP", "warm"}},
			want:  true,
		},
		{
			name:  "missing tag fails",
			rule:  repository.Rule{Tags: []string{"vip", "investor"}},
			attrs: Attributes{Tags: []string{"vip"}},
			want:  false,
		},
		{
			name: "combined predicates all required",
			rule: repository.Rule{
				Source: strPtr("meta_ads"),
				City:   strPtr("recife"),
			},
			attrs: Attributes{Source: "meta_ads", City: "Olinda"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ruleMatches(tt.rule, tt.attrs); got != tt.want {
				t.Errorf("ruleMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}
