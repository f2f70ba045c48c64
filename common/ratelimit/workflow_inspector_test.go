package ratelimit

import (
	"testing"

	"github.com/orbitalflow/engine/internal/node"
)

func nodesWithAgents(n int) []*node.Spec {
	specs := make([]*node.Spec, 0, n+1)
	specs = append(specs, &node.Spec{ID: "fetch", Kind: node.KindTool})
	for i := 0; i < n; i++ {
		specs = append(specs, &node.Spec{ID: "agent", Kind: node.KindAgent})
	}
	return specs
}

func TestInspectBlueprintTiersByAgentCount(t *testing.T) {
	cases := []struct {
		agents int
		want   BlueprintTier
	}{
		{0, TierSimple},
		{1, TierStandard},
		{2, TierStandard},
		{3, TierHeavy},
		{5, TierHeavy},
	}
	for _, tc := range cases {
		profile := InspectBlueprint(nodesWithAgents(tc.agents))
		if profile.Tier != tc.want {
			t.Errorf("agents=%d: Tier = %v, want %v", tc.agents, profile.Tier, tc.want)
		}
		if profile.AgentCount != tc.agents {
			t.Errorf("agents=%d: AgentCount = %d", tc.agents, profile.AgentCount)
		}
		if profile.HasAgentNodes != (tc.agents > 0) {
			t.Errorf("agents=%d: HasAgentNodes = %v", tc.agents, profile.HasAgentNodes)
		}
	}
}

func TestInspectBlueprintCountsTotalNodes(t *testing.T) {
	profile := InspectBlueprint(nodesWithAgents(2))
	if profile.TotalNodes != 3 {
		t.Errorf("TotalNodes = %d, want 3", profile.TotalNodes)
	}
}

func TestBlueprintTierString(t *testing.T) {
	if TierHeavy.String() != "heavy" {
		t.Errorf("String() = %q, want heavy", TierHeavy.String())
	}
	if BlueprintTier("bogus").String() != "unknown" {
		t.Errorf("String() = %q, want unknown", BlueprintTier("bogus").String())
	}
}
