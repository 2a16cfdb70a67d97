package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPhases(t *testing.T) {
	phases := AllPhases()

	require.Len(t, phases, 7)
	assert.Equal(t, PhaseAnalysis, phases[0])
	assert.Equal(t, PhaseRelease, phases[6])
}

func TestPhaseIndex(t *testing.T) {
	assert.Equal(t, 1, PhaseAnalysis.Index())
	assert.Equal(t, 4, PhaseImplementation.Index())
	assert.Equal(t, 7, PhaseRelease.Index())
	assert.Equal(t, 0, Phase("bogus").Index())
}

func TestPhaseAt(t *testing.T) {
	p, ok := PhaseAt(3)
	require.True(t, ok)
	assert.Equal(t, PhaseDesign, p)

	_, ok = PhaseAt(0)
	assert.False(t, ok)

	_, ok = PhaseAt(8)
	assert.False(t, ok)
}

func TestDefaultCatalogShape(t *testing.T) {
	mappings := Default()

	work := WorkAgents(mappings)
	assert.Len(t, work, 40, "work agent count")
	assert.Len(t, mappings, 47, "work agents plus one reviewer per phase")

	seen := make(map[string]bool)
	for _, m := range mappings {
		assert.False(t, seen[m.Key], "duplicate key %q", m.Key)
		seen[m.Key] = true
		assert.True(t, m.Phase.Valid(), "agent %q has unknown phase %q", m.Key, m.Phase)
		assert.Positive(t, m.Reward, "agent %q has no reward", m.Key)
		assert.NotEmpty(t, m.MemoryWrites, "agent %q declares no output key", m.Key)
	}
}

func TestDefaultCatalogCriticalSet(t *testing.T) {
	mappings := Default()

	var critical []string
	for _, m := range mappings {
		if m.Critical {
			critical = append(critical, m.Key)
		}
	}

	// Three critical work agents plus all seven reviewers.
	assert.Len(t, critical, 10)
	assert.Contains(t, critical, "task-analyzer")
	assert.Contains(t, critical, "interface-designer")
	assert.Contains(t, critical, "signoff-approver")
	for _, phase := range AllPhases() {
		assert.Contains(t, critical, ReviewerKey(phase))
	}
}

func TestDefaultCatalogReviewers(t *testing.T) {
	mappings := Default()

	for _, phase := range AllPhases() {
		r, err := ReviewerFor(mappings, phase)
		require.NoError(t, err)
		assert.True(t, r.Critical, "reviewer %q must be critical", r.Key)
		assert.True(t, r.Reviewer)
		assert.Equal(t, phase, r.Phase)
		assert.True(t, strings.HasPrefix(r.Key, "sherlock-"))
	}
}

func TestDefaultCatalogDependenciesResolve(t *testing.T) {
	mappings := Default()
	idx := Index(mappings)

	for _, m := range mappings {
		for _, dep := range m.DependsOn {
			_, ok := idx[dep]
			assert.True(t, ok, "agent %q depends on unknown agent %q", m.Key, dep)
		}
	}
}

func TestDefaultCatalogWriteKeysArePhaseScoped(t *testing.T) {
	for _, m := range Default() {
		for _, key := range m.MemoryWrites {
			assert.True(t, strings.HasPrefix(key, string(m.Phase)+"/"),
				"agent %q writes %q outside its phase prefix", m.Key, key)
		}
	}
}

func TestByKey(t *testing.T) {
	mappings := Default()

	m, err := ByKey(mappings, "task-analyzer")
	require.NoError(t, err)
	assert.Equal(t, PhaseAnalysis, m.Phase)

	_, err = ByKey(mappings, "nonexistent")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestTotalReward(t *testing.T) {
	mappings := []AgentMapping{
		{Key: "a", Reward: 10},
		{Key: "b", Reward: 25},
	}
	assert.Equal(t, 35, TotalReward(mappings))
	assert.Equal(t, 0, TotalReward(nil))
}
