package depgraph

import (
	"testing"

	"github.com/nomis52/feo/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAcyclicAcceptsDAG(t *testing.T) {
	g := Graph{
		0: nil,
		1: {0},
		2: {0},
		3: {1, 2},
	}
	require.NoError(t, g.CheckAcyclic())
}

func TestCheckAcyclicDetectsCycle(t *testing.T) {
	g := Graph{
		0: {1},
		1: {2},
		2: {0},
	}
	err := g.CheckAcyclic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRoots(t *testing.T) {
	g := Graph{
		0: nil,
		1: nil,
		2: {0, 1},
	}
	assert.ElementsMatch(t, []ids.ActivityID{0, 1}, g.Roots())
}

func TestLineariseTrueAfterFalseStartsNewStage(t *testing.T) {
	// A lone parallel_flag=true entry with no preceding true entry does not
	// merge backwards: every entry is its own stage, so this is the chain
	// 0 -> 1 -> 2 -> 3, exactly as the original's generate_body reads it.
	owner := map[ids.ActivityID]ids.AgentID{0: 100, 1: 100, 2: 100, 3: 100}
	entries := []rawGraphEntry{
		{ActivityIDs: []ids.ActivityID{0}, Parallel: false},
		{ActivityIDs: []ids.ActivityID{1}, Parallel: false},
		{ActivityIDs: []ids.ActivityID{2}, Parallel: true},
		{ActivityIDs: []ids.ActivityID{3}, Parallel: false},
	}
	g, err := linearise(entries, owner)
	require.NoError(t, err)

	assert.Empty(t, g[0])
	assert.ElementsMatch(t, []ids.ActivityID{0}, g[1])
	assert.ElementsMatch(t, []ids.ActivityID{1}, g[2])
	assert.ElementsMatch(t, []ids.ActivityID{2}, g[3])
}

func TestLineariseMergesConsecutiveTrueEntries(t *testing.T) {
	// A(false), B(true), C(true), D(false): B and C are a maximal run of
	// consecutive true entries, so they form one concurrency stage that
	// depends on A; D depends on the union of {B, C}. The diamond.
	owner := map[ids.ActivityID]ids.AgentID{0: 100, 1: 100, 2: 100, 3: 100}
	entries := []rawGraphEntry{
		{ActivityIDs: []ids.ActivityID{0}, Parallel: false}, // A
		{ActivityIDs: []ids.ActivityID{1}, Parallel: true},  // B
		{ActivityIDs: []ids.ActivityID{2}, Parallel: true},  // C
		{ActivityIDs: []ids.ActivityID{3}, Parallel: false}, // D
	}
	g, err := linearise(entries, owner)
	require.NoError(t, err)

	assert.Empty(t, g[0])
	assert.ElementsMatch(t, []ids.ActivityID{0}, g[1])
	assert.ElementsMatch(t, []ids.ActivityID{0}, g[2])
	assert.ElementsMatch(t, []ids.ActivityID{1, 2}, g[3])
}

func TestLineariseFirstEntryFlagIsIgnored(t *testing.T) {
	owner := map[ids.ActivityID]ids.AgentID{0: 100, 1: 100}
	entries := []rawGraphEntry{
		{ActivityIDs: []ids.ActivityID{0}, Parallel: true},
		{ActivityIDs: []ids.ActivityID{1}, Parallel: true},
	}
	g, err := linearise(entries, owner)
	require.NoError(t, err)

	assert.Empty(t, g[0])
	assert.Empty(t, g[1])
}

func TestLineariseRejectsDuplicateActivity(t *testing.T) {
	owner := map[ids.ActivityID]ids.AgentID{0: 100}
	entries := []rawGraphEntry{
		{ActivityIDs: []ids.ActivityID{0}, Parallel: false},
		{ActivityIDs: []ids.ActivityID{0}, Parallel: false},
	}
	_, err := linearise(entries, owner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestLineariseRejectsEmptyGraph(t *testing.T) {
	_, err := linearise(nil, nil)
	require.Error(t, err)
}
