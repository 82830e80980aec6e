package depgraph

import (
	"testing"

	"github.com/nomis52/feo/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diamondConfig = `{
  "cycle_time_ms": 5,
  "primary_agent": 100,
  "agent_assignments": {
    "100": [3, [0, 1, 2, 3]]
  },
  "activity_graph": [
    [[0], false],
    [[1], true],
    [[2], true],
    [[3], false]
  ],
  "activity_names": {
    "0": "camera",
    "1": "radar",
    "2": "lidar",
    "3": "fusion"
  }
}`

func TestParseDiamondGraph(t *testing.T) {
	cfg, err := Parse([]byte(diamondConfig))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.CycleTimeMs)
	assert.Equal(t, ids.AgentID(100), cfg.PrimaryAgent)
	assert.Empty(t, cfg.Graph[ids.ActivityID(0)])
	assert.ElementsMatch(t, []ids.ActivityID{0}, cfg.Graph[ids.ActivityID(1)])
	assert.ElementsMatch(t, []ids.ActivityID{0}, cfg.Graph[ids.ActivityID(2)])
	assert.ElementsMatch(t, []ids.ActivityID{1, 2}, cfg.Graph[ids.ActivityID(3)])
	assert.Equal(t, "camera", cfg.Names.Name(0))
}

func TestParseRejectsUnknownPrimaryAgent(t *testing.T) {
	bad := `{
	  "cycle_time_ms": 5,
	  "primary_agent": 999,
	  "agent_assignments": {"100": [1, [0]]},
	  "activity_graph": [[[0], false]]
	}`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary_agent")
}

func TestParseRejectsActivityOwnedTwice(t *testing.T) {
	bad := `{
	  "cycle_time_ms": 5,
	  "primary_agent": 100,
	  "agent_assignments": {
	    "100": [1, [0]],
	    "101": [1, [0]]
	  },
	  "activity_graph": [[[0], false]]
	}`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assigned to both")
}

func TestParseRejectsActivityMissingFromGraph(t *testing.T) {
	bad := `{
	  "cycle_time_ms": 5,
	  "primary_agent": 100,
	  "agent_assignments": {"100": [1, [0, 1]]},
	  "activity_graph": [[[0], false]]
	}`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing from activity_graph")
}

func TestParseRejectsGraphReferencingUnassignedActivity(t *testing.T) {
	bad := `{
	  "cycle_time_ms": 5,
	  "primary_agent": 100,
	  "agent_assignments": {"100": [1, [0]]},
	  "activity_graph": [[[0], false], [[7], false]]
	}`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not assigned to any agent")
}

func TestParseRejectsZeroCycleTime(t *testing.T) {
	bad := `{
	  "cycle_time_ms": 0,
	  "primary_agent": 100,
	  "agent_assignments": {"100": [1, [0]]},
	  "activity_graph": [[[0], false]]
	}`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle_time_ms")
}

func TestAgentOf(t *testing.T) {
	cfg, err := Parse([]byte(diamondConfig))
	require.NoError(t, err)

	agent, ok := cfg.AgentOf(ids.ActivityID(2))
	require.True(t, ok)
	assert.Equal(t, ids.AgentID(100), agent)

	_, ok = cfg.AgentOf(ids.ActivityID(99))
	assert.False(t, ok)
}
