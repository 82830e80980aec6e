// Package depgraph loads and validates the dependency specification that
// drives both the Local Agent Orchestrator and the Global Orchestrator: the
// mapping from each agent to its activities, and the partial order those
// activities must respect within every cycle.
package depgraph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nomis52/feo/ids"
)

// rawAgentAssignment decodes one entry of the "agent_assignments" object:
// a JSON tuple `[num_worker_threads, [activity_ids...]]`.
type rawAgentAssignment struct {
	NumWorkerThreads int
	ActivityIDs      []ids.ActivityID
}

func (a *rawAgentAssignment) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("agent assignment: expected [num_worker_threads, [activity_ids]]: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &a.NumWorkerThreads); err != nil {
		return fmt.Errorf("agent assignment: num_worker_threads: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &a.ActivityIDs); err != nil {
		return fmt.Errorf("agent assignment: activity_ids: %w", err)
	}
	return nil
}

// rawGraphEntry decodes one entry of the "activity_graph" array: a JSON
// tuple `[[activity_ids...], parallel_flag]`.
type rawGraphEntry struct {
	ActivityIDs []ids.ActivityID
	Parallel    bool
}

func (e *rawGraphEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("activity_graph entry: expected [[activity_ids], parallel_flag]: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &e.ActivityIDs); err != nil {
		return fmt.Errorf("activity_graph entry: activity_ids: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Parallel); err != nil {
		return fmt.Errorf("activity_graph entry: parallel_flag: %w", err)
	}
	return nil
}

// rawConfig is the exact JSON shape spec.md §6 defines.
type rawConfig struct {
	CycleTimeMs      int                            `json:"cycle_time_ms"`
	PrimaryAgent     ids.AgentID                    `json:"primary_agent"`
	AgentAssignments map[string]rawAgentAssignment  `json:"agent_assignments"`
	ActivityGraph    []rawGraphEntry                `json:"activity_graph"`
	// ActivityNames is not part of the wire format fixed by spec.md, but a
	// deployment may optionally supply display names for logging/metrics;
	// ids without an entry fall back to their numeric form.
	ActivityNames map[string]string `json:"activity_names,omitempty"`
}

// Load reads and validates the dependency specification at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("depgraph: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates the dependency specification from raw JSON bytes.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("depgraph: parsing config: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (*Config, error) {
	if raw.CycleTimeMs <= 0 {
		return nil, fmt.Errorf("depgraph: cycle_time_ms must be positive, got %d", raw.CycleTimeMs)
	}

	assignments := make(map[ids.AgentID]AgentAssignment, len(raw.AgentAssignments))
	activityAgent := make(map[ids.ActivityID]ids.AgentID)
	var allActivities []ids.ActivityID

	for key, a := range raw.AgentAssignments {
		agentID, err := parseAgentKey(key)
		if err != nil {
			return nil, err
		}
		if a.NumWorkerThreads <= 0 {
			return nil, fmt.Errorf("depgraph: agent %s: num_worker_threads must be positive", agentID)
		}
		if len(a.ActivityIDs) == 0 {
			return nil, fmt.Errorf("depgraph: agent %s: must be assigned at least one activity", agentID)
		}
		for _, actID := range a.ActivityIDs {
			if owner, exists := activityAgent[actID]; exists {
				return nil, fmt.Errorf("depgraph: activity %s assigned to both agent %s and agent %s", actID, owner, agentID)
			}
			activityAgent[actID] = agentID
			allActivities = append(allActivities, actID)
		}
		assignments[agentID] = AgentAssignment{
			Agent:            agentID,
			NumWorkerThreads: a.NumWorkerThreads,
			Activities:       append([]ids.ActivityID(nil), a.ActivityIDs...),
		}
	}

	if _, ok := assignments[raw.PrimaryAgent]; !ok {
		return nil, fmt.Errorf("depgraph: primary_agent %s is not listed in agent_assignments", raw.PrimaryAgent)
	}

	deps, err := linearise(raw.ActivityGraph, activityAgent)
	if err != nil {
		return nil, err
	}

	names, err := buildNames(raw.ActivityNames, allActivities)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CycleTimeMs:      raw.CycleTimeMs,
		PrimaryAgent:     raw.PrimaryAgent,
		AgentAssignments: assignments,
		Graph:            deps,
		Names:            names,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseAgentKey(key string) (ids.AgentID, error) {
	var n int
	if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
		return 0, fmt.Errorf("depgraph: invalid agent id key %q: %w", key, err)
	}
	return ids.AgentID(n), nil
}

func buildNames(explicit map[string]string, allActivities []ids.ActivityID) (*ids.Names, error) {
	table := make(map[ids.ActivityID]string, len(allActivities))
	for _, id := range allActivities {
		table[id] = id.String()
	}
	for key, name := range explicit {
		var n int
		if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
			return nil, fmt.Errorf("depgraph: invalid activity_names key %q: %w", key, err)
		}
		table[ids.ActivityID(n)] = name
	}
	return ids.NewNames(table)
}

// Config is the fully-validated dependency specification loaded from disk.
type Config struct {
	CycleTimeMs      int
	PrimaryAgent     ids.AgentID
	AgentAssignments map[ids.AgentID]AgentAssignment
	Graph            Graph
	Names            *ids.Names
}

// AgentAssignment is one agent's slice of the deployment: how many worker
// threads it gets and which activities it owns.
type AgentAssignment struct {
	Agent            ids.AgentID
	NumWorkerThreads int
	Activities       []ids.ActivityID
}

// AgentOf returns which agent owns id, or false if id is unknown.
func (c *Config) AgentOf(id ids.ActivityID) (ids.AgentID, bool) {
	for agentID, a := range c.AgentAssignments {
		for _, owned := range a.Activities {
			if owned == id {
				return agentID, true
			}
		}
	}
	return 0, false
}

// Agents returns every agent id in the deployment, primary included.
func (c *Config) Agents() []ids.AgentID {
	out := make([]ids.AgentID, 0, len(c.AgentAssignments))
	for id := range c.AgentAssignments {
		out = append(out, id)
	}
	return out
}

func (c *Config) validate() error {
	// Every activity referenced by the dependency graph must belong to
	// some agent, and vice versa: this is the "closed" invariant.
	owned := make(map[ids.ActivityID]bool)
	for _, a := range c.AgentAssignments {
		for _, id := range a.Activities {
			owned[id] = true
		}
	}
	for id := range c.Graph {
		if !owned[id] {
			return fmt.Errorf("depgraph: activity %s appears in activity_graph but is not assigned to any agent", id)
		}
		for _, dep := range c.Graph[id] {
			if !owned[dep] {
				return fmt.Errorf("depgraph: activity %s depends on %s, which is not assigned to any agent", id, dep)
			}
		}
	}
	for id := range owned {
		if _, ok := c.Graph[id]; !ok {
			return fmt.Errorf("depgraph: activity %s is assigned to an agent but missing from activity_graph", id)
		}
	}
	return c.Graph.CheckAcyclic()
}
