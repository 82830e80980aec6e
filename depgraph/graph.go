package depgraph

import (
	"fmt"

	"github.com/nomis52/feo/ids"
)

// Graph is the prerequisite map the Global Orchestrator linearises into an
// action tree: Graph[id] lists the activities that must complete, this
// cycle, before id may start.
type Graph map[ids.ActivityID][]ids.ActivityID

// linearise turns the ordered (activity_ids, parallel_flag) entries of the
// wire format into a Graph. Entries form a pipeline of stages: a maximal
// run of consecutive entries with parallel_flag=true forms one concurrency
// stage, so every activity in the run carries no dependency on another
// activity in the same run. An entry with parallel_flag=false always opens
// a new stage, as does a parallel_flag=true entry that immediately follows
// a parallel_flag=false entry (or is first): it does not merge backwards
// into its predecessor's stage, it starts the run. Every stage depends on
// the complete union of activities in the stage before it. This matches
// the original's generate_body: a false entry closes any open concurrency
// block and appends as its own sequential step; a true entry joins the
// concurrency block that is currently open, or opens a new one.
func linearise(entries []rawGraphEntry, owner map[ids.ActivityID]ids.AgentID) (Graph, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("depgraph: activity_graph must not be empty")
	}

	graph := make(Graph)
	seen := make(map[ids.ActivityID]bool)

	var stages [][]ids.ActivityID
	for i, e := range entries {
		if len(e.ActivityIDs) == 0 {
			return nil, fmt.Errorf("depgraph: activity_graph entry %d lists no activities", i)
		}
		for _, id := range e.ActivityIDs {
			if seen[id] {
				return nil, fmt.Errorf("depgraph: activity %s appears more than once in activity_graph", id)
			}
			seen[id] = true
			if _, ok := owner[id]; !ok {
				return nil, fmt.Errorf("depgraph: activity %s appears in activity_graph but is not assigned to any agent", id)
			}
		}

		if i > 0 && e.Parallel && entries[i-1].Parallel {
			last := len(stages) - 1
			stages[last] = append(stages[last], e.ActivityIDs...)
		} else {
			stages = append(stages, append([]ids.ActivityID(nil), e.ActivityIDs...))
		}
	}

	var previousStage []ids.ActivityID
	for _, stage := range stages {
		deps := append([]ids.ActivityID(nil), previousStage...)
		for _, id := range stage {
			graph[id] = deps
		}
		previousStage = stage
	}

	return graph, nil
}

// Roots returns the activities with no prerequisites: the first stage.
func (g Graph) Roots() []ids.ActivityID {
	var roots []ids.ActivityID
	for id, deps := range g {
		if len(deps) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// CheckAcyclic walks the prerequisite relation and fails if it finds a
// cycle. The stage construction in linearise cannot itself produce one
// (dependencies only ever point at earlier stages), but CheckAcyclic
// guards callers that build a Graph by hand, e.g. in tests.
func (g Graph) CheckAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[ids.ActivityID]int, len(g))

	var visit func(id ids.ActivityID, path []ids.ActivityID) error
	visit = func(id ids.ActivityID, path []ids.ActivityID) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("depgraph: dependency cycle detected: %v -> %s", path, id)
		}
		color[id] = gray
		for _, dep := range g[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for id := range g {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}
