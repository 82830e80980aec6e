// Package ids defines the opaque identifiers shared by every layer of the
// orchestration engine: ActivityID and AgentID. Keeping them in their own
// leaf package lets activity, depgraph, agent, global and program all refer
// to the same identifier types without import cycles.
package ids

import "fmt"

// ActivityID identifies one activity, process-wide unique and assigned at
// config load time. It is never reused for the lifetime of a loaded
// DependencyGraph.
type ActivityID int

// String renders the raw numeric id; use a Names lookup for the display
// name registered in the dependency graph.
func (id ActivityID) String() string {
	return fmt.Sprintf("activity#%d", int(id))
}

// AgentID identifies one agent process. Exactly one AgentID in a loaded
// DependencyGraph is the primary.
type AgentID int

// String renders the raw numeric id.
func (id AgentID) String() string {
	return fmt.Sprintf("agent#%d", int(id))
}

// Names resolves ActivityIDs to their configured display names. It is the
// injective "ActivityId -> name string" mapping the data model requires.
// The zero value is usable and returns the numeric String() for any id it
// hasn't been told about.
type Names struct {
	byID map[ActivityID]string
}

// NewNames builds a Names table from an id->name mapping. Duplicate names
// for distinct ids are rejected, preserving injectivity.
func NewNames(names map[ActivityID]string) (*Names, error) {
	seen := make(map[string]ActivityID, len(names))
	for id, name := range names {
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("ids: name %q used by both %s and %s", name, other, id)
		}
		seen[name] = id
	}
	cp := make(map[ActivityID]string, len(names))
	for id, name := range names {
		cp[id] = name
	}
	return &Names{byID: cp}, nil
}

// Name returns the display name for id, falling back to its numeric form.
func (n *Names) Name(id ActivityID) string {
	if n != nil {
		if name, ok := n.byID[id]; ok {
			return name
		}
	}
	return id.String()
}
