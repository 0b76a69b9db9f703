// Package conflict detects structural defects in session-wide shared state:
// the same contract defined two incompatible ways, circular dependency edges,
// and edges whose endpoints were never registered.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/concordhq/concord/pkg/contract"
)

// Detector examines a registry snapshot for structural defects. It holds no
// state of its own; every call sees a fresh snapshot.
type Detector struct {
	// coordinator is allowed as an edge endpoint without being a registered
	// agent.
	coordinator string
}

// NewDetector builds a detector that exempts the named coordinator role from
// missing-endpoint checks.
func NewDetector(coordinator string) *Detector {
	return &Detector{coordinator: coordinator}
}

// Snapshot is the registry state a detection pass runs over. Completions must
// be in insertion order; edges and architecture are keyed maps.
type Snapshot struct {
	Completions  []*contract.Completion
	Edges        map[string]*contract.DependencyEdge
	Architecture map[string]string // agent → current task name
}

// Detect runs all checks over the snapshot and returns the conflicts found,
// mismatches first, then cycles, then missing endpoints.
func (d *Detector) Detect(snap Snapshot) []contract.Conflict {
	var conflicts []contract.Conflict
	conflicts = append(conflicts, d.detectMismatches(snap.Completions)...)
	conflicts = append(conflicts, d.detectCycles(snap.Edges)...)
	conflicts = append(conflicts, d.detectMissingEndpoints(snap.Edges, snap.Architecture)...)
	return conflicts
}

// detectMismatches walks completions in insertion order and flags every
// contract redefined in a structurally incompatible way. The first definition
// seen is the baseline; later definitions that normalize differently each
// produce one conflict carrying both owners and both raw definitions.
// Whitespace and comment differences are not mismatches.
func (d *Detector) detectMismatches(completions []*contract.Completion) []contract.Conflict {
	type first struct {
		agent      string
		definition string
	}
	baseline := make(map[string]first)

	var conflicts []contract.Conflict
	for _, completion := range completions {
		names := make([]string, 0, len(completion.Contracts))
		for name := range completion.Contracts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			definition := completion.Contracts[name]
			prior, ok := baseline[name]
			if !ok {
				baseline[name] = first{agent: completion.Agent, definition: definition}
				continue
			}
			if contract.StructurallyEqual(prior.definition, definition) {
				continue
			}

			c := contract.NewConflict(
				contract.ConflictInterfaceMismatch,
				contract.SeverityCritical,
				fmt.Sprintf("interface '%s' defined differently by %s and %s", name, prior.agent, completion.Agent),
			)
			c.Contract = name
			c.Agents = []string{prior.agent, completion.Agent}
			c.Definitions = []string{prior.definition, definition}
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// detectCycles finds loops in the registered dependency edges.
func (d *Detector) detectCycles(edges map[string]*contract.DependencyEdge) []contract.Conflict {
	adjacency := make(map[string][]string)
	for _, edge := range edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}
	for source := range adjacency {
		sort.Strings(adjacency[source])
	}

	var conflicts []contract.Conflict
	for _, cycle := range FindCycles(adjacency) {
		c := contract.NewConflict(
			contract.ConflictCircularDependency,
			contract.SeverityCritical,
			fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " → ")),
		)
		c.Cycle = cycle
		conflicts = append(conflicts, c)
	}
	return conflicts
}

// detectMissingEndpoints flags edges whose source or target is neither a
// registered agent nor the coordinator. Each dangling side is its own
// conflict.
func (d *Detector) detectMissingEndpoints(edges map[string]*contract.DependencyEdge, architecture map[string]string) []contract.Conflict {
	keys := make([]string, 0, len(edges))
	for key := range edges {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	known := func(agent string) bool {
		if agent == d.coordinator {
			return true
		}
		_, ok := architecture[agent]
		return ok
	}

	var conflicts []contract.Conflict
	for _, key := range keys {
		edge := edges[key]
		if !known(edge.Source) {
			c := contract.NewConflict(
				contract.ConflictMissingSource,
				contract.SeverityHigh,
				fmt.Sprintf("dependency '%s' references unregistered source '%s'", key, edge.Source),
			)
			c.Source = edge.Source
			conflicts = append(conflicts, c)
		}
		if !known(edge.Target) {
			c := contract.NewConflict(
				contract.ConflictMissingTarget,
				contract.SeverityHigh,
				fmt.Sprintf("dependency '%s' references unregistered target '%s'", key, edge.Target),
			)
			c.Target = edge.Target
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// HasCritical reports whether any conflict in the list is CRITICAL. A pass
// succeeds only when this is false.
func HasCritical(conflicts []contract.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == contract.SeverityCritical {
			return true
		}
	}
	return false
}
