package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordhq/concord/pkg/contract"
)

func edgeMap(pairs ...[2]string) map[string]*contract.DependencyEdge {
	edges := make(map[string]*contract.DependencyEdge, len(pairs))
	for _, p := range pairs {
		e := &contract.DependencyEdge{Source: p[0], Target: p[1], RelationTypes: []string{"depends_on"}}
		edges[e.Key()] = e
	}
	return edges
}

func TestFindCycles(t *testing.T) {
	t.Run("two-node loop reports path of length three", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{
			"a": {"b"},
			"b": {"a"},
		})
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a", "b", "a"}, cycles[0])
	})

	t.Run("k-node loop reports k+1 entries", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{
			"a": {"b"},
			"b": {"c"},
			"c": {"a"},
		})
		require.Len(t, cycles, 1)
		assert.Len(t, cycles[0], 4)
		assert.Equal(t, cycles[0][0], cycles[0][3])
	})

	t.Run("diamond is not a cycle", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{
			"a": {"b", "c"},
			"b": {"d"},
			"c": {"d"},
		})
		assert.Empty(t, cycles)
	})

	t.Run("self loop", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{"a": {"a"}})
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a", "a"}, cycles[0])
	})

	t.Run("disjoint components each report once", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{
			"a": {"b"},
			"b": {"a"},
			"x": {"y"},
			"y": {"x"},
			"m": {"n"}, // acyclic tail
		})
		assert.Len(t, cycles, 2)
	})

	t.Run("acyclic graph reports nothing", func(t *testing.T) {
		cycles := FindCycles(map[string][]string{
			"a": {"b", "c"},
			"b": {"c"},
		})
		assert.Empty(t, cycles)
	})
}

func TestDetectMismatches(t *testing.T) {
	d := NewDetector("orchestrator")

	t.Run("structurally different redefinition is critical", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Completions: []*contract.Completion{
				{TaskName: "t1", Agent: "physics", Contracts: map[string]string{
					"Roll": "interface Roll { pitch: number }",
				}},
				{TaskName: "t2", Agent: "frontend", Contracts: map[string]string{
					"Roll": "interface Roll { pitch: number; yaw: number }",
				}},
			},
			Architecture: map[string]string{"physics": "t1", "frontend": "t2"},
		})

		require.Len(t, conflicts, 1)
		c := conflicts[0]
		assert.Equal(t, contract.ConflictInterfaceMismatch, c.Kind)
		assert.Equal(t, contract.SeverityCritical, c.Severity)
		assert.Equal(t, "Roll", c.Contract)
		assert.Equal(t, []string{"physics", "frontend"}, c.Agents)
		require.Len(t, c.Definitions, 2)
		assert.Contains(t, c.Definitions[1], "yaw")
		assert.NoError(t, c.Validate())
	})

	t.Run("formatting-only redefinition is clean", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Completions: []*contract.Completion{
				{TaskName: "t1", Agent: "physics", Contracts: map[string]string{
					"Roll": "interface Roll {\n  pitch: number\n}",
				}},
				{TaskName: "t2", Agent: "frontend", Contracts: map[string]string{
					"Roll": "interface Roll { pitch: number } // degrees",
				}},
			},
			Architecture: map[string]string{"physics": "t1", "frontend": "t2"},
		})
		assert.Empty(t, conflicts)
	})

	t.Run("spacing around punctuation is clean", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Completions: []*contract.Completion{
				{TaskName: "t1", Agent: "physics", Contracts: map[string]string{
					"Roll": "{value:number}",
				}},
				{TaskName: "t2", Agent: "frontend", Contracts: map[string]string{
					"Roll": "{ value : number }",
				}},
			},
			Architecture: map[string]string{"physics": "t1", "frontend": "t2"},
		})
		assert.Empty(t, conflicts)
	})

	t.Run("later completions compare against the first definition", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Completions: []*contract.Completion{
				{TaskName: "t1", Agent: "a", Contracts: map[string]string{"X": "interface X { a: number }"}},
				{TaskName: "t2", Agent: "b", Contracts: map[string]string{"X": "interface X { b: number }"}},
				{TaskName: "t3", Agent: "c", Contracts: map[string]string{"X": "interface X { c: number }"}},
			},
			Architecture: map[string]string{"a": "t1", "b": "t2", "c": "t3"},
		})
		require.Len(t, conflicts, 2)
		assert.Equal(t, []string{"a", "b"}, conflicts[0].Agents)
		assert.Equal(t, []string{"a", "c"}, conflicts[1].Agents)
	})
}

func TestDetectCycles(t *testing.T) {
	d := NewDetector("orchestrator")

	conflicts := d.Detect(Snapshot{
		Edges: edgeMap(
			[2]string{"frontend", "state"},
			[2]string{"state", "physics"},
			[2]string{"physics", "frontend"},
		),
		Architecture: map[string]string{"frontend": "t", "state": "t", "physics": "t"},
	})

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, contract.ConflictCircularDependency, c.Kind)
	assert.Equal(t, contract.SeverityCritical, c.Severity)
	assert.Len(t, c.Cycle, 4)
	assert.Contains(t, c.Message, "→")
}

func TestDetectMissingEndpoints(t *testing.T) {
	d := NewDetector("orchestrator")

	t.Run("both dangling sides reported separately", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Edges:        edgeMap([2]string{"ghost", "phantom"}),
			Architecture: map[string]string{"frontend": "t"},
		})
		require.Len(t, conflicts, 2)
		assert.Equal(t, contract.ConflictMissingSource, conflicts[0].Kind)
		assert.Equal(t, "ghost", conflicts[0].Source)
		assert.Equal(t, contract.SeverityHigh, conflicts[0].Severity)
		assert.Equal(t, contract.ConflictMissingTarget, conflicts[1].Kind)
		assert.Equal(t, "phantom", conflicts[1].Target)
	})

	t.Run("coordinator is a legal endpoint", func(t *testing.T) {
		conflicts := d.Detect(Snapshot{
			Edges:        edgeMap([2]string{"orchestrator", "frontend"}),
			Architecture: map[string]string{"frontend": "t"},
		})
		assert.Empty(t, conflicts)
	})
}

func TestHasCritical(t *testing.T) {
	assert.False(t, HasCritical(nil))
	assert.False(t, HasCritical([]contract.Conflict{
		contract.NewConflict(contract.ConflictMissingTest, contract.SeverityMedium, "m"),
	}))
	assert.True(t, HasCritical([]contract.Conflict{
		contract.NewConflict(contract.ConflictMissingTest, contract.SeverityMedium, "m"),
		contract.NewConflict(contract.ConflictInterfaceMismatch, contract.SeverityCritical, "c"),
	}))
}
