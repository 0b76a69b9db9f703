package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/routing"
	"github.com/concordhq/concord/pkg/contract"
)

func newTestRegistry(t *testing.T) (*Registry, *config.Config) {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	router := routing.New(routing.Options{
		Graph:      cfg.DependencyGraph(),
		Keywords:   cfg.ContentKeywords(),
		AgentTypes: cfg.AgentTypes(),
		Fallback:   "state",
	})
	return New(cfg, router, nil), cfg
}

func TestRegisterTask(t *testing.T) {
	reg, _ := newTestRegistry(t)

	allocation, err := reg.RegisterTask("physics", "ball-bounce", contract.TaskContext{
		Contracts: map[string]string{
			"BallState": "interface BallState { position: Vector3; velocity: Vector3 }",
		},
		Dependencies:  []contract.DependencyRef{{Raw: "physics → state"}},
		CriticalNotes: []string{"keep timestep fixed at 60hz"},
	})
	require.NoError(t, err)

	assert.Equal(t, "physics", allocation.AgentType)
	assert.Equal(t, "ball-bounce", allocation.TaskName)
	assert.Equal(t, 2000, allocation.TokenBudget) // from config, not the default

	t.Run("declared contract rides on the allocation only", func(t *testing.T) {
		assert.Contains(t, allocation.Contracts, "BallState")
		assert.NotContains(t, reg.Contracts(), "BallState")
	})

	t.Run("edge normalized and recorded", func(t *testing.T) {
		agentCtx := reg.AgentContext("physics")
		require.Len(t, agentCtx.Dependencies, 1)
		edge := agentCtx.Dependencies[0]
		assert.Equal(t, "physics → state", edge.Key)
		assert.Equal(t, []string{"depends_on"}, edge.Types)
		assert.Equal(t, "downstream", edge.Direction)
	})

	t.Run("architecture updated", func(t *testing.T) {
		agentCtx := reg.AgentContext("state")
		assert.Equal(t, "ball-bounce", agentCtx.Architecture["physics"])
	})

	t.Run("rejects empty identity", func(t *testing.T) {
		_, err := reg.RegisterTask("", "x", contract.TaskContext{})
		assert.Error(t, err)
		_, err = reg.RegisterTask("physics", "", contract.TaskContext{})
		assert.Error(t, err)
	})
}

func TestRegisterTask_IngestionOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)

	definition := "interface Roll { pitch: number }"
	_, err := reg.RegisterTask("physics", "roll-calc", contract.TaskContext{
		Contracts: map[string]string{"Roll": definition},
	})
	require.NoError(t, err)

	// Registration neither publishes nor trains the router.
	assert.NotContains(t, reg.Contracts(), "Roll")
	assert.Empty(t, reg.Snapshot().Learned["Roll"])

	reg.MarkComplete("physics", "roll-calc", map[string]string{"Roll": definition}, nil, nil)

	assert.Contains(t, reg.Contracts(), "Roll")
	assert.Equal(t, 1, reg.Snapshot().Learned["Roll"]["physics"],
		"a register-then-complete round counts one usage observation")
}

func TestRegisterTask_DependencyForms(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterTask("frontend", "wiring", contract.TaskContext{
		Dependencies: []contract.DependencyRef{
			{Raw: "state"},                                   // bare target
			{Raw: "frontend -> physics"},                     // ascii arrow
			{From: "frontend", To: "state", Relation: "reads"}, // structured, merges into existing edge
		},
	})
	require.NoError(t, err)

	agentCtx := reg.AgentContext("frontend")
	require.Len(t, agentCtx.Dependencies, 2)

	byKey := make(map[string]contract.ContextEdge)
	for _, e := range agentCtx.Dependencies {
		byKey[e.Key] = e
	}
	require.Contains(t, byKey, "frontend → state")
	assert.ElementsMatch(t, []string{"depends_on", "reads"}, byKey["frontend → state"].Types)
	require.Contains(t, byKey, "frontend → physics")
}

func TestAgentContextScoping(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterTask("state", "store-setup", contract.TaskContext{
		Contracts: map[string]string{"GameStore": "interface GameStore { score: number }"},
	})
	require.NoError(t, err)
	reg.MarkComplete("state", "store-setup",
		map[string]string{"GameStore": "interface GameStore { score: number }"}, nil, nil)
	_, err = reg.RegisterTask("physics", "sim", contract.TaskContext{
		Dependencies: []contract.DependencyRef{{Raw: "physics → state"}},
	})
	require.NoError(t, err)

	t.Run("own tasks only", func(t *testing.T) {
		agentCtx := reg.AgentContext("state")
		require.Len(t, agentCtx.Tasks, 1)
		assert.Equal(t, "store-setup", agentCtx.Tasks[0].TaskName)

		other := reg.AgentContext("physics")
		require.Len(t, other.Tasks, 1)
		assert.Equal(t, "sim", other.Tasks[0].TaskName)
	})

	t.Run("upstream direction for the target", func(t *testing.T) {
		agentCtx := reg.AgentContext("state")
		require.Len(t, agentCtx.Dependencies, 1)
		assert.Equal(t, "upstream", agentCtx.Dependencies[0].Direction)
	})

	t.Run("contracts routed, not broadcast", func(t *testing.T) {
		// GameStore routes to state and frontend by pattern.
		assert.Contains(t, reg.AgentContext("state").Contracts, "GameStore")
		assert.Contains(t, reg.AgentContext("frontend").Contracts, "GameStore")
		assert.NotContains(t, reg.AgentContext("config").Contracts, "GameStore")
	})
}

func TestMarkComplete(t *testing.T) {
	reg, _ := newTestRegistry(t)

	completion := reg.MarkComplete("frontend", "panel-work",
		map[string]string{"PanelProps": "interface PanelProps { title: string }"},
		[]string{"Panel"}, []string{"src/Panel.test.tsx"})

	assert.Equal(t, "frontend", completion.Agent)
	assert.NotZero(t, completion.CreatedAtMs)
	assert.Contains(t, reg.Contracts(), "PanelProps")

	t.Run("nil slices become empty", func(t *testing.T) {
		c := reg.MarkComplete("state", "t", nil, nil, nil)
		assert.NotNil(t, c.Contracts)
		assert.NotNil(t, c.Exports)
		assert.NotNil(t, c.Tests)
	})

	t.Run("last writer wins in the contract map", func(t *testing.T) {
		reg.MarkComplete("state", "rewrite",
			map[string]string{"PanelProps": "interface PanelProps { title: string; icon: string }"},
			nil, nil)
		assert.Contains(t, reg.Contracts()["PanelProps"], "icon")
	})
}

func TestTokenUsage(t *testing.T) {
	reg, cfg := newTestRegistry(t)

	_, err := reg.RegisterTask("config", "settings", contract.TaskContext{
		Contracts: map[string]string{"RenderConfig": "interface RenderConfig { quality: string }"},
	})
	require.NoError(t, err)

	usage := reg.TokenUsage("config")
	assert.Equal(t, cfg.TokenBudget("config"), usage.Budget)
	assert.Positive(t, usage.EstimatedTokens)
	assert.Equal(t, usage.Budget-usage.EstimatedTokens, usage.Remaining)
	assert.InDelta(t, float64(usage.EstimatedTokens)/float64(usage.Budget)*100, usage.Percentage, 1e-9)

	for _, field := range []string{"architecture", "tasks", "contracts", "dependencies"} {
		assert.Contains(t, usage.Breakdown, field)
	}

	t.Run("unknown agent gets the default budget", func(t *testing.T) {
		usage := reg.TokenUsage("stranger")
		assert.Equal(t, config.DefaultTokenBudget, usage.Budget)
	})
}

func TestDetectConflicts(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.MarkComplete("physics", "t1",
		map[string]string{"Roll": "interface Roll { pitch: number }"}, nil, nil)
	reg.MarkComplete("frontend", "t2",
		map[string]string{"Roll": "interface Roll { pitch: number; yaw: number }"}, nil, nil)

	conflicts := reg.DetectConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, contract.ConflictInterfaceMismatch, conflicts[0].Kind)

	t.Run("stored list replaced wholesale", func(t *testing.T) {
		assert.Len(t, reg.Conflicts(), 1)

		// A pass over fixed input is idempotent except for conflict IDs.
		again := reg.DetectConflicts()
		require.Len(t, again, 1)
		assert.Equal(t, conflicts[0].Kind, again[0].Kind)
		assert.Equal(t, conflicts[0].Agents, again[0].Agents)
	})
}

func TestClear(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterTask("frontend", "a", contract.TaskContext{
		Contracts: map[string]string{"PanelProps": "interface PanelProps {}"},
	})
	require.NoError(t, err)
	_, err = reg.RegisterTask("physics", "b", contract.TaskContext{})
	require.NoError(t, err)
	reg.MarkComplete("frontend", "a",
		map[string]string{"PanelProps": "interface PanelProps {}"}, nil, nil)

	t.Run("clears one agent", func(t *testing.T) {
		reg.Clear("frontend")
		assert.Empty(t, reg.AgentContext("frontend").Tasks)
		assert.Len(t, reg.AgentContext("physics").Tasks, 1)
	})

	t.Run("cleared agent stays registered", func(t *testing.T) {
		architecture := reg.AgentContext("physics").Architecture
		require.Contains(t, architecture, "frontend")
		assert.Equal(t, "", architecture["frontend"])
	})

	t.Run("contracts survive a clear", func(t *testing.T) {
		assert.Contains(t, reg.Contracts(), "PanelProps")
	})

	t.Run("clears everyone", func(t *testing.T) {
		reg.Clear("")
		assert.Empty(t, reg.AgentContext("physics").Tasks)
		for _, task := range reg.AgentContext("physics").Architecture {
			assert.Equal(t, "", task)
		}
	})
}

func TestClear_EdgesKeepValidEndpoints(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterTask("state", "store-setup", contract.TaskContext{})
	require.NoError(t, err)
	_, err = reg.RegisterTask("physics", "sim", contract.TaskContext{
		Dependencies: []contract.DependencyRef{{Raw: "physics → state"}},
	})
	require.NoError(t, err)

	reg.Clear("state")

	for _, c := range reg.DetectConflicts() {
		assert.NotEqual(t, contract.ConflictMissingTarget, c.Kind)
		assert.NotEqual(t, contract.ConflictMissingSource, c.Kind)
	}
}

func TestSnapshotRestore(t *testing.T) {
	reg, cfg := newTestRegistry(t)

	_, err := reg.RegisterTask("physics", "sim", contract.TaskContext{
		Contracts:    map[string]string{"BallState": "interface BallState { position: Vector3 }"},
		Dependencies: []contract.DependencyRef{{Raw: "physics → state"}},
	})
	require.NoError(t, err)
	reg.MarkComplete("physics", "sim",
		map[string]string{"BallState": "interface BallState { position: Vector3 }"}, nil, nil)
	reg.DetectConflicts()

	state := reg.Snapshot()

	router := routing.New(routing.Options{
		Graph:      cfg.DependencyGraph(),
		Keywords:   cfg.ContentKeywords(),
		AgentTypes: cfg.AgentTypes(),
	})
	restored := New(cfg, router, nil)
	restored.Restore(state)

	assert.Equal(t, reg.Contracts(), restored.Contracts())
	assert.Equal(t, reg.AgentContext("physics").Tasks, restored.AgentContext("physics").Tasks)
	assert.Equal(t, reg.AgentContext("physics").Dependencies, restored.AgentContext("physics").Dependencies)
	assert.Equal(t, reg.Conflicts(), restored.Conflicts())

	t.Run("snapshot is a deep copy", func(t *testing.T) {
		state.Contracts["BallState"].Definition = "mutated"
		assert.NotEqual(t, "mutated", reg.Contracts()["BallState"])
	})
}
