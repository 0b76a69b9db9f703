package contract

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-session")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-session", client.Session())
	})

	t.Run("rejects empty session name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "session name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPutGetContract(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("round-trips a contract", func(t *testing.T) {
		ct := &Contract{
			Name:       "BallState",
			Definition: "interface BallState { position: Vector3 }",
			OwnedBy:    "physics",
		}
		require.NoError(t, client.PutContract(ctx, ct))

		got, err := client.GetContract(ctx, "BallState")
		require.NoError(t, err)
		assert.Equal(t, ct.Name, got.Name)
		assert.Equal(t, ct.Definition, got.Definition)
		assert.Equal(t, ct.OwnedBy, got.OwnedBy)
	})

	t.Run("rejects invalid contract", func(t *testing.T) {
		err := client.PutContract(ctx, &Contract{Name: "NoDefinition"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid contract")
	})

	t.Run("missing contract returns not found", func(t *testing.T) {
		_, err := client.GetContract(ctx, "Nope")
		assert.True(t, IsNotFound(err))
	})

	t.Run("overwrite wins", func(t *testing.T) {
		first := &Contract{Name: "UIStore", Definition: "interface UIStore { a: number }", OwnedBy: "state"}
		second := &Contract{Name: "UIStore", Definition: "interface UIStore { a: number; b: number }", OwnedBy: "frontend"}
		require.NoError(t, client.PutContract(ctx, first))
		require.NoError(t, client.PutContract(ctx, second))

		got, err := client.GetContract(ctx, "UIStore")
		require.NoError(t, err)
		assert.Equal(t, second.Definition, got.Definition)
		assert.Equal(t, "frontend", got.OwnedBy)
	})
}

func TestAllContracts(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutContract(ctx, &Contract{Name: "A", Definition: "interface A {}", OwnedBy: "state"}))
	require.NoError(t, client.PutContract(ctx, &Contract{Name: "B", Definition: "interface B {}", OwnedBy: "frontend"}))

	all, err := client.AllContracts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "interface A {}", all["A"])
	assert.Equal(t, "interface B {}", all["B"])
}

func TestPutGetCompletion(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	comp := &Completion{
		TaskName:    "add-haptics",
		Agent:       "frontend",
		Contracts:   map[string]string{"HapticToggleProps": "interface HapticToggleProps { enabled: boolean }"},
		Exports:     []string{"HapticToggle"},
		Tests:       []string{"src/HapticToggle.test.tsx"},
		CreatedAtMs: time.Now().UnixMilli(),
	}
	require.NoError(t, client.PutCompletion(ctx, comp))

	got, err := client.GetCompletion(ctx, "add-haptics")
	require.NoError(t, err)
	assert.Equal(t, comp.Agent, got.Agent)
	assert.Equal(t, comp.Contracts, got.Contracts)
	assert.Equal(t, comp.Exports, got.Exports)
	assert.Equal(t, comp.CreatedAtMs, got.CreatedAtMs)

	_, err = client.GetCompletion(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestAllocations(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	a1 := &TaskAllocation{AgentType: "frontend", TaskName: "task-1", TokenBudget: 2000}
	a2 := &TaskAllocation{AgentType: "frontend", TaskName: "task-2", TokenBudget: 2000}
	require.NoError(t, client.AppendAllocation(ctx, a1))
	require.NoError(t, client.AppendAllocation(ctx, a2))

	got, err := client.GetAllocations(ctx, "frontend")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "task-1", got[0].TaskName) // registration order preserved
	assert.Equal(t, "task-2", got[1].TaskName)

	t.Run("clear one agent", func(t *testing.T) {
		require.NoError(t, client.ClearAllocations(ctx, "frontend"))
		got, err := client.GetAllocations(ctx, "frontend")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("clear all agents", func(t *testing.T) {
		require.NoError(t, client.AppendAllocation(ctx, a1))
		require.NoError(t, client.AppendAllocation(ctx, &TaskAllocation{AgentType: "physics", TaskName: "sim"}))
		require.NoError(t, client.ClearAllocations(ctx, ""))

		for _, agent := range []string{"frontend", "physics"} {
			got, err := client.GetAllocations(ctx, agent)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
	})
}

func TestEdges(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	key := EdgeKey("physics", "state")
	require.NoError(t, client.MergeEdge(ctx, key, []string{"depends_on"}))
	require.NoError(t, client.MergeEdge(ctx, key, []string{"depends_on", "reads"}))

	edges, err := client.GetEdges(ctx)
	require.NoError(t, err)
	require.Contains(t, edges, key)
	assert.Equal(t, []string{"depends_on", "reads"}, edges[key])
}

func TestConflicts(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty session has no conflicts", func(t *testing.T) {
		got, err := client.GetConflicts(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("save replaces wholesale", func(t *testing.T) {
		first := []Conflict{NewConflict(ConflictInterfaceMismatch, SeverityCritical, "first")}
		require.NoError(t, client.SaveConflicts(ctx, first))

		second := []Conflict{NewConflict(ConflictMissingTest, SeverityMedium, "second")}
		require.NoError(t, client.SaveConflicts(ctx, second))

		got, err := client.GetConflicts(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ConflictMissingTest, got[0].Kind)
	})
}

func TestLearnedRoundTrip(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	learned := map[string]map[string]int{
		"GameState":  {"state": 4, "frontend": 1},
		"ForceEvent": {"physics": 2},
	}
	require.NoError(t, client.SaveLearned(ctx, learned))

	got, err := client.LoadLearned(ctx)
	require.NoError(t, err)
	assert.Equal(t, learned, got)
}

func TestSubscribeConflictEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeConflictEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	published := []Conflict{NewConflict(ConflictCircularDependency, SeverityCritical, "a → b → a")}
	require.NoError(t, client.SaveConflicts(ctx, published))

	select {
	case batch := <-sub.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, ConflictCircularDependency, batch[0].Kind)
		assert.Equal(t, published[0].ID, batch[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for conflict event")
	}
}
