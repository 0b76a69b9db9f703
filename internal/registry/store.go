package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/concordhq/concord/pkg/contract"
)

// Save writes a registry snapshot to the session store. Allocations are
// rewritten wholesale; contracts, completions, and edges merge into whatever
// the session already holds.
func Save(ctx context.Context, client *contract.Client, state *State) error {
	for _, c := range state.Contracts {
		if err := client.PutContract(ctx, c); err != nil {
			return fmt.Errorf("failed to save contract '%s': %w", c.Name, err)
		}
	}

	for _, completion := range state.Completions {
		if err := client.PutCompletion(ctx, completion); err != nil {
			return fmt.Errorf("failed to save completion '%s': %w", completion.TaskName, err)
		}
	}

	for agentType, allocations := range state.Allocations {
		if err := client.ClearAllocations(ctx, agentType); err != nil {
			return fmt.Errorf("failed to reset allocations for '%s': %w", agentType, err)
		}
		for i := range allocations {
			if err := client.AppendAllocation(ctx, &allocations[i]); err != nil {
				return fmt.Errorf("failed to save allocation '%s': %w", allocations[i].TaskName, err)
			}
		}
	}

	for key, edge := range state.Edges {
		if err := client.MergeEdge(ctx, key, edge.RelationTypes); err != nil {
			return fmt.Errorf("failed to save edge '%s': %w", key, err)
		}
	}

	if err := client.SaveConflicts(ctx, state.Conflicts); err != nil {
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	if err := client.SaveLearned(ctx, state.Learned); err != nil {
		return fmt.Errorf("failed to save learned mappings: %w", err)
	}
	return nil
}

// Load reads a full registry snapshot back from the session store. The agent
// roster bounds the allocation scan; the architecture map is rebuilt from each
// agent's most recent allocation, and completions are re-ordered by their
// creation timestamps.
func Load(ctx context.Context, client *contract.Client, agentTypes []string) (*State, error) {
	state := &State{
		Architecture: make(map[string]string),
		Allocations:  make(map[string][]contract.TaskAllocation),
		Contracts:    make(map[string]*contract.Contract),
		Edges:        make(map[string]*contract.DependencyEdge),
	}

	definitions, err := client.AllContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}
	for name := range definitions {
		c, err := client.GetContract(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load contract '%s': %w", name, err)
		}
		state.Contracts[name] = c
	}

	taskNames := make(map[string]bool)
	for _, agentType := range agentTypes {
		allocations, err := client.GetAllocations(ctx, agentType)
		if err != nil {
			return nil, fmt.Errorf("failed to load allocations for '%s': %w", agentType, err)
		}
		if len(allocations) == 0 {
			continue
		}
		state.Allocations[agentType] = allocations
		state.Architecture[agentType] = allocations[len(allocations)-1].TaskName
		for _, a := range allocations {
			taskNames[a.TaskName] = true
		}
	}

	for taskName := range taskNames {
		completion, err := client.GetCompletion(ctx, taskName)
		if contract.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load completion '%s': %w", taskName, err)
		}
		state.Completions = append(state.Completions, completion)
	}
	sort.Slice(state.Completions, func(i, j int) bool {
		if state.Completions[i].CreatedAtMs != state.Completions[j].CreatedAtMs {
			return state.Completions[i].CreatedAtMs < state.Completions[j].CreatedAtMs
		}
		return state.Completions[i].TaskName < state.Completions[j].TaskName
	})

	edges, err := client.GetEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	for key, relations := range edges {
		source, target, ok := contract.ParseEdgeKey(key)
		if !ok {
			return nil, fmt.Errorf("malformed edge key in store: %q", key)
		}
		state.Edges[key] = &contract.DependencyEdge{
			Source:        source,
			Target:        target,
			RelationTypes: relations,
		}
	}

	conflicts, err := client.GetConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflicts: %w", err)
	}
	state.Conflicts = conflicts

	learned, err := client.LoadLearned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load learned mappings: %w", err)
	}
	state.Learned = learned

	return state, nil
}
