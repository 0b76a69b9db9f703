// Package registry implements the session-scoped contract registry: the
// single writer for task allocations, published contracts, dependency edges,
// and completions. Agents never see each other's raw task lists; they read
// scoped views assembled here.
package registry

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/conflict"
	"github.com/concordhq/concord/internal/routing"
	"github.com/concordhq/concord/internal/tokens"
	"github.com/concordhq/concord/pkg/contract"
)

// Registry is the in-memory shared state for one session. All access goes
// through a single lock; operations are short and never block on I/O.
type Registry struct {
	mu sync.RWMutex

	cfg       *config.Config
	router    *routing.Router
	estimator tokens.Estimator
	detector  *conflict.Detector

	// architecture maps each agent to its most recently registered task.
	architecture map[string]string

	// allocations preserves per-agent registration order.
	allocations map[string][]contract.TaskAllocation

	// completions preserves global insertion order for mismatch detection.
	completions []*contract.Completion

	// contracts is the session-wide contract map, last writer wins.
	contracts map[string]*contract.Contract

	// edges accumulates dependency edges keyed by "source → target".
	edges map[string]*contract.DependencyEdge

	// conflicts is the result of the most recent detection pass.
	conflicts []contract.Conflict
}

// New builds a registry over the given collaborators. A nil estimator gets
// the default heuristic.
func New(cfg *config.Config, router *routing.Router, estimator tokens.Estimator) *Registry {
	if estimator == nil {
		estimator = tokens.NewHeuristic()
	}
	return &Registry{
		cfg:          cfg,
		router:       router,
		estimator:    estimator,
		detector:     conflict.NewDetector(cfg.Coordinator),
		architecture: make(map[string]string),
		allocations:  make(map[string][]contract.TaskAllocation),
		contracts:    make(map[string]*contract.Contract),
		edges:        make(map[string]*contract.DependencyEdge),
	}
}

// RegisterTask records a unit of work for an agent: its dependency
// declarations are normalized into edges and the allocation is appended to
// the agent's ordered list. Ingestion only; the declared contracts ride on
// the allocation and enter the shared map when MarkComplete confirms them.
func (r *Registry) RegisterTask(agentType, taskName string, ctx contract.TaskContext) (*contract.TaskAllocation, error) {
	if agentType == "" {
		return nil, fmt.Errorf("agent type is required")
	}
	if taskName == "" {
		return nil, fmt.Errorf("task name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range ctx.Dependencies {
		source, target, relation, ok := ref.Normalize(agentType)
		if !ok {
			log.Printf("[WARN] agent %s task %s: skipping dependency with empty target", agentType, taskName)
			continue
		}
		r.mergeEdge(source, target, relation)
	}

	allocation := contract.TaskAllocation{
		AgentType:        agentType,
		TaskName:         taskName,
		Dependencies:     ctx.Dependencies,
		Contracts:        ctx.Contracts,
		CriticalNotes:    ctx.CriticalNotes,
		TestRequirements: ctx.TestRequirements,
		TokenBudget:      r.cfg.TokenBudget(agentType),
	}
	r.allocations[agentType] = append(r.allocations[agentType], allocation)
	r.architecture[agentType] = taskName

	log.Printf("[INFO] registered task '%s' for agent '%s' (%d contracts, %d dependencies)",
		taskName, agentType, len(ctx.Contracts), len(ctx.Dependencies))

	return &allocation, nil
}

// publishContract merges one confirmed definition into the shared map. Last
// writer wins; whether an overwrite was compatible is the conflict detector's
// call, not the registry's. Each publication feeds routing usage statistics,
// so a contract counts once per completion that declares it.
func (r *Registry) publishContract(name, definition, agentType string) {
	r.contracts[name] = &contract.Contract{
		Name:       name,
		Definition: definition,
		OwnedBy:    agentType,
	}
	r.router.LearnFromUsage(agentType, name)
}

// mergeEdge unions a relation type into the directional edge, creating it if
// new. Relation types are never removed within a session.
func (r *Registry) mergeEdge(source, target, relation string) {
	key := contract.EdgeKey(source, target)
	edge, ok := r.edges[key]
	if !ok {
		r.edges[key] = &contract.DependencyEdge{
			Source:        source,
			Target:        target,
			RelationTypes: []string{relation},
		}
		return
	}
	if !edge.HasRelation(relation) {
		edge.RelationTypes = append(edge.RelationTypes, relation)
	}
}

// MarkComplete records finished work: the completion is appended in insertion
// order, its contracts merge into the shared map, and routing learns from the
// declared usage.
func (r *Registry) MarkComplete(agentType, taskName string, contracts map[string]string, exports, tests []string) *contract.Completion {
	r.mu.Lock()
	defer r.mu.Unlock()

	if contracts == nil {
		contracts = map[string]string{}
	}
	if exports == nil {
		exports = []string{}
	}
	if tests == nil {
		tests = []string{}
	}

	completion := &contract.Completion{
		TaskName:    taskName,
		Agent:       agentType,
		Contracts:   contracts,
		Exports:     exports,
		Tests:       tests,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	r.completions = append(r.completions, completion)

	for name, definition := range contracts {
		r.publishContract(name, definition, agentType)
	}

	log.Printf("[INFO] agent '%s' completed task '%s' (%d contracts)", agentType, taskName, len(contracts))
	return completion
}

// AgentContext assembles the scoped view one agent is allowed to see: the
// architecture summary, its own allocations, the contracts routed to it, and
// the dependency edges it participates in, tagged by direction.
func (r *Registry) AgentContext(agentType string) *contract.AgentContext {
	r.mu.RLock()
	defer r.mu.RUnlock()

	architecture := make(map[string]string, len(r.architecture))
	for agent, task := range r.architecture {
		architecture[agent] = task
	}

	tasks := append([]contract.TaskAllocation{}, r.allocations[agentType]...)

	routed := r.router.ContractsForAgent(agentType, r.contractDefinitions(), true, -1)

	var deps []contract.ContextEdge
	keys := make([]string, 0, len(r.edges))
	for key := range r.edges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		edge := r.edges[key]
		if edge.Source != agentType && edge.Target != agentType {
			continue
		}
		direction := "downstream"
		if edge.Target == agentType {
			direction = "upstream"
		}
		deps = append(deps, contract.ContextEdge{
			Key:       key,
			Source:    edge.Source,
			Target:    edge.Target,
			Types:     append([]string{}, edge.RelationTypes...),
			Direction: direction,
		})
	}

	return &contract.AgentContext{
		Architecture: architecture,
		Tasks:        tasks,
		Contracts:    routed,
		Dependencies: deps,
	}
}

// contractDefinitions flattens the contract map to name → definition.
// Callers must hold at least the read lock.
func (r *Registry) contractDefinitions() map[string]string {
	defs := make(map[string]string, len(r.contracts))
	for name, c := range r.contracts {
		defs[name] = c.Definition
	}
	return defs
}

// Contracts returns a copy of the session-wide name → definition map.
func (r *Registry) Contracts() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contractDefinitions()
}

// TokenUsage estimates the token cost of one agent's assembled context
// against its configured budget. Remaining may go negative; callers need the
// overrun magnitude.
func (r *Registry) TokenUsage(agentType string) contract.TokenUsage {
	agentCtx := r.AgentContext(agentType)

	fields := map[string]any{
		"architecture": agentCtx.Architecture,
		"tasks":        agentCtx.Tasks,
		"contracts":    agentCtx.Contracts,
		"dependencies": agentCtx.Dependencies,
	}
	breakdown := r.estimator.EstimateFields(fields)

	estimated := 0
	for _, count := range breakdown {
		estimated += count
	}

	budget := r.cfg.TokenBudget(agentType)
	usage := contract.TokenUsage{
		EstimatedTokens: estimated,
		Budget:          budget,
		Remaining:       budget - estimated,
		Breakdown:       breakdown,
	}
	if budget > 0 {
		usage.Percentage = float64(estimated) / float64(budget) * 100
	}
	return usage
}

// DetectConflicts runs a detection pass over the current state and replaces
// the stored conflict list wholesale.
func (r *Registry) DetectConflicts() []contract.Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := conflict.Snapshot{
		Completions:  r.completions,
		Edges:        r.edges,
		Architecture: r.architecture,
	}
	r.conflicts = r.detector.Detect(snap)
	return append([]contract.Conflict{}, r.conflicts...)
}

// Conflicts returns the result of the most recent detection pass.
func (r *Registry) Conflicts() []contract.Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]contract.Conflict{}, r.conflicts...)
}

// Clear drops the allocations and current task for one agent, or for every
// agent when agentType is empty. The architecture entry is reset, not
// removed: a cleared agent stays registered, so edges pointing at it remain
// valid endpoints. Published contracts, edges, and completions survive a
// clear; they are session history, not agent context.
func (r *Registry) Clear(agentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agentType == "" {
		r.allocations = make(map[string][]contract.TaskAllocation)
		for agent := range r.architecture {
			r.architecture[agent] = ""
		}
		log.Printf("[INFO] cleared context for all agents")
		return
	}
	delete(r.allocations, agentType)
	if _, ok := r.architecture[agentType]; ok {
		r.architecture[agentType] = ""
	}
	log.Printf("[INFO] cleared context for agent '%s'", agentType)
}

// State is a point-in-time copy of the registry for persistence.
type State struct {
	Architecture map[string]string
	Allocations  map[string][]contract.TaskAllocation
	Completions  []*contract.Completion
	Contracts    map[string]*contract.Contract
	Edges        map[string]*contract.DependencyEdge
	Conflicts    []contract.Conflict
	Learned      map[string]map[string]int
}

// Snapshot copies the full registry state, including the router's learned
// statistics, for saving to the session store.
func (r *Registry) Snapshot() *State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := &State{
		Architecture: make(map[string]string, len(r.architecture)),
		Allocations:  make(map[string][]contract.TaskAllocation, len(r.allocations)),
		Completions:  make([]*contract.Completion, 0, len(r.completions)),
		Contracts:    make(map[string]*contract.Contract, len(r.contracts)),
		Edges:        make(map[string]*contract.DependencyEdge, len(r.edges)),
		Conflicts:    append([]contract.Conflict{}, r.conflicts...),
		Learned:      r.router.LearnedSnapshot(),
	}
	for agent, task := range r.architecture {
		state.Architecture[agent] = task
	}
	for agent, allocs := range r.allocations {
		state.Allocations[agent] = append([]contract.TaskAllocation{}, allocs...)
	}
	for _, completion := range r.completions {
		copied := *completion
		state.Completions = append(state.Completions, &copied)
	}
	for name, c := range r.contracts {
		copied := *c
		state.Contracts[name] = &copied
	}
	for key, edge := range r.edges {
		copied := *edge
		copied.RelationTypes = append([]string{}, edge.RelationTypes...)
		state.Edges[key] = &copied
	}
	return state
}

// Restore replaces the registry state with a previously saved snapshot.
func (r *Registry) Restore(state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.architecture = make(map[string]string, len(state.Architecture))
	for agent, task := range state.Architecture {
		r.architecture[agent] = task
	}
	r.allocations = make(map[string][]contract.TaskAllocation, len(state.Allocations))
	for agent, allocs := range state.Allocations {
		r.allocations[agent] = append([]contract.TaskAllocation{}, allocs...)
	}
	r.completions = make([]*contract.Completion, 0, len(state.Completions))
	for _, completion := range state.Completions {
		copied := *completion
		r.completions = append(r.completions, &copied)
	}
	r.contracts = make(map[string]*contract.Contract, len(state.Contracts))
	for name, c := range state.Contracts {
		copied := *c
		r.contracts[name] = &copied
	}
	r.edges = make(map[string]*contract.DependencyEdge, len(state.Edges))
	for key, edge := range state.Edges {
		copied := *edge
		copied.RelationTypes = append([]string{}, edge.RelationTypes...)
		r.edges[key] = &copied
	}
	r.conflicts = append([]contract.Conflict{}, state.Conflicts...)
	r.router.RestoreLearned(state.Learned)
}
