// Package contract provides type-safe Go definitions and Redis schema patterns
// for the Concord contract board.
//
// # Overview
//
// The contract board is the shared state that coordinates independent worker
// agents producing typed software artifacts toward one project. Agents never
// exchange implementation details - only named contracts (structural type
// definitions), task allocations, and dependency edges pass through the board.
//
// # Core Concepts
//
// Contracts are named structural type definitions shared between agents. The
// name is the identity key; multiple agents may own the same name, but their
// definitions must be structurally equivalent or the pair is a conflict.
//
// Dependency edges are directed "source relies on target" relationships
// between agent roles, keyed "source → target". Relation types accumulate
// across registrations and are never removed within a session.
//
// Conflicts are detected structural defects: mismatched definitions, circular
// dependencies, dangling edge endpoints, unresolved imports. They carry a
// severity (LOW, MEDIUM, HIGH, CRITICAL) and are appended, never mutated.
//
// # Multi-Session Support
//
// All Redis keys and Pub/Sub channels are namespaced by session name so that
// multiple coordination sessions can safely coexist on a single Redis server.
//
// # Redis Schema
//
// All Redis keys follow the pattern: concord:{session}:{entity}:{id}
//
// Contracts: concord:{session}:contract:{name}
// Completions: concord:{session}:completion:{task_name}
// Allocations: concord:{session}:tasks:{agent_type}
// Dependency edges: concord:{session}:edges
// Conflicts: concord:{session}:conflicts
//
// Pub/Sub channels: concord:{session}:conflict_events
//
// # Design Principles
//
// - Type Safety: all data structures have strong typing with validation methods
// - Accumulation: conflicts are reported in lists, never thrown as control flow
// - Isolation: session namespacing prevents cross-session interference
package contract
