package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Contract represents a named structural type definition published by an agent.
// The name is the stable identity key; the definition is an opaque structured
// type description (fields, optional markers, nested braces) that is compared
// structurally, never textually.
type Contract struct {
	Name       string `json:"name"`        // Identity key, unique per session
	Definition string `json:"definition"`  // Structural type description
	OwnedBy    string `json:"owned_by"`    // Agent role that published this definition
}

// Validate checks if the Contract has valid field values.
func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract name cannot be empty")
	}
	if c.Definition == "" {
		return fmt.Errorf("contract %q: definition cannot be empty", c.Name)
	}
	return nil
}

// DependencyRef is the tagged-union input shape for a dependency declaration.
// Agents declare dependencies either as a structured record {from, to, type}
// or as a free-form string: "A → B" (already directional, "->" accepted) or a
// bare target name meaning "declaring agent → target".
type DependencyRef struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Relation string `json:"type,omitempty"`
	Raw      string `json:"-"` // set when the input was a free-form string
}

// UnmarshalJSON accepts both the structured record form and the string form.
func (r *DependencyRef) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*r = DependencyRef{Raw: raw}
		return nil
	}

	type structured DependencyRef
	var s structured
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dependency must be a string or a {from,to,type} record: %w", err)
	}
	*r = DependencyRef(s)
	return nil
}

// MarshalJSON emits the string form when the ref was free-form, otherwise the
// structured record.
func (r DependencyRef) MarshalJSON() ([]byte, error) {
	if r.Raw != "" {
		return json.Marshal(r.Raw)
	}
	type structured DependencyRef
	return json.Marshal(structured(r))
}

// relationDefault is the relation type assumed when a declaration omits one.
const relationDefault = "depends_on"

// edgeArrow joins the two endpoints of a dependency edge key.
const edgeArrow = " → "

// Normalize resolves the tagged union into a canonical (source, target,
// relation) triple. defaultSource is the declaring agent, used when the input
// names only a target. Returns ok=false for declarations that resolve to an
// empty target.
func (r DependencyRef) Normalize(defaultSource string) (source, target, relation string, ok bool) {
	if r.Raw != "" {
		key := strings.ReplaceAll(r.Raw, "->", "→")
		if strings.Contains(key, "→") {
			parts := strings.SplitN(key, "→", 2)
			source = strings.TrimSpace(parts[0])
			target = strings.TrimSpace(parts[1])
		} else {
			source = defaultSource
			target = strings.TrimSpace(r.Raw)
		}
		relation = relationDefault
	} else {
		source = r.From
		if source == "" {
			source = defaultSource
		}
		target = r.To
		relation = r.Relation
		if relation == "" {
			relation = relationDefault
		}
	}

	if target == "" {
		return "", "", "", false
	}
	return source, target, relation, true
}

// EdgeKey returns the canonical directional key for a dependency edge.
// Keys are directional: "A → B" and "B → A" are distinct edges.
func EdgeKey(source, target string) string {
	return source + edgeArrow + target
}

// ParseEdgeKey splits a canonical edge key back into its endpoints.
func ParseEdgeKey(key string) (source, target string, ok bool) {
	if !strings.Contains(key, "→") {
		return "", "", false
	}
	parts := strings.SplitN(key, "→", 2)
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// DependencyEdge is the canonical accumulated form of a dependency between
// two agent roles. Relation types are unioned across all registrations and
// never removed within a session.
type DependencyEdge struct {
	Source        string   `json:"source"`
	Target        string   `json:"target"`
	RelationTypes []string `json:"relation_types"`
}

// Key returns the directional map key for this edge.
func (e *DependencyEdge) Key() string {
	return EdgeKey(e.Source, e.Target)
}

// HasRelation reports whether the edge already carries the given relation type.
func (e *DependencyEdge) HasRelation(relation string) bool {
	for _, r := range e.RelationTypes {
		if r == relation {
			return true
		}
	}
	return false
}

// TaskContext is the minimal context an agent supplies when registering work.
// Only dependencies, contracts, and critical notes cross the boundary - never
// implementation details.
type TaskContext struct {
	Dependencies     []DependencyRef   `json:"dependencies,omitempty"`
	Contracts        map[string]string `json:"contracts,omitempty"`
	CriticalNotes    []string          `json:"critical_notes,omitempty"`
	TestRequirements []string          `json:"test_requirements,omitempty"`
}

// TaskAllocation records one registered unit of work for an agent.
// Allocations are immutable once created and appended to an ordered per-agent
// list owned exclusively by the registry.
type TaskAllocation struct {
	AgentType        string            `json:"agent_type"`
	TaskName         string            `json:"task_name"`
	Dependencies     []DependencyRef   `json:"dependencies"`
	Contracts        map[string]string `json:"contracts"`
	CriticalNotes    []string          `json:"critical_notes"`
	TestRequirements []string          `json:"test_requirements"`
	TokenBudget      int               `json:"token_budget"`
}

// Completion records finished work reported by an agent. Its contracts are
// merged into the session-wide contract map (last writer wins in the map; the
// conflict detector surfaces whether that overwrite was safe).
type Completion struct {
	TaskName    string            `json:"task_name"`
	Agent       string            `json:"agent"`
	Contracts   map[string]string `json:"contracts"`
	Exports     []string          `json:"exports"`
	Tests       []string          `json:"tests"`
	CreatedAtMs int64             `json:"created_at_ms"` // Unix timestamp in milliseconds
}

// ContextEdge is a dependency edge as seen from one agent's perspective,
// tagged with the direction relative to that agent.
type ContextEdge struct {
	Key       string   `json:"key"`
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Types     []string `json:"types"`
	Direction string   `json:"direction"` // "upstream" when the agent is the target, else "downstream"
}

// AgentContext is the only read surface an agent sees: its own allocations,
// the contracts routed to it, and the edges it participates in. It never
// carries other agents' raw task lists.
type AgentContext struct {
	Architecture map[string]string `json:"architecture"`
	Tasks        []TaskAllocation  `json:"tasks"`
	Contracts    map[string]string `json:"contracts"`
	Dependencies []ContextEdge     `json:"dependencies"`
}

// TokenUsage is a per-agent budget snapshot, recomputed on demand rather than
// stored cumulatively. Remaining may be negative (over budget) - it is never
// clamped, since callers need the overrun magnitude.
type TokenUsage struct {
	EstimatedTokens int            `json:"estimated_tokens"`
	Budget          int            `json:"budget"`
	Remaining       int            `json:"remaining"`
	Percentage      float64        `json:"percentage"`
	Breakdown       map[string]int `json:"breakdown"`
}

// Severity classifies how serious a detected defect is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Validate checks if the Severity is a valid enum value.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("unknown severity: %q", s)
	}
}

// Rank returns an ordering value for severity comparison (higher = worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ConflictKind identifies the class of a detected structural defect.
type ConflictKind string

const (
	// ConflictInterfaceMismatch - same contract name, structurally different definitions
	ConflictInterfaceMismatch ConflictKind = "interface_mismatch"

	// ConflictCircularDependency - cycle in the dependency graph (agents or artifacts)
	ConflictCircularDependency ConflictKind = "circular_dependency"

	// ConflictMissingSource - dependency edge source is not a known agent
	ConflictMissingSource ConflictKind = "missing_dependency_source"

	// ConflictMissingTarget - dependency edge target is not a known agent
	ConflictMissingTarget ConflictKind = "missing_dependency_target"

	// ConflictUnresolvedImport - artifact imports a path that resolves to nothing
	ConflictUnresolvedImport ConflictKind = "unresolved_import"

	// ConflictUndefinedProperty - artifact accesses a shared-state field not in the contract
	ConflictUndefinedProperty ConflictKind = "undefined_property"

	// ConflictUndefinedParameter - component used with a parameter not in its contract
	ConflictUndefinedParameter ConflictKind = "undefined_parameter"

	// ConflictNonFunctionalUpdate - shared state replaced with a literal value
	ConflictNonFunctionalUpdate ConflictKind = "non_functional_update"

	// ConflictConcurrentMutation - shared state mutated from more than one agent
	ConflictConcurrentMutation ConflictKind = "concurrent_mutation"

	// ConflictMissingTest - source artifact has no sibling test file
	ConflictMissingTest ConflictKind = "missing_test"

	// ConflictArtifactUnreadable - artifact could not be read during validation
	ConflictArtifactUnreadable ConflictKind = "artifact_unreadable"
)

// Conflict represents one detected structural defect in shared state.
// Conflicts are immutable values: a validation pass produces a list that
// replaces the session's stored conflicts wholesale.
type Conflict struct {
	ID       string       `json:"id"` // UUID assigned at creation
	Kind     ConflictKind `json:"kind"`
	Severity Severity     `json:"severity"`

	// Kind-specific payload fields.
	Contract    string   `json:"contract,omitempty"`    // interface_mismatch, undefined_property/parameter
	Agents      []string `json:"agents,omitempty"`      // owners involved, in detection order
	Definitions []string `json:"definitions,omitempty"` // raw definitions, aligned with Agents
	Cycle       []string `json:"cycle,omitempty"`       // cycle path including the closing node
	Source      string   `json:"source,omitempty"`      // missing_dependency_source
	Target      string   `json:"target,omitempty"`      // missing_dependency_target
	File        string   `json:"file,omitempty"`        // artifact-scoped conflicts
	Property    string   `json:"property,omitempty"`    // offending field/parameter/import path

	Message string `json:"message"`
}

// NewConflict creates a conflict with a fresh ID.
func NewConflict(kind ConflictKind, severity Severity, message string) Conflict {
	return Conflict{
		ID:       uuid.New().String(),
		Kind:     kind,
		Severity: severity,
		Message:  message,
	}
}

// Validate checks if the Conflict has valid field values.
func (c *Conflict) Validate() error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return fmt.Errorf("invalid conflict ID: not a valid UUID")
	}
	if c.Kind == "" {
		return fmt.Errorf("conflict kind cannot be empty")
	}
	if err := c.Severity.Validate(); err != nil {
		return fmt.Errorf("invalid severity: %w", err)
	}
	if c.Message == "" {
		return fmt.Errorf("conflict message cannot be empty")
	}
	return nil
}

// WarningKind identifies the class of a non-blocking routing finding.
type WarningKind string

const (
	// WarningUnmapped - no resolution tier routed the contract to any agent
	WarningUnmapped WarningKind = "unmapped_interface"

	// WarningLowConfidence - the best routing match fell below the confidence line
	WarningLowConfidence WarningKind = "low_confidence_routing"
)

// Warning is a non-blocking routing finding. Warnings never fail a pass.
type Warning struct {
	Kind        WarningKind `json:"kind"`
	Severity    Severity    `json:"severity"`
	Contract    string      `json:"contract"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions,omitempty"` // suggested target agents
	RoutedTo    []string    `json:"routed_to,omitempty"`   // "agent (confidence via source)" entries
	Action      string      `json:"action,omitempty"`      // suggested remediation
}

// Status is the outcome an agent reports for a task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusBlocked Status = "blocked"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusSuccess, StatusError, StatusBlocked:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// AgentOutput is the payload an external agent producer submits when a task
// finishes. Field names follow the wire format of the producer side.
type AgentOutput struct {
	TaskID        string            `json:"taskId"`
	AgentType     string            `json:"agentType"`
	Status        Status            `json:"status"`
	FilesModified []string          `json:"filesModified"`
	FilesCreated  []string          `json:"filesCreated"`
	Contracts     map[string]string `json:"contracts"`
	Exports       []string          `json:"exports"`
	Tests         []string          `json:"tests"`
	TokenUsage    int               `json:"tokenUsage"`
	ExecutionTime float64           `json:"executionTime"` // seconds
	Warnings      []string          `json:"warnings,omitempty"`
	Errors        []string          `json:"errors,omitempty"`   // required when status=error
	Blockers      []string          `json:"blockers,omitempty"` // required when status=blocked
}

// Validate checks the structural constraints on an agent output payload.
// Validation failures are rejected synchronously, before any state mutation.
func (o *AgentOutput) Validate() error {
	if o.AgentType == "" {
		return fmt.Errorf("agentType is required and cannot be empty")
	}
	if err := o.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	if o.Status == StatusError && len(o.Errors) == 0 {
		return fmt.Errorf("status %q requires an errors field", StatusError)
	}
	if o.Status == StatusBlocked && len(o.Blockers) == 0 {
		return fmt.Errorf("status %q requires a blockers field", StatusBlocked)
	}
	return nil
}

// ChangedFiles returns the union of modified and created file paths,
// preserving declaration order.
func (o *AgentOutput) ChangedFiles() []string {
	files := make([]string, 0, len(o.FilesModified)+len(o.FilesCreated))
	files = append(files, o.FilesModified...)
	files = append(files, o.FilesCreated...)
	return files
}
