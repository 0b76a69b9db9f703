// Package comms implements the structured handoff protocol between the
// coordinator and agents. Handoffs are the only way work crosses an agent
// boundary; the ceilings here exist to keep each handoff within a predictable
// token envelope.
package comms

import (
	"fmt"
	"log"
	"strings"

	"github.com/concordhq/concord/internal/tokens"
	"github.com/concordhq/concord/pkg/contract"
)

// Handoff ceilings. Violations are collected and reported together rather
// than failing on the first one.
const (
	maxTaskNameLen        = 50
	maxDescriptionLen     = 200
	maxCriticalNotes      = 3
	maxCriticalNoteLen    = 100
	maxDependencies       = 5
	minTokenBudget        = 500
	maxTokenBudget        = 3000
	advisoryHandoffTokens = 500
)

// Priority levels for a handoff.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Handoff is a validated unit of work passed to an agent. Contract
// definitions are compressed at construction; everything else is carried
// verbatim.
type Handoff struct {
	TaskID           string            `json:"taskId"`
	FromAgent        string            `json:"fromAgent"`
	ToAgent          string            `json:"toAgent"`
	TaskName         string            `json:"taskName"`
	TaskDescription  string            `json:"taskDescription"`
	Contracts        map[string]string `json:"contracts"`
	Dependencies     []string          `json:"dependencies"`
	CriticalNotes    []string          `json:"criticalNotes"`
	TestRequirements []string          `json:"testRequirements"`
	TokenBudget      int               `json:"tokenBudget"`
	Priority         string            `json:"priority"`
}

// Spec carries the raw inputs for a handoff. Priority defaults to medium.
type Spec struct {
	TaskID           string
	FromAgent        string
	ToAgent          string
	TaskName         string
	TaskDescription  string
	Contracts        map[string]string
	Dependencies     []string
	CriticalNotes    []string
	TestRequirements []string
	TokenBudget      int
	Priority         string
}

// NewHandoff validates the spec against every ceiling at once and builds the
// handoff with compressed contract definitions. Oversized handoffs that still
// pass the hard ceilings get a logged advisory, not an error.
func NewHandoff(spec Spec, estimator tokens.Estimator) (*Handoff, error) {
	if spec.Priority == "" {
		spec.Priority = PriorityMedium
	}

	var violations []string
	if len(spec.TaskName) > maxTaskNameLen {
		violations = append(violations, fmt.Sprintf("task name too long (%d > %d chars)", len(spec.TaskName), maxTaskNameLen))
	}
	if len(spec.TaskDescription) > maxDescriptionLen {
		violations = append(violations, fmt.Sprintf("task description too long (%d > %d chars)", len(spec.TaskDescription), maxDescriptionLen))
	}
	if len(spec.CriticalNotes) > maxCriticalNotes {
		violations = append(violations, fmt.Sprintf("too many critical notes (%d > %d)", len(spec.CriticalNotes), maxCriticalNotes))
	}
	for _, note := range spec.CriticalNotes {
		if len(note) > maxCriticalNoteLen {
			violations = append(violations, fmt.Sprintf("critical note too long: %q", truncate(note, 50)))
		}
	}
	if len(spec.Dependencies) > maxDependencies {
		violations = append(violations, fmt.Sprintf("too many dependencies (%d > %d)", len(spec.Dependencies), maxDependencies))
	}
	if spec.TokenBudget < minTokenBudget || spec.TokenBudget > maxTokenBudget {
		violations = append(violations, fmt.Sprintf("token budget out of range (%d not in %d-%d)", spec.TokenBudget, minTokenBudget, maxTokenBudget))
	}
	switch spec.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		violations = append(violations, fmt.Sprintf("invalid priority: %q", spec.Priority))
	}

	if len(violations) > 0 {
		return nil, fmt.Errorf("handoff validation failed:\n  - %s", strings.Join(violations, "\n  - "))
	}

	compressed := make(map[string]string, len(spec.Contracts))
	for name, definition := range spec.Contracts {
		compressed[name] = contract.CompressDefinition(definition)
	}

	h := &Handoff{
		TaskID:           spec.TaskID,
		FromAgent:        spec.FromAgent,
		ToAgent:          spec.ToAgent,
		TaskName:         spec.TaskName,
		TaskDescription:  spec.TaskDescription,
		Contracts:        compressed,
		Dependencies:     spec.Dependencies,
		CriticalNotes:    spec.CriticalNotes,
		TestRequirements: spec.TestRequirements,
		TokenBudget:      spec.TokenBudget,
		Priority:         spec.Priority,
	}

	if estimator == nil {
		estimator = tokens.NewHeuristic()
	}
	if estimated := estimator.Estimate(h); estimated > advisoryHandoffTokens {
		log.Printf("[WARN] handoff '%s' estimated at %d tokens, above the recommended %d",
			h.TaskID, estimated, advisoryHandoffTokens)
	}

	return h, nil
}

// NewResponse builds an agent output for a completed handoff. Contract
// definitions are compressed the same way handoffs compress them, and the
// result is validated against the status rules (errors required for error
// status, blockers for blocked).
func NewResponse(taskID, agentType string, status contract.Status, out contract.AgentOutput) (*contract.AgentOutput, error) {
	response := out
	response.TaskID = taskID
	response.AgentType = agentType
	response.Status = status

	compressed := make(map[string]string, len(out.Contracts))
	for name, definition := range out.Contracts {
		compressed[name] = contract.CompressDefinition(definition)
	}
	response.Contracts = compressed

	if err := response.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent response: %w", err)
	}
	return &response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
