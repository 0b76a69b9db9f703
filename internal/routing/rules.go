package routing

import (
	"fmt"
	"regexp"
)

// Rule origin values. Manual rules come from configuration, pattern rules are
// the built-in name heuristics, learned rules are frozen usage statistics.
const (
	OriginManual  = "manual"
	OriginPattern = "pattern"
	OriginLearned = "learned"
)

// Rule auto-classifies contracts to agents by name pattern.
type Rule struct {
	Pattern    *regexp.Regexp // matched case-insensitively against contract names
	Agents     []string       // target agents
	Confidence float64        // fixed confidence in (0,1]
	Origin     string         // OriginManual, OriginPattern, or OriginLearned
}

// NewRule compiles a case-insensitive name rule.
func NewRule(pattern string, agents []string, confidence float64, origin string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid routing pattern %q: %w", pattern, err)
	}
	return Rule{Pattern: re, Agents: agents, Confidence: confidence, Origin: origin}, nil
}

// Matches reports whether the contract name matches this rule.
func (r Rule) Matches(contractName string) bool {
	return r.Pattern.MatchString(contractName)
}

// Targets reports whether the rule routes to the given agent.
func (r Rule) Targets(agentType string) bool {
	for _, a := range r.Agents {
		if a == agentType {
			return true
		}
	}
	return false
}

// mustRule is used for the built-in table, whose patterns are constants.
func mustRule(pattern string, agents []string, confidence float64) Rule {
	rule, err := NewRule(pattern, agents, confidence, OriginPattern)
	if err != nil {
		panic(err)
	}
	return rule
}

// DefaultRules returns the built-in pattern table, in priority order.
// The first matching rule whose target set contains the asking agent wins.
func DefaultRules() []Rule {
	return []Rule{
		// Component parameter shapes → UI consumer
		mustRule(`Props$`, []string{"frontend"}, 1.0),

		// Stores → state owner plus its primary consumer
		mustRule(`Store$`, []string{"state", "frontend"}, 0.9),
		mustRule(`State$`, []string{"state"}, 0.9),

		// Physics-domain keywords embedded in the name
		mustRule(`(Collision|Force|Velocity|Impulse|RigidBody)`, []string{"physics"}, 0.95),

		// Configuration shapes
		mustRule(`Config$`, []string{"config"}, 0.9),

		// Test utilities
		mustRule(`(Mock|Test|Fixture)`, []string{"testing"}, 0.95),

		// Performance instrumentation
		mustRule(`(Performance|Optimization|Metrics)`, []string{"performance"}, 0.9),

		// UI component names
		mustRule(`(Panel|Toolbar|Nav|Icon|Button|Modal|Dialog)`, []string{"frontend"}, 0.85),

		// Handlers lean UI-ward but weakly
		mustRule(`Handler$`, []string{"frontend"}, 0.7),

		// Events: physics contact events before the generic suffix
		mustRule(`(Collision|Contact)Event`, []string{"physics", "frontend"}, 0.85),
		mustRule(`Event$`, []string{"frontend"}, 0.6),

		// Assets live in state, consumed by UI
		mustRule(`Asset$`, []string{"state", "frontend"}, 0.8),
	}
}

// Thresholds are the routing engine's empirically chosen constants. They are
// configuration, not derived values.
type Thresholds struct {
	LearnedMin    float64 // minimum usage share for the learned tier
	ContentCap    int     // keyword matches for full content confidence
	ContentMin    float64 // minimum content confidence to route
	InheritFactor float64 // confidence multiplier per inheritance hop
	ExportMin     float64 // usage share required to freeze a learned mapping
	LowConfidence float64 // warning line for best-match confidence
	MinConfidence float64 // default filter threshold for agent contexts
}

// DefaultThresholds returns the reference values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LearnedMin:    0.3,
		ContentCap:    3,
		ContentMin:    0.5,
		InheritFactor: 0.7,
		ExportMin:     0.5,
		LowConfidence: 0.7,
		MinConfidence: 0.5,
	}
}
