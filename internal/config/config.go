package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/concordhq/concord/pkg/contract"
	"gopkg.in/yaml.v3"
)

// DefaultTokenBudget is applied to agents that don't specify one.
const DefaultTokenBudget = 1500

// DefaultCoordinator is the distinguished role allowed as a dependency
// endpoint without being a registered agent.
const DefaultCoordinator = "orchestrator"

// Config represents the top-level concord.yml configuration.
type Config struct {
	Version     string                 `yaml:"version"`
	Session     string                 `yaml:"session"`
	Coordinator string                 `yaml:"coordinator,omitempty"` // defaults to "orchestrator"
	Agents      map[string]AgentConfig `yaml:"agents"`
	Routing     *RoutingConfig         `yaml:"routing,omitempty"`
	Validator   *ValidatorConfig       `yaml:"validator,omitempty"`
	Redis       *RedisConfig           `yaml:"redis,omitempty"`
}

// AgentConfig represents a single agent role configuration.
type AgentConfig struct {
	TokenBudget int      `yaml:"token_budget,omitempty"` // defaults to DefaultTokenBudget
	DependsOn   []string `yaml:"depends_on,omitempty"`   // static dependency graph, must be acyclic
	Keywords    []string `yaml:"keywords,omitempty"`     // content-classification keywords
}

// RoutingConfig carries routing overrides and thresholds.
type RoutingConfig struct {
	Shared        []string            `yaml:"shared,omitempty"`         // contracts visible to every agent
	Explicit      map[string][]string `yaml:"explicit,omitempty"`       // contract name → target agents
	FallbackAgent string              `yaml:"fallback_agent,omitempty"` // suggestion of last resort for unmapped contracts
	Rules         []RuleConfig        `yaml:"rules,omitempty"`          // extra pattern rules, tried before the built-ins
	Thresholds    *ThresholdsConfig   `yaml:"thresholds,omitempty"`
}

// RuleConfig is one user-supplied pattern routing rule.
type RuleConfig struct {
	Pattern    string   `yaml:"pattern"`
	Agents     []string `yaml:"agents"`
	Confidence float64  `yaml:"confidence"`
}

// ThresholdsConfig overrides the routing engine's empirical constants.
// Nil fields keep the defaults. The values have no stated derivation in the
// reference material; they are carried as configuration, not re-derived.
type ThresholdsConfig struct {
	LearnedMin    *float64 `yaml:"learned_min,omitempty"`    // minimum usage share for the learned tier (default 0.3)
	ContentCap    *int     `yaml:"content_cap,omitempty"`    // keyword matches for full content confidence (default 3)
	ContentMin    *float64 `yaml:"content_min,omitempty"`    // minimum content confidence to route (default 0.5)
	InheritFactor *float64 `yaml:"inherit_factor,omitempty"` // confidence multiplier per inheritance hop (default 0.7)
	ExportMin     *float64 `yaml:"export_min,omitempty"`     // usage share required to freeze a learned mapping (default 0.5)
	LowConfidence *float64 `yaml:"low_confidence,omitempty"` // warning line for best-match confidence (default 0.7)
	MinConfidence *float64 `yaml:"min_confidence,omitempty"` // default context filter threshold (default 0.5)
}

// CoverageRule maps an artifact path category to a missing-test severity.
type CoverageRule struct {
	PathContains string `yaml:"path_contains"`
	Severity     string `yaml:"severity"`
}

// ValidatorConfig carries cross-artifact validation settings.
type ValidatorConfig struct {
	Extensions  []string       `yaml:"extensions,omitempty"`   // resolvable source extensions, e.g. [".ts", ".tsx"]
	AliasPrefix string         `yaml:"alias_prefix,omitempty"` // import path alias, e.g. "@/"
	AliasTarget string         `yaml:"alias_target,omitempty"` // root substitution for the alias, e.g. "src/"
	Coverage    []CoverageRule `yaml:"coverage,omitempty"`     // path category → missing-test severity
}

// RedisConfig carries connection settings for the session store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Default returns the built-in configuration: the reference agent roster with
// its token budgets, static dependency graph, and content keywords.
func Default() *Config {
	return &Config{
		Version:     "1.0",
		Session:     "default",
		Coordinator: DefaultCoordinator,
		Agents: map[string]AgentConfig{
			"frontend": {
				TokenBudget: 2000,
				DependsOn:   []string{"state", "physics"},
				Keywords:    []string{"component", "jsx", "react", "render", "ui", "layout", "panel", "button", "icon"},
			},
			"physics": {
				TokenBudget: 2000,
				DependsOn:   []string{"state"},
				Keywords:    []string{"rapier", "rigid", "body", "collision", "force", "velocity", "impulse"},
			},
			"state": {
				TokenBudget: 1500,
				Keywords:    []string{"zustand", "store", "state", "action", "reducer", "selector"},
			},
			"testing": {
				TokenBudget: 1500,
				DependsOn:   []string{"frontend", "state", "physics"},
				Keywords:    []string{"test", "mock", "fixture", "stub", "spy"},
			},
			"config": {
				TokenBudget: 1000,
				Keywords:    []string{"config", "settings", "options", "params"},
			},
			"performance": {
				TokenBudget: 2000,
				DependsOn:   []string{"frontend", "state", "physics"},
				Keywords:    []string{"performance", "optimization", "memo", "cache", "fps"},
			},
		},
		Routing: &RoutingConfig{
			FallbackAgent: "state",
		},
	}
}

// AgentTypes returns the configured agent roles in sorted order.
func (c *Config) AgentTypes() []string {
	types := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// TokenBudget returns the budget for an agent, applying the default for
// unknown or unconfigured agents.
func (c *Config) TokenBudget(agentType string) int {
	if agent, ok := c.Agents[agentType]; ok && agent.TokenBudget > 0 {
		return agent.TokenBudget
	}
	return DefaultTokenBudget
}

// DependencyGraph returns the static depends-on graph used for transitive
// routing inheritance. This is configuration, distinct from the dynamic
// dependency edges agents register at runtime.
func (c *Config) DependencyGraph() map[string][]string {
	graph := make(map[string][]string, len(c.Agents))
	for name, agent := range c.Agents {
		graph[name] = agent.DependsOn
	}
	return graph
}

// ContentKeywords returns each agent's content-classification keyword list.
func (c *Config) ContentKeywords() map[string][]string {
	keywords := make(map[string][]string, len(c.Agents))
	for name, agent := range c.Agents {
		if len(agent.Keywords) > 0 {
			keywords[name] = agent.Keywords
		}
	}
	return keywords
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Session == "" {
		return fmt.Errorf("session name is required")
	}

	// Required: at least one agent
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	if c.Coordinator == "" {
		c.Coordinator = DefaultCoordinator
	}

	// Validate each agent
	for name, agent := range c.Agents {
		if agent.TokenBudget < 0 {
			return fmt.Errorf("agent '%s': token_budget must be >= 0, got %d", name, agent.TokenBudget)
		}
		for _, dep := range agent.DependsOn {
			if _, ok := c.Agents[dep]; !ok && dep != c.Coordinator {
				return fmt.Errorf("agent '%s': depends_on references unknown agent '%s'", name, dep)
			}
		}
	}

	// The static depends-on graph drives recursive inheritance; a cycle here
	// is a configuration error, not a runtime conflict.
	if cycle := findStaticCycle(c.DependencyGraph()); len(cycle) > 0 {
		return fmt.Errorf("agent depends_on graph contains a cycle: %v", cycle)
	}

	if c.Routing != nil {
		if err := c.Routing.validate(c); err != nil {
			return err
		}
	}

	if c.Validator != nil {
		for _, rule := range c.Validator.Coverage {
			if err := contract.Severity(rule.Severity).Validate(); err != nil {
				return fmt.Errorf("validator coverage rule '%s': %w", rule.PathContains, err)
			}
		}
	}

	return nil
}

func (r *RoutingConfig) validate(c *Config) error {
	if r.FallbackAgent != "" {
		if _, ok := c.Agents[r.FallbackAgent]; !ok {
			return fmt.Errorf("routing fallback_agent '%s' is not a configured agent", r.FallbackAgent)
		}
	}

	for name, targets := range r.Explicit {
		if len(targets) == 0 {
			return fmt.Errorf("explicit mapping for '%s' has no target agents", name)
		}
		for _, target := range targets {
			if _, ok := c.Agents[target]; !ok {
				return fmt.Errorf("explicit mapping for '%s' targets unknown agent '%s'", name, target)
			}
		}
	}

	for i, rule := range r.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("routing rule %d: pattern is required", i)
		}
		if len(rule.Agents) == 0 {
			return fmt.Errorf("routing rule %d: at least one target agent is required", i)
		}
		if rule.Confidence <= 0 || rule.Confidence > 1 {
			return fmt.Errorf("routing rule %d: confidence must be in (0,1], got %v", i, rule.Confidence)
		}
	}

	if r.Thresholds != nil {
		for name, v := range map[string]*float64{
			"learned_min":    r.Thresholds.LearnedMin,
			"content_min":    r.Thresholds.ContentMin,
			"inherit_factor": r.Thresholds.InheritFactor,
			"export_min":     r.Thresholds.ExportMin,
			"low_confidence": r.Thresholds.LowConfidence,
			"min_confidence": r.Thresholds.MinConfidence,
		} {
			if v != nil && (*v < 0 || *v > 1) {
				return fmt.Errorf("routing threshold %s must be in [0,1], got %v", name, *v)
			}
		}
		if r.Thresholds.ContentCap != nil && *r.Thresholds.ContentCap < 1 {
			return fmt.Errorf("routing threshold content_cap must be >= 1, got %d", *r.Thresholds.ContentCap)
		}
	}

	return nil
}

// findStaticCycle runs a three-color DFS over the depends-on graph and
// returns the first cycle found, or nil.
func findStaticCycle(graph map[string][]string) []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(graph))

	var path []string
	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = grey
		path = append(path, node)

		for _, dep := range graph[node] {
			switch color[dep] {
			case grey:
				for i, n := range path {
					if n == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
			case white:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}

		color[node] = black
		path = path[:len(path)-1]
		return nil
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if color[node] == white {
			path = path[:0]
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Load reads and validates concord.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
