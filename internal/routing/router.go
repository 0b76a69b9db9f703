// Package routing implements interface-level contract routing: deciding which
// agents need to see which contracts, at what confidence, and why.
//
// Resolution runs tiers in a fixed order and the first hit wins: explicit
// mappings, learned usage statistics, name-pattern rules, content keyword
// classification, then transitive inheritance over the static agent dependency
// graph. Contracts that no tier claims are reported as unmatched rather than
// broadcast.
package routing

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Decision sources. Inherited routes use "inherited_from_<agent>" instead.
const (
	SourceExplicit  = "explicit"
	SourceLearned   = "learned"
	SourcePattern   = "pattern"
	SourceContent   = "content"
	SourceUnmatched = "unmatched"
)

// Decision is the outcome of one contract/agent routing query.
type Decision struct {
	Route      bool    // whether the agent should receive the contract
	Confidence float64 // 0 when not routed
	Source     string  // which tier decided, or SourceUnmatched
}

// InheritedSource builds the decision source for a route inherited from a
// dependency agent.
func InheritedSource(agentType string) string {
	return fmt.Sprintf("inherited_from_%s", agentType)
}

// Options configures a Router. Zero-value fields fall back to sane defaults:
// nil Rules means the built-in pattern table, zero Thresholds means
// DefaultThresholds.
type Options struct {
	Rules      []Rule              // pattern rules in priority order
	Explicit   map[string][]string // contract name → agents, confidence 1.0
	Shared     []string            // contract names visible to every agent
	Graph      map[string][]string // static agent depends-on graph, acyclic
	Keywords   map[string][]string // agent → content-classification keywords
	AgentTypes []string            // full roster, used by reports
	Fallback   string              // suggestion of last resort for unmapped contracts
	Thresholds Thresholds
}

// Router decides contract visibility per agent. Safe for concurrent use; the
// learned statistics are the only mutable state.
type Router struct {
	mu         sync.RWMutex
	rules      []Rule
	explicit   map[string][]string
	shared     map[string]bool
	graph      map[string][]string
	keywords   map[string][]*regexp.Regexp
	agentTypes []string
	fallback   string
	thresholds Thresholds

	// learned maps contract name → agent → usage count.
	learned map[string]map[string]int
}

// New builds a Router from options.
func New(opts Options) *Router {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	thresholds := opts.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	shared := make(map[string]bool, len(opts.Shared))
	for _, name := range opts.Shared {
		shared[name] = true
	}

	explicit := make(map[string][]string, len(opts.Explicit))
	for name, agents := range opts.Explicit {
		explicit[name] = append([]string{}, agents...)
	}

	keywords := make(map[string][]*regexp.Regexp, len(opts.Keywords))
	for agent, words := range opts.Keywords {
		res := make([]*regexp.Regexp, 0, len(words))
		for _, word := range words {
			// Word-boundary match so "ui" doesn't fire inside "build".
			res = append(res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
		}
		keywords[agent] = res
	}

	agentTypes := append([]string{}, opts.AgentTypes...)
	sort.Strings(agentTypes)

	return &Router{
		rules:      rules,
		explicit:   explicit,
		shared:     shared,
		graph:      opts.Graph,
		keywords:   keywords,
		agentTypes: agentTypes,
		fallback:   opts.Fallback,
		thresholds: thresholds,
		learned:    make(map[string]map[string]int),
	}
}

// Thresholds returns the router's configured thresholds.
func (r *Router) Thresholds() Thresholds {
	return r.thresholds
}

// AgentTypes returns the configured roster in sorted order.
func (r *Router) AgentTypes() []string {
	return append([]string{}, r.agentTypes...)
}

// IsShared reports whether a contract is globally visible.
func (r *Router) IsShared(contractName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shared[contractName]
}

// AddShared marks a contract as globally visible.
func (r *Router) AddShared(contractName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shared[contractName] = true
}

// AddExplicitMapping pins a contract to a fixed agent set at confidence 1.0.
// It replaces any previous mapping for the name.
func (r *Router) AddExplicitMapping(contractName string, agents []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explicit[contractName] = append([]string{}, agents...)
}

// ShouldRoute decides whether agentType should receive the named contract.
// The definition is only consulted by the content tier.
func (r *Router) ShouldRoute(contractName, definition, agentType string) Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(contractName, definition, agentType, map[string]bool{agentType: true})
}

// resolve runs the tiers in order under the read lock. The visited set guards
// the inheritance recursion; the static graph is validated acyclic at load
// time, so the guard only matters for diamond shapes.
func (r *Router) resolve(contractName, definition, agentType string, visited map[string]bool) Decision {
	// Tier 1: explicit mappings always win at full confidence.
	if agents, ok := r.explicit[contractName]; ok {
		for _, a := range agents {
			if a == agentType {
				return Decision{Route: true, Confidence: 1.0, Source: SourceExplicit}
			}
		}
	}

	// Tier 2: learned usage statistics. The agent routes when its share of
	// observed usage exceeds the threshold; confidence is the share itself.
	if counts, ok := r.learned[contractName]; ok {
		if count, used := counts[agentType]; used {
			total := 0
			for _, c := range counts {
				total += c
			}
			if total > 0 {
				share := float64(count) / float64(total)
				if share > r.thresholds.LearnedMin {
					return Decision{Route: true, Confidence: share, Source: SourceLearned}
				}
			}
		}
	}

	// Tier 3: name patterns. First matching rule that targets this agent wins;
	// matching rules aimed at other agents do not stop the scan.
	for _, rule := range r.rules {
		if rule.Matches(contractName) && rule.Targets(agentType) {
			return Decision{Route: true, Confidence: rule.Confidence, Source: SourcePattern}
		}
	}

	// Tier 4: content classification over the definition body.
	if conf := r.contentConfidence(definition, agentType); conf > r.thresholds.ContentMin {
		return Decision{Route: true, Confidence: conf, Source: SourceContent}
	}

	// Tier 5: inherit from dependency agents at reduced confidence.
	for _, dep := range r.graph[agentType] {
		if visited[dep] {
			continue
		}
		visited[dep] = true
		if d := r.resolve(contractName, definition, dep, visited); d.Route {
			return Decision{
				Route:      true,
				Confidence: d.Confidence * r.thresholds.InheritFactor,
				Source:     InheritedSource(dep),
			}
		}
	}

	return Decision{Source: SourceUnmatched}
}

// contentConfidence counts keyword hits in the definition for the agent and
// scales them to [0,1], saturating at the configured cap.
func (r *Router) contentConfidence(definition, agentType string) float64 {
	res := r.keywords[agentType]
	if definition == "" || len(res) == 0 {
		return 0
	}

	matches := 0
	for _, re := range res {
		if re.MatchString(definition) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}

	conf := float64(matches) / float64(r.thresholds.ContentCap)
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// ContractsForAgent filters the full contract map down to what one agent
// should see. Every name goes through tier resolution first; being in the
// shared set only adds contracts that did not route on their own, and only
// when includeShared is set. Pass a negative minConfidence to use the
// configured default.
func (r *Router) ContractsForAgent(agentType string, all map[string]string, includeShared bool, minConfidence float64) map[string]string {
	if minConfidence < 0 {
		minConfidence = r.thresholds.MinConfidence
	}

	routed := make(map[string]string)
	for name, definition := range all {
		if d := r.ShouldRoute(name, definition, agentType); d.Route && d.Confidence >= minConfidence {
			routed[name] = definition
			continue
		}
		if includeShared && r.IsShared(name) {
			routed[name] = definition
		}
	}
	return routed
}
