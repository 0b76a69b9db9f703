package routing

import (
	"fmt"
	"sort"

	"github.com/concordhq/concord/pkg/contract"
)

// ReportRow is one contract/agent routing outcome for display. Formatting is
// left to callers.
type ReportRow struct {
	Contract   string  `json:"contract"`
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Shared     bool    `json:"shared,omitempty"`
}

// Report resolves every contract against the full roster and returns the
// routed rows, sorted by contract then descending confidence. Shared contracts
// appear once per agent at confidence 1.0.
func (r *Router) Report(all map[string]string) []ReportRow {
	var rows []ReportRow
	for name, definition := range all {
		if r.IsShared(name) {
			for _, agent := range r.agentTypes {
				rows = append(rows, ReportRow{Contract: name, Agent: agent, Confidence: 1.0, Source: "shared", Shared: true})
			}
			continue
		}
		for _, agent := range r.agentTypes {
			if d := r.ShouldRoute(name, definition, agent); d.Route {
				rows = append(rows, ReportRow{Contract: name, Agent: agent, Confidence: d.Confidence, Source: d.Source})
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Contract != rows[j].Contract {
			return rows[i].Contract < rows[j].Contract
		}
		if rows[i].Confidence != rows[j].Confidence {
			return rows[i].Confidence > rows[j].Confidence
		}
		return rows[i].Agent < rows[j].Agent
	})
	return rows
}

// ValidateRouting audits routing coverage over the full contract map. It
// returns one warning per unmapped contract (no tier routed it to anyone) and
// one per contract whose best match sits below the low-confidence line.
// Shared contracts are always covered and never warned about.
func (r *Router) ValidateRouting(all map[string]string) []contract.Warning {
	var warnings []contract.Warning

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.IsShared(name) {
			continue
		}
		definition := all[name]

		var routedTo []string
		best := 0.0
		for _, agent := range r.agentTypes {
			d := r.ShouldRoute(name, definition, agent)
			if !d.Route {
				continue
			}
			routedTo = append(routedTo, fmt.Sprintf("%s (%.2f via %s)", agent, d.Confidence, d.Source))
			if d.Confidence > best {
				best = d.Confidence
			}
		}

		if len(routedTo) == 0 {
			suggestions := r.Suggest(name, definition)
			warnings = append(warnings, contract.Warning{
				Kind:        contract.WarningUnmapped,
				Severity:    contract.SeverityMedium,
				Contract:    name,
				Message:     fmt.Sprintf("interface '%s' is not routed to any agent", name),
				Suggestions: suggestions,
				Action:      fmt.Sprintf("add explicit mapping: %s -> %v", name, suggestions),
			})
			continue
		}

		if best < r.thresholds.LowConfidence {
			warnings = append(warnings, contract.Warning{
				Kind:     contract.WarningLowConfidence,
				Severity: contract.SeverityLow,
				Contract: name,
				Message:  fmt.Sprintf("interface '%s' routes with low confidence (best %.2f)", name, best),
				RoutedTo: routedTo,
			})
		}
	}

	return warnings
}

// Suggest proposes target agents for a contract no tier claimed. It reapplies
// the name patterns without the confidence filter, then content keywords with
// any hit at all, then falls back to the configured agent of last resort.
func (r *Router) Suggest(contractName, definition string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var suggestions []string
	add := func(agent string) {
		if agent != "" && !seen[agent] {
			seen[agent] = true
			suggestions = append(suggestions, agent)
		}
	}

	for _, rule := range r.rules {
		if rule.Matches(contractName) {
			for _, agent := range rule.Agents {
				add(agent)
			}
		}
	}
	if len(suggestions) > 0 {
		return suggestions
	}

	agents := make([]string, 0, len(r.keywords))
	for agent := range r.keywords {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	for _, agent := range agents {
		for _, re := range r.keywords[agent] {
			if re.MatchString(definition) {
				add(agent)
				break
			}
		}
	}
	if len(suggestions) > 0 {
		return suggestions
	}

	add(r.fallback)
	return suggestions
}
