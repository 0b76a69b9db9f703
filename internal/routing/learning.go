package routing

import "sort"

// LearnFromUsage records that an agent declared or consumed a contract. The
// learned tier routes on accumulated share, so repeated observations shift
// routing toward actual usage over time.
func (r *Router) LearnFromUsage(agentType, contractName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts, ok := r.learned[contractName]
	if !ok {
		counts = make(map[string]int)
		r.learned[contractName] = counts
	}
	counts[agentType]++
}

// LearnFromCompletions bulk-applies usage learning from completed work: every
// contract an agent declared counts as one usage observation for that agent.
func (r *Router) LearnFromCompletions(contractsByAgent map[string]map[string]string) {
	for agentType, contracts := range contractsByAgent {
		for name := range contracts {
			r.LearnFromUsage(agentType, name)
		}
	}
}

// ExportLearned freezes high-signal learned mappings into explicit form:
// contract name → agents whose usage share strictly exceeds the export
// threshold. Ties at the threshold export nothing for that contract.
func (r *Router) ExportLearned() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exported := make(map[string][]string)
	for name, counts := range r.learned {
		total := 0
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			continue
		}

		var agents []string
		for agent, count := range counts {
			if float64(count)/float64(total) > r.thresholds.ExportMin {
				agents = append(agents, agent)
			}
		}
		if len(agents) > 0 {
			sort.Strings(agents)
			exported[name] = agents
		}
	}
	return exported
}

// LearnedSnapshot returns a deep copy of the raw usage counters, suitable for
// persisting to the session store.
func (r *Router) LearnedSnapshot() map[string]map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]map[string]int, len(r.learned))
	for name, counts := range r.learned {
		inner := make(map[string]int, len(counts))
		for agent, count := range counts {
			inner[agent] = count
		}
		snapshot[name] = inner
	}
	return snapshot
}

// RestoreLearned replaces the usage counters with a previously persisted
// snapshot.
func (r *Router) RestoreLearned(snapshot map[string]map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.learned = make(map[string]map[string]int, len(snapshot))
	for name, counts := range snapshot {
		inner := make(map[string]int, len(counts))
		for agent, count := range counts {
			inner[agent] = count
		}
		r.learned[name] = inner
	}
}
