package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/concordhq/concord/pkg/contract"
)

var (
	// setStateRe captures the receiver of a store mutation call.
	setStateRe = regexp.MustCompile(`(\w+)\.setState\(`)

	// nonFunctionalRe matches setState called with a plain object instead of
	// an updater function. Such updates can clobber concurrent writes.
	nonFunctionalRe = regexp.MustCompile(`setState\(\s*\{[^}]+\}\s*\)`)
)

// checkMutationHazards scans the changed files for two non-blocking hazards:
// setState with a plain object (MEDIUM, per file) and the same store mutated
// from files owned by different agents (HIGH, per store).
func checkMutationHazards(artifacts []artifact) []contract.Conflict {
	var warnings []contract.Conflict

	type modifier struct {
		agent string
		file  string
	}
	modifiers := make(map[string][]modifier)

	flaggedNonFunctional := make(map[string]bool)
	for _, a := range artifacts {
		if !hasSuffixAny(a.relPath, ".ts", ".tsx") {
			continue
		}

		for _, m := range setStateRe.FindAllStringSubmatch(a.content, -1) {
			modifiers[m[1]] = append(modifiers[m[1]], modifier{agent: a.agent, file: a.relPath})
		}

		if !flaggedNonFunctional[a.relPath] && nonFunctionalRe.MatchString(a.content) {
			flaggedNonFunctional[a.relPath] = true
			c := contract.NewConflict(
				contract.ConflictNonFunctionalUpdate,
				contract.SeverityMedium,
				fmt.Sprintf("non-functional setState in %s: pass an updater function instead of a plain object", filepath.Base(a.relPath)),
			)
			c.File = a.relPath
			c.Agents = []string{a.agent}
			warnings = append(warnings, c)
		}
	}

	stores := make([]string, 0, len(modifiers))
	for store := range modifiers {
		stores = append(stores, store)
	}
	sort.Strings(stores)

	for _, store := range stores {
		mods := modifiers[store]
		agents := make(map[string]bool)
		for _, m := range mods {
			agents[m.agent] = true
		}
		if len(agents) < 2 {
			continue
		}

		agentList := make([]string, 0, len(agents))
		files := make([]string, 0, len(mods))
		for _, m := range mods {
			files = append(files, fmt.Sprintf("%s (%s)", m.agent, filepath.Base(m.file)))
		}
		for agent := range agents {
			agentList = append(agentList, agent)
		}
		sort.Strings(agentList)

		c := contract.NewConflict(
			contract.ConflictConcurrentMutation,
			contract.SeverityHigh,
			fmt.Sprintf("store '%s' modified by multiple agents: %s", store, strings.Join(files, ", ")),
		)
		c.Contract = store
		c.Agents = agentList
		warnings = append(warnings, c)
	}

	return warnings
}
