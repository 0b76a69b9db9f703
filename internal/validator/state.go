package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/concordhq/concord/pkg/contract"
)

// storeUseRe matches destructuring reads from a store hook:
// const { a, b } = useUIStore()
var storeUseRe = regexp.MustCompile(`const\s*\{([^}]+)\}\s*=\s*use(\w+Store)\(\)`)

// checkStores validates store property accesses against the declared store
// contracts. A store contract is any declared interface whose name ends in
// Store or State; an access is any property destructured from its hook. Every
// access of a property the contract does not define is CRITICAL: the read
// compiles but returns undefined at runtime.
func (v *Validator) checkStores(outputs map[string]*contract.AgentOutput, artifacts []artifact) []contract.Conflict {
	// Collect store contracts across every agent's declarations.
	fields := make(map[string]map[string]bool)
	for _, output := range outputs {
		for name, definition := range output.Contracts {
			if !strings.HasSuffix(name, "Store") && !strings.HasSuffix(name, "State") {
				continue
			}
			fields[name] = contract.FieldNames(definition)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	var conflicts []contract.Conflict
	seen := make(map[string]bool)
	for _, a := range artifacts {
		if seen[a.relPath] || !hasSuffixAny(a.relPath, ".ts", ".tsx") {
			continue
		}
		seen[a.relPath] = true

		for _, m := range storeUseRe.FindAllStringSubmatch(a.content, -1) {
			storeName := m[2]
			defined, ok := fields[storeName]
			if !ok {
				// Hook for a store no agent declared a contract for.
				continue
			}

			for _, prop := range splitDestructuredProps(m[1]) {
				if defined[prop] {
					continue
				}
				c := contract.NewConflict(
					contract.ConflictUndefinedProperty,
					contract.SeverityCritical,
					fmt.Sprintf("property '%s' accessed in %s but not defined in %s", prop, filepath.Base(a.relPath), storeName),
				)
				c.Contract = storeName
				c.Property = prop
				c.File = a.relPath
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

// splitDestructuredProps parses the inside of a destructuring pattern into
// property names, dropping renames ("a: b" reads property a) and defaults.
func splitDestructuredProps(pattern string) []string {
	var props []string
	for _, part := range strings.Split(pattern, ",") {
		name := strings.TrimSpace(part)
		if i := strings.IndexAny(name, ":="); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		if name != "" {
			props = append(props, name)
		}
	}
	sort.Strings(props)
	return props
}
