package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/concordhq/concord/internal/conflict"
	"github.com/concordhq/concord/pkg/contract"
)

// importRe extracts the module specifier from ES import statements.
var importRe = regexp.MustCompile(`import .* from ['"](.+)['"]`)

// extractImports returns every import specifier in source order.
func extractImports(content string) []string {
	var imports []string
	for _, m := range importRe.FindAllStringSubmatch(content, -1) {
		imports = append(imports, m[1])
	}
	return imports
}

// checkImports verifies that every relative and alias import in each artifact
// resolves to a real file. Package imports (bare specifiers) are the package
// manager's problem, not ours.
func (v *Validator) checkImports(artifacts []artifact) []contract.Conflict {
	var conflicts []contract.Conflict
	checked := make(map[string]bool)

	for _, a := range artifacts {
		if checked[a.relPath] || !v.isCodeFile(a.relPath) {
			continue
		}
		checked[a.relPath] = true

		for _, imp := range extractImports(a.content) {
			var base string
			switch {
			case strings.HasPrefix(imp, "."):
				base = filepath.Join(filepath.Dir(a.absPath), imp)
			case strings.HasPrefix(imp, v.aliasPrefix):
				base = filepath.Join(v.root, v.aliasTarget, strings.TrimPrefix(imp, v.aliasPrefix))
			default:
				continue
			}

			if _, ok := v.resolveImport(base); !ok {
				c := contract.NewConflict(
					contract.ConflictUnresolvedImport,
					contract.SeverityHigh,
					fmt.Sprintf("unresolved import in %s: %s", filepath.Base(a.relPath), imp),
				)
				c.File = a.relPath
				c.Property = imp
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

// resolveImport tries the base path with each resolvable extension, then as a
// directory holding an index file. Returns the resolved path on success.
func (v *Validator) resolveImport(base string) (string, bool) {
	for _, ext := range append([]string{""}, v.extensions...) {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	for _, ext := range v.extensions {
		candidate := filepath.Join(base, "index"+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// checkArtifactCycles builds the import graph over the changed files and
// reports loops. Only relative imports participate; a file importing an
// untouched file is a dead end, not a cycle. These are HIGH, not CRITICAL:
// bundlers tolerate many import cycles at runtime.
func (v *Validator) checkArtifactCycles(artifacts []artifact) []contract.Conflict {
	adjacency := make(map[string][]string)
	seen := make(map[string]bool)

	for _, a := range artifacts {
		if seen[a.relPath] || !v.isCodeFile(a.relPath) {
			continue
		}
		seen[a.relPath] = true

		for _, imp := range extractImports(a.content) {
			if !strings.HasPrefix(imp, ".") {
				continue
			}
			base := filepath.Join(filepath.Dir(a.absPath), imp)
			resolved, ok := v.resolveImport(base)
			if !ok {
				continue
			}
			rel, err := filepath.Rel(v.root, resolved)
			if err != nil {
				continue
			}
			adjacency[a.relPath] = append(adjacency[a.relPath], rel)
		}
	}

	var conflicts []contract.Conflict
	for _, cycle := range conflict.FindCycles(adjacency) {
		names := make([]string, len(cycle))
		for i, p := range cycle {
			names[i] = filepath.Base(p)
		}
		c := contract.NewConflict(
			contract.ConflictCircularDependency,
			contract.SeverityHigh,
			fmt.Sprintf("circular import: %s", strings.Join(names, " → ")),
		)
		c.Cycle = cycle
		conflicts = append(conflicts, c)
	}
	return conflicts
}
