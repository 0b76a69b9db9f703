package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/concordhq/concord/pkg/contract"
)

// checkCoverage warns about changed code files with no sibling test file.
// Severity depends on where the file lives: the first matching coverage rule
// wins, falling back to MEDIUM. Test files themselves are exempt.
func (v *Validator) checkCoverage(artifacts []artifact) []contract.Conflict {
	var warnings []contract.Conflict
	seen := make(map[string]bool)

	for _, a := range artifacts {
		if seen[a.relPath] {
			continue
		}
		seen[a.relPath] = true

		base := filepath.Base(a.relPath)
		if strings.Contains(base, "test") || !v.isCodeFile(a.relPath) {
			continue
		}

		if v.hasTestFile(a.absPath) {
			continue
		}

		c := contract.NewConflict(
			contract.ConflictMissingTest,
			v.coverageSeverity(a.relPath),
			fmt.Sprintf("missing test file for %s", base),
		)
		c.File = a.relPath
		c.Agents = []string{a.agent}
		warnings = append(warnings, c)
	}
	return warnings
}

// hasTestFile looks for a sibling <name>.test.<ext> for any resolvable
// extension.
func (v *Validator) hasTestFile(absPath string) bool {
	stem := strings.TrimSuffix(absPath, filepath.Ext(absPath))
	for _, ext := range v.extensions {
		if _, err := os.Stat(stem + ".test" + ext); err == nil {
			return true
		}
	}
	return false
}

// coverageSeverity maps an artifact path to a missing-test severity via the
// configured rules.
func (v *Validator) coverageSeverity(relPath string) contract.Severity {
	for _, rule := range v.coverage {
		if strings.Contains(relPath, rule.PathContains) {
			return contract.Severity(rule.Severity)
		}
	}
	return contract.SeverityMedium
}
