// Package validator cross-checks the artifacts agents actually produced
// against the contracts they declared: import resolution, store property
// accesses, component parameter usage, concurrent-mutation hazards, and test
// coverage. It reads files from the project tree but never modifies them.
package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/pkg/contract"
)

// Defaults applied when the validator section is absent from configuration.
var (
	defaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

	defaultCoverage = []config.CoverageRule{
		{PathContains: "hooks", Severity: string(contract.SeverityCritical)},
		{PathContains: "lib", Severity: string(contract.SeverityHigh)},
	}
)

const (
	defaultAliasPrefix = "@/"
	defaultAliasTarget = "src/"
)

// Validator runs cross-artifact checks rooted at a project directory.
type Validator struct {
	root        string
	extensions  []string
	aliasPrefix string
	aliasTarget string
	coverage    []config.CoverageRule
}

// New builds a validator for the project root. A nil config uses the
// defaults.
func New(root string, cfg *config.ValidatorConfig) *Validator {
	v := &Validator{
		root:        root,
		extensions:  defaultExtensions,
		aliasPrefix: defaultAliasPrefix,
		aliasTarget: defaultAliasTarget,
		coverage:    defaultCoverage,
	}
	if cfg == nil {
		return v
	}
	if len(cfg.Extensions) > 0 {
		v.extensions = cfg.Extensions
	}
	if cfg.AliasPrefix != "" {
		v.aliasPrefix = cfg.AliasPrefix
	}
	if cfg.AliasTarget != "" {
		v.aliasTarget = cfg.AliasTarget
	}
	if len(cfg.Coverage) > 0 {
		v.coverage = cfg.Coverage
	}
	return v
}

// Result is the outcome of a validation pass. Success means zero CRITICAL
// conflicts; warnings never block.
type Result struct {
	Success   bool
	Conflicts []contract.Conflict
	Warnings  []contract.Conflict
}

// artifact is one changed file attributed to the agent that touched it. The
// same path may appear once per agent.
type artifact struct {
	agent   string
	relPath string
	absPath string
	content string
}

// RunAll executes every check over the reported outputs. The pass is
// cancellable between files via ctx; unreadable artifacts produce a conflict
// and the batch continues.
func (v *Validator) RunAll(ctx context.Context, outputs map[string]*contract.AgentOutput) (*Result, error) {
	artifacts, conflicts, err := v.loadArtifacts(ctx, outputs)
	if err != nil {
		return nil, err
	}

	conflicts = append(conflicts, checkDuplicateContracts(outputs)...)
	conflicts = append(conflicts, v.checkStores(outputs, artifacts)...)
	conflicts = append(conflicts, v.checkComponents(outputs, artifacts)...)
	conflicts = append(conflicts, v.checkArtifactCycles(artifacts)...)
	conflicts = append(conflicts, v.checkImports(artifacts)...)

	var warnings []contract.Conflict
	warnings = append(warnings, checkMutationHazards(artifacts)...)
	warnings = append(warnings, v.checkCoverage(artifacts)...)

	result := &Result{
		Success:   true,
		Conflicts: conflicts,
		Warnings:  warnings,
	}
	for _, c := range conflicts {
		if c.Severity == contract.SeverityCritical {
			result.Success = false
			break
		}
	}
	return result, nil
}

// loadArtifacts reads every changed file once, in deterministic agent/path
// order. Read failures become artifact_unreadable conflicts rather than
// aborting the pass; only context cancellation stops it.
func (v *Validator) loadArtifacts(ctx context.Context, outputs map[string]*contract.AgentOutput) ([]artifact, []contract.Conflict, error) {
	agents := make([]string, 0, len(outputs))
	for agent := range outputs {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	var artifacts []artifact
	var conflicts []contract.Conflict
	for _, agent := range agents {
		for _, relPath := range outputs[agent].ChangedFiles() {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}

			absPath := filepath.Join(v.root, relPath)
			data, err := os.ReadFile(absPath)
			if err != nil {
				c := contract.NewConflict(
					contract.ConflictArtifactUnreadable,
					contract.SeverityHigh,
					fmt.Sprintf("cannot read artifact '%s' reported by %s: %v", relPath, agent, err),
				)
				c.File = relPath
				c.Agents = []string{agent}
				conflicts = append(conflicts, c)
				continue
			}

			artifacts = append(artifacts, artifact{
				agent:   agent,
				relPath: relPath,
				absPath: absPath,
				content: string(data),
			})
		}
	}
	return artifacts, conflicts, nil
}

// checkDuplicateContracts compares the contracts each agent declared in its
// output, pairwise across agents. Structurally different definitions of the
// same name are CRITICAL; formatting differences are not.
func checkDuplicateContracts(outputs map[string]*contract.AgentOutput) []contract.Conflict {
	agents := make([]string, 0, len(outputs))
	for agent := range outputs {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	type first struct {
		agent      string
		definition string
	}
	seen := make(map[string]first)

	var conflicts []contract.Conflict
	for _, agent := range agents {
		names := make([]string, 0, len(outputs[agent].Contracts))
		for name := range outputs[agent].Contracts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			definition := outputs[agent].Contracts[name]
			prior, ok := seen[name]
			if !ok {
				seen[name] = first{agent: agent, definition: definition}
				continue
			}
			if contract.StructurallyEqual(prior.definition, definition) {
				continue
			}

			c := contract.NewConflict(
				contract.ConflictInterfaceMismatch,
				contract.SeverityCritical,
				fmt.Sprintf("interface '%s' has conflicting definitions from %s and %s", name, prior.agent, agent),
			)
			c.Contract = name
			c.Agents = []string{prior.agent, agent}
			c.Definitions = []string{prior.definition, definition}
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// isCodeFile reports whether the path carries one of the resolvable source
// extensions.
func (v *Validator) isCodeFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range v.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// hasSuffixAny reports whether path ends in one of the given extensions.
func hasSuffixAny(path string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
