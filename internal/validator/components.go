package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/concordhq/concord/pkg/contract"
)

// attrRe extracts attribute names from a JSX attribute string.
var attrRe = regexp.MustCompile(`(\w+)=`)

// checkComponents validates JSX component usage against declared Props
// contracts. For every declared FooProps interface, each self-closing <Foo/>
// usage in the changed .tsx files is checked: attributes not present in the
// contract are CRITICAL. Full JSX parsing is out of scope; the self-closing
// form covers the leaf components contracts are written for.
func (v *Validator) checkComponents(outputs map[string]*contract.AgentOutput, artifacts []artifact) []contract.Conflict {
	type propsContract struct {
		component string
		params    map[string]bool
		declared  []string
	}

	var contracts []propsContract
	seenName := make(map[string]bool)
	agents := make([]string, 0, len(outputs))
	for agent := range outputs {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	for _, agent := range agents {
		names := make([]string, 0, len(outputs[agent].Contracts))
		for name := range outputs[agent].Contracts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !strings.HasSuffix(name, "Props") || seenName[name] {
				continue
			}
			seenName[name] = true

			params := contract.ParamNames(outputs[agent].Contracts[name])
			declared := make([]string, 0, len(params))
			for p := range params {
				declared = append(declared, p)
			}
			sort.Strings(declared)
			contracts = append(contracts, propsContract{
				component: strings.TrimSuffix(name, "Props"),
				params:    params,
				declared:  declared,
			})
		}
	}
	if len(contracts) == 0 {
		return nil
	}

	var conflicts []contract.Conflict
	seenFile := make(map[string]bool)
	for _, a := range artifacts {
		if seenFile[a.relPath] || !strings.HasSuffix(a.relPath, ".tsx") {
			continue
		}
		seenFile[a.relPath] = true

		for _, pc := range contracts {
			usageRe := regexp.MustCompile(`<` + regexp.QuoteMeta(pc.component) + `[\s\n]+([^/>]*)/>`)
			for _, m := range usageRe.FindAllStringSubmatch(a.content, -1) {
				var undefined []string
				for _, attr := range attrRe.FindAllStringSubmatch(m[1], -1) {
					if !pc.params[attr[1]] {
						undefined = append(undefined, attr[1])
					}
				}
				if len(undefined) == 0 {
					continue
				}
				sort.Strings(undefined)

				c := contract.NewConflict(
					contract.ConflictUndefinedParameter,
					contract.SeverityCritical,
					fmt.Sprintf("component '%s' used in %s with undefined props: %s (expected: %s)",
						pc.component, filepath.Base(a.relPath), strings.Join(undefined, ", "), strings.Join(pc.declared, ", ")),
				)
				c.Contract = pc.component + "Props"
				c.Property = strings.Join(undefined, ", ")
				c.File = a.relPath
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}
