package conflict

import (
	"sort"
	"strings"
)

// FindCycles runs a depth-first search with an explicit recursion stack over
// the adjacency map and returns every distinct cycle found. A cycle is
// reported as the path from the first occurrence of the repeated node through
// the closing node, e.g. ["a", "b", "a"]. Diamond shapes (shared descendants
// reached twice without a back edge) are not cycles and are never reported.
func FindCycles(adjacency map[string][]string) [][]string {
	nodes := make([]string, 0, len(adjacency))
	seen := make(map[string]bool, len(adjacency))
	for node, targets := range adjacency {
		if !seen[node] {
			seen[node] = true
			nodes = append(nodes, node)
		}
		for _, t := range targets {
			if !seen[t] {
				seen[t] = true
				nodes = append(nodes, t)
			}
		}
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	reported := make(map[string]bool)

	var path []string
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range adjacency[node] {
			if onStack[next] {
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), next)
				if key := canonicalCycleKey(cycle); !reported[key] {
					reported[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
	}

	for _, node := range nodes {
		if !visited[node] {
			dfs(node)
		}
	}

	return cycles
}

// canonicalCycleKey rotates the cycle (without its closing node) to start at
// its smallest member, so the same loop entered from different nodes dedupes.
func canonicalCycleKey(cycle []string) string {
	loop := cycle[:len(cycle)-1]
	min := 0
	for i, n := range loop {
		if n < loop[min] {
			min = i
		}
	}
	rotated := append(append([]string{}, loop[min:]...), loop[:min]...)
	return strings.Join(rotated, "\x00")
}
