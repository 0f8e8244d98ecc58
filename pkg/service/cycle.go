package service

import (
	"sort"

	"github.com/ignatij/taskboard/pkg/models"
)

// blockingAdjacency builds the "depends on" adjacency map from blocking
// edges: dependent task -> tasks it waits on. RELATES_TO edges are excluded,
// they never participate in the blocking graph.
func blockingAdjacency(deps []models.TaskDependency) map[int64][]int64 {
	adj := make(map[int64][]int64)
	seen := make(map[[2]int64]bool)
	for _, d := range deps {
		if !d.Type.IsBlocking() {
			continue
		}
		key := [2]int64{d.DependentTaskID, d.BlockingTaskID}
		if seen[key] {
			continue
		}
		seen[key] = true
		adj[d.DependentTaskID] = append(adj[d.DependentTaskID], d.BlockingTaskID)
	}
	for k := range adj {
		sort.Slice(adj[k], func(i, j int) bool { return adj[k][i] < adj[k][j] })
	}
	return adj
}

// findDependencyPath searches depth-first for a path from -> ... -> to along
// existing "depends on" edges, returning the path including both endpoints,
// or nil when unreachable. Used as the pre-insert cycle check: adding the
// edge dependent -> blocking closes a cycle exactly when blocking already
// reaches dependent. O(V+E) with a visited set.
func findDependencyPath(adj map[int64][]int64, from, to int64) []int64 {
	visited := make(map[int64]bool)
	var stack []int64

	var dfs func(node int64) bool
	dfs = func(node int64) bool {
		visited[node] = true
		stack = append(stack, node)
		if node == to {
			return true
		}
		for _, next := range adj[node] {
			if visited[next] {
				continue
			}
			if dfs(next) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}

	if !dfs(from) {
		return nil
	}
	path := make([]int64, len(stack))
	copy(path, stack)
	return path
}

// detectCycles enumerates cycles in the full blocking graph using DFS with
// coloring: white (unvisited), gray (on the recursion stack), black (done).
// Live data should never contain a cycle; this is the diagnostic path behind
// the project graph view. Start order is sorted for deterministic output.
func detectCycles(adj map[int64][]int64, nodes []int64) [][]int64 {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[int64]int)
	parent := make(map[int64]int64)
	var cycles [][]int64

	var dfs func(node int64)
	dfs = func(node int64) {
		color[node] = gray
		for _, next := range adj[node] {
			if color[next] == gray {
				// Found a cycle, reconstruct it through the parent chain
				cycle := []int64{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycles = append(cycles, cycle)
				continue
			}
			if color[next] == white {
				parent[next] = node
				dfs(next)
			}
		}
		color[node] = black
	}

	sorted := make([]int64, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if color[id] == white {
			dfs(id)
		}
	}
	return cycles
}
