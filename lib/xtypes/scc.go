// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import "slices"

// stronglyConnectedComponents partitions the nodes of a directed graph,
// given as adjacency lists, into strongly connected components. An edge
// from a to b means a depends on b; components come back dependencies
// first. Both passes of Kosaraju's algorithm use explicit stacks, so
// deep type graphs cannot exhaust the goroutine stack.
func stronglyConnectedComponents(edges [][]int) [][]int {
	nodeCount := len(edges)

	type frame struct {
		node int
		next int
	}
	visited := make([]bool, nodeCount)
	finished := make([]int, 0, nodeCount)
	var stack []frame
	for start := range nodeCount {
		if visited[start] {
			continue
		}
		visited[start] = true
		stack = append(stack[:0], frame{node: start})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(edges[top.node]) {
				next := edges[top.node][top.next]
				top.next++
				if !visited[next] {
					visited[next] = true
					stack = append(stack, frame{node: next})
				}
				continue
			}
			finished = append(finished, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	reverse := make([][]int, nodeCount)
	for from, targets := range edges {
		for _, to := range targets {
			reverse[to] = append(reverse[to], from)
		}
	}

	assigned := make([]bool, nodeCount)
	var components [][]int
	var pending []int
	for index := nodeCount - 1; index >= 0; index-- {
		root := finished[index]
		if assigned[root] {
			continue
		}
		assigned[root] = true
		component := []int{root}
		pending = append(pending[:0], root)
		for len(pending) > 0 {
			node := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			for _, previous := range reverse[node] {
				if !assigned[previous] {
					assigned[previous] = true
					component = append(component, previous)
					pending = append(pending, previous)
				}
			}
		}
		components = append(components, component)
	}

	// The second pass finds components in topological order, sources
	// first.
	slices.Reverse(components)
	return components
}
