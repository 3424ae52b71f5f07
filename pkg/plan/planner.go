// Package plan computes the visiting order for compiling a flow.
//
// Build restricts the graph to the ancestors of a target, sorts it
// topologically with ties broken by document order, and moves deferred
// (environment and connection) nodes into a separate list for the assembler
// to splice in before their first consumer.
package plan

import (
	"container/heap"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// Classifier reports the category of a node type. *descriptor.Registry
// satisfies it.
type Classifier interface {
	Category(nodeType string) descriptor.Category
}

// Plan is the result of Build.
type Plan struct {
	// Order lists the non-deferred nodes in visiting order.
	Order []string
	// Deferred lists environment and connection nodes in topological order.
	Deferred []string
	// Inputs maps a node to its incoming edges inside the plan, in document
	// edge order.
	Inputs map[string][]pipeline.GraphEdge
	// Sinks holds the nodes with no outgoing edge inside the plan.
	Sinks map[string]bool
	// Target is the node the plan was cut at, "" for the whole flow.
	Target string

	categories map[string]descriptor.Category
}

// Contains reports whether id is part of the plan.
func (p *Plan) Contains(id string) bool {
	_, ok := p.categories[id]
	return ok
}

// Category returns the category recorded for a planned node.
func (p *Plan) Category(id string) descriptor.Category {
	return p.categories[id]
}

// Len returns the number of planned nodes, deferred ones included.
func (p *Plan) Len() int { return len(p.Order) + len(p.Deferred) }

// Build plans the compilation of g up to target. An empty target plans every
// node. It fails with *UnknownTargetError or *CycleError.
func Build(g pipeline.Graph, target string, cls Classifier) (*Plan, error) {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	var included map[string]bool
	if target != "" {
		if _, ok := index[target]; !ok {
			return nil, &UnknownTargetError{Target: target}
		}
		included = ancestors(g, target)
	} else {
		included = make(map[string]bool, len(index))
		for id := range index {
			included[id] = true
		}
	}

	// Restrict edges to the subgraph, keeping document edge order.
	var edges []pipeline.GraphEdge
	for _, e := range g.Edges {
		if included[e.Source] && included[e.Target] {
			edges = append(edges, e)
		}
	}

	p := &Plan{
		Inputs:     make(map[string][]pipeline.GraphEdge),
		Sinks:      make(map[string]bool),
		Target:     target,
		categories: make(map[string]descriptor.Category, len(included)),
	}
	outgoing := make(map[string][]pipeline.GraphEdge)
	indegree := make(map[string]int, len(included))
	for _, e := range edges {
		p.Inputs[e.Target] = append(p.Inputs[e.Target], e)
		outgoing[e.Source] = append(outgoing[e.Source], e)
		indegree[e.Target]++
	}

	// Kahn's algorithm; the heap yields the ready node that appears first in
	// the document.
	ready := &indexHeap{}
	for id := range included {
		if indegree[id] == 0 {
			heap.Push(ready, index[id])
		}
	}
	order := make([]string, 0, len(included))
	for ready.Len() > 0 {
		n := g.Nodes[heap.Pop(ready).(int)]
		order = append(order, n.ID)
		for _, e := range outgoing[n.ID] {
			indegree[e.Target]--
			if indegree[e.Target] == 0 {
				heap.Push(ready, index[e.Target])
			}
		}
	}
	if len(order) < len(included) {
		return nil, &CycleError{Nodes: cycleNodes(g, included, order, edges)}
	}

	for _, id := range order {
		n := g.Nodes[index[id]]
		cat := cls.Category(n.Type)
		p.categories[id] = cat
		if cat.Deferred() {
			p.Deferred = append(p.Deferred, id)
		} else {
			p.Order = append(p.Order, id)
		}
		if len(outgoing[id]) == 0 {
			p.Sinks[id] = true
		}
	}
	return p, nil
}

// ancestors returns target and every node with a path into it.
func ancestors(g pipeline.Graph, target string) map[string]bool {
	incoming := make(map[string][]string)
	for _, e := range g.Edges {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}
	seen := map[string]bool{target: true}
	stack := []string{target}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, src := range incoming[cur] {
			if !seen[src] {
				seen[src] = true
				stack = append(stack, src)
			}
		}
	}
	return seen
}

// cycleNodes narrows the nodes Kahn could not order down to those that also
// reach a cycle going forward: nodes merely downstream of a cycle are pruned
// by repeatedly removing nodes without remaining successors.
func cycleNodes(g pipeline.Graph, included map[string]bool, sorted []string, edges []pipeline.GraphEdge) []string {
	remaining := make(map[string]bool)
	for id := range included {
		remaining[id] = true
	}
	for _, id := range sorted {
		delete(remaining, id)
	}
	for {
		outdeg := make(map[string]int, len(remaining))
		for _, e := range edges {
			if remaining[e.Source] && remaining[e.Target] {
				outdeg[e.Source]++
			}
		}
		pruned := false
		for id := range remaining {
			if outdeg[id] == 0 {
				delete(remaining, id)
				pruned = true
			}
		}
		if !pruned {
			break
		}
	}
	var nodes []string
	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		if remaining[n.ID] && !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n.ID)
		}
	}
	return nodes
}

// indexHeap is a min-heap of document node indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
