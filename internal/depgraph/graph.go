// Package depgraph implements the generic fixed-point marking engine the
// scanner runs on. Nodes are created lazily on first reference, expanded at
// most once, and marking proceeds until no new nodes appear.
package depgraph

// ExpandFunc computes the outgoing dependency edges of a newly-reached
// node. It must be total: the engine has no failure path, so any recovery
// (such as substituting a synthetic body) happens inside the callback.
type ExpandFunc[N comparable] func(N) []N

// Graph is the whole-program dependency graph. A node's expansion runs to
// completion before the node counts as processed, and runs at most once;
// re-requests on an already-expanded node are detected and skipped.
type Graph[N comparable] struct {
	expand ExpandFunc[N]

	marked   map[N]struct{}
	order    []N // marked nodes in first-seen order
	expanded map[N]struct{}
	edges    map[N][]N

	worklist []N
	frozen   bool
}

// New returns an empty graph driven by the given expansion callback.
func New[N comparable](expand ExpandFunc[N]) *Graph[N] {
	return &Graph[N]{
		expand:   expand,
		marked:   make(map[N]struct{}),
		expanded: make(map[N]struct{}),
		edges:    make(map[N][]N),
	}
}

// Mark adds a node to the reachable set and to the expansion frontier. It
// is a no-op for nodes already marked.
func (g *Graph[N]) Mark(n N) {
	if g.frozen {
		panic("depgraph: Mark called on a frozen graph")
	}
	if _, ok := g.marked[n]; ok {
		return
	}
	g.marked[n] = struct{}{}
	g.order = append(g.order, n)
	g.worklist = append(g.worklist, n)
}

// Ensure expands n immediately if it has not been expanded yet. It may be
// called from inside another node's expansion (a shadow node eagerly
// completing its canonical node); the expanded flag is set exactly once.
func (g *Graph[N]) Ensure(n N) {
	g.Mark(n)
	if _, done := g.expanded[n]; done {
		return
	}
	// Set before expanding so self-referential expansion terminates.
	g.expanded[n] = struct{}{}

	deps := g.expand(n)

	// Edge lists are ordered and duplicate-free.
	seen := make(map[N]struct{}, len(deps))
	out := deps[:0]
	for _, d := range deps {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
		g.Mark(d)
	}
	g.edges[n] = out
}

// Run marks the roots and expands nodes until a fixed point is reached:
// no node remains whose dependencies have not been computed.
//
// Double-buffering pattern: the worklist is swapped with a shadow buffer
// each round so append reuses the underlying array across iterations.
func (g *Graph[N]) Run(roots []N) {
	for _, root := range roots {
		g.Mark(root)
	}
	shadow := make([]N, 0, len(g.worklist))
	for len(g.worklist) > 0 {
		shadow, g.worklist = g.worklist, shadow[:0]
		for _, n := range shadow {
			g.Ensure(n)
		}
	}
}

// Freeze makes the graph read-only. Any later Mark panics: once the scan
// result has been snapshotted, further marking would invalidate it.
func (g *Graph[N]) Freeze() {
	g.frozen = true
}

// Frozen reports whether the graph has been frozen.
func (g *Graph[N]) Frozen() bool { return g.frozen }

// Marked returns the reachable nodes in first-seen order. The caller must
// not mutate the returned slice.
func (g *Graph[N]) Marked() []N { return g.order }

// Len returns the number of marked nodes.
func (g *Graph[N]) Len() int { return len(g.marked) }

// Contains reports whether n has been marked.
func (g *Graph[N]) Contains(n N) bool {
	_, ok := g.marked[n]
	return ok
}

// Expanded reports whether n's dependencies have been computed.
func (g *Graph[N]) Expanded(n N) bool {
	_, ok := g.expanded[n]
	return ok
}

// Edges returns n's ordered dependency edges. The caller must not mutate
// the returned slice.
func (g *Graph[N]) Edges(n N) []N { return g.edges[n] }
