package scan

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/aotscan/internal/entity"
)

// Result is the immutable outcome of one scan: the frozen marked-node set.
// Both layout providers are derived from it exactly once; no further
// marking is possible.
type Result struct {
	scanner *Scanner
}

// Nodes returns every marked node in first-seen order.
func (r *Result) Nodes() []Node { return r.scanner.graph.Marked() }

// Contains reports whether n was marked during the scan.
func (r *Result) Contains(n Node) bool { return r.scanner.graph.Contains(n) }

// Expanded reports whether n's dependencies were computed.
func (r *Result) Expanded(n Node) bool { return r.scanner.graph.Expanded(n) }

// Edges returns n's ordered dependency edges.
func (r *Result) Edges(n Node) []Node { return r.scanner.graph.Edges(n) }

// NumNodes returns the size of the marked set.
func (r *Result) NumNodes() int { return r.scanner.graph.Len() }

// ReachableMethods returns every reachable function, canonical bodies and
// instantiation shadows alike, in first-seen order.
func (r *Result) ReachableMethods() []*ssa.Function {
	var fns []*ssa.Function
	for _, n := range r.Nodes() {
		if n.Kind == NodeMethodBody || n.Kind == NodeShadowMethod {
			fns = append(fns, n.Fn)
		}
	}
	return fns
}

// MethodNames returns the canonical names of all reachable methods.
func (r *Result) MethodNames() []string {
	fns := r.ReachableMethods()
	names := make([]string, 0, len(fns))
	for _, fn := range fns {
		names = append(names, r.scanner.names.FuncName(fn))
	}
	return names
}

// LookupMethod finds the marked method node with the given canonical name.
func (r *Result) LookupMethod(name string) (Node, bool) {
	for _, n := range r.Nodes() {
		if n.Kind != NodeMethodBody && n.Kind != NodeShadowMethod {
			continue
		}
		if r.scanner.names.FuncName(n.Fn) == name {
			return n, true
		}
	}
	return Node{}, false
}

// ImportFailure returns the program-level error absorbed while importing
// fn's body, if any. A failed body's recorded dependencies are those of
// its synthetic throwing substitute.
func (r *Result) ImportFailure(fn *ssa.Function) (*ImportError, bool) {
	return r.scanner.importFailures.Load(fn)
}

// ImportCount returns how many times fn's body import ran. The engine's
// expand-once guarantee keeps this at most 1.
func (r *Result) ImportCount(fn *ssa.Function) int {
	count, _ := r.scanner.importCounts.Load(fn)
	return count
}

// StubDependencies returns the dependency set of the synthetic throwing
// body substituted for fn, for comparison against the node's edges.
func (r *Result) StubDependencies(fn *ssa.Function) []Node {
	return r.scanner.stubDependencies(fn)
}

// Names returns the scan's name cache.
func (r *Result) Names() *entity.NameCache { return r.scanner.names }

// Decls returns the declared-metadata predicate for the scanned program.
func (r *Result) Decls() *entity.DeclSet { return r.scanner.decls }

// Program returns the underlying SSA program.
func (r *Result) Program() *ssa.Program { return r.scanner.prog }

// Canon returns the scan's stable representative for a type, so provider
// queries with structurally equal types hit the same index entries.
func (r *Result) Canon(t types.Type) types.Type { return r.scanner.canon(t) }
